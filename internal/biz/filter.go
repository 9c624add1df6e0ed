package biz

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"openshortlink/internal/domain"
)

// LinkCatalog is the authoritative link table, backed by the relational store.
type LinkCatalog interface {
	// ResolveLinkIDs resolves the domain×tag×category join to concrete link
	// ids. Empty id slices mean "no constraint" for that dimension. Status
	// narrows to links in that state; empty status means any.
	ResolveLinkIDs(ctx context.Context, domainIDs, tagIDs, categoryIDs []int64, status string) ([]int64, error)

	// DomainIDsByName maps domain names to their ids.
	DomainIDsByName(ctx context.Context, names []string) ([]int64, error)
}

// AggregateFilter is the relational filter shape consumed by the aggregate
// store. It never needs link-id expansion: the store joins against tag and
// category tables directly.
type AggregateFilter struct {
	DomainIDs   []int64
	TagIDs      []int64
	CategoryIDs []int64
	LinkIDs     []int64

	// Empty marks a filter that named entities resolving to nothing, such as
	// domain names absent from the catalog. Queries with an empty filter must
	// return no rows without hitting storage: dropping the failed constraint
	// would silently widen the selection to all links.
	Empty bool
}

// ResolvedFilter carries the two backend-specific translations of one
// logical filter.
type ResolvedFilter struct {
	Aggregate AggregateFilter

	// LinkIDs is the concrete id set usable by the recent event store.
	LinkIDs []int64
	// DomainNames is set only when the filter is a pure domain-name filter,
	// which the recent store consumes natively without id expansion.
	DomainNames []string

	// HasTagOrCategory marks filters the recent store cannot express except
	// through the resolved id set.
	HasTagOrCategory bool
	// Unscoped marks the "all data" filter.
	Unscoped bool
}

// FilterResolver translates a logical filter into per-backend filter shapes.
type FilterResolver struct {
	catalog LinkCatalog
	log     *log.Helper
}

func NewFilterResolver(catalog LinkCatalog, logger log.Logger) *FilterResolver {
	return &FilterResolver{catalog: catalog, log: log.NewHelper(logger)}
}

// Resolve computes the backend filter shapes. resolveLinks controls whether
// the link-id set is expanded; callers skip the expansion when the recent
// store is not eligible for the request.
//
// A tag/category filter that resolves to zero link ids is not an error: the
// recent-store portion legitimately returns empty while the aggregate store
// still queries with its own relational filter.
func (r *FilterResolver) Resolve(ctx context.Context, f domain.LogicalFilter, resolveLinks bool) (ResolvedFilter, error) {
	resolved := ResolvedFilter{
		Aggregate: AggregateFilter{
			DomainIDs:   f.DomainIDs,
			TagIDs:      f.TagIDs,
			CategoryIDs: f.CategoryIDs,
			LinkIDs:     f.LinkIDs,
		},
		HasTagOrCategory: f.HasTagOrCategory(),
		Unscoped:         f.IsUnscoped(),
	}

	// A pure domain-name filter passes through to the recent store untouched
	// and is converted to domain ids for the relational side. Names matching
	// no catalog entry make the relational filter unsatisfiable, not
	// unconstrained.
	if len(f.DomainNames) > 0 && !f.HasTagOrCategory() {
		resolved.DomainNames = f.DomainNames
		ids, err := r.catalog.DomainIDsByName(ctx, f.DomainNames)
		if err != nil {
			return ResolvedFilter{}, err
		}
		if len(ids) == 0 {
			r.log.WithContext(ctx).Debugf("domain names %v matched no catalog entry", f.DomainNames)
			resolved.Aggregate.Empty = true
			return resolved, nil
		}
		resolved.Aggregate.DomainIDs = ids
		return resolved, nil
	}

	if len(f.LinkIDs) > 0 {
		resolved.LinkIDs = f.LinkIDs
		return resolved, nil
	}

	if !resolveLinks {
		return resolved, nil
	}

	ids, err := r.catalog.ResolveLinkIDs(ctx, f.DomainIDs, f.TagIDs, f.CategoryIDs, "active")
	if err != nil {
		return ResolvedFilter{}, err
	}
	if len(ids) == 0 && f.HasTagOrCategory() {
		r.log.WithContext(ctx).Debugf("filter %s resolved to zero links", f.Signature())
	}
	resolved.LinkIDs = ids
	return resolved, nil
}
