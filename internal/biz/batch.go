package biz

import "github.com/samber/lo"

// MaxFilterIDs is the recent store's cardinality limit for one filtered query.
const MaxFilterIDs = 100

// BatchPlanKind tags the resolved strategy for expressing a logical filter
// against the recent store's cardinality-limited query interface.
type BatchPlanKind int

const (
	// PlanEmpty yields zero results without querying: the filter resolved to
	// no links at all.
	PlanEmpty BatchPlanKind = iota
	// PlanDirectDomains filters by domain names natively.
	PlanDirectDomains
	// PlanDirectLinks filters by a link-id set of at most MaxFilterIDs.
	PlanDirectLinks
	// PlanBatched splits the id set into chunks of MaxFilterIDs, one query per
	// chunk, with chunk results merged exactly like cross-backend merge.
	PlanBatched
	// PlanUnfiltered queries all data. Used only for the unscoped "all data"
	// selection when the id set exceeds the filter limit; safe only because
	// the recent store holds this deployment's own event stream.
	PlanUnfiltered
)

// BatchPlan is the tagged variant produced by PlanBatches. Exactly the fields
// relevant to Kind are populated.
type BatchPlan struct {
	Kind        BatchPlanKind
	DomainNames []string
	LinkIDs     []int64
	Chunks      [][]int64
}

// PlanBatches decides how the recent store will be queried for a resolved
// filter. First matching rule wins:
//
//  1. pure domain-name filter        -> direct domain filter
//  2. tag/category filter           -> empty, direct ids, or batched by size
//  3. scoped filter with >100 ids   -> batched
//  4. unscoped with >100 ids        -> unfiltered
//  5. anything else with 1..100 ids -> direct ids
func PlanBatches(f ResolvedFilter) BatchPlan {
	if len(f.DomainNames) > 0 && !f.HasTagOrCategory {
		return BatchPlan{Kind: PlanDirectDomains, DomainNames: f.DomainNames}
	}

	n := len(f.LinkIDs)
	if f.HasTagOrCategory {
		switch {
		case n == 0:
			return BatchPlan{Kind: PlanEmpty}
		case n <= MaxFilterIDs:
			return BatchPlan{Kind: PlanDirectLinks, LinkIDs: f.LinkIDs}
		default:
			return BatchPlan{Kind: PlanBatched, Chunks: lo.Chunk(f.LinkIDs, MaxFilterIDs)}
		}
	}

	if n > MaxFilterIDs {
		if f.Unscoped {
			return BatchPlan{Kind: PlanUnfiltered}
		}
		return BatchPlan{Kind: PlanBatched, Chunks: lo.Chunk(f.LinkIDs, MaxFilterIDs)}
	}

	if n == 0 {
		return BatchPlan{Kind: PlanEmpty}
	}
	return BatchPlan{Kind: PlanDirectLinks, LinkIDs: f.LinkIDs}
}
