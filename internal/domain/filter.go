package domain

import (
	"sort"
	"strconv"
	"strings"
)

// LogicalFilter is the caller's link selection. At most one of the identity
// dimensions is authoritative; authorization is assumed to be resolved into
// this shape before it reaches the router.
type LogicalFilter struct {
	DomainIDs   []int64
	TagIDs      []int64
	CategoryIDs []int64
	LinkIDs     []int64
	DomainNames []string
}

// HasTagOrCategory reports whether the filter needs link-id resolution: the
// recent event store cannot join against tag or category tables.
func (f LogicalFilter) HasTagOrCategory() bool {
	return len(f.TagIDs) > 0 || len(f.CategoryIDs) > 0
}

// IsUnscoped reports whether no identity dimension is set at all.
func (f LogicalFilter) IsUnscoped() bool {
	return len(f.DomainIDs) == 0 && len(f.TagIDs) == 0 && len(f.CategoryIDs) == 0 &&
		len(f.LinkIDs) == 0 && len(f.DomainNames) == 0
}

// Signature returns a stable serialization of the filter for cache keys.
// Each dimension is sorted so equivalent filters produce identical keys.
func (f LogicalFilter) Signature() string {
	var b strings.Builder
	writeIDs := func(tag string, ids []int64) {
		if len(ids) == 0 {
			return
		}
		sorted := make([]int64, len(ids))
		copy(sorted, ids)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		b.WriteString(tag)
		b.WriteByte('=')
		for i, id := range sorted {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatInt(id, 10))
		}
		b.WriteByte(';')
	}
	writeIDs("d", f.DomainIDs)
	writeIDs("t", f.TagIDs)
	writeIDs("c", f.CategoryIDs)
	writeIDs("l", f.LinkIDs)
	if len(f.DomainNames) > 0 {
		names := make([]string, len(f.DomainNames))
		copy(names, f.DomainNames)
		sort.Strings(names)
		b.WriteString("n=")
		b.WriteString(strings.Join(names, ","))
		b.WriteByte(';')
	}
	if b.Len() == 0 {
		return "all"
	}
	return strings.TrimSuffix(b.String(), ";")
}
