package data

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5/pgxpool"

	"openshortlink/internal/biz"
)

// Compile-time interface check
var _ biz.LinkCatalog = (*linkCatalog)(nil)

// linkCatalog resolves logical filters against the authoritative link table.
type linkCatalog struct {
	pg  *pgxpool.Pool
	log *log.Helper
}

func NewLinkCatalog(d *Data, logger log.Logger) biz.LinkCatalog {
	return &linkCatalog{pg: d.pg, log: log.NewHelper(logger)}
}

// ResolveLinkIDs expands the domain×tag×category join into concrete link ids.
func (c *linkCatalog) ResolveLinkIDs(ctx context.Context, domainIDs, tagIDs, categoryIDs []int64, status string) ([]int64, error) {
	var (
		clauses []string
		args    []any
	)
	next := func() int { return len(args) + 1 }

	if len(domainIDs) > 0 {
		clauses = append(clauses, fmt.Sprintf("l.domain_id = ANY($%d)", next()))
		args = append(args, domainIDs)
	}
	if len(tagIDs) > 0 {
		clauses = append(clauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM link_tags lt WHERE lt.link_id = l.id AND lt.tag_id = ANY($%d))", next()))
		args = append(args, tagIDs)
	}
	if len(categoryIDs) > 0 {
		clauses = append(clauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM link_categories lc WHERE lc.link_id = l.id AND lc.category_id = ANY($%d))", next()))
		args = append(args, categoryIDs)
	}
	if status != "" {
		clauses = append(clauses, fmt.Sprintf("l.status = $%d", next()))
		args = append(args, status)
	}

	query := "SELECT l.id FROM links l"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY l.id"

	rows, err := c.pg.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DomainIDsByName maps domain names to ids. Unknown names are skipped.
func (c *linkCatalog) DomainIDsByName(ctx context.Context, names []string) ([]int64, error) {
	rows, err := c.pg.Query(ctx, "SELECT id FROM domains WHERE name = ANY($1)", names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
