package postgres

import (
	"fmt"

	"github.com/visioninhope/BetM3/internal/domain"
)

// paginate appends time filters, ordering and LIMIT/OFFSET to a query whose
// WHERE clause already consumed len(args) placeholders.
func paginate(query string, args []any, timeCol, order string, opts domain.ListOpts) (string, []any) {
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Since != nil {
		query += " AND " + timeCol + " >= " + next(*opts.Since)
	}
	if opts.Until != nil {
		query += " AND " + timeCol + " <= " + next(*opts.Until)
	}
	query += " ORDER BY " + order
	if opts.Limit > 0 {
		query += " LIMIT " + next(opts.Limit)
	}
	if opts.Offset > 0 {
		query += " OFFSET " + next(opts.Offset)
	}
	return query, args
}
