package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/NPLinker/nplinker/internal/schema"
	"github.com/NPLinker/nplinker/internal/store"
	"github.com/NPLinker/nplinker/pkg"
)

// Execute runs the plan: the root relation, inner-joined along each declared
// edge in declaration order, with every key filter applied as its table
// enters the join. Returns the raw joined row set with qualified column
// names. A legitimately empty result is a value, not an error.
func (p *Plan) Execute() ([]JoinedRow, error) {
	if p.generation != p.store.Generation() {
		return nil, fmt.Errorf("stale query plan: store was rebuilt")
	}

	filters := pkg.Map[string, KeyFilter]{}
	for _, f := range p.Filters {
		filters.Set(f.Table, f)
	}

	rows := tableRows(p.store.Table(p.Root), filters)
	joined := pkg.Map[string, bool]{p.Root: true}

	for _, edge := range p.Edges {
		switch {
		case joined.Has(edge.Table) && joined.Has(edge.With):
			// both sides already joined: the edge degenerates to an
			// equality filter over the accumulated rows
			left := Qualify(edge.Table, edge.Using)
			right := Qualify(edge.With, edge.Using)
			rows = pkg.Filter(rows, func(row JoinedRow) bool {
				return store.FormatKey(row.Get(left)) == store.FormatKey(row.Get(right))
			})
		case joined.Has(edge.Table):
			rows = hashJoin(rows, Qualify(edge.Table, edge.Using),
				p.store.Table(edge.With), edge.Using, filters)
			joined.Set(edge.With, true)
		default:
			// edge declared on a table that joins in from the far side;
			// the schema guarantees edge.With is already reachable here
			rows = hashJoin(rows, Qualify(edge.With, edge.Using),
				p.store.Table(edge.Table), edge.Using, filters)
			joined.Set(edge.Table, true)
		}
	}

	return rows, nil
}

// tableRows qualifies a table's rows and applies its key filter, if any.
func tableRows(t *store.Table, filters pkg.Map[string, KeyFilter]) []JoinedRow {
	filter, constrained := filters[t.Meta.Name]

	rows := []JoinedRow{}
	for _, row := range t.Rows {
		if constrained && !filter.Allowed.Has(store.FormatKey(row.Get(filter.Column))) {
			continue
		}
		qualified := JoinedRow{}
		for _, col := range t.Meta.Columns {
			qualified.Set(Qualify(t.Meta.Name, col), row.Get(col))
		}
		rows = append(rows, qualified)
	}
	return rows
}

// hashJoin inner-joins the accumulated rows with a new table on equality of
// leftColumn against the table's using column.
func hashJoin(rows []JoinedRow, leftColumn string, right *store.Table, using string, filters pkg.Map[string, KeyFilter]) []JoinedRow {
	buckets := pkg.Map[string, []JoinedRow]{}
	for _, row := range tableRows(right, filters) {
		key := store.FormatKey(row.Get(Qualify(right.Meta.Name, using)))
		buckets.Set(key, append(buckets.Get(key), row))
	}

	out := []JoinedRow{}
	for _, row := range rows {
		for _, match := range buckets.Get(store.FormatKey(row.Get(leftColumn))) {
			merged := JoinedRow{}
			for k, v := range row {
				merged.Set(k, v)
			}
			for k, v := range match {
				merged.Set(k, v)
			}
			out = append(out, merged)
		}
	}
	return out
}

// Project extracts one table's distinct rows from the joined row set,
// stripping the table-name qualification, naturally sorted by the table's
// primary key. Tables without a primary key keep first-seen order.
func (p *Plan) Project(tableName string, joinedRows []JoinedRow) []schema.Row {
	meta := p.store.Table(tableName).Meta

	rows := []schema.Row{}
	seen := pkg.Map[string, bool]{}
	for _, joined := range joinedRows {
		row := schema.Row{}
		parts := make([]string, 0, len(meta.Columns))
		for _, col := range meta.Columns {
			value := joined.Get(Qualify(tableName, col))
			row.Set(col, value)
			parts = append(parts, store.FormatKey(value))
		}

		fingerprint := strings.Join(parts, "\x00")
		if seen.Has(fingerprint) {
			continue
		}
		seen.Set(fingerprint, true)
		rows = append(rows, row)
	}

	if pk := meta.PrimaryKey; pk != "" {
		sort.SliceStable(rows, func(i, j int) bool {
			return pkg.NaturalLess(store.FormatKey(rows[i].Get(pk)), store.FormatKey(rows[j].Get(pk)))
		})
	}
	return rows
}
