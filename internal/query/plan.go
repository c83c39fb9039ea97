package query

import (
	"github.com/NPLinker/nplinker/internal/schema"
	"github.com/NPLinker/nplinker/internal/store"
	"github.com/NPLinker/nplinker/pkg"
)

// Maps qualified "<table>_<column>" names to values of the joined row set
type JoinedRow = pkg.Map[string, any]

// Constraints maps a table name to the primary-key values it is restricted
// to. A table with no entry is unconstrained.
type Constraints = map[string][]any

// KeyFilter restricts one table to rows whose key column formats to one of
// the allowed values.
type KeyFilter struct {
	Table   string
	Column  string
	Allowed pkg.Map[string, bool]
}

// Plan is the compiled form of the one query this package answers: root
// relation, inner joins along the declared edges, per-table key filters,
// all visible columns qualified by table name. Plans are cheap and are
// rebuilt on every query; one built before a store Rebuild is invalid.
type Plan struct {
	Root    string
	Edges   []schema.JoinEdge
	Filters []KeyFilter

	store      *store.Store
	generation uint64
}

// NewPlan compiles the current constraints against the store. A constraint
// that is empty, or that covers every row currently in its table, contributes
// no filter: "select all" and "select none recorded" both mean the table does
// not restrict the query.
func NewPlan(s *store.Store, constraints Constraints) *Plan {
	plan := &Plan{
		Root:       s.Schema.Root(),
		Edges:      s.Schema.JoinEdges(),
		Filters:    []KeyFilter{},
		store:      s,
		generation: s.Generation(),
	}

	for _, table := range s.Schema.Linkable() {
		keys, ok := constraints[table.Name]
		if !ok {
			continue
		}
		if len(keys) == 0 || len(keys) == s.Table(table.Name).Len() {
			continue
		}

		allowed := pkg.Map[string, bool]{}
		for _, key := range keys {
			allowed.Set(store.FormatKey(key), true)
		}
		plan.Filters = append(plan.Filters, KeyFilter{table.Name, table.PrimaryKey, allowed})
	}

	return plan
}

// Qualify builds the aliased column name a table's column carries in the
// joined row set.
func Qualify(table, column string) string {
	return table + "_" + column
}
