package linker

import (
	"fmt"
	"sort"

	"github.com/NPLinker/nplinker/internal/query"
	"github.com/NPLinker/nplinker/internal/schema"
	"github.com/NPLinker/nplinker/internal/store"
	"github.com/NPLinker/nplinker/pkg"
)

// Selection is one user pick: the key value resolved from the displayed row
// and the row index it was resolved at.
type Selection struct {
	KeyValue any
	RowIndex int
}

// Linker tracks per-table user selections for one dashboard session, derives
// key constraints from them, runs the joined query and fans the per-table
// projections back out to the bound data sources.
//
// Operations run synchronously inside the host's event turn; a Linker is not
// safe for concurrent use. Callers must run Query before Publish.
type Linker struct {
	store *store.Store

	// table name -> picks in the order they were added
	selections pkg.Map[string, []Selection]
	// table name -> full distinct key set, captured at construction;
	// a table with no active selections falls back to this
	defaultConstraints query.Constraints

	queryResult pkg.Map[string, []schema.Row]
}

func New(s *store.Store) *Linker {
	l := &Linker{store: s}
	l.reset()
	return l
}

// Schema returns the table schema this linker operates over.
func (l *Linker) Schema() *schema.Schema { return l.store.Schema }

func (l *Linker) reset() {
	l.selections = pkg.Map[string, []Selection]{}
	l.defaultConstraints = query.Constraints{}
	l.queryResult = nil
	for _, table := range l.store.Schema.Linkable() {
		l.selections.Set(table.Name, []Selection{})
		l.defaultConstraints[table.Name] = l.store.Table(table.Name).Keys()
	}
}

// DefaultConstraint returns the full key set a table falls back to when it
// has no selections.
func (l *Linker) DefaultConstraint(table string) []any {
	return l.defaultConstraints[table]
}

func (l *Linker) NumSelected(table string) int {
	return len(l.selections.Get(table))
}

func (l *Linker) TotalSelected() int {
	total := 0
	for _, selections := range l.selections {
		total += len(selections)
	}
	return total
}

// AddSelection records that the user picked rowIndex in the table's widget,
// resolving the key value from the bound data source's current contents.
// Only tables with a declared primary key can be selected in; a bad row
// index is a caller bug and surfaces as an error.
func (l *Linker) AddSelection(tableName string, rowIndex int, source DataSource) error {
	if !l.selections.Has(tableName) {
		return fmt.Errorf("Table %s is not selectable: no primary key declared", tableName)
	}

	keyColumn := l.store.Table(tableName).Meta.PrimaryKey
	keys := source.Data().Get(keyColumn)
	if rowIndex < 0 || rowIndex >= len(keys) {
		return fmt.Errorf("Row index %d out of range for table %s", rowIndex, tableName)
	}

	l.selections.Set(tableName, append(l.selections.Get(tableName), Selection{keys[rowIndex], rowIndex}))
	return nil
}

// ClearSelections puts the table back into its unselected state, where it no
// longer restricts the joined result.
func (l *Linker) ClearSelections(tableName string) error {
	if !l.selections.Has(tableName) {
		return fmt.Errorf("Table %s is not selectable: no primary key declared", tableName)
	}
	l.selections.Set(tableName, []Selection{})
	return nil
}

// Constraints derives the effective constraint set: selected tables restrict
// to exactly the chosen keys in the order added, unselected tables fall back
// to their default (full) key set.
func (l *Linker) Constraints() query.Constraints {
	constraints := query.Constraints{}
	for table, selections := range l.selections {
		if len(selections) == 0 {
			constraints[table] = l.defaultConstraints[table]
			continue
		}
		keys := make([]any, 0, len(selections))
		for _, s := range selections {
			keys = append(keys, s.KeyValue)
		}
		constraints[table] = keys
	}
	return constraints
}

// Query executes one joined query under the current constraints and stores
// every visible table's projection as the pending query result. It is a pure
// function of the selection state and table contents: unchanged state gives
// an identical result.
func (l *Linker) Query() error {
	plan := query.NewPlan(l.store, l.Constraints())
	joined, err := plan.Execute()
	if err != nil {
		return err
	}

	result := pkg.Map[string, []schema.Row]{}
	for _, table := range l.store.Schema.Visible() {
		result.Set(table.Name, plan.Project(table.Name, joined))
	}
	l.queryResult = result
	return nil
}

// Result returns the pending query result for a table, or nil before the
// first Query.
func (l *Linker) Result(table string) []schema.Row {
	if l.queryResult == nil {
		return nil
	}
	return l.queryResult.Get(table)
}

// Publish fans the pending query result out to the bound data sources. With
// no selections anywhere, every table is reset from the result. Otherwise
// only tables without selections of their own are updated: a table the user
// is selecting in is the filter source, and rewriting its rows out from
// under the user would feed back into the selection.
func (l *Linker) Publish(sources map[string]DataSource) error {
	if l.queryResult == nil {
		return fmt.Errorf("Publish called before Query")
	}

	total := l.TotalSelected()
	for _, table := range l.store.Schema.Visible() {
		if total > 0 && l.NumSelected(table.Name) > 0 {
			continue
		}
		source, ok := sources[table.Name]
		if !ok {
			return fmt.Errorf("No data source bound for table %s", table.Name)
		}
		source.SetData(ColumnDataFromRows(table.Columns, l.queryResult.Get(table.Name)))
	}
	return nil
}

// Refresh replaces the table contents after an external data reload and
// re-derives the default constraints, which are otherwise captured once and
// go stale. All selections and the pending result are dropped.
func (l *Linker) Refresh(rows map[string][]schema.Row) error {
	if err := l.store.Rebuild(rows); err != nil {
		return err
	}
	l.reset()
	return nil
}

// Sources builds a fresh data source per visible table from the store's
// current contents, in natural key order. Hosts that do not supply their own
// containers (tests, the demo server) start sessions from these.
func (l *Linker) Sources() map[string]DataSource {
	sources := map[string]DataSource{}
	for _, table := range l.store.Schema.Visible() {
		rows := l.store.Table(table.Name).Rows
		if table.PrimaryKey != "" {
			rows = sortedRows(rows, table.PrimaryKey)
		}
		sources[table.Name] = NewTableSource(ColumnDataFromRows(table.Columns, rows))
	}
	return sources
}

func sortedRows(rows []schema.Row, pk string) []schema.Row {
	out := make([]schema.Row, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		return pkg.NaturalLess(store.FormatKey(out[i].Get(pk)), store.FormatKey(out[j].Get(pk)))
	})
	return out
}
