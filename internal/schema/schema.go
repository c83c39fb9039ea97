package schema

import (
	"fmt"

	"github.com/NPLinker/nplinker/pkg"
)

// Maps column name to a row's value for that column
type Row = pkg.Map[string, any]

// Join declares an inner join between the declaring table and With,
// on equality of the Using column (which must exist in both tables).
type Join struct {
	With  string `json:"with"`
	Using string `json:"using"`
}

// Table describes one logical dashboard table: an explicit column set, in-order
// row data, and its place in the join graph. PrimaryKey is the column the table
// is selected and constrained on; tables that are never constrained may omit it.
type Table struct {
	Name       string
	Columns    []string
	Rows       []Row
	Visible    bool
	PrimaryKey string
	Joins      []Join
}

// JoinEdge is one resolved edge of the join graph, in declaration order.
type JoinEdge struct {
	Table string
	With  string
	Using string
}

type MalformedJoinGraphError struct {
	Table  string
	Reason string
}

func (e *MalformedJoinGraphError) Error() string {
	return fmt.Sprintf("malformed join graph at table %s: %s", e.Table, e.Reason)
}

type Schema struct {
	Tables *pkg.InsertSortMap[string, *Table]
	edges  []JoinEdge
}

// NewSchema validates the tables as a set and captures the join graph.
// The first table is the root; every visible table must be reachable from it
// through the declared joins, walking them in declaration order.
// All validation happens here, before any query is possible.
func NewSchema(tables []*Table) (*Schema, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("Schema must have at least one table")
	}

	s := &Schema{Tables: pkg.NewInsertSortMap[string, *Table]()}
	for _, table := range tables {
		if s.Tables.Has(table.Name) {
			return nil, fmt.Errorf("Duplicate table %s", table.Name)
		}
		if err := table.Validate(); err != nil {
			return nil, err
		}
		s.Tables.Push(table.Name, table)
	}

	if err := s.validateJoins(); err != nil {
		return nil, err
	}

	return s, nil
}

// Validate checks the table in isolation: a non-empty explicit column set,
// the primary key among the columns, and every row shaped exactly like the
// declared columns. Join validation needs the full set and lives on Schema.
func (t *Table) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("Table name cannot be empty")
	}

	if len(t.Columns) == 0 && len(t.Rows) > 0 {
		return fmt.Errorf("Table %s has rows but no declared columns", t.Name)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("Table %s has no columns", t.Name)
	}

	columns := pkg.Map[string, bool]{}
	for _, col := range t.Columns {
		if col == "" {
			return fmt.Errorf("Table %s has an empty column name", t.Name)
		}
		if columns.Has(col) {
			return fmt.Errorf("Duplicate column %s in table %s", col, t.Name)
		}
		columns.Set(col, true)
	}

	if t.PrimaryKey != "" && !columns.Has(t.PrimaryKey) {
		return fmt.Errorf("Primary key %s is not a column of table %s", t.PrimaryKey, t.Name)
	}

	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("Row %d in table %s has %d columns, expected %d",
				i, t.Name, len(row), len(t.Columns))
		}
		for col := range row {
			if !columns.Has(col) {
				return fmt.Errorf("Row %d in table %s has unknown column %s", i, t.Name, col)
			}
		}
	}

	return nil
}

func (t *Table) HasColumn(name string) bool {
	for _, col := range t.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// validateJoins checks every declared edge and walks them in declaration
// order from the root, the same order queries execute them in. An edge whose
// sides are both outside the tables joined so far can never be satisfied.
func (s *Schema) validateJoins() error {
	for _, name := range s.Tables.Sorted {
		table := s.Tables.Get(name)
		for _, join := range table.Joins {
			if join.With == table.Name {
				return &MalformedJoinGraphError{table.Name, "table joins to itself"}
			}
			if !s.Tables.Has(join.With) {
				return &MalformedJoinGraphError{table.Name,
					fmt.Sprintf("%s is not a valid table", join.With)}
			}
			other := s.Tables.Get(join.With)
			if !table.HasColumn(join.Using) {
				return &MalformedJoinGraphError{table.Name,
					fmt.Sprintf("join column %s does not exist in %s", join.Using, table.Name)}
			}
			if !other.HasColumn(join.Using) {
				return &MalformedJoinGraphError{table.Name,
					fmt.Sprintf("join column %s does not exist in %s", join.Using, join.With)}
			}
		}
	}

	joined := pkg.Map[string, bool]{s.Root(): true}
	edges := []JoinEdge{}
	for _, name := range s.Tables.Sorted {
		table := s.Tables.Get(name)
		for _, join := range table.Joins {
			if !joined.Has(table.Name) && !joined.Has(join.With) {
				return &MalformedJoinGraphError{table.Name,
					fmt.Sprintf("no path from %s to join %s with %s", s.Root(), table.Name, join.With)}
			}
			joined.Set(table.Name, true)
			joined.Set(join.With, true)
			edges = append(edges, JoinEdge{table.Name, join.With, join.Using})
		}
	}

	for _, table := range s.Visible() {
		if !joined.Has(table.Name) && table.Name != s.Root() {
			return &MalformedJoinGraphError{table.Name, "no declared path to the root table"}
		}
	}

	s.edges = edges
	return nil
}

// Root returns the name of the first declared table, which anchors every query.
func (s *Schema) Root() string { return s.Tables.Sorted[0] }

// JoinEdges returns the declared join edges in declaration order.
func (s *Schema) JoinEdges() []JoinEdge { return s.edges }

// Visible returns the visible tables in declaration order. Only these
// participate in projections and constraints; invisible tables still join.
func (s *Schema) Visible() []*Table {
	tables := []*Table{}
	for _, name := range s.Tables.Sorted {
		if table := s.Tables.Get(name); table.Visible {
			tables = append(tables, table)
		}
	}
	return tables
}

// Linkable returns the visible tables that declare a primary key: the tables
// selections can be recorded against and constraints derived from.
func (s *Schema) Linkable() []*Table {
	return pkg.Filter(s.Visible(), func(t *Table) bool { return t.PrimaryKey != "" })
}
