package store

import (
	"fmt"

	"github.com/NPLinker/nplinker/internal/schema"
	"github.com/NPLinker/nplinker/pkg"
	sorted "github.com/tobshub/go-sortedmap"
)

type DuplicateKeyError struct {
	Table string
	Key   string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate primary key %s in table %s", e.Key, e.Table)
}

// FormatKey normalizes a key value for comparison. Key columns arrive as
// whatever the host decoded them to (string, int, float64 from json), so all
// key and join comparisons happen on the formatted text.
func FormatKey(v any) string {
	return fmt.Sprintf("%v", v)
}

// Table is one materialized relation: the descriptor, its rows in load order,
// and, when the descriptor declares a primary key, a unique index over it
// kept in natural key order.
type Table struct {
	Meta  *schema.Table
	Rows  []schema.Row
	Index *sorted.SortedMap[string, schema.Row]
}

func rowKeyLess(pk string) func(a, b schema.Row) bool {
	return func(a, b schema.Row) bool {
		return pkg.NaturalLess(FormatKey(a.Get(pk)), FormatKey(b.Get(pk)))
	}
}

func materialize(meta *schema.Table) (*Table, error) {
	table := &Table{Meta: meta, Rows: meta.Rows}
	if meta.PrimaryKey == "" {
		return table, nil
	}

	table.Index = sorted.New[string, schema.Row](len(meta.Rows), rowKeyLess(meta.PrimaryKey))
	for _, row := range meta.Rows {
		key := FormatKey(row.Get(meta.PrimaryKey))
		if !table.Index.Insert(key, row) {
			return nil, &DuplicateKeyError{meta.Name, key}
		}
	}
	return table, nil
}

func (t *Table) Len() int { return len(t.Rows) }

// Keys returns the table's distinct primary-key values in natural order.
func (t *Table) Keys() []any {
	keys := []any{}
	if t.Index == nil {
		return keys
	}

	iterCh, err := t.Index.IterCh()
	if err != nil {
		// only fails on an empty map
		return keys
	}
	defer iterCh.Close()

	for rec := range iterCh.Records() {
		keys = append(keys, rec.Val.Get(t.Meta.PrimaryKey))
	}
	return keys
}

// Store owns the in-memory relations. Nothing outside this package mutates
// them; displayed contents change only through data-source replacement.
type Store struct {
	Schema *schema.Schema

	tables     pkg.Map[string, *Table]
	generation uint64
}

func NewStore(s *schema.Schema) (*Store, error) {
	store := &Store{Schema: s, tables: pkg.Map[string, *Table]{}}
	for _, name := range s.Tables.Sorted {
		table, err := materialize(s.Tables.Get(name))
		if err != nil {
			return nil, err
		}
		store.tables.Set(name, table)
	}
	return store, nil
}

func (s *Store) Table(name string) *Table { return s.tables.Get(name) }

// Generation increments on every Rebuild. Query plans capture the generation
// they were built against and refuse to run against a newer one.
func (s *Store) Generation() uint64 { return s.generation }

// Rebuild replaces every table's contents in place after an external data
// reload. The schema itself is fixed: rows is keyed by table name and must
// cover exactly the declared tables, and every row set is validated against
// its table's columns before anything is swapped.
func (s *Store) Rebuild(rows map[string][]schema.Row) error {
	for name := range rows {
		if !s.tables.Has(name) {
			return fmt.Errorf("Rebuild: %s is not a valid table", name)
		}
	}

	rebuilt := pkg.Map[string, *Table]{}
	for _, name := range s.Schema.Tables.Sorted {
		data, ok := rows[name]
		if !ok {
			return fmt.Errorf("Rebuild: missing rows for table %s", name)
		}

		meta := *s.Schema.Tables.Get(name)
		meta.Rows = data
		if err := meta.Validate(); err != nil {
			return err
		}

		table, err := materialize(&meta)
		if err != nil {
			return err
		}
		rebuilt.Set(name, table)
	}

	for name, table := range rebuilt {
		s.tables.Set(name, table)
		s.Schema.Tables.Push(name, table.Meta)
	}
	s.generation++
	return nil
}
