package query_test

import (
	"testing"

	. "github.com/NPLinker/nplinker/internal/query"
	"github.com/NPLinker/nplinker/internal/schema"
	"github.com/NPLinker/nplinker/internal/store"
	"gotest.tools/assert"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := schema.NewSchema([]*schema.Table{
		{
			Name:    "genes",
			Columns: []string{"id", "name"},
			Rows: []schema.Row{
				{"id": "1", "name": "geneA"},
				{"id": "2", "name": "geneB"},
				{"id": "3", "name": "geneC"},
			},
			Visible:    true,
			PrimaryKey: "id",
			Joins:      []schema.Join{{With: "links", Using: "id"}},
		},
		{
			Name:    "links",
			Columns: []string{"id", "spectrum_id"},
			Rows: []schema.Row{
				{"id": "1", "spectrum_id": "S2"},
				{"id": "1", "spectrum_id": "S10"},
				{"id": "2", "spectrum_id": "S1"},
				{"id": "3", "spectrum_id": "S1"},
			},
			Joins: []schema.Join{{With: "spectra", Using: "spectrum_id"}},
		},
		{
			Name:    "spectra",
			Columns: []string{"spectrum_id", "label"},
			Rows: []schema.Row{
				{"spectrum_id": "S1", "label": "x"},
				{"spectrum_id": "S2", "label": "y"},
				{"spectrum_id": "S10", "label": "z"},
			},
			Visible:    true,
			PrimaryKey: "spectrum_id",
		},
	})
	assert.NilError(t, err)

	st, err := store.NewStore(s)
	assert.NilError(t, err)
	return st
}

func projectedKeys(rows []schema.Row, pk string) []any {
	keys := []any{}
	for _, row := range rows {
		keys = append(keys, row.Get(pk))
	}
	return keys
}

func TestExecuteUnconstrained(t *testing.T) {
	st := newTestStore(t)
	plan := NewPlan(st, Constraints{})

	assert.Equal(t, len(plan.Filters), 0)

	rows, err := plan.Execute()
	assert.NilError(t, err)
	// one joined row per link row
	assert.Equal(t, len(rows), 4)

	// joined columns are qualified by table name
	assert.Equal(t, store.FormatKey(rows[0].Get(Qualify("genes", "id"))), "1")
	assert.Assert(t, rows[0].Has(Qualify("spectra", "label")))
}

func TestExecuteConstrained(t *testing.T) {
	st := newTestStore(t)
	plan := NewPlan(st, Constraints{"genes": {"1"}})

	rows, err := plan.Execute()
	assert.NilError(t, err)
	assert.Equal(t, len(rows), 2)

	spectra := plan.Project("spectra", rows)
	assert.DeepEqual(t, projectedKeys(spectra, "spectrum_id"), []any{"S2", "S10"})

	genes := plan.Project("genes", rows)
	assert.DeepEqual(t, projectedKeys(genes, "id"), []any{"1"})
}

func TestConstraintSkipRules(t *testing.T) {
	st := newTestStore(t)

	t.Run("empty list means unconstrained", func(t *testing.T) {
		plan := NewPlan(st, Constraints{"genes": {}})
		assert.Equal(t, len(plan.Filters), 0)
	})

	t.Run("full cover means unconstrained", func(t *testing.T) {
		plan := NewPlan(st, Constraints{"genes": {"1", "2", "3"}})
		assert.Equal(t, len(plan.Filters), 0)
	})

	t.Run("invisible tables are never constrained", func(t *testing.T) {
		plan := NewPlan(st, Constraints{"links": {"1"}})
		assert.Equal(t, len(plan.Filters), 0)
	})
}

func TestExecuteNoMatches(t *testing.T) {
	st := newTestStore(t)
	plan := NewPlan(st, Constraints{"genes": {"does-not-exist"}})

	rows, err := plan.Execute()
	assert.NilError(t, err)
	assert.Equal(t, len(rows), 0, "non-matching constraint empties the join system-wide")

	assert.Equal(t, len(plan.Project("spectra", rows)), 0)
}

func TestKeyComparisonIsTextual(t *testing.T) {
	st := newTestStore(t)
	// int constraint against string-valued keys still matches
	plan := NewPlan(st, Constraints{"genes": {1}})

	rows, err := plan.Execute()
	assert.NilError(t, err)
	assert.Equal(t, len(rows), 2)
}

func TestProjectDistinctAndSorted(t *testing.T) {
	st := newTestStore(t)
	plan := NewPlan(st, Constraints{})

	rows, err := plan.Execute()
	assert.NilError(t, err)

	// genes 1 appears in two joined rows but projects once; spectra sort
	// naturally: S1, S2, S10 rather than S1, S10, S2
	genes := plan.Project("genes", rows)
	assert.DeepEqual(t, projectedKeys(genes, "id"), []any{"1", "2", "3"})

	spectra := plan.Project("spectra", rows)
	assert.DeepEqual(t, projectedKeys(spectra, "spectrum_id"), []any{"S1", "S2", "S10"})
}

func TestExecuteMultiJoinTable(t *testing.T) {
	// one link table joining out to two data tables, the many-to-many shape
	s, err := schema.NewSchema([]*schema.Table{
		{
			Name:    "links",
			Columns: []string{"gene_id", "spectrum_id"},
			Rows: []schema.Row{
				{"gene_id": "1", "spectrum_id": "S1"},
				{"gene_id": "2", "spectrum_id": "S2"},
			},
			Joins: []schema.Join{
				{With: "genes", Using: "gene_id"},
				{With: "spectra", Using: "spectrum_id"},
			},
		},
		{
			Name:    "genes",
			Columns: []string{"gene_id", "name"},
			Rows: []schema.Row{
				{"gene_id": "1", "name": "geneA"},
				{"gene_id": "2", "name": "geneB"},
			},
			Visible:    true,
			PrimaryKey: "gene_id",
		},
		{
			Name:    "spectra",
			Columns: []string{"spectrum_id", "label"},
			Rows: []schema.Row{
				{"spectrum_id": "S1", "label": "x"},
				{"spectrum_id": "S2", "label": "y"},
			},
			Visible:    true,
			PrimaryKey: "spectrum_id",
		},
	})
	assert.NilError(t, err)

	st, err := store.NewStore(s)
	assert.NilError(t, err)

	plan := NewPlan(st, Constraints{"genes": {"1"}})
	rows, err := plan.Execute()
	assert.NilError(t, err)
	assert.Equal(t, len(rows), 1)

	assert.DeepEqual(t, projectedKeys(plan.Project("spectra", rows), "spectrum_id"), []any{"S1"})
	assert.DeepEqual(t, projectedKeys(plan.Project("genes", rows), "gene_id"), []any{"1"})
}

func TestExecuteCyclicEdge(t *testing.T) {
	// a second edge between two already-joined tables doesn't bring in new
	// rows, it filters the accumulated ones down to where both sides agree
	s, err := schema.NewSchema([]*schema.Table{
		{
			Name:       "genes",
			Columns:    []string{"id", "strain"},
			Rows:       []schema.Row{{"id": "1", "strain": "a"}},
			Visible:    true,
			PrimaryKey: "id",
			Joins:      []schema.Join{{With: "links", Using: "id"}},
		},
		{
			Name:    "links",
			Columns: []string{"id", "strain"},
			Rows: []schema.Row{
				{"id": "1", "strain": "a"},
				{"id": "1", "strain": "b"},
			},
			Joins: []schema.Join{{With: "genes", Using: "strain"}},
		},
	})
	assert.NilError(t, err)

	st, err := store.NewStore(s)
	assert.NilError(t, err)

	plan := NewPlan(st, Constraints{})
	rows, err := plan.Execute()
	assert.NilError(t, err)
	assert.Equal(t, len(rows), 1)
	assert.Equal(t, store.FormatKey(rows[0].Get(Qualify("links", "strain"))), "a")
}

func TestStalePlan(t *testing.T) {
	st := newTestStore(t)
	plan := NewPlan(st, Constraints{})

	err := st.Rebuild(map[string][]schema.Row{
		"genes":   {{"id": "1", "name": "geneA"}},
		"links":   {{"id": "1", "spectrum_id": "S1"}},
		"spectra": {{"spectrum_id": "S1", "label": "x"}},
	})
	assert.NilError(t, err)

	_, err = plan.Execute()
	assert.ErrorContains(t, err, "stale query plan")

	rows, err := NewPlan(st, Constraints{}).Execute()
	assert.NilError(t, err)
	assert.Equal(t, len(rows), 1)
}
