package store_test

import (
	"testing"

	"github.com/NPLinker/nplinker/internal/schema"
	. "github.com/NPLinker/nplinker/internal/store"
	"gotest.tools/assert"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := schema.NewSchema([]*schema.Table{
		{
			Name:       "bgc",
			Columns:    []string{"bgc_pk", "name"},
			Rows:       []schema.Row{{"bgc_pk": "BGC10", "name": "c"}, {"bgc_pk": "BGC1", "name": "a"}, {"bgc_pk": "BGC2", "name": "b"}},
			Visible:    true,
			PrimaryKey: "bgc_pk",
		},
		{
			Name:    "notes",
			Columns: []string{"text"},
			Rows:    []schema.Row{{"text": "unkeyed"}},
		},
	})
	assert.NilError(t, err)

	store, err := NewStore(s)
	assert.NilError(t, err)
	return store
}

func TestNewStore(t *testing.T) {
	store := newTestStore(t)
	assert.Equal(t, store.Table("bgc").Len(), 3)
	assert.Assert(t, store.Table("notes").Index == nil, "unkeyed table has no index")
}

func TestDuplicateKey(t *testing.T) {
	s, err := schema.NewSchema([]*schema.Table{{
		Name:       "a",
		Columns:    []string{"pk"},
		Rows:       []schema.Row{{"pk": 1}, {"pk": 1}},
		Visible:    true,
		PrimaryKey: "pk",
	}})
	assert.NilError(t, err)

	_, err = NewStore(s)
	assert.ErrorContains(t, err, "duplicate primary key 1 in table a")
}

func TestKeysNaturalOrder(t *testing.T) {
	store := newTestStore(t)
	keys := store.Table("bgc").Keys()
	assert.DeepEqual(t, keys, []any{"BGC1", "BGC2", "BGC10"})

	assert.Equal(t, len(store.Table("notes").Keys()), 0)
}

func TestFormatKey(t *testing.T) {
	assert.Equal(t, FormatKey(1), "1")
	assert.Equal(t, FormatKey("1"), "1")
	assert.Equal(t, FormatKey(1.0), "1")
}

func TestRebuild(t *testing.T) {
	store := newTestStore(t)
	gen := store.Generation()

	err := store.Rebuild(map[string][]schema.Row{
		"bgc":   {{"bgc_pk": "BGC5", "name": "e"}},
		"notes": {},
	})
	assert.NilError(t, err)
	assert.Equal(t, store.Table("bgc").Len(), 1)
	assert.DeepEqual(t, store.Table("bgc").Keys(), []any{"BGC5"})
	assert.Equal(t, store.Generation(), gen+1)

	t.Run("unknown table", func(t *testing.T) {
		err := store.Rebuild(map[string][]schema.Row{"nope": {}})
		assert.ErrorContains(t, err, "nope is not a valid table")
	})

	t.Run("missing table", func(t *testing.T) {
		err := store.Rebuild(map[string][]schema.Row{"bgc": {}})
		assert.ErrorContains(t, err, "missing rows for table notes")
	})

	t.Run("bad rows leave the store untouched", func(t *testing.T) {
		err := store.Rebuild(map[string][]schema.Row{
			"bgc":   {{"bogus": 1, "name": "x"}},
			"notes": {},
		})
		assert.ErrorContains(t, err, "unknown column bogus")
		assert.Equal(t, store.Table("bgc").Len(), 1)
	})
}
