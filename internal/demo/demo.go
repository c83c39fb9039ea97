package demo

import (
	"fmt"
	"math/rand"

	"github.com/NPLinker/nplinker/internal/schema"
)

// NA marks the placeholder row every demo table carries for unlinked items.
const NA = "-"

// Tables generates the example molfam -> spectra -> bgc -> gcf dataset: four
// visible tables chained through invisible link tables, every item linked to
// something (falling back to the NA row), sized n items per spectra/bgc table
// and n/2 for the family tables. Deterministic for a given seed.
func Tables(n int, seed int64) []*schema.Table {
	rng := rand.New(rand.NewSource(seed))
	if n < 2 {
		n = 2
	}

	molfam := dataRows("molfam", n/2, rng)
	spec := dataRows("spec", n, rng)
	bgc := dataRows("bgc", n, rng)
	gcf := dataRows("gcf", n/2, rng)

	mfSpectra := linkRows(molfam, spec, "molfam_pk", "spec_pk", chainPairs(n/2, n))
	spectraBgc := linkRows(spec, bgc, "spec_pk", "bgc_pk", chainPairs(n, n))
	bgcGcf := linkRows(bgc, gcf, "bgc_pk", "gcf_pk", chainPairs(n, n/2))

	return []*schema.Table{
		{
			Name:       "molfam_table",
			Columns:    dataColumns("molfam"),
			Rows:       molfam,
			Visible:    true,
			PrimaryKey: "molfam_pk",
			Joins:      []schema.Join{{With: "mf_spectra", Using: "molfam_pk"}},
		},
		{
			Name:    "mf_spectra",
			Columns: []string{"molfam_pk", "spec_pk"},
			Rows:    mfSpectra,
			Joins:   []schema.Join{{With: "spec_table", Using: "spec_pk"}},
		},
		{
			Name:       "spec_table",
			Columns:    dataColumns("spec"),
			Rows:       spec,
			Visible:    true,
			PrimaryKey: "spec_pk",
			Joins:      []schema.Join{{With: "spectra_bgc", Using: "spec_pk"}},
		},
		{
			Name:    "spectra_bgc",
			Columns: []string{"spec_pk", "bgc_pk"},
			Rows:    spectraBgc,
			Joins:   []schema.Join{{With: "bgc_table", Using: "bgc_pk"}},
		},
		{
			Name:       "bgc_table",
			Columns:    dataColumns("bgc"),
			Rows:       bgc,
			Visible:    true,
			PrimaryKey: "bgc_pk",
			Joins:      []schema.Join{{With: "bgc_gcf", Using: "bgc_pk"}},
		},
		{
			Name:    "bgc_gcf",
			Columns: []string{"bgc_pk", "gcf_pk"},
			Rows:    bgcGcf,
			Joins:   []schema.Join{{With: "gcf_table", Using: "gcf_pk"}},
		},
		{
			Name:       "gcf_table",
			Columns:    dataColumns("gcf"),
			Rows:       gcf,
			Visible:    true,
			PrimaryKey: "gcf_pk",
		},
	}
}

func dataColumns(label string) []string {
	return []string{label + "_pk", "x1", "x2", "x3"}
}

// dataRows generates n random items labeled "<label>_1".."<label>_n", with
// the NA placeholder row first.
func dataRows(label string, n int, rng *rand.Rand) []schema.Row {
	pk := label + "_pk"
	rows := []schema.Row{{pk: NA, "x1": NA, "x2": NA, "x3": NA}}
	for i := 1; i <= n; i++ {
		rows = append(rows, schema.Row{
			pk:   fmt.Sprintf("%s_%d", label, i),
			"x1": 1 + rng.Intn(99),
			"x2": 1 + rng.Intn(99),
			"x3": 1 + rng.Intn(99),
		})
	}
	return rows
}

// chainPairs links right item i to left item ((i-1) mod nLeft)+1, so every
// right item has a left partner and vice versa when nRight >= nLeft.
func chainPairs(nLeft, nRight int) [][2]int {
	pairs := [][2]int{}
	for i := 1; i <= nRight; i++ {
		pairs = append(pairs, [2]int{(i-1)%nLeft + 1, i})
	}
	return pairs
}

// linkRows materializes a link table from 1-based index pairs into the left
// and right row sets (index 0 is each table's NA placeholder). Rows on either
// side that no pair mentions get linked to NA, so joins never drop them.
func linkRows(left, right []schema.Row, leftKey, rightKey string, pairs [][2]int) []schema.Row {
	rows := []schema.Row{}
	linkedLeft := map[int]bool{}
	linkedRight := map[int]bool{}

	for _, pair := range pairs {
		rows = append(rows, schema.Row{
			leftKey:  left[pair[0]].Get(leftKey),
			rightKey: right[pair[1]].Get(rightKey),
		})
		linkedLeft[pair[0]] = true
		linkedRight[pair[1]] = true
	}

	for i := 1; i < len(left); i++ {
		if !linkedLeft[i] {
			rows = append(rows, schema.Row{leftKey: left[i].Get(leftKey), rightKey: NA})
		}
	}
	for i := 1; i < len(right); i++ {
		if !linkedRight[i] {
			rows = append(rows, schema.Row{leftKey: NA, rightKey: right[i].Get(rightKey)})
		}
	}

	// the NA rows themselves join to each other
	rows = append(rows, schema.Row{leftKey: NA, rightKey: NA})
	return rows
}
