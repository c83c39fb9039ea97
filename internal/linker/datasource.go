package linker

import (
	"github.com/NPLinker/nplinker/internal/schema"
	"github.com/NPLinker/nplinker/pkg"
)

// Maps column name to that column's values, all columns equal length
type ColumnData = pkg.Map[string, []any]

// DataSource is the opaque column-oriented container a UI table widget is
// bound to. The linker only ever reads the current data (to resolve a
// selected row's key) and replaces it wholesale; the container itself is
// owned by the host UI layer.
type DataSource interface {
	Data() ColumnData
	SetData(ColumnData)
}

// TableSource is a plain in-memory DataSource. SetData invokes the change
// callback, which is how a host signals its widget to redraw.
type TableSource struct {
	data     ColumnData
	onChange func(ColumnData)
}

func NewTableSource(data ColumnData) *TableSource {
	return &TableSource{data: data}
}

func (s *TableSource) Data() ColumnData { return s.data }

func (s *TableSource) SetData(data ColumnData) {
	s.data = data
	if s.onChange != nil {
		s.onChange(data)
	}
}

func (s *TableSource) OnChange(f func(ColumnData)) { s.onChange = f }

// ColumnDataFromRows pivots row-oriented records into the column-oriented
// payload shape data sources hold, preserving row order.
func ColumnDataFromRows(columns []string, rows []schema.Row) ColumnData {
	data := ColumnData{}
	for _, col := range columns {
		values := make([]any, 0, len(rows))
		for _, row := range rows {
			values = append(values, row.Get(col))
		}
		data.Set(col, values)
	}
	return data
}
