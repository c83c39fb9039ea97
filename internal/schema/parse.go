package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Wire shape of one table descriptor as supplied by the host application.
// "relationship" accepts a single join object or a list of them, and the
// column set may be declared explicitly or left to be read off the first row.
type tableDescriptor struct {
	TableName    string          `json:"tableName"`
	Columns      []string        `json:"columns"`
	TableData    json.RawMessage `json:"tableData"`
	Options      tableOptions    `json:"options"`
	Relationship joinSpec        `json:"relationship"`
}

type tableOptions struct {
	Visible bool   `json:"visible"`
	Pk      string `json:"pk"`
}

type joinSpec []Join

func (j *joinSpec) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '[' {
		var joins []Join
		if err := json.Unmarshal(data, &joins); err != nil {
			return err
		}
		*j = joins
		return nil
	}
	var join Join
	if err := json.Unmarshal(data, &join); err != nil {
		return err
	}
	*j = joinSpec{join}
	return nil
}

// ParseTables decodes a JSON descriptor set into tables. The result still has
// to go through NewSchema for validation.
func ParseTables(data []byte) ([]*Table, error) {
	var descriptors []tableDescriptor
	if err := json.Unmarshal(data, &descriptors); err != nil {
		return nil, fmt.Errorf("parsing table descriptors: %w", err)
	}

	tables := make([]*Table, 0, len(descriptors))
	for _, d := range descriptors {
		table := &Table{
			Name:       d.TableName,
			Columns:    d.Columns,
			Visible:    d.Options.Visible,
			PrimaryKey: d.Options.Pk,
			Joins:      d.Relationship,
		}

		if len(d.TableData) > 0 {
			if err := json.Unmarshal(d.TableData, &table.Rows); err != nil {
				return nil, fmt.Errorf("parsing rows of table %s: %w", d.TableName, err)
			}
		}
		if table.Rows == nil {
			table.Rows = []Row{}
		}

		// json objects lose key order when decoded into maps, so when no
		// column set is declared it is read off the raw first row instead
		if len(table.Columns) == 0 && len(table.Rows) > 0 {
			columns, err := firstRowColumns(d.TableData)
			if err != nil {
				return nil, fmt.Errorf("reading columns of table %s: %w", d.TableName, err)
			}
			table.Columns = columns
		}

		tables = append(tables, table)
	}

	return tables, nil
}

// firstRowColumns extracts the key order of the first object in a JSON array.
func firstRowColumns(data json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	if err := expectDelim(dec, '['); err != nil {
		return nil, err
	}
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	columns := []string{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		columns = append(columns, key)

		if err := skipValue(dec); err != nil {
			return nil, err
		}
	}

	return columns, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); ok && (delim == '{' || delim == '[') {
		depth := 1
		for depth > 0 {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			if delim, ok := tok.(json.Delim); ok {
				switch delim {
				case '{', '[':
					depth++
				case '}', ']':
					depth--
				}
			}
		}
	}
	return nil
}
