// Package dataset holds the tabular input model and the feature
// normalization pipeline that prepares raw patient records for scoring.
package dataset

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Kind describes what a single cell holds.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindString
)

// Value is one heterogeneous cell. Number cells remember whether their
// source representation was integral, which drives column typing the
// same way a delimited-text reader would infer dtypes.
type Value struct {
	Kind    Kind
	Num     float64
	Str     string
	Integer bool
}

func Null() Value           { return Value{Kind: KindNull} }
func Int(v int64) Value     { return Value{Kind: KindNumber, Num: float64(v), Integer: true} }
func Float(v float64) Value { return Value{Kind: KindNumber, Num: v} }
func String(s string) Value { return Value{Kind: KindString, Str: s} }

func (v Value) IsNull() bool   { return v.Kind == KindNull }
func (v Value) IsNumber() bool { return v.Kind == KindNumber }

// Text renders the cell the way a dynamically typed column would
// stringify it: integral numbers without a fraction, floats as parsed.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		if v.Integer {
			return strconv.FormatInt(int64(v.Num), 10)
		}
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	default:
		return ""
	}
}

// Interface returns the cell as a plain Go value for JSON responses.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		if v.Integer {
			return int64(v.Num)
		}
		return v.Num
	default:
		return nil
	}
}

// ColumnType is the inferred type of a whole column.
type ColumnType int

const (
	// ColumnInt means every cell is an integral number and none are null.
	ColumnInt ColumnType = iota
	// ColumnFloat means all cells are numeric but at least one is
	// fractional or null.
	ColumnFloat
	// ColumnString means at least one non-null cell is textual.
	ColumnString
)

// Table is an ordered set of named columns over heterogeneous cells.
// Row and column order are stable; column names are unique.
type Table struct {
	cols  []string
	index map[string]int
	rows  [][]Value
}

// NewTable creates an empty table with the given column order. A name
// repeated in cols keeps its first position; later occurrences are
// collapsed onto it.
func NewTable(cols []string) *Table {
	t := &Table{index: make(map[string]int, len(cols))}
	for _, name := range cols {
		if _, ok := t.index[name]; ok {
			continue
		}
		t.index[name] = len(t.cols)
		t.cols = append(t.cols, name)
	}
	return t
}

// AppendRow adds a row. Short rows are padded with nulls, long rows
// truncated to the column count.
func (t *Table) AppendRow(cells []Value) {
	row := make([]Value, len(t.cols))
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = Null()
		}
	}
	t.rows = append(t.rows, row)
}

func (t *Table) Columns() []string { return append([]string(nil), t.cols...) }

func (t *Table) NumRows() int { return len(t.rows) }

func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Cell returns the value at (row, column name). Unknown columns read
// as null.
func (t *Table) Cell(row int, name string) Value {
	idx, ok := t.index[name]
	if !ok {
		return Null()
	}
	return t.rows[row][idx]
}

// SetCell overwrites the value at (row, column name). Unknown columns
// are ignored.
func (t *Table) SetCell(row int, name string, v Value) {
	if idx, ok := t.index[name]; ok {
		t.rows[row][idx] = v
	}
}

// Column copies out all cells of one column, top to bottom.
func (t *Table) Column(name string) []Value {
	idx, ok := t.index[name]
	if !ok {
		return nil
	}
	out := make([]Value, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[idx]
	}
	return out
}

// TypeOf infers the column's type: textual beats numeric, and a single
// null or fractional cell demotes an otherwise integral column to float.
func (t *Table) TypeOf(name string) ColumnType {
	idx, ok := t.index[name]
	if !ok {
		return ColumnFloat
	}
	typ := ColumnInt
	for _, row := range t.rows {
		switch cell := row[idx]; cell.Kind {
		case KindString:
			return ColumnString
		case KindNull:
			if typ == ColumnInt {
				typ = ColumnFloat
			}
		case KindNumber:
			if !cell.Integer && typ == ColumnInt {
				typ = ColumnFloat
			}
		}
	}
	return typ
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	out := NewTable(t.cols)
	for _, row := range t.rows {
		out.AppendRow(append([]Value(nil), row...))
	}
	return out
}

// FromRecord builds a one-row table from a decoded JSON object. Keys
// are ordered alphabetically so repeated calls are deterministic.
// Numeric values decoded as json.Number keep their integer/float
// distinction; plain float64 values are treated as integral when they
// carry no fraction.
func FromRecord(record map[string]interface{}) *Table {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := NewTable(keys)
	row := make([]Value, len(keys))
	for i, k := range keys {
		row[i] = fromJSONValue(record[k])
	}
	t.AppendRow(row)
	return t
}

func fromJSONValue(raw interface{}) Value {
	switch v := raw.(type) {
	case nil:
		return Null()
	case bool:
		if v {
			return Int(1)
		}
		return Int(0)
	case string:
		return String(v)
	case json.Number:
		s := v.String()
		if !strings.ContainsAny(s, ".eE") {
			if n, err := v.Int64(); err == nil {
				return Int(n)
			}
		}
		f, err := v.Float64()
		if err != nil {
			return String(s)
		}
		return Float(f)
	case float64:
		if v == float64(int64(v)) {
			return Int(int64(v))
		}
		return Float(v)
	case int:
		return Int(int64(v))
	case int64:
		return Int(v)
	default:
		return Null()
	}
}
