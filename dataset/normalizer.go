package dataset

import (
	"math"
	"sort"
	"strings"
)

// droppedColumns are pruned from every batch before scoring. Missing
// ones are ignored.
var droppedColumns = []string{"unnamed:_0", "id", "income"}

// genderMap encodes textual gender columns. The "1"/"1.0" entries look
// inverted against the usual male=1 convention but match the training
// data this service scores against, so they stay as they are.
var genderMap = map[string]int64{
	"male":   0,
	"female": 1,
	"1.0":    0,
	"0.0":    1,
	"1":      0,
	"0":      1,
}

// binaryColumns get their missing values imputed and are cast back to
// integers when a batch arrives with them float-typed.
var binaryColumns = []string{
	"diabetes",
	"family_history",
	"smoking",
	"obesity",
	"alcohol_consumption",
	"previous_heart_problems",
	"medication_use",
}

// Normalize transforms a raw batch into the canonical feature layout:
// lower-cased column names, bookkeeping columns pruned, textual gender
// encoded, binary fields coerced to integers, and remaining numeric
// gaps filled with batch-local medians. It never fails; unresolvable
// cells are left for the scoring step to reject.
func Normalize(t *Table) *Table {
	out := foldColumnNames(t)

	for _, name := range droppedColumns {
		out = dropColumn(out, name)
	}

	encodeGender(out)
	coerceBinary(out)
	imputeNumeric(out)

	return out
}

// foldColumnNames lower-cases every column name. When two raw columns
// fold to the same name the later column's cells win and the earlier
// column's position is kept, which keeps the operation deterministic.
func foldColumnNames(t *Table) *Table {
	folded := make([]string, 0, len(t.cols))
	for _, name := range t.cols {
		folded = append(folded, strings.ToLower(name))
	}

	out := NewTable(folded)
	for r := 0; r < t.NumRows(); r++ {
		row := make([]Value, len(out.cols))
		for i, name := range folded {
			row[out.index[name]] = t.rows[r][i]
		}
		out.AppendRow(row)
	}
	return out
}

func dropColumn(t *Table, name string) *Table {
	idx, ok := t.index[name]
	if !ok {
		return t
	}
	kept := make([]string, 0, len(t.cols)-1)
	kept = append(kept, t.cols[:idx]...)
	kept = append(kept, t.cols[idx+1:]...)

	out := NewTable(kept)
	for _, row := range t.rows {
		cells := make([]Value, 0, len(kept))
		cells = append(cells, row[:idx]...)
		cells = append(cells, row[idx+1:]...)
		out.AppendRow(cells)
	}
	return out
}

// encodeGender maps a textual gender column through genderMap. Cells
// that miss the map, including nulls, become 0. A gender column that is
// already numeric is left alone.
func encodeGender(t *Table) {
	if !t.HasColumn("gender") || t.TypeOf("gender") != ColumnString {
		return
	}
	for r := 0; r < t.NumRows(); r++ {
		cell := t.Cell(r, "gender")
		code, ok := genderMap[strings.ToLower(cell.Text())]
		if !ok {
			code = 0
		}
		t.SetCell(r, "gender", Int(code))
	}
}

// coerceBinary fills missing values of float-typed binary fields with
// the batch median, rounds and casts to integer. Integer-typed columns
// pass through untouched even when values fall outside {0,1}.
func coerceBinary(t *Table) {
	for _, name := range binaryColumns {
		if !t.HasColumn(name) || t.TypeOf(name) != ColumnFloat {
			continue
		}
		med, ok := columnMedian(t, name)
		for r := 0; r < t.NumRows(); r++ {
			cell := t.Cell(r, name)
			v := cell.Num
			if cell.IsNull() {
				if !ok {
					continue
				}
				v = med
			}
			t.SetCell(r, name, Int(int64(math.RoundToEven(v))))
		}
	}
}

// imputeNumeric replaces nulls in every remaining numeric column with
// that column's batch-local median. Columns with no numeric values at
// all keep their nulls.
func imputeNumeric(t *Table) {
	for _, name := range t.cols {
		if t.TypeOf(name) != ColumnFloat {
			continue
		}
		med, ok := columnMedian(t, name)
		if !ok {
			continue
		}
		for r := 0; r < t.NumRows(); r++ {
			if t.Cell(r, name).IsNull() {
				t.SetCell(r, name, Float(med))
			}
		}
	}
}

// columnMedian computes the median over the column's non-null numeric
// cells. ok is false when no such cell exists.
func columnMedian(t *Table, name string) (float64, bool) {
	var values []float64
	for _, cell := range t.Column(name) {
		if cell.IsNumber() {
			values = append(values, cell.Num)
		}
	}
	if len(values) == 0 {
		return 0, false
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 0 {
		return (values[mid-1] + values[mid]) / 2, true
	}
	return values[mid], true
}
