package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ErrEmptyTable is returned when an uploaded file decodes to zero rows.
var ErrEmptyTable = errors.New("table contains no rows")

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// nullLexemes are cell spellings that decode to a missing value,
// compared case-insensitively.
var nullLexemes = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"null": true,
}

// ReadCSV decodes a comma-separated upload into a Table. The first
// record is the header. Cells are typed by parse attempt: integer,
// then float, then string; recognized null lexemes become nulls.
// Payloads that are not valid UTF-8 are re-decoded as Windows-1252
// before parsing.
func ReadCSV(r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), raw)
		if err != nil {
			return nil, fmt.Errorf("decode upload charset: %w", err)
		}
		raw = decoded
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	table := NewTable(header)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		cells := make([]Value, len(record))
		for i, field := range record {
			cells[i] = parseCell(field)
		}
		table.AppendRow(cells)
	}
	return table, nil
}

func parseCell(field string) Value {
	trimmed := strings.TrimSpace(field)
	if nullLexemes[strings.ToLower(trimmed)] {
		return Null()
	}
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return Int(n)
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return Float(f)
	}
	return String(field)
}

// WriteCSV renders the table back to comma-separated text with the
// current column order.
func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns()); err != nil {
		return err
	}
	for r := 0; r < t.NumRows(); r++ {
		record := make([]string, 0, len(t.cols))
		for _, name := range t.cols {
			record = append(record, t.Cell(r, name).Text())
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// RequireColumns verifies that every named column is present after
// case folding, and that the table has at least one row. Callers use
// it to reject malformed uploads before scoring.
func RequireColumns(t *Table, names ...string) error {
	present := make(map[string]bool, len(t.cols))
	for _, col := range t.cols {
		present[strings.ToLower(col)] = true
	}
	for _, name := range names {
		if !present[strings.ToLower(name)] {
			return fmt.Errorf("missing required column: %s", name)
		}
	}
	if t.NumRows() == 0 {
		return ErrEmptyTable
	}
	return nil
}
