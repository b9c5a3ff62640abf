package eeg

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"neurod/internal/apperr"
)

// LabelColumn is dropped from the features when present.
const LabelColumn = "y"

// Table is a parsed CSV upload: a header row and its data rows as text.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ParseCSV reads an RFC 4180 table with a header row. Every record must have
// as many fields as the header.
func ParseCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperr.InvalidInput("empty csv: no header row")
	}
	if err != nil {
		return nil, apperr.WrapInvalidInput(err, "parse csv")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	t := &Table{Columns: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.WrapInvalidInput(err, "parse csv")
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// Matrix is the numeric view of a table: row-major values with a parallel
// mask of cells that were empty or not finite.
type Matrix struct {
	Rows, Cols int
	Names      []string
	Values     []float64
	Missing    []bool
}

// At returns the value of row r, column c.
func (m *Matrix) At(r, c int) float64 { return m.Values[r*m.Cols+c] }

// Numeric extracts the feature columns: every column except LabelColumn whose
// non-empty cells all parse as numbers. Columns with no values at all are not
// features.
func (t *Table) Numeric() *Matrix {
	var cols []int
	for c, name := range t.Columns {
		if strings.TrimSpace(name) == LabelColumn {
			continue
		}
		if t.isNumeric(c) {
			cols = append(cols, c)
		}
	}
	m := &Matrix{Rows: len(t.Rows), Cols: len(cols)}
	m.Values = make([]float64, m.Rows*m.Cols)
	m.Missing = make([]bool, m.Rows*m.Cols)
	for _, c := range cols {
		m.Names = append(m.Names, t.Columns[c])
	}
	for r, row := range t.Rows {
		for j, c := range cols {
			v, ok := parseCell(row[c])
			i := r*m.Cols + j
			if !ok {
				m.Missing[i] = true
				continue
			}
			m.Values[i] = v
		}
	}
	return m
}

func (t *Table) isNumeric(c int) bool {
	seen := false
	for _, row := range t.Rows {
		s := strings.TrimSpace(row[c])
		if s == "" {
			continue
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

// parseCell reports false for empty, NaN and infinite cells.
func parseCell(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
