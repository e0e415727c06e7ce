// Package tabular reads CSV uploads into numeric feature matrices.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"model-trainer-service/internal/core/domain"
)

// Table is a rectangular CSV with trimmed column names.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Read decodes r as UTF-8, dropping a leading byte order mark, and parses it
// as CSV with a header row.
func Read(r io.Reader) (*Table, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(encoding.UTF8Validator))
	cr := csv.NewReader(decoded)
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		if errors.Is(err, encoding.ErrInvalidUTF8) {
			return nil, domain.ErrInvalidEncoding
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCSV, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: missing header row", domain.ErrInvalidCSV)
	}

	columns := make([]string, len(records[0]))
	for i, c := range records[0] {
		columns[i] = strings.TrimSpace(c)
	}
	return &Table{Columns: columns, Rows: records[1:]}, nil
}

func (t *Table) columnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Split separates the target column as labels and parses every other column
// as a numeric feature.
func (t *Table) Split(target string) ([][]float64, []string, error) {
	target = strings.TrimSpace(target)
	idx := t.columnIndex(target)
	if idx < 0 {
		return nil, nil, fmt.Errorf("%w: %q", domain.ErrTargetColumnNotFound, target)
	}
	if len(t.Rows) == 0 {
		return nil, nil, domain.ErrEmptyDataset
	}
	if len(t.Columns) < 2 {
		return nil, nil, fmt.Errorf("%w: no feature columns besides %q", domain.ErrInvalidCSV, target)
	}

	X := make([][]float64, len(t.Rows))
	y := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		features := make([]float64, 0, len(row)-1)
		for c, cell := range row {
			if c == idx {
				y[r] = strings.TrimSpace(cell)
				continue
			}
			v, err := parseCell(cell)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: column %q row %d: %v", domain.ErrInvalidCSV, t.Columns[c], r+1, err)
			}
			features = append(features, v)
		}
		X[r] = features
	}
	return X, y, nil
}

// Features parses every column as numeric, for prediction uploads.
func (t *Table) Features() ([][]float64, error) {
	if len(t.Rows) == 0 {
		return nil, domain.ErrEmptyDataset
	}
	X := make([][]float64, len(t.Rows))
	for r, row := range t.Rows {
		X[r] = make([]float64, len(row))
		for c, cell := range row {
			v, err := parseCell(cell)
			if err != nil {
				return nil, fmt.Errorf("%w: column %q row %d: %v", domain.ErrInvalidCSV, t.Columns[c], r+1, err)
			}
			X[r][c] = v
		}
	}
	return X, nil
}

func parseCell(cell string) (float64, error) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, errors.New("empty value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return v, nil
}
