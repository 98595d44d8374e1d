package data

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrFileFormat          = errors.New("file format error")
	ErrColumnNotFound      = errors.New("column not found")
	ErrUnsupportedStrategy = errors.New("unsupported missing-value strategy")
	ErrInvalidDataset      = errors.New("invalid dataset")
)

type ColumnKind int

const (
	Numeric ColumnKind = iota
	Categorical
)

func (k ColumnKind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numeric"
}

// naTokens mirrors the strings pandas reads as missing by default.
var naTokens = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true,
	"-1.#QNAN": true, "-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true,
	"<NA>": true, "N/A": true, "NA": true, "NULL": true, "NaN": true, "None": true,
	"n/a": true, "nan": true, "null": true,
}

var boolTokens = map[string]bool{
	"True": true, "False": true, "TRUE": true, "FALSE": true, "true": true, "false": true,
}

func IsMissing(cell string) bool {
	return naTokens[strings.TrimSpace(cell)]
}

// Column keeps the raw cells read from the file. Values holds the numeric view and is
// rewritten by encoding and scaling; Cells are never touched after loading.
type Column struct {
	Name    string
	Kind    ColumnKind
	Cells   []string
	Values  []float64
	Encoded bool
}

type Dataset struct {
	Columns []*Column
}

func (ds *Dataset) NumRows() int {
	if len(ds.Columns) == 0 {
		return 0
	}
	return len(ds.Columns[0].Cells)
}

func (ds *Dataset) NumColumns() int {
	return len(ds.Columns)
}

func (ds *Dataset) Names() []string {
	names := make([]string, len(ds.Columns))
	for i, col := range ds.Columns {
		names[i] = col.Name
	}
	return names
}

func (ds *Dataset) Column(name string) (*Column, bool) {
	for _, col := range ds.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return nil, false
}

func (ds *Dataset) HasColumn(name string) bool {
	_, ok := ds.Column(name)
	return ok
}

// Without returns a dataset sharing the remaining columns with ds.
func (ds *Dataset) Without(names ...string) *Dataset {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	out := &Dataset{}
	for _, col := range ds.Columns {
		if !skip[col.Name] {
			out.Columns = append(out.Columns, col)
		}
	}
	return out
}

// Select returns a dataset with the named columns in the given order.
func (ds *Dataset) Select(names ...string) (*Dataset, error) {
	out := &Dataset{Columns: make([]*Column, 0, len(names))}
	for _, n := range names {
		col, ok := ds.Column(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, n)
		}
		out.Columns = append(out.Columns, col)
	}
	return out, nil
}

func (ds *Dataset) Clone() *Dataset {
	out := &Dataset{Columns: make([]*Column, len(ds.Columns))}
	for i, col := range ds.Columns {
		c := &Column{
			Name:    col.Name,
			Kind:    col.Kind,
			Cells:   make([]string, len(col.Cells)),
			Encoded: col.Encoded,
		}
		copy(c.Cells, col.Cells)
		if col.Values != nil {
			c.Values = make([]float64, len(col.Values))
			copy(c.Values, col.Values)
		}
		out.Columns[i] = c
	}
	return out
}

// NewDataset builds a dataset from a header and row-major records and detects column kinds.
func NewDataset(header []string, records [][]string) *Dataset {
	ds := &Dataset{Columns: make([]*Column, len(header))}
	for j, name := range header {
		cells := make([]string, len(records))
		for i, rec := range records {
			cells[i] = rec[j]
		}
		ds.Columns[j] = newColumn(name, cells)
	}
	return ds
}

func newColumn(name string, cells []string) *Column {
	col := &Column{Name: name, Cells: cells, Kind: detectKind(cells)}
	if col.Kind == Numeric {
		col.Values = parseValues(cells)
	}
	return col
}

func detectKind(cells []string) ColumnKind {
	for _, cell := range cells {
		if IsMissing(cell) {
			continue
		}
		v := strings.TrimSpace(cell)
		if boolTokens[v] {
			return Categorical
		}
		// "NAN" and friends parse as floats but are text to a reader of the file
		if f, err := strconv.ParseFloat(v, 64); err != nil || math.IsNaN(f) {
			return Categorical
		}
	}
	return Numeric
}

func parseValues(cells []string) []float64 {
	values := make([]float64, len(cells))
	for i, cell := range cells {
		if IsMissing(cell) {
			values[i] = math.NaN()
			continue
		}
		values[i], _ = strconv.ParseFloat(strings.TrimSpace(cell), 64)
	}
	return values
}

// InferTargetColumn picks the first column with a conventional target name, falling back
// to the last column.
func InferTargetColumn(ds *Dataset) string {
	candidates := map[string]bool{"target": true, "label": true, "class": true, "output": true, "y": true}
	for _, col := range ds.Columns {
		if candidates[strings.ToLower(col.Name)] {
			return col.Name
		}
	}
	if len(ds.Columns) == 0 {
		return ""
	}
	return ds.Columns[len(ds.Columns)-1].Name
}
