package data

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ColumnProfile describes one column of a raw dataset. Numeric statistics cover the finite
// non-missing values only and are nil when there are none.
type ColumnProfile struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Missing  int      `json:"missing"`
	Distinct int      `json:"distinct"`
	Top      string   `json:"top,omitempty"`
	TopCount int      `json:"top_count,omitempty"`
	Mean     *float64 `json:"mean,omitempty"`
	Std      *float64 `json:"std,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
}

// Profile is an exploratory summary of a dataset as loaded, before missing rows are dropped.
type Profile struct {
	Rows         int             `json:"rows"`
	Columns      int             `json:"columns"`
	MissingCells int             `json:"missing_cells"`
	CompleteRows int             `json:"complete_rows"`
	Target       string          `json:"inferred_target"`
	ColumnStats  []ColumnProfile `json:"column_stats"`
}

// Profile summarises every column of ds. Std is the sample standard deviation.
func (dv *DataValidator) Profile(ds *Dataset) *Profile {
	p := &Profile{
		Rows:        ds.NumRows(),
		Columns:     ds.NumColumns(),
		Target:      InferTargetColumn(ds),
		ColumnStats: make([]ColumnProfile, 0, ds.NumColumns()),
	}

	incomplete := make([]bool, ds.NumRows())
	for _, col := range ds.Columns {
		cp := profileColumn(col)
		for i, cell := range col.Cells {
			if IsMissing(cell) {
				incomplete[i] = true
			}
		}
		p.MissingCells += cp.Missing
		p.ColumnStats = append(p.ColumnStats, cp)
	}
	for _, bad := range incomplete {
		if !bad {
			p.CompleteRows++
		}
	}
	return p
}

func profileColumn(col *Column) ColumnProfile {
	cp := ColumnProfile{Name: col.Name, Kind: col.Kind.String()}

	counts := make(map[string]int)
	for _, cell := range col.Cells {
		if IsMissing(cell) {
			cp.Missing++
			continue
		}
		counts[cell]++
	}
	cp.Distinct = len(counts)
	for value, n := range counts {
		if n > cp.TopCount || (n == cp.TopCount && value < cp.Top) {
			cp.Top, cp.TopCount = value, n
		}
	}

	if col.Kind != Numeric {
		return cp
	}

	finite := make([]float64, 0, len(col.Values))
	for _, v := range col.Values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return cp
	}

	mean := stat.Mean(finite, nil)
	lo, hi := floats.Min(finite), floats.Max(finite)
	cp.Mean, cp.Min, cp.Max = &mean, &lo, &hi
	if len(finite) > 1 {
		std := stat.StdDev(finite, nil)
		cp.Std = &std
	}
	return cp
}
