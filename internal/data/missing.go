package data

import "fmt"

const StrategyDrop = "drop"

// HandleMissingValues applies the configured strategy. Only dropping rows is supported.
func HandleMissingValues(ds *Dataset, strategy string) (*Dataset, error) {
	switch strategy {
	case "", StrategyDrop:
		return DropMissing(ds), nil
	default:
		return nil, fmt.Errorf("%w: %q (only %q is supported)", ErrUnsupportedStrategy, strategy, StrategyDrop)
	}
}

// DropMissing removes, in place, every row that has a missing cell in any column.
// Column kinds are kept as detected at load time.
func DropMissing(ds *Dataset) *Dataset {
	n := ds.NumRows()
	keep := make([]int, 0, n)

	for i := 0; i < n; i++ {
		missing := false
		for _, col := range ds.Columns {
			if IsMissing(col.Cells[i]) {
				missing = true
				break
			}
		}
		if !missing {
			keep = append(keep, i)
		}
	}

	if len(keep) == n {
		return ds
	}

	for _, col := range ds.Columns {
		cells := make([]string, len(keep))
		for k, i := range keep {
			cells[k] = col.Cells[i]
		}
		if col.Values != nil {
			values := make([]float64, len(keep))
			for k, i := range keep {
				values[k] = col.Values[i]
			}
			col.Values = values
		}
		col.Cells = cells
	}

	return ds
}
