package data

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

type DataValidator struct{}

func NewDataValidator() *DataValidator {
	return &DataValidator{}
}

// ValidateTraining checks that ds can be split into train and test parts for target.
func (dv *DataValidator) ValidateTraining(ds *Dataset, target string) error {
	col, ok := ds.Column(target)
	if !ok {
		return fmt.Errorf("%w: target column %q not found in data", ErrColumnNotFound, target)
	}

	if ds.NumColumns() < 2 {
		return fmt.Errorf("%w: features cannot be empty", ErrInvalidDataset)
	}

	if ds.NumRows() < 2 {
		return fmt.Errorf("%w: need at least 2 complete rows, found %d", ErrInvalidDataset, ds.NumRows())
	}

	if err := dv.ValidateLabels(col.Cells); err != nil {
		return err
	}

	return dv.ValidateFinite(ds, target)
}

// ValidateFinite rejects numeric columns holding an infinite value. Columns named in skip
// are not checked.
func (dv *DataValidator) ValidateFinite(ds *Dataset, skip ...string) error {
	for _, col := range ds.Columns {
		if col.Kind != Numeric || slices.Contains(skip, col.Name) {
			continue
		}
		for i, v := range col.Values {
			if math.IsInf(v, 0) {
				return fmt.Errorf("%w: column %q contains infinity at row %d", ErrInvalidDataset, col.Name, i+1)
			}
		}
	}
	return nil
}

func (dv *DataValidator) ValidateLabels(labels []string) error {
	if len(labels) == 0 {
		return fmt.Errorf("%w: labels are empty", ErrInvalidDataset)
	}

	classCount := make(map[string]int)
	for _, label := range labels {
		classCount[label]++
	}

	if len(classCount) < 2 {
		return fmt.Errorf("%w: dataset must have at least 2 classes, found %d", ErrInvalidDataset, len(classCount))
	}

	return nil
}

// GetDatasetStats flattens Profile into log-friendly fields.
func (dv *DataValidator) GetDatasetStats(ds *Dataset) map[string]any {
	profile := dv.Profile(ds)
	stats := map[string]any{
		"rows":          profile.Rows,
		"columns":       profile.Columns,
		"missing_cells": profile.MissingCells,
		"complete_rows": profile.CompleteRows,
	}

	var numeric, categorical []string
	for _, col := range profile.ColumnStats {
		if col.Kind == Categorical.String() {
			categorical = append(categorical, col.Name)
		} else {
			numeric = append(numeric, col.Name)
		}
	}
	sort.Strings(numeric)
	sort.Strings(categorical)
	stats["numeric_columns"] = numeric
	stats["categorical_columns"] = categorical

	return stats
}
