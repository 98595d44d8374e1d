package preprocessing

import (
	"fmt"
	"sort"

	"automl/internal/data"
)

// EncoderMap holds one fitted encoder per categorical column.
type EncoderMap map[string]*LabelEncoder

// Columns returns the encoded column names in sorted order.
func (em EncoderMap) Columns() []string {
	names := make([]string, 0, len(em))
	for name := range em {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EncodeCategorical replaces every categorical column of ds, except the excluded ones, with
// integer codes. Afterwards those columns are numeric.
func EncodeCategorical(ds *data.Dataset, exclude ...string) (EncoderMap, error) {
	skip := toSet(exclude)
	encoders := make(EncoderMap)

	for _, col := range ds.Columns {
		if col.Kind != data.Categorical || skip[col.Name] {
			continue
		}

		le := NewLabelEncoder()
		codes, err := le.FitTransform(col.Cells)
		if err != nil {
			return nil, fmt.Errorf("failed to encode column %q: %w", col.Name, err)
		}

		setCodes(col, codes)
		encoders[col.Name] = le
	}

	return encoders, nil
}

// ApplyEncoders encodes ds with previously fitted encoders. Categories the encoder never saw
// become UnknownCode.
func ApplyEncoders(ds *data.Dataset, encoders EncoderMap) error {
	for _, name := range encoders.Columns() {
		col, ok := ds.Column(name)
		if !ok {
			continue
		}
		setCodes(col, encoders[name].TransformLenient(col.Cells))
	}

	for _, col := range ds.Columns {
		if col.Kind == data.Categorical {
			return fmt.Errorf("%w: column %q is categorical but was numeric during training", data.ErrInvalidDataset, col.Name)
		}
	}

	return nil
}

func setCodes(col *data.Column, codes []int) {
	col.Values = make([]float64, len(codes))
	for i, c := range codes {
		col.Values[i] = float64(c)
	}
	col.Kind = data.Numeric
	col.Encoded = true
}

// ScaleNumeric standardises every numeric column of ds that is not excluded.
func ScaleNumeric(ds *data.Dataset, exclude ...string) (*Scaler, error) {
	skip := toSet(exclude)

	var names []string
	var cols []*data.Column
	for _, col := range ds.Columns {
		if col.Kind == data.Numeric && !skip[col.Name] {
			names = append(names, col.Name)
			cols = append(cols, col)
		}
	}

	scaler := NewScaler()
	if len(cols) == 0 {
		scaler.IsFitted = true
		return scaler, nil
	}

	values := make([][]float64, len(cols))
	for j, col := range cols {
		values[j] = col.Values
	}

	scaled, err := scaler.FitTransform(names, values)
	if err != nil {
		return nil, fmt.Errorf("failed to scale numeric columns: %w", err)
	}

	for j, col := range cols {
		col.Values = scaled[j]
	}

	return scaler, nil
}

// ApplyScaler scales the columns of ds the scaler was fitted on.
func ApplyScaler(ds *data.Dataset, scaler *Scaler) error {
	if len(scaler.Columns) == 0 {
		return nil
	}

	sel, err := ds.Select(scaler.Columns...)
	if err != nil {
		return err
	}

	values := make([][]float64, len(sel.Columns))
	for j, col := range sel.Columns {
		if col.Kind != data.Numeric {
			return fmt.Errorf("%w: column %q must be numeric before scaling", data.ErrInvalidDataset, col.Name)
		}
		values[j] = col.Values
	}

	scaled, err := scaler.Transform(values)
	if err != nil {
		return err
	}

	for j, col := range sel.Columns {
		col.Values = scaled[j]
	}

	return nil
}

// Features is a row-major numeric matrix with its column names.
type Features struct {
	Names []string
	X     [][]float64
}

func (f *Features) NumSamples() int {
	return len(f.X)
}

// SplitFeaturesTarget separates the target column from ds. Every remaining column must be
// numeric; the target is returned as its raw cells.
func SplitFeaturesTarget(ds *data.Dataset, target string) (*Features, []string, error) {
	col, ok := ds.Column(target)
	if !ok {
		return nil, nil, fmt.Errorf("%w: target column %q not found in data", data.ErrColumnNotFound, target)
	}

	features, err := ToFeatures(ds.Without(target))
	if err != nil {
		return nil, nil, err
	}

	y := append([]string(nil), col.Cells...)
	return features, y, nil
}

// ToFeatures converts every column of ds into a row-major matrix.
func ToFeatures(ds *data.Dataset) (*Features, error) {
	for _, col := range ds.Columns {
		if col.Kind != data.Numeric {
			return nil, fmt.Errorf("column %q is not numeric, encode it first", col.Name)
		}
	}

	n := ds.NumRows()
	X := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, ds.NumColumns())
		for j, col := range ds.Columns {
			row[j] = col.Values[i]
		}
		X[i] = row
	}

	return &Features{Names: ds.Names(), X: X}, nil
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
