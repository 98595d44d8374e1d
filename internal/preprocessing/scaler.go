package preprocessing

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"automl/internal/data"
)

// ErrNonFinite is returned when a scaler is fitted on NaN or infinite values.
var ErrNonFinite = errors.New("non-finite value")

// Scaler standardises columns to zero mean and unit population variance. Statistics are
// kept as decimals so a saved scaler reproduces the same values after a round trip.
type Scaler struct {
	Columns     []string
	FeatureMean []decimal.Decimal
	FeatureStd  []decimal.Decimal
	Constant    []bool
	IsFitted    bool
}

func NewScaler() *Scaler {
	return &Scaler{}
}

// Fit expects column-major values, one slice per name.
func (s *Scaler) Fit(names []string, columns [][]float64) error {
	if len(names) != len(columns) {
		return fmt.Errorf("scaler: %d names for %d columns", len(names), len(columns))
	}

	s.Columns = append([]string(nil), names...)
	s.FeatureMean = make([]decimal.Decimal, len(columns))
	s.FeatureStd = make([]decimal.Decimal, len(columns))
	s.Constant = make([]bool, len(columns))

	for j, col := range columns {
		if len(col) == 0 {
			return fmt.Errorf("scaler: column %q is empty", names[j])
		}
		mean, std, constant, err := columnStats(col)
		if err != nil {
			return fmt.Errorf("scaler: column %q: %w", names[j], err)
		}
		s.FeatureMean[j], s.FeatureStd[j], s.Constant[j] = mean, std, constant
	}

	s.IsFitted = true
	return nil
}

func columnStats(values []float64) (mean, std decimal.Decimal, constant bool, err error) {
	n := decimal.NewFromInt(int64(len(values)))

	sum := decimal.Zero
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return mean, std, false, fmt.Errorf("%w: %w %v at row %d", data.ErrInvalidDataset, ErrNonFinite, v, i+1)
		}
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	mean = sum.Div(n)

	variance := decimal.Zero
	for _, v := range values {
		diff := decimal.NewFromFloat(v).Sub(mean)
		variance = variance.Add(diff.Mul(diff))
	}
	variance = variance.Div(n)

	varFloat, _ := variance.Float64()
	std = decimal.NewFromFloat(math.Sqrt(varFloat))

	// zero-variance columns keep a unit divisor and scale to all zeros
	if std.IsZero() || allEqual(values) {
		return mean, decimal.NewFromInt(1), true, nil
	}

	return mean, std, false, nil
}

func allEqual(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

// Transform returns scaled copies of the given columns.
func (s *Scaler) Transform(columns [][]float64) ([][]float64, error) {
	if !s.IsFitted {
		return nil, fmt.Errorf("scaler must be fitted before transform")
	}
	if len(columns) != len(s.Columns) {
		return nil, fmt.Errorf("scaler was fitted on %d columns, got %d", len(s.Columns), len(columns))
	}

	result := make([][]float64, len(columns))
	for j, col := range columns {
		mean, _ := s.FeatureMean[j].Float64()
		std, _ := s.FeatureStd[j].Float64()

		out := make([]float64, len(col))
		if s.Constant[j] {
			result[j] = out
			continue
		}
		for i, v := range col {
			out[i] = (v - mean) / std
		}
		result[j] = out
	}

	return result, nil
}

func (s *Scaler) FitTransform(names []string, columns [][]float64) ([][]float64, error) {
	if err := s.Fit(names, columns); err != nil {
		return nil, err
	}
	return s.Transform(columns)
}
