package models

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnknownModel = errors.New("unknown model")
	ErrCapability   = errors.New("model lacks capability")
)

// Capabilities lists the optional behaviors a fitted model supports.
type Capabilities struct {
	FeatureImportance bool
	Probabilities     bool
}

// Model is a classifier over dense float features and integer class codes 0..K-1.
type Model interface {
	Fit(X [][]float64, y []int) error
	Predict(X [][]float64) []int
	GetName() string
	GetParams() map[string]any
	GetClasses() []int
	Capabilities() Capabilities
}

type ImportanceReporter interface {
	FeatureImportances() []float64
}

type ProbabilityEstimator interface {
	PredictProba(X [][]float64) [][]float64
}

type BaseModel struct {
	Name    string
	Params  map[string]any
	Classes []int
}

func (bm *BaseModel) GetName() string {
	return bm.Name
}

func (bm *BaseModel) GetParams() map[string]any {
	return bm.Params
}

func (bm *BaseModel) GetClasses() []int {
	return bm.Classes
}

// FeatureImportances returns the importances of m, or ErrCapability when m does not report them.
func FeatureImportances(m Model) ([]float64, error) {
	if !m.Capabilities().FeatureImportance {
		return nil, fmt.Errorf("%w: %s does not report feature importances", ErrCapability, m.GetName())
	}
	r, ok := m.(ImportanceReporter)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not report feature importances", ErrCapability, m.GetName())
	}
	return r.FeatureImportances(), nil
}

// ExtractClasses returns the distinct codes of y in ascending order.
func ExtractClasses(y []int) []int {
	classMap := make(map[int]bool)
	for _, label := range y {
		classMap[label] = true
	}

	classes := make([]int, 0, len(classMap))
	for class := range classMap {
		classes = append(classes, class)
	}
	sort.Ints(classes)

	return classes
}

// numClasses is one past the largest code in y.
func numClasses(y []int) int {
	k := 0
	for _, c := range y {
		if c+1 > k {
			k = c + 1
		}
	}
	return k
}

func validateFit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return fmt.Errorf("cannot fit on an empty dataset")
	}
	if len(X) != len(y) {
		return fmt.Errorf("X has %d samples but y has %d", len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return fmt.Errorf("samples have no features")
	}
	for i, row := range X {
		if len(row) != width {
			return fmt.Errorf("sample %d has %d features, expected %d", i, len(row), width)
		}
	}
	for _, c := range y {
		if c < 0 {
			return fmt.Errorf("class codes must be non-negative, got %d", c)
		}
	}
	return nil
}

// argmax returns the index of the largest value, the lowest index on ties.
func argmax(values []float64) int {
	best := 0
	for i, v := range values[1:] {
		if v > values[best] {
			best = i + 1
		}
	}
	return best
}
