package preprocessing

import (
	"errors"
	"fmt"

	"automl/internal/data"
)

// UnknownCode is returned by TransformLenient for categories the encoder never saw.
const UnknownCode = -1

var errNotFitted = errors.New("label encoder is not fitted")

// LabelEncoder maps string categories to dense integer codes. Classes[code] is the
// category for a code.
type LabelEncoder struct {
	Classes []string
	Index   map[string]int
	Fitted  bool
}

func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{}
}

// Fit assigns codes in first-seen order.
func (le *LabelEncoder) Fit(labels []string) {
	index := make(map[string]int)
	classes := make([]string, 0)
	for _, label := range labels {
		if _, seen := index[label]; !seen {
			index[label] = len(classes)
			classes = append(classes, label)
		}
	}
	le.Classes, le.Index, le.Fitted = classes, index, true
}

// FitSorted assigns codes following data.SortLabels, so code order matches the
// confusion matrix label order.
func (le *LabelEncoder) FitSorted(labels []string) {
	le.Fit(data.SortLabels(labels))
}

func (le *LabelEncoder) Len() int { return len(le.Classes) }

func (le *LabelEncoder) Transform(labels []string) ([]int, error) {
	if !le.Fitted {
		return nil, errNotFitted
	}
	codes := make([]int, len(labels))
	for i, label := range labels {
		code, ok := le.Index[label]
		if !ok {
			return nil, fmt.Errorf("label %q was not seen during fit", label)
		}
		codes[i] = code
	}
	return codes, nil
}

// TransformLenient maps unseen labels to UnknownCode instead of failing.
func (le *LabelEncoder) TransformLenient(labels []string) []int {
	codes := make([]int, len(labels))
	for i, label := range labels {
		code, ok := le.Index[label]
		if !ok {
			code = UnknownCode
		}
		codes[i] = code
	}
	return codes
}

func (le *LabelEncoder) FitTransform(labels []string) ([]int, error) {
	le.Fit(labels)
	return le.Transform(labels)
}

func (le *LabelEncoder) InverseTransform(codes []int) ([]string, error) {
	if !le.Fitted {
		return nil, errNotFitted
	}
	labels := make([]string, len(codes))
	for i, code := range codes {
		if code < 0 || code >= len(le.Classes) {
			return nil, fmt.Errorf("code %d is outside [0, %d)", code, len(le.Classes))
		}
		labels[i] = le.Classes[code]
	}
	return labels, nil
}
