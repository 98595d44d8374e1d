package evaluation

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"automl/internal/data"
)

// Report holds weighted classification metrics rounded to four decimals. The confusion
// matrix rows are true labels and columns are predictions, both ordered as Labels.
type Report struct {
	Accuracy        float64                 `json:"accuracy"`
	Precision       float64                 `json:"precision"`
	Recall          float64                 `json:"recall"`
	F1Score         float64                 `json:"f1_score"`
	ConfusionMatrix [][]int                 `json:"confusion_matrix"`
	Labels          []string                `json:"labels"`
	PerClass        map[string]ClassMetrics `json:"-"`
	NumSamples      int                     `json:"-"`
}

type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1_score"`
	Support   int     `json:"support"`
}

func CalculateMetrics(yTrue, yPred []string) (*Report, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("y_true has %d labels but y_pred has %d", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return nil, fmt.Errorf("cannot compute metrics on empty labels")
	}

	labels := data.SortLabels(yTrue, yPred)
	confusionMatrix := buildConfusionMatrix(yTrue, yPred, labels)

	perClass := make(map[string]ClassMetrics, len(labels))
	var weightedPrec, weightedRec, weightedF1 float64
	totalSupport := 0
	correct := 0

	for i, label := range labels {
		tp := confusionMatrix[i][i]
		fp, fn := 0, 0
		for j := range labels {
			if j != i {
				fp += confusionMatrix[j][i]
				fn += confusionMatrix[i][j]
			}
		}

		precision := safeDivide(float64(tp), float64(tp+fp))
		recall := safeDivide(float64(tp), float64(tp+fn))
		f1 := safeDivide(2*precision*recall, precision+recall)
		support := tp + fn

		perClass[label] = ClassMetrics{
			Precision: round4(precision),
			Recall:    round4(recall),
			F1Score:   round4(f1),
			Support:   support,
		}

		weightedPrec += precision * float64(support)
		weightedRec += recall * float64(support)
		weightedF1 += f1 * float64(support)
		totalSupport += support
		correct += tp
	}

	return &Report{
		Accuracy:        round4(float64(correct) / float64(len(yTrue))),
		Precision:       round4(safeDivide(weightedPrec, float64(totalSupport))),
		Recall:          round4(safeDivide(weightedRec, float64(totalSupport))),
		F1Score:         round4(safeDivide(weightedF1, float64(totalSupport))),
		ConfusionMatrix: confusionMatrix,
		Labels:          labels,
		PerClass:        perClass,
		NumSamples:      len(yTrue),
	}, nil
}

// Accuracy is the unrounded fraction of matching codes.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

func buildConfusionMatrix(yTrue, yPred []string, labels []string) [][]int {
	matrix := make([][]int, len(labels))
	for i := range matrix {
		matrix[i] = make([]int, len(labels))
	}

	labelToIdx := make(map[string]int, len(labels))
	for i, label := range labels {
		labelToIdx[label] = i
	}

	for i := range yTrue {
		matrix[labelToIdx[yTrue[i]]][labelToIdx[yPred[i]]]++
	}

	return matrix
}

func round4(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(4).Float64()
	return f
}

func safeDivide(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0.0
	}
	result := numerator / denominator
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0.0
	}
	return result
}

func (r *Report) FormatMetrics() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Accuracy: %.4f\n", r.Accuracy)
	fmt.Fprintf(&b, "Weighted Avg - Precision: %.4f, Recall: %.4f, F1: %.4f\n",
		r.Precision, r.Recall, r.F1Score)
	return b.String()
}
