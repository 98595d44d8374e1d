package evaluation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automl/internal/models"
)

func TestCalculateMetricsWeighted(t *testing.T) {
	yTrue := []string{"a", "a", "a", "b", "b", "c"}
	yPred := []string{"a", "a", "b", "b", "b", "a"}

	r, err := CalculateMetrics(yTrue, yPred)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, r.Labels)
	assert.Equal(t, [][]int{{2, 1, 0}, {0, 2, 0}, {1, 0, 0}}, r.ConfusionMatrix)
	assert.Equal(t, 0.6667, r.Accuracy)

	// precision a=2/3 b=2/3 c=0, recall a=2/3 b=1 c=0, weights 3,2,1
	assert.Equal(t, 0.5556, r.Precision)
	assert.Equal(t, 0.6667, r.Recall)
	assert.Equal(t, 0.6, r.F1Score)

	assert.Equal(t, 3, r.PerClass["a"].Support)
	assert.Equal(t, 0.0, r.PerClass["c"].Precision)
	assert.Equal(t, 6, r.NumSamples)
}

func TestCalculateMetricsLabelUnion(t *testing.T) {
	r, err := CalculateMetrics([]string{"10", "2", "2"}, []string{"10", "2", "3"})
	require.NoError(t, err)

	assert.Equal(t, []string{"2", "3", "10"}, r.Labels)
	assert.Len(t, r.ConfusionMatrix, 3)
	for _, v := range []float64{r.Accuracy, r.Precision, r.Recall, r.F1Score} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestCalculateMetricsErrors(t *testing.T) {
	_, err := CalculateMetrics([]string{"a"}, []string{"a", "b"})
	assert.Error(t, err)

	_, err = CalculateMetrics(nil, nil)
	assert.Error(t, err)
}

func TestSplitterIsSeededAndCeils(t *testing.T) {
	s := NewTrainTestSplitter(0.2, 42, true)

	train, test, err := s.Indices(11)
	require.NoError(t, err)
	assert.Len(t, test, 3)
	assert.Len(t, train, 8)

	train2, test2, err := s.Indices(11)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	seen := make(map[int]bool)
	for _, i := range append(append([]int(nil), train...), test...) {
		seen[i] = true
	}
	assert.Len(t, seen, 11)
}

func TestSplitterRejectsDegenerateSplits(t *testing.T) {
	_, _, err := DefaultTrainTestSplitter().Indices(1)
	assert.Error(t, err)

	_, _, err = NewTrainTestSplitter(1.5, 42, true).Indices(10)
	assert.Error(t, err)

	_, _, _, _, err = DefaultTrainTestSplitter().Split([][]float64{{1}}, []int{0, 1})
	assert.Error(t, err)
}

func TestSplitSharesRows(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {3}, {4}}
	y := []int{0, 1, 2, 3, 4}

	XTrain, XTest, yTrain, yTest, err := NewTrainTestSplitter(0.2, 1, false).Split(X, y)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1}, {2}, {3}, {4}}, XTrain)
	assert.Equal(t, [][]float64{{0}}, XTest)
	assert.Equal(t, []int{1, 2, 3, 4}, yTrain)
	assert.Equal(t, []int{0}, yTest)
}

func TestCrossValidate(t *testing.T) {
	var X [][]float64
	var y []int
	for i := 0; i < 40; i++ {
		c := i % 2
		X = append(X, []float64{float64(c*10 + i%5)})
		y = append(y, c)
	}

	cv := NewCrossValidator(4, 42)
	res, err := cv.CrossValidate(context.Background(), X, y, func() (models.Model, error) {
		return models.Create("decision_tree")
	})
	require.NoError(t, err)

	assert.Len(t, res.Scores, 4)
	assert.Equal(t, 1.0, res.Mean)
	assert.Equal(t, 0.0, res.Std)
}

func TestCrossValidateHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cv := NewCrossValidator(2, 42)
	_, err := cv.CrossValidate(ctx, [][]float64{{0}, {1}, {2}, {3}}, []int{0, 1, 0, 1}, func() (models.Model, error) {
		return models.Create("knn")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKFoldSplitCoversAllRows(t *testing.T) {
	folds, err := NewCrossValidator(3, 7).KFoldSplit(10)
	require.NoError(t, err)

	total := 0
	for _, f := range folds {
		total += len(f)
	}
	assert.Equal(t, 10, total)
	assert.Len(t, folds[2], 4)

	_, err = NewCrossValidator(1, 7).KFoldSplit(10)
	assert.Error(t, err)
}
