package evaluation

import (
	"fmt"
	"math"
	"math/rand"
)

type TrainTestSplitter struct {
	testSize   float64
	randomSeed int64
	shuffle    bool
}

func NewTrainTestSplitter(testSize float64, randomSeed int64, shuffle bool) *TrainTestSplitter {
	return &TrainTestSplitter{
		testSize:   testSize,
		randomSeed: randomSeed,
		shuffle:    shuffle,
	}
}

func DefaultTrainTestSplitter() *TrainTestSplitter {
	return NewTrainTestSplitter(0.2, 42, true)
}

// Indices permutes 0..n-1 and returns the train and test row indices. The test part takes
// ceil(n*testSize) rows from the front of the permutation.
func (tts *TrainTestSplitter) Indices(n int) ([]int, []int, error) {
	if n == 0 {
		return nil, nil, fmt.Errorf("cannot split empty dataset")
	}

	if tts.testSize <= 0 || tts.testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be between 0 and 1")
	}

	testCount := int(math.Ceil(float64(n) * tts.testSize))
	if testCount == 0 || testCount == n {
		return nil, nil, fmt.Errorf("with n_samples=%d and test_size=%v one of the partitions would be empty", n, tts.testSize)
	}

	order := permutation(n, tts.shuffle, tts.randomSeed)

	return order[testCount:], order[:testCount], nil
}

// Split partitions X and y. Rows are shared with X, not copied.
func (tts *TrainTestSplitter) Split(X [][]float64, y []int) ([][]float64, [][]float64, []int, []int, error) {
	if len(X) != len(y) {
		return nil, nil, nil, nil, fmt.Errorf("feature rows (%d) and labels (%d) differ in length", len(X), len(y))
	}

	trainIdx, testIdx, err := tts.Indices(len(X))
	if err != nil {
		return nil, nil, nil, nil, err
	}

	XTrain, yTrain := Take(X, y, trainIdx)
	XTest, yTest := Take(X, y, testIdx)

	return XTrain, XTest, yTrain, yTest, nil
}

// Take selects the rows of X and y named by indices.
func Take(X [][]float64, y []int, indices []int) ([][]float64, []int) {
	XOut := make([][]float64, len(indices))
	yOut := make([]int, len(indices))
	for i, idx := range indices {
		XOut[i] = X[idx]
		yOut[i] = y[idx]
	}
	return XOut, yOut
}

// permutation returns 0..n-1, shuffled with a seeded source when shuffle is set.
func permutation(n int, shuffle bool, seed int64) []int {
	if shuffle {
		return rand.New(rand.NewSource(seed)).Perm(n)
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}
