package evaluation

import (
	"context"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/stat"

	"automl/internal/models"
)

// ModelBuilder returns a fresh, unfitted model for each fold.
type ModelBuilder func() (models.Model, error)

// CrossValidator runs k-fold cross-validation scored by accuracy.
type CrossValidator struct {
	NFolds     int
	Shuffle    bool
	RandomSeed int64
	Workers    int
}

type CVResult struct {
	Scores []float64 `json:"scores"`
	Mean   float64   `json:"mean"`
	Std    float64   `json:"std"`
}

func NewCrossValidator(nFolds int, seed int64) *CrossValidator {
	return &CrossValidator{NFolds: nFolds, Shuffle: true, RandomSeed: seed, Workers: 4}
}

// CrossValidate fits one model per fold, at most Workers at a time, and fails on the
// first fold error in fold order.
func (cv *CrossValidator) CrossValidate(ctx context.Context, X [][]float64, y []int, build ModelBuilder) (*CVResult, error) {
	if len(X) != len(y) {
		return nil, fmt.Errorf("feature rows (%d) and labels (%d) differ in length", len(X), len(y))
	}

	folds, err := cv.KFoldSplit(len(X))
	if err != nil {
		return nil, err
	}

	limit := min(max(cv.Workers, 1), len(folds))
	sem := make(chan struct{}, limit)

	scores := make([]float64, len(folds))
	errs := make([]error, len(folds))
	var wg sync.WaitGroup

	for i, holdout := range folds {
		i, holdout := i, holdout
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()
			if errs[i] = ctx.Err(); errs[i] != nil {
				return
			}
			scores[i], errs[i] = scoreFold(X, y, build, holdout)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("fold %d failed: %w", i, err)
		}
	}

	mean, std := foldStats(scores)
	return &CVResult{Scores: scores, Mean: round4(mean), Std: round4(std)}, nil
}

func scoreFold(X [][]float64, y []int, build ModelBuilder, holdout []int) (float64, error) {
	held := make([]bool, len(X))
	for _, idx := range holdout {
		held[idx] = true
	}

	rest := make([]int, 0, len(X)-len(holdout))
	for idx, h := range held {
		if !h {
			rest = append(rest, idx)
		}
	}

	model, err := build()
	if err != nil {
		return 0, err
	}

	XFit, yFit := Take(X, y, rest)
	if err := model.Fit(XFit, yFit); err != nil {
		return 0, err
	}

	XHeld, yHeld := Take(X, y, holdout)
	return Accuracy(yHeld, model.Predict(XHeld)), nil
}

// KFoldSplit returns the held-out indices of each fold. Folds hold n/NFolds rows and
// the last fold takes the remainder.
func (cv *CrossValidator) KFoldSplit(n int) ([][]int, error) {
	k := cv.NFolds
	if k < 2 || k > n {
		return nil, fmt.Errorf("cannot split %d rows into %d folds: need 2 <= folds <= rows", n, k)
	}

	order := permutation(n, cv.Shuffle, cv.RandomSeed)

	size := n / k
	folds := make([][]int, 0, k)
	for start := 0; len(folds) < k; start += size {
		end := start + size
		if len(folds) == k-1 {
			end = n
		}
		folds = append(folds, append([]int(nil), order[start:end]...))
	}
	return folds, nil
}

// foldStats returns the mean and the sample standard deviation.
func foldStats(scores []float64) (mean, std float64) {
	switch len(scores) {
	case 0:
		return 0, 0
	case 1:
		return scores[0], 0
	}
	return stat.MeanStdDev(scores, nil)
}
