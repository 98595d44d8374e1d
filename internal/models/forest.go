package models

import (
	"math"
	"math/rand"
	"runtime"
	"sync"
)

type RandomForest struct {
	BaseModel
	NTrees          int
	MaxDepth        int
	MinSamplesSplit int
	MaxFeatures     int
	Bootstrap       bool
	Seed            int64
	NClasses        int
	Trees           []*DecisionTree
	MaxWorkers      int
}

func NewRandomForest(nTrees, maxDepth, minSamplesSplit int, seed int64) *RandomForest {
	if nTrees <= 0 {
		nTrees = 100
	}

	return &RandomForest{
		NTrees:          nTrees,
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
		Bootstrap:       true,
		Seed:            seed,
		MaxWorkers:      runtime.GOMAXPROCS(0),
		BaseModel: BaseModel{
			Name: "Random Forest",
			Params: map[string]any{
				"n_estimators":      nTrees,
				"max_depth":         maxDepth,
				"min_samples_split": minSamplesSplit,
				"max_features":      "sqrt",
				"bootstrap":         true,
				"random_state":      seed,
			},
		},
	}
}

func (rf *RandomForest) Capabilities() Capabilities {
	return Capabilities{FeatureImportance: true, Probabilities: true}
}

func (rf *RandomForest) Fit(X [][]float64, y []int) error {
	if err := validateFit(X, y); err != nil {
		return err
	}

	rf.Classes = ExtractClasses(y)
	rf.NClasses = numClasses(y)

	nFeatures := len(X[0])
	rf.MaxFeatures = int(math.Sqrt(float64(nFeatures)))
	if rf.MaxFeatures < 1 {
		rf.MaxFeatures = 1
	}

	rf.Trees = make([]*DecisionTree, rf.NTrees)
	rf.trainParallel(X, y)

	return nil
}

// trainParallel fits the trees on a bounded worker pool. Tree i draws from its own source
// seeded with Seed+i, so the result does not depend on scheduling.
func (rf *RandomForest) trainParallel(X [][]float64, y []int) {
	var wg sync.WaitGroup

	workers := rf.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > rf.NTrees {
		workers = rf.NTrees
	}

	jobs := make(chan int, rf.NTrees)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rf.Trees[i] = rf.trainSingleTree(X, y, rf.Seed+int64(i))
			}
		}()
	}

	for i := 0; i < rf.NTrees; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
}

func (rf *RandomForest) trainSingleTree(X [][]float64, y []int, seed int64) *DecisionTree {
	r := rand.New(rand.NewSource(seed))

	n := len(X)
	indices := make([]int, n)
	for i := range indices {
		if rf.Bootstrap {
			indices[i] = r.Intn(n)
		} else {
			indices[i] = i
		}
	}

	tree := NewDecisionTree(rf.MaxDepth, rf.MinSamplesSplit)
	tree.MaxFeatures = rf.MaxFeatures
	tree.rng = r
	tree.fitIndices(X, y, indices, rf.NClasses)
	tree.rng = nil

	return tree
}

// PredictProba averages the leaf class distributions of all trees.
func (rf *RandomForest) PredictProba(X [][]float64) [][]float64 {
	proba := make([][]float64, len(X))
	for i := range proba {
		proba[i] = make([]float64, rf.NClasses)
	}

	for _, tree := range rf.Trees {
		treeProba := tree.PredictProba(X)
		for i, row := range treeProba {
			for c, p := range row {
				proba[i][c] += p
			}
		}
	}

	nTrees := float64(len(rf.Trees))
	for _, row := range proba {
		for c := range row {
			row[c] /= nTrees
		}
	}

	return proba
}

func (rf *RandomForest) Predict(X [][]float64) []int {
	proba := rf.PredictProba(X)
	predictions := make([]int, len(X))
	for i, row := range proba {
		predictions[i] = argmax(row)
	}
	return predictions
}

// FeatureImportances is the mean of the tree importances, normalised to sum to one.
func (rf *RandomForest) FeatureImportances() []float64 {
	if len(rf.Trees) == 0 {
		return nil
	}

	importances := make([]float64, rf.Trees[0].NFeatures)
	for _, tree := range rf.Trees {
		for j, v := range tree.Importances {
			importances[j] += v
		}
	}

	total := 0.0
	for _, v := range importances {
		total += v
	}
	if total > 0 {
		for j := range importances {
			importances[j] /= total
		}
	}

	return importances
}
