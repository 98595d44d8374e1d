package models

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobs generates three well separated gaussian clusters in four dimensions.
func blobs(n int, seed int64) ([][]float64, []int) {
	r := rand.New(rand.NewSource(seed))
	centers := [][]float64{{-3, -3, 0, 1}, {3, 3, 0, -1}, {3, -3, 2, 0}}

	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		c := i % len(centers)
		row := make([]float64, len(centers[c]))
		for j, mu := range centers[c] {
			row[j] = mu + r.NormFloat64()*0.5
		}
		X[i] = row
		y[i] = c
	}
	return X, y
}

func accuracy(pred, truth []int) float64 {
	correct := 0
	for i := range pred {
		if pred[i] == truth[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(truth))
}

func TestRegistryModelsLearnBlobs(t *testing.T) {
	X, y := blobs(150, 1)
	Xtest, ytest := blobs(60, 2)

	for _, key := range Keys() {
		t.Run(key, func(t *testing.T) {
			m, err := Create(key)
			require.NoError(t, err)
			require.NoError(t, m.Fit(X, y))

			assert.Equal(t, []int{0, 1, 2}, m.GetClasses())
			assert.NotEmpty(t, m.GetName())
			assert.NotEmpty(t, m.GetParams())
			assert.GreaterOrEqual(t, accuracy(m.Predict(Xtest), ytest), 0.9)
		})
	}
}

func TestCreateByDisplayName(t *testing.T) {
	m, err := Create("random forest")
	require.NoError(t, err)
	assert.Equal(t, "Random Forest", m.GetName())

	key, err := Resolve("Support Vector Machine")
	require.NoError(t, err)
	assert.Equal(t, "svm", key)
}

func TestCreateUnknownModel(t *testing.T) {
	_, err := Create("unknown_model")
	assert.ErrorIs(t, err, ErrUnknownModel)

	_, err = Resolve("")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestAvailableReportsCapabilities(t *testing.T) {
	withImportance := map[string]bool{}
	for _, info := range Available() {
		withImportance[info.Key] = info.FeatureImportance
	}

	assert.True(t, withImportance["random_forest"])
	assert.True(t, withImportance["decision_tree"])
	assert.False(t, withImportance["logistic"])
	assert.False(t, withImportance["svm"])
	assert.False(t, withImportance["knn"])
}

func TestFeatureImportancesCapability(t *testing.T) {
	X, y := blobs(60, 3)

	lr := NewLogisticRegression(1, 1000, 1e-4)
	require.NoError(t, lr.Fit(X, y))
	_, err := FeatureImportances(lr)
	assert.ErrorIs(t, err, ErrCapability)

	dt := NewDecisionTree(0, 2)
	require.NoError(t, dt.Fit(X, y))
	imp, err := FeatureImportances(dt)
	require.NoError(t, err)
	assert.Len(t, imp, 4)

	sum := 0.0
	for _, v := range imp {
		assert.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestDecisionTreeUsesInformativeFeature(t *testing.T) {
	X := [][]float64{{0, 5}, {1, 5}, {2, 5}, {10, 5}, {11, 5}, {12, 5}}
	y := []int{0, 0, 0, 1, 1, 1}

	dt := NewDecisionTree(0, 2)
	require.NoError(t, dt.Fit(X, y))

	assert.Equal(t, []float64{1, 0}, dt.FeatureImportances())
	assert.Equal(t, 1, dt.Depth())
	assert.Equal(t, 0, dt.Root.Feature)
	assert.InDelta(t, 6.0, dt.Root.Threshold, 1e-12)
	assert.Equal(t, []int{0, 1}, dt.Predict([][]float64{{5.9, 0}, {6.1, 0}}))
}

func TestDecisionTreeProbabilities(t *testing.T) {
	X := [][]float64{{0}, {0}, {1}}
	y := []int{0, 1, 1}

	dt := NewDecisionTree(0, 2)
	require.NoError(t, dt.Fit(X, y))

	proba := dt.PredictProba([][]float64{{0}, {1}})
	assert.Equal(t, []float64{0.5, 0.5}, proba[0])
	assert.Equal(t, []float64{0, 1}, proba[1])
	assert.Equal(t, 0, dt.Predict([][]float64{{0}})[0])
}

func TestRandomForestIsReproducible(t *testing.T) {
	X, y := blobs(90, 4)
	Xtest, _ := blobs(30, 5)

	a := NewRandomForest(20, 0, 2, 42)
	b := NewRandomForest(20, 0, 2, 42)
	b.MaxWorkers = 1
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))

	assert.Equal(t, a.Predict(Xtest), b.Predict(Xtest))
	assert.Equal(t, a.FeatureImportances(), b.FeatureImportances())
	assert.Equal(t, 2, a.MaxFeatures)
}

func TestLogisticRegressionIsDeterministic(t *testing.T) {
	X, y := blobs(90, 6)

	a := NewLogisticRegression(1, 1000, 1e-4)
	b := NewLogisticRegression(1, 1000, 1e-4)
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))

	assert.Equal(t, a.Weights, b.Weights)
	assert.LessOrEqual(t, a.NIter, 1000)

	for _, row := range a.PredictProba(X[:5]) {
		sum := 0.0
		for _, p := range row {
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestKNNTiesGoToSmallestClass(t *testing.T) {
	knn := NewKNN(2, "euclidean")
	require.NoError(t, knn.Fit([][]float64{{1}, {-1}}, []int{1, 0}))
	assert.Equal(t, []int{0}, knn.Predict([][]float64{{0}}))

	proba := knn.PredictProba([][]float64{{0}})
	assert.Equal(t, []float64{0.5, 0.5}, proba[0])
}

func TestKNNClampsKToTrainingSize(t *testing.T) {
	knn := NewKNN(5, "manhattan")
	require.NoError(t, knn.Fit([][]float64{{0, 0}, {1, 1}, {5, 5}}, []int{0, 0, 1}))
	assert.Equal(t, []int{0}, knn.Predict([][]float64{{4, 4}}))
}

func TestSVMBinaryAndGamma(t *testing.T) {
	X := [][]float64{{0, 0}, {0, 1}, {1, 0}, {5, 5}, {5, 6}, {6, 5}}
	y := []int{0, 0, 0, 1, 1, 1}

	s := NewSVM(1, 42)
	require.NoError(t, s.Fit(X, y))

	assert.Len(t, s.Pairs, 1)
	assert.Greater(t, s.Gamma, 0.0)
	assert.Equal(t, []int{0, 1}, s.Predict([][]float64{{0.5, 0.5}, {5.5, 5.5}}))
	assert.False(t, s.Capabilities().Probabilities)
}

func TestFitValidatesInput(t *testing.T) {
	for _, key := range Keys() {
		m, err := Create(key)
		require.NoError(t, err)

		assert.Error(t, m.Fit(nil, nil), key)
		assert.Error(t, m.Fit([][]float64{{1}, {2}}, []int{0}), key)
		assert.Error(t, m.Fit([][]float64{{1}, {2, 3}}, []int{0, 1}), key)
	}
}

func TestExtractClassesIsSorted(t *testing.T) {
	assert.Equal(t, []int{0, 2, 5}, ExtractClasses([]int{5, 0, 2, 5}))
}
