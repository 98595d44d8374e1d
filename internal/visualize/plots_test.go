package visualize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automl/internal/models"
)

func assertPNG(t *testing.T, path string) {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(raw), 8)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), raw[:8])
}

func TestConfusionMatrixUsesLabelUnion(t *testing.T) {
	labels, matrix, err := ConfusionMatrix([]string{"b", "a", "a"}, []string{"b", "c", "a"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, labels)
	assert.Equal(t, [][]int{{1, 0, 1}, {0, 1, 0}, {0, 0, 0}}, matrix)

	_, _, err = ConfusionMatrix(nil, nil)
	assert.Error(t, err)
}

func TestConfusionGridPutsFirstLabelOnTop(t *testing.T) {
	g := confusionGrid{matrix: [][]int{{5, 1}, {2, 7}}}
	c, r := g.Dims()
	assert.Equal(t, 2, c)
	assert.Equal(t, 2, r)
	assert.Equal(t, 5.0, g.Z(0, 1))
	assert.Equal(t, 7.0, g.Z(1, 0))
}

func TestRenderConfusionMatrix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "confusion.png")
	require.NoError(t, RenderConfusionMatrix(
		[]string{"cat", "dog", "dog", "bird"},
		[]string{"cat", "dog", "cat", "bird"},
		path,
	))
	assertPNG(t, path)
}

func TestRenderConfusionMatrixSingleLabel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "single.png")
	require.NoError(t, RenderConfusionMatrix([]string{"x", "x"}, []string{"x", "x"}, path))
	assertPNG(t, path)
}

func TestRenderFeatureImportance(t *testing.T) {
	X := [][]float64{{0, 1, 3}, {1, 1, 2}, {2, 0, 3}, {10, 0, 2}, {11, 1, 3}, {12, 0, 2}}
	y := []int{0, 0, 0, 1, 1, 1}

	dt := models.NewDecisionTree(0, 2)
	require.NoError(t, dt.Fit(X, y))

	names, scores, err := TopImportances(dt, []string{"signal", "noise", "other"}, 2)
	require.NoError(t, err)
	assert.Equal(t, "signal", names[0])
	assert.Len(t, scores, 2)
	assert.GreaterOrEqual(t, scores[0], scores[1])

	path := filepath.Join(t.TempDir(), "features.png")
	require.NoError(t, RenderFeatureImportance(dt, []string{"signal", "noise", "other"}, path, DefaultTopN))
	assertPNG(t, path)
}

func TestRenderFeatureImportanceCapability(t *testing.T) {
	knn := models.NewKNN(1, "euclidean")
	require.NoError(t, knn.Fit([][]float64{{0}, {1}}, []int{0, 1}))

	path := filepath.Join(t.TempDir(), "features.png")
	err := RenderFeatureImportance(knn, []string{"a"}, path, DefaultTopN)
	assert.ErrorIs(t, err, models.ErrCapability)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
