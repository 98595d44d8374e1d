package persistence

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automl/internal/models"
	"automl/internal/preprocessing"
)

func trainingData() ([][]float64, []int) {
	X := [][]float64{{0, 1}, {0.2, 1.1}, {0.1, 0.9}, {5, 4}, {5.2, 4.1}, {4.9, 3.8}}
	y := []int{0, 0, 0, 1, 1, 1}
	return X, y
}

func TestBundleRoundTripEveryModel(t *testing.T) {
	X, y := trainingData()

	for _, key := range models.Keys() {
		t.Run(key, func(t *testing.T) {
			m, err := models.Create(key)
			require.NoError(t, err)
			require.NoError(t, m.Fit(X, y))

			target := preprocessing.NewLabelEncoder()
			target.FitSorted([]string{"no", "yes"})

			scaler := preprocessing.NewScaler()
			require.NoError(t, scaler.Fit([]string{"a", "b"}, [][]float64{{1, 2}, {3, 3}}))

			bundle := NewModelBundle(m)
			bundle.TargetEncoder = target
			bundle.Scaler = scaler
			bundle.FeatureEncoders = preprocessing.EncoderMap{"color": target}
			bundle.Metadata.ModelKey = key
			bundle.Metadata.Features = []string{"a", "b"}

			path := filepath.Join(t.TempDir(), ArtifactName(m.GetName(), ModelExt, time.Now()))
			require.NoError(t, bundle.Save(path))

			loaded, err := LoadModelBundle(path)
			require.NoError(t, err)

			assert.Equal(t, m.Predict(X), loaded.Model.Predict(X))
			assert.Equal(t, m.GetName(), loaded.Metadata.ModelName)
			assert.Equal(t, []string{"no", "yes"}, loaded.TargetEncoder.Classes)
			assert.True(t, scaler.FeatureMean[1].Equal(loaded.Scaler.FeatureMean[1]))
			assert.Equal(t, []string{"a", "b"}, loaded.Metadata.Features)
		})
	}
}

func TestLoadMissingBundle(t *testing.T) {
	_, err := LoadModelBundle(filepath.Join(t.TempDir(), "nope.model"))
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := DecodeModelBundle(bytes.NewBufferString("not a bundle"))
	assert.ErrorIs(t, err, ErrInvalidArtifact)

	path := filepath.Join(t.TempDir(), "broken.model")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	_, err = LoadModelBundle(path)
	assert.ErrorIs(t, err, ErrInvalidArtifact)
}

func TestArtifactName(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

	a := ArtifactName("Random Forest", ModelExt, now)
	b := ArtifactName("Random Forest", ModelExt, now)

	assert.Regexp(t, regexp.MustCompile(`^Random_Forest_20240305_140709_[0-9a-f]{8}\.model$`), a)
	assert.NotEqual(t, a, b)
}

func TestWriteSummary(t *testing.T) {
	X, y := trainingData()
	m := models.NewKNN(3, "euclidean")
	require.NoError(t, m.Fit(X, y))

	bundle := NewModelBundle(m)
	bundle.Metadata.Accuracy = 0.95

	var buf bytes.Buffer
	require.NoError(t, bundle.WriteSummary(&buf))
	assert.Contains(t, buf.String(), "Model: K-Nearest Neighbors")
	assert.Contains(t, buf.String(), "Accuracy: 0.9500")
}
