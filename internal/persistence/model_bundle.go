package persistence

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"automl/internal/models"
	"automl/internal/preprocessing"
)

var (
	ErrModelNotFound   = errors.New("model artifact not found")
	ErrInvalidArtifact = errors.New("invalid model artifact")
)

const (
	ModelExt        = ".model"
	TimestampLayout = "20060102_150405"
)

// ModelBundle is everything needed to predict on new data with a trained model.
type ModelBundle struct {
	Model           models.Model
	FeatureEncoders preprocessing.EncoderMap
	TargetEncoder   *preprocessing.LabelEncoder
	Scaler          *preprocessing.Scaler
	Metadata        BundleMetadata
	CreatedAt       time.Time
}

type BundleMetadata struct {
	ModelKey     string
	ModelName    string
	Dataset      string
	TargetColumn string
	Features     []string
	Classes      []string
	Accuracy     float64
	Precision    float64
	Recall       float64
	F1Score      float64
	TrainingTime time.Duration
	Parameters   map[string]any
}

func init() {
	gob.Register(&models.LogisticRegression{})
	gob.Register(&models.RandomForest{})
	gob.Register(&models.DecisionTree{})
	gob.Register(&models.SVM{})
	gob.Register(&models.KNN{})
	gob.Register(&models.NaiveBayes{})
}

func NewModelBundle(model models.Model) *ModelBundle {
	return &ModelBundle{
		Model:     model,
		CreatedAt: time.Now(),
		Metadata: BundleMetadata{
			ModelName:  model.GetName(),
			Parameters: model.GetParams(),
		},
	}
}

// ArtifactName builds "<base>_<timestamp>_<8 hex><ext>". Spaces in base become underscores.
func ArtifactName(base, ext string, now time.Time) string {
	base = strings.ReplaceAll(strings.TrimSpace(base), " ", "_")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s%s", base, now.Format(TimestampLayout), suffix, ext)
}

func (mb *ModelBundle) Encode(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(mb); err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}
	return nil
}

func (mb *ModelBundle) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := mb.Encode(file); err != nil {
		file.Close()
		os.Remove(filename)
		return err
	}

	return file.Close()
}

func DecodeModelBundle(r io.Reader) (*ModelBundle, error) {
	var bundle ModelBundle
	if err := gob.NewDecoder(r).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("%w: failed to decode bundle: %v", ErrInvalidArtifact, err)
	}
	if bundle.Model == nil || bundle.TargetEncoder == nil {
		return nil, fmt.Errorf("%w: bundle has no model or target encoder", ErrInvalidArtifact)
	}
	return &bundle, nil
}

func LoadModelBundle(filename string) (*ModelBundle, error) {
	file, err := os.Open(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, filename)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return DecodeModelBundle(file)
}

// WriteSummary prints a human readable description of the bundle.
func (mb *ModelBundle) WriteSummary(w io.Writer) error {
	lines := []string{
		fmt.Sprintf("Model: %s (%s)", mb.Metadata.ModelName, mb.Metadata.ModelKey),
		fmt.Sprintf("Dataset: %s", mb.Metadata.Dataset),
		fmt.Sprintf("Created: %s", mb.CreatedAt.Format(time.RFC3339)),
		fmt.Sprintf("Target: %s", mb.Metadata.TargetColumn),
		fmt.Sprintf("Features: %s", strings.Join(mb.Metadata.Features, ", ")),
		fmt.Sprintf("Classes: %s", strings.Join(mb.Metadata.Classes, ", ")),
		fmt.Sprintf("Accuracy: %.4f", mb.Metadata.Accuracy),
		fmt.Sprintf("Precision: %.4f", mb.Metadata.Precision),
		fmt.Sprintf("Recall: %.4f", mb.Metadata.Recall),
		fmt.Sprintf("F1 Score: %.4f", mb.Metadata.F1Score),
		fmt.Sprintf("Training Time: %v", mb.Metadata.TrainingTime),
	}

	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}
