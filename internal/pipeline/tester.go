package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"automl/internal/config"
	"automl/internal/data"
	"automl/internal/evaluation"
	"automl/internal/history"
	"automl/internal/metrics"
	"automl/internal/persistence"
	"automl/internal/preprocessing"
	"automl/internal/visualize"
)

const PredictionColumn = "Prediction"

type TestOptions struct {
	TargetColumn string
	DatasetName  string
	// ReuseTrainingState applies the bundle's encoders and scaler instead of refitting
	// them on the test data. training.reuse_training_state turns it on for every run.
	ReuseTrainingState bool
}

type TestResult struct {
	RunID             string             `json:"run_id,omitempty"`
	ModelName         string             `json:"model_name"`
	PredictionsPath   string             `json:"predictions_path"`
	Metrics           *evaluation.Report `json:"metrics"`
	ConfusionPlotPath string             `json:"confusion_plot_path"`
	TargetColumn      string             `json:"target_column"`
	Rows              int                `json:"rows"`
	DroppedRows       int                `json:"dropped_rows"`
	Predictions       []string           `json:"-"`
	Duration          time.Duration      `json:"duration"`
}

type Tester struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	history *history.Store
	now     func() time.Time
}

func NewTester(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics, store *history.Store) *Tester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tester{
		cfg:     cfg,
		logger:  logger.Named("tester"),
		metrics: m,
		history: store,
		now:     time.Now,
	}
}

// TestFile loads a CSV from path and tests the model at modelPath on it.
func (t *Tester) TestFile(ctx context.Context, path, modelPath string, opts TestOptions) (*TestResult, error) {
	ds, err := data.NewCSVReader(path).LoadData()
	if err != nil {
		return nil, err
	}
	if opts.DatasetName == "" {
		opts.DatasetName = filepath.Base(path)
	}
	return t.Test(ctx, ds, modelPath, opts)
}

// Test predicts every complete row of ds with the stored model. Metrics and the confusion
// plot are produced only when ds carries a usable ground truth column.
func (t *Tester) Test(ctx context.Context, ds *data.Dataset, modelPath string, opts TestOptions) (*TestResult, error) {
	start := t.now()

	bundle, err := persistence.LoadModelBundle(modelPath)
	var result *TestResult
	if err == nil {
		result, err = t.test(ctx, ds, bundle, opts)
	}
	elapsed := time.Since(start)

	if result != nil {
		result.Duration = elapsed
	}
	t.metrics.ObserveTest(elapsed, err)
	t.record(opts, bundle, modelPath, result, elapsed, err)

	if err != nil {
		t.logger.Error("testing failed", zap.String("model_path", modelPath), zap.Error(err))
		return nil, err
	}

	fields := []zap.Field{
		zap.String("model", result.ModelName),
		zap.Int("rows", result.Rows),
		zap.Duration("duration", elapsed),
		zap.String("predictions", result.PredictionsPath),
	}
	if result.Metrics != nil {
		fields = append(fields, zap.Float64("accuracy", result.Metrics.Accuracy))
	}
	t.logger.Info("testing completed", fields...)
	return result, nil
}

// groundTruth picks the column holding true labels, or "" when there is none. An inferred
// column that the model was trained on is a feature, not a label.
func groundTruth(ds *data.Dataset, bundle *persistence.ModelBundle, explicit string) string {
	if explicit != "" {
		if ds.HasColumn(explicit) {
			return explicit
		}
		return ""
	}

	target := bundle.Metadata.TargetColumn
	if target == "" || !ds.HasColumn(target) {
		target = data.InferTargetColumn(ds)
	}
	if target == "" || !ds.HasColumn(target) || slices.Contains(bundle.Metadata.Features, target) {
		return ""
	}
	return target
}

func (t *Tester) test(ctx context.Context, ds *data.Dataset, bundle *persistence.ModelBundle, opts TestOptions) (*TestResult, error) {
	cleaned, dropped, err := cleanDataset(ds, t.cfg.Training.MissingStrategy)
	if err != nil {
		return nil, err
	}
	t.metrics.AddDroppedRows(dropped)
	if cleaned.NumRows() == 0 {
		return nil, fmt.Errorf("%w: no complete rows to predict", data.ErrInvalidDataset)
	}

	target := groundTruth(cleaned, bundle, opts.TargetColumn)
	if target == "" {
		t.logger.Info("no ground truth column, skipping evaluation")
	}

	sel, err := cleaned.Select(bundle.Metadata.Features...)
	if err != nil {
		return nil, fmt.Errorf("test data is missing a training feature: %w", err)
	}
	featureSet := sel.Clone()
	if err := data.NewDataValidator().ValidateFinite(featureSet); err != nil {
		return nil, err
	}

	reuse := opts.ReuseTrainingState || t.cfg.Training.ReuseTrainingState
	if reuse {
		if err := preprocessing.ApplyEncoders(featureSet, bundle.FeatureEncoders); err != nil {
			return nil, err
		}
		if bundle.Scaler != nil {
			if err := preprocessing.ApplyScaler(featureSet, bundle.Scaler); err != nil {
				return nil, err
			}
		}
	} else {
		if _, err := preprocessing.EncodeCategorical(featureSet); err != nil {
			return nil, err
		}
		if _, err := preprocessing.ScaleNumeric(featureSet); err != nil {
			return nil, err
		}
	}

	features, err := preprocessing.ToFeatures(featureSet)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	predictions, err := bundle.TargetEncoder.InverseTransform(bundle.Model.Predict(features.X))
	if err != nil {
		return nil, fmt.Errorf("failed to decode predictions: %w", err)
	}

	now := t.now()
	predName := persistence.ArtifactName("predictions", ".csv", now)
	predPath := filepath.Join(t.cfg.Paths.Predictions, predName)
	if err := data.WriteCSVFile(predPath, cleaned, PredictionColumn, predictions); err != nil {
		return nil, fmt.Errorf("failed to write predictions: %w", err)
	}

	result := &TestResult{
		ModelName:       bundle.Metadata.ModelName,
		PredictionsPath: predPath,
		TargetColumn:    target,
		Rows:            cleaned.NumRows(),
		DroppedRows:     dropped,
		Predictions:     predictions,
	}

	if target == "" {
		return result, nil
	}

	col, _ := cleaned.Column(target)
	yTrue := append([]string(nil), col.Cells...)
	report, err := evaluation.CalculateMetrics(yTrue, predictions)
	if err != nil {
		return nil, err
	}
	result.Metrics = report

	confusionPath := filepath.Join(t.cfg.Paths.Plots, strings.TrimSuffix(predName, ".csv")+"_confusion.png")
	if err := visualize.RenderConfusionMatrix(yTrue, predictions, confusionPath); err != nil {
		return nil, fmt.Errorf("failed to render confusion matrix: %w", err)
	}
	result.ConfusionPlotPath = confusionPath

	return result, nil
}

func (t *Tester) record(opts TestOptions, bundle *persistence.ModelBundle, modelPath string, result *TestResult, elapsed time.Duration, runErr error) {
	if !t.history.Enabled() {
		return
	}
	run := &history.Run{
		Kind:         history.KindTest,
		Dataset:      opts.DatasetName,
		TargetColumn: opts.TargetColumn,
		ModelPath:    modelPath,
		Duration:     elapsed,
	}
	if bundle != nil {
		run.ModelKey = bundle.Metadata.ModelKey
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if result != nil {
		run.TargetColumn = result.TargetColumn
		run.Metrics = result.Metrics
		run.PredictionsPath = result.PredictionsPath
		run.ConfusionPlotPath = result.ConfusionPlotPath
	}
	if err := t.history.Record(run); err != nil {
		t.logger.Warn("failed to record run", zap.Error(err))
		return
	}
	if result != nil {
		result.RunID = run.ID
	}
}
