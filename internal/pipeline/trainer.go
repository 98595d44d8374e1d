package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"automl/internal/config"
	"automl/internal/data"
	"automl/internal/evaluation"
	"automl/internal/history"
	"automl/internal/metrics"
	"automl/internal/models"
	"automl/internal/persistence"
	"automl/internal/visualize"
)

// DefaultModel is trained when no model key is given.
const DefaultModel = "random_forest"

type TrainOptions struct {
	TargetColumn string
	ModelKey     string
	DatasetName  string
	CVFolds      int // overrides training.cv_folds when non-zero
}

type TrainingResult struct {
	RunID             string               `json:"run_id,omitempty"`
	ModelKey          string               `json:"model_key"`
	ModelName         string               `json:"model_name"`
	Metrics           *evaluation.Report   `json:"metrics"`
	ModelPath         string               `json:"model_path"`
	ConfusionPlotPath string               `json:"confusion_plot_path"`
	FeaturePlotPath   string               `json:"feature_plot_path,omitempty"`
	TargetColumn      string               `json:"target_column"`
	FeatureNames      []string             `json:"feature_names"`
	Classes           []string             `json:"classes"`
	TrainRows         int                  `json:"train_rows"`
	TestRows          int                  `json:"test_rows"`
	DroppedRows       int                  `json:"dropped_rows"`
	CV                *evaluation.CVResult `json:"cv,omitempty"`
	Duration          time.Duration        `json:"duration"`
}

type Trainer struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	history *history.Store
	now     func() time.Time
}

// NewTrainer wires a trainer. metrics and store may be nil.
func NewTrainer(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics, store *history.Store) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{
		cfg:     cfg,
		logger:  logger.Named("trainer"),
		metrics: m,
		history: store,
		now:     time.Now,
	}
}

// TrainFile loads a CSV from path and trains on it.
func (t *Trainer) TrainFile(ctx context.Context, path string, opts TrainOptions) (*TrainingResult, error) {
	ds, err := data.NewCSVReader(path).LoadData()
	if err != nil {
		return nil, err
	}
	if opts.DatasetName == "" {
		opts.DatasetName = filepath.Base(path)
	}
	return t.Train(ctx, ds, opts)
}

// Train runs the full training flow on ds, which is modified in place. No artifact is
// written unless every step up to evaluation succeeds.
func (t *Trainer) Train(ctx context.Context, ds *data.Dataset, opts TrainOptions) (*TrainingResult, error) {
	start := t.now()
	if opts.ModelKey == "" {
		opts.ModelKey = DefaultModel
	}

	result, err := t.train(ctx, ds, opts)
	elapsed := time.Since(start)

	accuracy := 0.0
	if result != nil {
		result.Duration = elapsed
		accuracy = result.Metrics.Accuracy
	}
	t.metrics.ObserveTrain(opts.ModelKey, elapsed, accuracy, err)
	t.record(opts, result, elapsed, err)

	if err != nil {
		t.logger.Error("training failed", zap.String("model", opts.ModelKey), zap.Error(err))
		return nil, err
	}

	t.logger.Info("training completed",
		zap.String("model", result.ModelName),
		zap.String("target", result.TargetColumn),
		zap.Float64("accuracy", result.Metrics.Accuracy),
		zap.Duration("duration", elapsed),
		zap.String("artifact", result.ModelPath))
	return result, nil
}

func (t *Trainer) train(ctx context.Context, ds *data.Dataset, opts TrainOptions) (*TrainingResult, error) {
	key, err := models.Resolve(opts.ModelKey)
	if err != nil {
		return nil, err
	}
	modelConfig := models.ModelConfig{Algorithm: key, Seed: t.cfg.Training.Seed}

	prep, err := prepareTraining(ds, opts.TargetColumn, t.cfg.Training.MissingStrategy, t.logger)
	if err != nil {
		return nil, err
	}
	t.metrics.AddDroppedRows(prep.dropped)

	model, err := models.CreateModel(modelConfig)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	splitter := evaluation.NewTrainTestSplitter(t.cfg.Training.TestSize, t.cfg.Training.Seed, true)
	XTrain, XTest, yTrain, yTest, err := splitter.Split(prep.features.X, prep.y)
	if err != nil {
		return nil, fmt.Errorf("failed to split data: %w", err)
	}

	fitStart := time.Now()
	if err := model.Fit(XTrain, yTrain); err != nil {
		return nil, fmt.Errorf("failed to fit %s: %w", model.GetName(), err)
	}
	fitTime := time.Since(fitStart)
	t.logger.Debug("model fitted",
		zap.String("model", model.GetName()),
		zap.Int("train_rows", len(XTrain)),
		zap.Duration("fit_time", fitTime))

	yTrue, err := prep.targetEncoder.InverseTransform(yTest)
	if err != nil {
		return nil, err
	}
	yPred, err := prep.targetEncoder.InverseTransform(model.Predict(XTest))
	if err != nil {
		return nil, fmt.Errorf("failed to decode predictions: %w", err)
	}

	report, err := evaluation.CalculateMetrics(yTrue, yPred)
	if err != nil {
		return nil, err
	}

	var cvResult *evaluation.CVResult
	folds := opts.CVFolds
	if folds == 0 {
		folds = t.cfg.Training.CVFolds
	}
	if folds > 1 {
		cv := evaluation.NewCrossValidator(folds, t.cfg.Training.Seed)
		cvResult, err = cv.CrossValidate(ctx, prep.features.X, prep.y, func() (models.Model, error) {
			return models.CreateModel(modelConfig)
		})
		if err != nil {
			return nil, fmt.Errorf("cross-validation failed: %w", err)
		}
		t.logger.Info("cross-validation",
			zap.Int("folds", folds),
			zap.Float64("mean", cvResult.Mean),
			zap.Float64("std", cvResult.Std))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bundle := persistence.NewModelBundle(model)
	bundle.FeatureEncoders = prep.encoders
	bundle.TargetEncoder = prep.targetEncoder
	bundle.Scaler = prep.scaler
	bundle.CreatedAt = t.now()
	bundle.Metadata.ModelKey = key
	bundle.Metadata.Dataset = opts.DatasetName
	bundle.Metadata.TargetColumn = prep.target
	bundle.Metadata.Features = prep.features.Names
	bundle.Metadata.Classes = prep.targetEncoder.Classes
	bundle.Metadata.Accuracy = report.Accuracy
	bundle.Metadata.Precision = report.Precision
	bundle.Metadata.Recall = report.Recall
	bundle.Metadata.F1Score = report.F1Score
	bundle.Metadata.TrainingTime = fitTime

	// Plots go first and the model last; a failure removes whatever was already written.
	artifact := persistence.ArtifactName(model.GetName(), persistence.ModelExt, bundle.CreatedAt)
	base := strings.TrimSuffix(artifact, persistence.ModelExt)
	var written []string
	fail := func(err error) (*TrainingResult, error) {
		for _, p := range written {
			os.Remove(p)
		}
		return nil, err
	}

	confusionPath := filepath.Join(t.cfg.Paths.Plots, base+"_confusion.png")
	written = append(written, confusionPath)
	if err := visualize.RenderConfusionMatrix(yTrue, yPred, confusionPath); err != nil {
		return fail(fmt.Errorf("failed to render confusion matrix: %w", err))
	}

	var featurePath string
	if model.Capabilities().FeatureImportance {
		featurePath = filepath.Join(t.cfg.Paths.Plots, base+"_features.png")
		written = append(written, featurePath)
		if err := visualize.RenderFeatureImportance(model, prep.features.Names, featurePath, visualize.DefaultTopN); err != nil {
			return fail(fmt.Errorf("failed to render feature importance: %w", err))
		}
	}

	modelPath := filepath.Join(t.cfg.Paths.Models, artifact)
	if err := bundle.Save(modelPath); err != nil {
		return fail(fmt.Errorf("failed to save model: %w", err))
	}

	return &TrainingResult{
		ModelKey:          key,
		ModelName:         model.GetName(),
		Metrics:           report,
		ModelPath:         modelPath,
		ConfusionPlotPath: confusionPath,
		FeaturePlotPath:   featurePath,
		TargetColumn:      prep.target,
		FeatureNames:      prep.features.Names,
		Classes:           prep.targetEncoder.Classes,
		TrainRows:         len(XTrain),
		TestRows:          len(XTest),
		DroppedRows:       prep.dropped,
		CV:                cvResult,
	}, nil
}

func (t *Trainer) record(opts TrainOptions, result *TrainingResult, elapsed time.Duration, runErr error) {
	if !t.history.Enabled() {
		return
	}
	run := &history.Run{
		Kind:         history.KindTrain,
		ModelKey:     opts.ModelKey,
		Dataset:      opts.DatasetName,
		TargetColumn: opts.TargetColumn,
		Duration:     elapsed,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if result != nil {
		run.ModelKey = result.ModelKey
		run.TargetColumn = result.TargetColumn
		run.Metrics = result.Metrics
		run.ModelPath = result.ModelPath
		run.ConfusionPlotPath = result.ConfusionPlotPath
		run.FeaturePlotPath = result.FeaturePlotPath
	}
	if err := t.history.Record(run); err != nil {
		t.logger.Warn("failed to record run", zap.Error(err))
		return
	}
	if result != nil {
		result.RunID = run.ID
	}
}
