package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"automl/internal/config"
	"automl/internal/data"
	"automl/internal/evaluation"
	"automl/internal/history"
	"automl/internal/models"
)

// ComparisonResult is one model's score on the shared split.
type ComparisonResult struct {
	Dataset        string  `json:"dataset"`
	Algorithm      string  `json:"algorithm"`
	ModelName      string  `json:"model_name"`
	Parameters     string  `json:"parameters"`
	TrainTestSplit string  `json:"train_test_split"`
	Accuracy       float64 `json:"accuracy"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1Score        float64 `json:"f1_score"`
	CVMean         float64 `json:"cv_mean"`
	CVStd          float64 `json:"cv_std"`
	TrainingTimeMs int64   `json:"training_time_ms"`
}

type CompareOptions struct {
	TargetColumn string
	DatasetName  string
	Models       []string // registry keys; empty means every registered model
	CVFolds      int
}

// Comparer trains several registry models on the same preprocessed data and split.
// Nothing is persisted except the history record.
type Comparer struct {
	cfg     *config.Config
	logger  *zap.Logger
	history *history.Store
}

func NewComparer(cfg *config.Config, logger *zap.Logger, store *history.Store) *Comparer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Comparer{cfg: cfg, logger: logger.Named("comparer"), history: store}
}

// Compare returns one row per model, best accuracy first. ds is modified in place.
func (c *Comparer) Compare(ctx context.Context, ds *data.Dataset, opts CompareOptions) ([]ComparisonResult, error) {
	start := time.Now()
	keys := opts.Models
	if len(keys) == 0 {
		keys = models.Keys()
	}
	resolved := make([]string, len(keys))
	for i, k := range keys {
		key, err := models.Resolve(k)
		if err != nil {
			return nil, err
		}
		resolved[i] = key
	}

	prep, err := prepareTraining(ds, opts.TargetColumn, c.cfg.Training.MissingStrategy, c.logger)
	if err != nil {
		return nil, err
	}

	splitter := evaluation.NewTrainTestSplitter(c.cfg.Training.TestSize, c.cfg.Training.Seed, true)
	XTrain, XTest, yTrain, yTest, err := splitter.Split(prep.features.X, prep.y)
	if err != nil {
		return nil, fmt.Errorf("failed to split data: %w", err)
	}
	yTrue, err := prep.targetEncoder.InverseTransform(yTest)
	if err != nil {
		return nil, err
	}

	folds := opts.CVFolds
	if folds == 0 {
		folds = c.cfg.Training.CVFolds
	}
	split := fmt.Sprintf("%.0f-%.0f", (1-c.cfg.Training.TestSize)*100, c.cfg.Training.TestSize*100)

	results := make([]ComparisonResult, 0, len(resolved))
	for _, key := range resolved {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cfg := models.ModelConfig{Algorithm: key, Seed: c.cfg.Training.Seed}
		model, err := models.CreateModel(cfg)
		if err != nil {
			return nil, err
		}

		result := ComparisonResult{
			Dataset:        opts.DatasetName,
			Algorithm:      key,
			ModelName:      model.GetName(),
			Parameters:     fmt.Sprintf("%v", model.GetParams()),
			TrainTestSplit: split,
		}

		fitStart := time.Now()
		if err := model.Fit(XTrain, yTrain); err != nil {
			return nil, fmt.Errorf("failed to fit %s: %w", model.GetName(), err)
		}
		result.TrainingTimeMs = time.Since(fitStart).Milliseconds()

		yPred, err := prep.targetEncoder.InverseTransform(model.Predict(XTest))
		if err != nil {
			return nil, fmt.Errorf("failed to decode predictions: %w", err)
		}
		report, err := evaluation.CalculateMetrics(yTrue, yPred)
		if err != nil {
			return nil, err
		}
		result.Accuracy = report.Accuracy
		result.Precision = report.Precision
		result.Recall = report.Recall
		result.F1Score = report.F1Score

		if folds > 1 {
			cv := evaluation.NewCrossValidator(folds, c.cfg.Training.Seed)
			cvResult, err := cv.CrossValidate(ctx, prep.features.X, prep.y, func() (models.Model, error) {
				return models.CreateModel(cfg)
			})
			if err != nil {
				return nil, fmt.Errorf("cross-validation of %s failed: %w", key, err)
			}
			result.CVMean = cvResult.Mean
			result.CVStd = cvResult.Std
		}

		c.logger.Info("model evaluated",
			zap.String("model", key),
			zap.Float64("accuracy", result.Accuracy),
			zap.Int64("training_time_ms", result.TrainingTimeMs))
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Accuracy > results[j].Accuracy
	})

	c.record(opts, prep.target, results, time.Since(start))
	return results, nil
}

func (c *Comparer) record(opts CompareOptions, target string, results []ComparisonResult, elapsed time.Duration) {
	if !c.history.Enabled() || len(results) == 0 {
		return
	}
	best := results[0]
	run := &history.Run{
		Kind:         history.KindCompare,
		ModelKey:     best.Algorithm,
		Dataset:      opts.DatasetName,
		TargetColumn: target,
		Metrics: &evaluation.Report{
			Accuracy:  best.Accuracy,
			Precision: best.Precision,
			Recall:    best.Recall,
			F1Score:   best.F1Score,
		},
		Duration: elapsed,
	}
	if err := c.history.Record(run); err != nil {
		c.logger.Warn("failed to record run", zap.Error(err))
	}
}

// ExportResults writes the comparison rows to a CSV file.
func ExportResults(results []ComparisonResult, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	writer.Write([]string{
		"Dataset", "Algorithm", "Model", "Parameters", "TrainTestSplit",
		"Accuracy", "Precision", "Recall", "F1Score",
		"CVMean", "CVStd", "TrainingTimeMs",
	})

	for _, result := range results {
		writer.Write([]string{
			result.Dataset,
			result.Algorithm,
			result.ModelName,
			result.Parameters,
			result.TrainTestSplit,
			fmt.Sprintf("%.4f", result.Accuracy),
			fmt.Sprintf("%.4f", result.Precision),
			fmt.Sprintf("%.4f", result.Recall),
			fmt.Sprintf("%.4f", result.F1Score),
			fmt.Sprintf("%.4f", result.CVMean),
			fmt.Sprintf("%.4f", result.CVStd),
			fmt.Sprintf("%d", result.TrainingTimeMs),
		})
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return file.Close()
}
