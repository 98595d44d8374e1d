// Package pipeline runs the end-to-end training, testing and comparison flows on a
// loaded dataset.
package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"automl/internal/data"
	"automl/internal/preprocessing"
)

// preparedData is a dataset cleaned, encoded, scaled and split into features and target.
type preparedData struct {
	target        string
	features      *preprocessing.Features
	labels        []string
	y             []int
	encoders      preprocessing.EncoderMap
	scaler        *preprocessing.Scaler
	targetEncoder *preprocessing.LabelEncoder
	dropped       int
}

// resolveTarget returns the explicit target when present in ds, or the inferred one when
// explicit is empty.
func resolveTarget(ds *data.Dataset, explicit string) (string, error) {
	if explicit == "" {
		return data.InferTargetColumn(ds), nil
	}
	if !ds.HasColumn(explicit) {
		return "", fmt.Errorf("%w: target column %q not found in data", data.ErrColumnNotFound, explicit)
	}
	return explicit, nil
}

func cleanDataset(ds *data.Dataset, strategy string) (*data.Dataset, int, error) {
	before := ds.NumRows()
	cleaned, err := data.HandleMissingValues(ds, strategy)
	if err != nil {
		return nil, 0, err
	}
	return cleaned, before - cleaned.NumRows(), nil
}

// prepareTraining mutates ds in place: missing rows are dropped, categorical features become
// codes and every feature column is standardised. The scaler sees all rows before any split.
func prepareTraining(ds *data.Dataset, explicitTarget, strategy string, logger *zap.Logger) (*preparedData, error) {
	cleaned, dropped, err := cleanDataset(ds, strategy)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		logger.Info("dropped rows with missing values", zap.Int("dropped", dropped), zap.Int("remaining", cleaned.NumRows()))
	}

	target, err := resolveTarget(cleaned, explicitTarget)
	if err != nil {
		return nil, err
	}

	validator := data.NewDataValidator()
	if err := validator.ValidateTraining(cleaned, target); err != nil {
		return nil, err
	}
	logger.Debug("dataset stats", zap.String("target", target), zap.Any("stats", validator.GetDatasetStats(cleaned)))

	encoders, err := preprocessing.EncodeCategorical(cleaned, target)
	if err != nil {
		return nil, err
	}

	scaler, err := preprocessing.ScaleNumeric(cleaned, target)
	if err != nil {
		return nil, err
	}

	features, labels, err := preprocessing.SplitFeaturesTarget(cleaned, target)
	if err != nil {
		return nil, err
	}

	targetEncoder := preprocessing.NewLabelEncoder()
	targetEncoder.FitSorted(labels)
	y, err := targetEncoder.Transform(labels)
	if err != nil {
		return nil, fmt.Errorf("failed to encode target: %w", err)
	}

	return &preparedData{
		target:        target,
		features:      features,
		labels:        labels,
		y:             y,
		encoders:      encoders,
		scaler:        scaler,
		targetEncoder: targetEncoder,
		dropped:       dropped,
	}, nil
}
