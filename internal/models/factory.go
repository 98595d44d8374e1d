package models

import (
	"fmt"
	"strings"
)

// DefaultSeed seeds the randomised models when no seed is configured.
const DefaultSeed int64 = 42

type ModelConfig struct {
	Algorithm string
	Seed      int64
}

// Info describes one registry entry.
type Info struct {
	Key               string `json:"key"`
	Name              string `json:"name"`
	FeatureImportance bool   `json:"feature_importance"`
}

type registryEntry struct {
	key   string
	name  string
	build func(seed int64) Model
}

var registry = []registryEntry{
	{"logistic", "Logistic Regression", func(int64) Model { return NewLogisticRegression(1.0, 1000, 1e-4) }},
	{"random_forest", "Random Forest", func(seed int64) Model { return NewRandomForest(100, 0, 2, seed) }},
	{"decision_tree", "Decision Tree", func(int64) Model { return NewDecisionTree(0, 2) }},
	{"svm", "Support Vector Machine", func(seed int64) Model { return NewSVM(1.0, seed) }},
	{"knn", "K-Nearest Neighbors", func(int64) Model { return NewKNN(5, "euclidean") }},
	{"naive_bayes", "Naive Bayes", func(int64) Model { return NewNaiveBayes(1e-9) }},
}

func lookup(key string) (registryEntry, error) {
	k := strings.TrimSpace(key)
	for _, e := range registry {
		if k == e.key || strings.EqualFold(k, e.name) {
			return e, nil
		}
	}
	return registryEntry{}, fmt.Errorf("%w: %q (available: %s)", ErrUnknownModel, key, strings.Join(Keys(), ", "))
}

// Create builds an unfitted model by registry key or display name.
func Create(key string) (Model, error) {
	return CreateModel(ModelConfig{Algorithm: key, Seed: DefaultSeed})
}

func CreateModel(config ModelConfig) (Model, error) {
	e, err := lookup(config.Algorithm)
	if err != nil {
		return nil, err
	}
	return e.build(config.Seed), nil
}

// Resolve maps a key or display name to its registry key.
func Resolve(key string) (string, error) {
	e, err := lookup(key)
	if err != nil {
		return "", err
	}
	return e.key, nil
}

func Keys() []string {
	keys := make([]string, len(registry))
	for i, e := range registry {
		keys[i] = e.key
	}
	return keys
}

func Available() []Info {
	infos := make([]Info, len(registry))
	for i, e := range registry {
		infos[i] = Info{
			Key:               e.key,
			Name:              e.name,
			FeatureImportance: e.build(DefaultSeed).Capabilities().FeatureImportance,
		}
	}
	return infos
}
