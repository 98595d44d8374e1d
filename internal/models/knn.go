package models

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

type KNN struct {
	BaseModel
	K        int
	Distance string
	NClasses int
	XTrain   [][]float64
	YTrain   []int
}

func NewKNN(k int, distance string) *KNN {
	if k <= 0 {
		k = 5
	}

	if distance != "euclidean" && distance != "manhattan" {
		distance = "euclidean"
	}

	return &KNN{
		K:        k,
		Distance: distance,
		BaseModel: BaseModel{
			Name: "K-Nearest Neighbors",
			Params: map[string]any{
				"n_neighbors": k,
				"metric":      distance,
				"weights":     "uniform",
			},
		},
	}
}

func (knn *KNN) Capabilities() Capabilities {
	return Capabilities{Probabilities: true}
}

func (knn *KNN) Fit(X [][]float64, y []int) error {
	if err := validateFit(X, y); err != nil {
		return err
	}

	knn.XTrain = make([][]float64, len(X))
	for i := range X {
		knn.XTrain[i] = append([]float64(nil), X[i]...)
	}
	knn.YTrain = append([]int(nil), y...)

	knn.Classes = ExtractClasses(y)
	knn.NClasses = numClasses(y)
	return nil
}

func (knn *KNN) Predict(X [][]float64) []int {
	predictions := make([]int, len(X))
	for i, sample := range X {
		predictions[i] = argmax(knn.votes(sample))
	}
	return predictions
}

func (knn *KNN) PredictProba(X [][]float64) [][]float64 {
	proba := make([][]float64, len(X))
	for i, sample := range X {
		votes := knn.votes(sample)
		total := floats.Sum(votes)
		floats.Scale(1/total, votes)
		proba[i] = votes
	}
	return proba
}

// votes counts the classes of the K nearest training samples. Equal distances keep
// training order.
func (knn *KNN) votes(sample []float64) []float64 {
	type neighbor struct {
		index    int
		distance float64
	}

	neighbors := make([]neighbor, len(knn.XTrain))
	for i, trainSample := range knn.XTrain {
		neighbors[i] = neighbor{index: i, distance: knn.calculateDistance(sample, trainSample)}
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].distance < neighbors[j].distance
	})

	k := knn.K
	if k > len(neighbors) {
		k = len(neighbors)
	}

	votes := make([]float64, knn.NClasses)
	for _, nb := range neighbors[:k] {
		votes[knn.YTrain[nb.index]]++
	}
	return votes
}

func (knn *KNN) calculateDistance(a, b []float64) float64 {
	if knn.Distance == "manhattan" {
		return floats.Distance(a, b, 1)
	}
	return math.Sqrt(squaredDistance(a, b))
}

func squaredDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
