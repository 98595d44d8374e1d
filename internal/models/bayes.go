package models

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// NaiveBayes is a Gaussian naive Bayes classifier. Variances are smoothed by VarSmoothing
// times the largest feature variance.
type NaiveBayes struct {
	BaseModel
	VarSmoothing   float64
	NClasses       int
	ClassLogPriors []float64
	FeatureMeans   [][]float64
	FeatureVars    [][]float64
}

func NewNaiveBayes(varSmoothing float64) *NaiveBayes {
	if varSmoothing <= 0 {
		varSmoothing = 1e-9
	}

	return &NaiveBayes{
		VarSmoothing: varSmoothing,
		BaseModel: BaseModel{
			Name: "Naive Bayes",
			Params: map[string]any{
				"var_smoothing": varSmoothing,
			},
		},
	}
}

func (nb *NaiveBayes) Capabilities() Capabilities {
	return Capabilities{Probabilities: true}
}

func (nb *NaiveBayes) Fit(X [][]float64, y []int) error {
	if err := validateFit(X, y); err != nil {
		return err
	}

	nb.Classes = ExtractClasses(y)
	nb.NClasses = numClasses(y)
	nFeatures := len(X[0])

	epsilon := nb.VarSmoothing * maxFeatureVariance(X)

	nb.ClassLogPriors = make([]float64, nb.NClasses)
	nb.FeatureMeans = make([][]float64, nb.NClasses)
	nb.FeatureVars = make([][]float64, nb.NClasses)

	counts := make([]float64, nb.NClasses)
	for c := 0; c < nb.NClasses; c++ {
		nb.FeatureMeans[c] = make([]float64, nFeatures)
		nb.FeatureVars[c] = make([]float64, nFeatures)
	}

	for i, row := range X {
		counts[y[i]]++
		floats.Add(nb.FeatureMeans[y[i]], row)
	}

	for c := 0; c < nb.NClasses; c++ {
		if counts[c] == 0 {
			nb.ClassLogPriors[c] = math.Inf(-1)
			continue
		}
		nb.ClassLogPriors[c] = math.Log(counts[c] / float64(len(y)))
		floats.Scale(1/counts[c], nb.FeatureMeans[c])
	}

	for i, row := range X {
		c := y[i]
		for j, v := range row {
			diff := v - nb.FeatureMeans[c][j]
			nb.FeatureVars[c][j] += diff * diff
		}
	}

	for c := 0; c < nb.NClasses; c++ {
		for j := range nb.FeatureVars[c] {
			if counts[c] > 0 {
				nb.FeatureVars[c][j] /= counts[c]
			}
			nb.FeatureVars[c][j] += epsilon
			if nb.FeatureVars[c][j] == 0 {
				nb.FeatureVars[c][j] = nb.VarSmoothing
			}
		}
	}

	return nil
}

func maxFeatureVariance(X [][]float64) float64 {
	n := float64(len(X))
	best := 0.0
	for j := range X[0] {
		var sum, sq float64
		for _, row := range X {
			sum += row[j]
		}
		mean := sum / n
		for _, row := range X {
			d := row[j] - mean
			sq += d * d
		}
		best = math.Max(best, sq/n)
	}
	return best
}

func (nb *NaiveBayes) jointLogLikelihood(sample []float64) []float64 {
	logProbs := make([]float64, nb.NClasses)

	for c := 0; c < nb.NClasses; c++ {
		logProb := nb.ClassLogPriors[c]
		if math.IsInf(logProb, -1) {
			logProbs[c] = logProb
			continue
		}
		for j, x := range sample {
			variance := nb.FeatureVars[c][j]
			diff := x - nb.FeatureMeans[c][j]
			logProb += -0.5*math.Log(2*math.Pi*variance) - diff*diff/(2*variance)
		}
		logProbs[c] = logProb
	}

	return logProbs
}

func (nb *NaiveBayes) Predict(X [][]float64) []int {
	predictions := make([]int, len(X))
	for i, sample := range X {
		predictions[i] = argmax(nb.jointLogLikelihood(sample))
	}
	return predictions
}

func (nb *NaiveBayes) PredictProba(X [][]float64) [][]float64 {
	proba := make([][]float64, len(X))

	for i, sample := range X {
		logProbs := nb.jointLogLikelihood(sample)
		maxLogProb := floats.Max(logProbs)

		for c, lp := range logProbs {
			logProbs[c] = math.Exp(lp - maxLogProb)
		}
		floats.Scale(1/floats.Sum(logProbs), logProbs)
		proba[i] = logProbs
	}

	return proba
}
