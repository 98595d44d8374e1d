package models

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// LogisticRegression is a multinomial softmax classifier with an L2 penalty, fitted by
// full-batch gradient descent from zero weights.
type LogisticRegression struct {
	BaseModel
	C          float64
	MaxIter    int
	Tol        float64
	NClasses   int
	Weights    [][]float64
	Intercepts []float64
	NIter      int
}

func NewLogisticRegression(c float64, maxIter int, tol float64) *LogisticRegression {
	if c <= 0 {
		c = 1.0
	}
	if maxIter <= 0 {
		maxIter = 1000
	}
	if tol <= 0 {
		tol = 1e-4
	}

	return &LogisticRegression{
		C:       c,
		MaxIter: maxIter,
		Tol:     tol,
		BaseModel: BaseModel{
			Name: "Logistic Regression",
			Params: map[string]any{
				"penalty":  "l2",
				"C":        c,
				"max_iter": maxIter,
				"tol":      tol,
			},
		},
	}
}

func (lr *LogisticRegression) Capabilities() Capabilities {
	return Capabilities{Probabilities: true}
}

// Fit minimises mean cross-entropy plus ||W||^2 / (2*C*n). The step size is the inverse of
// an upper bound on the loss curvature, so descent is monotone.
func (lr *LogisticRegression) Fit(X [][]float64, y []int) error {
	if err := validateFit(X, y); err != nil {
		return err
	}

	n := len(X)
	d := len(X[0])
	k := numClasses(y)

	lr.Classes = ExtractClasses(y)
	lr.NClasses = k
	lr.Weights = make([][]float64, k)
	for c := range lr.Weights {
		lr.Weights[c] = make([]float64, d)
	}
	lr.Intercepts = make([]float64, k)

	lambda := 1 / (lr.C * float64(n))

	sqNorm := 0.0
	for _, row := range X {
		sqNorm += floats.Dot(row, row) + 1
	}
	step := 1 / (0.5*sqNorm/float64(n) + lambda)

	gradW := make([][]float64, k)
	for c := range gradW {
		gradW[c] = make([]float64, d)
	}
	gradB := make([]float64, k)
	proba := make([]float64, k)

	for iter := 0; iter < lr.MaxIter; iter++ {
		for c := range gradW {
			for j := range gradW[c] {
				gradW[c][j] = 0
			}
			gradB[c] = 0
		}

		for i, row := range X {
			lr.softmax(row, proba)
			proba[y[i]] -= 1
			for c := 0; c < k; c++ {
				floats.AddScaled(gradW[c], proba[c], row)
				gradB[c] += proba[c]
			}
		}

		maxGrad := 0.0
		for c := 0; c < k; c++ {
			floats.Scale(1/float64(n), gradW[c])
			floats.AddScaled(gradW[c], lambda, lr.Weights[c])
			gradB[c] /= float64(n)

			maxGrad = math.Max(maxGrad, floats.Norm(gradW[c], math.Inf(1)))
			maxGrad = math.Max(maxGrad, math.Abs(gradB[c]))

			floats.AddScaled(lr.Weights[c], -step, gradW[c])
			lr.Intercepts[c] -= step * gradB[c]
		}

		lr.NIter = iter + 1
		if maxGrad < lr.Tol {
			break
		}
	}

	return nil
}

func (lr *LogisticRegression) softmax(row, out []float64) {
	for c := range out {
		out[c] = floats.Dot(lr.Weights[c], row) + lr.Intercepts[c]
	}
	maxLogit := floats.Max(out)
	for c := range out {
		out[c] = math.Exp(out[c] - maxLogit)
	}
	floats.Scale(1/floats.Sum(out), out)
}

func (lr *LogisticRegression) PredictProba(X [][]float64) [][]float64 {
	proba := make([][]float64, len(X))
	for i, row := range X {
		proba[i] = make([]float64, lr.NClasses)
		lr.softmax(row, proba[i])
	}
	return proba
}

func (lr *LogisticRegression) Predict(X [][]float64) []int {
	predictions := make([]int, len(X))
	proba := make([]float64, lr.NClasses)
	for i, row := range X {
		lr.softmax(row, proba)
		predictions[i] = argmax(proba)
	}
	return predictions
}
