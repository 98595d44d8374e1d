package models

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// SVMPair is the binary RBF machine separating ClassA (+1) from ClassB (-1).
type SVMPair struct {
	ClassA         int
	ClassB         int
	SupportVectors [][]float64
	Coef           []float64
	Bias           float64
}

// SVM is a one-vs-one RBF support vector classifier trained with simplified SMO.
type SVM struct {
	BaseModel
	C         float64
	Gamma     float64
	Tol       float64
	MaxPasses int
	MaxIter   int
	Seed      int64
	NClasses  int
	Pairs     []SVMPair
}

func NewSVM(c float64, seed int64) *SVM {
	if c <= 0 {
		c = 1.0
	}

	return &SVM{
		C:         c,
		Tol:       1e-3,
		MaxPasses: 5,
		MaxIter:   200,
		Seed:      seed,
		BaseModel: BaseModel{
			Name: "Support Vector Machine",
			Params: map[string]any{
				"kernel":       "rbf",
				"C":            c,
				"gamma":        "scale",
				"random_state": seed,
			},
		},
	}
}

func (s *SVM) Capabilities() Capabilities {
	return Capabilities{}
}

func (s *SVM) Fit(X [][]float64, y []int) error {
	if err := validateFit(X, y); err != nil {
		return err
	}

	s.Classes = ExtractClasses(y)
	s.NClasses = numClasses(y)
	s.Gamma = scaleGamma(X)

	r := rand.New(rand.NewSource(s.Seed))

	s.Pairs = nil
	for a := 0; a < len(s.Classes); a++ {
		for b := a + 1; b < len(s.Classes); b++ {
			s.Pairs = append(s.Pairs, s.fitPair(X, y, s.Classes[a], s.Classes[b], r))
		}
	}

	return nil
}

// scaleGamma is 1 / (n_features * Var(X)) over every entry of X.
func scaleGamma(X [][]float64) float64 {
	all := make([]float64, 0, len(X)*len(X[0]))
	for _, row := range X {
		all = append(all, row...)
	}

	mean := floats.Sum(all) / float64(len(all))
	variance := 0.0
	for _, v := range all {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(all))

	if variance == 0 {
		return 1
	}
	return 1 / (float64(len(X[0])) * variance)
}

func (s *SVM) kernel(a, b []float64) float64 {
	return math.Exp(-s.Gamma * squaredDistance(a, b))
}

func (s *SVM) fitPair(X [][]float64, y []int, classA, classB int, r *rand.Rand) SVMPair {
	var rows [][]float64
	var labels []float64
	for i, c := range y {
		switch c {
		case classA:
			rows = append(rows, X[i])
			labels = append(labels, 1)
		case classB:
			rows = append(rows, X[i])
			labels = append(labels, -1)
		}
	}

	n := len(rows)
	K := make([][]float64, n)
	for i := range K {
		K[i] = make([]float64, n)
		for j := 0; j <= i; j++ {
			K[i][j] = s.kernel(rows[i], rows[j])
			K[j][i] = K[i][j]
		}
	}

	alpha := make([]float64, n)
	bias := 0.0

	decision := func(i int) float64 {
		sum := bias
		for k := 0; k < n; k++ {
			if alpha[k] != 0 {
				sum += alpha[k] * labels[k] * K[k][i]
			}
		}
		return sum
	}

	passes := 0
	for iter := 0; passes < s.MaxPasses && iter < s.MaxIter; iter++ {
		changed := 0

		for i := 0; i < n; i++ {
			ei := decision(i) - labels[i]
			if !((labels[i]*ei < -s.Tol && alpha[i] < s.C) || (labels[i]*ei > s.Tol && alpha[i] > 0)) {
				continue
			}

			j := r.Intn(n - 1)
			if j >= i {
				j++
			}
			ej := decision(j) - labels[j]

			ai, aj := alpha[i], alpha[j]

			var lo, hi float64
			if labels[i] != labels[j] {
				lo = math.Max(0, aj-ai)
				hi = math.Min(s.C, s.C+aj-ai)
			} else {
				lo = math.Max(0, ai+aj-s.C)
				hi = math.Min(s.C, ai+aj)
			}
			if lo == hi {
				continue
			}

			eta := 2*K[i][j] - K[i][i] - K[j][j]
			if eta >= 0 {
				continue
			}

			alpha[j] = aj - labels[j]*(ei-ej)/eta
			alpha[j] = math.Min(hi, math.Max(lo, alpha[j]))
			if math.Abs(alpha[j]-aj) < 1e-5 {
				alpha[j] = aj
				continue
			}

			alpha[i] = ai + labels[i]*labels[j]*(aj-alpha[j])

			b1 := bias - ei - labels[i]*(alpha[i]-ai)*K[i][i] - labels[j]*(alpha[j]-aj)*K[i][j]
			b2 := bias - ej - labels[i]*(alpha[i]-ai)*K[i][j] - labels[j]*(alpha[j]-aj)*K[j][j]

			switch {
			case alpha[i] > 0 && alpha[i] < s.C:
				bias = b1
			case alpha[j] > 0 && alpha[j] < s.C:
				bias = b2
			default:
				bias = (b1 + b2) / 2
			}

			changed++
		}

		if changed == 0 {
			passes++
		} else {
			passes = 0
		}
	}

	pair := SVMPair{ClassA: classA, ClassB: classB, Bias: bias}
	for i := 0; i < n; i++ {
		if alpha[i] > 0 {
			pair.SupportVectors = append(pair.SupportVectors, rows[i])
			pair.Coef = append(pair.Coef, alpha[i]*labels[i])
		}
	}

	return pair
}

func (s *SVM) pairDecision(p *SVMPair, sample []float64) float64 {
	sum := p.Bias
	for k, sv := range p.SupportVectors {
		sum += p.Coef[k] * s.kernel(sv, sample)
	}
	return sum
}

// Predict takes the class with the most pairwise wins, the lowest code on ties.
func (s *SVM) Predict(X [][]float64) []int {
	predictions := make([]int, len(X))

	for i, sample := range X {
		if len(s.Pairs) == 0 {
			predictions[i] = s.Classes[0]
			continue
		}

		votes := make([]float64, s.NClasses)
		for p := range s.Pairs {
			pair := &s.Pairs[p]
			if s.pairDecision(pair, sample) > 0 {
				votes[pair.ClassA]++
			} else {
				votes[pair.ClassB]++
			}
		}
		predictions[i] = argmax(votes)
	}

	return predictions
}
