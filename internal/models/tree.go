package models

import (
	"math/rand"
	"sort"
)

type TreeNode struct {
	IsLeaf    bool
	Class     int
	Feature   int
	Threshold float64
	Left      *TreeNode
	Right     *TreeNode
	Samples   int
	Impurity  float64
	Counts    []float64
}

// DecisionTree is a CART classifier using gini impurity. Samples with a feature value at or
// below the threshold go left.
type DecisionTree struct {
	BaseModel
	Root            *TreeNode
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	NClasses        int
	NFeatures       int
	Importances     []float64

	rng *rand.Rand
}

// NewDecisionTree returns a tree; maxDepth 0 grows until leaves are pure.
func NewDecisionTree(maxDepth, minSamplesSplit int) *DecisionTree {
	if maxDepth < 0 {
		maxDepth = 0
	}

	if minSamplesSplit < 2 {
		minSamplesSplit = 2
	}

	return &DecisionTree{
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
		MinSamplesLeaf:  1,
		BaseModel: BaseModel{
			Name: "Decision Tree",
			Params: map[string]any{
				"criterion":         "gini",
				"max_depth":         maxDepth,
				"min_samples_split": minSamplesSplit,
				"min_samples_leaf":  1,
			},
		},
	}
}

func (dt *DecisionTree) Capabilities() Capabilities {
	return Capabilities{FeatureImportance: true, Probabilities: true}
}

func (dt *DecisionTree) Fit(X [][]float64, y []int) error {
	if err := validateFit(X, y); err != nil {
		return err
	}

	indices := make([]int, len(X))
	for i := range indices {
		indices[i] = i
	}
	dt.fitIndices(X, y, indices, numClasses(y))
	return nil
}

// fitIndices grows the tree on the rows of X named by indices. The forest passes bootstrap
// indices and its own class count so leaf distributions line up across trees.
func (dt *DecisionTree) fitIndices(X [][]float64, y []int, indices []int, nClasses int) {
	sub := make([]int, len(indices))
	for i, idx := range indices {
		sub[i] = y[idx]
	}
	dt.Classes = ExtractClasses(sub)
	dt.NClasses = nClasses
	dt.NFeatures = len(X[0])
	dt.Importances = make([]float64, dt.NFeatures)

	b := &treeBuilder{tree: dt, X: X, y: y}
	dt.Root = b.build(indices, 0)

	total := 0.0
	for _, v := range dt.Importances {
		total += v
	}
	if total > 0 {
		for j := range dt.Importances {
			dt.Importances[j] /= total
		}
	}
}

type treeBuilder struct {
	tree *DecisionTree
	X    [][]float64
	y    []int
}

type split struct {
	feature   int
	threshold float64
	position  int
	impurity  float64
}

func (b *treeBuilder) build(indices []int, depth int) *TreeNode {
	dt := b.tree
	counts := b.countClasses(indices)
	node := &TreeNode{
		Samples:  len(indices),
		Impurity: gini(counts, float64(len(indices))),
		Counts:   counts,
		Class:    argmax(counts),
	}

	if node.Impurity == 0 ||
		len(indices) < dt.MinSamplesSplit ||
		len(indices) < 2*dt.MinSamplesLeaf ||
		(dt.MaxDepth > 0 && depth >= dt.MaxDepth) {
		node.IsLeaf = true
		return node
	}

	best, ok := b.findBestSplit(indices, node.Impurity)
	if !ok {
		node.IsLeaf = true
		return node
	}

	b.sortByFeature(indices, best.feature)
	left := append([]int(nil), indices[:best.position]...)
	right := append([]int(nil), indices[best.position:]...)

	node.Feature = best.feature
	node.Threshold = best.threshold

	nLeft, nRight := float64(len(left)), float64(len(right))
	leftImp := gini(b.countClasses(left), nLeft)
	rightImp := gini(b.countClasses(right), nRight)
	dt.Importances[best.feature] += float64(len(indices))*node.Impurity - nLeft*leftImp - nRight*rightImp

	node.Left = b.build(left, depth+1)
	node.Right = b.build(right, depth+1)

	return node
}

// findBestSplit scans candidate features in order, or in a random order limited to
// MaxFeatures non-constant features when the tree has a random source.
func (b *treeBuilder) findBestSplit(indices []int, parentImpurity float64) (split, bool) {
	dt := b.tree
	features := make([]int, dt.NFeatures)
	for i := range features {
		features[i] = i
	}

	limit := dt.NFeatures
	if dt.rng != nil && dt.MaxFeatures > 0 && dt.MaxFeatures < dt.NFeatures {
		dt.rng.Shuffle(len(features), func(i, j int) {
			features[i], features[j] = features[j], features[i]
		})
		limit = dt.MaxFeatures
	}

	best := split{impurity: parentImpurity}
	found := false
	visited := 0
	n := float64(len(indices))
	minLeaf := dt.MinSamplesLeaf

	for _, f := range features {
		if visited >= limit {
			break
		}

		b.sortByFeature(indices, f)
		if b.X[indices[0]][f] == b.X[indices[len(indices)-1]][f] {
			continue
		}
		visited++

		left := make([]float64, dt.NClasses)
		right := b.countClasses(indices)

		for pos := 1; pos < len(indices); pos++ {
			c := b.y[indices[pos-1]]
			left[c]++
			right[c]--

			prev := b.X[indices[pos-1]][f]
			next := b.X[indices[pos]][f]
			if next <= prev || pos < minLeaf || len(indices)-pos < minLeaf {
				continue
			}

			nLeft := float64(pos)
			nRight := n - nLeft
			weighted := (nLeft*gini(left, nLeft) + nRight*gini(right, nRight)) / n

			if !found || weighted < best.impurity {
				best = split{
					feature:   f,
					threshold: prev + (next-prev)/2,
					position:  pos,
					impurity:  weighted,
				}
				found = true
			}
		}
	}

	return best, found
}

func (b *treeBuilder) sortByFeature(indices []int, f int) {
	sort.SliceStable(indices, func(i, j int) bool {
		return b.X[indices[i]][f] < b.X[indices[j]][f]
	})
}

func (b *treeBuilder) countClasses(indices []int) []float64 {
	counts := make([]float64, b.tree.NClasses)
	for _, idx := range indices {
		counts[b.y[idx]]++
	}
	return counts
}

func gini(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := c / n
		impurity -= p * p
	}
	if impurity < 1e-15 {
		return 0
	}
	return impurity
}

func (dt *DecisionTree) Predict(X [][]float64) []int {
	predictions := make([]int, len(X))
	for i, sample := range X {
		predictions[i] = dt.leaf(sample).Class
	}
	return predictions
}

func (dt *DecisionTree) PredictProba(X [][]float64) [][]float64 {
	proba := make([][]float64, len(X))
	for i, sample := range X {
		node := dt.leaf(sample)
		row := make([]float64, dt.NClasses)
		for c, count := range node.Counts {
			row[c] = count / float64(node.Samples)
		}
		proba[i] = row
	}
	return proba
}

func (dt *DecisionTree) leaf(sample []float64) *TreeNode {
	node := dt.Root
	for !node.IsLeaf {
		if sample[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

func (dt *DecisionTree) FeatureImportances() []float64 {
	return append([]float64(nil), dt.Importances...)
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (dt *DecisionTree) Depth() int {
	return nodeDepth(dt.Root)
}

func nodeDepth(n *TreeNode) int {
	if n == nil || n.IsLeaf {
		return 0
	}
	l, r := nodeDepth(n.Left), nodeDepth(n.Right)
	if l > r {
		return l + 1
	}
	return r + 1
}
