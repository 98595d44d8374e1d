package visualize

import (
	"fmt"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"automl/internal/data"
	"automl/internal/models"
)

const DefaultTopN = 20

// confusionGrid lays the matrix out with predicted labels on X and the first true label
// on the top row.
type confusionGrid struct {
	matrix [][]int
}

func (g confusionGrid) Dims() (c, r int) {
	return len(g.matrix), len(g.matrix)
}

func (g confusionGrid) Z(c, r int) float64 {
	return float64(g.matrix[len(g.matrix)-1-r][c])
}

func (g confusionGrid) X(c int) float64 {
	return float64(c)
}

func (g confusionGrid) Y(r int) float64 {
	return float64(r)
}

// ConfusionMatrix counts true (rows) against predicted (columns) over the sorted union of labels.
func ConfusionMatrix(yTrue, yPred []string) ([]string, [][]int, error) {
	if len(yTrue) != len(yPred) {
		return nil, nil, fmt.Errorf("y_true has %d labels but y_pred has %d", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return nil, nil, fmt.Errorf("cannot plot a confusion matrix without labels")
	}

	labels := data.SortLabels(yTrue, yPred)
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}

	matrix := make([][]int, len(labels))
	for i := range matrix {
		matrix[i] = make([]int, len(labels))
	}
	for i := range yTrue {
		matrix[index[yTrue[i]]][index[yPred[i]]]++
	}

	return labels, matrix, nil
}

// RenderConfusionMatrix writes an annotated heatmap PNG to path.
func RenderConfusionMatrix(yTrue, yPred []string, path string) error {
	labels, matrix, err := ConfusionMatrix(yTrue, yPred)
	if err != nil {
		return err
	}

	grid := confusionGrid{matrix: matrix}
	heat := plotter.NewHeatMap(grid, palette.Heat(12, 1))

	maxCount := 0
	for _, row := range matrix {
		for _, v := range row {
			if v > maxCount {
				maxCount = v
			}
		}
	}
	heat.Min = 0
	heat.Max = float64(maxCount)
	if heat.Max == heat.Min {
		heat.Max = heat.Min + 1
	}

	n := len(labels)
	annotations := plotter.XYLabels{
		XYs:    make(plotter.XYs, 0, n*n),
		Labels: make([]string, 0, n*n),
	}
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			annotations.XYs = append(annotations.XYs, plotter.XY{X: grid.X(c), Y: grid.Y(r)})
			annotations.Labels = append(annotations.Labels, strconv.Itoa(int(grid.Z(c, r))))
		}
	}
	text, err := plotter.NewLabels(annotations)
	if err != nil {
		return fmt.Errorf("failed to build annotations: %w", err)
	}
	for i := range text.TextStyle {
		text.TextStyle[i].XAlign = -0.5
		text.TextStyle[i].YAlign = -0.5
	}

	p := plot.New()
	p.Title.Text = "Confusion Matrix"
	p.X.Label.Text = "Predicted Label"
	p.Y.Label.Text = "True Label"
	p.Add(heat, text)

	yTicks := make([]string, n)
	for r := 0; r < n; r++ {
		yTicks[r] = labels[n-1-r]
	}
	p.NominalX(labels...)
	p.NominalY(yTicks...)

	size := vg.Length(4+n/2) * vg.Inch
	if err := p.Save(size, size, path); err != nil {
		return fmt.Errorf("failed to save confusion matrix plot: %w", err)
	}
	return nil
}

type importance struct {
	name  string
	value float64
}

// TopImportances returns up to topN (name, importance) pairs, largest first. Ties keep
// feature order.
func TopImportances(model models.Model, featureNames []string, topN int) ([]string, []float64, error) {
	values, err := models.FeatureImportances(model)
	if err != nil {
		return nil, nil, err
	}
	if len(values) != len(featureNames) {
		return nil, nil, fmt.Errorf("model has %d importances for %d features", len(values), len(featureNames))
	}

	items := make([]importance, len(values))
	for i, v := range values {
		items[i] = importance{name: featureNames[i], value: v}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].value > items[j].value
	})

	if topN <= 0 {
		topN = DefaultTopN
	}
	if topN > len(items) {
		topN = len(items)
	}

	names := make([]string, topN)
	scores := make([]float64, topN)
	for i, it := range items[:topN] {
		names[i] = it.name
		scores[i] = it.value
	}
	return names, scores, nil
}

// RenderFeatureImportance writes a horizontal bar chart of the topN importances to path.
// It fails with models.ErrCapability when the model reports none.
func RenderFeatureImportance(model models.Model, featureNames []string, path string, topN int) error {
	names, scores, err := TopImportances(model, featureNames, topN)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("no features to plot")
	}

	// bars are drawn bottom-up, so reverse to put the largest on top
	n := len(names)
	values := make(plotter.Values, n)
	ticks := make([]string, n)
	for i := 0; i < n; i++ {
		values[i] = scores[n-1-i]
		ticks[i] = names[n-1-i]
	}

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return fmt.Errorf("failed to build bar chart: %w", err)
	}
	bars.Horizontal = true
	bars.Color = palette.Heat(3, 1).Colors()[1]

	p := plot.New()
	p.Title.Text = "Top Feature Importances"
	p.X.Label.Text = "Importance"
	p.Add(bars)
	p.NominalY(ticks...)

	height := vg.Length(2+n/3) * vg.Inch
	if err := p.Save(8*vg.Inch, height, path); err != nil {
		return fmt.Errorf("failed to save feature importance plot: %w", err)
	}
	return nil
}
