package commander

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"automl/internal/data"
	"automl/internal/evaluation"
	"automl/internal/models"
	"automl/internal/persistence"
	"automl/internal/pipeline"
)

func (c *Commander) train(ctx context.Context, args []string) error {
	fs := c.newFlagSet("train")
	dataFile := fs.String("data", "", "Path to training data CSV file")
	target := fs.String("target", "", "Target column (detected when empty)")
	model := fs.String("model", pipeline.DefaultModel, "Model key or display name")
	cvFolds := fs.Int("cv", 0, "Cross-validation folds (0 uses training.cv_folds)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *dataFile == "" {
		return fmt.Errorf("%w: train -data <csv> [-target col] [-model key]", ErrUsage)
	}

	c.printf("Training %s on %s...\n", c.cyan(*model), *dataFile)
	result, err := c.trainer.TrainFile(ctx, *dataFile, pipeline.TrainOptions{
		TargetColumn: *target,
		ModelKey:     *model,
		CVFolds:      *cvFolds,
	})
	if err != nil {
		return err
	}

	c.printf("%s %s trained in %v (target %q, %d train / %d test rows",
		c.green("✓"), result.ModelName, result.Duration.Round(time.Millisecond), result.TargetColumn, result.TrainRows, result.TestRows)
	if result.DroppedRows > 0 {
		c.printf(", %d dropped", result.DroppedRows)
	}
	c.println(")")

	c.printMetrics(result.Metrics)
	if result.CV != nil {
		c.printf("\nCross-validation: %.4f ± %.4f over %d folds\n", result.CV.Mean, result.CV.Std, len(result.CV.Scores))
	}

	c.println()
	c.printf("Model saved to:          %s\n", result.ModelPath)
	c.printf("Confusion matrix plot:   %s\n", result.ConfusionPlotPath)
	if result.FeaturePlotPath != "" {
		c.printf("Feature importance plot: %s\n", result.FeaturePlotPath)
	}
	return nil
}

func (c *Commander) test(ctx context.Context, args []string) error {
	fs := c.newFlagSet("test")
	dataFile := fs.String("data", "", "Path to test data CSV file")
	modelPath := fs.String("model", "", "Path to a saved .model artifact")
	target := fs.String("target", "", "Ground truth column (detected when empty)")
	reuse := fs.Bool("reuse", false, "Apply the training encoders and scaler instead of refitting")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *dataFile == "" || *modelPath == "" {
		return fmt.Errorf("%w: test -data <csv> -model <path> [-target col]", ErrUsage)
	}

	c.printf("Testing %s on %s...\n", c.cyan(filepath.Base(*modelPath)), *dataFile)
	result, err := c.tester.TestFile(ctx, *dataFile, *modelPath, pipeline.TestOptions{
		TargetColumn:       *target,
		ReuseTrainingState: *reuse,
	})
	if err != nil {
		return err
	}

	c.printf("%s %d rows predicted with %s\n", c.green("✓"), result.Rows, result.ModelName)
	c.printf("Predictions saved to: %s\n", result.PredictionsPath)

	if result.Metrics == nil {
		c.println(c.yellow("No ground truth column found, evaluation skipped"))
		return nil
	}

	c.printf("Evaluated against %q\n", result.TargetColumn)
	c.printMetrics(result.Metrics)
	c.printf("\nConfusion matrix plot: %s\n", result.ConfusionPlotPath)
	return nil
}

func (c *Commander) compare(ctx context.Context, args []string) error {
	fs := c.newFlagSet("compare")
	dataFile := fs.String("data", "", "Path to data CSV file")
	target := fs.String("target", "", "Target column (detected when empty)")
	modelList := fs.String("models", "", "Comma separated model keys (all when empty)")
	output := fs.String("output", "", "Write the comparison table to this CSV file")
	cvFolds := fs.Int("cv", 0, "Cross-validation folds (0 uses training.cv_folds)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *dataFile == "" {
		return fmt.Errorf("%w: compare -data <csv> [-target col] [-models a,b] [-output results.csv]", ErrUsage)
	}

	var keys []string
	for _, k := range strings.Split(*modelList, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}

	ds, err := data.NewCSVReader(*dataFile).LoadData()
	if err != nil {
		return err
	}

	c.println(c.cyan("Comparing models..."))
	results, err := c.comparer.Compare(ctx, ds, pipeline.CompareOptions{
		TargetColumn: *target,
		DatasetName:  filepath.Base(*dataFile),
		Models:       keys,
		CVFolds:      *cvFolds,
	})
	if err != nil {
		return err
	}

	c.println(c.blue("\nModel Comparison Results:"))
	c.println(strings.Repeat("─", 90))
	c.printf("%-26s %-10s %-10s %-10s %-10s %-10s %-10s\n",
		"Model", "Accuracy", "F1", "Precision", "Recall", "CV Mean", "Time (ms)")
	c.println(strings.Repeat("─", 90))
	for _, r := range results {
		c.printf("%-26s %-10.4f %-10.4f %-10.4f %-10.4f %-10.4f %-10d\n",
			r.ModelName, r.Accuracy, r.F1Score, r.Precision, r.Recall, r.CVMean, r.TrainingTimeMs)
	}
	c.println(strings.Repeat("─", 90))

	if len(results) > 0 {
		c.printf("\n%s Best model: %s (Accuracy: %.4f)\n", c.green("★"), results[0].ModelName, results[0].Accuracy)
	}

	if *output != "" {
		if err := pipeline.ExportResults(results, *output); err != nil {
			return err
		}
		c.printf("Results saved to: %s\n", *output)
	}
	return nil
}

func (c *Commander) profile(args []string) error {
	fs := c.newFlagSet("profile")
	dataFile := fs.String("data", "", "Path to data CSV file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *dataFile == "" {
		return fmt.Errorf("%w: profile -data <csv>", ErrUsage)
	}

	ds, err := data.NewCSVReader(*dataFile).LoadData()
	if err != nil {
		return err
	}
	p := data.NewDataValidator().Profile(ds)

	c.println(c.blue("\nDataset Profile:"))
	c.printf("%d rows, %d columns, %d missing cells, %d complete rows, target %q\n",
		p.Rows, p.Columns, p.MissingCells, p.CompleteRows, p.Target)
	c.println(strings.Repeat("─", 90))
	c.printf("%-18s %-12s %-8s %-9s %-10s %-10s %-10s %-10s\n",
		"Column", "Kind", "Missing", "Distinct", "Mean", "Std", "Min", "Max")
	c.println(strings.Repeat("─", 90))
	for _, col := range p.ColumnStats {
		c.printf("%-18s %-12s %-8d %-9d %-10s %-10s %-10s %-10s\n",
			truncate(col.Name, 16), col.Kind, col.Missing, col.Distinct,
			formatStat(col.Mean), formatStat(col.Std), formatStat(col.Min), formatStat(col.Max))
	}
	return nil
}

func formatStat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}

func (c *Commander) listModels() error {
	c.println(c.blue("\nAvailable Algorithms:"))
	c.println(strings.Repeat("─", 70))
	c.printf("%-16s %-26s %-20s\n", "Key", "Name", "Feature importance")
	c.println(strings.Repeat("─", 70))
	for _, info := range models.Available() {
		importance := "no"
		if info.FeatureImportance {
			importance = "yes"
		}
		c.printf("%-16s %-26s %-20s\n", info.Key, info.Name, importance)
	}

	modelFiles, err := filepath.Glob(filepath.Join(c.cfg.Paths.Models, "*"+persistence.ModelExt))
	if err != nil || len(modelFiles) == 0 {
		c.printf("\nNo saved models found in %s\n", c.cfg.Paths.Models)
		c.println("Train a model using the 'train' command")
		return nil
	}

	c.println(c.blue("\nSaved Models:"))
	c.println(strings.Repeat("─", 70))
	c.printf("%-48s %-10s %-12s\n", "Filename", "Size", "Modified")
	c.println(strings.Repeat("─", 70))
	for _, file := range modelFiles {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		c.printf("%-48s %-10s %-12s\n",
			filepath.Base(file),
			fmt.Sprintf("%.1f KB", float64(info.Size())/1024),
			info.ModTime().Format("01-02 15:04"))
	}
	c.println()
	c.println("Use 'inspect -model <path>' to see a model's details")
	return nil
}

func (c *Commander) listRuns(args []string) error {
	fs := c.newFlagSet("runs")
	limit := fs.Int("limit", 20, "Number of runs to show")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if !c.history.Enabled() {
		c.println(c.yellow("Run history is disabled (history.path is empty)"))
		return nil
	}

	runs, err := c.history.List(*limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		c.println("No runs recorded yet")
		return nil
	}

	c.println(c.blue("\nRecent Runs:"))
	c.println(strings.Repeat("─", 90))
	c.printf("%-20s %-8s %-16s %-20s %-10s %-10s\n", "Time", "Kind", "Model", "Dataset", "Accuracy", "Status")
	c.println(strings.Repeat("─", 90))
	for _, run := range runs {
		accuracy := "-"
		if run.Metrics != nil {
			accuracy = fmt.Sprintf("%.4f", run.Metrics.Accuracy)
		}
		status := c.green("ok")
		if run.Error != "" {
			status = c.red("failed")
		}
		c.printf("%-20s %-8s %-16s %-20s %-10s %-10s\n",
			run.CreatedAt.Format("2006-01-02 15:04:05"), run.Kind, run.ModelKey, run.Dataset, accuracy, status)
	}
	return nil
}

func (c *Commander) inspect(args []string) error {
	fs := c.newFlagSet("inspect")
	modelPath := fs.String("model", "", "Path to a saved .model artifact")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *modelPath == "" {
		return fmt.Errorf("%w: inspect -model <path>", ErrUsage)
	}

	bundle, err := persistence.LoadModelBundle(*modelPath)
	if err != nil {
		return err
	}

	c.println(c.blue("\nModel Information:"))
	c.println(strings.Repeat("─", 60))
	if err := bundle.WriteSummary(c.out); err != nil {
		return err
	}
	if len(bundle.Metadata.Parameters) > 0 {
		c.printf("Parameters: %v\n", bundle.Metadata.Parameters)
	}
	return nil
}

func (c *Commander) printMetrics(report *evaluation.Report) {
	c.println(c.blue("\nModel Evaluation:"))
	c.println(strings.Repeat("═", 60))
	c.printf("Accuracy:  %.4f\n", report.Accuracy)
	c.printf("Precision: %.4f\n", report.Precision)
	c.printf("Recall:    %.4f\n", report.Recall)
	c.printf("F1 Score:  %.4f\n", report.F1Score)

	c.println("\n" + c.cyan("Confusion Matrix:"))
	c.println("(Rows = Actual, Columns = Predicted)")
	c.printf("%-18s", "")
	for _, label := range report.Labels {
		c.printf("%-10s", truncate(label, 8))
	}
	c.println()

	for i, actual := range report.Labels {
		c.printf("%-18s", truncate(actual, 16))
		for j, count := range report.ConfusionMatrix[i] {
			cell := fmt.Sprintf("%-10d", count)
			switch {
			case i == j:
				cell = c.green(cell)
			case count > 0:
				cell = c.red(cell)
			}
			c.printf("%s", cell)
		}
		c.println()
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
