// Package commander implements the terminal front end: one-shot subcommands and an
// interactive shell that accepts the same commands.
package commander

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"automl/internal/config"
	"automl/internal/history"
	"automl/internal/pipeline"
)

// ErrUsage is returned when a command is called with bad arguments.
var ErrUsage = errors.New("usage error")

type Commander struct {
	cfg      *config.Config
	trainer  *pipeline.Trainer
	tester   *pipeline.Tester
	comparer *pipeline.Comparer
	history  *history.Store
	out      io.Writer

	green  func(a ...any) string
	red    func(a ...any) string
	yellow func(a ...any) string
	cyan   func(a ...any) string
	blue   func(a ...any) string
}

func NewCommander(cfg *config.Config, trainer *pipeline.Trainer, tester *pipeline.Tester, comparer *pipeline.Comparer, store *history.Store, out io.Writer) *Commander {
	return &Commander{
		cfg:      cfg,
		trainer:  trainer,
		tester:   tester,
		comparer: comparer,
		history:  store,
		out:      out,
		green:    color.New(color.FgGreen).SprintFunc(),
		red:      color.New(color.FgRed).SprintFunc(),
		yellow:   color.New(color.FgYellow).SprintFunc(),
		cyan:     color.New(color.FgCyan).SprintFunc(),
		blue:     color.New(color.FgBlue).SprintFunc(),
	}
}

func (c *Commander) printf(format string, a ...any) {
	fmt.Fprintf(c.out, format, a...)
}

func (c *Commander) println(a ...any) {
	fmt.Fprintln(c.out, a...)
}

// Run executes one command. args[0] is the command name.
func (c *Commander) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.showHelp()
		return fmt.Errorf("%w: no command given", ErrUsage)
	}

	command, rest := strings.ToLower(args[0]), args[1:]
	switch command {
	case "train":
		return c.train(ctx, rest)
	case "test":
		return c.test(ctx, rest)
	case "compare":
		return c.compare(ctx, rest)
	case "profile", "eda":
		return c.profile(rest)
	case "models", "list":
		return c.listModels()
	case "runs", "history":
		return c.listRuns(rest)
	case "inspect", "info":
		return c.inspect(rest)
	case "help", "h":
		c.showHelp()
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q, type 'help' for available commands", ErrUsage, command)
	}
}

// Start reads commands from in until EOF or quit and runs each of them. Failures are
// printed and the shell keeps going.
func (c *Commander) Start(ctx context.Context, in io.Reader) error {
	c.printWelcome()
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(c.out, c.yellow("\nautoml> "))
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("scanner error: %w", err)
			}
			c.println()
			return nil
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		switch strings.ToLower(parts[0]) {
		case "quit", "exit", "q":
			return nil
		}

		if err := c.Run(ctx, parts); err != nil {
			c.printf("%s %v\n", c.red("✗"), err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Commander) printWelcome() {
	c.println(c.cyan("╔══════════════════════════════════════════╗"))
	c.println(c.cyan("║        AutoML Trainer & Tester            ║"))
	c.println(c.cyan("║           Interactive Shell               ║"))
	c.println(c.cyan("╚══════════════════════════════════════════╝"))
	c.println()
	c.println("Type 'help' for available commands")
}

func (c *Commander) showHelp() {
	c.println(c.blue("\nAvailable Commands:"))

	c.println("\n" + c.cyan("Training:"))
	c.println("  train -data <csv> [-target col] [-model key] [-cv folds]")
	c.println("                           Train a model and save it with its plots")
	c.println("  compare -data <csv> [-target col] [-models a,b] [-output results.csv]")
	c.println("                           Train several models on the same split")

	c.println("  profile -data <csv>      - Summarise columns, missing cells and statistics")

	c.println("\n" + c.cyan("Testing:"))
	c.println("  test -data <csv> -model <path> [-target col] [-reuse]")
	c.println("                           Predict with a saved model and evaluate when labels exist")

	c.println("\n" + c.cyan("Models & History:"))
	c.println("  models                   - List available algorithms and saved models")
	c.println("  inspect -model <path>    - Show a saved model's metadata")
	c.println("  runs [-limit n]          - Show recent training and test runs")

	c.println("\n" + c.cyan("System:"))
	c.println("  help                     - Show this help message")
	c.println("  quit                     - Exit the shell")
}

// newFlagSet returns a flag set whose parse errors come back as ErrUsage.
func (c *Commander) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.out)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected arguments %v", ErrUsage, fs.Args())
	}
	return nil
}
