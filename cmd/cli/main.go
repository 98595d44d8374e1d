package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"automl/internal/commander"
	"automl/internal/config"
	"automl/internal/history"
	"automl/internal/pipeline"
)

func main() {
	configFile := flag.String("config", "", "Path to YAML configuration file (AUTOML_CONFIG when empty)")
	interactive := flag.Bool("i", false, "Start the interactive shell")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  cli [-config file] train -data data.csv [-target col] [-model key] [-cv folds]")
		fmt.Fprintln(os.Stderr, "  cli [-config file] test -data data.csv -model path [-target col] [-reuse]")
		fmt.Fprintln(os.Stderr, "  cli [-config file] compare -data data.csv [-target col] [-models a,b] [-output results.csv]")
		fmt.Fprintln(os.Stderr, "  cli [-config file] models | runs [-limit n] | inspect -model path")
		fmt.Fprintln(os.Stderr, "  cli -i")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flag.PrintDefaults()
	}
	flag.Parse()

	if !*interactive && flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("✗"), err)
		os.Exit(1)
	}

	// The commander prints progress itself; info logs would duplicate it.
	if cfg.Log.Level == "info" && !cfg.Log.Development {
		cfg.Log.Level = "warn"
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("✗"), err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := cfg.EnsureDirs(); err != nil {
		logger.Fatal("Failed to create output directories", zap.Error(err))
	}

	store, err := history.Open(cfg.History.Path, logger)
	if err != nil {
		logger.Warn("Run history unavailable, continuing without it", zap.Error(err))
		store, _ = history.Open("", logger)
	}
	defer store.Close()

	cmd := commander.NewCommander(cfg,
		pipeline.NewTrainer(cfg, logger, nil, store),
		pipeline.NewTester(cfg, logger, nil, store),
		pipeline.NewComparer(cfg, logger, store),
		store, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *interactive {
		err = cmd.Start(ctx, os.Stdin)
	} else {
		err = cmd.Run(ctx, flag.Args())
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("✗"), err)
		stop()
		store.Close()
		os.Exit(1)
	}
}
