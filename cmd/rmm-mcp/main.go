package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xiy/rmm-mcp/internal/admin"
	"github.com/xiy/rmm-mcp/internal/config"
	"github.com/xiy/rmm-mcp/internal/cycle"
	"github.com/xiy/rmm-mcp/internal/mcp"
	"github.com/xiy/rmm-mcp/internal/modulation"
	"github.com/xiy/rmm-mcp/internal/render"
	"github.com/xiy/rmm-mcp/internal/reprocess"
	"github.com/xiy/rmm-mcp/internal/seed"
	"github.com/xiy/rmm-mcp/internal/store"
	"github.com/xiy/rmm-mcp/internal/values"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	sub := os.Args[1]
	switch sub {
	case "serve":
		if err := runServe(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "seed":
		if err := runSeed(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "demo":
		if err := runDemo(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "admin":
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Println("rmm-mcp v0.1.0")
	default:
		usage()
		os.Exit(2)
	}
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "config/rmm-mcp.yaml", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	journal, err := store.Open(ctx, cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer journal.Close()

	svc, err := buildService(ctx, cfg, journal, logger)
	if err != nil {
		return err
	}

	if cfg.CycleIntervalSeconds > 0 {
		go cycle.Start(ctx, logger, time.Duration(cfg.CycleIntervalSeconds)*time.Second, svc)
	}

	server := mcp.NewServer(cfg.ServerName, svc, journal, logger)
	logger.Info("starting MCP stdio server", "db", cfg.DBPath, "policy", cfg.TriggerPolicy)
	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func runSeed(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	configPath := fs.String("config", "config/rmm-mcp.yaml", "Path to config file")
	seedPath := fs.String("file", "", "Path to a YAML seed file (defaults to built-in memories)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	journal, err := store.Open(ctx, cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer journal.Close()

	svc, err := buildService(ctx, cfg, journal, logger)
	if err != nil {
		return err
	}

	seeds, err := seed.Load(config.ExpandPath(*seedPath))
	if err != nil {
		return err
	}
	n, err := seed.Apply(ctx, logger, svc, seeds)
	if err != nil {
		return err
	}
	logger.Info("seeding complete", "added", n, "db", cfg.DBPath)
	return nil
}

func runDemo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	configPath := fs.String("config", "config/rmm-mcp.yaml", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	svc, err := buildService(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}

	seeds := seed.Defaults()
	if _, err := seed.Apply(ctx, logger, svc, seeds); err != nil {
		return err
	}

	if _, err := svc.RunAll(ctx); err != nil {
		return err
	}
	// One extra cycle on the first memory shows diagnostics being
	// recomputed rather than accumulated.
	if _, err := svc.RunCycle(ctx, seeds[0].Identifier); err != nil {
		return err
	}

	mems := svc.List()
	fmt.Println(render.MemoryTable(mems))
	for _, m := range mems {
		fmt.Println(render.AlignmentHeatmap(m))
	}
	fmt.Println(render.ShiftBars(mems))
	return nil
}

func runAdmin(args []string) error {
	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	configPath := fs.String("config", "config/rmm-mcp.yaml", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	journal, err := store.Open(ctx, cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer journal.Close()

	svc, err := buildService(ctx, cfg, journal, logger)
	if err != nil {
		return err
	}

	return admin.Run(ctx, svc, journal)
}

func loadConfig(path string) (config.Config, *log.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return cfg, nil, err
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportCaller: false, Prefix: cfg.ServerName})
	setLogLevel(logger, cfg.LogLevel)
	return cfg, logger, nil
}

// buildService wires the scorer, modulation source and trigger policy, and
// restores previously journaled memories when a journal is attached.
func buildService(ctx context.Context, cfg config.Config, journal *store.Journal, logger *log.Logger) (*reprocess.Service, error) {
	table, err := values.LoadTable(cfg.ValuesPath)
	if err != nil {
		return nil, err
	}
	scorer := values.NewScorer(table, nil)
	source := modulation.NewSource(cfg.BaselineModulation, cfg.StrengthFloor, nil)

	var sink reprocess.Journal
	if journal != nil {
		sink = journal
	}
	svc := reprocess.NewService(cfg, scorer, source, sink, logger, nil)

	if journal != nil {
		mems, err := journal.ListSnapshots(ctx)
		if err != nil {
			return nil, err
		}
		if len(mems) > 0 {
			svc.Load(mems)
			logger.Info("restored memories from journal", "count", len(mems))
		}
	}
	return svc, nil
}

func setLogLevel(logger *log.Logger, level string) {
	switch level {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
}

func usage() {
	fmt.Print(`rmm-mcp

Usage:
  rmm-mcp serve [--config path]
  rmm-mcp seed [--config path] [--file seeds.yaml]
  rmm-mcp demo [--config path]
  rmm-mcp admin [--config path]
  rmm-mcp version
`)
}
