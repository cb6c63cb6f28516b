package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/waivern-compliance/orchestrator/internal/component"
	"github.com/waivern-compliance/orchestrator/internal/config"
	"github.com/waivern-compliance/orchestrator/internal/plan"
	"github.com/waivern-compliance/orchestrator/internal/runmeta"
	"github.com/waivern-compliance/orchestrator/internal/store"
	"github.com/waivern-compliance/orchestrator/internal/telemetry"
)

func runResumeCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("resume", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		concurrency int
		logLevel    string
	)
	fs.IntVar(&concurrency, "concurrency", 0, "max concurrent artifacts (0 = use ORCHESTRATOR_MAX_CONCURRENCY)")
	fs.StringVar(&logLevel, "log-level", "", "override ORCHESTRATOR_LOG_LEVEL")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "usage: orchestrator resume <run-id> [flags]")
		return exitValidation
	}
	runID := fs.Arg(0)

	cfg := config.Load()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger := newLogger(cfg.LogLevel)

	st, err := store.New(cfg.StoreType, cfg.StorePath)
	if err != nil {
		fmt.Fprintf(stderr, "store: %v\n", err)
		return exitRuntime
	}

	ctx := context.Background()
	md, err := runmeta.Resume(ctx, st, runID)
	if err != nil {
		fmt.Fprintf(stderr, "run metadata: %v\n", err)
		return exitValidation
	}

	registry := component.NewRegistry()
	planner := plan.New(registry)
	executionPlan, err := planner.Plan(md.RunbookPath)
	if err != nil {
		fmt.Fprintf(stderr, "plan: %v\n", err)
		return exitValidation
	}

	tel, err := telemetry.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "telemetry: %v\n", err)
		return exitRuntime
	}
	defer tel.Shutdown(ctx)

	logger.Info("run resuming", "run_id", runID, "runbook", md.RunbookPath)

	return executeRunbook(ctx, cfg, st, registry, tel, executionPlan, runID, md, true, concurrency, stdout, stderr)
}
