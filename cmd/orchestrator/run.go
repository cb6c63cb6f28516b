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

func runRunCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		concurrency int
		runID       string
		resumeFlag  bool
		logLevel    string
	)
	fs.IntVar(&concurrency, "concurrency", 0, "max concurrent artifacts (0 = use ORCHESTRATOR_MAX_CONCURRENCY)")
	fs.StringVar(&runID, "run-id", "", "run id (a UUID is generated if omitted)")
	fs.BoolVar(&resumeFlag, "resume", false, "treat run-id as an existing run to resume")
	fs.StringVar(&logLevel, "log-level", "", "override ORCHESTRATOR_LOG_LEVEL")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "usage: orchestrator run <runbook> [flags]")
		return exitValidation
	}
	runbookPath := fs.Arg(0)

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

	registry := component.NewRegistry()
	planner := plan.New(registry)

	executionPlan, err := planner.Plan(runbookPath)
	if err != nil {
		fmt.Fprintf(stderr, "plan: %v\n", err)
		return exitValidation
	}

	ctx := context.Background()
	tel, err := telemetry.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "telemetry: %v\n", err)
		return exitRuntime
	}
	defer tel.Shutdown(ctx)

	if runID == "" {
		runID = runmeta.NewRunID()
	}

	var md *runmeta.RunMetadata
	if resumeFlag {
		md, err = runmeta.Resume(ctx, st, runID)
	} else {
		md, err = runmeta.Start(ctx, st, runID, runbookPath)
	}
	if err != nil {
		fmt.Fprintf(stderr, "run metadata: %v\n", err)
		return exitRuntime
	}

	logger.Info("run starting", "run_id", runID, "runbook", runbookPath, "resumed", resumeFlag)

	return executeRunbook(ctx, cfg, st, registry, tel, executionPlan, runID, md, resumeFlag, concurrency, stdout, stderr)
}
