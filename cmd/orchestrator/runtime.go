package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/waivern-compliance/orchestrator/internal/aggregate"
	"github.com/waivern-compliance/orchestrator/internal/childrunbook"
	"github.com/waivern-compliance/orchestrator/internal/component"
	"github.com/waivern-compliance/orchestrator/internal/config"
	"github.com/waivern-compliance/orchestrator/internal/executor"
	"github.com/waivern-compliance/orchestrator/internal/plan"
	"github.com/waivern-compliance/orchestrator/internal/runmeta"
	"github.com/waivern-compliance/orchestrator/internal/state"
	"github.com/waivern-compliance/orchestrator/internal/store"
	"github.com/waivern-compliance/orchestrator/internal/telemetry"
)

// executeRunbook drives one Run or Resume invocation to completion: builds
// the executor, runs or resumes it, persists the final RunMetadata status,
// and prints the aggregated report. Shared by the `run` and `resume`
// subcommands so their completion/exit-code bookkeeping can't drift apart.
func executeRunbook(
	ctx context.Context,
	cfg *config.Config,
	st store.Store,
	registry *component.Registry,
	tel *telemetry.Provider,
	executionPlan *plan.ExecutionPlan,
	runID string,
	md *runmeta.RunMetadata,
	resume bool,
	concurrency int,
	stdout, stderr io.Writer,
) int {
	childResolver := childrunbook.New(registry, st)
	exec := executor.New(registry, st,
		executor.WithMaxConcurrency(orDefault(concurrency, cfg.MaxConcurrency)),
		executor.WithArtifactTimeout(cfg.ArtifactTimeout),
		executor.WithChildRunner(childResolver),
		executor.WithTelemetry(tel),
	)

	var execState *state.ExecutionState
	var err error
	if resume {
		execState, err = exec.Resume(ctx, executionPlan, runID)
	} else {
		execState, err = exec.Run(ctx, executionPlan, runID)
	}

	completionStatus := runmeta.StatusCompleted
	exitCode := exitSuccess
	switch {
	case errors.Is(err, context.Canceled):
		completionStatus = runmeta.StatusInterrupted
		exitCode = exitCancelled
	case err != nil:
		completionStatus = runmeta.StatusFailed
		exitCode = exitRuntime
	case execState != nil && len(execState.Failed) > 0:
		completionStatus = runmeta.StatusFailed
		exitCode = exitRuntime
	}
	if cerr := runmeta.Complete(ctx, st, md, completionStatus); cerr != nil {
		fmt.Fprintf(stderr, "persist run completion: %v\n", cerr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(stderr, "execute: %v\n", err)
		return exitCode
	}
	if execState == nil {
		return exitCode
	}

	report, aerr := aggregate.Build(ctx, st, runID, executionPlan, execState)
	if aerr != nil {
		fmt.Fprintf(stderr, "aggregate: %v\n", aerr)
		return exitRuntime
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if eerr := enc.Encode(report); eerr != nil {
		fmt.Fprintf(stderr, "encode report: %v\n", eerr)
		return exitRuntime
	}

	return exitCode
}
