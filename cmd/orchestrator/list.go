package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/waivern-compliance/orchestrator/internal/component"
	"github.com/waivern-compliance/orchestrator/internal/config"
	"github.com/waivern-compliance/orchestrator/internal/exporter"
	"github.com/waivern-compliance/orchestrator/internal/ruleset"
	"github.com/waivern-compliance/orchestrator/internal/store"
)

func runListCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "usage: orchestrator list <runs|connectors|analysers|classifiers|rulesets|exporters>")
		return exitValidation
	}

	switch args[0] {
	case "runs":
		return listRuns(args[1:], stdout, stderr)
	case "connectors":
		return printNames(stdout, component.NewRegistry().ListConnectors())
	case "analysers":
		return printNames(stdout, component.NewRegistry().ListAnalysers())
	case "classifiers":
		return printNames(stdout, component.NewRegistry().ListClassifiers())
	case "rulesets":
		return printNames(stdout, ruleset.List())
	case "exporters":
		return printNames(stdout, exporter.List())
	default:
		fmt.Fprintf(stderr, "unknown list target: %s\n", args[0])
		return exitValidation
	}
}

func listRuns(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("list runs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var status string
	fs.StringVar(&status, "status", "", "filter by status: running|completed|failed|interrupted")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}

	cfg := config.Load()
	st, err := store.New(cfg.StoreType, cfg.StorePath)
	if err != nil {
		fmt.Fprintf(stderr, "store: %v\n", err)
		return exitRuntime
	}

	ctx := context.Background()
	runIDs, err := st.ListRuns(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "list runs: %v\n", err)
		return exitRuntime
	}
	sort.Strings(runIDs)

	for _, id := range runIDs {
		md, err := st.GetMetadata(ctx, id)
		if err != nil {
			continue
		}
		if status != "" && string(md.Status) != status {
			continue
		}
		fmt.Fprintf(stdout, "%s\t%s\t%s\t%s\n", md.RunID, md.Status, md.RunbookPath, md.StartedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	return exitSuccess
}

func printNames(w io.Writer, names []string) int {
	for _, n := range names {
		fmt.Fprintln(w, n)
	}
	return exitSuccess
}
