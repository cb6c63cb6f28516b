// Command orchestrator runs the compliance ingestion orchestration engine:
// plan and execute runbooks, resume interrupted runs, and enumerate
// registered factories.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Exit codes per the CLI contract: 0 success, 1 validation failure,
// 2 runtime failure, 3 cancelled.
const (
	exitSuccess    = 0
	exitValidation = 1
	exitRuntime    = 2
	exitCancelled  = 3
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the testable entrypoint.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return exitValidation
	}

	switch args[1] {
	case "run":
		return runRunCmd(args[2:], stdout, stderr)
	case "resume":
		return runResumeCmd(args[2:], stdout, stderr)
	case "list":
		return runListCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return exitSuccess
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", args[1])
		printUsage(stderr)
		return exitValidation
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "orchestrator <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run <runbook>      plan and execute a runbook")
	fmt.Fprintln(w, "                     --concurrency N --run-id ID --resume --log-level L")
	fmt.Fprintln(w, "  resume <run-id>    resume an interrupted run")
	fmt.Fprintln(w, "                     --log-level L")
	fmt.Fprintln(w, "  list runs          enumerate runs (--status running|completed|failed|interrupted)")
	fmt.Fprintln(w, "  list connectors|analysers|classifiers|rulesets|exporters")
	fmt.Fprintln(w, "  help               show this help")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
