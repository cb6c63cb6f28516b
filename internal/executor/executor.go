// Package executor implements the Scheduler: a single goroutine that owns
// all run-mutable state (the DAG sorter and ExecutionState) and dispatches
// artifact production to a bounded worker pool, grounded on the
// semaphore-plus-WaitGroup pattern used by the swarm poller.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/waivern-compliance/orchestrator/internal/component"
	"github.com/waivern-compliance/orchestrator/internal/dag"
	"github.com/waivern-compliance/orchestrator/internal/message"
	"github.com/waivern-compliance/orchestrator/internal/plan"
	"github.com/waivern-compliance/orchestrator/internal/runbook"
	"github.com/waivern-compliance/orchestrator/internal/schema"
	"github.com/waivern-compliance/orchestrator/internal/state"
	"github.com/waivern-compliance/orchestrator/internal/store"
	pkgcomponent "github.com/waivern-compliance/orchestrator/pkg/component"
)

// DefaultMaxConcurrency bounds how many artifacts may be in flight at once.
const DefaultMaxConcurrency = 10

// DefaultArtifactTimeout bounds a single artifact's production time.
const DefaultArtifactTimeout = 5 * time.Minute

// ChildRunner executes a nested runbook transform and folds its result into
// a single Message. Implemented by internal/childrunbook; kept as an
// interface here so this package never imports it (childrunbook recursively
// plans and executes, so the dependency has to run the other way).
type ChildRunner interface {
	RunChild(ctx context.Context, parentDir string, def *runbook.ArtifactDefinition, inputs []*message.Message, outputSchema schema.Schema) (*message.Message, error)
}

// Telemetry is the nil-safe instrumentation hook the executor calls around
// each artifact's production. internal/telemetry.Provider implements it.
type Telemetry interface {
	TrackArtifact(ctx context.Context, runID, artifactID string) (context.Context, func(err error))
}

type noopTelemetry struct{}

func (noopTelemetry) TrackArtifact(ctx context.Context, _, _ string) (context.Context, func(error)) {
	return ctx, func(error) {}
}

// Executor runs an ExecutionPlan to completion, persisting each artifact and
// the run's ExecutionState as it goes.
type Executor struct {
	registry        *component.Registry
	store           store.Store
	maxConcurrency  int
	artifactTimeout time.Duration
	childRunner     ChildRunner
	telemetry       Telemetry
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxConcurrency overrides DefaultMaxConcurrency.
func WithMaxConcurrency(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxConcurrency = n
		}
	}
}

// WithArtifactTimeout overrides DefaultArtifactTimeout.
func WithArtifactTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.artifactTimeout = d
		}
	}
}

// WithChildRunner installs the child-runbook resolver. Runbooks with no
// `transform.type: runbook` artifacts don't need one.
func WithChildRunner(cr ChildRunner) Option {
	return func(e *Executor) { e.childRunner = cr }
}

// WithTelemetry installs an instrumentation hook around artifact production.
func WithTelemetry(t Telemetry) Option {
	return func(e *Executor) { e.telemetry = t }
}

// New builds an Executor backed by registry and st.
func New(registry *component.Registry, st store.Store, opts ...Option) *Executor {
	e := &Executor{
		registry:        registry,
		store:           st,
		maxConcurrency:  DefaultMaxConcurrency,
		artifactTimeout: DefaultArtifactTimeout,
		telemetry:       noopTelemetry{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// outcome is what a worker goroutine reports back to the scheduler.
type outcome struct {
	artifactID string
	msg        *message.Message
	err        error
	duration   time.Duration
}

// Run executes p under runID from a fresh ExecutionState.
func (e *Executor) Run(ctx context.Context, p *plan.ExecutionPlan, runID string) (*state.ExecutionState, error) {
	return e.run(ctx, p, runID, state.New(runID))
}

// Resume continues a previously interrupted run. Artifacts not already
// Completed/Failed/Skipped in the persisted state are re-run from scratch:
// since an artifact is only persisted and marked Completed after a
// successful produce, anything still "running" when the prior process died
// was never committed and is safely redone.
func (e *Executor) Resume(ctx context.Context, p *plan.ExecutionPlan, runID string) (*state.ExecutionState, error) {
	st, err := e.store.GetState(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("executor: resume %s: %w", runID, err)
	}
	return e.run(ctx, p, runID, st)
}

func (e *Executor) run(ctx context.Context, p *plan.ExecutionPlan, runID string, st *state.ExecutionState) (*state.ExecutionState, error) {
	d := p.DAG
	sorter := d.NewSorter()
	for _, id := range d.Artifacts() {
		if st.IsTerminal(id) {
			sorter.MarkDone(id)
		}
	}

	outcomes := make(chan outcome)
	sem := make(chan struct{}, e.maxConcurrency)
	var wg sync.WaitGroup
	inFlight := 0

	dispatch := func(ids []string) {
		for _, id := range ids {
			inFlight++
			wg.Add(1)
			def := p.Runbook.Artifacts[id]
			go e.runArtifact(ctx, p, runID, def, sem, outcomes, &wg)
		}
	}

	settle := func(ids []string) []string {
		var toRun []string
		for len(ids) > 0 {
			skippedAny := false
			for _, id := range ids {
				if reason, blocked := blockedReason(d, st, id); blocked {
					st.MarkSkipped(id, reason)
					sorter.MarkDone(id)
					skippedAny = true
					if err := e.store.PutState(ctx, runID, st); err != nil {
						return nil
					}
					continue
				}
				toRun = append(toRun, id)
			}
			if !skippedAny {
				break
			}
			// A skip releases the skipped artifact's dependants; settle them too.
			ids = sorter.Ready()
		}
		return toRun
	}

	dispatch(settle(sorter.Ready()))

	for !sorter.Exhausted() {
		if inFlight == 0 {
			// Nothing running and the graph isn't exhausted: every remaining
			// artifact is blocked on a failed/skipped predecessor that
			// settle() has already converted to Skipped. Nothing left to do.
			break
		}
		select {
		case <-ctx.Done():
			// Cooperative cancellation: stop dispatching, let in-flight
			// workers finish or observe ctx themselves, then mark every
			// still-pending artifact skipped and persist before returning.
			for inFlight > 0 {
				<-outcomes
				inFlight--
			}
			for _, id := range d.Artifacts() {
				if !st.IsTerminal(id) {
					st.MarkSkipped(id, "run cancelled")
				}
			}
			// The run context is already done; persist the final state with
			// a detached context so cancellation doesn't also abort the save.
			_ = e.store.PutState(context.Background(), runID, st)
			return st, ctx.Err()
		case oc := <-outcomes:
			inFlight--
			e.handleOutcome(ctx, runID, st, oc)
			sorter.MarkDone(oc.artifactID)
			if err := e.store.PutState(ctx, runID, st); err != nil {
				wg.Wait()
				return st, fmt.Errorf("executor: persist state: %w", err)
			}
			dispatch(settle(sorter.Ready()))
		}
	}

	wg.Wait()
	return st, nil
}

// blockedReason reports whether id has a predecessor that failed or was
// skipped, in which case id itself must be skipped rather than run.
func blockedReason(d *dag.DAG, st *state.ExecutionState, id string) (string, bool) {
	for _, pred := range d.Predecessors(id) {
		if st.IsFailedOrSkipped(pred) {
			return fmt.Sprintf("upstream artifact %q did not complete successfully", pred), true
		}
	}
	return "", false
}

func (e *Executor) runArtifact(ctx context.Context, p *plan.ExecutionPlan, runID string, def *runbook.ArtifactDefinition, sem chan struct{}, outcomes chan<- outcome, wg *sync.WaitGroup) {
	defer wg.Done()

	sem <- struct{}{}
	defer func() { <-sem }()

	timeoutCtx, cancel := context.WithTimeout(ctx, e.artifactTimeout)
	defer cancel()

	artifactCtx, finish := e.telemetry.TrackArtifact(timeoutCtx, runID, def.ID)

	start := time.Now()
	msg, err := func() (m *message.Message, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("executor: artifact %q: panic: %v", def.ID, r)
			}
		}()
		return e.produce(artifactCtx, p, runID, def)
	}()
	if err != nil && timeoutCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		msg, err = nil, fmt.Errorf("timeout after %gs", e.artifactTimeout.Seconds())
	}
	finish(err)
	outcomes <- outcome{artifactID: def.ID, msg: msg, err: err, duration: time.Since(start)}
}

func (e *Executor) produce(ctx context.Context, p *plan.ExecutionPlan, runID string, def *runbook.ArtifactDefinition) (*message.Message, error) {
	schemas := p.Schemas(def.ID)
	if def.IsSource() {
		return e.produceSource(ctx, def, schemas.OutputSchema)
	}
	return e.produceDerived(ctx, p, runID, def, schemas)
}

func (e *Executor) produceSource(ctx context.Context, def *runbook.ArtifactDefinition, outputSchema schema.Schema) (*message.Message, error) {
	f, err := e.registry.Connector(def.Source.Type)
	if err != nil {
		return nil, fmt.Errorf("executor: artifact %q: %w", def.ID, err)
	}
	conn, err := f.Create(pkgcomponent.Config(def.Source.Properties))
	if err != nil {
		return nil, fmt.Errorf("executor: artifact %q: create connector %q: %w", def.ID, def.Source.Type, err)
	}
	return conn.Extract(ctx, outputSchema)
}

func (e *Executor) produceDerived(ctx context.Context, p *plan.ExecutionPlan, runID string, def *runbook.ArtifactDefinition, schemas plan.ArtifactSchemas) (*message.Message, error) {
	inputs := make([]*message.Message, 0, len(def.Inputs))
	for _, depID := range def.Inputs {
		msg, err := e.store.GetArtifact(ctx, runID, depID)
		if err != nil {
			return nil, fmt.Errorf("executor: artifact %q: load input %q: %w", def.ID, depID, err)
		}
		inputs = append(inputs, msg)
	}

	if def.Transform != nil && def.Transform.Type == plan.ChildRunbookTransformType {
		if e.childRunner == nil {
			return nil, fmt.Errorf("executor: artifact %q: child-runbook transform requires a configured ChildRunner", def.ID)
		}
		return e.childRunner.RunChild(ctx, p.Runbook.Dir, def, inputs, schemas.OutputSchema)
	}

	if def.Transform == nil {
		return inputs[0], nil
	}

	cfg := pkgcomponent.Config(def.Transform.Properties)
	if f, err := e.registry.Analyser(def.Transform.Type); err == nil {
		a, err := f.Create(cfg)
		if err != nil {
			return nil, fmt.Errorf("executor: artifact %q: create analyser %q: %w", def.ID, def.Transform.Type, err)
		}
		return a.Process(ctx, inputs, schemas.OutputSchema)
	}
	if f, err := e.registry.Classifier(def.Transform.Type); err == nil {
		c, err := f.Create(cfg)
		if err != nil {
			return nil, fmt.Errorf("executor: artifact %q: create classifier %q: %w", def.ID, def.Transform.Type, err)
		}
		return c.Process(ctx, inputs, schemas.OutputSchema)
	}
	return nil, fmt.Errorf("executor: artifact %q: transform %q not found", def.ID, def.Transform.Type)
}

// handleOutcome persists a successful artifact before marking it Completed
// in st (persistence-before-completion): a crash between the two leaves a
// stored payload that the run state does not list as Completed, so Resume
// re-runs the artifact rather than trusting that payload.
func (e *Executor) handleOutcome(ctx context.Context, runID string, st *state.ExecutionState, oc outcome) {
	if oc.err != nil {
		st.MarkFailed(oc.artifactID, oc.err.Error())
		return
	}

	stamped := stampSuccess(oc.msg, runID, oc.artifactID, oc.duration)
	if err := e.store.PutArtifact(ctx, runID, oc.artifactID, stamped); err != nil {
		st.MarkFailed(oc.artifactID, fmt.Sprintf("persist artifact: %v", err))
		return
	}
	st.MarkCompleted(oc.artifactID)
}

func stampSuccess(msg *message.Message, runID, artifactID string, dur time.Duration) *message.Message {
	var cp message.Message
	if msg != nil {
		cp = *msg
	}
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	cp.RunID = runID
	if cp.Source == "" {
		cp.Source = artifactID
	}
	cp.Timestamp = time.Now()
	cp.Extensions.Execution = message.Execution{
		Status:          message.StatusSuccess,
		DurationSeconds: dur.Seconds(),
		Origin:          message.OriginParent,
	}
	return &cp
}
