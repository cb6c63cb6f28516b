// Package telemetry provides OpenTelemetry-based instrumentation for the
// orchestrator: artifact throughput, failures, and duration via the RED
// (Rate, Errors, Duration) pattern. Every recording method is nil-safe so
// callers never need to branch on whether telemetry is enabled.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/waivern-compliance/orchestrator/internal/config"
)

// Provider holds the orchestrator's tracer/meter and the RED instruments
// derived from them. A nil *Provider (or one built with Enabled=false) is
// valid: every method degrades to a no-op.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *slog.Logger

	artifactsTotal  metric.Int64Counter
	artifactErrors  metric.Int64Counter
	artifactDurHist metric.Float64Histogram
	activeArtifacts metric.Int64UpDownCounter
}

// New builds a Provider from cfg. When cfg.TelemetryEnabled is false, New
// returns a non-nil Provider whose methods are all no-ops — callers never
// need a nil check.
func New(ctx context.Context, cfg *config.Config) (*Provider, error) {
	p := &Provider{logger: slog.Default().With("component", "telemetry")}

	if cfg == nil || !cfg.TelemetryEnabled {
		p.logger.InfoContext(ctx, "telemetry disabled")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("compliance-orchestrator"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	if err := p.initTracing(ctx, cfg, res); err != nil {
		return nil, fmt.Errorf("telemetry: init tracing: %w", err)
	}
	if err := p.initMetrics(ctx, cfg, res); err != nil {
		return nil, fmt.Errorf("telemetry: init metrics: %w", err)
	}

	p.tracer = otel.Tracer("orchestrator")
	p.meter = otel.Meter("orchestrator")
	if err := p.initInstruments(); err != nil {
		return nil, fmt.Errorf("telemetry: init instruments: %w", err)
	}

	p.logger.InfoContext(ctx, "telemetry initialized", "endpoint", cfg.TelemetryEndpoint)
	return p, nil
}

func (p *Provider) initTracing(ctx context.Context, cfg *config.Config, res *resource.Resource) error {
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.TelemetryEndpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return err
	}
	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(p.tracerProvider)
	return nil
}

func (p *Provider) initMetrics(ctx context.Context, cfg *config.Config, res *resource.Resource) error {
	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(cfg.TelemetryEndpoint), otlpmetricgrpc.WithInsecure())
	if err != nil {
		return err
	}
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))),
	)
	otel.SetMeterProvider(p.meterProvider)
	return nil
}

func (p *Provider) initInstruments() error {
	var err error
	if p.artifactsTotal, err = p.meter.Int64Counter("orchestrator.artifacts.total",
		metric.WithDescription("Artifacts produced"), metric.WithUnit("{artifact}")); err != nil {
		return err
	}
	if p.artifactErrors, err = p.meter.Int64Counter("orchestrator.artifacts.errors",
		metric.WithDescription("Artifacts that failed production"), metric.WithUnit("{artifact}")); err != nil {
		return err
	}
	if p.artifactDurHist, err = p.meter.Float64Histogram("orchestrator.artifact.duration",
		metric.WithDescription("Artifact production duration"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 300)); err != nil {
		return err
	}
	if p.activeArtifacts, err = p.meter.Int64UpDownCounter("orchestrator.artifacts.active",
		metric.WithDescription("Artifacts currently in flight"), metric.WithUnit("{artifact}")); err != nil {
		return err
	}
	return nil
}

// Shutdown flushes and stops the trace/metric providers. Safe to call on a
// disabled Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "shutdown trace provider", "error", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "shutdown metric provider", "error", err)
		}
	}
	return nil
}

// TrackArtifact starts a span for artifactID and returns a function to call
// with the production outcome. Nil-safe on a disabled/nil Provider.
func (p *Provider) TrackArtifact(ctx context.Context, runID, artifactID string) (context.Context, func(err error)) {
	if p == nil || p.tracer == nil {
		return ctx, func(error) {}
	}

	attrs := []attribute.KeyValue{
		attribute.String("run_id", runID),
		attribute.String("artifact_id", artifactID),
	}
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "artifact.produce", trace.WithAttributes(attrs...))
	if p.activeArtifacts != nil {
		p.activeArtifacts.Add(ctx, 1, metric.WithAttributes(attrs...))
	}

	return ctx, func(err error) {
		if p.activeArtifacts != nil {
			p.activeArtifacts.Add(ctx, -1, metric.WithAttributes(attrs...))
		}
		if p.artifactsTotal != nil {
			p.artifactsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
		}
		if p.artifactDurHist != nil {
			p.artifactDurHist.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
		}
		if err != nil {
			span.RecordError(err)
			if p.artifactErrors != nil {
				p.artifactErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
			}
		}
		span.End()
	}
}
