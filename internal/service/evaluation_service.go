// Package service contains the application services sitting between the
// policy evaluation core and its callers.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sentinel-Gate/Sentinelgate/internal/adapter/outbound/metrics"
	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
)

// EvaluationResult is the outcome of one call to EvaluationService.Evaluate:
// the request ID assigned for correlation, the core's DecisionResult, and
// the wall-clock latency observed. It carries no wire-format opinion — the
// caller decides how to render Decision for its own transport.
type EvaluationResult struct {
	RequestID string
	Decision  policy.DecisionResult
	Latency   time.Duration
}

// EvaluationService is a thin request-ID-tagging, tracing, and metrics
// wrapper around one root policy.Child's Evaluate. It is not a PDP façade:
// it does not decode requests (callers build a policy.EvaluationContext
// themselves, e.g. via a request adapter or the CLI's demo fixtures) and it
// does not persist evaluation history. Grounded on the teacher's
// PolicyEvaluationService.Evaluate for the request-ID/latency/logging
// shape; the in-memory evaluation-history store and JSON request/response
// types that accompanied it there are dropped as out of scope here (no
// wire protocol, no persistence — spec.md §1/§4 non-goals).
type EvaluationService struct {
	root    policy.Child
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	otelDecisions metric.Int64Counter

	maxChainDepth int
}

// NewEvaluationService builds an EvaluationService evaluating every request
// against root. maxChainDepth bounds the RequestContext's reference-chain
// depth (spec.md §4.5). meterProvider supplies the otel counter recorded
// alongside m's Prometheus metrics — pass a no-op provider (e.g.
// tracing.NewMeterProvider(false)) to disable it.
func NewEvaluationService(root policy.Child, maxChainDepth int, logger *slog.Logger, m *metrics.Metrics, tracer trace.Tracer, meterProvider metric.MeterProvider) (*EvaluationService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	counter, err := meterProvider.Meter("sentinel-gate/evaluation").Int64Counter(
		"pdp.decisions",
		metric.WithDescription("Policy decisions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("evaluation service: building otel counter: %w", err)
	}
	return &EvaluationService{
		root:          root,
		logger:        logger,
		metrics:       m,
		tracer:        tracer,
		otelDecisions: counter,
		maxChainDepth: maxChainDepth,
	}, nil
}

// Evaluate runs evalCtx against the service's root evaluator and returns
// the tagged, measured result. ctx bounds the evaluation's deadline; if
// ctx is cancelled by the time evaluation finishes, Evaluate returns a zero
// EvaluationResult and an error wrapping context.Cause(ctx), after the
// decision the core produced has been recorded in the span, metrics and
// log.
func (s *EvaluationService) Evaluate(ctx context.Context, evalCtx policy.EvaluationContext) (EvaluationResult, error) {
	requestID := uuid.New().String()
	start := time.Now()

	ctx, span := s.tracer.Start(ctx, "policy.Evaluate", trace.WithAttributes(
		attribute.String("request_id", requestID),
	))
	defer span.End()

	reqCtx := policy.NewRequestContext(ctx, evalCtx, s.maxChainDepth)
	dr := s.root.Evaluate(reqCtx, false)

	latency := time.Since(start)

	hits, misses := reqCtx.MemoStats()
	span.SetAttributes(
		attribute.String("decision", dr.Type.String()),
		attribute.Int("memo_hits", hits),
		attribute.Int("memo_misses", misses),
	)
	if dr.Type == policy.Indeterminate {
		span.SetStatus(codes.Error, dr.Status.String())
	}

	if s.metrics != nil {
		s.metrics.DecisionsTotal.WithLabelValues(dr.Type.String()).Inc()
		s.metrics.EvaluationDuration.Observe(latency.Seconds())
		s.metrics.ReferenceChainDepth.Observe(float64(len(reqCtx.Chain())))
		s.metrics.CacheHitsTotal.Add(float64(hits))
		s.metrics.CacheMissesTotal.Add(float64(misses))
	}
	if s.otelDecisions != nil {
		s.otelDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", dr.Type.String())))
	}

	s.logger.Debug("policy evaluation completed",
		"request_id", requestID,
		"decision", dr.Type.String(),
		"status", dr.Status.String(),
		"latency", latency,
		"applicable_policies", len(dr.ApplicablePolicies),
	)

	if reqCtx.Cancelled() {
		return EvaluationResult{}, fmt.Errorf("evaluation %s: %w", requestID, context.Cause(ctx))
	}

	return EvaluationResult{
		RequestID: requestID,
		Decision:  dr,
		Latency:   latency,
	}, nil
}
