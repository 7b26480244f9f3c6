package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the OpenTelemetry tracer used across the rule engine.
var Tracer = otel.Tracer("policyengine.ruleengine")

var tracer = Tracer

// StartConditionEvaluationSpan creates a traced condition-evaluation operation
// for a single rule.
func StartConditionEvaluationSpan(ctx context.Context, applicationName, ruleName string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "rule.evaluate",
		trace.WithAttributes(
			attribute.String("application.name", applicationName),
			attribute.String("rule.name", ruleName),
		),
	)
}

// RecordConditionEvaluationResult records whether a rule's conditions were
// satisfied and updates the associated Prometheus metrics.
func RecordConditionEvaluationResult(span trace.Span, applicationName, ruleName string, matched bool, err error, duration time.Duration) {
	result := "not_matched"
	switch {
	case err != nil:
		result = "error"
	case matched:
		result = "matched"
	}

	span.SetAttributes(
		attribute.Bool("rule.matched", matched),
		attribute.Float64("rule.evaluation_duration_ms", float64(duration.Microseconds())/1000.0),
	)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else if matched {
		span.AddEvent("rule.matched")
	}

	ConditionEvaluationDuration.WithLabelValues(applicationName, ruleName, result).Observe(duration.Seconds())
	ConditionEvaluationTotal.WithLabelValues(applicationName, ruleName, result).Inc()
}

// StartRuleLoadSpan creates a traced rule load operation.
func StartRuleLoadSpan(ctx context.Context, applicationName, ruleName string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "rule.load",
		trace.WithAttributes(
			attribute.String("application.name", applicationName),
			attribute.String("rule.name", ruleName),
		),
	)
}

// RecordRuleLoadResult records rule load success or failure.
func RecordRuleLoadResult(span trace.Span, err error, duration time.Duration) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		RuleLoadTotal.WithLabelValues("error").Inc()
	} else {
		span.SetStatus(codes.Ok, "rule loaded")
		RuleLoadTotal.WithLabelValues("success").Inc()
	}

	RuleLoadDuration.Observe(duration.Seconds())
}

// StartQueryInvocationSpan creates a traced queryCommand invocation.
func StartQueryInvocationSpan(ctx context.Context, applicationName, ruleName, command string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "rule.query.invoke",
		trace.WithAttributes(
			attribute.String("application.name", applicationName),
			attribute.String("rule.name", ruleName),
			attribute.String("query.command", command),
		),
	)
}

// RecordQueryInvocationResult records query command success or failure.
func RecordQueryInvocationResult(span trace.Span, applicationName, ruleName string, err error, duration time.Duration) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "query completed")
	}
	QueryCommandDuration.WithLabelValues(applicationName, ruleName).Observe(duration.Seconds())
}

// StartActionInvocationSpan creates a traced actionCommand invocation.
func StartActionInvocationSpan(ctx context.Context, applicationName, ruleName, command string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "rule.action.invoke",
		trace.WithAttributes(
			attribute.String("application.name", applicationName),
			attribute.String("rule.name", ruleName),
			attribute.String("action.command", command),
		),
	)
}

// RecordActionInvocationResult records action command success or failure.
func RecordActionInvocationResult(span trace.Span, applicationName, ruleName string, err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "action completed")
	}

	ActionInvocationDuration.WithLabelValues(applicationName, ruleName, result).Observe(duration.Seconds())
	ActionInvocationTotal.WithLabelValues(applicationName, ruleName, result).Inc()
}
