package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OpenTelemetry metrics for the rule engine.
// Platform-agnostic: works with Prometheus, SigNoz, Kibana, Grafana, etc.

var (
	meter = otel.Meter("policyengine.ruleengine")

	metricsOnce sync.Once

	conditionEvaluationDuration metric.Float64Histogram
	conditionEvaluationTotal    metric.Int64Counter
	actionInvocationTotal       metric.Int64Counter
	ruleLoadDuration            metric.Float64Histogram
	ruleLoadTotal               metric.Int64Counter
	rulesActive                 metric.Int64UpDownCounter
	ruleAutoDisabledTotal       metric.Int64Counter
)

// InitMetrics initializes all OpenTelemetry metrics. Call once during
// application startup.
func InitMetrics() error {
	var err error
	metricsOnce.Do(func() {
		conditionEvaluationDuration, err = meter.Float64Histogram(
			"policyengine.condition_evaluation_duration",
			metric.WithDescription("Time taken to evaluate a rule's conditions"),
			metric.WithUnit("s"),
		)
		if err != nil {
			return
		}

		conditionEvaluationTotal, err = meter.Int64Counter(
			"policyengine.condition_evaluation_total",
			metric.WithDescription("Total number of condition evaluations"),
		)
		if err != nil {
			return
		}

		actionInvocationTotal, err = meter.Int64Counter(
			"policyengine.action_invocation_total",
			metric.WithDescription("Total number of actionCommand invocations"),
		)
		if err != nil {
			return
		}

		ruleLoadDuration, err = meter.Float64Histogram(
			"policyengine.rule_load_duration",
			metric.WithDescription("Time taken to parse and register a rule"),
			metric.WithUnit("s"),
		)
		if err != nil {
			return
		}

		ruleLoadTotal, err = meter.Int64Counter(
			"policyengine.rule_load_total",
			metric.WithDescription("Total number of rule load attempts"),
		)
		if err != nil {
			return
		}

		rulesActive, err = meter.Int64UpDownCounter(
			"policyengine.rules_active",
			metric.WithDescription("Number of currently registered rules"),
		)
		if err != nil {
			return
		}

		ruleAutoDisabledTotal, err = meter.Int64Counter(
			"policyengine.rule_auto_disabled_total",
			metric.WithDescription("Total number of automatic rule disablements"),
		)
	})
	return err
}

// RecordConditionEvaluation records a condition evaluation with duration and result.
func RecordConditionEvaluation(ctx context.Context, applicationName, ruleName, result string, durationSeconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("application_name", applicationName),
		attribute.String("rule_name", ruleName),
		attribute.String("result", result), // matched|not_matched|error
	)

	conditionEvaluationDuration.Record(ctx, durationSeconds, attrs)
	conditionEvaluationTotal.Add(ctx, 1, attrs)
}

// RecordActionInvocation increments the action invocation counter.
func RecordActionInvocation(ctx context.Context, applicationName, ruleName, result string) {
	actionInvocationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("application_name", applicationName),
		attribute.String("rule_name", ruleName),
		attribute.String("result", result), // success|failure
	))
}

// RecordRuleLoad records a rule load operation.
func RecordRuleLoad(ctx context.Context, status string, durationSeconds float64) {
	ruleLoadDuration.Record(ctx, durationSeconds)
	ruleLoadTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status), // success|error
	))
}

// UpdateActiveRules updates the active rules gauge.
func UpdateActiveRules(ctx context.Context, delta int64) {
	rulesActive.Add(ctx, delta)
}

// RecordRuleAutoDisabled increments the auto-disable counter.
func RecordRuleAutoDisabled(ctx context.Context, applicationName, ruleName string) {
	ruleAutoDisabledTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("application_name", applicationName),
		attribute.String("rule_name", ruleName),
	))
}
