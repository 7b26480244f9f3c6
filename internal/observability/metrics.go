package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the rule engine's condition evaluation, action
// invocation, and rule lifecycle.

var (
	ConditionEvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "policyengine_condition_evaluation_duration_seconds",
			Help:    "Time taken to evaluate a rule's condition list against application data",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
		[]string{"application_name", "rule_name", "result"}, // result: matched|not_matched|error
	)

	ConditionEvaluationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policyengine_condition_evaluation_total",
			Help: "Total number of condition evaluations performed",
		},
		[]string{"application_name", "rule_name", "result"},
	)

	QueryCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "policyengine_query_command_duration_seconds",
			Help:    "Time taken to run a rule's queryCommand",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		},
		[]string{"application_name", "rule_name"},
	)

	QueryCommandFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policyengine_query_command_failures_total",
			Help: "Total number of queryCommand invocations that returned a nonzero exit status",
		},
		[]string{"application_name", "rule_name"},
	)

	ActionInvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "policyengine_action_invocation_duration_seconds",
			Help:    "Time taken to run a rule's actionCommand",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		},
		[]string{"application_name", "rule_name", "result"}, // result: success|failure
	)

	ActionInvocationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policyengine_action_invocation_total",
			Help: "Total number of actionCommand invocations",
		},
		[]string{"application_name", "rule_name", "result"},
	)

	RuleAutoDisabledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policyengine_rule_auto_disabled_total",
			Help: "Total number of times a rule was automatically disabled after reaching maxActionInvocations",
		},
		[]string{"application_name", "rule_name"},
	)

	RuleLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "policyengine_rule_load_duration_seconds",
			Help:    "Time taken to parse and register a rule from disk",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
	)

	RuleLoadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policyengine_rule_load_total",
			Help: "Total number of rule load attempts during startup scan",
		},
		[]string{"status"}, // status: success|error
	)

	RulesActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "policyengine_rules_active",
			Help: "Number of currently registered rules by dispatch state",
		},
		[]string{"state"}, // state: poll|receive|event|disabled
	)

	ReceiveQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "policyengine_receive_queue_depth",
			Help: "Number of application data payloads awaiting processing in the shared receive queue, sampled at the last enqueue for the labeled application",
		},
		[]string{"application_name"},
	)

	ApplicationDataReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policyengine_application_data_received_total",
			Help: "Total number of application data payloads accepted on the receive endpoint",
		},
		[]string{"application_name", "status"}, // status: accepted|empty|rejected
	)
)
