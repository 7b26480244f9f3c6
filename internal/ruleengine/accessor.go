package ruleengine

import (
	"context"

	"github.com/UnivaCorporation/policyengine/internal/observability"
	"github.com/UnivaCorporation/policyengine/pkg/models"
)

// The methods in this file implement scheduler.RuleAccessor, giving the
// scheduler's timer and worker goroutines a narrow, counter-only view of
// the registry instead of the full control-plane surface.

// GetLiveRule returns the engine's current copy of a rule, used by the
// scheduler to read LastSuccessfulActionInvocationTime when computing the
// next poll delay.
func (e *Engine) GetLiveRule(id string) (models.Rule, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rule, ok := e.rules[id]
	return rule, ok
}

// RecordRuleInvoked increments a rule's invocation counter. Called once per
// dispatch, regardless of whether its conditions ultimately trigger.
func (e *Engine) RecordRuleInvoked(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rule, ok := e.rules[id]
	if !ok {
		return
	}
	rule.Monitor.RuleInvocations++
	e.rules[id] = rule
}

// RecordQueryResult records the outcome of a single queryCommand
// invocation. Called once per dispatch that has a queryCommand, before
// conditions are evaluated.
func (e *Engine) RecordQueryResult(id string, success bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rule, ok := e.rules[id]
	if !ok {
		return
	}
	if success {
		rule.Monitor.QueryInvocationsSuccess++
	} else {
		rule.Monitor.QueryInvocationsFailure++
	}
	e.rules[id] = rule
}

// RecordActionResult records the outcome of a single action invocation and
// reports whether the rule has now reached its maxActionInvocations limit.
func (e *Engine) RecordActionResult(id string, success bool) (invocationCount int64, maxReached bool) {
	e.mu.Lock()
	rule, ok := e.rules[id]
	if !ok {
		e.mu.Unlock()
		return 0, false
	}

	if success {
		rule.Monitor.ActionInvocationsSuccess++
		now := e.clock.Now()
		rule.Monitor.LastSuccessfulActionInvocationTime = &now
	} else {
		rule.Monitor.ActionInvocationsFailure++
	}
	e.rules[id] = rule

	invocationCount = rule.Monitor.ActionInvocationsSuccess
	maxInvocations := rule.Monitor.MaxActionInvocations
	applicationName, ruleName := rule.ApplicationName, rule.Name
	e.mu.Unlock()

	result := "success"
	if !success {
		result = "failure"
	}
	observability.RecordActionInvocation(context.Background(), applicationName, ruleName, result)

	maxReached = maxInvocations > 0 && invocationCount >= int64(maxInvocations)
	return invocationCount, maxReached
}

// AutoDisableRule disables a rule after it reaches maxActionInvocations.
// Called from the scheduler's own goroutine with no lock held, so it
// acquires mu itself and applies disableLocked directly.
func (e *Engine) AutoDisableRule(ctx context.Context, id string) {
	applicationName, name := splitRuleID(id)

	e.mu.Lock()
	rule, ok := e.rules[id]
	var err error
	if ok && rule.Enabled() {
		err = e.disableLocked(id, rule, "disabled: maxActionInvocations reached")
	}
	e.mu.Unlock()

	if ok && err == nil {
		observability.RuleAutoDisabledTotal.WithLabelValues(applicationName, name).Inc()
		observability.RecordRuleAutoDisabled(ctx, applicationName, name)
	}
}
