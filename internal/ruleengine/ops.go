package ruleengine

import (
	"context"

	"github.com/UnivaCorporation/policyengine/internal/observability"
	"github.com/UnivaCorporation/policyengine/pkg/fsm"
	"github.com/UnivaCorporation/policyengine/pkg/models"
)

// HasRule reports whether a rule is currently registered, enabled or not.
func (e *Engine) HasRule(applicationName, name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.rules[ruleID(applicationName, name)]
	return ok
}

// AddRule validates, persists, and registers rule. Returns a KindRuleAlreadyExists
// *Error if a rule with the same applicationName/name is already registered.
func (e *Engine) AddRule(ctx context.Context, rule models.Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addRuleLocked(ctx, rule, true)
}

func (e *Engine) addRuleLocked(ctx context.Context, rule models.Rule, persist bool) error {
	id := rule.RuleID()
	if _, exists := e.rules[id]; exists {
		return newError(KindRuleAlreadyExists, id, "")
	}
	if e.maxRules > 0 && len(e.rules) >= e.maxRules {
		return newError(KindRegistryFull, id, "registry is at max_rules capacity")
	}

	ctx, span := observability.StartRuleLoadSpan(ctx, rule.ApplicationName, rule.Name)
	defer span.End()
	start := e.clock.Now()

	lifecycle := e.lifecycles.Get(id)
	_ = lifecycle.Transition(fsm.EventCreate)

	if err := validateRule(rule); err != nil {
		_ = lifecycle.Transition(fsm.EventValidationFailed)
		observability.RecordRuleLoadResult(span, err, e.clock.Now().Sub(start))
		return err
	}
	_ = lifecycle.Transition(fsm.EventValidate)
	_ = lifecycle.Transition(fsm.EventCompile)

	if persist {
		if err := e.store.WriteRule(rule); err != nil {
			_ = lifecycle.Transition(fsm.EventPersistenceFailed)
			observability.RecordRuleLoadResult(span, err, e.clock.Now().Sub(start))
			return err
		}
	}
	_ = lifecycle.Transition(fsm.EventPersist)

	e.rules[id] = rule
	e.registerDispatch(rule)

	observability.RecordRuleLoadResult(span, nil, e.clock.Now().Sub(start))
	observability.UpdateActiveRules(ctx, 1)
	return nil
}

// DeleteRule removes a rule's schedule, backing file, and registry entry.
func (e *Engine) DeleteRule(ctx context.Context, applicationName, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := ruleID(applicationName, name)
	if _, ok := e.rules[id]; !ok {
		return newError(KindRuleNotFound, id, "")
	}

	lifecycle := e.lifecycles.Get(id)
	_ = lifecycle.Transition(fsm.EventDelete)

	e.scheduler.Remove(id)

	if err := e.store.DeleteRule(applicationName, name); err != nil {
		_ = lifecycle.Transition(fsm.EventDeleteFailed)
		return err
	}

	delete(e.rules, id)
	_ = lifecycle.Transition(fsm.EventDeleteComplete)
	e.lifecycles.Remove(id)
	observability.UpdateActiveRules(ctx, -1)
	return nil
}

// EnableRule transitions a disabled rule back into its monitor type's
// scheduled dispatch state.
func (e *Engine) EnableRule(ctx context.Context, applicationName, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := ruleID(applicationName, name)
	rule, ok := e.rules[id]
	if !ok {
		return newError(KindRuleNotFound, id, "")
	}
	if rule.Enabled() {
		return newError(KindRuleAlreadyEnabled, id, "")
	}

	rule.Status = models.StatusEnabled
	if err := e.store.WriteRule(rule); err != nil {
		return err
	}
	e.rules[id] = rule
	e.registerDispatch(rule)
	return nil
}

// DisableRule administratively disables a rule: cancels its schedule,
// persists the new status, and joins the disabled set.
func (e *Engine) DisableRule(ctx context.Context, applicationName, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := ruleID(applicationName, name)
	rule, ok := e.rules[id]
	if !ok {
		return newError(KindRuleNotFound, id, "")
	}
	if !rule.Enabled() {
		return newError(KindRuleAlreadyDisabled, id, "")
	}
	return e.disableLocked(id, rule, models.StatusDisabled)
}

// disableLocked assumes mu is held and rule is currently enabled.
func (e *Engine) disableLocked(id string, rule models.Rule, status string) error {
	rule.Status = status
	if err := e.store.WriteRule(rule); err != nil {
		return err
	}
	e.rules[id] = rule
	e.scheduler.Remove(id)
	return nil
}

// GetRule returns a deep copy of the named rule's current state.
func (e *Engine) GetRule(applicationName, name string) (models.Rule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := ruleID(applicationName, name)
	rule, ok := e.rules[id]
	if !ok {
		return models.Rule{}, newError(KindRuleNotFound, id, "")
	}
	return rule.Clone(), nil
}

// ReceiveApplicationData hands data off to every receive-mode rule
// subscribed to applicationName. The call never blocks on evaluation: it
// enqueues and returns.
func (e *Engine) ReceiveApplicationData(ctx context.Context, applicationName string, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := "accepted"
	if len(data) == 0 {
		status = "empty"
	}

	accepted := e.scheduler.ReceiveApplicationData(ctx, applicationName, data)
	if !accepted {
		status = "rejected"
	}
	observability.ApplicationDataReceivedTotal.WithLabelValues(applicationName, status).Inc()

	if !accepted {
		return newError(KindReceiveQueueFull, applicationName, "receive queue is at capacity")
	}
	return nil
}

// ExecuteRule runs a single named rule immediately, outside its normal
// schedule. data is only meaningful for receive-mode rules.
func (e *Engine) ExecuteRule(ctx context.Context, applicationName, name string, data []byte) error {
	e.mu.Lock()
	id := ruleID(applicationName, name)
	rule, ok := e.rules[id]
	if !ok {
		e.mu.Unlock()
		return newError(KindRuleNotFound, id, "")
	}
	if !rule.Enabled() {
		e.mu.Unlock()
		return newError(KindRuleDisabled, id, "")
	}
	e.mu.Unlock()

	// Runs outside the control-plane lock: subprocess execution must never
	// block addRule/deleteRule/etc. for the duration of a query or action
	// command.
	e.scheduler.ExecuteRule(ctx, rule, data)
	return nil
}

func validateRule(rule models.Rule) error {
	id := rule.RuleID()
	if rule.ApplicationName == "" || rule.Name == "" {
		return newError(KindInvalidXML, id, "applicationName and name are required")
	}
	if rule.Monitor.ActionCommand == "" {
		return newError(KindInvalidXML, id, "actionCommand is required")
	}
	return nil
}
