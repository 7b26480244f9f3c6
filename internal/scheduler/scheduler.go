// Package scheduler owns rule dispatch timing: per-rule poll timers, the
// receive-data queue and its single-flight worker, and event-rule execution.
// It holds no rule counters or status itself — those live on the engine's
// canonical registry, reached back through the RuleAccessor interface — but
// it does hold per-dispatch-mode snapshots of each registered rule (commands,
// conditions, xpath variables) so timer and worker callbacks never need to
// re-enter the engine's control-plane lock just to learn what to run.
package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/antchfx/xmlquery"

	"github.com/UnivaCorporation/policyengine/internal/condeval"
	"github.com/UnivaCorporation/policyengine/internal/observability"
	"github.com/UnivaCorporation/policyengine/pkg/clock"
	"github.com/UnivaCorporation/policyengine/pkg/models"
)

// ActionRunner executes a rule's query and action commands.
type ActionRunner interface {
	RunQuery(ctx context.Context, applicationName, ruleName, cmd string) (stdout string, ok bool)
	RunAction(ctx context.Context, applicationName, ruleName, cmd string) bool
}

// RuleAccessor is the engine's canonical rule registry, as seen by the
// scheduler. All counter mutation and auto-disable decisions are recorded
// through it so getRule/getRuleList always reflect dispatch activity.
type RuleAccessor interface {
	GetLiveRule(ruleID string) (models.Rule, bool)
	RecordRuleInvoked(ruleID string)
	RecordQueryResult(ruleID string, success bool)
	RecordActionResult(ruleID string, success bool) (invocationCount int64, maxReached bool)
	AutoDisableRule(ctx context.Context, ruleID string)
}

type receiveItem struct {
	applicationName string
	data            []byte
}

// Scheduler dispatches enabled rules according to their monitor type.
type Scheduler struct {
	clock              clock.Clock
	runner             ActionRunner
	accessor           RuleAccessor
	minTriggerInterval time.Duration
	receiveQueueCap    int

	mu                 sync.Mutex
	pollTimers         map[string]clock.Timer
	pollRules          map[string]models.Rule
	receiveSubscribers map[string]models.Rule
	eventRules         map[string]models.Rule

	queueMu       sync.Mutex
	queue         []receiveItem
	workerRunning bool
}

// New creates a Scheduler. minTriggerInterval floors both the initial poll
// delay (when a rule's pollPeriod is unset) and the re-arm delay computed
// after each poll fire. receiveQueueCap bounds the backlog of application
// data awaiting processing; a value <= 0 leaves the queue unbounded.
func New(clk clock.Clock, runner ActionRunner, accessor RuleAccessor, minTriggerInterval time.Duration, receiveQueueCap int) *Scheduler {
	return &Scheduler{
		clock:              clk,
		runner:             runner,
		accessor:           accessor,
		minTriggerInterval: minTriggerInterval,
		receiveQueueCap:    receiveQueueCap,
		pollTimers:         make(map[string]clock.Timer),
		pollRules:          make(map[string]models.Rule),
		receiveSubscribers: make(map[string]models.Rule),
		eventRules:         make(map[string]models.Rule),
	}
}

// AddPoll registers rule for poll dispatch and arms its first timer.
func (s *Scheduler) AddPoll(rule models.Rule) {
	ruleID := rule.RuleID()
	s.mu.Lock()
	s.pollRules[ruleID] = rule
	s.mu.Unlock()

	delay := rule.Monitor.PollPeriod
	if delay <= 0 {
		delay = s.minTriggerInterval
	}
	s.armPollTimer(rule, delay)
}

// AddReceive registers rule to be invoked whenever application data arrives
// for its applicationName.
func (s *Scheduler) AddReceive(rule models.Rule) {
	s.mu.Lock()
	s.receiveSubscribers[rule.RuleID()] = rule
	s.mu.Unlock()
}

// AddEvent registers rule for explicit event execution only; it is never
// scheduled on its own.
func (s *Scheduler) AddEvent(rule models.Rule) {
	s.mu.Lock()
	s.eventRules[rule.RuleID()] = rule
	s.mu.Unlock()
}

// Remove cancels any armed poll timer for ruleID and removes it from every
// dispatch-mode set. It is idempotent: removing an already-absent rule-id
// is a no-op, which lets callers (disable, delete, auto-disable) call it
// unconditionally.
func (s *Scheduler) Remove(ruleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.pollTimers[ruleID]; ok {
		timer.Stop()
		delete(s.pollTimers, ruleID)
	}
	delete(s.pollRules, ruleID)
	delete(s.receiveSubscribers, ruleID)
	delete(s.eventRules, ruleID)
}

func (s *Scheduler) armPollTimer(rule models.Rule, delay time.Duration) {
	ruleID := rule.RuleID()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, stillRegistered := s.pollRules[ruleID]; !stillRegistered {
		return
	}
	s.pollTimers[ruleID] = s.clock.AfterFunc(delay, func() { s.firePoll(ruleID) })
}

// firePoll is the poll timer callback. It re-checks registration
// immediately on entry to absorb the race between firing and deletion.
func (s *Scheduler) firePoll(ruleID string) {
	s.mu.Lock()
	rule, ok := s.pollRules[ruleID]
	s.mu.Unlock()
	if !ok {
		return
	}

	ctx := context.Background()
	if autoDisabled := s.runOnce(ctx, ruleID, rule); autoDisabled {
		return
	}

	s.mu.Lock()
	rule, ok = s.pollRules[ruleID]
	s.mu.Unlock()
	if !ok {
		return
	}

	s.armPollTimer(rule, s.computeNextDelay(ruleID, rule))
}

// computeNextDelay implements spec.md's poll re-arm rule: start from
// pollPeriod (or minTriggerInterval if unset), then raise to
// minTriggerInterval if the next fire would land sooner than that after the
// rule's last successful action.
func (s *Scheduler) computeNextDelay(ruleID string, rule models.Rule) time.Duration {
	delay := rule.Monitor.PollPeriod
	if delay <= 0 {
		delay = s.minTriggerInterval
	}

	live, ok := s.accessor.GetLiveRule(ruleID)
	if !ok || live.Monitor.LastSuccessfulActionInvocationTime == nil {
		return delay
	}

	now := s.clock.Now()
	if now.Add(delay).Sub(*live.Monitor.LastSuccessfulActionInvocationTime) < s.minTriggerInterval {
		return s.minTriggerInterval
	}
	return delay
}

// ExecuteRule runs rule once, outside of its normal schedule:
//   - poll: cancels any armed timer, runs synchronously, then re-arms as usual.
//   - receive: enqueues data and ensures the worker is running.
//   - event: runs synchronously; never scheduled otherwise.
func (s *Scheduler) ExecuteRule(ctx context.Context, rule models.Rule, data []byte) {
	switch rule.Monitor.Type {
	case models.MonitorPoll:
		ruleID := rule.RuleID()
		s.mu.Lock()
		if timer, ok := s.pollTimers[ruleID]; ok {
			timer.Stop()
			delete(s.pollTimers, ruleID)
		}
		s.pollRules[ruleID] = rule
		s.mu.Unlock()

		if autoDisabled := s.runOnce(ctx, ruleID, rule); !autoDisabled {
			s.armPollTimer(rule, s.computeNextDelay(ruleID, rule))
		}
	case models.MonitorReceive:
		s.enqueue(rule.ApplicationName, data)
		// ExecuteRule's caller already validated the rule's existence; a
		// full receive queue here is silently dropped, same as the normal
		// ReceiveApplicationData path under backpressure.
	default: // event
		s.runOnce(ctx, rule.RuleID(), rule)
	}
}

// runOnce runs a rule's query command (if any) and evaluates its
// conditions, invoking the action command when triggered. A failed query
// command is recorded and ends the run without evaluation. Used by the poll
// and event dispatch paths. Returns whether the rule was auto-disabled as a
// result.
func (s *Scheduler) runOnce(ctx context.Context, ruleID string, rule models.Rule) bool {
	s.accessor.RecordRuleInvoked(ruleID)

	if rule.Monitor.QueryCommand == "" {
		// Boundary behavior: no queryCommand means the evaluator is
		// skipped entirely and the action runs unconditionally.
		return s.invokeAction(ctx, ruleID, rule, rule.Monitor.ActionCommand)
	}

	stdout, ok := s.runner.RunQuery(ctx, rule.ApplicationName, rule.Name, rule.Monitor.QueryCommand)
	s.accessor.RecordQueryResult(ruleID, ok)
	if !ok {
		return false
	}
	doc, err := condeval.ParseDocument(stdout)
	if err != nil {
		observability.Warn(ctx, "failed to parse queryCommand output for %s: %v", ruleID, err)
		return false
	}
	return s.evaluateAndAct(ctx, ruleID, rule, doc)
}

// evaluateAndAct evaluates rule's conditions against doc and invokes the
// action command (with substitutions applied) if triggered.
func (s *Scheduler) evaluateAndAct(ctx context.Context, ruleID string, rule models.Rule, doc *xmlquery.Node) bool {
	result := condeval.Evaluate(ctx, rule.ApplicationName, rule.Name, doc, rule.XPathVariables, rule.Conditions)
	if !result.Triggered {
		return false
	}
	return s.invokeAction(ctx, ruleID, rule, substitute(rule.Monitor.ActionCommand, result.Substitutions))
}

func (s *Scheduler) invokeAction(ctx context.Context, ruleID string, rule models.Rule, actionCmd string) bool {
	ok := s.runner.RunAction(ctx, rule.ApplicationName, rule.Name, actionCmd)
	_, maxReached := s.accessor.RecordActionResult(ruleID, ok)
	if maxReached {
		s.accessor.AutoDisableRule(ctx, ruleID)
		return true
	}
	return false
}

func substitute(cmd string, substitutions map[string]string) string {
	for name, value := range substitutions {
		cmd = strings.ReplaceAll(cmd, "${"+name+"}", value)
	}
	return cmd
}
