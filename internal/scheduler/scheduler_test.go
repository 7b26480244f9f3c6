package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/UnivaCorporation/policyengine/pkg/clock"
	"github.com/UnivaCorporation/policyengine/pkg/models"
)

type fakeRunner struct {
	mu          sync.Mutex
	queryStdout string
	queryOK     bool
	actionOK    bool
	actionCmds  []string
	queryCmds   []string
}

func (f *fakeRunner) RunQuery(ctx context.Context, applicationName, ruleName, cmd string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCmds = append(f.queryCmds, cmd)
	return f.queryStdout, f.queryOK
}

func (f *fakeRunner) RunAction(ctx context.Context, applicationName, ruleName, cmd string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actionCmds = append(f.actionCmds, cmd)
	return f.actionOK
}

func (f *fakeRunner) actionInvocations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.actionCmds...)
}

type fakeAccessor struct {
	mu              sync.Mutex
	rules           map[string]models.Rule
	invocations     map[string]int
	querySuccesses  map[string]int64
	queryFailures   map[string]int64
	actionSuccesses map[string]int64
	maxInvocations  map[string]int
	disabled        map[string]bool
}

func newFakeAccessor() *fakeAccessor {
	return &fakeAccessor{
		rules:           map[string]models.Rule{},
		invocations:     map[string]int{},
		querySuccesses:  map[string]int64{},
		queryFailures:   map[string]int64{},
		actionSuccesses: map[string]int64{},
		maxInvocations:  map[string]int{},
		disabled:        map[string]bool{},
	}
}

func (f *fakeAccessor) GetLiveRule(ruleID string) (models.Rule, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[ruleID]
	return r, ok
}

func (f *fakeAccessor) RecordRuleInvoked(ruleID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invocations[ruleID]++
}

func (f *fakeAccessor) RecordQueryResult(ruleID string, success bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if success {
		f.querySuccesses[ruleID]++
	} else {
		f.queryFailures[ruleID]++
	}
}

func (f *fakeAccessor) queryResultCounts(ruleID string) (successes, failures int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.querySuccesses[ruleID], f.queryFailures[ruleID]
}

func (f *fakeAccessor) RecordActionResult(ruleID string, success bool) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if success {
		f.actionSuccesses[ruleID]++
	}
	max := f.maxInvocations[ruleID]
	reached := max > 0 && f.actionSuccesses[ruleID] >= int64(max)
	return f.actionSuccesses[ruleID], reached
}

func (f *fakeAccessor) AutoDisableRule(ctx context.Context, ruleID string) {
	f.mu.Lock()
	f.disabled[ruleID] = true
	f.mu.Unlock()
}

func (f *fakeAccessor) wasDisabled(ruleID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disabled[ruleID]
}

func pollRule(app, name string, period time.Duration, maxInvocations int) models.Rule {
	return models.Rule{
		ApplicationName: app,
		Name:            name,
		Status:          models.StatusEnabled,
		Monitor: models.ApplicationMonitor{
			Type:                 models.MonitorPoll,
			PollPeriod:           period,
			MaxActionInvocations: maxInvocations,
			QueryCommand:         "query",
			ActionCommand:        "action",
		},
		Conditions: []models.Condition{
			{MetricXPath: "/m/v", EvaluationOperator: ">", TriggerValue: "10"},
		},
	}
}

func TestPollFiresAndReschedules(t *testing.T) {
	vc := clock.NewVirtualClock(time.Unix(0, 0))
	runner := &fakeRunner{queryStdout: `<m><v>42</v></m>`, queryOK: true, actionOK: true}
	accessor := newFakeAccessor()
	s := New(vc, runner, accessor, time.Second, 0)

	rule := pollRule("app", "r1", 10*time.Second, 0)
	accessor.rules[rule.RuleID()] = rule
	s.AddPoll(rule)

	vc.Advance(10 * time.Second)
	if len(runner.actionInvocations()) != 1 {
		t.Fatalf("expected 1 action invocation after first fire, got %d", len(runner.actionInvocations()))
	}

	vc.Advance(10 * time.Second)
	if len(runner.actionInvocations()) != 2 {
		t.Fatalf("expected 2 action invocations after second fire, got %d", len(runner.actionInvocations()))
	}

	if successes, failures := accessor.queryResultCounts(rule.RuleID()); successes != 2 || failures != 0 {
		t.Fatalf("expected 2 recorded query successes and 0 failures, got %d/%d", successes, failures)
	}
}

func TestPollAutoDisablesAtMaxInvocations(t *testing.T) {
	vc := clock.NewVirtualClock(time.Unix(0, 0))
	runner := &fakeRunner{queryStdout: `<m><v>42</v></m>`, queryOK: true, actionOK: true}
	accessor := newFakeAccessor()
	s := New(vc, runner, accessor, time.Second, 0)

	rule := pollRule("app", "r1", 10*time.Second, 2)
	accessor.rules[rule.RuleID()] = rule
	accessor.maxInvocations[rule.RuleID()] = 2
	s.AddPoll(rule)

	vc.Advance(10 * time.Second)
	vc.Advance(10 * time.Second)

	if !accessor.wasDisabled(rule.RuleID()) {
		t.Fatal("expected rule to be auto-disabled after reaching maxActionInvocations")
	}

	pending := vc.PendingTimers()
	if pending != 0 {
		t.Fatalf("expected no pending timers after auto-disable, got %d", pending)
	}
}

func TestRemoveCancelsPollTimer(t *testing.T) {
	vc := clock.NewVirtualClock(time.Unix(0, 0))
	runner := &fakeRunner{queryStdout: `<m><v>42</v></m>`, queryOK: true, actionOK: true}
	accessor := newFakeAccessor()
	s := New(vc, runner, accessor, time.Second, 0)

	rule := pollRule("app", "r1", 10*time.Second, 0)
	accessor.rules[rule.RuleID()] = rule
	s.AddPoll(rule)
	s.Remove(rule.RuleID())

	vc.Advance(10 * time.Second)
	if len(runner.actionInvocations()) != 0 {
		t.Fatalf("expected no action invocations after removal, got %d", len(runner.actionInvocations()))
	}
}

func TestQueryCommandAbsentInvokesActionUnconditionally(t *testing.T) {
	vc := clock.NewVirtualClock(time.Unix(0, 0))
	runner := &fakeRunner{actionOK: true}
	accessor := newFakeAccessor()
	s := New(vc, runner, accessor, time.Second, 0)

	rule := pollRule("app", "r1", 10*time.Second, 0)
	rule.Monitor.QueryCommand = ""
	rule.Conditions = nil
	accessor.rules[rule.RuleID()] = rule
	s.AddPoll(rule)

	vc.Advance(10 * time.Second)
	if len(runner.actionInvocations()) != 1 {
		t.Fatalf("expected action to run unconditionally with no queryCommand, got %d invocations", len(runner.actionInvocations()))
	}
}

func TestQueryCommandFailureIsRecordedAndSkipsEvaluation(t *testing.T) {
	vc := clock.NewVirtualClock(time.Unix(0, 0))
	runner := &fakeRunner{queryStdout: "", queryOK: false, actionOK: true}
	accessor := newFakeAccessor()
	s := New(vc, runner, accessor, time.Second, 0)

	rule := pollRule("app", "r1", 10*time.Second, 0)
	accessor.rules[rule.RuleID()] = rule
	s.AddPoll(rule)

	vc.Advance(10 * time.Second)

	if len(runner.actionInvocations()) != 0 {
		t.Fatalf("expected no action invocation when queryCommand fails, got %d", len(runner.actionInvocations()))
	}
	if successes, failures := accessor.queryResultCounts(rule.RuleID()); successes != 0 || failures != 1 {
		t.Fatalf("expected 0 recorded query successes and 1 failure, got %d/%d", successes, failures)
	}
}

func TestReceiveDispatchesToSubscribersOfSameApplication(t *testing.T) {
	vc := clock.NewVirtualClock(time.Unix(0, 0))
	runner := &fakeRunner{actionOK: true}
	accessor := newFakeAccessor()
	s := New(vc, runner, accessor, time.Second, 0)

	subscribed := models.Rule{
		ApplicationName: "app",
		Name:            "r1",
		Status:          models.StatusEnabled,
		Monitor:         models.ApplicationMonitor{Type: models.MonitorReceive, ActionCommand: "action"},
		Conditions:      []models.Condition{{MetricXPath: "/m/v", EvaluationOperator: ">", TriggerValue: "10"}},
	}
	other := models.Rule{
		ApplicationName: "other-app",
		Name:            "r2",
		Status:          models.StatusEnabled,
		Monitor:         models.ApplicationMonitor{Type: models.MonitorReceive, ActionCommand: "action"},
	}
	accessor.rules[subscribed.RuleID()] = subscribed
	accessor.rules[other.RuleID()] = other
	s.AddReceive(subscribed)
	s.AddReceive(other)

	s.ReceiveApplicationData(context.Background(), "app", []byte(`<m><v>42</v></m>`))

	deadline := time.Now().Add(2 * time.Second)
	for len(runner.actionInvocations()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if got := len(runner.actionInvocations()); got != 1 {
		t.Fatalf("expected exactly 1 action invocation (the matching application), got %d", got)
	}
}

func TestReceiveQueueRejectsBeyondCapacity(t *testing.T) {
	vc := clock.NewVirtualClock(time.Unix(0, 0))
	runner := &fakeRunner{actionOK: true}
	accessor := newFakeAccessor()
	s := New(vc, runner, accessor, time.Second, 2)

	// Pin the queue at capacity with the worker marked running, so enqueue
	// must reject rather than race a concurrent drain.
	s.queueMu.Lock()
	s.queue = append(s.queue, receiveItem{applicationName: "app"}, receiveItem{applicationName: "app"})
	s.workerRunning = true
	s.queueMu.Unlock()

	if s.enqueue("app", []byte("x")) {
		t.Fatal("expected enqueue to reject once the receive queue is at capacity")
	}

	s.queueMu.Lock()
	depth := len(s.queue)
	s.queueMu.Unlock()
	if depth != 2 {
		t.Fatalf("expected rejected enqueue to leave queue depth unchanged at 2, got %d", depth)
	}
}

func TestReceiveFIFOOrderPerApplication(t *testing.T) {
	vc := clock.NewVirtualClock(time.Unix(0, 0))
	runner := &fakeRunner{actionOK: true}
	accessor := newFakeAccessor()
	s := New(vc, runner, accessor, time.Second, 0)

	rule := models.Rule{
		ApplicationName: "app",
		Name:            "r1",
		Status:          models.StatusEnabled,
		Monitor:         models.ApplicationMonitor{Type: models.MonitorReceive, ActionCommand: "action-${v}"},
		Conditions:      []models.Condition{{MetricXPath: "/m/v", EvaluationOperator: "!=", TriggerValue: "zzz"}},
		XPathVariables:  []models.XPathVariable{{Name: "v", XPath: "/m/v"}},
	}
	accessor.rules[rule.RuleID()] = rule
	s.AddReceive(rule)

	s.ReceiveApplicationData(context.Background(), "app", []byte(`<m><v>first</v></m>`))
	s.ReceiveApplicationData(context.Background(), "app", []byte(`<m><v>second</v></m>`))

	deadline := time.Now().Add(2 * time.Second)
	for len(runner.actionInvocations()) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	cmds := runner.actionInvocations()
	if len(cmds) != 2 {
		t.Fatalf("expected 2 action invocations, got %d: %v", len(cmds), cmds)
	}
	if cmds[0] != "action-first" || cmds[1] != "action-second" {
		t.Fatalf("expected FIFO order [action-first action-second], got %v", cmds)
	}
}

func TestExecuteRuleEventRunsSynchronouslyWithoutScheduling(t *testing.T) {
	vc := clock.NewVirtualClock(time.Unix(0, 0))
	runner := &fakeRunner{actionOK: true}
	accessor := newFakeAccessor()
	s := New(vc, runner, accessor, time.Second, 0)

	rule := models.Rule{
		ApplicationName: "app",
		Name:            "r1",
		Status:          models.StatusEnabled,
		Monitor:         models.ApplicationMonitor{Type: models.MonitorEvent, QueryCommand: "q", ActionCommand: "action"},
		Conditions:      []models.Condition{{MetricXPath: "/m/v", EvaluationOperator: ">", TriggerValue: "10"}},
	}
	runner.queryStdout = `<m><v>42</v></m>`
	runner.queryOK = true
	accessor.rules[rule.RuleID()] = rule

	s.ExecuteRule(context.Background(), rule, nil)
	if len(runner.actionInvocations()) != 1 {
		t.Fatalf("expected 1 synchronous action invocation, got %d", len(runner.actionInvocations()))
	}
	if vc.PendingTimers() != 0 {
		t.Fatal("event execution must not schedule any timer")
	}
}
