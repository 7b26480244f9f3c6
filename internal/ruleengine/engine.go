// Package ruleengine is the public façade over rule persistence, condition
// evaluation, and dispatch: the in-memory registry, the control-plane lock
// serializing mutation and lookup operations, and the glue wiring the
// scheduler back to rule counters and lifecycle state.
package ruleengine

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/UnivaCorporation/policyengine/internal/observability"
	"github.com/UnivaCorporation/policyengine/internal/scheduler"
	"github.com/UnivaCorporation/policyengine/internal/storage"
	"github.com/UnivaCorporation/policyengine/pkg/clock"
	"github.com/UnivaCorporation/policyengine/pkg/fsm"
	"github.com/UnivaCorporation/policyengine/pkg/models"
)

// Engine is the rule engine's public façade. Every exported method
// acquires mu, so callers never observe a partially-applied mutation.
//
// Engine does hold mu while it registers, removes, or enqueues through the
// scheduler, but none of those scheduler calls reaches back into Engine.
// The scheduler never holds its own lock while calling back into Engine:
// AutoDisableRule and the counter callbacks run from a poll-timer or
// receive-worker goroutine, or from ExecuteRule after it has released mu.
// So despite spec's "reentrant lock" framing, a plain non-reentrant mutex
// is sufficient here — see DESIGN.md.
type Engine struct {
	mu sync.Mutex

	rules      map[string]models.Rule
	store      *storage.RuleStore
	scheduler  *scheduler.Scheduler
	lifecycles *fsm.RuleLifecycleRegistry
	clock      clock.Clock
	maxRules   int
}

// New creates an Engine. runner executes query/action commands on behalf
// of the scheduler; minTriggerInterval floors poll re-arm timing. maxRules
// caps the number of rules the registry will hold (<= 0 means unbounded);
// receiveQueueCap caps the scheduler's per-process receive backlog (<= 0
// means unbounded).
func New(store *storage.RuleStore, runner scheduler.ActionRunner, clk clock.Clock, minTriggerInterval time.Duration, maxRules int, receiveQueueCap int) *Engine {
	e := &Engine{
		rules:      make(map[string]models.Rule),
		store:      store,
		lifecycles: fsm.NewRuleLifecycleRegistry(),
		clock:      clk,
		maxRules:   maxRules,
	}
	e.scheduler = scheduler.New(clk, runner, e, minTriggerInterval, receiveQueueCap)
	return e
}

// Boot scans the rules root and registers every rule that parses, via the
// internal add path so it is not re-persisted (the source of truth IS the
// file being loaded). A rule that fails to parse is logged and skipped;
// one bad file never prevents the rest from loading.
func (e *Engine) Boot(ctx context.Context) error {
	scanned, err := e.store.Scan()
	if err != nil {
		return err
	}

	for _, sr := range scanned {
		if sr.Err != nil {
			observability.Error(ctx, "failed to load rule from %s: %v", sr.Path, sr.Err)
			observability.RecordRuleLoad(ctx, "error", 0)
			continue
		}

		e.mu.Lock()
		addErr := e.addRuleLocked(ctx, sr.Rule, false)
		e.mu.Unlock()
		if addErr != nil {
			observability.Error(ctx, "failed to register rule from %s: %v", sr.Path, addErr)
		}
	}
	return nil
}

func ruleID(applicationName, name string) string {
	return applicationName + "/" + name
}

func splitRuleID(id string) (applicationName, name string) {
	parts := strings.SplitN(id, "/", 2)
	if len(parts) != 2 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

// registerDispatch arms the rule for scheduling according to its monitor
// type. Disabled rules are simply absent from every scheduler set — that
// absence IS the "disabled" state.
func (e *Engine) registerDispatch(rule models.Rule) {
	if !rule.Enabled() {
		return
	}
	switch rule.Monitor.Type {
	case models.MonitorPoll:
		e.scheduler.AddPoll(rule)
	case models.MonitorReceive:
		e.scheduler.AddReceive(rule)
	default:
		e.scheduler.AddEvent(rule)
	}
}

// GetRuleList returns a deep-copied, ruleID-ordered snapshot of every
// registered rule, enabled or disabled.
func (e *Engine) GetRuleList() []models.Rule {
	e.mu.Lock()
	defer e.mu.Unlock()

	list := make([]models.Rule, 0, len(e.rules))
	for _, r := range e.rules {
		list = append(list, r.Clone())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].RuleID() < list[j].RuleID() })
	return list
}
