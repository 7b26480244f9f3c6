package scheduler

import (
	"context"

	"github.com/antchfx/xmlquery"

	"github.com/UnivaCorporation/policyengine/internal/condeval"
	"github.com/UnivaCorporation/policyengine/internal/observability"
)

// ReceiveApplicationData enqueues data for applicationName and ensures the
// processing worker is running. Enqueues never block. Returns false if the
// receive queue is at capacity, in which case data is dropped.
func (s *Scheduler) ReceiveApplicationData(ctx context.Context, applicationName string, data []byte) bool {
	return s.enqueue(applicationName, data)
}

func (s *Scheduler) enqueue(applicationName string, data []byte) bool {
	s.queueMu.Lock()
	if s.receiveQueueCap > 0 && len(s.queue) >= s.receiveQueueCap {
		depth := len(s.queue)
		s.queueMu.Unlock()
		observability.ReceiveQueueDepth.WithLabelValues(applicationName).Set(float64(depth))
		return false
	}

	s.queue = append(s.queue, receiveItem{applicationName: applicationName, data: data})
	depth := len(s.queue)
	shouldStart := !s.workerRunning
	if shouldStart {
		s.workerRunning = true
	}
	s.queueMu.Unlock()

	observability.ReceiveQueueDepth.WithLabelValues(applicationName).Set(float64(depth))

	if shouldStart {
		go s.runWorker()
	}
	return true
}

// runWorker drains the queue until empty, then exits. The next enqueue
// re-arms it. At most one worker runs at a time (single-flight).
func (s *Scheduler) runWorker() {
	ctx := context.Background()
	for {
		s.queueMu.Lock()
		if len(s.queue) == 0 {
			s.workerRunning = false
			s.queueMu.Unlock()
			return
		}
		item := s.queue[0]
		s.queue = s.queue[1:]
		s.queueMu.Unlock()

		s.processReceiveItem(ctx, item)
	}
}

func (s *Scheduler) processReceiveItem(ctx context.Context, item receiveItem) {
	doc, err := condeval.ParseDocument(string(item.data))
	if err != nil {
		observability.Warn(ctx, "failed to parse application data for %s: %v", item.applicationName, err)
		return
	}

	s.mu.Lock()
	var ruleIDs []string
	for ruleID, rule := range s.receiveSubscribers {
		if rule.ApplicationName == item.applicationName {
			ruleIDs = append(ruleIDs, ruleID)
		}
	}
	s.mu.Unlock()

	for _, ruleID := range ruleIDs {
		s.processReceiveRule(ctx, ruleID, doc)
	}
}

// processReceiveRule evaluates and, if triggered, acts on behalf of a
// single receive subscriber. Per-rule failures are caught here so one
// rule's panic never aborts the drain of the rest of the queue.
func (s *Scheduler) processReceiveRule(ctx context.Context, ruleID string, doc *xmlquery.Node) {
	defer func() {
		if r := recover(); r != nil {
			observability.Error(ctx, "receive-path rule %s panicked: %v", ruleID, r)
		}
	}()

	s.mu.Lock()
	rule, ok := s.receiveSubscribers[ruleID]
	s.mu.Unlock()
	if !ok {
		return
	}

	s.accessor.RecordRuleInvoked(ruleID)
	s.evaluateAndAct(ctx, ruleID, rule, doc)
}
