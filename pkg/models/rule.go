// Package models defines the rule engine's core data types: Rule,
// ApplicationMonitor, Condition, and XPathVariable.
package models

import (
	"fmt"
	"time"
)

// MonitorType is the dispatch mode of a rule's ApplicationMonitor.
type MonitorType string

const (
	MonitorPoll    MonitorType = "poll"
	MonitorReceive MonitorType = "receive"
	MonitorEvent   MonitorType = "event"
)

// NormalizeMonitorType returns t if it is one of the known monitor types,
// and MonitorEvent otherwise. Unknown or empty types default to event per
// the rule schema.
func NormalizeMonitorType(t string) MonitorType {
	switch MonitorType(t) {
	case MonitorPoll:
		return MonitorPoll
	case MonitorReceive:
		return MonitorReceive
	default:
		return MonitorEvent
	}
}

// StatusEnabled is the only status value the engine treats as enabled.
// Any other value (including "disabled", "disabled by administrator", or
// free-form text) is treated as disabled.
const StatusEnabled = "enabled"

// StatusDisabled is the canonical status written when a rule is disabled
// without an administrator-supplied reason.
const StatusDisabled = "disabled"

// Condition is a single comparison evaluated against application data.
// MetricXPath and TriggerValue may contain ${var}-style tokens resolved
// against a rule's XPathVariable substitution map before evaluation.
type Condition struct {
	MetricXPath        string
	EvaluationOperator string
	TriggerValue       string
	Description        string
}

// Describe returns a human-readable rendering of the condition, used only
// by CLI and log output.
func (c Condition) Describe() string {
	if c.Description != "" {
		return c.Description
	}
	return fmt.Sprintf("%s %s %s", c.MetricXPath, c.EvaluationOperator, c.TriggerValue)
}

// XPathVariable names an XPath expression whose string result is
// substituted for Name in condition MetricXPath/TriggerValue fields.
type XPathVariable struct {
	Name  string
	XPath string
}

// XPathExpr returns the variable's XPath expression, kept as a method for
// readability at call sites that evaluate it rather than reference the
// variable by name.
func (v XPathVariable) XPathExpr() string {
	return v.XPath
}

// ApplicationMonitor describes how a rule is dispatched and what it runs.
type ApplicationMonitor struct {
	Type                 MonitorType
	PollPeriod           time.Duration
	MaxActionInvocations int
	Description          string
	QueryCommand         string
	AnalyzeCommand       string
	ActionCommand        string

	// Runtime counters. Held in memory only: the rulexml DTOs carry no
	// counter fields, so rule files written on add/enable/disable do not
	// include them and they start from zero when a rule is loaded.
	RuleInvocations                    int64
	QueryInvocationsSuccess            int64
	QueryInvocationsFailure            int64
	ActionInvocationsSuccess           int64
	ActionInvocationsFailure           int64
	LastSuccessfulActionInvocationTime *time.Time
}

// Rule is the engine's aggregate policy unit: identity, an
// ApplicationMonitor describing how it runs, and the XPath variables and
// conditions evaluated against application data.
type Rule struct {
	ApplicationName string
	Name            string
	Description     string
	Status          string

	Monitor        ApplicationMonitor
	XPathVariables []XPathVariable
	Conditions     []Condition
}

// RuleID returns the canonical "<applicationName>/<name>" composite key
// used to identify a rule process-wide.
func (r Rule) RuleID() string {
	return r.ApplicationName + "/" + r.Name
}

// Enabled reports whether the rule's status is exactly "enabled". Any
// other status (including administrator-disabled or free-form text) is
// treated as disabled.
func (r Rule) Enabled() bool {
	return r.Status == StatusEnabled
}

// Clone returns a deep copy of the rule so callers holding engine state
// cannot mutate it through the returned value.
func (r Rule) Clone() Rule {
	clone := r
	clone.XPathVariables = append([]XPathVariable(nil), r.XPathVariables...)
	clone.Conditions = append([]Condition(nil), r.Conditions...)
	if r.Monitor.LastSuccessfulActionInvocationTime != nil {
		t := *r.Monitor.LastSuccessfulActionInvocationTime
		clone.Monitor.LastSuccessfulActionInvocationTime = &t
	}
	return clone
}
