package models

import "testing"

func TestRuleID(t *testing.T) {
	r := Rule{ApplicationName: "webserver", Name: "cpu-high"}
	if got := r.RuleID(); got != "webserver/cpu-high" {
		t.Errorf("expected webserver/cpu-high, got %s", got)
	}
}

func TestRuleEnabled(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"enabled", true},
		{"disabled", false},
		{"disabled by administrator", false},
		{"", false},
	}

	for _, tt := range tests {
		r := Rule{Status: tt.status}
		if got := r.Enabled(); got != tt.want {
			t.Errorf("status %q: expected Enabled()=%v, got %v", tt.status, tt.want, got)
		}
	}
}

func TestNormalizeMonitorType(t *testing.T) {
	tests := []struct {
		in   string
		want MonitorType
	}{
		{"poll", MonitorPoll},
		{"receive", MonitorReceive},
		{"event", MonitorEvent},
		{"bogus", MonitorEvent},
		{"", MonitorEvent},
	}

	for _, tt := range tests {
		if got := NormalizeMonitorType(tt.in); got != tt.want {
			t.Errorf("NormalizeMonitorType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConditionDescribe(t *testing.T) {
	c := Condition{MetricXPath: "/m/v", EvaluationOperator: ">", TriggerValue: "10"}
	if got := c.Describe(); got != "/m/v > 10" {
		t.Errorf("expected '/m/v > 10', got %q", got)
	}

	c.Description = "cpu too hot"
	if got := c.Describe(); got != "cpu too hot" {
		t.Errorf("expected explicit description to win, got %q", got)
	}
}

func TestRuleCloneIsIndependent(t *testing.T) {
	original := Rule{
		ApplicationName: "webserver",
		Name:            "cpu-high",
		XPathVariables:  []XPathVariable{{Name: "v", XPath: "/m/v"}},
		Conditions:      []Condition{{MetricXPath: "${v}", EvaluationOperator: ">", TriggerValue: "10"}},
	}

	clone := original.Clone()
	clone.XPathVariables[0].Name = "mutated"
	clone.Conditions[0].TriggerValue = "999"

	if original.XPathVariables[0].Name == "mutated" {
		t.Error("mutating clone's XPathVariables affected the original")
	}
	if original.Conditions[0].TriggerValue == "999" {
		t.Error("mutating clone's Conditions affected the original")
	}
}
