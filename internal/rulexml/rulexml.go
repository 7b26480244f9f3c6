// Package rulexml parses and serializes the rule definition XML schema
// described in the rule engine's external interface: a <rule> root element
// with an embedded <applicationMonitor>, zero or more <xPathVariable>
// elements, and zero or more <condition> elements.
package rulexml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/UnivaCorporation/policyengine/pkg/models"
)

// defaultStatus is used when a rule document omits the optional <status>
// element.
const defaultStatus = models.StatusEnabled

type xmlCondition struct {
	MetricXPath        string `xml:"metricXPath,attr"`
	EvaluationOperator string `xml:"evaluationOperator,attr"`
	TriggerValue       string `xml:"triggerValue,attr"`
	Description        string `xml:"description,omitempty"`
}

type xmlXPathVariable struct {
	Name  string `xml:"name,attr"`
	XPath string `xml:"xPath,attr"`
}

type xmlApplicationMonitor struct {
	Type                 string `xml:"type,attr"`
	PollPeriod           string `xml:"pollPeriod,attr,omitempty"`
	MaxActionInvocations string `xml:"maxActionInvocations,attr,omitempty"`
	Description          string `xml:"description,omitempty"`
	QueryCommand         string `xml:"queryCommand,omitempty"`
	AnalyzeCommand       string `xml:"analyzeCommand,omitempty"`
	ActionCommand        string `xml:"actionCommand"`
}

type xmlRule struct {
	XMLName         xml.Name               `xml:"rule"`
	Name            string                 `xml:"name,attr"`
	ApplicationName string                 `xml:"applicationName,attr"`
	Description     string                 `xml:"description,omitempty"`
	Status          string                 `xml:"status,omitempty"`
	Monitor         xmlApplicationMonitor  `xml:"applicationMonitor"`
	XPathVariables  []xmlXPathVariable     `xml:"xPathVariable"`
	Conditions      []xmlCondition         `xml:"condition"`
}

// Parse decodes a rule XML document into a Rule aggregate.
func Parse(r io.Reader) (models.Rule, error) {
	var doc xmlRule
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return models.Rule{}, fmt.Errorf("invalid rule XML: %w", err)
	}

	if doc.Name == "" {
		return models.Rule{}, fmt.Errorf("invalid rule XML: missing required attribute \"name\"")
	}
	if doc.ApplicationName == "" {
		return models.Rule{}, fmt.Errorf("invalid rule XML: missing required attribute \"applicationName\"")
	}
	if doc.Monitor.ActionCommand == "" {
		return models.Rule{}, fmt.Errorf("invalid rule XML: missing required element \"actionCommand\"")
	}

	status := doc.Status
	if status == "" {
		status = defaultStatus
	}

	var pollPeriod time.Duration
	if doc.Monitor.PollPeriod != "" {
		seconds, err := strconv.Atoi(doc.Monitor.PollPeriod)
		if err != nil {
			return models.Rule{}, fmt.Errorf("invalid rule XML: pollPeriod %q is not an integer", doc.Monitor.PollPeriod)
		}
		pollPeriod = time.Duration(seconds) * time.Second
	}

	var maxActionInvocations int
	if doc.Monitor.MaxActionInvocations != "" {
		n, err := strconv.Atoi(doc.Monitor.MaxActionInvocations)
		if err != nil {
			return models.Rule{}, fmt.Errorf("invalid rule XML: maxActionInvocations %q is not an integer", doc.Monitor.MaxActionInvocations)
		}
		maxActionInvocations = n
	}

	rule := models.Rule{
		ApplicationName: doc.ApplicationName,
		Name:            doc.Name,
		Description:     doc.Description,
		Status:          status,
		Monitor: models.ApplicationMonitor{
			Type:                 models.NormalizeMonitorType(doc.Monitor.Type),
			PollPeriod:           pollPeriod,
			MaxActionInvocations: maxActionInvocations,
			Description:          doc.Monitor.Description,
			QueryCommand:         doc.Monitor.QueryCommand,
			AnalyzeCommand:       doc.Monitor.AnalyzeCommand,
			ActionCommand:        doc.Monitor.ActionCommand,
		},
	}

	for _, v := range doc.XPathVariables {
		rule.XPathVariables = append(rule.XPathVariables, models.XPathVariable{Name: v.Name, XPath: v.XPath})
	}
	for _, c := range doc.Conditions {
		rule.Conditions = append(rule.Conditions, models.Condition{
			MetricXPath:        c.MetricXPath,
			EvaluationOperator: c.EvaluationOperator,
			TriggerValue:       c.TriggerValue,
			Description:        c.Description,
		})
	}

	return rule, nil
}

// ParseBytes is a convenience wrapper around Parse for in-memory documents.
func ParseBytes(data []byte) (models.Rule, error) {
	return Parse(bytes.NewReader(data))
}

// Serialize encodes a Rule aggregate back into its XML document form.
func Serialize(rule models.Rule) ([]byte, error) {
	doc := xmlRule{
		Name:            rule.Name,
		ApplicationName: rule.ApplicationName,
		Description:     rule.Description,
		Status:          rule.Status,
		Monitor: xmlApplicationMonitor{
			Type:          string(rule.Monitor.Type),
			Description:   rule.Monitor.Description,
			QueryCommand:  rule.Monitor.QueryCommand,
			AnalyzeCommand: rule.Monitor.AnalyzeCommand,
			ActionCommand: rule.Monitor.ActionCommand,
		},
	}

	if rule.Monitor.PollPeriod > 0 {
		doc.Monitor.PollPeriod = strconv.Itoa(int(rule.Monitor.PollPeriod / time.Second))
	}
	if rule.Monitor.MaxActionInvocations > 0 {
		doc.Monitor.MaxActionInvocations = strconv.Itoa(rule.Monitor.MaxActionInvocations)
	}

	for _, v := range rule.XPathVariables {
		doc.XPathVariables = append(doc.XPathVariables, xmlXPathVariable{Name: v.Name, XPath: v.XPath})
	}
	for _, c := range rule.Conditions {
		doc.Conditions = append(doc.Conditions, xmlCondition{
			MetricXPath:        c.MetricXPath,
			EvaluationOperator: c.EvaluationOperator,
			TriggerValue:       c.TriggerValue,
			Description:        c.Description,
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to serialize rule: %w", err)
	}
	return buf.Bytes(), nil
}
