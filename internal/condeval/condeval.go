// Package condeval evaluates a rule's conditions against a parsed XML
// document, producing the substitution map and the boolean trigger verdict
// described by the rule-engine's condition evaluation contract.
package condeval

import (
	"context"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/UnivaCorporation/policyengine/internal/observability"
	"github.com/UnivaCorporation/policyengine/pkg/models"
)

// Result is the outcome of evaluating one rule's conditions.
type Result struct {
	Triggered     bool
	Substitutions map[string]string
}

// Evaluate runs the full condition-evaluation algorithm for a single rule:
// building the XPath-variable substitution map, then walking conditions in
// declaration order with AND short-circuit.
//
// doc may be nil when the query command produced no output; in that case
// no trigger is possible and Evaluate returns an untriggered Result with an
// empty substitution map, without inspecting conditions at all.
func Evaluate(ctx context.Context, applicationName, ruleName string, doc *xmlquery.Node, variables []models.XPathVariable, conditions []models.Condition) (result Result) {
	result.Substitutions = map[string]string{}

	defer func() {
		if r := recover(); r != nil {
			observability.Error(ctx, "condition evaluation panicked for %s/%s: %v", applicationName, ruleName, r)
			result.Triggered = false
		}
	}()

	if doc == nil {
		return result
	}

	result.Substitutions = buildSubstitutions(ctx, applicationName, ruleName, doc, variables)
	result.Triggered = evaluateConditions(ctx, applicationName, ruleName, doc, result.Substitutions, conditions)
	return result
}

func buildSubstitutions(ctx context.Context, applicationName, ruleName string, doc *xmlquery.Node, variables []models.XPathVariable) map[string]string {
	substitutions := make(map[string]string, len(variables))
	for _, v := range variables {
		value, err := evaluateXPathText(doc, v.XPathExpr())
		if err != nil {
			observability.Warn(ctx, "xPathVariable %q failed for %s/%s: %v", v.Name, applicationName, ruleName, err)
			value = ""
		}
		substitutions[v.Name] = value
	}
	return substitutions
}

func evaluateConditions(ctx context.Context, applicationName, ruleName string, doc *xmlquery.Node, substitutions map[string]string, conditions []models.Condition) bool {
	for _, cond := range conditions {
		metric, substituted := substitute(cond.MetricXPath, substitutions)
		if !substituted {
			value, err := evaluateXPathText(doc, cond.MetricXPath)
			if err != nil {
				observability.Warn(ctx, "condition metricXPath %q failed for %s/%s: %v", cond.MetricXPath, applicationName, ruleName, err)
				return false
			}
			metric = value
		}

		if metric == "" || metric == "nan" {
			return false
		}

		triggerValue, _ := substitute(cond.TriggerValue, substitutions)

		op, ok := ParseOperator(cond.EvaluationOperator)
		if !ok {
			observability.Warn(ctx, "unrecognized evaluationOperator %q for %s/%s", cond.EvaluationOperator, applicationName, ruleName)
			return false
		}

		matched, ok := op.EvaluateNumeric(metric, triggerValue)
		if !ok {
			matched = op.EvaluateString(metric, triggerValue)
		}

		if !matched {
			return false
		}
	}
	return true
}

// substitute replaces every ${name} token in s with its bound value.
// substituted reports whether any replacement actually happened, which
// callers use to decide whether s was a substitution template at all or a
// literal XPath expression to evaluate directly.
func substitute(s string, substitutions map[string]string) (result string, substituted bool) {
	result = s
	for name, value := range substitutions {
		token := "${" + name + "}"
		if strings.Contains(result, token) {
			result = strings.ReplaceAll(result, token, value)
			substituted = true
		}
	}
	return result, substituted
}

func evaluateXPathText(doc *xmlquery.Node, expr string) (string, error) {
	nodes, err := xmlquery.QueryAll(doc, expr)
	if err != nil {
		return "", fmt.Errorf("invalid xpath expression %q: %w", expr, err)
	}
	if len(nodes) == 0 {
		return "", nil
	}
	return nodes[0].InnerText(), nil
}
