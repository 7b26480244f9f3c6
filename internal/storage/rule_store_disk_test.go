package storage

import (
	"testing"
	"time"

	"github.com/UnivaCorporation/policyengine/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRule() models.Rule {
	return models.Rule{
		ApplicationName: "webserver",
		Name:            "cpu-high",
		Description:     "alert on sustained high cpu",
		Status:          "enabled",
		Monitor: models.ApplicationMonitor{
			Type:                 models.MonitorPoll,
			PollPeriod:           30 * time.Second,
			MaxActionInvocations: 3,
			QueryCommand:         "/usr/bin/cpu-query.sh",
			ActionCommand:        "/usr/bin/cpu-alert.sh",
		},
		XPathVariables: []models.XPathVariable{{Name: "v", XPath: "/metrics/cpu/value"}},
		Conditions: []models.Condition{
			{MetricXPath: "${v}", EvaluationOperator: ">", TriggerValue: "90"},
		},
	}
}

func TestRuleStoreWriteThenScan(t *testing.T) {
	fs := NewMockFileSystem()
	store := NewRuleStoreWithFS("/rules", fs)

	rule := sampleRule()
	require.NoError(t, store.WriteRule(rule))
	assert.True(t, fs.FileExists("/rules/webserver/cpu-high.xml"), "expected rule file to exist after WriteRule")

	results, err := store.Scan()
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	got := results[0].Rule
	assert.Equal(t, rule.ApplicationName, got.ApplicationName)
	assert.Equal(t, rule.Name, got.Name)
	assert.Equal(t, rule.Monitor.PollPeriod, got.Monitor.PollPeriod)
}

func TestRuleStoreDeleteRemovesFile(t *testing.T) {
	fs := NewMockFileSystem()
	store := NewRuleStoreWithFS("/rules", fs)

	rule := sampleRule()
	require.NoError(t, store.WriteRule(rule))
	require.NoError(t, store.DeleteRule(rule.ApplicationName, rule.Name))

	assert.False(t, fs.FileExists("/rules/webserver/cpu-high.xml"), "expected rule file to be removed")
}

func TestRuleStoreDeleteMissingFileIsNotAnError(t *testing.T) {
	fs := NewMockFileSystem()
	store := NewRuleStoreWithFS("/rules", fs)

	assert.NoError(t, store.DeleteRule("webserver", "never-existed"))
}

func TestRuleStoreScanSkipsMalformedFiles(t *testing.T) {
	fs := NewMockFileSystem()
	store := NewRuleStoreWithFS("/rules", fs)

	require.NoError(t, store.WriteRule(sampleRule()))
	require.NoError(t, fs.WriteFile("/rules/webserver/broken.xml", []byte("<rule not even close"), 0644))

	results, err := store.Scan()
	require.NoError(t, err)
	require.Len(t, results, 2)

	var goodCount, badCount int
	for _, r := range results {
		if r.Err != nil {
			badCount++
		} else {
			goodCount++
		}
	}
	assert.Equal(t, 1, goodCount)
	assert.Equal(t, 1, badCount)
}

func TestRuleStoreScanEmptyRootReturnsEmpty(t *testing.T) {
	fs := NewMockFileSystem()
	store := NewRuleStoreWithFS("/rules", fs)

	results, err := store.Scan()
	require.NoError(t, err)
	assert.Empty(t, results)
}
