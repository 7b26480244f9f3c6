package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/UnivaCorporation/policyengine/internal/rulexml"
	"github.com/UnivaCorporation/policyengine/pkg/models"
)

// RuleStore persists one XML file per rule under
// <rulesRoot>/<applicationName>/<ruleName>.xml.
type RuleStore struct {
	rulesRoot string
	fs        FileSystem
}

// NewRuleStore creates a rule store backed by the real filesystem.
func NewRuleStore(rulesRoot string) *RuleStore {
	return NewRuleStoreWithFS(rulesRoot, &RealFileSystem{})
}

// NewRuleStoreWithFS creates a rule store with an injectable filesystem,
// used by tests to avoid touching real disk.
func NewRuleStoreWithFS(rulesRoot string, fs FileSystem) *RuleStore {
	return &RuleStore{rulesRoot: rulesRoot, fs: fs}
}

func (s *RuleStore) path(applicationName, ruleName string) string {
	return filepath.Join(s.rulesRoot, applicationName, ruleName+".xml")
}

// WriteRule serializes rule and writes it to its backing file, creating the
// application subdirectory if absent. The write is temp-file-then-rename so
// a concurrent reader observes either the old or the new content.
func (s *RuleStore) WriteRule(rule models.Rule) error {
	dir := filepath.Join(s.rulesRoot, rule.ApplicationName)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create application directory %s: %w", dir, err)
	}

	data, err := rulexml.Serialize(rule)
	if err != nil {
		return fmt.Errorf("failed to serialize rule %s: %w", rule.RuleID(), err)
	}

	finalPath := s.path(rule.ApplicationName, rule.Name)
	tmpPath := finalPath + ".tmp"
	if err := s.fs.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write rule %s: %w", rule.RuleID(), err)
	}
	if err := s.fs.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("failed to rename rule file for %s: %w", rule.RuleID(), err)
	}
	return nil
}

// DeleteRule removes a rule's backing file. A missing file is not an error.
func (s *RuleStore) DeleteRule(applicationName, ruleName string) error {
	if err := s.fs.Remove(s.path(applicationName, ruleName)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete rule file for %s/%s: %w", applicationName, ruleName, err)
	}
	return nil
}

// ScannedRule pairs a parsed rule with the file it came from, or the parse
// error if the file could not be parsed.
type ScannedRule struct {
	Path string
	Rule models.Rule
	Err  error
}

// Scan walks the rules root and parses every file beneath it. Files that
// fail to parse are reported via their ScannedRule.Err rather than
// aborting the scan, so one corrupt file never prevents the others from
// loading.
func (s *RuleStore) Scan() ([]ScannedRule, error) {
	var results []ScannedRule

	err := s.fs.Walk(s.rulesRoot, func(path string) error {
		if filepath.Ext(path) != ".xml" {
			return nil
		}

		data, err := s.fs.ReadFile(path)
		if err != nil {
			results = append(results, ScannedRule{Path: path, Err: err})
			return nil
		}

		rule, err := rulexml.ParseBytes(data)
		if err != nil {
			results = append(results, ScannedRule{Path: path, Err: err})
			return nil
		}

		results = append(results, ScannedRule{Path: path, Rule: rule})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan rules root %s: %w", s.rulesRoot, err)
	}

	return results, nil
}

