// Package actionrunner invokes a rule's queryCommand and actionCommand as
// subprocesses, sourcing a site environment script ahead of every command.
package actionrunner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/UnivaCorporation/policyengine/internal/observability"
)

// Runner executes query and action commands on behalf of rules. Commands
// are always run through a shell, prefixed by sourcing SiteEnvironmentScript,
// so site-specific environment variables (paths, credentials helpers) are
// available to them exactly as they would be from an interactive shell.
type Runner struct {
	SiteEnvironmentScript string
	CommandTimeout        time.Duration
}

// New creates a Runner. An empty siteEnvironmentScript disables the source
// prefix and runs commands as given.
func New(siteEnvironmentScript string, commandTimeout time.Duration) *Runner {
	return &Runner{SiteEnvironmentScript: siteEnvironmentScript, CommandTimeout: commandTimeout}
}

func (r *Runner) shellCommand(cmd string) string {
	if r.SiteEnvironmentScript == "" {
		return cmd
	}
	return fmt.Sprintf("source %s && %s", r.SiteEnvironmentScript, cmd)
}

func (r *Runner) run(ctx context.Context, cmd string) (stdout string, err error) {
	if r.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.CommandTimeout)
		defer cancel()
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	command := exec.CommandContext(ctx, "sh", "-c", r.shellCommand(cmd))
	command.Stdout = &stdoutBuf
	command.Stderr = &stderrBuf

	if err := command.Run(); err != nil {
		return stdoutBuf.String(), fmt.Errorf("command %q failed: %w (stderr: %s)", cmd, err, stderrBuf.String())
	}
	return stdoutBuf.String(), nil
}

// RunQuery runs a rule's queryCommand, returning its stdout. ok is false on
// any execution failure (nonzero exit, timeout, or launch failure).
func (r *Runner) RunQuery(ctx context.Context, applicationName, ruleName, cmd string) (stdout string, ok bool) {
	if cmd == "" {
		return "", true
	}

	ctx, span := observability.StartQueryInvocationSpan(ctx, applicationName, ruleName, cmd)
	defer span.End()

	start := time.Now()
	stdout, err := r.run(ctx, cmd)
	duration := time.Since(start)

	observability.RecordQueryInvocationResult(span, applicationName, ruleName, err, duration)
	if err != nil {
		observability.QueryCommandFailuresTotal.WithLabelValues(applicationName, ruleName).Inc()
		observability.Warn(ctx, "queryCommand failed for %s/%s: %v", applicationName, ruleName, err)
		return stdout, false
	}
	return stdout, true
}

// RunAction runs a rule's actionCommand. ok is false on any execution
// failure.
func (r *Runner) RunAction(ctx context.Context, applicationName, ruleName, cmd string) bool {
	if cmd == "" {
		return true
	}

	ctx, span := observability.StartActionInvocationSpan(ctx, applicationName, ruleName, cmd)
	defer span.End()

	start := time.Now()
	_, err := r.run(ctx, cmd)
	duration := time.Since(start)

	observability.RecordActionInvocationResult(span, applicationName, ruleName, err, duration)
	if err != nil {
		observability.Warn(ctx, "actionCommand failed for %s/%s: %v", applicationName, ruleName, err)
		return false
	}
	return true
}
