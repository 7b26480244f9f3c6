package actionrunner

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunQuerySuccess(t *testing.T) {
	r := New("", 5*time.Second)
	stdout, ok := r.RunQuery(context.Background(), "app", "rule", "echo '<m><v>42</v></m>'")
	if !ok {
		t.Fatal("expected query to succeed")
	}
	if !strings.Contains(stdout, "<v>42</v>") {
		t.Fatalf("unexpected stdout: %q", stdout)
	}
}

func TestRunQueryFailure(t *testing.T) {
	r := New("", 5*time.Second)
	_, ok := r.RunQuery(context.Background(), "app", "rule", "exit 1")
	if ok {
		t.Fatal("expected query failure for nonzero exit")
	}
}

func TestRunQueryEmptyCommandIsNoop(t *testing.T) {
	r := New("", 5*time.Second)
	stdout, ok := r.RunQuery(context.Background(), "app", "rule", "")
	if !ok || stdout != "" {
		t.Fatalf("expected no-op success for empty command, got stdout=%q ok=%v", stdout, ok)
	}
}

func TestRunActionSuccess(t *testing.T) {
	r := New("", 5*time.Second)
	if !r.RunAction(context.Background(), "app", "rule", "true") {
		t.Fatal("expected action to succeed")
	}
}

func TestRunActionFailure(t *testing.T) {
	r := New("", 5*time.Second)
	if r.RunAction(context.Background(), "app", "rule", "false") {
		t.Fatal("expected action failure for nonzero exit")
	}
}

func TestRunActionTimeout(t *testing.T) {
	r := New("", 10*time.Millisecond)
	if r.RunAction(context.Background(), "app", "rule", "sleep 1") {
		t.Fatal("expected action to fail when it exceeds the command timeout")
	}
}

func TestShellCommandSourcesSiteEnvironmentScript(t *testing.T) {
	r := New("/etc/policyengine/env.sh", 0)
	got := r.shellCommand("do-thing")
	want := "source /etc/policyengine/env.sh && do-thing"
	if got != want {
		t.Fatalf("shellCommand() = %q, want %q", got, want)
	}
}

func TestShellCommandWithoutSiteEnvironmentScript(t *testing.T) {
	r := New("", 0)
	if got := r.shellCommand("do-thing"); got != "do-thing" {
		t.Fatalf("shellCommand() = %q, want unmodified command", got)
	}
}
