package repair

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gzhole/railguard/internal/approval"
)

func alwaysApprove(approval.Prompt) approval.Result {
	return approval.Result{Approved: true, UserAction: "apply_once"}
}

func alwaysDeny(approval.Prompt) approval.Result {
	return approval.Result{Approved: false, UserAction: "skip"}
}

func TestRun_ResolvesMissingCredential(t *testing.T) {
	t.Setenv("RAILGUARD_TEST_KEY", "secret")

	loop := NewLoop(nil, WithAutoFix(true))
	outcomes, err := loop.Run(context.Background(), []Issue{{
		Kind:       KindMissingCredential,
		Detail:     "guard api key not configured",
		Remediable: true,
		Target:     "RAILGUARD_TEST_KEY",
	}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(outcomes) != 1 || !outcomes[0].Resolved {
		t.Fatalf("outcomes = %+v, want one resolved", outcomes)
	}
}

func TestRun_ExhaustsAfterMaxRounds(t *testing.T) {
	os.Unsetenv("RAILGUARD_ABSENT_KEY")

	loop := NewLoop(nil, WithAutoFix(true), WithMaxRounds(2))
	issue := Issue{
		Kind:       KindMissingCredential,
		Detail:     "guard api key not configured",
		Remediable: true,
		Target:     "RAILGUARD_ABSENT_KEY",
	}

	outcomes, err := loop.Run(context.Background(), []Issue{issue})
	var exhausted *Exhausted
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want *Exhausted", err)
	}
	if exhausted.Rounds != 2 || len(exhausted.Remaining) != 1 {
		t.Errorf("exhausted = %+v", exhausted)
	}
	// One attempt per round, never more.
	if len(outcomes) != 2 {
		t.Errorf("attempts = %d, want 2", len(outcomes))
	}
	for i, out := range outcomes {
		if out.Round != i+1 {
			t.Errorf("outcome %d round = %d", i, out.Round)
		}
	}
}

func TestRun_MalformedConfigRewritten(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "railguard.yaml")
	if err := os.WriteFile(path, []byte("{{{not yaml"), 0644); err != nil {
		t.Fatal(err)
	}

	loop := NewLoop(nil, WithAutoFix(true), WithConfigWriter("provider: openguardrails\n"))
	outcomes, err := loop.Run(context.Background(), []Issue{{
		Kind:       KindMalformedConfig,
		Detail:     "railguard.yaml does not parse",
		Remediable: true,
		Target:     path,
	}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !outcomes[0].Resolved {
		t.Fatalf("outcome = %+v", outcomes[0])
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "provider: openguardrails\n" {
		t.Errorf("config = %q", got)
	}
}

func TestRun_DeclinedRemediationStaysUnresolved(t *testing.T) {
	t.Setenv("RAILGUARD_TEST_KEY", "secret")

	loop := NewLoop(nil, WithMaxRounds(1))
	loop.approve = alwaysDeny

	outcomes, err := loop.Run(context.Background(), []Issue{{
		Kind:       KindMissingCredential,
		Detail:     "guard api key not configured",
		Remediable: true,
		Target:     "RAILGUARD_TEST_KEY",
	}})
	var exhausted *Exhausted
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want *Exhausted", err)
	}
	if outcomes[0].Resolved {
		t.Error("declined remediation reported as resolved")
	}
	if outcomes[0].Detail != "declined: skip" {
		t.Errorf("detail = %q", outcomes[0].Detail)
	}
}

func TestRun_ApprovedRemediationApplies(t *testing.T) {
	t.Setenv("RAILGUARD_TEST_KEY", "secret")

	loop := NewLoop(nil)
	loop.approve = alwaysApprove

	outcomes, err := loop.Run(context.Background(), []Issue{{
		Kind:       KindMissingCredential,
		Detail:     "guard api key not configured",
		Remediable: true,
		Target:     "RAILGUARD_TEST_KEY",
	}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !outcomes[0].Resolved {
		t.Errorf("outcome = %+v", outcomes[0])
	}
}

func TestRun_NonRemediableNeverFixed(t *testing.T) {
	loop := NewLoop(nil, WithAutoFix(true), WithMaxRounds(2))

	issue := Issue{Kind: "unknown_kind", Detail: "something odd", Remediable: false}
	outcomes, err := loop.Run(context.Background(), []Issue{issue})
	var exhausted *Exhausted
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want *Exhausted", err)
	}
	for _, out := range outcomes {
		if out.Detail != "no remediation available" {
			t.Errorf("detail = %q", out.Detail)
		}
	}
}

func TestRun_CustomRemediationAndRemaining(t *testing.T) {
	calls := 0
	loop := NewLoop(nil, WithAutoFix(true),
		WithRemediation("flaky", func(context.Context, Issue) (string, error) {
			calls++
			if calls < 2 {
				return "", fmt.Errorf("not yet")
			}
			return "fixed on second round", nil
		}))

	issues := []Issue{
		{Kind: "flaky", Detail: "transient", Remediable: true},
		{Kind: "unknown_kind", Detail: "permanent", Remediable: false},
	}
	outcomes, err := loop.Run(context.Background(), issues)
	var exhausted *Exhausted
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want *Exhausted", err)
	}

	rest := Remaining(issues, outcomes)
	if len(rest) != 1 || rest[0].Kind != "unknown_kind" {
		t.Errorf("remaining = %+v", rest)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop := NewLoop(nil, WithAutoFix(true))
	_, err := loop.Run(ctx, []Issue{{Kind: KindMissingCredential, Remediable: true, Target: "X"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
