// Package repair drives the bounded remediation loop for issues found
// after a deployment. Each issue kind maps to exactly one remediation;
// the loop never retries an issue past the round budget.
package repair

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/gzhole/railguard/internal/approval"
)

// Issue kinds the loop knows how to remediate.
const (
	KindMissingCredential   = "missing_credential"
	KindUnreachableEndpoint = "unreachable_endpoint"
	KindMalformedConfig     = "malformed_config"
)

type Issue struct {
	Kind       string `json:"kind"`
	Detail     string `json:"detail"`
	Remediable bool   `json:"remediable"`

	// Target is the file or env var the remediation acts on.
	Target string `json:"target,omitempty"`
}

// Exhausted is returned when issues remain after the final round.
type Exhausted struct {
	Rounds    int
	Remaining []Issue
}

func (e *Exhausted) Error() string {
	return fmt.Sprintf("remediation exhausted after %d rounds, %d issues remain", e.Rounds, len(e.Remaining))
}

// Remediation attempts to fix one issue. A nil error means the issue
// is resolved; the returned detail is logged either way.
type Remediation func(ctx context.Context, issue Issue) (string, error)

type Outcome struct {
	Issue    Issue  `json:"issue"`
	Round    int    `json:"round"`
	Resolved bool   `json:"resolved"`
	Detail   string `json:"detail,omitempty"`
}

type Loop struct {
	maxRounds    int
	autoFix      bool
	log          *zap.Logger
	remediations map[string]Remediation

	// approve is swapped out in tests.
	approve func(approval.Prompt) approval.Result
}

type Option func(*Loop)

func WithMaxRounds(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxRounds = n
		}
	}
}

// WithAutoFix applies remediations without prompting.
func WithAutoFix(on bool) Option {
	return func(l *Loop) { l.autoFix = on }
}

func WithRemediation(kind string, r Remediation) Option {
	return func(l *Loop) { l.remediations[kind] = r }
}

func NewLoop(log *zap.Logger, opts ...Option) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Loop{
		maxRounds: 2,
		log:       log,
		approve:   approval.Ask,
		remediations: map[string]Remediation{
			KindMissingCredential:   fixMissingCredential,
			KindUnreachableEndpoint: fixUnreachableEndpoint,
			KindMalformedConfig:     nil, // requires a config writer, see WithConfigWriter
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithConfigWriter installs the malformed-config remediation, which
// rewrites the target file from the last known-good payload.
func WithConfigWriter(payload string) Option {
	return func(l *Loop) {
		l.remediations[KindMalformedConfig] = func(_ context.Context, issue Issue) (string, error) {
			if issue.Target == "" {
				return "", fmt.Errorf("no config path on issue")
			}
			if err := os.WriteFile(issue.Target, []byte(payload), 0644); err != nil {
				return "", err
			}
			return "rewrote " + issue.Target + " from last good generation", nil
		}
	}
}

// Run remediates issues sequentially, round by round, until all are
// resolved or the round budget runs out. Unresolved issues come back
// inside an *Exhausted error alongside the outcomes so far.
func (l *Loop) Run(ctx context.Context, issues []Issue) ([]Outcome, error) {
	var outcomes []Outcome
	pending := append([]Issue(nil), issues...)

	for round := 1; round <= l.maxRounds && len(pending) > 0; round++ {
		var next []Issue
		for _, issue := range pending {
			if err := ctx.Err(); err != nil {
				return outcomes, err
			}

			out := l.remediate(ctx, issue, round)
			outcomes = append(outcomes, out)
			if !out.Resolved {
				next = append(next, issue)
			}
		}
		pending = next
	}

	if len(pending) > 0 {
		return outcomes, &Exhausted{Rounds: l.maxRounds, Remaining: pending}
	}
	return outcomes, nil
}

func (l *Loop) remediate(ctx context.Context, issue Issue, round int) Outcome {
	out := Outcome{Issue: issue, Round: round}

	fix := l.remediations[issue.Kind]
	if !issue.Remediable || fix == nil {
		out.Detail = "no remediation available"
		l.log.Warn("issue not remediable",
			zap.String("kind", issue.Kind),
			zap.String("detail", issue.Detail))
		return out
	}

	if !l.autoFix {
		res := l.approve(approval.Prompt{
			Issue:       issue.Detail,
			Remediation: remediationLabel(issue.Kind),
			Targets:     targets(issue),
		})
		if !res.Approved {
			out.Detail = "declined: " + res.UserAction
			return out
		}
	}

	detail, err := fix(ctx, issue)
	out.Detail = detail
	if err != nil {
		out.Detail = err.Error()
		l.log.Warn("remediation failed",
			zap.String("kind", issue.Kind),
			zap.Int("round", round),
			zap.Error(err))
		return out
	}

	out.Resolved = true
	l.log.Info("issue remediated",
		zap.String("kind", issue.Kind),
		zap.Int("round", round))
	return out
}

func remediationLabel(kind string) string {
	switch kind {
	case KindMissingCredential:
		return "read the credential from the environment and wire it into the deployment"
	case KindUnreachableEndpoint:
		return "retry the endpoint once after a short backoff"
	case KindMalformedConfig:
		return "rewrite the config file from the last good generation"
	default:
		return kind
	}
}

func targets(issue Issue) []string {
	if issue.Target == "" {
		return nil
	}
	return []string{issue.Target}
}

// fixMissingCredential resolves when the named env var is now set. It
// never prompts for the secret itself.
func fixMissingCredential(_ context.Context, issue Issue) (string, error) {
	if issue.Target == "" {
		return "", fmt.Errorf("no credential name on issue")
	}
	if os.Getenv(issue.Target) == "" {
		return "", fmt.Errorf("%s is still unset", issue.Target)
	}
	return issue.Target + " found in environment", nil
}

// fixUnreachableEndpoint waits out transient startup lag and probes
// once more. One bounded retry, no loop.
func fixUnreachableEndpoint(ctx context.Context, issue Issue) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(2 * time.Second):
	}
	if issue.Target == "" {
		return "", fmt.Errorf("no endpoint on issue")
	}
	if err := probeEndpoint(ctx, issue.Target); err != nil {
		return "", fmt.Errorf("endpoint still unreachable: %w", err)
	}
	return "endpoint reachable after retry", nil
}

// Remaining returns the issues with no resolved outcome, sorted by kind
// for stable reporting.
func Remaining(issues []Issue, outcomes []Outcome) []Issue {
	resolved := map[string]bool{}
	for _, out := range outcomes {
		if out.Resolved {
			resolved[out.Issue.Kind+"|"+out.Issue.Detail] = true
		}
	}
	var rest []Issue
	for _, issue := range issues {
		if !resolved[issue.Kind+"|"+issue.Detail] {
			rest = append(rest, issue)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Kind < rest[j].Kind })
	return rest
}
