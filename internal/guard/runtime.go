package guard

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gzhole/railguard/internal/classify"
	"github.com/gzhole/railguard/internal/redact"
	"github.com/gzhole/railguard/internal/unicode"
)

// Runtime is the policy engine installed into the target application's
// request path. It is constructed once per deployment and passed to every
// interception call site; there is no package-level state.
//
// Checks are synchronous and short. The only network call is the optional
// classifier, which runs under its own timeout and falls back to local
// patterns when unreachable.
type Runtime struct {
	defaults Defaults
	rules    []compiledRule
	limits   *limiter

	classifier      classify.Classifier
	classifyTimeout time.Duration
	fallback        classify.Classifier

	shellTools map[string]bool
}

type compiledRule struct {
	Rule
	toolExact map[string]bool
	content   *regexp.Regexp
	applies   map[string]bool
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithClassifier attaches a remote classifier. Each call runs under the
// given timeout; on error the local heuristic classifier answers instead.
func WithClassifier(c classify.Classifier, timeout time.Duration) Option {
	return func(r *Runtime) {
		r.classifier = c
		if timeout > 0 {
			r.classifyTimeout = timeout
		}
	}
}

// NewRuntime compiles a rule set into a runtime. Rules are sorted once by
// priority (ties by ID) so evaluation order never depends on source order.
func NewRuntime(rs *RuleSet, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		defaults:        rs.Defaults,
		limits:          newLimiter(rs.RateLimits),
		classifyTimeout: 3 * time.Second,
		fallback:        classify.NewHeuristic(),
		shellTools:      make(map[string]bool),
	}

	for _, t := range rs.Defaults.ShellTools {
		r.shellTools[t] = true
	}

	for _, rule := range rs.Rules {
		cr := compiledRule{Rule: rule}

		if len(rule.Match.ToolExact) > 0 {
			cr.toolExact = make(map[string]bool, len(rule.Match.ToolExact))
			for _, t := range rule.Match.ToolExact {
				cr.toolExact[t] = true
			}
		}

		if rule.Match.ContentRegex != "" {
			re, err := regexp.Compile(rule.Match.ContentRegex)
			if err != nil {
				return nil, fmt.Errorf("rule %q: compile content_regex: %w", rule.ID, err)
			}
			cr.content = re
		}

		if len(rule.Match.Applies) > 0 {
			cr.applies = make(map[string]bool, len(rule.Match.Applies))
			for _, scope := range rule.Match.Applies {
				cr.applies[scope] = true
			}
		}

		r.rules = append(r.rules, cr)
	}

	sort.SliceStable(r.rules, func(i, j int) bool {
		if r.rules[i].Priority != r.rules[j].Priority {
			return r.rules[i].Priority < r.rules[j].Priority
		}
		return r.rules[i].ID < r.rules[j].ID
	})

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// CheckInput evaluates user-facing input text.
func (r *Runtime) CheckInput(ctx context.Context, text string) Decision {
	// Smuggling pre-scan runs before any rule so hidden characters can
	// never mask a matching phrase.
	scan := unicode.Scan(text)
	if !scan.Clean {
		verdict := VerdictConfirm
		if scan.HasBlocking() {
			verdict = VerdictBlock
		}
		cats := scan.Categories()
		return Decision{
			Verdict:   verdict,
			Rule:      "unicode-" + cats[0],
			Reason:    scan.Findings[0].Description,
			Sanitized: scan.Sanitized,
		}
	}

	if d, ok := r.matchContent("input", text); ok {
		return d
	}

	if d, ok := r.classifyEscalation(ctx, "input", "", text); ok {
		return d
	}

	return r.redactPass("input", text)
}

// CheckOutput evaluates model output before it reaches the user.
func (r *Runtime) CheckOutput(ctx context.Context, text string) Decision {
	if d, ok := r.matchContent("output", text); ok {
		return d
	}

	if d, ok := r.classifyEscalation(ctx, "output", "", text); ok {
		return d
	}

	return r.redactPass("output", text)
}

// CheckToolCall evaluates a tool invocation. The sliding-window rate limit
// counts every checked call for the tool, independent of pattern matching.
func (r *Runtime) CheckToolCall(ctx context.Context, name string, args map[string]string) Decision {
	exceeded, limit := false, RateLimit{}
	if rl, over := r.limits.record(name); over {
		exceeded, limit = true, rl
	}

	argText := flattenArgs(args)

	// Shell-executing tools get a structural pass over their arguments.
	if r.shellTools[name] {
		for _, v := range args {
			if findings := inspectShellArg(v); len(findings) > 0 {
				return Decision{
					Verdict:   VerdictBlock,
					Rule:      "shell-" + findings[0].Check,
					Reason:    findings[0].Reason,
					Sanitized: redact.Redact(argText),
				}
			}
		}
	}

	if d, ok := r.matchToolCall(name, argText); ok {
		if d.Verdict == VerdictBlock {
			return d
		}
		if exceeded {
			return rateLimitDecision(name, limit, argText)
		}
		return d
	}

	if exceeded {
		return rateLimitDecision(name, limit, argText)
	}

	if d, ok := r.classifyEscalation(ctx, "tool_call", name, argText); ok {
		return d
	}

	return r.redactPass("tool_call", argText)
}

// matchContent evaluates content rules for the given scope; first match in
// priority order wins.
func (r *Runtime) matchContent(scope, text string) (Decision, bool) {
	for _, rule := range r.rules {
		if rule.Kind == KindRedact || !rule.appliesTo(scope) {
			continue
		}
		if rule.content == nil || !rule.content.MatchString(text) {
			continue
		}
		return Decision{
			Verdict:   ruleVerdict(rule.Kind),
			Rule:      rule.ID,
			Reason:    rule.Reason,
			Sanitized: redact.Redact(text),
		}, true
	}
	return Decision{}, false
}

// matchToolCall evaluates exact tool names, tool globs, and content rules
// against a tool invocation, in one priority order.
func (r *Runtime) matchToolCall(name, argText string) (Decision, bool) {
	for _, rule := range r.rules {
		if rule.Kind == KindRedact || !rule.appliesTo("tool_call") {
			continue
		}

		matched := false
		switch {
		case rule.toolExact != nil:
			matched = rule.toolExact[name]
		case rule.Match.ToolGlob != "":
			matched, _ = path.Match(rule.Match.ToolGlob, name)
		case rule.content != nil:
			matched = rule.content.MatchString(argText) || rule.content.MatchString(name)
		}

		if matched {
			return Decision{
				Verdict:   ruleVerdict(rule.Kind),
				Rule:      rule.ID,
				Reason:    rule.Reason,
				Sanitized: redact.Redact(argText),
			}, true
		}
	}
	return Decision{}, false
}

// classifyEscalation runs the optional classifier. It can only tighten the
// verdict; errors and timeouts degrade to the local heuristic classifier.
func (r *Runtime) classifyEscalation(ctx context.Context, direction, tool, text string) (Decision, bool) {
	c := r.classifier
	if c == nil {
		c = r.fallback
	}

	cctx, cancel := context.WithTimeout(ctx, r.classifyTimeout)
	defer cancel()

	req := classify.Request{Content: text, Direction: direction, Tool: tool}
	resp, err := c.Classify(cctx, req)
	if err != nil && c != r.fallback {
		resp, err = r.fallback.Classify(ctx, req)
	}
	if err != nil || resp.Suggested == string(VerdictAllow) {
		return Decision{}, false
	}

	rule := "classifier"
	if len(resp.Signals) > 0 {
		rule = "classifier-" + resp.Signals[0].ID
	}
	return Decision{
		Verdict:   Verdict(resp.Suggested),
		Rule:      rule,
		Reason:    resp.Explanation,
		Sanitized: redact.Redact(text),
	}, true
}

// redactPass applies redact rules in priority order and returns allow.
func (r *Runtime) redactPass(scope, text string) Decision {
	sanitized := text
	var found []string

	for _, rule := range r.rules {
		if rule.Kind != KindRedact || !rule.appliesTo(scope) {
			continue
		}
		for _, p := range redact.Patterns {
			if len(rule.Classes) > 0 && !contains(rule.Classes, p.Name) {
				continue
			}
			if p.Regex.MatchString(sanitized) {
				sanitized = p.Regex.ReplaceAllString(sanitized, redact.Placeholder())
				found = append(found, p.Name)
			}
		}
	}

	return Decision{
		Verdict:   r.defaults.Verdict,
		Sanitized: sanitized,
		Found:     found,
	}
}

func (cr compiledRule) appliesTo(scope string) bool {
	return cr.applies == nil || cr.applies[scope]
}

func ruleVerdict(kind string) Verdict {
	if kind == KindBlock {
		return VerdictBlock
	}
	return VerdictConfirm
}

func rateLimitDecision(tool string, rl RateLimit, argText string) Decision {
	return Decision{
		Verdict:   VerdictBlock,
		Rule:      rl.ID,
		Reason:    fmt.Sprintf("Tool %q exceeded %d calls in %ds", tool, rl.Max, rl.WindowSeconds),
		Sanitized: redact.Redact(argText),
	}
}

// flattenArgs serializes tool arguments deterministically for matching.
func flattenArgs(args map[string]string) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(args[k])
	}
	return b.String()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
