package classify

import (
	"context"
	"regexp"
	"strings"
)

// HeuristicClassifier detects injection signals with compiled patterns. It
// is the fallback when no remote classifier is configured or reachable.
type HeuristicClassifier struct {
	rules []heuristicRule
}

type heuristicRule struct {
	signal Signal
	match  func(req Request) bool
}

// NewHeuristic creates a heuristic classifier with built-in detection rules.
func NewHeuristic() *HeuristicClassifier {
	c := &HeuristicClassifier{}
	c.rules = c.buildRules()
	return c
}

func (c *HeuristicClassifier) Name() string { return "heuristic" }

// Classify runs all rules against the request and returns matched signals.
func (c *HeuristicClassifier) Classify(_ context.Context, req Request) (Response, error) {
	var signals []Signal
	suggested := "ALLOW"

	for _, r := range c.rules {
		if r.match(req) {
			signals = append(signals, r.signal)
			suggested = mostRestrictive(suggested, severityVerdict(r.signal.Severity))
		}
	}

	var parts []string
	for _, s := range signals {
		parts = append(parts, s.Description)
	}

	return Response{
		Signals:     signals,
		Suggested:   suggested,
		Explanation: strings.Join(parts, "; "),
	}, nil
}

func (c *HeuristicClassifier) buildRules() []heuristicRule {
	return []heuristicRule{
		{
			signal: Signal{
				ID:          "instruction_override",
				Category:    "prompt-injection",
				Severity:    "high",
				Confidence:  0.85,
				Description: "Message contains instruction override language (e.g., 'ignore previous')",
			},
			match: func(req Request) bool {
				return matchesAnyPattern(req.Content, instructionOverridePatterns)
			},
		},
		{
			signal: Signal{
				ID:          "prompt_exfiltration",
				Category:    "prompt-injection",
				Severity:    "medium",
				Confidence:  0.75,
				Description: "Message attempts to reveal system prompt or instructions",
			},
			match: func(req Request) bool {
				return matchesAnyPattern(req.Content, promptExfilPatterns)
			},
		},
		{
			signal: Signal{
				ID:          "disable_guard",
				Category:    "security-bypass",
				Severity:    "critical",
				Confidence:  0.90,
				Description: "Message attempts to disable or bypass the guard",
			},
			match: func(req Request) bool {
				return matchesAnyPattern(req.Content, disableGuardPatterns)
			},
		},
		{
			signal: Signal{
				ID:          "indirect_injection",
				Category:    "prompt-injection",
				Severity:    "critical",
				Confidence:  0.80,
				Description: "Message contains embedded instructions targeting the agent (indirect injection)",
			},
			match: func(req Request) bool {
				return matchesAnyPattern(req.Content, indirectInjectionPatterns)
			},
		},
		{
			signal: Signal{
				ID:          "obfuscated_base64",
				Category:    "obfuscation",
				Severity:    "medium",
				Confidence:  0.70,
				Description: "Message contains a long base64-encoded payload",
			},
			match: func(req Request) bool {
				return base64PayloadPattern.MatchString(req.Content)
			},
		},
		{
			signal: Signal{
				ID:          "bulk_exfiltration",
				Category:    "data-exfiltration",
				Severity:    "high",
				Confidence:  0.80,
				Description: "Tool call forwards bulk data to an external destination",
			},
			match: func(req Request) bool {
				return req.Direction == "tool_call" && matchesBulkExfil(req.Content)
			},
		},
	}
}

var instructionOverridePatterns = compilePatterns([]string{
	`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|rules?)`,
	`(?i)disregard\s+(all\s+)?(previous|prior|your)\s+(previous\s+)?(instructions?|rules?|guidelines?)`,
	`(?i)forget\s+(all\s+)?(your|previous)\s+(instructions?|rules?)`,
	`(?i)override\s+(all\s+)?(safety|security)\s+(rules?|protocols?|guidelines?)`,
	`(?i)you\s+are\s+now\s+(free|unrestricted|unfiltered)`,
	`(?i)new\s+instructions?:\s+`,
	`(?i)system\s*:\s*(you\s+are|ignore|forget)`,
})

var promptExfilPatterns = compilePatterns([]string{
	`(?i)(show|reveal|display|print|output)\s+(me\s+)?(your|the)\s+(system\s+)?prompt`,
	`(?i)(what\s+are|tell\s+me)\s+(your|the)\s+(instructions?|rules?|guidelines?)`,
	`(?i)repeat\s+(your\s+)?(system\s+)?(prompt|instructions?)`,
})

var disableGuardPatterns = compilePatterns([]string{
	`(?i)(disable|turn\s+off|bypass|skip|ignore)\s+(railguard|the\s+guard|security|guardrails?|policy|policies)`,
	`(?i)(remove|delete|uninstall)\s+(railguard|the\s+guard|guardrails?)`,
	`(?i)RAILGUARD_DISABLE`,
})

var indirectInjectionPatterns = compilePatterns([]string{
	`(?i)SYSTEM:\s*(ignore|forget|override|you\s+are)`,
	`(?i)\[INST\]`,
	`(?i)<\|im_start\|>system`,
	`(?i)BEGIN\s+HIDDEN\s+INSTRUCTIONS?`,
	`(?i)IMPORTANT:\s*(ignore|disregard|override)`,
})

// base64PayloadPattern matches base64 strings >= 40 chars, likely encoded
// payloads rather than short values.
var base64PayloadPattern = regexp.MustCompile(`[A-Za-z0-9+/]{40,}={0,2}`)

func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

func matchesAnyPattern(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// matchesBulkExfil detects tool arguments that stage broad data for an
// external destination.
func matchesBulkExfil(content string) bool {
	lower := strings.ToLower(content)

	hasBulk := strings.Contains(lower, "all ") ||
		strings.Contains(lower, "entire") ||
		strings.Contains(lower, "every ") ||
		strings.Contains(lower, "* ") ||
		strings.Contains(lower, "export")

	hasExternal := strings.Contains(lower, "http://") ||
		strings.Contains(lower, "https://") ||
		strings.Contains(lower, "transfer.sh") ||
		strings.Contains(lower, "file.io") ||
		strings.Contains(lower, "webhook")

	return hasBulk && hasExternal
}
