// Package classify provides an optional analysis layer over the guard's
// deterministic rules. It detects prompt injection signals, obfuscated
// payloads, and exfiltration attempts that pattern rules alone miss.
//
// Two classifiers ship built-in:
//
//	HeuristicClassifier — local patterns, zero dependencies
//	HTTPClassifier      — remote scoring service with a hard timeout
//
// The guard runtime treats classifier output as escalation-only: a
// classifier can tighten a verdict, never loosen one.
package classify

import "context"

// Signal is a single indicator detected in a message.
type Signal struct {
	// ID is a short, unique identifier (e.g., "instruction_override").
	ID string

	// Category groups related signals (e.g., "prompt-injection", "obfuscation").
	Category string

	// Severity indicates impact: "critical", "high", "medium", "low".
	Severity string

	// Confidence is 0.0-1.0 how certain the classifier is about this signal.
	Confidence float64

	// Description is a human-readable explanation of why this signal fired.
	Description string
}

// Request is the input to a Classifier.
type Request struct {
	// Content is the message text being evaluated.
	Content string

	// Direction is "input", "output", or "tool_call".
	Direction string

	// Tool is set when Direction is "tool_call".
	Tool string
}

// Response is the output from a Classifier.
type Response struct {
	Signals []Signal

	// Suggested is the classifier's recommendation: "ALLOW", "CONFIRM", "BLOCK".
	Suggested string

	// Explanation summarizes all signals for the audit trail.
	Explanation string
}

// Classifier scores message content. Implementations must be safe for
// concurrent use.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, req Request) (Response, error)
}

// severityVerdict maps a signal's severity to a suggested verdict.
func severityVerdict(severity string) string {
	switch severity {
	case "critical", "high":
		return "BLOCK"
	default:
		return "CONFIRM"
	}
}

func mostRestrictive(a, b string) string {
	order := map[string]int{"ALLOW": 0, "CONFIRM": 1, "BLOCK": 2}
	if order[b] > order[a] {
		return b
	}
	return a
}
