package redact

import (
	"regexp"
	"strings"
)

// Pattern is a named sensitive-data matcher. The guard runtime builds its
// redaction rules from this table; the audit logger applies it wholesale.
type Pattern struct {
	Name  string
	Regex *regexp.Regexp
}

// Patterns lists every sensitive-data class in detection order. Contact
// info and personal identifiers come first because they are the common case
// in model output; credential shapes follow.
var Patterns = []Pattern{
	{"email", regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)},
	{"phone", regexp.MustCompile(`\+?\d[\d \-]{8,14}\d`)},
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"card", regexp.MustCompile(`\b(?:\d[ \-]?){13,19}\b`)},

	// Cloud / VCS credentials
	{"aws-key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"aws-secret", regexp.MustCompile(`(?i)(aws_secret_access_key|aws_session_token)\s*[=:]\s*['"]?[A-Za-z0-9/+=]{20,}['"]?`)},
	{"github-token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36}`)},

	// Generic credential assignments
	{"api-key", regexp.MustCompile(`(?i)(api[_\-]?key|secret[_\-]?key|access[_\-]?token|auth[_\-]?token)\s*[=:]\s*['"]?[A-Za-z0-9_\-]{16,}['"]?`)},
	{"bearer", regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.]{20,}`)},
	{"password", regexp.MustCompile(`(?i)(password|passwd|pwd|secret)\s*[=:]\s*\S{8,}`)},
	{"private-key", regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY-----`)},
	{"url-auth", regexp.MustCompile(`https?://[^:/\s]+:[^@\s]+@`)},
}

const placeholder = "[REDACTED]"

// Redact replaces every sensitive-data match with a placeholder.
func Redact(input string) string {
	result := input
	for _, p := range Patterns {
		result = p.Regex.ReplaceAllString(result, placeholder)
	}
	return result
}

// Found returns the names of all pattern classes present in the input,
// without the matched text itself (safe to log).
func Found(input string) []string {
	var names []string
	for _, p := range Patterns {
		if p.Regex.MatchString(input) {
			names = append(names, p.Name)
		}
	}
	return names
}

// RedactArgs redacts each element of a tool-call argument list.
func RedactArgs(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		result[i] = Redact(arg)
	}
	return result
}

// RedactMap redacts string values of a tool-call argument map.
func RedactMap(args map[string]string) map[string]string {
	if args == nil {
		return nil
	}
	result := make(map[string]string, len(args))
	for k, v := range args {
		result[k] = Redact(v)
	}
	return result
}

// ContainsSensitive reports whether any pattern matches.
func ContainsSensitive(input string) bool {
	for _, p := range Patterns {
		if p.Regex.MatchString(input) {
			return true
		}
	}
	return false
}

// Placeholder returns the literal used in place of redacted content.
func Placeholder() string { return placeholder }

// Strip removes all placeholder markers, used by tests to assert that the
// remainder carries no sensitive substring.
func Strip(input string) string {
	return strings.ReplaceAll(input, placeholder, "")
}
