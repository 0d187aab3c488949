package guard

type Verdict string

const (
	VerdictAllow   Verdict = "ALLOW"
	VerdictConfirm Verdict = "CONFIRM"
	VerdictBlock   Verdict = "BLOCK"
)

// Decision is the outcome of one runtime check. Sanitized carries the
// payload with redactions applied; it equals the input when nothing
// matched a redact rule.
type Decision struct {
	Verdict   Verdict
	Rule      string
	Reason    string
	Sanitized string
	// Found lists redacted pattern classes, by name only.
	Found []string
}

// Rule kinds. Kind and Priority together give every rule a place in one
// fixed total order; source order in the YAML file never matters.
const (
	KindBlock   = "block"
	KindConfirm = "confirm"
	KindRedact  = "redact"
)

type RuleSet struct {
	Version    string      `yaml:"version"`
	Defaults   Defaults    `yaml:"defaults"`
	Rules      []Rule      `yaml:"rules"`
	RateLimits []RateLimit `yaml:"rate_limits"`
}

type Defaults struct {
	Verdict Verdict `yaml:"verdict"`
	// ShellTools are tool names whose string arguments are parsed as
	// shell and structurally inspected.
	ShellTools []string `yaml:"shell_tools"`
}

type Rule struct {
	ID       string `yaml:"id"`
	Kind     string `yaml:"kind"`
	Priority int    `yaml:"priority"`
	Match    Match  `yaml:"match"`
	Reason   string `yaml:"reason"`
	// Classes limits a redact rule to specific pattern classes; empty
	// means all classes.
	Classes []string `yaml:"classes,omitempty"`
}

type Match struct {
	ToolExact    StringOrList `yaml:"tool_exact,omitempty"`
	ToolGlob     string       `yaml:"tool_glob,omitempty"`
	ContentRegex string       `yaml:"content_regex,omitempty"`
	// Applies names the checks the rule participates in: "input",
	// "output", "tool_call". Empty means all three.
	Applies []string `yaml:"applies,omitempty"`
}

// RateLimit caps invocations of matching tools inside a sliding window.
type RateLimit struct {
	ID            string `yaml:"id"`
	ToolGlob      string `yaml:"tool_glob"`
	Max           int    `yaml:"max"`
	WindowSeconds int    `yaml:"window_seconds"`
}

// StringOrList allows YAML fields to accept either a single string or a list.
type StringOrList []string

func (s *StringOrList) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		*s = []string{single}
		return nil
	}
	var list []string
	if err := unmarshal(&list); err != nil {
		return err
	}
	*s = list
	return nil
}
