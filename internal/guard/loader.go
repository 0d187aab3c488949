package guard

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a rule set from a YAML pack. A missing file falls back to the
// compiled-in defaults; a malformed file is an error, never a silent default.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultRuleSet(), nil
		}
		return nil, err
	}

	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse rule set %s: %w", path, err)
	}

	if rs.Defaults.Verdict == "" {
		rs.Defaults.Verdict = VerdictAllow
	}
	if len(rs.Defaults.ShellTools) == 0 {
		rs.Defaults.ShellTools = defaultShellTools()
	}

	for i, rule := range rs.Rules {
		switch rule.Kind {
		case KindBlock, KindConfirm, KindRedact:
		default:
			return nil, fmt.Errorf("rule %q: unknown kind %q", rule.ID, rule.Kind)
		}
		if rule.Priority == 0 {
			return nil, fmt.Errorf("rule %q: priority is required", rule.ID)
		}
		if rule.ID == "" {
			return nil, fmt.Errorf("rule at index %d: id is required", i)
		}
	}

	for _, rl := range rs.RateLimits {
		if rl.Max <= 0 || rl.WindowSeconds <= 0 {
			return nil, fmt.Errorf("rate limit %q: max and window_seconds must be positive", rl.ID)
		}
	}

	return &rs, nil
}

func defaultShellTools() []string {
	return []string{"execute_shell", "run_shell", "run_command", "shell", "bash", "exec"}
}

// DefaultRuleSet is the compiled-in policy used when no pack is installed.
// Priorities group by band: 100s exact tool blocks, 200s wildcard confirms,
// 300s content rules, 900s redaction.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		Version: "0.1",
		Defaults: Defaults{
			Verdict:    VerdictAllow,
			ShellTools: defaultShellTools(),
		},
		Rules: []Rule{
			{
				ID:       "block-forbidden-tools",
				Kind:     KindBlock,
				Priority: 100,
				Match: Match{
					ToolExact: StringOrList{
						"delete_all_data", "drop_database", "transfer_funds",
						"disable_safety", "grant_admin",
					},
					Applies: []string{"tool_call"},
				},
				Reason: "Tool is on the blocklist and may not be invoked.",
			},
			{
				ID:       "confirm-destructive-tools",
				Kind:     KindConfirm,
				Priority: 200,
				Match: Match{
					ToolGlob: "delete_*",
					Applies:  []string{"tool_call"},
				},
				Reason: "Destructive tool calls require user confirmation.",
			},
			{
				ID:       "confirm-payment-tools",
				Kind:     KindConfirm,
				Priority: 210,
				Match: Match{
					ToolGlob: "pay_*",
					Applies:  []string{"tool_call"},
				},
				Reason: "Payment tool calls require user confirmation.",
			},
			{
				ID:       "block-bulk-destruction",
				Kind:     KindBlock,
				Priority: 300,
				Match: Match{
					ContentRegex: `(?i)\b(delete|remove|erase|wipe|destroy)\b.{0,20}\b(all|every|everything|entire)\b`,
				},
				Reason: "Bulk destructive request detected.",
			},
			{
				ID:       "block-instruction-override",
				Kind:     KindBlock,
				Priority: 310,
				Match: Match{
					ContentRegex: `(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|rules?)`,
					Applies:      []string{"input"},
				},
				Reason: "Instruction override phrasing detected.",
			},
			{
				ID:       "confirm-external-forward",
				Kind:     KindConfirm,
				Priority: 320,
				Match: Match{
					ContentRegex: `(?i)\bforward\b.{0,40}\bto\b.{0,40}@(?:[A-Za-z0-9\-]+\.)+[A-Za-z]{2,}`,
				},
				Reason: "Forwarding content to an external address requires confirmation.",
			},
			{
				ID:       "redact-contact-info",
				Kind:     KindRedact,
				Priority: 900,
				Classes:  []string{"email", "phone", "ssn", "card"},
				Reason:   "Contact info and personal identifiers are redacted.",
			},
			{
				ID:       "redact-credentials",
				Kind:     KindRedact,
				Priority: 910,
				Classes: []string{
					"aws-key", "aws-secret", "github-token", "api-key",
					"bearer", "password", "private-key", "url-auth",
				},
				Reason: "Credential material is redacted.",
			},
		},
		RateLimits: []RateLimit{
			{
				ID:            "limit-send-tools",
				ToolGlob:      "send_*",
				Max:           10,
				WindowSeconds: 60,
			},
		},
	}
}
