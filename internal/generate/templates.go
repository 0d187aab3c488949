package generate

// Template is a static base for one (framework, provider) pair. An empty
// Framework marks the provider-level default used when no exact pair
// matches.
type Template struct {
	Framework       string            `json:"framework,omitempty" yaml:"framework,omitempty"`
	Provider        string            `json:"provider" yaml:"provider"`
	IntegrationCode string            `json:"integration_code" yaml:"integration_code"`
	ConfigPayload   string            `json:"config_payload" yaml:"config_payload"`
	DependencyDelta map[string]string `json:"dependency_delta" yaml:"dependency_delta"`
	Instructions    string            `json:"instructions" yaml:"instructions"`
}

func (t Template) toResult(provider string) *Result {
	delta := make(map[string]string, len(t.DependencyDelta))
	for k, v := range t.DependencyDelta {
		delta[k] = v
	}
	return &Result{
		ProviderID:      provider,
		IntegrationCode: t.IntegrationCode,
		ConfigPayload:   t.ConfigPayload,
		DependencyDelta: delta,
		Instructions:    t.Instructions,
	}
}

func builtinTemplates() []Template {
	return []Template{
		{
			Framework: "langchain",
			Provider:  "openguardrails",
			IntegrationCode: `from railguard_client import Guard

guard = Guard.from_config("railguard.yaml")

def guarded_invoke(chain, user_input):
    decision = guard.check_input(user_input)
    if decision.verdict == "block":
        raise PermissionError(decision.reason)
    output = chain.invoke(user_input)
    return guard.check_output(output).sanitized
`,
			ConfigPayload: `provider: openguardrails
checks: [input, output, tool_call]
rate_limit:
  send_tools: {max: 10, window_seconds: 60}
`,
			DependencyDelta: map[string]string{"openguardrails": ">=0.3.0"},
			Instructions:    "Wrap every chain.invoke call site with guarded_invoke and place railguard.yaml next to your entry point.",
		},
		{
			Provider: "openguardrails",
			IntegrationCode: `from railguard_client import Guard

guard = Guard.from_config("railguard.yaml")
`,
			ConfigPayload: `provider: openguardrails
checks: [input, output, tool_call]
`,
			DependencyDelta: map[string]string{"openguardrails": ">=0.3.0"},
			Instructions:    "Call guard.check_input, guard.check_output, and guard.check_tool_call at your request boundaries.",
		},
		{
			Framework: "langchain",
			Provider:  "nemo_guardrails",
			IntegrationCode: `from nemoguardrails import LLMRails, RailsConfig

config = RailsConfig.from_path("./guardrails")
rails = LLMRails(config)
`,
			ConfigPayload: `models:
  - type: main
    engine: openai
rails:
  input:
    flows: [self check input]
  output:
    flows: [self check output]
`,
			DependencyDelta: map[string]string{"nemoguardrails": ">=0.9.0"},
			Instructions:    "Route chain calls through rails.generate and keep the guardrails/ config directory under version control.",
		},
		{
			Provider: "nemo_guardrails",
			IntegrationCode: `from nemoguardrails import LLMRails, RailsConfig

config = RailsConfig.from_path("./guardrails")
rails = LLMRails(config)
`,
			ConfigPayload: `rails:
  input:
    flows: [self check input]
`,
			DependencyDelta: map[string]string{"nemoguardrails": ">=0.9.0"},
			Instructions:    "Route model calls through rails.generate.",
		},
		{
			Provider: "llama_guard",
			IntegrationCode: `from llama_guard import LlamaGuardClient

client = LlamaGuardClient(model="llama-guard-3")

def classify(text):
    return client.moderate(text)
`,
			ConfigPayload: `model: llama-guard-3
categories: [violence, privacy, self-harm]
`,
			DependencyDelta: map[string]string{"llama-guard": ">=1.0.0"},
			Instructions:    "Call classify on model inputs and outputs; treat any 'unsafe' category as a block.",
		},
		{
			Provider: "llama_firewall",
			IntegrationCode: `from llamafirewall import LlamaFirewall, Role

firewall = LlamaFirewall()

def screen(text, role=Role.USER):
    return firewall.scan(text, role)
`,
			ConfigPayload: `scanners:
  - prompt_guard
  - pii_detection
`,
			DependencyDelta: map[string]string{"llamafirewall": ">=1.0.0"},
			Instructions:    "Screen user input with Role.USER and model output with Role.ASSISTANT before use.",
		},
		{
			Provider: "guardrails_ai",
			IntegrationCode: `import guardrails as gd

guard = gd.Guard.from_rail("railguard.rail")
`,
			ConfigPayload: `<rail version="0.1">
  <output type="string" />
</rail>
`,
			DependencyDelta: map[string]string{"guardrails-ai": ">=0.5.0"},
			Instructions:    "Validate model outputs with guard before returning them to callers.",
		},
	}
}
