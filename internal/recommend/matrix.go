package recommend

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadMatrix reads a compatibility matrix from YAML. A missing file falls
// back to the compiled-in default; a malformed or invalid file is an error.
func LoadMatrix(path string) (*Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultMatrix(), nil
		}
		return nil, err
	}

	var m Matrix
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse matrix %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("matrix %s: %w", path, err)
	}
	return &m, nil
}

// DefaultMatrix carries the built-in provider compatibility data.
func DefaultMatrix() *Matrix {
	return &Matrix{
		Weights: Weights{Framework: 0.45, LLM: 0.35, Feature: 0.20},
		Priority: []string{
			"openguardrails", "nemo_guardrails", "llama_guard",
			"llama_firewall", "guardrails_ai",
		},
		Providers: map[string]ProviderCompat{
			"openguardrails": {
				Frameworks: map[string]float64{
					"langchain": 0.9, "llamaindex": 0.85, "haystack": 0.7,
					"autogen": 0.8, "crewai": 0.75,
				},
				LLMs: map[string]float64{
					"openai": 0.95, "anthropic": 0.9, "vertexai": 0.8,
					"azure": 0.85, "bedrock": 0.75, "local": 0.7,
				},
				FeatureCoverage: 1.0,
			},
			"nemo_guardrails": {
				Frameworks: map[string]float64{
					"langchain": 0.95, "llamaindex": 0.7, "haystack": 0.5,
					"autogen": 0.6, "crewai": 0.55,
				},
				LLMs: map[string]float64{
					"openai": 0.95, "anthropic": 0.8, "vertexai": 0.7,
					"azure": 0.85, "bedrock": 0.65, "local": 0.6,
				},
				FeatureCoverage: 0.75,
			},
			"llama_guard": {
				Frameworks: map[string]float64{
					"langchain": 0.8, "llamaindex": 0.9, "haystack": 0.65,
					"autogen": 0.7, "crewai": 0.65,
				},
				LLMs: map[string]float64{
					"openai": 0.7, "anthropic": 0.65, "vertexai": 0.75,
					"azure": 0.7, "bedrock": 0.6, "local": 0.95,
				},
				FeatureCoverage: 0.375,
			},
			"llama_firewall": {
				Frameworks: map[string]float64{
					"langchain": 0.85, "llamaindex": 0.95, "haystack": 0.6,
					"autogen": 0.75, "crewai": 0.7,
				},
				LLMs: map[string]float64{
					"openai": 0.75, "anthropic": 0.7, "vertexai": 0.75,
					"azure": 0.7, "bedrock": 0.65, "local": 0.95,
				},
				FeatureCoverage: 0.875,
			},
			"guardrails_ai": {
				Frameworks: map[string]float64{
					"langchain": 0.85, "llamaindex": 0.8, "haystack": 0.75,
					"autogen": 0.7, "crewai": 0.65,
				},
				LLMs: map[string]float64{
					"openai": 0.9, "anthropic": 0.85, "vertexai": 0.8,
					"azure": 0.85, "bedrock": 0.75, "local": 0.7,
				},
				FeatureCoverage: 0.375,
			},
		},
	}
}
