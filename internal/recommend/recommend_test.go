package recommend

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gzhole/railguard/internal/scan"
)

func langchainProfile() *scan.Profile {
	return &scan.Profile{
		Root:        "/tmp/project",
		Name:        "project",
		Framework:   "langchain",
		LLMProvider: "openai",
	}
}

func TestRank_NeverEmptyAndOrdered(t *testing.T) {
	recs := Rank(langchainProfile(), DefaultMatrix())
	if len(recs) == 0 {
		t.Fatal("recommendations must never be empty")
	}
	if !sort.SliceIsSorted(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score }) {
		t.Errorf("recommendations not ordered by score descending: %v", recs)
	}
}

func TestRank_Deterministic(t *testing.T) {
	a := Rank(langchainProfile(), DefaultMatrix())
	b := Rank(langchainProfile(), DefaultMatrix())
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("repeated ranking differs (-first +second):\n%s", diff)
	}
}

func TestRank_LangchainTopProvider(t *testing.T) {
	recs := Rank(langchainProfile(), DefaultMatrix())

	// openguardrails wins on feature coverage despite nemo's stronger
	// framework fit: 0.9*.45+0.95*.35+1.0*.2 vs 0.95*.45+0.95*.35+0.75*.2
	if recs[0].Provider != "openguardrails" {
		t.Errorf("top provider = %q, want openguardrails (scores: %v)", recs[0].Provider, recs)
	}
}

func TestRank_LocalLLMPrefersLlamaFamily(t *testing.T) {
	profile := &scan.Profile{Framework: "llamaindex", LLMProvider: "local"}
	recs := Rank(profile, DefaultMatrix())

	if recs[0].Provider != "llama_firewall" {
		t.Errorf("top provider = %q, want llama_firewall", recs[0].Provider)
	}
}

func TestRank_UnknownFrameworkUsesFallback(t *testing.T) {
	profile := &scan.Profile{Framework: scan.Unknown, LLMProvider: scan.Unknown}
	recs := Rank(profile, DefaultMatrix())

	if len(recs) != 5 {
		t.Fatalf("expected 5 recommendations, got %d", len(recs))
	}
	for _, r := range recs {
		if r.Score <= 0 {
			t.Errorf("provider %s scored %f; fallback must keep scores positive", r.Provider, r.Score)
		}
		foundWarning := false
		for _, w := range r.Warnings {
			if w == "framework unknown; score uses the fallback baseline" {
				foundWarning = true
			}
		}
		if !foundWarning {
			t.Errorf("provider %s missing unknown-framework warning", r.Provider)
		}
	}
}

func TestRank_TieBrokenByPriorityTable(t *testing.T) {
	m := &Matrix{
		Weights:  Weights{Framework: 0.45, LLM: 0.35, Feature: 0.20},
		Priority: []string{"alpha", "beta"},
		Providers: map[string]ProviderCompat{
			"alpha": {FeatureCoverage: 0.5},
			"beta":  {FeatureCoverage: 0.5},
		},
	}
	profile := &scan.Profile{Framework: scan.Unknown, LLMProvider: scan.Unknown}

	for i := 0; i < 10; i++ {
		recs := Rank(profile, m)
		if recs[0].Provider != "alpha" {
			t.Fatalf("tie must resolve to the earlier priority entry, got %q", recs[0].Provider)
		}
	}
}

func TestRank_RationaleForStrongFit(t *testing.T) {
	recs := Rank(langchainProfile(), DefaultMatrix())

	var nemo *Recommendation
	for i := range recs {
		if recs[i].Provider == "nemo_guardrails" {
			nemo = &recs[i]
		}
	}
	if nemo == nil {
		t.Fatal("nemo_guardrails missing from recommendations")
	}
	if len(nemo.Rationale) == 0 {
		t.Errorf("expected rationale for nemo_guardrails on langchain+openai, got none")
	}
}

func TestLoadMatrix_MissingFileUsesDefault(t *testing.T) {
	m, err := LoadMatrix(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing matrix should fall back to default: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("default matrix invalid: %v", err)
	}
}

func TestLoadMatrix_RejectsBadWeights(t *testing.T) {
	content := `
weights: {framework: 0.9, llm: 0.9, feature: 0.9}
priority: [p1]
providers:
  p1: {feature_coverage: 0.5}
`
	path := filepath.Join(t.TempDir(), "matrix.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadMatrix(path); err == nil {
		t.Fatal("expected error for weights not summing to 1.0")
	}
}

func TestMatrixValidate_UnknownPriorityProvider(t *testing.T) {
	m := &Matrix{
		Weights:   Weights{Framework: 0.45, LLM: 0.35, Feature: 0.20},
		Priority:  []string{"ghost"},
		Providers: map[string]ProviderCompat{},
	}
	if err := m.Validate(); err == nil {
		t.Fatal("expected error for priority entry without provider data")
	}
}
