package cli

import (
	"testing"

	"github.com/gzhole/railguard/internal/recommend"
)

func TestChooseProvider(t *testing.T) {
	recs := []recommend.Recommendation{
		{Provider: "openguardrails", Score: 0.94, Rationale: []string{"excellent framework support"}},
		{Provider: "nemo_guardrails", Score: 0.91},
	}

	if got := chooseProvider(recs, ""); got.Provider != "openguardrails" {
		t.Errorf("default = %s, want top-ranked", got.Provider)
	}

	if got := chooseProvider(recs, "nemo_guardrails"); got.Score != 0.91 {
		t.Errorf("pinned ranked provider lost its score: %+v", got)
	}

	got := chooseProvider(recs, "custom_provider")
	if got.Provider != "custom_provider" || got.Score != 0 {
		t.Errorf("unranked pin = %+v", got)
	}
	if len(got.Rationale) != 1 || got.Rationale[0] != "provider pinned by flag" {
		t.Errorf("rationale = %v", got.Rationale)
	}
}
