// Package recommend ranks guardrail providers against a project profile.
// Ranking is a pure function over the profile and a compatibility matrix;
// identical inputs always produce identical ordering.
package recommend

import (
	"fmt"
	"sort"

	"github.com/gzhole/railguard/internal/scan"
)

// fallbackScore applies when a provider's table has no entry for the
// profile's framework or LLM. A list of recommendations is never empty.
const fallbackScore = 0.3

// Recommendation is one ranked provider.
type Recommendation struct {
	Provider  string   `json:"provider" yaml:"provider"`
	Score     float64  `json:"score" yaml:"score"`
	Rationale []string `json:"rationale,omitempty" yaml:"rationale,omitempty"`
	Warnings  []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Matrix is the static compatibility data the ranker consumes.
type Matrix struct {
	Weights Weights `yaml:"weights"`

	// Priority is the fixed tiebreak order; it also fixes iteration
	// order so ranking never depends on map traversal.
	Priority []string `yaml:"priority"`

	Providers map[string]ProviderCompat `yaml:"providers"`
}

type Weights struct {
	Framework float64 `yaml:"framework"`
	LLM       float64 `yaml:"llm"`
	Feature   float64 `yaml:"feature"`
}

type ProviderCompat struct {
	Frameworks map[string]float64 `yaml:"frameworks"`
	LLMs       map[string]float64 `yaml:"llms"`

	// FeatureCoverage is the share of guard capabilities the provider
	// implements (input, output, tool call, redaction, rate limit, audit).
	FeatureCoverage float64 `yaml:"feature_coverage"`
}

// Validate checks a matrix is usable for ranking.
func (m *Matrix) Validate() error {
	sum := m.Weights.Framework + m.Weights.LLM + m.Weights.Feature
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("weights must sum to 1.0, got %.2f", sum)
	}
	if len(m.Priority) == 0 {
		return fmt.Errorf("priority table is empty")
	}
	for _, p := range m.Priority {
		if _, ok := m.Providers[p]; !ok {
			return fmt.Errorf("priority lists unknown provider %q", p)
		}
	}
	return nil
}

// Rank scores every provider in the matrix against the profile and returns
// them ordered by score descending, ties broken by the priority table.
func Rank(profile *scan.Profile, matrix *Matrix) []Recommendation {
	recs := make([]Recommendation, 0, len(matrix.Priority))

	for _, name := range matrix.Priority {
		compat := matrix.Providers[name]
		rec := Recommendation{Provider: name}

		fw, ok := compat.Frameworks[profile.Framework]
		if !ok {
			fw = fallbackScore
		}
		llm, ok := compat.LLMs[profile.LLMProvider]
		if !ok {
			llm = fallbackScore
		}

		rec.Score = fw*matrix.Weights.Framework +
			llm*matrix.Weights.LLM +
			compat.FeatureCoverage*matrix.Weights.Feature

		if fw >= 0.9 {
			rec.Rationale = append(rec.Rationale,
				fmt.Sprintf("first-class support for the %s framework", profile.Framework))
		} else if fw < 0.5 {
			rec.Warnings = append(rec.Warnings,
				fmt.Sprintf("limited compatibility with the %s framework", profile.Framework))
		}
		if llm >= 0.9 {
			rec.Rationale = append(rec.Rationale,
				fmt.Sprintf("well-integrated with %s", profile.LLMProvider))
		}
		if profile.Framework == scan.Unknown {
			rec.Warnings = append(rec.Warnings, "framework unknown; score uses the fallback baseline")
		}
		for _, existing := range profile.ExistingGuardrails {
			if existing == name {
				rec.Rationale = append(rec.Rationale, "already present in the project")
			}
		}

		recs = append(recs, rec)
	}

	prio := make(map[string]int, len(matrix.Priority))
	for i, p := range matrix.Priority {
		prio[p] = i
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return prio[recs[i].Provider] < prio[recs[j].Provider]
	})

	return recs
}
