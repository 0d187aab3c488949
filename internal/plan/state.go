package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/gzhole/railguard/internal/recommend"
	"github.com/gzhole/railguard/internal/repair"
	"github.com/gzhole/railguard/internal/scan"
)

// DeploymentState is the persisted record of one run. Key names are
// load-bearing: downstream tooling parses this file.
type DeploymentState struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Project   string    `json:"project"`

	// The five keys below are stable: consumers parse this document,
	// so they are always present, null or empty included.
	Profile   *scan.Profile             `json:"profile"`
	Decision  *recommend.Recommendation `json:"decision"`
	Plan      *Plan                     `json:"plan"`
	Execution *Execution                `json:"execution"`
	Issues    []repair.Issue            `json:"issues"`
	Artifacts []string                  `json:"artifacts"`
}

func NewState(project string) *DeploymentState {
	return &DeploymentState{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Project:   project,
	}
}

// Unresolved reports whether the run left issues behind or halted
// before the plan completed.
func (s *DeploymentState) Unresolved() bool {
	if len(s.Issues) > 0 {
		return true
	}
	return s.Execution != nil && s.Execution.Halted
}

func (s *DeploymentState) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode deployment state: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func LoadState(path string) (*DeploymentState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s DeploymentState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode deployment state %s: %w", path, err)
	}
	return &s, nil
}
