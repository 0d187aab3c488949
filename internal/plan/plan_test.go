package plan

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gzhole/railguard/internal/generate"
)

func planResult() *generate.Result {
	return &generate.Result{
		ProviderID:      "openguardrails",
		IntegrationCode: "from railguard import guard\n",
		ConfigPayload:   "provider: openguardrails\n",
		DependencyDelta: map[string]string{"openguardrails": ">=0.2.0"},
	}
}

func TestBuild_FullPlanOrder(t *testing.T) {
	p, err := Build(planResult(), BuildOptions{
		ProjectRoot: "/proj",
		Validate:    true,
		Install:     true,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	var actions []string
	for _, s := range p.Steps {
		actions = append(actions, s.Action)
	}
	want := []string{ActionBackup, ActionMergeDeps, ActionWriteFile, ActionWriteFile, ActionInstallDeps, ActionValidate}
	if diff := cmp.Diff(want, actions); diff != "" {
		t.Errorf("plan order:\n%s", diff)
	}

	if p.Steps[0].ID != "step-01" || p.Steps[5].ID != "step-06" {
		t.Errorf("step ids = %s .. %s", p.Steps[0].ID, p.Steps[5].ID)
	}
	if !p.Steps[1].Critical {
		t.Error("manifest merge must be critical")
	}
	if p.Steps[4].Critical {
		t.Error("dependency install must not be critical")
	}
}

func TestBuild_Deterministic(t *testing.T) {
	opts := BuildOptions{ProjectRoot: "/proj", Validate: true, Install: true}
	a, err := Build(planResult(), opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Build(planResult(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("plans differ:\n%s", diff)
	}
}

func TestBuild_NoBackupDropsBackupStep(t *testing.T) {
	p, err := Build(planResult(), BuildOptions{ProjectRoot: "/proj", NoBackup: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range p.Steps {
		if s.Action == ActionBackup {
			t.Fatal("backup step present despite NoBackup")
		}
	}
	if p.Steps[0].ID != "step-01" {
		t.Errorf("ids not renumbered: %s", p.Steps[0].ID)
	}
}

func TestBuild_RequiresGeneration(t *testing.T) {
	if _, err := Build(nil, BuildOptions{}); err == nil {
		t.Fatal("expected error for nil result")
	}
}

func TestBuild_BlackboxOnlyWritesGateway(t *testing.T) {
	p, err := Build(planResult(), BuildOptions{
		ProjectRoot: "/proj",
		Mode:        ModeBlackbox,
		Validate:    true,
	})
	if err != nil {
		t.Fatal(err)
	}
	var actions []string
	for _, s := range p.Steps {
		actions = append(actions, s.Action)
		if s.Action == ActionMergeDeps || s.Action == ActionInstallDeps {
			t.Errorf("blackbox plan touches target dependencies: %s", s.Action)
		}
	}
	want := []string{ActionBackup, ActionWriteFile, ActionValidate}
	if diff := cmp.Diff(want, actions); diff != "" {
		t.Errorf("plan order:\n%s", diff)
	}
	if p.Steps[1].ExpectedArtifact != GatewayFile {
		t.Errorf("artifact = %s, want %s", p.Steps[1].ExpectedArtifact, GatewayFile)
	}
}

func TestBuild_RejectsUnknownMode(t *testing.T) {
	if _, err := Build(planResult(), BuildOptions{Mode: "graybox"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func okHandler(detail string) Handler {
	return func(context.Context, Step) (string, error) { return detail, nil }
}

func failHandler(msg string) Handler {
	return func(context.Context, Step) (string, error) { return "", errors.New(msg) }
}

func testHandlers() map[string]Handler {
	return map[string]Handler{
		ActionBackup:      okHandler("backup ok"),
		ActionMergeDeps:   okHandler("merged"),
		ActionWriteFile:   okHandler("written"),
		ActionInstallDeps: okHandler("installed"),
		ActionValidate:    okHandler("validated"),
	}
}

func TestExecutor_AllStepsDone(t *testing.T) {
	p, _ := Build(planResult(), BuildOptions{ProjectRoot: "/proj", Validate: true, Install: true})

	exec, err := NewExecutor(nil, testHandlers(), nil).Run(context.Background(), p)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if exec.Halted {
		t.Error("halted on clean run")
	}
	for _, res := range exec.Results {
		if res.State != StateDone {
			t.Errorf("%s = %s, want done", res.StepID, res.State)
		}
		if res.FinishedAt.Before(res.StartedAt) {
			t.Errorf("%s finished before it started", res.StepID)
		}
	}
}

func TestExecutor_CriticalFailureHaltsAndRollsBack(t *testing.T) {
	p, _ := Build(planResult(), BuildOptions{ProjectRoot: "/proj", Validate: true, Install: true})

	handlers := testHandlers()
	handlers[ActionWriteFile] = failHandler("disk full")

	rolledBack := false
	exec, err := NewExecutor(nil, handlers, func(context.Context) error {
		rolledBack = true
		return nil
	}).Run(context.Background(), p)

	if err == nil {
		t.Fatal("expected error from critical failure")
	}
	if !exec.Halted {
		t.Error("run not halted")
	}
	if !rolledBack {
		t.Error("rollback not invoked")
	}

	// backup and merge completed before the failure and were undone.
	for _, res := range exec.Results[:2] {
		if res.State != StateRolledBack {
			t.Errorf("%s = %s, want rolled_back", res.StepID, res.State)
		}
	}
	if exec.Results[2].State != StateFailed {
		t.Errorf("failing step = %s, want failed", exec.Results[2].State)
	}
	// Steps after the failure were never started.
	for _, res := range exec.Results[3:] {
		if res.State != StatePending {
			t.Errorf("%s = %s, want pending", res.StepID, res.State)
		}
	}
}

func TestExecutor_NonCriticalFailureContinues(t *testing.T) {
	p, _ := Build(planResult(), BuildOptions{ProjectRoot: "/proj", Validate: true, Install: true})

	handlers := testHandlers()
	handlers[ActionInstallDeps] = failHandler("pip broke")

	exec, err := NewExecutor(nil, handlers, nil).Run(context.Background(), p)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if exec.Halted {
		t.Error("halted on non-critical failure")
	}
	var sawFailed, sawValidate bool
	for _, res := range exec.Results {
		if res.Action == ActionInstallDeps && res.State == StateFailed {
			sawFailed = true
		}
		if res.Action == ActionValidate && res.State == StateDone {
			sawValidate = true
		}
	}
	if !sawFailed || !sawValidate {
		t.Errorf("results = %+v", exec.Results)
	}
}

func TestState_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	s := NewState("/proj")
	if s.RunID == "" {
		t.Fatal("empty run id")
	}
	p, _ := Build(planResult(), BuildOptions{ProjectRoot: "/proj"})
	s.Plan = p
	s.Artifacts = []string{"railguard_integration.py", "railguard.yaml"}

	if err := s.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadState(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.RunID != s.RunID {
		t.Errorf("run id = %s, want %s", loaded.RunID, s.RunID)
	}
	if diff := cmp.Diff(s.Plan, loaded.Plan); diff != "" {
		t.Errorf("plan round trip:\n%s", diff)
	}
	if loaded.Unresolved() {
		t.Error("clean state reported unresolved")
	}
}

func TestState_AlwaysCarriesTopLevelKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	// Minimal state: nothing ran, nothing decided.
	if err := NewState("/proj").Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"decision", "plan", "execution", "issues", "artifacts"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("persisted state missing key %q", key)
		}
	}
}

func TestState_UnresolvedOnHaltOrIssues(t *testing.T) {
	s := NewState("/proj")
	s.Execution = &Execution{Halted: true}
	if !s.Unresolved() {
		t.Error("halted execution not reported unresolved")
	}
}
