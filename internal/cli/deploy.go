package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gzhole/railguard/internal/config"
	"github.com/gzhole/railguard/internal/deploy"
	"github.com/gzhole/railguard/internal/logger"
	"github.com/gzhole/railguard/internal/plan"
	"github.com/gzhole/railguard/internal/recommend"
	"github.com/gzhole/railguard/internal/repair"
	"github.com/gzhole/railguard/internal/scan"
	"github.com/gzhole/railguard/internal/validate"
)

var (
	deployProvider   string
	deployDryRun     bool
	deployNoBackup   bool
	deployValidate   bool
	deployNoValidate bool
	deployAutoFix    bool
	deployNoAutoFix  bool
	deployNoInstall  bool
	deployStateOut   string
	deployEndpoint   string
	deployAPIKey     string
)

var deployCmd = &cobra.Command{
	Use:   "deploy [project-root]",
	Short: "Deploy guardrail artifacts into the project",
	Long: `Run the full pipeline: scan, recommend, generate, then write the
artifacts behind a backup. With --validate (the default) the deployed
guard is probed afterwards and failed checks feed the bounded repair
loop.

  railguard deploy ./my-agent --dry-run
  railguard deploy ./my-agent --state-out run.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: deployCommand,
}

func init() {
	deployCmd.Flags().StringVar(&deployProvider, "provider", "", "Guardrail provider id (default: top recommendation)")
	deployCmd.Flags().BoolVar(&deployDryRun, "dry-run", false, "Report pending changes without writing anything")
	deployCmd.Flags().BoolVar(&deployNoBackup, "no-backup", false, "Skip backup creation (rollback becomes impossible)")
	deployCmd.Flags().BoolVar(&deployValidate, "validate", true, "Validate the deployment afterwards")
	deployCmd.Flags().BoolVar(&deployNoValidate, "no-validate", false, "Skip post-deploy validation")
	deployCmd.Flags().BoolVar(&deployAutoFix, "auto-fix", false, "Apply remediations without prompting")
	deployCmd.Flags().BoolVar(&deployNoAutoFix, "no-auto-fix", false, "Always prompt before applying remediations")
	deployCmd.Flags().BoolVar(&deployNoInstall, "no-install", false, "Skip dependency installation")
	deployCmd.Flags().StringVar(&deployStateOut, "state-out", "", "Write the deployment state JSON to this path")
	deployCmd.Flags().StringVar(&deployEndpoint, "endpoint", "", "Deployed guard endpoint for validation")
	deployCmd.Flags().StringVar(&deployAPIKey, "api-key", "", "API key for the functional validation probe (default: $RAILGUARD_API_KEY)")
	rootCmd.AddCommand(deployCmd)
}

func deployCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.NewOperational(verbose)
	defer log.Sync()
	audit := openAudit(cfg)
	if audit != nil {
		defer audit.Close()
	}

	root, err := projectRoot(args)
	if err != nil {
		return err
	}

	doValidate := deployValidate && !deployNoValidate
	autoFix := (deployAutoFix || cfg.Repair.AutoFix) && !deployNoAutoFix

	state := plan.NewState(root)
	ctx := cmd.Context()

	// Scan
	profile, err := scan.Scan(root)
	if err != nil {
		auditStage(audit, state.RunID, "scan", "failed", err.Error())
		return reportFailure(fmt.Errorf("scan failed: %w", err))
	}
	state.Profile = profile
	auditStage(audit, state.RunID, "scan", "done", profile.Framework+"/"+profile.LLMProvider)

	// Recommend
	matrix, err := recommend.LoadMatrix(cfg.MatrixPath)
	if err != nil {
		return fmt.Errorf("failed to load compatibility matrix: %w", err)
	}
	recs := recommend.Rank(profile, matrix)
	chosen := chooseProvider(recs, deployProvider)
	state.Decision = &chosen
	auditStage(audit, state.RunID, "recommend", "done", chosen.Provider)

	// Generate
	res, err := newGenerator(cfg, "").Generate(ctx, profile, chosen.Provider)
	if err != nil {
		auditStage(audit, state.RunID, "generate", "failed", err.Error())
		return reportFailure(fmt.Errorf("generation failed: %w", err))
	}
	auditStage(audit, state.RunID, "generate", "done", chosen.Provider)

	p, err := plan.Build(res, plan.BuildOptions{
		ProjectRoot: root,
		NoBackup:    deployNoBackup,
		Validate:    doValidate && deployEndpoint != "",
		Install:     !deployNoInstall && !deployDryRun,
	})
	if err != nil {
		return err
	}
	state.Plan = p

	// Deploy
	installer := deploy.PackageManager(deploy.PipInstaller{})
	if deployNoInstall {
		installer = deploy.NoopInstaller{}
	}
	record, err := deploy.Deploy(ctx, root, res, deploy.Options{
		DryRun:    deployDryRun,
		NoBackup:  deployNoBackup,
		Installer: installer,
	})
	if record != nil {
		state.Execution = executionFromRecord(p, record)
	}
	if err != nil {
		auditStage(audit, state.RunID, "deploy", "failed", err.Error())
		saveState(state)
		return reportFailure(err)
	}
	auditStage(audit, state.RunID, "deploy", "done", record.BackupID)

	if deployDryRun {
		printDryRun(record)
		saveState(state)
		return nil
	}
	state.Artifacts = []string{deploy.ManifestFile, deploy.IntegrationFile, deploy.ConfigFile}
	fmt.Printf("✅ Deployed %s artifacts (backup %s)\n", chosen.Provider, record.BackupID)

	// Validate + repair
	if doValidate && deployEndpoint != "" {
		if err := validateAndRepair(ctx, cfg, state, audit, root, deployEndpoint, apiKeyOrEnv(deployAPIKey), autoFix); err != nil {
			saveState(state)
			return reportFailure(err)
		}
	} else if doValidate {
		fmt.Println("ℹ  No --endpoint given; post-deploy validation skipped.")
	}

	saveState(state)

	if state.Unresolved() {
		return fmt.Errorf("deployment finished with unresolved issues")
	}
	return nil
}

// validateAndRepair is the shared validate → repair → revalidate pass
// used by both the deploy command and the plan executor's validate
// step. Unresolved issues land on the state.
func validateAndRepair(ctx context.Context, cfg *config.Config, state *plan.DeploymentState, audit *logger.AuditLogger, root, endpoint, apiKey string, autoFix bool) error {
	report, err := validate.Run(ctx, validate.Options{Endpoint: endpoint, APIKey: apiKey})
	if err != nil {
		return err
	}
	printReport(report)

	issues := issuesFromReport(report, root)
	if len(issues) == 0 {
		auditStage(audit, state.RunID, "validate", "done", "")
		return nil
	}
	auditStage(audit, state.RunID, "validate", "failed", fmt.Sprintf("%d issues", len(issues)))

	loop := repair.NewLoop(logger.NewOperational(verbose),
		repair.WithMaxRounds(cfg.Repair.MaxRounds),
		repair.WithAutoFix(autoFix),
		repair.WithConfigWriter(lastConfigPayload(root)))
	outcomes, repairErr := loop.Run(ctx, issues)
	state.Issues = repair.Remaining(issues, outcomes)

	if repairErr != nil {
		auditStage(audit, state.RunID, "repair", "failed", repairErr.Error())
		return repairErr
	}

	// Issues resolved; confirm with one more validation pass. A
	// credential remediation lands in the environment, so re-resolve
	// the key before probing again.
	report, err = validate.Run(ctx, validate.Options{Endpoint: endpoint, APIKey: apiKeyOrEnv(apiKey)})
	if err != nil {
		return err
	}
	printReport(report)
	state.Issues = issuesFromReport(report, root)
	auditStage(audit, state.RunID, "repair", "done", "")
	if len(state.Issues) > 0 {
		return report.Err()
	}
	return nil
}

// issuesFromReport turns check results into remediable issues. A
// skipped functional probe means the credential is missing, which the
// repair loop can resolve from the environment.
func issuesFromReport(report *validate.Report, root string) []repair.Issue {
	var issues []repair.Issue
	for _, res := range report.Results {
		switch {
		case res.Status == validate.StatusFailed && (res.CheckName == "liveness" || res.CheckName == "health"):
			issues = append(issues, repair.Issue{
				Kind:       repair.KindUnreachableEndpoint,
				Detail:     res.Detail,
				Remediable: true,
				Target:     deployEndpoint,
			})
		case res.Status == validate.StatusFailed && res.CheckName == "functional":
			issues = append(issues, repair.Issue{
				Kind:       repair.KindMalformedConfig,
				Detail:     res.Detail,
				Remediable: true,
				Target:     filepath.Join(root, deploy.ConfigFile),
			})
		case res.Status == validate.StatusSkipped && res.CheckName == "functional":
			issues = append(issues, repair.Issue{
				Kind:       repair.KindMissingCredential,
				Detail:     res.Detail,
				Remediable: true,
				Target:     "RAILGUARD_API_KEY",
			})
		}
	}
	return issues
}

func lastConfigPayload(root string) string {
	// The config artifact was just written from the accepted
	// generation result; re-reading it gives the last good payload.
	data, err := os.ReadFile(filepath.Join(root, deploy.ConfigFile))
	if err != nil {
		return ""
	}
	return string(data)
}

func executionFromRecord(p *plan.Plan, record *deploy.Record) *plan.Execution {
	exec := &plan.Execution{}
	for _, step := range record.Steps {
		state := plan.StateDone
		switch step.Status {
		case deploy.StatusFailed:
			state = plan.StateFailed
			exec.Halted = true
		case deploy.StatusSkipped:
			state = plan.StatePending
		}
		exec.Results = append(exec.Results, plan.StepResult{
			StepID: step.Name,
			Action: step.Name,
			State:  state,
			Detail: step.Detail,
			Error:  step.Error,
		})
	}
	return exec
}

func printDryRun(record *deploy.Record) {
	fmt.Println("─── Dry run — pending changes ─────────────────────────")
	if len(record.Diffs) == 0 {
		fmt.Println("  (no changes)")
		return
	}
	for _, path := range []string{deploy.ManifestFile, deploy.IntegrationFile, deploy.ConfigFile} {
		if diff, ok := record.Diffs[path]; ok {
			fmt.Printf("  %s:\n%s\n", path, diff)
		}
	}
	fmt.Println("No files were modified.")
}

func printReport(report *validate.Report) {
	fmt.Println("─── Validation ────────────────────────────────────────")
	for _, res := range report.Results {
		icon := "✅"
		switch res.Status {
		case validate.StatusFailed:
			icon = "❌"
		case validate.StatusSkipped:
			icon = "⏭"
		}
		fmt.Printf("  %s %-12s %s %s\n", icon, res.CheckName, res.Status, res.Detail)
	}
	fmt.Println()
}

func saveState(state *plan.DeploymentState) {
	if deployStateOut == "" {
		return
	}
	if err := state.Save(deployStateOut); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write deployment state: %v\n", err)
		return
	}
	fmt.Printf("Deployment state written to %s\n", deployStateOut)
}
