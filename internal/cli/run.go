package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gzhole/railguard/internal/config"
	"github.com/gzhole/railguard/internal/deploy"
	"github.com/gzhole/railguard/internal/logger"
	"github.com/gzhole/railguard/internal/plan"
	"github.com/gzhole/railguard/internal/recommend"
	"github.com/gzhole/railguard/internal/scan"
)

var (
	runProvider  string
	runMode      string
	runPlanOnly  bool
	runNoBackup  bool
	runNoInstall bool
	runAutoFix   bool
	runNoAutoFix bool
	runStateOut  string
	runEndpoint  string
	runAPIKey    string
)

var runCmd = &cobra.Command{
	Use:   "run [project-root]",
	Short: "Execute the full pipeline through the plan executor",
	Long: `Scan, recommend, generate, then execute the materialized plan step
by step, recording every state transition. A failed critical step halts
the run and rolls the completed steps back. With --plan-only the plan
is persisted and nothing executes.

  railguard run ./my-agent --state-out run.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCommand,
}

func init() {
	runCmd.Flags().StringVar(&runProvider, "provider", "", "Guardrail provider id (default: top recommendation)")
	runCmd.Flags().StringVar(&runMode, "mode", plan.ModeWhitebox, "Integration mode: whitebox or blackbox")
	runCmd.Flags().BoolVar(&runPlanOnly, "plan-only", false, "Build and persist the plan without executing")
	runCmd.Flags().BoolVar(&runNoBackup, "no-backup", false, "Skip backup creation (rollback becomes impossible)")
	runCmd.Flags().BoolVar(&runNoInstall, "no-install", false, "Skip dependency installation")
	runCmd.Flags().BoolVar(&runAutoFix, "auto-fix", false, "Apply remediations without prompting")
	runCmd.Flags().BoolVar(&runNoAutoFix, "no-auto-fix", false, "Always prompt before applying remediations")
	runCmd.Flags().StringVar(&runStateOut, "state-out", "", "Write the deployment state JSON to this path")
	runCmd.Flags().StringVar(&runEndpoint, "endpoint", "", "Deployed guard endpoint for the validate step")
	runCmd.Flags().StringVar(&runAPIKey, "api-key", "", "API key for the functional probe (default: $RAILGUARD_API_KEY)")
	rootCmd.AddCommand(runCmd)
}

func runCommand(cmd *cobra.Command, args []string) error {
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
	ctx := cmd.Context()
	state := plan.NewState(root)

	profile, err := scan.Scan(root)
	if err != nil {
		auditStage(audit, state.RunID, "scan", "failed", err.Error())
		return reportFailure(fmt.Errorf("scan failed: %w", err))
	}
	state.Profile = profile

	matrix, err := recommend.LoadMatrix(cfg.MatrixPath)
	if err != nil {
		return fmt.Errorf("failed to load compatibility matrix: %w", err)
	}
	recs := recommend.Rank(profile, matrix)
	chosen := chooseProvider(recs, runProvider)
	state.Decision = &chosen

	res, err := newGenerator(cfg, "").Generate(ctx, profile, chosen.Provider)
	if err != nil {
		auditStage(audit, state.RunID, "generate", "failed", err.Error())
		return reportFailure(fmt.Errorf("generation failed: %w", err))
	}

	mode := runMode
	if !cmd.Flags().Changed("mode") {
		mode = defaultMode(profile)
	}

	p, err := plan.Build(res, plan.BuildOptions{
		ProjectRoot: root,
		Mode:        mode,
		NoBackup:    runNoBackup,
		Validate:    runEndpoint != "",
		Install:     !runNoInstall && mode == plan.ModeWhitebox,
	})
	if err != nil {
		return err
	}
	state.Plan = p

	if runPlanOnly {
		for _, step := range p.Steps {
			fmt.Printf("  %s  %-16s %s\n", step.ID, step.Action, step.Target)
		}
		if runStateOut != "" {
			if err := state.Save(runStateOut); err != nil {
				return fmt.Errorf("failed to write deployment state: %w", err)
			}
			fmt.Printf("Plan persisted to %s\n", runStateOut)
		}
		return nil
	}

	installer := deploy.PackageManager(deploy.PipInstaller{})
	if runNoInstall {
		installer = deploy.NoopInstaller{}
	}
	session, err := deploy.NewSession(root, res, installer)
	if err != nil {
		return reportFailure(err)
	}
	defer session.Close()

	autoFix := (runAutoFix || cfg.Repair.AutoFix) && !runNoAutoFix
	executor := plan.NewExecutor(log, stepHandlers(cfg, state, audit, session, root, autoFix), func(context.Context) error {
		return session.RollbackAll()
	})
	exec, execErr := executor.Run(ctx, p)
	state.Execution = exec

	for _, res := range exec.Results {
		auditStage(audit, state.RunID, res.Action, res.State, res.Detail)
	}

	if runStateOut != "" {
		if err := state.Save(runStateOut); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to write deployment state: %v\n", err)
		} else {
			fmt.Printf("Deployment state written to %s\n", runStateOut)
		}
	}

	if execErr != nil {
		return reportFailure(execErr)
	}
	if state.Unresolved() {
		return fmt.Errorf("run finished with unresolved issues")
	}
	fmt.Printf("✅ Plan executed, %d steps done (backup %s)\n", len(exec.Results), session.BackupID())
	return nil
}

func stepHandlers(cfg *config.Config, state *plan.DeploymentState, audit *logger.AuditLogger, session *deploy.Session, root string, autoFix bool) map[string]plan.Handler {
	return map[string]plan.Handler{
		plan.ActionBackup: func(context.Context, plan.Step) (string, error) {
			id, err := session.CreateBackup()
			return id, err
		},
		plan.ActionMergeDeps: func(context.Context, plan.Step) (string, error) {
			return "manifest merged", session.MergeManifest()
		},
		plan.ActionWriteFile: func(_ context.Context, step plan.Step) (string, error) {
			return step.ExpectedArtifact, session.WriteArtifact(step.ExpectedArtifact)
		},
		plan.ActionInstallDeps: func(ctx context.Context, _ plan.Step) (string, error) {
			return session.InstallDependencies(ctx)
		},
		plan.ActionValidate: func(ctx context.Context, _ plan.Step) (string, error) {
			// Failed checks feed the bounded repair loop before the
			// step settles, same as the deploy command.
			err := validateAndRepair(ctx, cfg, state, audit, root, runEndpoint, apiKeyOrEnv(runAPIKey), autoFix)
			if err != nil {
				return "", err
			}
			return "all checks passed", nil
		},
	}
}
