package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gzhole/railguard/internal/config"
	"github.com/gzhole/railguard/internal/deploy"
	"github.com/gzhole/railguard/internal/logger"
	"github.com/gzhole/railguard/internal/recommend"
	"github.com/gzhole/railguard/internal/repair"
	"github.com/gzhole/railguard/internal/validate"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rulesPath, matrixPath, logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func projectRoot(args []string) (string, error) {
	if len(args) > 0 {
		return filepath.Abs(args[0])
	}
	return os.Getwd()
}

// chooseProvider returns the ranked entry for provider, or a pinned
// placeholder when the flag names a provider the matrix does not rank.
// Empty provider means the top recommendation.
func chooseProvider(recs []recommend.Recommendation, provider string) recommend.Recommendation {
	if provider == "" {
		return recs[0]
	}
	for _, rec := range recs {
		if rec.Provider == provider {
			return rec
		}
	}
	return recommend.Recommendation{
		Provider:  provider,
		Rationale: []string{"provider pinned by flag"},
	}
}

func apiKeyOrEnv(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("RAILGUARD_API_KEY")
}

func openAudit(cfg *config.Config) *logger.AuditLogger {
	audit, err := logger.New(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: audit log unavailable: %v\n", err)
		return nil
	}
	return audit
}

func auditStage(audit *logger.AuditLogger, runID, stage, status, detail string) {
	if audit == nil {
		return
	}
	audit.Log(logger.AuditEvent{
		RunID:  runID,
		Stage:  stage,
		Status: status,
		Detail: detail,
	})
}

// reportFailure prints the failed stage, whether a backup exists, and
// its id. Every fatal path goes through here so the operator always
// knows how to roll back.
func reportFailure(err error) error {
	var stepErr *deploy.DeployStepError
	if errors.As(err, &stepErr) {
		fmt.Fprintf(os.Stderr, "\n❌ Deployment failed at step %q\n", stepErr.Step)
		if stepErr.BackupID != "" {
			fmt.Fprintf(os.Stderr, "   Backup %s is preserved — run 'railguard rollback --backup %s' to restore.\n",
				stepErr.BackupID, stepErr.BackupID)
		} else {
			fmt.Fprintln(os.Stderr, "   No files were modified; no backup was needed.")
		}
		return err
	}

	var backupErr *deploy.BackupError
	if errors.As(err, &backupErr) {
		fmt.Fprintln(os.Stderr, "\n❌ Backup creation failed — deployment aborted before any write.")
		return err
	}

	var failure *validate.Failure
	if errors.As(err, &failure) {
		fmt.Fprintf(os.Stderr, "\n❌ Validation failed (%d checks):\n", len(failure.Results))
		for _, res := range failure.Results {
			fmt.Fprintf(os.Stderr, "   • %s: %s\n", res.CheckName, res.Detail)
		}
		return err
	}

	var exhausted *repair.Exhausted
	if errors.As(err, &exhausted) {
		fmt.Fprintf(os.Stderr, "\n❌ Repair loop exhausted after %d rounds; unresolved issues:\n", exhausted.Rounds)
		for _, issue := range exhausted.Remaining {
			fmt.Fprintf(os.Stderr, "   • [%s] %s\n", issue.Kind, issue.Detail)
		}
		return err
	}

	return err
}
