package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gzhole/railguard/internal/deploy"
)

var rollbackBackupID string

var rollbackCmd = &cobra.Command{
	Use:   "rollback [project-root]",
	Short: "Restore a project from a deployment backup",
	Long: `Restore every file captured in a backup to its pre-deployment
content, removing files the deployment created. Without --backup the
most recent backup under .railguard/backups/ is used.

  railguard rollback ./my-agent
  railguard rollback ./my-agent --backup 6f1c2e9a-...`,
	Args: cobra.MaximumNArgs(1),
	RunE: rollbackCommand,
}

func init() {
	rollbackCmd.Flags().StringVar(&rollbackBackupID, "backup", "", "Backup id to restore (default: most recent)")
	rootCmd.AddCommand(rollbackCmd)
}

func rollbackCommand(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}

	var backup *deploy.Backup
	if rollbackBackupID != "" {
		backup, err = deploy.LoadBackup(root, rollbackBackupID)
	} else {
		backup, err = deploy.LatestBackup(root)
	}
	if err != nil {
		return fmt.Errorf("failed to load backup: %w", err)
	}

	if err := deploy.Rollback(backup); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	fmt.Printf("✅ Restored %d files from backup %s (created %s)\n",
		len(backup.Files), backup.ID, backup.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}
