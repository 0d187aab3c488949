package cli

import (
	"github.com/spf13/cobra"
)

var (
	rulesPath  string
	matrixPath string
	logPath    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "railguard",
	Short: "Railguard - Retrofit guardrails onto existing AI applications",
	Long: `Railguard scans an existing AI application, recommends a compatible
guardrail provider, generates the integration artifacts, and deploys them
with backup-first, rollback-safe writes. Every deployment is validated
against the running guard and recorded as a durable deployment state.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "Path to guard rules YAML (default: ~/.railguard/rules.yaml)")
	rootCmd.PersistentFlags().StringVar(&matrixPath, "matrix", "", "Path to compatibility matrix YAML (default: ~/.railguard/matrix.yaml)")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "Path to audit log file (default: ~/.railguard/audit.jsonl)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose operational logging")
}

func Execute() error {
	return rootCmd.Execute()
}
