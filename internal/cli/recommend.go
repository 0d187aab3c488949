package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gzhole/railguard/internal/recommend"
	"github.com/gzhole/railguard/internal/scan"
)

var recommendTop int

var recommendCmd = &cobra.Command{
	Use:   "recommend [project-root]",
	Short: "Rank guardrail providers by compatibility with the project",
	Long: `Scan the project and rank every known guardrail provider by
compatibility with its framework and LLM provider. Ranking is
deterministic: ties break by the fixed provider priority, never by
map order.

  railguard recommend ./my-agent`,
	Args: cobra.MaximumNArgs(1),
	RunE: recommendCommand,
}

func init() {
	recommendCmd.Flags().IntVar(&recommendTop, "top", 0, "Show only the top N providers")
	rootCmd.AddCommand(recommendCmd)
}

func recommendCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	root, err := projectRoot(args)
	if err != nil {
		return err
	}

	profile, err := scan.Scan(root)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	matrix, err := recommend.LoadMatrix(cfg.MatrixPath)
	if err != nil {
		return fmt.Errorf("failed to load compatibility matrix: %w", err)
	}

	recs := recommend.Rank(profile, matrix)
	if recommendTop > 0 && recommendTop < len(recs) {
		recs = recs[:recommendTop]
	}

	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Printf("  Provider Ranking — %s / %s\n", profile.Framework, profile.LLMProvider)
	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println()
	for i, rec := range recs {
		fmt.Printf("  %d. %-18s %.3f\n", i+1, rec.Provider, rec.Score)
		for _, reason := range rec.Rationale {
			fmt.Printf("     %s\n", reason)
		}
		for _, warn := range rec.Warnings {
			fmt.Printf("     ⚠ %s\n", warn)
		}
	}
	fmt.Println()

	return nil
}
