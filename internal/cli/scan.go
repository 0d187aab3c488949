package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gzhole/railguard/internal/scan"
)

var scanJSON bool

var scanCmd = &cobra.Command{
	Use:   "scan [project-root]",
	Short: "Detect framework, LLM provider and existing guardrails in a project",
	Long: `Scan a target project and produce its profile: agent framework,
LLM provider, entry points, existing guardrail libraries and deployment
mode. The profile drives every later stage.

  railguard scan ./my-agent`,
	Args: cobra.MaximumNArgs(1),
	RunE: scanCommand,
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Emit the profile as JSON")
	rootCmd.AddCommand(scanCmd)
}

func scanCommand(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}

	profile, err := scan.Scan(root)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if scanJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	}

	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println("  Railguard Project Scan")
	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println()
	fmt.Printf("  Root:            %s\n", profile.Root)
	fmt.Printf("  Framework:       %s\n", profile.Framework)
	fmt.Printf("  LLM provider:    %s\n", profile.LLMProvider)
	fmt.Printf("  Deployment mode: %s\n", profile.DeploymentMode)
	if len(profile.EntryPoints) > 0 {
		fmt.Printf("  Entry points:    %s\n", strings.Join(profile.EntryPoints, ", "))
	}
	if len(profile.ExistingGuardrails) > 0 {
		fmt.Printf("  Guardrails:      %s (already present)\n", strings.Join(profile.ExistingGuardrails, ", "))
	} else {
		fmt.Println("  Guardrails:      none detected")
	}
	fmt.Printf("  Dependencies:    %d found\n", len(profile.Dependencies))
	fmt.Println()

	return nil
}
