package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gzhole/railguard/internal/plan"
	"github.com/gzhole/railguard/internal/recommend"
	"github.com/gzhole/railguard/internal/scan"
)

var (
	planProvider string
	planMode     string
	planStateOut string
	planOnly     []string
)

var planCmd = &cobra.Command{
	Use:   "plan [project-root]",
	Short: "Materialize the deployment plan without executing it",
	Long: `Build the ordered deployment plan for the project and print it.
Nothing is written to the project; the plan can be persisted with
--state-out and inspected or diffed before a real run.

  railguard plan ./my-agent --mode blackbox`,
	Args: cobra.MaximumNArgs(1),
	RunE: planCommand,
}

func init() {
	planCmd.Flags().StringVar(&planProvider, "provider", "", "Guardrail provider id (default: top recommendation)")
	planCmd.Flags().StringVar(&planMode, "mode", plan.ModeWhitebox, "Integration mode: whitebox or blackbox")
	planCmd.Flags().StringVar(&planStateOut, "state-out", "", "Write the deployment state JSON to this path")
	planCmd.Flags().StringSliceVar(&planOnly, "only", nil, "Show only the named actions (e.g. backup,write-artifact)")
	rootCmd.AddCommand(planCmd)
}

func planCommand(cmd *cobra.Command, args []string) error {
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
	chosen := chooseProvider(recs, planProvider)

	res, err := newGenerator(cfg, "").Generate(cmd.Context(), profile, chosen.Provider)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	mode := planMode
	if !cmd.Flags().Changed("mode") {
		mode = defaultMode(profile)
	}

	p, err := plan.Build(res, plan.BuildOptions{
		ProjectRoot: root,
		Mode:        mode,
		Validate:    true,
		Install:     mode == plan.ModeWhitebox,
	})
	if err != nil {
		return err
	}

	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Printf("  Deployment Plan — %s (%s mode)\n", chosen.Provider, mode)
	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println()
	for _, step := range p.Steps {
		if len(planOnly) > 0 && !containsString(planOnly, step.Action) {
			continue
		}
		critical := ""
		if step.Critical {
			critical = "  [critical]"
		}
		fmt.Printf("  %s  %-16s risk=%-6s %s%s\n", step.ID, step.Action, step.Risk, step.Target, critical)
	}
	fmt.Println()

	if planStateOut != "" {
		state := plan.NewState(root)
		state.Profile = profile
		state.Decision = &chosen
		state.Plan = p
		if err := state.Save(planStateOut); err != nil {
			return fmt.Errorf("failed to write deployment state: %w", err)
		}
		fmt.Printf("Plan persisted to %s\n", planStateOut)
	}

	return nil
}

// defaultMode chooses the integration mode from how the target is
// deployed: containerized and serverless targets are fronted by a
// gateway, bare projects get source integration.
func defaultMode(profile *scan.Profile) string {
	switch profile.DeploymentMode {
	case "docker", "serverless":
		return plan.ModeBlackbox
	default:
		return plan.ModeWhitebox
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
