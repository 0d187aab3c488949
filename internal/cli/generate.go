package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/gzhole/railguard/internal/config"
	"github.com/gzhole/railguard/internal/deploy"
	"github.com/gzhole/railguard/internal/generate"
	"github.com/gzhole/railguard/internal/recommend"
	"github.com/gzhole/railguard/internal/scan"
)

var (
	generateProvider string
	generateOut      string
	generateService  string
)

var generateCmd = &cobra.Command{
	Use:   "generate [project-root]",
	Short: "Generate integration artifacts for a guardrail provider",
	Long: `Generate the integration code, provider config and dependency
delta for the project. Without --provider the top-ranked provider is
used. Artifacts are printed, or written next to each other with --out.

  railguard generate ./my-agent --provider openguardrails --out ./artifacts`,
	Args: cobra.MaximumNArgs(1),
	RunE: generateCommand,
}

func init() {
	generateCmd.Flags().StringVar(&generateProvider, "provider", "", "Guardrail provider id (default: top recommendation)")
	generateCmd.Flags().StringVar(&generateOut, "out", "", "Directory to write artifacts into")
	generateCmd.Flags().StringVar(&generateService, "service", "", "Generation service endpoint (default: built-in templates)")
	rootCmd.AddCommand(generateCmd)
}

func generateCommand(cmd *cobra.Command, args []string) error {
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

	provider := generateProvider
	if provider == "" {
		matrix, err := recommend.LoadMatrix(cfg.MatrixPath)
		if err != nil {
			return fmt.Errorf("failed to load compatibility matrix: %w", err)
		}
		provider = recommend.Rank(profile, matrix)[0].Provider
		fmt.Printf("Using top-ranked provider: %s\n\n", provider)
	}

	res, err := newGenerator(cfg, generateService).Generate(cmd.Context(), profile, provider)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	if res.Fallback {
		fmt.Fprintln(os.Stderr, "warning: generation service unusable, built-in template used")
	}

	if generateOut != "" {
		return writeArtifacts(generateOut, res)
	}

	fmt.Println("─── Integration code ──────────────────────────────────")
	fmt.Println(res.IntegrationCode)
	fmt.Println("─── Provider config ───────────────────────────────────")
	fmt.Println(res.ConfigPayload)
	fmt.Println("─── Dependencies ──────────────────────────────────────")
	names := make([]string, 0, len(res.DependencyDelta))
	for name := range res.DependencyDelta {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s%s\n", name, res.DependencyDelta[name])
	}
	fmt.Println()
	fmt.Println(res.Instructions)

	return nil
}

func newGenerator(cfg *config.Config, override string) *generate.Generator {
	endpoint := cfg.Generator.Endpoint
	if override != "" {
		endpoint = override
	}
	if endpoint == "" {
		return generate.New()
	}
	timeout := time.Duration(cfg.Generator.TimeoutSeconds) * time.Second
	return generate.New(
		generate.WithService(endpoint, timeout),
		generate.WithMaxRetries(cfg.Generator.MaxRetries),
	)
}

func writeArtifacts(dir string, res *generate.Result) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	files := map[string]string{
		deploy.IntegrationFile: res.IntegrationCode,
		deploy.ConfigFile:      res.ConfigPayload,
		"INSTRUCTIONS.txt":     res.Instructions,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	fmt.Printf("Artifacts written to %s\n", dir)
	return nil
}
