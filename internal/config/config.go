package config

import (
	"os"
	"path/filepath"
)

const (
	DefaultConfigDir    = ".railguard"
	DefaultRulesFile    = "rules.yaml"
	DefaultMatrixFile   = "matrix.yaml"
	DefaultLogFile      = "audit.jsonl"
	DefaultBackupSubdir = "backups"
)

type Config struct {
	RulesPath  string
	MatrixPath string
	LogPath    string
	ConfigDir  string
	Generator  GeneratorConfig
	Repair     RepairConfig
}

// GeneratorConfig controls the template generation service client.
type GeneratorConfig struct {
	// Endpoint is the refinement service URL. Empty means base templates only.
	Endpoint string
	// TimeoutSeconds bounds each refinement request. Default: 15.
	TimeoutSeconds int
	// MaxRetries is the number of stricter re-requests after a contract
	// violation before falling back to the base template. Default: 1.
	MaxRetries int
}

// DefaultGeneratorConfig returns the default generator configuration.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		TimeoutSeconds: 15,
		MaxRetries:     1,
	}
}

// RepairConfig controls the validate/repair loop.
type RepairConfig struct {
	// MaxRounds is the cap on repair attempts per deployment. Default: 2.
	MaxRounds int
	// AutoFix applies remediations without prompting when true.
	AutoFix bool
}

// DefaultRepairConfig returns the default repair configuration.
func DefaultRepairConfig() RepairConfig {
	return RepairConfig{MaxRounds: 2}
}

func Load(rulesPath, matrixPath, logPath string) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configDir := filepath.Join(homeDir, DefaultConfigDir)

	if err := ensureDir(configDir); err != nil {
		return nil, err
	}

	cfg := &Config{
		ConfigDir: configDir,
		Generator: DefaultGeneratorConfig(),
		Repair:    DefaultRepairConfig(),
	}

	if rulesPath != "" {
		cfg.RulesPath = rulesPath
	} else {
		cfg.RulesPath = filepath.Join(configDir, DefaultRulesFile)
	}

	if matrixPath != "" {
		cfg.MatrixPath = matrixPath
	} else {
		cfg.MatrixPath = filepath.Join(configDir, DefaultMatrixFile)
	}

	if logPath != "" {
		cfg.LogPath = logPath
	} else {
		cfg.LogPath = filepath.Join(configDir, DefaultLogFile)
	}

	return cfg, nil
}

// BackupDir returns the backup directory for a project root, creating it
// if needed.
func BackupDir(projectRoot string) (string, error) {
	dir := filepath.Join(projectRoot, DefaultConfigDir, DefaultBackupSubdir)
	if err := ensureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

func ensureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0700)
	}
	return nil
}
