// Package scan inspects a target project and produces the profile every
// downstream stage consumes. Detection is signature-based over dependency
// manifests and import statements; target code is never executed.
package scan

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const Unknown = "unknown"

// Profile is the immutable result of one scan.
type Profile struct {
	Root string `json:"root"`
	Name string `json:"name"`

	Framework   string `json:"framework"`
	LLMProvider string `json:"llm_provider"`

	// EntryPoints holds conventional entry files found under the root,
	// in fixed detection order.
	EntryPoints []string `json:"entry_points"`

	ExistingGuardrails []string `json:"existing_guardrails"`

	// DeploymentMode is "docker", "serverless", or "bare".
	DeploymentMode string `json:"deployment_mode"`

	Dependencies map[string]string `json:"dependencies"`
}

// ScanError means the root itself was unreadable. Unknown signatures are
// not errors; they degrade to "unknown" on the profile.
type ScanError struct {
	Root string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Root, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

type signature struct {
	name     string
	deps     []string
	patterns []*regexp.Regexp
}

// Ordered fingerprint lists. Order is the tiebreak when a project matches
// more than one signature.
var frameworkSignatures = []signature{
	{
		name: "langchain",
		deps: []string{"langchain", "langchain-core", "langchain-community", "@langchain/core"},
		patterns: compile(
			`from\s+langchain`, `import\s+langchain`, `ChatPromptTemplate`, `LLMChain`,
		),
	},
	{
		name: "llamaindex",
		deps: []string{"llama-index", "llama_index", "llamaindex"},
		patterns: compile(
			`from\s+llama_index`, `import\s+llama_index`, `VectorStoreIndex`, `QueryEngine`,
		),
	},
	{
		name: "haystack",
		deps: []string{"haystack-ai", "farm-haystack"},
		patterns: compile(
			`from\s+haystack`, `import\s+haystack`, `DocumentStore`,
		),
	},
	{
		name: "autogen",
		deps: []string{"pyautogen", "autogen-agentchat"},
		patterns: compile(
			`from\s+autogen`, `import\s+autogen`, `AssistantAgent`, `UserProxyAgent`,
		),
	},
	{
		name: "crewai",
		deps: []string{"crewai"},
		patterns: compile(
			`from\s+crewai`, `import\s+crewai`,
		),
	},
}

var llmSignatures = []signature{
	{
		name: "openai",
		deps: []string{"openai", "langchain-openai"},
		patterns: compile(
			`from\s+openai`, `import\s+openai`, `OPENAI_API_KEY`, `ChatOpenAI`, `OpenAI\(`,
		),
	},
	{
		name: "anthropic",
		deps: []string{"anthropic", "langchain-anthropic"},
		patterns: compile(
			`from\s+anthropic`, `import\s+anthropic`, `ANTHROPIC_API_KEY`, `ChatAnthropic`,
		),
	},
	{
		name: "vertexai",
		deps: []string{"google-cloud-aiplatform", "vertexai"},
		patterns: compile(
			`from\s+vertexai`, `import\s+vertexai`, `ChatVertexAI`, `GOOGLE_APPLICATION_CREDENTIALS`,
		),
	},
	{
		name: "azure",
		deps: []string{"azure-ai-inference"},
		patterns: compile(
			`AzureOpenAI`, `AZURE_OPENAI`, `azure\.ai`,
		),
	},
	{
		name: "bedrock",
		deps: []string{"boto3"},
		patterns: compile(
			`bedrock`, `AWS_BEDROCK`, `BedrockChat`,
		),
	},
}

var guardrailSignatures = []signature{
	{name: "openguardrails", deps: []string{"openguardrails"}, patterns: compile(`openguardrails`, `OpenGuardrails`)},
	{name: "nemo_guardrails", deps: []string{"nemoguardrails"}, patterns: compile(`nemoguardrails`, `LLMRails`)},
	{name: "llama_guard", deps: []string{"llama-guard"}, patterns: compile(`llama_guard`, `LlamaGuard`)},
	{name: "llama_firewall", deps: []string{"llamafirewall"}, patterns: compile(`llama_firewall`, `LlamaFirewall`)},
	{name: "guardrails_ai", deps: []string{"guardrails-ai"}, patterns: compile(`Guard\.from_rail`, `guardrails\.Guard`)},
}

// entryPointNames is the fixed conventional-name list, checked in order.
var entryPointNames = []string{"main.py", "app.py", "server.py", "api.py", "index.js", "server.js"}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// Scan builds a Profile for the project at root.
func Scan(root string) (*Profile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &ScanError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &ScanError{Root: root, Err: fmt.Errorf("not a directory")}
	}
	if _, err := os.ReadDir(root); err != nil {
		return nil, &ScanError{Root: root, Err: err}
	}

	p := &Profile{
		Root:           root,
		Name:           filepath.Base(root),
		Framework:      Unknown,
		LLMProvider:    Unknown,
		DeploymentMode: "bare",
		Dependencies:   map[string]string{},
	}

	deps := collectDependencies(root)
	p.Dependencies = deps

	source := collectSourceSample(root)

	p.Framework = matchSignature(frameworkSignatures, deps, source)
	p.LLMProvider = matchSignature(llmSignatures, deps, source)
	p.ExistingGuardrails = matchAllSignatures(guardrailSignatures, deps, source)

	for _, name := range entryPointNames {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			p.EntryPoints = append(p.EntryPoints, name)
		}
	}

	p.DeploymentMode = detectDeploymentMode(root)

	return p, nil
}

// collectDependencies reads requirements.txt, pyproject.toml, and
// package.json into one name → version-spec map. A missing or malformed
// manifest contributes nothing.
func collectDependencies(root string) map[string]string {
	deps := map[string]string{}

	if lines := readLines(filepath.Join(root, "requirements.txt")); lines != nil {
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
				continue
			}
			name, spec := splitRequirement(line)
			deps[strings.ToLower(name)] = spec
		}
	}

	if lines := readLines(filepath.Join(root, "pyproject.toml")); lines != nil {
		inDeps := false
		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "[") {
				inDeps = strings.Contains(trimmed, "dependencies") || trimmed == "[tool.poetry.dependencies]"
				continue
			}
			if !inDeps {
				// PEP 621 list form: dependencies = ["langchain>=0.1", ...]
				if strings.Contains(trimmed, "\"") && strings.Contains(line, "=") {
					for _, q := range regexp.MustCompile(`"([^"]+)"`).FindAllStringSubmatch(trimmed, -1) {
						name, spec := splitRequirement(q[1])
						if name != "" && looksLikePackage(name) {
							deps[strings.ToLower(name)] = spec
						}
					}
				}
				continue
			}
			if idx := strings.Index(trimmed, "="); idx > 0 {
				name := strings.TrimSpace(trimmed[:idx])
				if looksLikePackage(name) {
					deps[strings.ToLower(name)] = strings.Trim(strings.TrimSpace(trimmed[idx+1:]), `"`)
				}
			}
		}
	}

	if data, err := os.ReadFile(filepath.Join(root, "package.json")); err == nil {
		// Tolerant line-wise extraction; package.json inside a dependency
		// block has the shape "name": "version".
		inBlock := false
		scanner := bufio.NewScanner(strings.NewReader(string(data)))
		pair := regexp.MustCompile(`"([^"]+)"\s*:\s*"([^"]+)"`)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.Contains(line, `"dependencies"`) || strings.Contains(line, `"devDependencies"`) {
				inBlock = true
				continue
			}
			if inBlock && strings.Contains(line, "}") {
				inBlock = false
				continue
			}
			if inBlock {
				if m := pair.FindStringSubmatch(line); m != nil {
					deps[strings.ToLower(m[1])] = m[2]
				}
			}
		}
	}

	return deps
}

func splitRequirement(line string) (name, spec string) {
	for i, r := range line {
		if strings.ContainsRune("=<>!~;[ ", r) {
			return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i:])
		}
	}
	return line, ""
}

func looksLikePackage(name string) bool {
	return regexp.MustCompile(`^[A-Za-z0-9_.\-@/]+$`).MatchString(name) && name != "python"
}

const (
	maxSourceFiles    = 50
	maxSourceFileSize = 256 << 10
)

var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "venv": true, ".venv": true,
	"__pycache__": true, "dist": true, "build": true,
}

// collectSourceSample reads a bounded sample of .py/.js source for import
// matching.
func collectSourceSample(root string) string {
	var b strings.Builder
	count := 0

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if count >= maxSourceFiles {
			return filepath.SkipAll
		}
		ext := filepath.Ext(path)
		if ext != ".py" && ext != ".js" && ext != ".ts" {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxSourceFileSize {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		b.Write(data)
		b.WriteByte('\n')
		count++
		return nil
	})

	return b.String()
}

func matchSignature(sigs []signature, deps map[string]string, source string) string {
	for _, sig := range sigs {
		if sigMatches(sig, deps, source) {
			return sig.name
		}
	}
	return Unknown
}

func matchAllSignatures(sigs []signature, deps map[string]string, source string) []string {
	var names []string
	for _, sig := range sigs {
		if sigMatches(sig, deps, source) {
			names = append(names, sig.name)
		}
	}
	sort.Strings(names)
	return names
}

func sigMatches(sig signature, deps map[string]string, source string) bool {
	for _, d := range sig.deps {
		if _, ok := deps[d]; ok {
			return true
		}
	}
	for _, p := range sig.patterns {
		if p.MatchString(source) {
			return true
		}
	}
	return false
}

func detectDeploymentMode(root string) string {
	for _, name := range []string{"Dockerfile", "docker-compose.yml", "docker-compose.yaml"} {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			return "docker"
		}
	}
	for _, name := range []string{"serverless.yml", "serverless.yaml", "template.yaml"} {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			return "serverless"
		}
	}
	return "bare"
}

func readLines(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return strings.Split(string(data), "\n")
}
