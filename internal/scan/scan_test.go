package scan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestScan_LangchainOpenAI(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "requirements.txt", "langchain>=0.1.0\nopenai==1.12.0\nrequests\n")
	writeFile(t, root, "app.py", "from langchain import LLMChain\n")

	p, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if p.Framework != "langchain" {
		t.Errorf("framework = %q, want langchain", p.Framework)
	}
	if p.LLMProvider != "openai" {
		t.Errorf("llm provider = %q, want openai", p.LLMProvider)
	}
	if len(p.EntryPoints) != 1 || p.EntryPoints[0] != "app.py" {
		t.Errorf("entry points = %v, want [app.py]", p.EntryPoints)
	}
	if _, ok := p.Dependencies["langchain"]; !ok {
		t.Errorf("dependencies missing langchain: %v", p.Dependencies)
	}
}

func TestScan_ImportOnlyDetection(t *testing.T) {
	// No manifest at all: import statements still identify the stack.
	root := t.TempDir()
	writeFile(t, root, "main.py", "import llama_index\nfrom anthropic import Anthropic\n")

	p, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if p.Framework != "llamaindex" {
		t.Errorf("framework = %q, want llamaindex", p.Framework)
	}
	if p.LLMProvider != "anthropic" {
		t.Errorf("llm provider = %q, want anthropic", p.LLMProvider)
	}
}

func TestScan_UnknownDegradesGracefully(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.txt", "nothing to see\n")

	p, err := Scan(root)
	if err != nil {
		t.Fatalf("unknown stack must not fail the scan: %v", err)
	}
	if p.Framework != Unknown {
		t.Errorf("framework = %q, want %q", p.Framework, Unknown)
	}
	if p.LLMProvider != Unknown {
		t.Errorf("llm provider = %q, want %q", p.LLMProvider, Unknown)
	}
	if len(p.EntryPoints) != 0 {
		t.Errorf("expected no entry points, got %v", p.EntryPoints)
	}
}

func TestScan_UnreadableRoot(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("expected ScanError for missing root")
	}
	var scanErr *ScanError
	if !errors.As(err, &scanErr) {
		t.Fatalf("expected *ScanError, got %T", err)
	}
}

func TestScan_ExistingGuardrails(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "requirements.txt", "nemoguardrails==0.9.0\nlangchain\n")

	p, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(p.ExistingGuardrails) != 1 || p.ExistingGuardrails[0] != "nemo_guardrails" {
		t.Errorf("existing guardrails = %v, want [nemo_guardrails]", p.ExistingGuardrails)
	}
}

func TestScan_DeploymentMode(t *testing.T) {
	tests := []struct {
		name string
		file string
		want string
	}{
		{"docker", "Dockerfile", "docker"},
		{"compose", "docker-compose.yml", "docker"},
		{"serverless", "serverless.yml", "serverless"},
		{"bare", "", "bare"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			if tt.file != "" {
				writeFile(t, root, tt.file, "")
			}
			p, err := Scan(root)
			if err != nil {
				t.Fatal(err)
			}
			if p.DeploymentMode != tt.want {
				t.Errorf("deployment mode = %q, want %q", p.DeploymentMode, tt.want)
			}
		})
	}
}

func TestScan_EntryPointOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "server.py", "")
	writeFile(t, root, "main.py", "")

	p, err := Scan(root)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"main.py", "server.py"}
	if len(p.EntryPoints) != 2 || p.EntryPoints[0] != want[0] || p.EntryPoints[1] != want[1] {
		t.Errorf("entry points = %v, want %v", p.EntryPoints, want)
	}
}

func TestScan_PackageJSON(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{
  "name": "bot",
  "dependencies": {
    "@langchain/core": "^0.2.0",
    "openai": "^4.0.0"
  }
}`)
	writeFile(t, root, "index.js", "const x = 1;\n")

	p, err := Scan(root)
	if err != nil {
		t.Fatal(err)
	}
	if p.Framework != "langchain" {
		t.Errorf("framework = %q, want langchain", p.Framework)
	}
	if p.LLMProvider != "openai" {
		t.Errorf("llm provider = %q, want openai", p.LLMProvider)
	}
}
