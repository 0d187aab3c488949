// Package generate produces the integration artifacts for a chosen
// provider: base templates per (framework, provider) pair, optionally
// customized by an external service. A malformed service response degrades
// to the unmodified base template; it never fails the run.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gzhole/railguard/internal/scan"
)

// Result is the accepted output of one generation. Invalid service
// responses never become a Result.
type Result struct {
	ProviderID      string            `json:"provider_id"`
	IntegrationCode string            `json:"integration_code"`
	ConfigPayload   string            `json:"config_payload"`
	DependencyDelta map[string]string `json:"dependency_delta"`
	Instructions    string            `json:"instructions"`

	// Fallback is true when the service could not produce a valid
	// customization and the base template was used as-is.
	Fallback bool `json:"fallback,omitempty"`
}

// GenerationError means no usable template exists for the provider at all.
type GenerationError struct {
	Provider string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("no template available for provider %q", e.Provider)
}

// ContractError records a malformed service response. It is surfaced for
// the audit trail and recovered via the base template, never fatal.
type ContractError struct {
	Missing []string
	Detail  string
}

func (e *ContractError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("generation service response missing %v", e.Missing)
	}
	return fmt.Sprintf("generation service contract violation: %s", e.Detail)
}

// Generator customizes base templates through an optional HTTP service.
type Generator struct {
	endpoint   string
	client     *http.Client
	maxRetries int
	templates  []Template
}

// Option configures a Generator.
type Option func(*Generator)

// WithService points the generator at a customization service.
func WithService(endpoint string, timeout time.Duration) Option {
	return func(g *Generator) {
		g.endpoint = endpoint
		if timeout > 0 {
			g.client.Timeout = timeout
		}
	}
}

// WithTemplates replaces the built-in template set.
func WithTemplates(templates []Template) Option {
	return func(g *Generator) { g.templates = templates }
}

// WithMaxRetries sets how many stricter re-requests follow a contract
// violation before the base template wins.
func WithMaxRetries(n int) Option {
	return func(g *Generator) {
		if n >= 0 {
			g.maxRetries = n
		}
	}
}

func New(opts ...Option) *Generator {
	g := &Generator{
		client:     &http.Client{Timeout: 15 * time.Second},
		maxRetries: 1,
		templates:  builtinTemplates(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds the integration artifacts for the provider. Without a
// configured service the base template is the result. With one, the service
// response is validated against the required-field contract; stricter
// retries are attempted up to the configured limit, then the base template
// is used unchanged.
func (g *Generator) Generate(ctx context.Context, profile *scan.Profile, provider string) (*Result, error) {
	tmpl, ok := g.lookupTemplate(profile.Framework, provider)
	if !ok {
		return nil, &GenerationError{Provider: provider}
	}

	base := tmpl.toResult(provider)

	if g.endpoint == "" {
		return base, nil
	}

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		res, err := g.callService(ctx, tmpl, profile, provider, attempt > 0)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	base.Fallback = true
	return base, nil
}

// lookupTemplate resolves (framework, provider) exactly, then the
// provider-level default.
func (g *Generator) lookupTemplate(framework, provider string) (Template, bool) {
	for _, t := range g.templates {
		if t.Provider == provider && t.Framework == framework {
			return t, true
		}
	}
	for _, t := range g.templates {
		if t.Provider == provider && t.Framework == "" {
			return t, true
		}
	}
	return Template{}, false
}

type serviceRequest struct {
	Template Template      `json:"template"`
	Profile  *scan.Profile `json:"profile"`
	Strict   bool          `json:"strict,omitempty"`
}

func (g *Generator) callService(ctx context.Context, tmpl Template, profile *scan.Profile, provider string, strict bool) (*Result, error) {
	body, err := json.Marshal(serviceRequest{Template: tmpl, Profile: profile, Strict: strict})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &ContractError{Detail: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	var raw struct {
		IntegrationCode string            `json:"integration_code"`
		ConfigPayload   string            `json:"config_payload"`
		DependencyDelta map[string]string `json:"dependency_delta"`
		Instructions    string            `json:"instructions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &ContractError{Detail: err.Error()}
	}

	var missing []string
	if raw.IntegrationCode == "" {
		missing = append(missing, "integration_code")
	}
	if raw.ConfigPayload == "" {
		missing = append(missing, "config_payload")
	}
	if len(raw.DependencyDelta) == 0 {
		missing = append(missing, "dependency_delta")
	}
	if raw.Instructions == "" {
		missing = append(missing, "instructions")
	}
	if len(missing) > 0 {
		return nil, &ContractError{Missing: missing}
	}

	return &Result{
		ProviderID:      provider,
		IntegrationCode: raw.IntegrationCode,
		ConfigPayload:   raw.ConfigPayload,
		DependencyDelta: raw.DependencyDelta,
		Instructions:    raw.Instructions,
	}, nil
}
