// Package anthropic implements the AI collaborators backed by the
// Anthropic Messages API: the Socratic chat tutor, the ambient emotion
// classifier, the written-work analyzer, and the assignment summarizer.
package anthropic

import (
	"math/rand"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the default Anthropic API endpoint.
	DefaultBaseURL = "https://api.anthropic.com"

	// APIVersion is the required Anthropic API version header.
	APIVersion = "2023-06-01"

	// DefaultModel is the vision-capable model used for every call.
	DefaultModel = "claude-sonnet-4-20250514"
)

// Provider calls the Anthropic Messages API.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithModel overrides the model identifier.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// New creates a new Anthropic provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "anthropic"
}

// Configured reports whether an API key is present. Unconfigured
// providers degrade to deterministic stub behavior instead of failing.
func (p *Provider) Configured() bool {
	return p.apiKey != ""
}

func (p *Provider) pick(options []string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return options[p.rng.Intn(len(options))]
}
