package config

import (
	"net/url"
	"strconv"
	"time"

	"chatgate/model"
)

// ServiceConfig is the per-provider configuration record.
//
// Optional numeric fields are pointers so that "absent" and "zero" stay
// distinguishable: validation rules only apply to values that are present.
type ServiceConfig struct {
	APIKey       string `json:"apiKey,omitempty"`
	BaseURL      string `json:"baseUrl,omitempty"`
	Timeout      *int   `json:"timeout,omitempty"` // milliseconds
	MaxRetries   *int   `json:"maxRetries,omitempty"`
	DefaultModel string `json:"defaultModel,omitempty"`

	// Provider specific fields
	Organization     string `json:"organization,omitempty"`     // openai
	APIVersion       string `json:"apiVersion,omitempty"`       // anthropic
	Port             *int   `json:"port,omitempty"`             // ollama
	IncludeReasoning bool   `json:"includeReasoning,omitempty"` // deepseek
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	APIKey           *string
	BaseURL          *string
	Timeout          *int
	MaxRetries       *int
	DefaultModel     *string
	Organization     *string
	APIVersion       *string
	Port             *int
	IncludeReasoning *bool
}

// Apply returns a copy of c with every non-nil field of p applied.
func (c ServiceConfig) Apply(p Patch) ServiceConfig {
	out := c.Clone()
	if p.APIKey != nil {
		out.APIKey = *p.APIKey
	}
	if p.BaseURL != nil {
		out.BaseURL = *p.BaseURL
	}
	if p.Timeout != nil {
		out.Timeout = IntPtr(*p.Timeout)
	}
	if p.MaxRetries != nil {
		out.MaxRetries = IntPtr(*p.MaxRetries)
	}
	if p.DefaultModel != nil {
		out.DefaultModel = *p.DefaultModel
	}
	if p.Organization != nil {
		out.Organization = *p.Organization
	}
	if p.APIVersion != nil {
		out.APIVersion = *p.APIVersion
	}
	if p.Port != nil {
		out.Port = IntPtr(*p.Port)
	}
	if p.IncludeReasoning != nil {
		out.IncludeReasoning = *p.IncludeReasoning
	}
	return out
}

// Clone deep-copies the pointer fields.
func (c ServiceConfig) Clone() ServiceConfig {
	out := c
	if c.Timeout != nil {
		out.Timeout = IntPtr(*c.Timeout)
	}
	if c.MaxRetries != nil {
		out.MaxRetries = IntPtr(*c.MaxRetries)
	}
	if c.Port != nil {
		out.Port = IntPtr(*c.Port)
	}
	return out
}

// TimeoutDuration returns the configured timeout, or fallback when unset.
func (c ServiceConfig) TimeoutDuration(fallback time.Duration) time.Duration {
	if c.Timeout == nil || *c.Timeout <= 0 {
		return fallback
	}
	return time.Duration(*c.Timeout) * time.Millisecond
}

// Retries returns MaxRetries or zero.
func (c ServiceConfig) Retries() int {
	if c.MaxRetries == nil {
		return 0
	}
	return *c.MaxRetries
}

// EndpointURL returns BaseURL with the Port override applied (ollama).
func (c ServiceConfig) EndpointURL() string {
	if c.Port == nil || c.BaseURL == "" {
		return c.BaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return c.BaseURL
	}
	u.Host = u.Hostname() + ":" + strconv.Itoa(*c.Port)
	return u.String()
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// StringPtr returns a pointer to v.
func StringPtr(v string) *string {
	return &v
}

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool {
	return &v
}

// DefaultServiceConfig returns the defaults for a provider. Unknown providers
// get an empty config with the base timeout/retry values.
func DefaultServiceConfig(p model.ProviderID) ServiceConfig {
	switch p {
	case model.ProviderOllama:
		return ServiceConfig{
			BaseURL:      "http://localhost:11434",
			Timeout:      IntPtr(30000),
			MaxRetries:   IntPtr(3),
			DefaultModel: "llama3.1:latest",
		}
	case model.ProviderOpenAI:
		return ServiceConfig{
			BaseURL:      "https://api.openai.com/v1",
			Timeout:      IntPtr(60000),
			MaxRetries:   IntPtr(3),
			DefaultModel: "gpt-4o-mini",
		}
	case model.ProviderDeepSeek:
		return ServiceConfig{
			BaseURL:      "https://api.deepseek.com",
			Timeout:      IntPtr(60000),
			MaxRetries:   IntPtr(3),
			DefaultModel: "deepseek-chat",
		}
	case model.ProviderAnthropic:
		return ServiceConfig{
			BaseURL:      "https://api.anthropic.com",
			Timeout:      IntPtr(60000),
			MaxRetries:   IntPtr(2),
			APIVersion:   "2023-06-01",
			DefaultModel: "claude-sonnet-4-5-20250929",
		}
	default:
		return ServiceConfig{
			Timeout:    IntPtr(30000),
			MaxRetries: IntPtr(0),
		}
	}
}
