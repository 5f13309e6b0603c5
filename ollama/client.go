package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"chatgate/model"
)

const DefaultBaseURL = "http://localhost:11434"

// Client wraps the Ollama API client for the non-streaming calls: model
// listing and liveness.
type Client struct {
	client  *api.Client
	baseURL string
}

func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &Client{
		client:  api.NewClient(parsedURL, httpClient),
		baseURL: baseURL,
	}, nil
}

// BaseURL returns the server URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListModels returns the locally pulled models with their details.
func (c *Client) ListModels(ctx context.Context) ([]model.APIModel, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]model.APIModel, len(resp.Models))
	for i, m := range resp.Models {
		models[i] = model.APIModel{
			ID:   m.Model,
			Name: m.Name,
			Details: model.ModelDetails{
				Format:            m.Details.Format,
				Family:            m.Details.Family,
				ParameterSize:     m.Details.ParameterSize,
				QuantizationLevel: m.Details.QuantizationLevel,
				SupportsTools:     ModelSupportsToolCalling(m.Name),
			},
		}
		if models[i].ID == "" {
			models[i].ID = m.Name
		}
	}

	return models, nil
}

// Ping checks the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return c.client.Heartbeat(ctx)
}

// Version returns the server version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	return c.client.Version(ctx)
}

// toolCallingModels tracks which model families support tool calling
// This is a curated list based on Ollama documentation and community testing
var toolCallingModels = map[string]bool{
	"qwen":      true,
	"llama3.1":  true,
	"llama3.2":  true,
	"llama3.3":  true,
	"mistral":   true,
	"command-r": true,
	"nemotron":  true,
	"granite3":  true,

	"llama3-gradient": false,
	"llama3":          false, // Original llama3 (not 3.1/3.2/3.3)
	"phi":             false,
	"gemma":           false,
	"codellama":       false,
	"deepseek":        false,
}

// orderedPrefixes defines the order to check model prefixes
// IMPORTANT: Check most specific prefixes first to avoid false matches
// (e.g., check "llama3.2" before "llama3" to avoid matching llama3.2 as generic llama3)
var orderedPrefixes = []string{
	"llama3.3", "llama3.2", "llama3.1",
	"llama3-gradient",
	"command-r", "qwen", "mistral", "nemotron", "granite3",
	"codellama",
	"llama3",
	"deepseek", "phi", "gemma",
}

// ModelSupportsToolCalling reports whether a model family is known to handle
// Ollama's tool calling API. Unknown families are assumed not to.
func ModelSupportsToolCalling(modelName string) bool {
	modelName = strings.ToLower(modelName)

	for _, prefix := range orderedPrefixes {
		if strings.HasPrefix(modelName, prefix) {
			return toolCallingModels[prefix]
		}
	}

	return false
}
