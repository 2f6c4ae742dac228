// Package openaicompat implements the OpenAI-compatible client family. It
// talks to the /v1 surface that the fixture server exposes next to its
// native API.
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/Quidge/chatconform/internal/capability"
	"github.com/Quidge/chatconform/internal/client"
)

// FamilyName is the registered name of this family.
const FamilyName = "openai"

// apiKey is sent because the SDK requires one; the server ignores it.
const apiKey = "chatconform"

// ResponseMetadata extends the common metadata with OpenAI-specific fields.
type ResponseMetadata struct {
	client.ResponseMetadata
	Created           int64
	ServiceTier       string
	SystemFingerprint string
}

// TokenUsage extends the common usage with OpenAI token breakdowns.
type TokenUsage struct {
	client.TokenUsage
	CachedTokens    int
	ReasoningTokens int
}

// Profile declares the OpenAI-compatible surface. Unsupported request options
// are passed through and ignored by the server rather than refused, so their
// scenarios are skipped instead of expecting a rejection.
var Profile = capability.MustProfile(capability.Declaration{
	Family: FamilyName,
	Capabilities: map[capability.Capability]capability.Support{
		capability.ToolChoiceRequired:      {Tier: capability.TierHardSkip},
		capability.JSONResponseFormat:      {Supported: true},
		capability.JSONSchema:              {Tier: capability.TierHardSkip},
		capability.SingleImageBase64:       {Supported: true},
		capability.MultipleImagesBase64:    {Tier: capability.TierHardSkip},
		capability.SingleImagePublicURL:    {Tier: capability.TierHardSkip},
		capability.MultipleImagesPublicURL: {Tier: capability.TierHardSkip},
	},
	Types: capability.ResponseTypes{
		Metadata: reflect.TypeFor[ResponseMetadata](),
		Usage:    reflect.TypeFor[TokenUsage](),
	},
})

func init() {
	client.Register(client.Family{Name: FamilyName, New: New, Profile: Profile})
}

// Client talks to the OpenAI-compatible API through go-openai.
type Client struct {
	api     *openai.Client
	baseURL string
	model   string
}

// New returns a client bound to <cfg.Endpoint>/v1 and cfg.ModelName.
func New(cfg client.Config) (client.Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cfg.ModelName == "" {
		return nil, errors.New("model name is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = client.DefaultRequestTimeout
	}

	baseURL := strings.TrimSuffix(cfg.Endpoint, "/") + "/v1"
	oc := openai.DefaultConfig(apiKey)
	oc.BaseURL = baseURL
	oc.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: &client.LoggingTransport{Name: FamilyName, Log: cfg.Logger},
	}

	return &Client{
		api:     openai.NewClientWithConfig(oc),
		baseURL: baseURL,
		model:   cfg.ModelName,
	}, nil
}

// Family implements client.Client.
func (c *Client) Family() string { return FamilyName }

// BaseURL implements client.Client.
func (c *Client) BaseURL() string { return c.baseURL }

// ModelName implements client.Client.
func (c *Client) ModelName() string { return c.model }

// ListModels returns the model IDs reported by GET /v1/models.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	list, err := c.api.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// CheckParameters accepts every parameter set. The server ignores options it
// does not understand.
func (c *Client) CheckParameters(client.Parameters) error {
	return nil
}
