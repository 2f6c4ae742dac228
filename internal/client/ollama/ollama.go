// Package ollama implements the native ollama client family.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"resty.dev/v3"

	"github.com/Quidge/chatconform/internal/capability"
	"github.com/Quidge/chatconform/internal/client"
)

// FamilyName is the registered name of this family.
const FamilyName = "ollama"

// Profile declares what the native ollama API supports. Tool choice and JSON
// schema requests are refused by the client, so those scenarios must observe
// the refusal. Image URLs are not accepted by the API at all.
var Profile = capability.MustProfile(capability.Declaration{
	Family: FamilyName,
	Capabilities: map[capability.Capability]capability.Support{
		capability.ToolChoiceRequired:      {Tier: capability.TierSoftReject},
		capability.JSONResponseFormat:      {Supported: true},
		capability.JSONSchema:              {Tier: capability.TierSoftReject},
		capability.SingleImageBase64:       {Supported: true},
		capability.MultipleImagesBase64:    {Tier: capability.TierHardSkip},
		capability.SingleImagePublicURL:    {Tier: capability.TierHardSkip},
		capability.MultipleImagesPublicURL: {Tier: capability.TierHardSkip},
	},
	Types: capability.ResponseTypes{
		Metadata: reflect.TypeFor[client.ResponseMetadata](),
		Usage:    reflect.TypeFor[client.TokenUsage](),
	},
})

func init() {
	client.Register(client.Family{Name: FamilyName, New: New, Profile: Profile})
}

// Client talks to the native ollama HTTP API.
type Client struct {
	http    *resty.Client
	baseURL string
	model   string
}

// New returns a client bound to cfg.Endpoint and cfg.ModelName.
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

	rc := client.NewRESTClient(FamilyName, cfg.Logger).
		SetBaseURL(cfg.Endpoint).
		SetTimeout(timeout)

	return &Client{http: rc, baseURL: cfg.Endpoint, model: cfg.ModelName}, nil
}

// Family implements client.Client.
func (c *Client) Family() string { return FamilyName }

// BaseURL implements client.Client.
func (c *Client) BaseURL() string { return c.baseURL }

// ModelName implements client.Client.
func (c *Client) ModelName() string { return c.model }

type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// ListModels returns the models installed on the server, as reported by
// GET /api/tags.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	var tags tagsResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&tags).Get("/api/tags")
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to list models: status %d: %s", resp.StatusCode(), resp.String())
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// refused lists the options the native API accepts but silently ignores.
var refused = map[capability.Capability]bool{
	capability.ToolChoiceRequired: true,
	capability.JSONSchema:         true,
}

// CheckParameters refuses forced tool calls and schema-constrained replies,
// which the native API would otherwise silently ignore. The decision never
// depends on a profile, so overriding the profile cannot hide a refusal.
func (c *Client) CheckParameters(p client.Parameters) error {
	for _, required := range p.RequiredCapabilities() {
		if refused[required] {
			return capability.Reject(FamilyName, required, "refused before sending")
		}
	}
	return nil
}
