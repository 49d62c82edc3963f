// Package client is an HTTP client for the flagdeck API, used by the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/TimurManjosov/flagdeck/internal/flags"
)

// Client is an HTTP client for the flagdeck API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ListFlags retrieves all registered flags.
func (c *Client) ListFlags(ctx context.Context) ([]flags.Definition, error) {
	var result struct {
		Flags []flags.Definition `json:"flags"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/flags", nil, &result); err != nil {
		return nil, err
	}
	return result.Flags, nil
}

// GetFlag retrieves a single flag by id.
func (c *Client) GetFlag(ctx context.Context, id string) (*flags.Definition, error) {
	var def flags.Definition
	if err := c.do(ctx, http.MethodGet, "/v1/flags/"+id, nil, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

// UpsertFlag creates or updates a flag.
func (c *Client) UpsertFlag(ctx context.Context, def flags.Definition) error {
	return c.do(ctx, http.MethodPost, "/v1/flags", def, nil)
}

// DeleteFlag removes a flag by id.
func (c *Client) DeleteFlag(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/flags/"+id, nil, nil)
}

// Evaluate resolves flags for a context. Empty flagIDs evaluates everything.
func (c *Client) Evaluate(ctx context.Context, ectx *flags.Context, flagIDs []string) (map[string]flags.Evaluation, error) {
	body := map[string]any{}
	if ectx != nil {
		body["context"] = ectx
	}
	if len(flagIDs) > 0 {
		body["flagIds"] = flagIDs
	}

	var result struct {
		Results map[string]flags.Evaluation `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/evaluate", body, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// SetOverride activates an override for a flag.
func (c *Client) SetOverride(ctx context.Context, flagID string, value any, variantID string, expiresAt *time.Time) error {
	body := map[string]any{"value": value}
	if variantID != "" {
		body["variantId"] = variantID
	}
	if expiresAt != nil {
		body["expiresAt"] = expiresAt
	}
	return c.do(ctx, http.MethodPut, "/v1/overrides/"+flagID, body, nil)
}

// RemoveOverride clears the override for a flag.
func (c *Client) RemoveOverride(ctx context.Context, flagID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/overrides/"+flagID, nil, nil)
}

// ClearOverrides removes every active override.
func (c *Client) ClearOverrides(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/v1/overrides", nil, nil)
}
