package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"colorgame/adminapi"
	"colorgame/domain/services"
)

// Client provides access to the running engine's admin API
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new admin API client for the loopback port
func NewClient(port int) *Client {
	return NewClientWithURL(fmt.Sprintf("http://127.0.0.1:%d", port))
}

// NewClientWithURL creates a client for an explicit base URL
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CheckConnection verifies the admin API is accessible
func (c *Client) CheckConnection() error {
	resp, err := c.client.Get(c.baseURL + "/health")
	if err != nil {
		return fmt.Errorf("admin API not accessible: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("admin API returned status %d", resp.StatusCode)
	}

	return nil
}

// Rounds lists the active rounds
func (c *Client) Rounds() ([]adminapi.RoundSummary, error) {
	var rounds []adminapi.RoundSummary
	if _, err := c.do(http.MethodGet, "/admin/rounds", nil, &rounds); err != nil {
		return nil, fmt.Errorf("failed to get rounds: %w", err)
	}
	return rounds, nil
}

// ForceEnd resolves one round now
func (c *Client) ForceEnd(periodID string) (*adminapi.SettlementSummary, error) {
	var summary adminapi.SettlementSummary
	if _, err := c.do(http.MethodPost, "/admin/rounds/force-end", adminapi.ForceEndRequest{PeriodID: periodID}, &summary); err != nil {
		return nil, fmt.Errorf("failed to force-end round %s: %w", periodID, err)
	}
	return &summary, nil
}

// ForceEndAll resolves every active round now
func (c *Client) ForceEndAll() ([]adminapi.SettlementSummary, error) {
	var summaries []adminapi.SettlementSummary
	if _, err := c.do(http.MethodPost, "/admin/rounds/force-end", adminapi.ForceEndRequest{}, &summaries); err != nil {
		return summaries, fmt.Errorf("failed to force-end rounds: %w", err)
	}
	return summaries, nil
}

// Exposure returns the stakes of one round per outcome value
func (c *Client) Exposure(periodID string) (*adminapi.ExposureSummary, error) {
	var summary adminapi.ExposureSummary
	if _, err := c.do(http.MethodGet, "/admin/rounds/"+url.PathEscape(periodID)+"/exposure", nil, &summary); err != nil {
		return nil, fmt.Errorf("failed to get exposure of round %s: %w", periodID, err)
	}
	return &summary, nil
}

// SetManipulation sets the global flag or the override of one round
func (c *Client) SetManipulation(scope string, enabled bool) (*services.ManipulationState, error) {
	var state services.ManipulationState
	req := adminapi.ManipulationRequest{Scope: scope, Enabled: &enabled}
	if _, err := c.do(http.MethodPost, "/admin/manipulation", req, &state); err != nil {
		return nil, fmt.Errorf("failed to set manipulation: %w", err)
	}
	return &state, nil
}

// Manipulation returns the current manipulation flags
func (c *Client) Manipulation() (*services.ManipulationState, error) {
	var state services.ManipulationState
	if _, err := c.do(http.MethodGet, "/admin/manipulation", nil, &state); err != nil {
		return nil, fmt.Errorf("failed to get manipulation state: %w", err)
	}
	return &state, nil
}

// apiResponse mirrors adminapi.DebugResponse with a deferred payload
type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// do sends a request and decodes the payload into out. The payload of a
// failed response is still decoded when present.
func (c *Client) do(method, path string, body any, out any) (*apiResponse, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}

	if out != nil && len(apiResp.Data) > 0 {
		if err := json.Unmarshal(apiResp.Data, out); err != nil {
			return nil, fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	if !apiResp.Success {
		return &apiResp, fmt.Errorf("%s", apiResp.Error)
	}
	return &apiResp, nil
}
