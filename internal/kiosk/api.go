package kiosk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/example/farmadisplay/internal/models"
)

const requestTimeout = 10 * time.Second

// Fetcher abstracts the admin server API so the runtime can be exercised
// against fakes.
type Fetcher interface {
	ResolveDisplay(ctx context.Context, displayID string) (string, error)
	FetchConfig(ctx context.Context, pharmacyID string) (*models.DisplayConfig, error)
	Heartbeat(ctx context.Context, deviceID string, hb HeartbeatRequest) error
}

// HeartbeatRequest is the liveness payload posted to the monitoring endpoint.
type HeartbeatRequest struct {
	SerialNumber    string `json:"serial_number"`
	Status          string `json:"status"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
}

// APIClient is the HTTP implementation of Fetcher.
type APIClient struct {
	baseURL string
	http    *http.Client
}

// NewAPIClient builds an APIClient for the given base URL.
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// ResolveDisplay maps an opaque display identifier to its pharmacy id.
func (c *APIClient) ResolveDisplay(ctx context.Context, displayID string) (string, error) {
	var pharmacy struct {
		ID string `json:"id"`
	}
	if err := c.getJSON(ctx, "/api/v1/pharmacies/by-display-id/"+displayID, &pharmacy); err != nil {
		return "", err
	}
	return pharmacy.ID, nil
}

// FetchConfig retrieves the pharmacy's current display configuration.
func (c *APIClient) FetchConfig(ctx context.Context, pharmacyID string) (*models.DisplayConfig, error) {
	var cfg models.DisplayConfig
	if err := c.getJSON(ctx, "/api/v1/display-config/"+pharmacyID, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Heartbeat reports device liveness.
func (c *APIClient) Heartbeat(ctx context.Context, deviceID string, hb HeartbeatRequest) error {
	body, err := json.Marshal(hb)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/devices/"+deviceID+"/heartbeat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("heartbeat: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *APIClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return json.Unmarshal(env.Data, out)
}
