package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cyberorg/sparagliding-meshmap/config"
)

// FlyXCClient posts tracking payloads to a FlyXC endpoint.
type FlyXCClient struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

func NewFlyXCClient(cfg config.FlyXCConfig, timeout time.Duration) *FlyXCClient {
	return &FlyXCClient{
		url:        cfg.APIURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Deliver posts a JSON payload.
func (c *FlyXCClient) Deliver(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("flyxc POST: %w", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("flyxc HTTP %d: %s", resp.StatusCode, string(data))
	}
	return nil
}

// TrackingPoint is the position update sent to FlyXC.
type TrackingPoint struct {
	ID        string  `json:"id"`
	Name      string  `json:"name,omitempty"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Altitude  *int64  `json:"alt,omitempty"`
	Speed     *int64  `json:"speed,omitempty"`
	Time      int64   `json:"timeMs"`
}
