// Package enrichment fills missing customer contact fields from the commerce
// platform. Lookups are best effort; the pipeline continues with partial data
// when they fail.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Contact is the subset of platform customer data the matcher cares about.
type Contact struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Client interface {
	// FetchMissingContact looks up the customer behind an order. Returns nil
	// without error when the platform has nothing on file.
	FetchMissingContact(ctx context.Context, tenantID snowflake.ID, accessToken, customerID string) (*Contact, error)
}

type NoOpClient struct{}

func (c *NoOpClient) FetchMissingContact(ctx context.Context, tenantID snowflake.ID, accessToken, customerID string) (*Contact, error) {
	return nil, nil
}

type PlatformClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewPlatformClient(baseURL string) *PlatformClient {
	return &PlatformClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *PlatformClient) FetchMissingContact(ctx context.Context, tenantID snowflake.ID, accessToken, customerID string) (*Contact, error) {
	if customerID == "" {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/customers/%s", c.baseURL, url.PathEscape(customerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("platform customer call returned status %d", resp.StatusCode)
	}

	var payload struct {
		Customer Contact `json:"customer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return &payload.Customer, nil
}
