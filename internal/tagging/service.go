// Package tagging applies review tags to orders on the commerce platform.
// Calls are best-effort side effects of the pipeline.
package tagging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bwmarrin/snowflake"
)

// DuplicateTag marks an order pending merchant review on the platform.
const DuplicateTag = "potential-duplicate"

type Service interface {
	Tag(ctx context.Context, tenantID snowflake.ID, accessToken, sourceOrderID string, tags []string) error
}

type NoOpService struct{}

func (s *NoOpService) Tag(ctx context.Context, tenantID snowflake.ID, accessToken, sourceOrderID string, tags []string) error {
	return nil
}

// PlatformService tags orders through the platform REST API using the
// tenant's access token.
type PlatformService struct {
	baseURL    string
	httpClient *http.Client
}

func NewPlatformService(baseURL string) *PlatformService {
	return &PlatformService{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *PlatformService) Tag(ctx context.Context, tenantID snowflake.ID, accessToken, sourceOrderID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}

	body, err := json.Marshal(map[string]any{"tags": tags})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/orders/%s/tags", s.baseURL, url.PathEscape(sourceOrderID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("platform tag call returned status %d", resp.StatusCode)
	}
	return nil
}
