package worker

import (
	"encoding/json"

	"github.com/bwmarrin/snowflake"
)

// OrderJobPayload is the envelope the webhook intake enqueues. RawPayload is
// the platform order body exactly as received; the worker owns all parsing.
type OrderJobPayload struct {
	TenantID    snowflake.ID    `json:"tenantId"`
	DeliveryID  string          `json:"deliveryId"`
	Topic       string          `json:"topic"`
	AccessToken string          `json:"accessToken,omitempty"`
	RawPayload  json.RawMessage `json:"rawPayload"`
}
