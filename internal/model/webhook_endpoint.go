package model

import "time"

// WebhookEndpoint is a tenant-configured URL that receives signed JSON
// envelopes for booking events.  The per-endpoint secret signs the
// request body with HMAC-SHA256.
type WebhookEndpoint struct {
	ID        uint64    // webhook_endpoints.id
	TenantID  uint64    // webhook_endpoints.tenant_id
	URL       string    // webhook_endpoints.url
	Secret    string    // webhook_endpoints.secret
	IsActive  bool      // webhook_endpoints.is_active
	CreatedAt time.Time // webhook_endpoints.created_at
}
