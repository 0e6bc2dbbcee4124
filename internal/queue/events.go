// Package queue contains the RabbitMQ event shapes, the publisher used
// by the booking core's side-effect adapters, and the background
// consumer that delivers signed webhooks to tenant endpoints.
package queue

import "time"

// Queue names.  Routing uses the default exchange so the routing key is
// the queue name.
const (
	EmailQueueName   = "notify.email"
	TriggerQueueName = "automation.trigger"
	WebhookQueueName = "webhook.dispatch"
)

// EmailJob is one transactional email handed to the mail worker.
type EmailJob struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// TriggerEvent is one automation trigger handed to the marketing
// automation worker.
type TriggerEvent struct {
	Event     string         `json:"event"`
	MemberID  uint64         `json:"member_id"`
	Email     string         `json:"email"`
	FirstName string         `json:"first_name"`
	Data      map[string]any `json:"data,omitempty"`
	EmittedAt time.Time      `json:"emitted_at"`
}

// WebhookEnvelope is the JSON body POSTed to tenant endpoints.  The id
// is unique per event so receivers can deduplicate redeliveries.
type WebhookEnvelope struct {
	ID        string         `json:"id"`
	Event     string         `json:"event"`
	CreatedAt time.Time      `json:"created_at"`
	Data      map[string]any `json:"data"`
}

// WebhookJob pairs an envelope with the tenant whose endpoints receive
// it.  Endpoint resolution happens at delivery time so endpoints added
// after the event was queued still receive it.
type WebhookJob struct {
	TenantID uint64          `json:"tenant_id"`
	Envelope WebhookEnvelope `json:"envelope"`
}
