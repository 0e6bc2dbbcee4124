package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/slichti/studio-platform/internal/service"
)

// AmqpNotifier delivers transactional email by queuing EmailJob
// messages for the mail worker.  It implements service.Notifier.
type AmqpNotifier struct {
	pub *Publisher
}

// NewAmqpNotifier returns a Notifier backed by the publisher.
func NewAmqpNotifier(pub *Publisher) *AmqpNotifier { return &AmqpNotifier{pub: pub} }

var _ service.Notifier = (*AmqpNotifier)(nil)

// SendBookingConfirmation queues the booking confirmation email.
func (n *AmqpNotifier) SendBookingConfirmation(ctx context.Context, email string, info service.BookingConfirmation) error {
	html := "<p>Your spot in <strong>" + info.Title + "</strong> on " +
		info.StartsAt.UTC().Format("Mon, Jan 2 at 15:04 MST") + " is confirmed.</p>"
	if info.ZoomURL != nil && *info.ZoomURL != "" {
		html += `<p>Join online: <a href="` + *info.ZoomURL + `">` + *info.ZoomURL + `</a></p>`
	}
	return n.pub.Publish(ctx, EmailQueueName, EmailJob{
		To:      email,
		Subject: "You're booked: " + info.Title,
		HTML:    html,
	})
}

// SendGenericEmail queues an arbitrary email.
func (n *AmqpNotifier) SendGenericEmail(ctx context.Context, email, subject, html string) error {
	return n.pub.Publish(ctx, EmailQueueName, EmailJob{To: email, Subject: subject, HTML: html})
}

// AmqpTriggerDispatcher forwards automation triggers to the marketing
// worker queue.  It implements service.TriggerDispatcher.
type AmqpTriggerDispatcher struct {
	pub *Publisher
}

// NewAmqpTriggerDispatcher returns a TriggerDispatcher backed by the
// publisher.
func NewAmqpTriggerDispatcher(pub *Publisher) *AmqpTriggerDispatcher {
	return &AmqpTriggerDispatcher{pub: pub}
}

var _ service.TriggerDispatcher = (*AmqpTriggerDispatcher)(nil)

// DispatchTrigger queues one automation trigger event.
func (d *AmqpTriggerDispatcher) DispatchTrigger(ctx context.Context, event string, p service.TriggerPayload) error {
	return d.pub.Publish(ctx, TriggerQueueName, TriggerEvent{
		Event:     event,
		MemberID:  p.MemberID,
		Email:     p.Email,
		FirstName: p.FirstName,
		Data:      p.Data,
		EmittedAt: time.Now().UTC(),
	})
}

// AmqpWebhookDispatcher queues webhook envelopes for the delivery
// consumer.  It implements service.WebhookDispatcher.
type AmqpWebhookDispatcher struct {
	pub *Publisher
}

// NewAmqpWebhookDispatcher returns a WebhookDispatcher backed by the
// publisher.
func NewAmqpWebhookDispatcher(pub *Publisher) *AmqpWebhookDispatcher {
	return &AmqpWebhookDispatcher{pub: pub}
}

var _ service.WebhookDispatcher = (*AmqpWebhookDispatcher)(nil)

// Dispatch wraps the event in a signed-at-delivery envelope and queues
// it for the tenant's endpoints.
func (d *AmqpWebhookDispatcher) Dispatch(ctx context.Context, tenantID uint64, eventType string, data map[string]any) error {
	return d.pub.Publish(ctx, WebhookQueueName, WebhookJob{
		TenantID: tenantID,
		Envelope: WebhookEnvelope{
			ID:        "evt_" + uuid.NewString(),
			Event:     eventType,
			CreatedAt: time.Now().UTC(),
			Data:      data,
		},
	})
}
