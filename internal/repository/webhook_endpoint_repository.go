package repository

import (
	"context"
	"database/sql"

	"github.com/slichti/studio-platform/internal/model"
)

// WebhookEndpointRepo stores the per-tenant webhook endpoints the
// dispatch consumer delivers to.
type WebhookEndpointRepo struct {
	db *sql.DB
}

// NewWebhookEndpointRepo returns a new WebhookEndpointRepo bound to the
// given database.
func NewWebhookEndpointRepo(db *sql.DB) *WebhookEndpointRepo {
	return &WebhookEndpointRepo{db: db}
}

// ListActiveByTenant returns the tenant's active endpoints.  An empty
// slice means the tenant has no webhook consumers and the event is
// dropped.
func (r *WebhookEndpointRepo) ListActiveByTenant(ctx context.Context, tenantID uint64) ([]model.WebhookEndpoint, error) {
	const q = `SELECT id, tenant_id, url, secret, is_active, created_at
               FROM webhook_endpoints WHERE tenant_id = ? AND is_active = 1`
	rows, err := r.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	endpoints := make([]model.WebhookEndpoint, 0)
	for rows.Next() {
		var e model.WebhookEndpoint
		if err := rows.Scan(&e.ID, &e.TenantID, &e.URL, &e.Secret, &e.IsActive, &e.CreatedAt); err != nil {
			return nil, err
		}
		endpoints = append(endpoints, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return endpoints, nil
}

// Create registers a new endpoint for a tenant and populates the
// generated id.
func (r *WebhookEndpointRepo) Create(ctx context.Context, e *model.WebhookEndpoint) error {
	const q = `INSERT INTO webhook_endpoints (tenant_id, url, secret, is_active) VALUES (?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q, e.TenantID, e.URL, e.Secret, e.IsActive)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}
