// Copyright 2026 The CloudBDay Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cloudbday/cloudbday/internal/tenant"
)

// TenantRepository implements tenant.Repository
type TenantRepository struct {
	db *DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

const tenantColumns = `namespace, domain, administrators, customer_id, calendar_id,
	html_template, text_template, from_name, reply_to, subject, tags,
	refresh_token_sealed, created_at, updated_at`

// Get retrieves the tenant for namespace
func (r *TenantRepository) Get(ctx context.Context, namespace string) (*tenant.Tenant, error) {
	var t tenant.Tenant
	err := r.db.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE namespace = $1`, namespace).Scan(
		&t.Namespace, &t.Domain, &t.Administrators, &t.CustomerID, &t.CalendarID,
		&t.HTMLTemplate, &t.TextTemplate, &t.FromName, &t.ReplyTo, &t.Subject, &t.Tags,
		&t.RefreshTokenSealed, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrNotConfigured
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &t, nil
}

// Upsert inserts or replaces the tenant record keyed by namespace
func (r *TenantRepository) Upsert(ctx context.Context, t *tenant.Tenant) error {
	admins := t.Administrators
	if admins == nil {
		admins = []string{}
	}
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO tenants (`+tenantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (namespace) DO UPDATE SET
			domain = EXCLUDED.domain,
			administrators = EXCLUDED.administrators,
			customer_id = EXCLUDED.customer_id,
			calendar_id = EXCLUDED.calendar_id,
			html_template = EXCLUDED.html_template,
			text_template = EXCLUDED.text_template,
			from_name = EXCLUDED.from_name,
			reply_to = EXCLUDED.reply_to,
			subject = EXCLUDED.subject,
			tags = EXCLUDED.tags,
			refresh_token_sealed = EXCLUDED.refresh_token_sealed,
			updated_at = EXCLUDED.updated_at
	`,
		t.Namespace, t.Domain, admins, t.CustomerID, t.CalendarID,
		t.HTMLTemplate, t.TextTemplate, t.FromName, t.ReplyTo, t.Subject, tags,
		t.RefreshTokenSealed, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert tenant: %w", err)
	}
	return nil
}

// Delete removes the tenant record
func (r *TenantRepository) Delete(ctx context.Context, namespace string) error {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM tenants WHERE namespace = $1`, namespace)
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tenant.ErrNotConfigured
	}
	return nil
}

// Namespaces lists configured namespaces in order
func (r *TenantRepository) Namespaces(ctx context.Context) ([]string, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT namespace FROM tenants ORDER BY namespace`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	namespaces, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan tenants: %w", err)
	}
	return namespaces, nil
}
