package tenant

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured is returned when no tenant record exists for a namespace.
	ErrNotConfigured = errors.New("tenant not configured")
	// ErrNoCredentials is returned when a tenant has no stored refresh token.
	ErrNoCredentials = errors.New("tenant has no credentials")
)

// Repository defines the interface for tenant storage. Get returns
// ErrNotConfigured when the namespace has no record.
type Repository interface {
	Get(ctx context.Context, namespace string) (*Tenant, error)
	Upsert(ctx context.Context, t *Tenant) error
	Delete(ctx context.Context, namespace string) error
	Namespaces(ctx context.Context) ([]string, error)
}
