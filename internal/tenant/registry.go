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

package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudbday/cloudbday/internal/audit"
	"github.com/cloudbday/cloudbday/internal/cache"
	"github.com/cloudbday/cloudbday/internal/observability/logger"
	"github.com/cloudbday/cloudbday/internal/validation"
)

// Sealer seals and opens credentials at rest.
type Sealer interface {
	Seal(namespace string, plaintext []byte) ([]byte, error)
	Open(namespace string, sealed []byte) ([]byte, error)
}

// CacheKey returns the cache key of a tenant record.
func CacheKey(namespace string) string {
	return "tenant:" + namespace
}

// Registry provides tenant configuration with a read-through cache.
type Registry struct {
	repo        Repository
	cache       cache.Cache
	sealer      Sealer
	validator   *validation.Validator
	auditLogger audit.Logger
	now         func() time.Time
}

// NewRegistry creates a new tenant registry
func NewRegistry(repo Repository, c cache.Cache, sealer Sealer, v *validation.Validator, auditLogger audit.Logger) *Registry {
	return &Registry{
		repo:        repo,
		cache:       c,
		sealer:      sealer,
		validator:   v,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// Get returns the tenant for namespace, loading it into the cache on a miss.
// A cache read failure falls through to the repository.
func (r *Registry) Get(ctx context.Context, namespace string) (*Tenant, error) {
	var t Tenant
	found, err := cache.GetJSON(ctx, r.cache, CacheKey(namespace), &t)
	if err != nil {
		slog.WarnContext(ctx, "tenant cache read failed", logger.Namespace(namespace), logger.Error(err))
	}
	if found {
		return &t, nil
	}

	loaded, err := r.repo.Get(ctx, namespace)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return nil, err
		}
		return nil, fmt.Errorf("load tenant %s: %w", namespace, err)
	}

	if err := cache.SetJSON(ctx, r.cache, CacheKey(namespace), loaded, 0); err != nil {
		slog.WarnContext(ctx, "tenant cache fill failed", logger.Namespace(namespace), logger.Error(err))
	}
	return loaded, nil
}

// Save validates req and upserts the tenant for namespace. The namespace
// argument always wins over anything in the request. The cache entry is
// deleted after the write; a failed delete is returned.
func (r *Registry) Save(ctx context.Context, namespace, actor string, req SaveRequest) (*Tenant, error) {
	existing, err := r.repo.Get(ctx, namespace)
	if err != nil && !errors.Is(err, ErrNotConfigured) {
		return nil, fmt.Errorf("load tenant %s: %w", namespace, err)
	}

	now := r.now().UTC()
	t := &Tenant{
		Namespace:      namespace,
		Domain:         req.Domain,
		Administrators: append([]string(nil), req.Administrators...),
		CustomerID:     req.CustomerID,
		CalendarID:     req.CalendarID,
		HTMLTemplate:   req.HTMLTemplate,
		TextTemplate:   req.TextTemplate,
		FromName:       req.FromName,
		ReplyTo:        req.ReplyTo,
		Subject:        req.Subject,
		Tags:           req.Tags,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if existing != nil {
		t.CreatedAt = existing.CreatedAt
		t.RefreshTokenSealed = existing.RefreshTokenSealed
	}

	normalize(t)
	if err := r.validator.Struct(t); err != nil {
		return nil, err
	}

	if req.RefreshToken != "" {
		sealed, err := r.sealer.Seal(namespace, []byte(req.RefreshToken))
		if err != nil {
			return nil, fmt.Errorf("seal refresh token: %w", err)
		}
		t.RefreshTokenSealed = sealed
	}

	if err := r.repo.Upsert(ctx, t); err != nil {
		return nil, fmt.Errorf("save tenant %s: %w", namespace, err)
	}
	if err := r.cache.Delete(ctx, CacheKey(namespace)); err != nil {
		return nil, fmt.Errorf("invalidate tenant cache %s: %w", namespace, err)
	}

	r.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeTenantSaved,
		Namespace: namespace,
		Actor:     actor,
		Resource:  "tenant",
		Metadata: map[string]any{
			"domain":            t.Domain,
			"calendar":          t.HasCalendar(),
			"credentials_saved": req.RefreshToken != "",
		},
	})
	return t, nil
}

// Delete removes the tenant for namespace. The cache entry is deleted even
// when the repository delete fails.
func (r *Registry) Delete(ctx context.Context, namespace, actor string) (err error) {
	defer func() {
		if cerr := r.cache.Delete(ctx, CacheKey(namespace)); cerr != nil {
			slog.ErrorContext(ctx, "tenant cache delete failed", logger.Namespace(namespace), logger.Error(cerr))
			if err == nil {
				err = fmt.Errorf("invalidate tenant cache %s: %w", namespace, cerr)
			}
		}
	}()

	if err := r.repo.Delete(ctx, namespace); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return err
		}
		return fmt.Errorf("delete tenant %s: %w", namespace, err)
	}

	r.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeTenantDeleted,
		Namespace: namespace,
		Actor:     actor,
		Resource:  "tenant",
	})
	return nil
}

// RefreshToken returns the plaintext OAuth refresh token of namespace.
func (r *Registry) RefreshToken(ctx context.Context, namespace string) (string, error) {
	t, err := r.Get(ctx, namespace)
	if err != nil {
		return "", err
	}
	if !t.HasCredentials() {
		return "", ErrNoCredentials
	}
	plain, err := r.sealer.Open(namespace, t.RefreshTokenSealed)
	if err != nil {
		return "", fmt.Errorf("open refresh token %s: %w", namespace, err)
	}
	return string(plain), nil
}

// Namespaces lists every configured namespace.
func (r *Registry) Namespaces(ctx context.Context) ([]string, error) {
	ns, err := r.repo.Namespaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return ns, nil
}
