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

// Package syncjob keeps person records and tenant calendars in line with
// Google Workspace. Every cross-tenant run fans out into one task per tenant
// so that a failing tenant is retried by the queue on its own.
package syncjob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudbday/cloudbday/internal/birthday"
	"github.com/cloudbday/cloudbday/internal/google"
	"github.com/cloudbday/cloudbday/internal/observability/logger"
	"github.com/cloudbday/cloudbday/internal/observability/metrics"
	"github.com/cloudbday/cloudbday/internal/person"
	"github.com/cloudbday/cloudbday/internal/task"
	"github.com/cloudbday/cloudbday/internal/tenant"
)

// Tenants is the tenant lookup the jobs need.
type Tenants interface {
	Get(ctx context.Context, namespace string) (*tenant.Tenant, error)
	Namespaces(ctx context.Context) ([]string, error)
}

// Profiles streams the directory feed of a tenant.
type Profiles interface {
	Profiles(ctx context.Context, namespace string, fn func(google.Profile) error) error
}

// Stats summarises one directory sync run.
type Stats struct {
	Seen      int `json:"seen"`
	Upserted  int `json:"upserted"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
}

// Directory copies birthdays from the profile feed into person records.
type Directory struct {
	tenants  Tenants
	people   *person.Service
	profiles Profiles
	queue    task.Queue
	metrics  *metrics.Instruments
	log      *slog.Logger
}

// NewDirectory creates the directory sync job. in may be nil.
func NewDirectory(tenants Tenants, people *person.Service, profiles Profiles, q task.Queue, in *metrics.Instruments) *Directory {
	return &Directory{
		tenants:  tenants,
		people:   people,
		profiles: profiles,
		queue:    q,
		metrics:  in,
		log:      slog.Default().With(logger.Component("syncjob.directory")),
	}
}

// Register binds the job's task handler.
func (j *Directory) Register(d *task.Dispatcher) {
	d.Register(task.KindDirectorySync, func(ctx context.Context, p task.Payload) error {
		_, err := j.SyncTenant(ctx, p.Namespace)
		return err
	})
}

// ScheduleAll enqueues one sync.directory task per tenant and returns how
// many were enqueued.
func (j *Directory) ScheduleAll(ctx context.Context) (int, error) {
	return scheduleEach(ctx, j.log, j.tenants, j.queue, task.KindDirectorySync, nil)
}

// SyncTenant upserts every profile of namespace that carries a birthday.
// Bad entries are logged and skipped; feed failures are returned.
func (j *Directory) SyncTenant(ctx context.Context, namespace string) (Stats, error) {
	var stats Stats

	t, err := j.tenants.Get(ctx, namespace)
	if err != nil {
		return stats, fmt.Errorf("load tenant: %w", err)
	}

	err = j.profiles.Profiles(ctx, namespace, func(p google.Profile) error {
		stats.Seen++
		if p.Birthday == "" {
			return nil
		}
		email := person.NormalizeEmail(p.Username() + "@" + t.Domain)
		log := j.log.With(logger.Namespace(namespace), logger.Email(email))

		date, err := birthday.ParseProfile(p.Birthday)
		if err != nil {
			stats.Skipped++
			log.Warn("skipping profile with unparseable birthday", logger.Birthday(p.Birthday), logger.Error(err))
			return nil
		}

		changes := person.Changes{}.WithDate(date)
		if p.GivenName != "" {
			changes.FirstName = &p.GivenName
		}
		if p.FamilyName != "" {
			changes.LastName = &p.FamilyName
		}
		if p.ResourceName != "" {
			changes.DirectoryID = &p.ResourceName
		}

		_, written, err := j.people.UpsertByEmail(ctx, namespace, email, changes)
		var verr *person.ValidationError
		switch {
		case errors.As(err, &verr):
			stats.Skipped++
			log.Warn("skipping invalid profile", logger.Error(err))
			return nil
		case err != nil:
			return err
		case written:
			stats.Upserted++
		default:
			stats.Unchanged++
		}
		return nil
	})
	j.metrics.SyncUpserts(ctx, namespace, stats.Upserted)
	if err != nil {
		return stats, fmt.Errorf("sync directory %s: %w", namespace, err)
	}

	j.log.Info("directory synced",
		logger.Namespace(namespace),
		logger.Count("seen", stats.Seen),
		logger.Count("upserted", stats.Upserted),
		logger.Count("skipped", stats.Skipped),
	)
	return stats, nil
}

// scheduleEach enqueues kind for every namespace accepted by keep. Failures
// for one tenant are logged and do not stop the others.
func scheduleEach(ctx context.Context, log *slog.Logger, tenants Tenants, q task.Queue, kind task.Kind, keep func(*tenant.Tenant) bool) (int, error) {
	namespaces, err := tenants.Namespaces(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tenants: %w", err)
	}

	enqueued := 0
	for _, ns := range namespaces {
		if keep != nil {
			t, err := tenants.Get(ctx, ns)
			if err != nil {
				log.Error("failed to load tenant", logger.Namespace(ns), logger.Error(err))
				continue
			}
			if !keep(t) {
				continue
			}
		}
		if _, err := task.Enqueue(ctx, q, kind, task.Payload{Namespace: ns}); err != nil {
			log.Error("failed to enqueue sync", logger.Namespace(ns), logger.TaskKind(string(kind)), logger.Error(err))
			continue
		}
		enqueued++
	}
	return enqueued, nil
}
