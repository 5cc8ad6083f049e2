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

// Package notify finds the day's celebrants and sends their birthday mail.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudbday/cloudbday/internal/observability/logger"
	"github.com/cloudbday/cloudbday/internal/observability/metrics"
	"github.com/cloudbday/cloudbday/internal/person"
	"github.com/cloudbday/cloudbday/internal/task"
)

// Namespaces lists configured tenants.
type Namespaces interface {
	Namespaces(ctx context.Context) ([]string, error)
}

// Summary reports one sweep.
type Summary struct {
	Date     string `json:"date"`
	Tenants  int    `json:"tenants"`
	Enqueued int    `json:"enqueued"`
	Failed   int    `json:"failed"`
}

// Notifier runs the daily sweep.
type Notifier struct {
	tenants Namespaces
	people  *person.Service
	queue   task.Queue
	loc     *time.Location
	metrics *metrics.Instruments
	log     *slog.Logger
}

// NewNotifier creates a notifier evaluating "today" in loc. A nil loc means UTC.
func NewNotifier(tenants Namespaces, people *person.Service, q task.Queue, loc *time.Location, in *metrics.Instruments) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{
		tenants: tenants,
		people:  people,
		queue:   q,
		loc:     loc,
		metrics: in,
		log:     slog.Default().With(logger.Component("notify")),
	}
}

// Sweep enqueues one mail.birthday task per opted-in person of every tenant
// whose birthday is today. A failing tenant is logged and counted; the
// sweep continues with the next one.
func (n *Notifier) Sweep(ctx context.Context, now time.Time) (Summary, error) {
	today := now.In(n.loc)
	month, day := int(today.Month()), today.Day()
	sum := Summary{Date: today.Format("2006-01-02")}

	namespaces, err := n.tenants.Namespaces(ctx)
	if err != nil {
		return sum, fmt.Errorf("list tenants: %w", err)
	}

	for _, ns := range namespaces {
		sum.Tenants++
		enqueued, err := n.sweepTenant(ctx, ns, month, day)
		sum.Enqueued += enqueued
		n.metrics.NotificationsEnqueued(ctx, ns, enqueued)
		if err != nil {
			sum.Failed++
			n.log.Error("birthday sweep failed for tenant", logger.Namespace(ns), logger.Error(err))
		}
	}

	n.log.Info("birthday sweep finished",
		slog.String("date", sum.Date),
		logger.Count("tenants", sum.Tenants),
		logger.Count("enqueued", sum.Enqueued),
		logger.Count("failed", sum.Failed),
	)
	return sum, nil
}

func (n *Notifier) sweepTenant(ctx context.Context, ns string, month, day int) (int, error) {
	celebrants, err := n.people.MatchBirthdays(ctx, ns, month, day)
	if err != nil {
		return 0, err
	}
	enqueued := 0
	for _, p := range celebrants {
		n.log.Debug("found a celebrant", logger.Namespace(ns), logger.Email(p.Email))
		if _, err := task.Enqueue(ctx, n.queue, task.KindBirthdayMail, task.Payload{Namespace: ns, PersonID: p.ID}); err != nil {
			return enqueued, fmt.Errorf("enqueue mail for %s: %w", p.Email, err)
		}
		enqueued++
	}
	return enqueued, nil
}
