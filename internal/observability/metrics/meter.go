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

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter metric.Meter
}

// New creates a new meter instance. The global meter provider supplies the
// exporter; a disabled config yields a no-op meter.
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return &Meter{meter: noop.NewMeterProvider().Meter("noop")}, nil
	}
	return &Meter{meter: otel.Meter(serviceName)}, nil
}

// NewFromProvider builds a meter on an explicit provider.
func NewFromProvider(p metric.MeterProvider, serviceName string) *Meter {
	return &Meter{meter: p.Meter(serviceName)}
}

// GetMeter returns the underlying meter
func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}

// CreateCounter creates a new counter metric
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

// CreateHistogram creates a new histogram metric
func (m *Meter) CreateHistogram(name, description, unit string) (metric.Float64Histogram, error) {
	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return histogram, nil
}

// Instruments are the application counters. A nil *Instruments records
// nothing, so components can run without metrics.
type Instruments struct {
	notificationsEnqueued metric.Int64Counter
	mailsSent             metric.Int64Counter
	syncUpserts           metric.Int64Counter
	rowsImported          metric.Int64Counter
	eventsCreated         metric.Int64Counter
	taskDuration          metric.Float64Histogram
}

// NewInstruments registers the application instruments on m.
func NewInstruments(m *Meter) (*Instruments, error) {
	var (
		in  Instruments
		err error
	)
	if in.notificationsEnqueued, err = m.CreateCounter("cloudbday.notifications.enqueued", "Birthday mail tasks enqueued by the daily sweep"); err != nil {
		return nil, err
	}
	if in.mailsSent, err = m.CreateCounter("cloudbday.mails.sent", "Birthday mails handed to the transport"); err != nil {
		return nil, err
	}
	if in.syncUpserts, err = m.CreateCounter("cloudbday.sync.upserts", "Person records written by directory sync"); err != nil {
		return nil, err
	}
	if in.rowsImported, err = m.CreateCounter("cloudbday.import.rows", "Person rows written by bulk import"); err != nil {
		return nil, err
	}
	if in.eventsCreated, err = m.CreateCounter("cloudbday.calendar.events", "Yearly birthday events created in tenant calendars"); err != nil {
		return nil, err
	}
	if in.taskDuration, err = m.CreateHistogram("cloudbday.task.duration", "Task handler duration", "ms"); err != nil {
		return nil, err
	}
	return &in, nil
}

func nsAttr(ns string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("namespace", ns))
}

func (in *Instruments) NotificationsEnqueued(ctx context.Context, ns string, n int) {
	if in == nil || n == 0 {
		return
	}
	in.notificationsEnqueued.Add(ctx, int64(n), nsAttr(ns))
}

func (in *Instruments) MailSent(ctx context.Context, ns string) {
	if in == nil {
		return
	}
	in.mailsSent.Add(ctx, 1, nsAttr(ns))
}

func (in *Instruments) SyncUpserts(ctx context.Context, ns string, n int) {
	if in == nil || n == 0 {
		return
	}
	in.syncUpserts.Add(ctx, int64(n), nsAttr(ns))
}

func (in *Instruments) RowsImported(ctx context.Context, ns string, n int) {
	if in == nil || n == 0 {
		return
	}
	in.rowsImported.Add(ctx, int64(n), nsAttr(ns))
}

func (in *Instruments) EventsCreated(ctx context.Context, ns string) {
	if in == nil {
		return
	}
	in.eventsCreated.Add(ctx, 1, nsAttr(ns))
}

// TaskDuration records how long a task handler ran.
func (in *Instruments) TaskDuration(ctx context.Context, kind string, ms float64, failed bool) {
	if in == nil {
		return
	}
	in.taskDuration.Record(ctx, ms, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("failed", failed),
	))
}
