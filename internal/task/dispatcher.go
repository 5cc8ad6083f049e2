package task

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cloudbday/cloudbday/internal/observability/logger"
	"github.com/cloudbday/cloudbday/internal/observability/metrics"
)

// HandlerFunc executes one task. A returned error hands the task back to the
// queue for redelivery.
type HandlerFunc func(ctx context.Context, p Payload) error

// Spanner starts a trace span for a task. *tracing.Tracer satisfies it.
type Spanner interface {
	Span(ctx context.Context, name, namespace string) (context.Context, trace.Span)
}

// Dispatcher routes tasks to handlers by kind.
type Dispatcher struct {
	spans    Spanner
	mu       sync.RWMutex
	handlers map[Kind]HandlerFunc
	metrics  *metrics.Instruments
}

// NewDispatcher creates an empty dispatcher. in may be nil.
func NewDispatcher(in *metrics.Instruments) *Dispatcher {
	return &Dispatcher{handlers: make(map[Kind]HandlerFunc), metrics: in}
}

// WithSpans makes Dispatch run every handler inside a span from s.
func (d *Dispatcher) WithSpans(s Spanner) *Dispatcher {
	d.spans = s
	return d
}

// Register binds a handler to kind, replacing any previous one.
func (d *Dispatcher) Register(kind Kind, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = h
}

// Kinds returns the registered kinds in sorted order.
func (d *Dispatcher) Kinds() []Kind {
	d.mu.RLock()
	defer d.mu.RUnlock()
	kinds := make([]Kind, 0, len(d.handlers))
	for k := range d.handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Dispatch decodes t and runs its handler.
func (d *Dispatcher) Dispatch(ctx context.Context, t Task) (err error) {
	d.mu.RLock()
	h, ok := d.handlers[t.Kind]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, t.Kind)
	}

	p, err := t.Decode()
	if err != nil {
		return err
	}

	if d.spans != nil {
		var span trace.Span
		ctx, span = d.spans.Span(ctx, "task "+string(t.Kind), p.Namespace)
		defer span.End()
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
		}()
	}

	start := time.Now()
	err = h(ctx, p)
	elapsed := time.Since(start)
	d.metrics.TaskDuration(ctx, string(t.Kind), float64(elapsed.Milliseconds()), err != nil)

	attrs := []any{
		logger.TaskKind(string(t.Kind)),
		logger.TaskID(t.ID),
		logger.Namespace(p.Namespace),
		logger.Duration(elapsed.Milliseconds()),
	}
	if err != nil {
		slog.ErrorContext(ctx, "task failed", append(attrs, logger.Error(err))...)
		return err
	}
	slog.DebugContext(ctx, "task completed", attrs...)
	return nil
}
