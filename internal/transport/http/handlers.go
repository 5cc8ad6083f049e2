package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/cloudbday/cloudbday/internal/audit"
	"github.com/cloudbday/cloudbday/internal/auth"
	"github.com/cloudbday/cloudbday/internal/importer"
	"github.com/cloudbday/cloudbday/internal/notify"
	"github.com/cloudbday/cloudbday/internal/observability/logger"
	"github.com/cloudbday/cloudbday/internal/person"
	"github.com/cloudbday/cloudbday/internal/syncjob"
	"github.com/cloudbday/cloudbday/internal/tenant"
	"github.com/cloudbday/cloudbday/internal/validation"
)

// HealthCheck is a named dependency probe reported by /health.
type HealthCheck func(ctx context.Context) error

// Handler holds HTTP handlers and dependencies
type Handler struct {
	tenants     *tenant.Registry
	people      *person.Service
	notifier    *notify.Notifier
	directory   *syncjob.Directory
	calendar    *syncjob.Calendar
	issuer      *auth.Issuer
	auditLogger audit.Logger
	maxUpload   int64
	checks      map[string]HealthCheck
	now         func() time.Time
}

// Options tunes a Handler.
type Options struct {
	MaxUploadBytes int64
	HealthChecks   map[string]HealthCheck
}

// NewHandler creates a new HTTP handler
func NewHandler(
	tenants *tenant.Registry,
	people *person.Service,
	notifier *notify.Notifier,
	directory *syncjob.Directory,
	calendar *syncjob.Calendar,
	issuer *auth.Issuer,
	auditLogger audit.Logger,
	opts Options,
) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	return &Handler{
		tenants:     tenants,
		people:      people,
		notifier:    notifier,
		directory:   directory,
		calendar:    calendar,
		issuer:      issuer,
		auditLogger: auditLogger,
		maxUpload:   opts.MaxUploadBytes,
		checks:      opts.HealthChecks,
		now:         time.Now,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.HealthCheck)

	// Cross-tenant triggers, called by cmd/scheduler or an external cron.
	r.Route("/tasks", func(r chi.Router) {
		r.Use(h.SchedulerAuth)
		r.Post("/birthdays/send", h.SendBirthdays)
		r.Post("/profiles/sync", h.SyncProfiles)
		r.Post("/calendar/sync", h.SyncCalendar)
	})

	r.Route("/api/v1/tenants/{namespace}", func(r chi.Router) {
		r.Use(h.AdminAuth)

		r.Get("/", h.GetTenant)
		r.Put("/", h.SaveTenant)
		r.Delete("/", h.DeleteTenant)

		r.Route("/people", func(r chi.Router) {
			r.Get("/", h.ListPeople)
			r.Get("/birthdays", h.MatchBirthdays)
			r.Post("/import", h.ImportPeople)
			r.Get("/import/template", h.ImportTemplate)
			r.Put("/{email}", h.UpsertPerson)
			r.Delete("/{email}", h.DeletePerson)
		})
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(h.checks))

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := h.checks[name](ctx)
		cancel()
		if err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]any{
		"status":  "healthy",
		"service": "cloudbday",
	}
	if status != http.StatusOK {
		body["status"] = "unhealthy"
	}
	if len(checks) > 0 {
		body["checks"] = checks
	}
	respondJSON(w, status, body)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondErr maps domain errors to status codes. Unknown errors are logged
// and reported as 500 without detail.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation_failed",
			"fields": verr.Fields,
		})
	case errors.Is(err, tenant.ErrNotConfigured):
		respondError(w, http.StatusNotFound, "tenant_not_configured")
	case errors.Is(err, person.ErrNotFound):
		respondError(w, http.StatusNotFound, "person_not_found")
	case errors.Is(err, importer.ErrNoRows), errors.Is(err, importer.ErrMissingColumn):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed",
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func getIPAddress(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
