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

package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cloudbday/cloudbday/internal/audit"
	"github.com/cloudbday/cloudbday/internal/auth"
	"github.com/cloudbday/cloudbday/internal/observability/logger"
	"github.com/cloudbday/cloudbday/internal/tenant"
)

// Tenant Access Rules:
// 1. The namespace is taken from the URL and must equal the token namespace
// 2. The token subject must be an administrator of that tenant
// 3. A namespace that was never configured accepts any admin token minted
//    for it, so the first setup can happen

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.DebugContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.Actor(GetActor(r.Context())),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// SchedulerAuth admits requests carrying a scheduler token.
func (h *Handler) SchedulerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := h.verify(w, r, auth.RoleScheduler)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// AdminAuth admits tenant administrators of the {namespace} URL parameter.
func (h *Handler) AdminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := h.verify(w, r, auth.RoleAdmin)
		if !ok {
			return
		}
		ctx := withClaims(r.Context(), claims)
		namespace := chi.URLParam(r, "namespace")

		if claims.Namespace != namespace {
			h.denied(r.WithContext(ctx), namespace, "namespace_mismatch")
			respondError(w, http.StatusForbidden, "token is not valid for this tenant")
			return
		}

		t, err := h.tenants.Get(ctx, namespace)
		switch {
		case errors.Is(err, tenant.ErrNotConfigured):
			// first setup
		case err != nil:
			slog.ErrorContext(ctx, "failed to load tenant for authorization", logger.Namespace(namespace), logger.Error(err))
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		case !tenant.IsAdministrator(t, claims.Email()):
			h.denied(r.WithContext(ctx), namespace, "not_administrator")
			respondError(w, http.StatusForbidden, "not an administrator of this tenant")
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request, role auth.Role) (*auth.Claims, bool) {
	raw, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		respondError(w, http.StatusUnauthorized, "bearer token required")
		return nil, false
	}
	claims, err := h.issuer.Require(raw, role)
	if err != nil {
		if errors.Is(err, auth.ErrWrongRole) {
			respondError(w, http.StatusForbidden, "token role not permitted")
			return nil, false
		}
		respondError(w, http.StatusUnauthorized, "invalid or expired token")
		return nil, false
	}
	return claims, true
}

func (h *Handler) denied(r *http.Request, namespace, reason string) {
	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeAccessDenied,
		Namespace: namespace,
		Actor:     GetActor(r.Context()),
		Resource:  r.Method + " " + r.URL.Path,
		IPAddress: getIPAddress(r),
		Metadata:  map[string]any{"reason": reason},
	})
}
