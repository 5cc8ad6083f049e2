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
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cloudbday/cloudbday/internal/tenant"
)

// TenantResponse is the public view of a tenant. The sealed credential is
// reduced to a flag.
type TenantResponse struct {
	Namespace      string    `json:"namespace"`
	Domain         string    `json:"domain"`
	Administrators []string  `json:"administrators"`
	CustomerID     string    `json:"customer_id,omitempty"`
	CalendarID     string    `json:"calendar_id,omitempty"`
	HTMLTemplate   string    `json:"html_template,omitempty"`
	TextTemplate   string    `json:"text_template,omitempty"`
	FromName       string    `json:"from_name,omitempty"`
	ReplyTo        string    `json:"reply_to,omitempty"`
	Subject        string    `json:"subject"`
	Tags           []string  `json:"tags,omitempty"`
	HasCredentials bool      `json:"has_credentials"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func newTenantResponse(t *tenant.Tenant) TenantResponse {
	return TenantResponse{
		Namespace:      t.Namespace,
		Domain:         t.Domain,
		Administrators: t.Administrators,
		CustomerID:     t.CustomerID,
		CalendarID:     t.CalendarID,
		HTMLTemplate:   t.HTMLTemplate,
		TextTemplate:   t.TextTemplate,
		FromName:       t.FromName,
		ReplyTo:        t.ReplyTo,
		Subject:        t.MailSubject(),
		Tags:           t.Tags,
		HasCredentials: t.HasCredentials(),
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

// GetTenant returns the tenant configuration
// @Summary Get Tenant
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param namespace path string true "Tenant namespace"
// @Success 200 {object} TenantResponse
// @Failure 404 {object} map[string]string
// @Router /tenants/{namespace} [get]
func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.tenants.Get(r.Context(), chi.URLParam(r, "namespace"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newTenantResponse(t))
}

// SaveTenant creates or replaces the tenant configuration
// @Summary Save Tenant
// @Description Upsert the tenant. An omitted refresh_token keeps the stored one.
// @Tags Tenant
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param namespace path string true "Tenant namespace"
// @Param request body tenant.SaveRequest true "Tenant settings"
// @Success 200 {object} TenantResponse
// @Failure 400 {object} map[string]any
// @Router /tenants/{namespace} [put]
func (h *Handler) SaveTenant(w http.ResponseWriter, r *http.Request) {
	var req tenant.SaveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := h.tenants.Save(r.Context(), chi.URLParam(r, "namespace"), GetActor(r.Context()), req)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newTenantResponse(t))
}

// DeleteTenant removes the tenant configuration
// @Summary Delete Tenant
// @Tags Tenant
// @Security BearerAuth
// @Param namespace path string true "Tenant namespace"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /tenants/{namespace} [delete]
func (h *Handler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	if err := h.tenants.Delete(r.Context(), chi.URLParam(r, "namespace"), GetActor(r.Context())); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
