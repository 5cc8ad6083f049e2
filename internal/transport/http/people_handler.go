package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cloudbday/cloudbday/internal/audit"
	"github.com/cloudbday/cloudbday/internal/importer"
	"github.com/cloudbday/cloudbday/internal/person"
)

// ListPeople returns every person ordered by next birthday.
func (h *Handler) ListPeople(w http.ResponseWriter, r *http.Request) {
	people, err := h.people.Upcoming(r.Context(), chi.URLParam(r, "namespace"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"people": people})
}

// MatchBirthdays returns the opted-in people born on ?month=&day=.
func (h *Handler) MatchBirthdays(w http.ResponseWriter, r *http.Request) {
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		respondError(w, http.StatusBadRequest, "month must be between 1 and 12")
		return
	}
	day, err := strconv.Atoi(r.URL.Query().Get("day"))
	if err != nil || day < 1 || day > 31 {
		respondError(w, http.StatusBadRequest, "day must be between 1 and 31")
		return
	}

	people, err := h.people.MatchBirthdays(r.Context(), chi.URLParam(r, "namespace"), month, day)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"people": people})
}

// UpsertPerson creates or updates the person identified by {email}.
func (h *Handler) UpsertPerson(w http.ResponseWriter, r *http.Request) {
	email, err := emailParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid email in path")
		return
	}
	var changes person.Changes
	if err := decodeJSON(r, &changes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	namespace := chi.URLParam(r, "namespace")
	p, written, err := h.people.UpsertByEmail(r.Context(), namespace, email, changes)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if written {
		h.auditLogger.Log(r.Context(), audit.Event{
			Type:      audit.TypePersonUpserted,
			Namespace: namespace,
			Actor:     GetActor(r.Context()),
			Resource:  p.Email,
			IPAddress: getIPAddress(r),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"person": p, "written": written})
}

// DeletePerson removes the person identified by {email}.
func (h *Handler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	email, err := emailParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid email in path")
		return
	}

	namespace := chi.URLParam(r, "namespace")
	if err := h.people.Delete(r.Context(), namespace, email); err != nil {
		respondErr(w, r, err)
		return
	}
	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypePersonDeleted,
		Namespace: namespace,
		Actor:     GetActor(r.Context()),
		Resource:  person.NormalizeEmail(email),
		IPAddress: getIPAddress(r),
	})
	w.WriteHeader(http.StatusNoContent)
}

// ImportPeople bulk imports birthdays. The body is a JSON record list, a
// multipart form with a "file" field, or a raw CSV/XLSX upload.
func (h *Handler) ImportPeople(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	records, err := h.readImport(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
		case errors.Is(err, importer.ErrNoRows), errors.Is(err, importer.ErrMissingColumn):
			respondErr(w, r, err)
		default:
			respondError(w, http.StatusBadRequest, "unreadable import: "+err.Error())
		}
		return
	}

	namespace := chi.URLParam(r, "namespace")
	result, err := h.people.BulkImport(r.Context(), namespace, records)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypePeopleImported,
		Namespace: namespace,
		Actor:     GetActor(r.Context()),
		Resource:  "people",
		IPAddress: getIPAddress(r),
		Metadata: map[string]any{
			"rows":     len(records),
			"imported": result.Imported,
			"skipped":  len(result.Skipped),
		},
	})
	respondJSON(w, http.StatusOK, result)
}

type importRequest struct {
	Records []person.ImportRecord `json:"records"`
}

func (h *Handler) readImport(r *http.Request) ([]person.ImportRecord, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch {
	case mediaType == "application/json":
		var req importRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		if len(req.Records) == 0 {
			return nil, importer.ErrNoRows
		}
		return req.Records, nil

	case mediaType == "multipart/form-data":
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("read form file: %w", err)
		}
		defer file.Close()
		return importer.Read(file, importer.DetectFormat(header.Filename, header.Header.Get("Content-Type")))

	default:
		// excelize needs the whole workbook, so buffer the upload.
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		name := r.URL.Query().Get("filename")
		return importer.Read(bytes.NewReader(data), importer.DetectFormat(name, mediaType))
	}
}

// ImportTemplate serves the XLSX import template.
func (h *Handler) ImportTemplate(w http.ResponseWriter, r *http.Request) {
	data, err := importer.Template()
	if err != nil {
		respondErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="cloudbday_import_template.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func emailParam(r *http.Request) (string, error) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		return "", err
	}
	if !strings.Contains(email, "@") {
		return "", errors.New("missing @")
	}
	return email, nil
}
