package http

import (
	"net/http"
)

// SendBirthdays runs the daily sweep and enqueues today's mails.
func (h *Handler) SendBirthdays(w http.ResponseWriter, r *http.Request) {
	sum, err := h.notifier.Sweep(r.Context(), h.now())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, sum)
}

// SyncProfiles enqueues a directory sync per tenant.
func (h *Handler) SyncProfiles(w http.ResponseWriter, r *http.Request) {
	n, err := h.directory.ScheduleAll(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]int{"scheduled": n})
}

// SyncCalendar enqueues a calendar sync per tenant with a calendar.
func (h *Handler) SyncCalendar(w http.ResponseWriter, r *http.Request) {
	n, err := h.calendar.ScheduleAll(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]int{"scheduled": n})
}
