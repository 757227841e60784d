package httpapi

import (
	"net/http"
)

type cleanupRequest struct {
	RetentionDays int `json:"retentionDays"`
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	window, ok := parseWindow(w, r)
	if !ok {
		return
	}
	stats, err := h.audit.GetStatistics(r.Context(), callerFromContext(r.Context()), window)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) cleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.audit.Cleanup(r.Context(), callerFromContext(r.Context()), req.RetentionDays)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deletedCount": res.DeletedCount,
		"cutoff":       formatTime(res.Cutoff),
	})
}
