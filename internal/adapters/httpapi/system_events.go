package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
)

type systemEventRequest struct {
	EventType   domain.SystemEventType `json:"eventType"`
	Severity    domain.Severity        `json:"severity"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Component   string                 `json:"component,omitempty"`
	Metadata    json.RawMessage        `json:"metadata,omitempty"`
	ErrorCode   string                 `json:"errorCode,omitempty"`
	StackTrace  string                 `json:"stackTrace,omitempty"`
}

type resolveRequest struct {
	ResolvedBy string `json:"resolvedBy,omitempty"`
	Resolution string `json:"resolution"`
}

type systemEventResponse struct {
	ID          string                 `json:"id"`
	CreatedAt   string                 `json:"createdAt"`
	EventType   domain.SystemEventType `json:"eventType"`
	Severity    domain.Severity        `json:"severity"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Component   string                 `json:"component,omitempty"`
	Metadata    json.RawMessage        `json:"metadata,omitempty"`
	ErrorCode   string                 `json:"errorCode,omitempty"`
	StackTrace  string                 `json:"stackTrace,omitempty"`
	IsResolved  bool                   `json:"isResolved"`
	ResolvedAt  *string                `json:"resolvedAt,omitempty"`
	ResolvedBy  string                 `json:"resolvedBy,omitempty"`
	Resolution  string                 `json:"resolution,omitempty"`
}

func toSystemEventResponse(e domain.SystemEvent) systemEventResponse {
	return systemEventResponse{
		ID:          e.ID,
		CreatedAt:   formatTime(e.CreatedAt),
		EventType:   e.EventType,
		Severity:    e.Severity,
		Title:       e.Title,
		Description: e.Description,
		Component:   e.Component,
		Metadata:    e.Metadata,
		ErrorCode:   e.ErrorCode,
		StackTrace:  e.StackTrace,
		IsResolved:  e.IsResolved,
		ResolvedAt:  formatTimePtr(e.ResolvedAt),
		ResolvedBy:  e.ResolvedBy,
		Resolution:  e.Resolution,
	}
}

func (h *Handler) createSystemEvent(w http.ResponseWriter, r *http.Request) {
	var req systemEventRequest
	if !decodeBody(w, r, &req) {
		return
	}

	event, err := h.audit.CreateSystemEvent(r.Context(), callerFromContext(r.Context()), domain.SystemEvent{
		EventType:   req.EventType,
		Severity:    req.Severity,
		Title:       req.Title,
		Description: req.Description,
		Component:   req.Component,
		Metadata:    req.Metadata,
		ErrorCode:   req.ErrorCode,
		StackTrace:  req.StackTrace,
	})
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSystemEventResponse(event))
}

func (h *Handler) listSystemEvents(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	window, ok := parseWindow(w, r)
	if !ok {
		return
	}
	resolved, ok := parseBool(w, r, "isResolved")
	if !ok {
		return
	}

	q := r.URL.Query()
	events, err := h.audit.FindSystemEvents(r.Context(), callerFromContext(r.Context()), domain.SystemEventFilter{
		EventType:  domain.SystemEventType(q.Get("eventType")),
		Severity:   domain.Severity(q.Get("severity")),
		Component:  q.Get("component"),
		IsResolved: resolved,
		TimeWindow: window,
		Limit:      limit,
	})
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	result := make([]systemEventResponse, 0, len(events))
	for _, e := range events {
		result = append(result, toSystemEventResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) resolveSystemEvent(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	event, err := h.audit.ResolveSystemEvent(r.Context(), callerFromContext(r.Context()), chi.URLParam(r, "id"), req.ResolvedBy, req.Resolution)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSystemEventResponse(event))
}
