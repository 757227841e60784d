package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
)

type actionLogRequest struct {
	Action      domain.Action   `json:"action"`
	Entity      string          `json:"entity"`
	EntityID    string          `json:"entityId"`
	ActorID     string          `json:"actorId,omitempty"`
	ActorRole   domain.Role     `json:"actorRole,omitempty"`
	OldValues   json.RawMessage `json:"oldValues,omitempty"`
	NewValues   json.RawMessage `json:"newValues,omitempty"`
	Description string          `json:"description,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

type actionLogResponse struct {
	ID          string          `json:"id"`
	CreatedAt   string          `json:"createdAt"`
	Action      domain.Action   `json:"action"`
	Entity      string          `json:"entity"`
	EntityID    string          `json:"entityId"`
	ActorID     string          `json:"actorId,omitempty"`
	ActorRole   domain.Role     `json:"actorRole,omitempty"`
	OldValues   json.RawMessage `json:"oldValues,omitempty"`
	NewValues   json.RawMessage `json:"newValues,omitempty"`
	Description string          `json:"description,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	IPAddress   string          `json:"ipAddress,omitempty"`
	UserAgent   string          `json:"userAgent,omitempty"`
	RequestID   string          `json:"requestId,omitempty"`
	Actor       *domain.Actor   `json:"actor,omitempty"`
}

func toActionLogResponse(l domain.ActionLog) actionLogResponse {
	return actionLogResponse{
		ID:          l.ID,
		CreatedAt:   formatTime(l.CreatedAt),
		Action:      l.Action,
		Entity:      l.Entity,
		EntityID:    l.EntityID,
		ActorID:     l.ActorID,
		ActorRole:   l.ActorRole,
		OldValues:   l.OldValues,
		NewValues:   l.NewValues,
		Description: l.Description,
		Metadata:    l.Metadata,
		IPAddress:   l.IPAddress,
		UserAgent:   l.UserAgent,
		RequestID:   l.RequestID,
		Actor:       l.Actor,
	}
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	entry, err := h.audit.LogUserLogin(r.Context(), callerFromContext(r.Context()), requestInfo(r))
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActionLogResponse(entry))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	entry, err := h.audit.LogUserLogout(r.Context(), callerFromContext(r.Context()), requestInfo(r))
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActionLogResponse(entry))
}

func (h *Handler) createActionLog(w http.ResponseWriter, r *http.Request) {
	var req actionLogRequest
	if !decodeBody(w, r, &req) {
		return
	}

	info := requestInfo(r)
	entry, err := h.audit.CreateActionLog(r.Context(), callerFromContext(r.Context()), domain.ActionLog{
		Action:      req.Action,
		Entity:      req.Entity,
		EntityID:    req.EntityID,
		ActorID:     req.ActorID,
		ActorRole:   req.ActorRole,
		OldValues:   req.OldValues,
		NewValues:   req.NewValues,
		Description: req.Description,
		Metadata:    req.Metadata,
		IPAddress:   info.IPAddress,
		UserAgent:   info.UserAgent,
		RequestID:   middleware.GetReqID(r.Context()),
	})
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActionLogResponse(entry))
}

func (h *Handler) listActionLogs(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	window, ok := parseWindow(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	logs, err := h.audit.FindActionLogs(r.Context(), callerFromContext(r.Context()), domain.ActionLogFilter{
		ActorID:    q.Get("actorId"),
		Action:     domain.Action(q.Get("action")),
		Entity:     q.Get("entity"),
		EntityID:   q.Get("entityId"),
		TimeWindow: window,
		Limit:      limit,
	})
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	result := make([]actionLogResponse, 0, len(logs))
	for _, l := range logs {
		result = append(result, toActionLogResponse(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}
