package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
)

type dataChangeRequest struct {
	TableName          string                `json:"tableName"`
	RecordID           string                `json:"recordId"`
	Operation          domain.Operation      `json:"operation"`
	ChangedFields      []string              `json:"changedFields,omitempty"`
	OldData            json.RawMessage       `json:"oldData,omitempty"`
	NewData            json.RawMessage       `json:"newData,omitempty"`
	ChangedBy          string                `json:"changedBy,omitempty"`
	Reason             string                `json:"reason,omitempty"`
	DataClassification domain.Classification `json:"dataClassification,omitempty"`
}

type dataChangeResponse struct {
	ID                 string                `json:"id"`
	CreatedAt          string                `json:"createdAt"`
	TableName          string                `json:"tableName"`
	RecordID           string                `json:"recordId"`
	Operation          domain.Operation      `json:"operation"`
	ChangedFields      []string              `json:"changedFields"`
	OldData            json.RawMessage       `json:"oldData,omitempty"`
	NewData            json.RawMessage       `json:"newData,omitempty"`
	ChangedBy          string                `json:"changedBy,omitempty"`
	Reason             string                `json:"reason,omitempty"`
	DataClassification domain.Classification `json:"dataClassification"`
	Actor              *domain.Actor         `json:"changedByUser,omitempty"`
}

func toDataChangeResponse(d domain.DataChangeLog) dataChangeResponse {
	fields := d.ChangedFields
	if fields == nil {
		fields = []string{}
	}
	return dataChangeResponse{
		ID:                 d.ID,
		CreatedAt:          formatTime(d.CreatedAt),
		TableName:          d.TableName,
		RecordID:           d.RecordID,
		Operation:          d.Operation,
		ChangedFields:      fields,
		OldData:            d.OldData,
		NewData:            d.NewData,
		ChangedBy:          d.ChangedBy,
		Reason:             d.Reason,
		DataClassification: d.DataClassification,
		Actor:              d.Actor,
	}
}

func (h *Handler) createDataChangeLog(w http.ResponseWriter, r *http.Request) {
	var req dataChangeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	entry, err := h.audit.CreateDataChangeLog(r.Context(), callerFromContext(r.Context()), domain.DataChangeLog{
		TableName:          req.TableName,
		RecordID:           req.RecordID,
		Operation:          req.Operation,
		ChangedFields:      req.ChangedFields,
		OldData:            req.OldData,
		NewData:            req.NewData,
		ChangedBy:          req.ChangedBy,
		Reason:             req.Reason,
		DataClassification: req.DataClassification,
	})
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDataChangeResponse(entry))
}

func (h *Handler) listDataChangeLogs(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	window, ok := parseWindow(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	entries, err := h.audit.FindDataChangeLogs(r.Context(), callerFromContext(r.Context()), domain.DataChangeFilter{
		TableName:  q.Get("tableName"),
		RecordID:   q.Get("recordId"),
		Operation:  domain.Operation(q.Get("operation")),
		ChangedBy:  q.Get("changedBy"),
		TimeWindow: window,
		Limit:      limit,
	})
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	result := make([]dataChangeResponse, 0, len(entries))
	for _, e := range entries {
		result = append(result, toDataChangeResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}
