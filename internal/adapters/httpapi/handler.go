package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
	"github.com/atvirokodosprendimai/auditlog/internal/core/usecase"
)

type ctxKey string

const (
	timeFormat              = "2006-01-02T15:04:05.999999999Z07:00"
	callerCtxKey     ctxKey = "caller"
	maxJSONBodySize         = 1 << 20
	componentHTTPAPI        = "httpapi"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	audit   *usecase.AuditService
	auth    *usecase.AuthService
	log     logrus.FieldLogger
	metrics http.Handler
	observe func(http.Handler) http.Handler
	checks  map[string]HealthCheck
	proxies []netip.Prefix
}

type Option func(*Handler)

// WithMetrics mounts the scrape endpoint and the request instrumentation.
func WithMetrics(scrape http.Handler, instrument func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.metrics = scrape
		h.observe = instrument
	}
}

func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) { h.checks[name] = check }
}

// WithTrustedProxies lists the peers whose X-Forwarded-For and X-Real-IP
// headers are believed. Requests from anyone else keep their socket address.
func WithTrustedProxies(prefixes ...netip.Prefix) Option {
	return func(h *Handler) { h.proxies = append(h.proxies, prefixes...) }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(h *Handler) { h.log = l }
}

func NewHandler(audit *usecase.AuditService, auth *usecase.AuthService, opts ...Option) *Handler {
	h := &Handler{
		audit:  audit,
		auth:   auth,
		log:    logrus.StandardLogger(),
		checks: map[string]HealthCheck{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.realIP)
	r.Use(h.accessLog)
	r.Use(middleware.Recoverer)
	if h.observe != nil {
		r.Use(h.observe)
	}

	r.Get("/healthz", h.healthz)
	r.Get("/openapi.json", h.openapi)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireCaller)

		pr.Post("/v1/me/login", h.login)
		pr.Post("/v1/me/logout", h.logout)

		pr.Post("/v1/action-logs", h.createActionLog)
		pr.Get("/v1/action-logs", h.listActionLogs)

		pr.Post("/v1/system-events", h.createSystemEvent)
		pr.Get("/v1/system-events", h.listSystemEvents)
		pr.Post("/v1/system-events/{id}/resolve", h.resolveSystemEvent)

		pr.Post("/v1/data-change-logs", h.createDataChangeLog)
		pr.Get("/v1/data-change-logs", h.listDataChangeLogs)

		pr.Get("/v1/statistics", h.statistics)
		pr.Post("/v1/retention/cleanup", h.cleanup)
	})

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	writeJSON(w, status, map[string]any{"ok": status == http.StatusOK, "dependencies": deps})
}

func (h *Handler) openapi(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, openapiSpec())
}

func (h *Handler) requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			token = strings.TrimSpace(auth[7:])
		}

		caller, err := h.auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, usecase.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			h.internalError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), callerCtxKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) realIP(next http.Handler) http.Handler {
	forwarded := middleware.RealIP(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.fromTrustedProxy(r) {
			forwarded.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) fromTrustedProxy(r *http.Request) bool {
	if len(h.proxies) == 0 {
		return false
	}
	peer, err := netip.ParseAddrPort(r.RemoteAddr)
	if err != nil {
		return false
	}
	addr := peer.Addr().Unmap()
	for _, p := range h.proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}

func callerFromContext(ctx context.Context) domain.Caller {
	caller, _ := ctx.Value(callerCtxKey).(domain.Caller)
	return caller
}

func requestInfo(r *http.Request) usecase.RequestInfo {
	return usecase.RequestInfo{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
		RequestID: middleware.GetReqID(r.Context()),
	}
}

// clientIP strips the port left on direct connections.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be integer")
		return 0, false
	}
	return parsed, true
}

func parseWindow(w http.ResponseWriter, r *http.Request) (domain.TimeWindow, bool) {
	var window domain.TimeWindow
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"startDate", &window.StartDate}, {"endDate", &window.EndDate}} {
		raw := r.URL.Query().Get(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, p.name+" must be an RFC 3339 timestamp")
			return window, false
		}
		t = t.UTC()
		*p.dst = &t
	}
	return window, true
}

func parseBool(w http.ResponseWriter, r *http.Request, name string) (*bool, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be true or false")
		return nil, false
	}
	return &v, true
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		logrus.WithError(err).Error("encode json response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		logrus.WithError(err).Debug("write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func (h *Handler) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		body := map[string]any{"error": vErr.Error()}
		if vErr.Field != "" {
			body["field"] = vErr.Field
		}
		writeJSON(w, http.StatusBadRequest, body)
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.internalError(w, r, err)
	}
}

// internalError hides the cause from the client and records it as a system event.
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.WithError(err).WithFields(logrus.Fields{
		"method":     r.Method,
		"path":       r.URL.Path,
		"request_id": middleware.GetReqID(r.Context()),
	}).Error("request failed")

	if _, logErr := h.audit.LogSystemError(context.WithoutCancel(r.Context()), componentHTTPAPI, err, map[string]any{
		"method":    r.Method,
		"path":      r.URL.Path,
		"requestId": middleware.GetReqID(r.Context()),
	}); logErr != nil {
		h.log.WithError(logErr).Warn("record request failure")
	}
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}

func openapiSpec() map[string]any {
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "auditlog",
			"version": "1.0.0",
		},
		"paths": map[string]any{
			"/v1/me/login":  map[string]any{"post": map[string]any{"summary": "Record a login of the caller"}},
			"/v1/me/logout": map[string]any{"post": map[string]any{"summary": "Record a logout of the caller"}},
			"/v1/action-logs": map[string]any{
				"post": map[string]any{"summary": "Record an action"},
				"get":  map[string]any{"summary": "Query action logs"},
			},
			"/v1/system-events": map[string]any{
				"post": map[string]any{"summary": "Create a system event"},
				"get":  map[string]any{"summary": "Query system events"},
			},
			"/v1/system-events/{id}/resolve": map[string]any{
				"post": map[string]any{"summary": "Resolve an open system event"},
			},
			"/v1/data-change-logs": map[string]any{
				"post": map[string]any{"summary": "Record a data change"},
				"get":  map[string]any{"summary": "Query data change logs"},
			},
			"/v1/statistics":        map[string]any{"get": map[string]any{"summary": "Action log statistics"}},
			"/v1/retention/cleanup": map[string]any{"post": map[string]any{"summary": "Delete old action logs"}},
		},
	}
}
