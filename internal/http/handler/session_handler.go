package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/todo-auth-core/internal/http/middleware"
	"github.com/sandeepkv93/todo-auth-core/internal/http/response"
	"github.com/sandeepkv93/todo-auth-core/internal/observability"
	"github.com/sandeepkv93/todo-auth-core/internal/repository"
	"github.com/sandeepkv93/todo-auth-core/internal/service"
)

type SessionHandler struct {
	auth service.AuthServiceInterface
}

func NewSessionHandler(auth service.AuthServiceInterface) *SessionHandler {
	return &SessionHandler{auth: auth}
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized", nil)
		return
	}
	sessions, err := h.auth.ListSessions(r.Context(), claims.UserID(), claims.SessionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []service.SessionView{}
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *SessionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized", nil)
		return
	}
	sessionID := strings.TrimSpace(chi.URLParam(r, "id"))
	if sessionID == "" {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "session id is required", nil)
		return
	}
	changed, err := h.auth.RevokeSession(r.Context(), claims.UserID(), sessionID, requestMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.session_revoked", claims.UserID(), slog.String("session_id", sessionID), slog.Bool("changed", changed))
	response.JSON(w, r, http.StatusOK, map[string]any{"sessionId": sessionID, "revoked": true})
}

func (h *SessionHandler) SecurityEvents(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized", nil)
		return
	}
	page, ok := parsePageRequest(w, r)
	if !ok {
		return
	}
	res, err := h.auth.SecurityEvents(r.Context(), claims.UserID(), page)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toSecurityEventPage(res))
}

func parsePageRequest(w http.ResponseWriter, r *http.Request) (repository.PageRequest, bool) {
	var req repository.PageRequest
	q := r.URL.Query()
	for name, dst := range map[string]*int{"page": &req.Page, "pageSize": &req.PageSize} {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", name+" must be a positive integer", nil)
			return req, false
		}
		*dst = n
	}
	return req, true
}
