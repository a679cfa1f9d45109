package response

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Body is the envelope every endpoint answers with.
type Body struct {
	Success bool     `json:"success"`
	Data    any      `json:"data,omitempty"`
	Error   *Failure `json:"error,omitempty"`
	Meta    Meta     `json:"meta"`
}

type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type Meta struct {
	RequestID string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
}

var now = time.Now

func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, r, status, Body{Success: true, Data: data})
}

func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	write(w, r, status, Body{Error: &Failure{Code: code, Message: message, Details: details}})
}

func write(w http.ResponseWriter, r *http.Request, status int, body Body) {
	body.Meta = Meta{RequestID: requestID(r), Timestamp: now().UTC()}
	h := w.Header()
	h.Set("Content-Type", "application/json")
	// bodies may carry tokens or account state
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.WarnContext(r.Context(), "response encode failed", "status", status, "error", err)
	}
}

func requestID(r *http.Request) string {
	if id := chimiddleware.GetReqID(r.Context()); id != "" {
		return id
	}
	if id := r.Header.Get(chimiddleware.RequestIDHeader); id != "" {
		return id
	}
	return "req-unknown"
}

// SetRetryAfter writes Retry-After in whole seconds, rounded up, minimum one.
func SetRetryAfter(w http.ResponseWriter, d time.Duration) {
	seconds := max(int64(math.Ceil(d.Seconds())), 1)
	w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
}
