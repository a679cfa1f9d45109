package response

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) Body {
	t.Helper()
	var out Body
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestJSONEnvelope(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = time.Now })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chimiddleware.RequestIDKey, "req-42"))
	rr := httptest.NewRecorder()
	JSON(rr, req, http.StatusCreated, map[string]string{"status": "ok"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("expected no-store, got %q", rr.Header().Get("Cache-Control"))
	}
	body := decodeBody(t, rr)
	if !body.Success || body.Error != nil {
		t.Fatalf("unexpected envelope %+v", body)
	}
	if body.Meta.RequestID != "req-42" || !body.Meta.Timestamp.Equal(fixed) {
		t.Fatalf("unexpected meta %+v", body.Meta)
	}
}

func TestErrorEnvelopeFallsBackToHeaderRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(chimiddleware.RequestIDHeader, "from-header")
	rr := httptest.NewRecorder()
	Error(rr, req, http.StatusLocked, "ACCOUNT_LOCKED", "locked", map[string]int{"retryAfter": 60})

	body := decodeBody(t, rr)
	if body.Success || body.Error == nil || body.Error.Code != "ACCOUNT_LOCKED" {
		t.Fatalf("unexpected envelope %+v", body)
	}
	if body.Meta.RequestID != "from-header" {
		t.Fatalf("expected header request id, got %q", body.Meta.RequestID)
	}

	rr = httptest.NewRecorder()
	Error(rr, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusNotFound, "SESSION_NOT_FOUND", "missing", nil)
	if got := decodeBody(t, rr).Meta.RequestID; got != "req-unknown" {
		t.Fatalf("expected placeholder request id, got %q", got)
	}
}

func TestSetRetryAfterRoundsUp(t *testing.T) {
	cases := map[time.Duration]string{
		0:                       "1",
		-time.Second:            "1",
		200 * time.Millisecond:  "1",
		1600 * time.Millisecond: "2",
		90 * time.Second:        "90",
	}
	for in, want := range cases {
		rr := httptest.NewRecorder()
		SetRetryAfter(rr, in)
		if got := rr.Header().Get("Retry-After"); got != want {
			t.Fatalf("SetRetryAfter(%s)=%q want %q", in, got, want)
		}
	}
}
