package observability

import (
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Audit logs one auth-relevant HTTP outcome for userID. It complements the
// persisted security event log; nothing reads these lines back.
func Audit(r *http.Request, event string, userID uint, attrs ...slog.Attr) {
	ctx := r.Context()
	base := []slog.Attr{
		slog.String("event", event),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("request_id", chimiddleware.GetReqID(ctx)),
		slog.Group("http",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr),
		),
	}
	slog.LogAttrs(ctx, slog.LevelInfo, "auth audit", append(base, attrs...)...)
}
