package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"pulsepoint/internal/infra/metrics"
)

// ViewerHeader содержит идентификатор пользователя, проставленный шлюзом авторизации.
const ViewerHeader = "X-Viewer-ID"

type viewerKey struct{}

// RequestLogger пишет строку лога и метрику на каждый запрос.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			latency := time.Since(start)
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(latency.Seconds())

			event := logger.Info()
			if status >= http.StatusInternalServerError {
				event = logger.Error()
			}
			event.
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", latency).
				Str("client_ip", r.RemoteAddr).
				Msg("request")
		})
	}
}

// Viewer извлекает идентификатор пользователя из заголовка и кладёт его в контекст.
func Viewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(ViewerHeader))
		if id != "" {
			r = r.WithContext(WithViewerID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// WithViewerID возвращает контекст с идентификатором пользователя.
func WithViewerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, viewerKey{}, id)
}

// ViewerID возвращает идентификатор пользователя или пустую строку для анонима.
func ViewerID(ctx context.Context) string {
	id, _ := ctx.Value(viewerKey{}).(string)
	return id
}
