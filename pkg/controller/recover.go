package controller

import (
	"net/http"
	"qrshield/pkg/logger"

	"go.uber.org/zap"
)

// WithRecover returns a middleware that recovers handler panics, logs them and
// answers 500 with a JSON error body.
func WithRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if p == http.ErrAbortHandler { //nolint: errorlint
				panic(p)
			}

			logger.Error(r.Context(), "recovered handler panic", zap.Any("panic", p), zap.Stack("stack"))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"ok":false,"error":{"code":"INTERNAL","message":"internal error"}}`))
		}()

		next.ServeHTTP(w, r)
	})
}
