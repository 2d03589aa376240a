package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const healthCheckTimeout = 3 * time.Second

// Healthz reports liveness. When check is set it must succeed for the
// service to count as healthy.
func Healthz(check func(context.Context) error, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := check(ctx); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "ServiceUnavailable", "資料庫連線異常")
				return
			}
		}
		writeSuccess(w, http.StatusOK, "ok", nil)
	}
}
