package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tradefloor/tradefloor/internal/web/response"
)

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if a.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.deps.DB.PingContext(ctx); err != nil {
			a.log.Warn("health check failed", zap.Error(err))
			response.RenderServiceUnavailable(w, "database unreachable")
			return
		}
	}

	response.RenderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
