package handler

import (
	"net/http"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/service"

	"go.uber.org/zap"
)

func sendNotificationHandler(console *service.Console, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/notifications")
		defer span.End()

		var req domain.NotificationRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		receipt, err := console.Relay.Send(ctx, req.Text)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, receipt)
	}
}
