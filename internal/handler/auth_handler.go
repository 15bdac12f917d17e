package handler

import (
	"net/http"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Session
// ============================================================

func signInHandler(console *service.Console, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/sign-in")
		defer span.End()

		var req domain.SignInRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		view, err := console.SignIn(ctx, req.Email, req.Password)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		// an identity without a profile is routed back to sign-in, not rejected
		writeJSON(w, http.StatusOK, view)
	}
}

func signOutHandler(console *service.Console, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/sign-out")
		defer span.End()

		if err := console.SignOut(ctx); err != nil {
			// the local session is gone either way
			logger.Warn("sign-out reported an error", zap.Error(err))
		}
		writeJSON(w, http.StatusOK, console.Session.View())
	}
}

func passwordResetHandler(console *service.Console, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/password-reset")
		defer span.End()

		var req domain.PasswordResetRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := console.SendPasswordReset(ctx, req.Email); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
	}
}

func sessionHandler(console *service.Console) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, console.Session.View())
	}
}
