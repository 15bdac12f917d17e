package handler

import (
	"net/http"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// User profiles (administrators only)
// ============================================================

func listUsersHandler(console *service.Console) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users := console.View.Users()
		if users == nil {
			users = []domain.UserProfile{}
		}
		writeJSON(w, http.StatusOK, users)
	}
}

func createUserHandler(console *service.Console, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users")
		defer span.End()

		var in domain.UserInput
		if !decodeJSON(w, r, &in) {
			return
		}
		id, err := console.Orchestrator.CreateUser(ctx, in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("user.id", id))
		writeJSON(w, http.StatusAccepted, domain.WriteAccepted{ID: id, Status: "accepted"})
	}
}

func updateUserHandler(console *service.Console, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/users/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		var in domain.UserInput
		if !decodeJSON(w, r, &in) {
			return
		}
		if err := console.Orchestrator.UpdateUser(ctx, id, in); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, domain.WriteAccepted{ID: id, Status: "accepted"})
	}
}

func deleteUserHandler(console *service.Console, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/users/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		if err := console.Orchestrator.DeleteUser(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, domain.WriteAccepted{ID: id, Status: "accepted"})
	}
}
