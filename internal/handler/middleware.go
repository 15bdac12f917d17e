package handler

import (
	"context"
	"net/http"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"go.uber.org/zap"
)

type contextKey string

const profileKey contextKey = "profile"

// ProfileSource reports the resolved profile of the signed-in operator.
type ProfileSource interface {
	Profile() *domain.UserProfile
}

// RequireProfile rejects requests while no provisioned user is signed in and
// injects the profile into the request context.
func RequireProfile(session ProfileSource, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			profile := session.Profile()
			if profile == nil {
				logger.Warn("auth: no signed-in profile",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "sign in required")
				return
			}
			ctx := context.WithValue(r.Context(), profileKey, profile)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin lets only administrators through. Use after RequireProfile.
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ProfileFromContext(r.Context()).IsAdmin() {
				logger.Warn("auth: administrator role required", zap.String("path", r.URL.Path))
				writeError(w, http.StatusForbidden, "administrator role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ProfileFromContext extracts the signed-in profile from context.
func ProfileFromContext(ctx context.Context) *domain.UserProfile {
	p, _ := ctx.Value(profileKey).(*domain.UserProfile)
	return p
}
