package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/infra/observability"
	"github.com/boddenberg/occurrence-console/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(console *service.Console, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(console))
	r.Get("/readyz", readyzHandler(console))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	if console == nil {
		return r
	}

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// Session
		// =============================================
		r.Post("/auth/sign-in", signInHandler(console, logger))
		r.Post("/auth/sign-out", signOutHandler(console, logger))
		r.Post("/auth/password-reset", passwordResetHandler(console, logger))
		r.Get("/auth/session", sessionHandler(console))

		r.Get("/status", statusHandler(console))

		// =============================================
		// Signed-in operator
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(RequireProfile(console.Session, logger))

			r.Get("/occurrences", listOccurrencesHandler(console, logger))
			r.Get("/occurrences/export", exportOccurrencesHandler(console, logger))
			r.Post("/occurrences", createOccurrenceHandler(console, logger))
			r.Put("/occurrences/{id}", updateOccurrenceHandler(console, logger))
			r.Delete("/occurrences/{id}", deleteOccurrenceHandler(console, logger))

			r.Get("/view", viewHandler(console))
			r.Patch("/view/filters", viewFiltersHandler(console, logger))
			r.Put("/view/page", viewPageHandler(console, logger))
			r.Get("/view/export", viewExportHandler(console, logger))

			r.Get("/lists", getListsHandler(console))
			r.Put("/lists/{name}", setListHandler(console, logger))
			r.Post("/lists/{name}/items", addListItemHandler(console, logger))
			r.Delete("/lists/{name}/items/{item}", removeListItemHandler(console, logger))

			r.Post("/notifications", sendNotificationHandler(console, logger))

			// =============================================
			// Administrators
			// =============================================
			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin(logger))

				r.Get("/users", listUsersHandler(console))
				r.Post("/users", createUserHandler(console, logger))
				r.Put("/users/{id}", updateUserHandler(console, logger))
				r.Delete("/users/{id}", deleteUserHandler(console, logger))
			})
		})
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func healthzHandler(console *service.Console) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "occurrence-console", Status: "healthy", LastChecked: now},
		}
		if console != nil {
			for _, s := range console.View.Status() {
				status := "healthy"
				if !s.Loaded {
					status = "degraded"
				}
				services = append(services, domain.ServiceHealth{
					Name: "subscription:" + s.Name, Status: status, LastChecked: now,
				})
			}
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

// readyzHandler reports ready once every subscription has delivered.
func readyzHandler(console *service.Console) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if console != nil {
			for _, s := range console.View.Status() {
				if !s.Loaded {
					writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "waiting", "slice": s.Name})
					return
				}
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func statusHandler(console *service.Console) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, console.Status())
	}
}
