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
// Occurrences
// ============================================================

// listOccurrencesHandler filters the pushed list with the query criteria.
// It does not touch the console's stored filter state.
func listOccurrencesHandler(console *service.Console, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		criteria, err := parseCriteria(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, console.Occurrences(criteria, parsePage(r)))
	}
}

func exportOccurrencesHandler(console *service.Console, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		criteria, err := parseCriteria(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeExport(w, r, console.ExportRows(criteria), logger)
	}
}

func createOccurrenceHandler(console *service.Console, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/occurrences")
		defer span.End()

		var in domain.OccurrenceInput
		if !decodeJSON(w, r, &in) {
			return
		}

		id, err := console.Orchestrator.CreateOccurrence(ctx, in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("occurrence.id", id))
		writeJSON(w, http.StatusAccepted, domain.WriteAccepted{ID: id, Status: "accepted"})
	}
}

func updateOccurrenceHandler(console *service.Console, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/occurrences/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		var in domain.OccurrenceInput
		if !decodeJSON(w, r, &in) {
			return
		}

		if err := console.Orchestrator.UpdateOccurrence(ctx, id, in); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, domain.WriteAccepted{ID: id, Status: "accepted"})
	}
}

func deleteOccurrenceHandler(console *service.Console, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/occurrences/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		if err := console.Orchestrator.DeleteOccurrence(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, domain.WriteAccepted{ID: id, Status: "accepted"})
	}
}

// writeExport streams rows as CSV (default) or XLSX (?format=xlsx).
func writeExport(w http.ResponseWriter, r *http.Request, rows []domain.Occurrence, logger *zap.Logger) {
	var err error
	switch r.URL.Query().Get("format") {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+service.CSVFileName+`"`)
		err = service.ExportCSV(w, rows)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="`+service.XLSXFileName+`"`)
		err = service.ExportXLSX(w, rows)
	default:
		writeError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}
	if err != nil {
		// headers are already out; nothing more to tell the client
		logger.Error("export failed", zap.Error(err))
		return
	}
	logger.Info("occurrences exported", zap.Int("rows", len(rows)))
}
