package handler

import (
	"net/http"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// List configuration
// ============================================================

type listItemsRequest struct {
	Items []string `json:"items"`
}

type listItemRequest struct {
	Item string `json:"item"`
}

func getListsHandler(console *service.Console) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, console.View.Lists())
	}
}

func listNameParam(r *http.Request) (domain.ListName, error) {
	name := domain.ListName(chi.URLParam(r, "name"))
	if !name.Valid() {
		return name, &domain.ErrValidation{Field: "name", Message: "unknown list " + string(name)}
	}
	return name, nil
}

func setListHandler(console *service.Console, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/lists/{name}")
		defer span.End()

		name, err := listNameParam(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		var req listItemsRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := console.Orchestrator.SetList(ctx, name, req.Items); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, domain.WriteAccepted{ID: string(name), Status: "accepted"})
	}
}

func addListItemHandler(console *service.Console, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/lists/{name}/items")
		defer span.End()

		name, err := listNameParam(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		var req listItemRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := console.Orchestrator.AddListItem(ctx, name, req.Item); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, domain.WriteAccepted{ID: string(name), Status: "accepted"})
	}
}

func removeListItemHandler(console *service.Console, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/lists/{name}/items/{item}")
		defer span.End()

		name, err := listNameParam(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if err := console.Orchestrator.RemoveListItem(ctx, name, chi.URLParam(r, "item")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, domain.WriteAccepted{ID: string(name), Status: "accepted"})
	}
}
