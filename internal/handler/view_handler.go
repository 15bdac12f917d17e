package handler

import (
	"net/http"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Stateful dashboard view
// ============================================================

type viewResponse struct {
	Filters filtersResponse `json:"filters"`
	service.Page
}

type filtersResponse struct {
	Status    domain.Status `json:"status"`
	Search    string        `json:"search"`
	StartDate string        `json:"startDate"`
	EndDate   string        `json:"endDate"`
}

// filtersRequest is a partial update; absent fields stay as they are.
type filtersRequest struct {
	Status    *domain.Status `json:"status"`
	Search    *string        `json:"search"`
	StartDate *string        `json:"startDate"`
	EndDate   *string        `json:"endDate"`
}

type pageRequest struct {
	Page int `json:"page"`
}

func currentView(console *service.Console) viewResponse {
	c := console.Filters.Criteria()
	return viewResponse{
		Filters: filtersResponse{
			Status:    c.Status,
			Search:    c.Search,
			StartDate: domain.FormatDate(c.StartDate),
			EndDate:   domain.FormatDate(c.EndDate),
		},
		Page: console.CurrentPage(),
	}
}

func viewHandler(console *service.Console) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, currentView(console))
	}
}

// viewFiltersHandler changes any of the filters. Any change goes back to page 1.
func viewFiltersHandler(console *service.Console, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req filtersRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		next := console.Filters.Criteria()
		if req.Status != nil {
			if *req.Status != "" && !req.Status.Valid() {
				handleServiceError(w, &domain.ErrValidation{Field: "status", Message: "must be one of Open, In Analysis, Resolved"}, logger)
				return
			}
			next.Status = *req.Status
		}
		if req.Search != nil {
			next.Search = *req.Search
		}
		if req.StartDate != nil {
			d, err := domain.ParseDate(*req.StartDate)
			if err != nil {
				handleServiceError(w, &domain.ErrValidation{Field: "startDate", Message: err.Error()}, logger)
				return
			}
			next.StartDate = d
		}
		if req.EndDate != nil {
			d, err := domain.ParseDate(*req.EndDate)
			if err != nil {
				handleServiceError(w, &domain.ErrValidation{Field: "endDate", Message: err.Error()}, logger)
				return
			}
			next.EndDate = d
		}

		console.Filters.SetCriteria(next)
		writeJSON(w, http.StatusOK, currentView(console))
	}
}

func viewPageHandler(console *service.Console, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pageRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		console.Filters.SetPage(req.Page)
		writeJSON(w, http.StatusOK, currentView(console))
	}
}

// viewExportHandler exports every row matching the current filters.
func viewExportHandler(console *service.Console, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeExport(w, r, console.ExportRows(console.Filters.Criteria()), logger)
	}
}
