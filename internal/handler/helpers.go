package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func parsePage(r *http.Request) int {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	return page
}

// parseCriteria reads status, search (or q), startDate and endDate.
func parseCriteria(r *http.Request) (service.Criteria, error) {
	q := r.URL.Query()
	c := service.Criteria{
		Status: domain.Status(strings.TrimSpace(q.Get("status"))),
		Search: q.Get("search"),
	}
	if c.Search == "" {
		c.Search = q.Get("q")
	}
	if c.Status != "" && !c.Status.Valid() {
		return c, &domain.ErrValidation{Field: "status", Message: "must be one of Open, In Analysis, Resolved"}
	}
	var err error
	if c.StartDate, err = domain.ParseDate(q.Get("startDate")); err != nil {
		return c, &domain.ErrValidation{Field: "startDate", Message: err.Error()}
	}
	if c.EndDate, err = domain.ParseDate(q.Get("endDate")); err != nil {
		return c, &domain.ErrValidation{Field: "endDate", Message: err.Error()}
	}
	return c, nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var validation *domain.ErrValidation
	var forbidden *domain.ErrForbidden
	var unauthorized *domain.ErrUnauthorized
	var notProvisioned *domain.ErrNotProvisioned
	var authErr *domain.ErrAuth
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &authErr):
		logger.Warn("auth error", zap.String("kind", authErr.Kind.String()), zap.Error(err))
		status := http.StatusUnauthorized
		switch authErr.Kind {
		case domain.AuthRateLimited:
			status = http.StatusTooManyRequests
		case domain.AuthDisabled:
			status = http.StatusForbidden
		case domain.AuthUnavailable:
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, errorResponse{Error: authErr.Message(), Code: authErr.Kind.String()})
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &forbidden):
		logger.Warn("forbidden access", zap.String("error", err.Error()))
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &notProvisioned):
		logger.Info("not provisioned", zap.String("email", notProvisioned.Email))
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.String("service", external.Service), zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream service error")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
