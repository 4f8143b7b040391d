package service

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/tipx/tipx/pkg/app/errors"
	apphttp "github.com/tipx/tipx/pkg/app/http"
)

const maxBodySize = 1 << 20 // 1MB

// Handler exposes the ledger service over HTTP
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler creates a new ledger HTTP handler
func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the ledger endpoints on the router
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := NewHandler(service, logger)
	r.Post("/api/contributions", apphttp.HandleError(h.record))
	r.Get("/api/patrons/{address}", apphttp.HandleError(h.patronDashboard))
	r.Get("/api/creators/{address}", apphttp.HandleError(h.creatorStats))
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}

	var req RecordRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}

	result, err := h.service.Record(r.Context(), &req)
	if err != nil {
		if apperrors.IsInternalError(err) {
			h.logger.Error("Record failed", zap.Error(err))
		}
		return err
	}

	return h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) patronDashboard(w http.ResponseWriter, r *http.Request) error {
	address := chi.URLParam(r, "address")

	dashboard, err := h.service.PatronDashboard(r.Context(), address)
	if err != nil {
		if apperrors.IsInternalError(err) {
			h.logger.Error("Patron dashboard failed", zap.String("address", address), zap.Error(err))
		}
		return err
	}

	return h.writeJSON(w, http.StatusOK, dashboard)
}

func (h *Handler) creatorStats(w http.ResponseWriter, r *http.Request) error {
	address := chi.URLParam(r, "address")

	stats, err := h.service.CreatorStats(r.Context(), address)
	if err != nil {
		if apperrors.IsInternalError(err) {
			h.logger.Error("Creator stats failed", zap.String("address", address), zap.Error(err))
		}
		return err
	}

	return h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}
