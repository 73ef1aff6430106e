package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/VladKvetkin/settlement/internal/entities"
	"github.com/VladKvetkin/settlement/internal/models"
	"github.com/VladKvetkin/settlement/internal/storage"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	defaultFailuresLimit = 50
	maxFailuresLimit     = 500
)

func (h *Handler) GetSettlementFailures(res http.ResponseWriter, req *http.Request) {
	limit := defaultFailuresLimit

	if raw := req.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxFailuresLimit {
			writeJSON(res, http.StatusBadRequest, models.ErrorResponse{Error: "limit must be between 1 and 500"})
			return
		}

		limit = parsed
	}

	failures, err := h.storage.GetSettlementFailures(req.Context(), limit)
	if err != nil {
		zap.L().Info("error get settlement failures", zap.Error(err))

		res.WriteHeader(http.StatusInternalServerError)
		return
	}

	if failures == nil {
		failures = []entities.SettlementFailure{}
	}

	writeJSON(res, http.StatusOK, failures)
}

func (h *Handler) GetSettlement(res http.ResponseWriter, req *http.Request) {
	orderID := chi.URLParam(req, "orderID")

	marker, err := h.storage.GetSettlement(req.Context(), orderID)
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			res.WriteHeader(http.StatusNotFound)
			return
		}

		zap.L().Info("error get settlement", zap.String("order_id", orderID), zap.Error(err))

		res.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(res, http.StatusOK, marker)
}
