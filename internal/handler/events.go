package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/VladKvetkin/settlement/internal/events"
	"github.com/VladKvetkin/settlement/internal/models"
	"github.com/VladKvetkin/settlement/internal/settlement"
	"go.uber.org/zap"
)

const maxEventSize = 1 << 20

func readEvent(res http.ResponseWriter, req *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(res, req.Body, maxEventSize))
	if err != nil || len(body) == 0 {
		zap.L().Info("cannot read event from request", zap.Error(err))

		writeJSON(res, http.StatusBadRequest, models.ErrorResponse{Error: "empty or unreadable event"})
		return nil, false
	}

	return body, true
}

func writeTriggerError(res http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, events.ErrInvalidEvent):
		status = http.StatusBadRequest
	case errors.Is(err, settlement.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, settlement.ErrTransactionConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		zap.L().Error("error handling event", zap.Error(err))
		writeJSON(res, status, models.ErrorResponse{Error: http.StatusText(status)})
		return
	}

	writeJSON(res, status, models.ErrorResponse{Error: err.Error()})
}

func (h *Handler) OrderCreated(res http.ResponseWriter, req *http.Request) {
	body, ok := readEvent(res, req)
	if !ok {
		return
	}

	event, err := events.DecodeOrderCreated(body)
	if err != nil {
		writeTriggerError(res, err)
		return
	}

	result, err := h.triggers.OrderCreated(req.Context(), event)
	if err != nil {
		writeTriggerError(res, err)
		return
	}

	writeJSON(res, http.StatusOK, result)
}

func (h *Handler) UserCreated(res http.ResponseWriter, req *http.Request) {
	body, ok := readEvent(res, req)
	if !ok {
		return
	}

	event, err := events.DecodeUserCreated(body)
	if err != nil {
		writeTriggerError(res, err)
		return
	}

	if err := h.triggers.UserCreated(req.Context(), event); err != nil {
		writeTriggerError(res, err)
		return
	}

	writeJSON(res, http.StatusOK, models.UserCreatedResponse{UserID: event.UserID})
}

func (h *Handler) ProductUpdated(res http.ResponseWriter, req *http.Request) {
	body, ok := readEvent(res, req)
	if !ok {
		return
	}

	event, err := events.DecodeProductUpdated(body)
	if err != nil {
		writeTriggerError(res, err)
		return
	}

	alerts, err := h.triggers.ProductUpdated(req.Context(), event)
	if err != nil {
		writeTriggerError(res, err)
		return
	}

	writeJSON(res, http.StatusOK, models.ProductUpdatedResponse{ProductID: event.ProductID, Alerts: alerts})
}
