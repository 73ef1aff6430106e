package handler

import (
	"errors"
	"net/http"

	"github.com/VladKvetkin/settlement/internal/models"
	"github.com/VladKvetkin/settlement/internal/storage"
	"go.uber.org/zap"
)

func (h *Handler) GetBalance(res http.ResponseWriter, req *http.Request) {
	userID := h.getUserIDFromReqContext(req)
	if userID == "" {
		res.WriteHeader(http.StatusUnauthorized)
		return
	}

	user, err := h.storage.GetUser(req.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			res.WriteHeader(http.StatusNotFound)
			return
		}

		zap.L().Info("error get user balance", zap.String("user_id", userID), zap.Error(err))

		res.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(res, http.StatusOK, models.GetBalanceResponse{
		UserID:        user.ID,
		LoyaltyPoints: user.LoyaltyPoints,
	})
}
