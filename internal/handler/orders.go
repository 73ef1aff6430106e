package handler

import (
	"net/http"
	"time"

	"github.com/VladKvetkin/settlement/internal/models"
	"github.com/VladKvetkin/settlement/internal/points"
	"go.uber.org/zap"
)

func (h *Handler) GetOrders(res http.ResponseWriter, req *http.Request) {
	userID := h.getUserIDFromReqContext(req)
	if userID == "" {
		res.WriteHeader(http.StatusUnauthorized)
		return
	}

	orders, err := h.storage.GetUserOrders(req.Context(), userID)
	if err != nil {
		zap.L().Info("error get user orders", zap.String("user_id", userID), zap.Error(err))

		res.WriteHeader(http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		res.WriteHeader(http.StatusNoContent)
		return
	}

	responseOrders := make(models.GetOrdersResponse, 0, len(orders))
	for _, order := range orders {
		responseOrder := models.OrderResponse{
			OrderID:       order.ID,
			Status:        string(order.Status),
			Total:         points.Total(order.Items).StringFixed(2),
			PointsAwarded: order.PointsAwarded,
			CreatedAt:     order.CreatedAt.Format(time.RFC3339),
		}

		if len(order.Items) > 0 {
			responseOrder.Currency = order.Items[0].Currency
		}

		responseOrders = append(responseOrders, responseOrder)
	}

	writeJSON(res, http.StatusOK, responseOrders)
}
