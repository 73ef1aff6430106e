package handler

import (
	"net/http"

	"github.com/VladKvetkin/settlement/internal/feed"
	"go.uber.org/zap"
)

// Feed upgrades to a websocket that receives the user's point awards as they settle.
func (h *Handler) Feed(res http.ResponseWriter, req *http.Request) {
	userID := h.getUserIDFromReqContext(req)
	if userID == "" {
		res.WriteHeader(http.StatusUnauthorized)
		return
	}

	conn, err := feed.Upgrader.Upgrade(res, req, nil)
	if err != nil {
		zap.L().Info("cannot upgrade feed connection", zap.String("user_id", userID), zap.Error(err))
		return
	}

	h.hub.Serve(conn, userID)
}
