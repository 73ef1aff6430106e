package handler

import (
	"encoding/json"
	"net/http"

	"github.com/VladKvetkin/settlement/internal/feed"
	"github.com/VladKvetkin/settlement/internal/middleware"
	"github.com/VladKvetkin/settlement/internal/storage"
	"github.com/VladKvetkin/settlement/internal/trigger"
	"go.uber.org/zap"
)

type Handler struct {
	storage  storage.Storage
	triggers *trigger.Triggers
	hub      *feed.Hub
}

func NewHandler(storage storage.Storage, triggers *trigger.Triggers, hub *feed.Hub) *Handler {
	return &Handler{
		storage:  storage,
		triggers: triggers,
		hub:      hub,
	}
}

func (h *Handler) getUserIDFromReqContext(req *http.Request) string {
	userID, _ := req.Context().Value(middleware.UserIDKey{}).(string)
	return userID
}

func writeJSON(res http.ResponseWriter, status int, v any) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(status)

	if err := json.NewEncoder(res).Encode(v); err != nil {
		zap.L().Info("cannot encode response JSON body", zap.Error(err))
	}
}
