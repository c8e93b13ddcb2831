package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/studyowl/studyowl/internal/services"
)

type ChatHandler struct {
	chat   *services.ChatService
	logger *zap.Logger
}

func NewChatHandler(chat *services.ChatService, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{chat: chat, logger: logger}
}

type chatRequest struct {
	Query       string `json:"query"`
	WorkspaceID string `json:"workspace_id"`
}

func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	answer, err := h.chat.Query(r.Context(), req.Query, req.WorkspaceID)
	if err != nil {
		h.logger.Error("chat query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not answer query")
		return
	}

	writeJSON(w, http.StatusOK, answer)
}
