// internal/handler/chat.go
package handler

import (
	"net/http"

	"finance-tracker/internal/chat"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	assistant *chat.Assistant
}

func NewChatHandler(assistant *chat.Assistant) *ChatHandler {
	return &ChatHandler{assistant: assistant}
}

// History godoc
// @Summary Chat history, oldest first
// @Tags chat
// @Produce json
// @Security ApiKeyAuth
// @Param limit query int false "Number of newest messages (default 50, max 200)"
// @Success 200 {array} ChatMessageResponse
// @Router /api/v1/chat [get]
func (h *ChatHandler) History(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}

	msgs, err := h.assistant.History(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, "ChatHistory", err)
		return
	}
	out := make([]ChatMessageResponse, len(msgs))
	for i, m := range msgs {
		out[i] = newChatMessageResponse(m)
	}
	c.JSON(http.StatusOK, out)
}

// Send godoc
// @Summary Send a message to the assistant
// @Description Both the message and the reply are stored in the chat log.
// @Tags chat
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body ChatRequest true "Message"
// @Success 200 {object} ChatMessageResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/chat [post]
func (h *ChatHandler) Send(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var req ChatRequest
	if !bindJSON(c, &req) {
		return
	}

	reply, err := h.assistant.Handle(c.Request.Context(), id, req.Message)
	if err != nil {
		respondError(c, "ChatSend", err)
		return
	}
	c.JSON(http.StatusOK, newChatMessageResponse(*reply))
}
