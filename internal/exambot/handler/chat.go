package handler

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/exambot/internal/model"
	"github.com/kart-io/exambot/pkg/infra/logger"
	"github.com/kart-io/exambot/pkg/utils/errors"
	"github.com/kart-io/exambot/pkg/utils/json"
	"github.com/kart-io/exambot/pkg/utils/response"
	"github.com/kart-io/exambot/pkg/utils/validator"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string       `json:"message"`
	History []model.Turn `json:"history"`
}

// ChatResponse is the chat callback result: the new textbox content and the
// new history.
type ChatResponse struct {
	Message string       `json:"message"`
	History []model.Turn `json:"history"`
}

// ChatHandler serves POST /api/chat.
type ChatHandler struct {
	chat              Asker
	maxQuestionLength int
	queryTimeout      time.Duration
}

// NewChatHandler creates a ChatHandler. maxQuestionLength is in runes;
// zero disables the check. A zero queryTimeout means no timeout.
func NewChatHandler(chat Asker, maxQuestionLength int, queryTimeout time.Duration) *ChatHandler {
	return &ChatHandler{
		chat:              chat,
		maxQuestionLength: maxQuestionLength,
		queryTimeout:      queryTimeout,
	}
}

// Chat answers one message.
func (h *ChatHandler) Chat(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.Fail(c, errors.ErrInvalidChatRequest.WithCause(err))
		return
	}
	var req ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		response.Fail(c, errors.ErrInvalidChatRequest.WithMessagef("invalid request body: %v", err))
		return
	}

	if h.maxQuestionLength > 0 {
		if err := validator.ValidateVar("message", req.Message, fmt.Sprintf("max=%d", h.maxQuestionLength)); err != nil {
			var verrs *validator.ValidationErrors
			if stderrors.As(err, &verrs) {
				response.Fail(c, errors.ErrQuestionTooLong.WithMessage(verrs.First()))
				return
			}
			response.Fail(c, errors.ErrInvalidChatRequest.WithCause(err))
			return
		}
	}

	ctx := c.Request.Context()
	if h.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.queryTimeout)
		defer cancel()
	}

	reply, history, err := h.chat.Ask(ctx, req.Message, req.History)
	if err != nil {
		logger.LogError(ctx, "chat query failed", err)
		_ = c.Error(err)
		if stderrors.Is(err, context.DeadlineExceeded) {
			response.Fail(c, errors.ErrQueryTimeout.WithCause(err))
			return
		}
		response.Fail(c, errors.ErrQueryFailed.WithCause(err))
		return
	}

	if history == nil {
		history = []model.Turn{}
	}
	response.OK(c, &ChatResponse{Message: reply, History: history})
}
