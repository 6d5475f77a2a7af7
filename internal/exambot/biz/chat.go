package biz

import (
	"context"
	"strings"

	"github.com/kart-io/exambot/internal/model"
)

// EmptyQuestionReply 空问题的提示语。
const EmptyQuestionReply = "Please enter a question."

// ChatSession 实现聊天回调：接收一条消息与历史，返回新的输入框内容与历史。
type ChatSession struct {
	engine Querier
}

// NewChatSession 创建聊天会话。
func NewChatSession(engine Querier) *ChatSession {
	return &ChatSession{engine: engine}
}

// Ask 回答一条消息。
//
// 空白消息不发起查询，返回提示语与原样的历史。成功时返回空字符串（清空输入框）
// 以及追加了一对问答的新历史；调用方传入的 history 不会被修改。
func (s *ChatSession) Ask(ctx context.Context, message string, history []model.Turn) (string, []model.Turn, error) {
	question := strings.TrimSpace(message)
	if question == "" {
		return EmptyQuestionReply, history, nil
	}

	result, err := s.engine.Query(ctx, question)
	if err != nil {
		return "", history, err
	}

	next := make([]model.Turn, len(history), len(history)+1)
	copy(next, history)
	next = append(next, model.Turn{Question: question, Answer: result.Answer})
	return "", next, nil
}
