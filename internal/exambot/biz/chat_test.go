package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/exambot/internal/model"
)

func TestChatSession_EmptyMessage(t *testing.T) {
	history := []model.Turn{{Question: "q1", Answer: "a1"}}

	for _, msg := range []string{"", "   ", "\n\t "} {
		q := &stubQuerier{answer: "unused"}
		reply, got, err := NewChatSession(q).Ask(context.Background(), msg, history)

		require.NoError(t, err)
		assert.Equal(t, EmptyQuestionReply, reply)
		assert.Equal(t, history, got)
		assert.Empty(t, q.questions, "no query for %q", msg)
	}
}

func TestChatSession_AppendsOnePair(t *testing.T) {
	history := make([]model.Turn, 1, 4)
	history[0] = model.Turn{Question: "q1", Answer: "a1"}

	q := &stubQuerier{answer: "The femur."}
	reply, got, err := NewChatSession(q).Ask(context.Background(), "  Longest bone?  ", history)

	require.NoError(t, err)
	assert.Equal(t, "", reply)
	require.Len(t, got, 2)
	assert.Equal(t, model.Turn{Question: "q1", Answer: "a1"}, got[0])
	assert.Equal(t, model.Turn{Question: "Longest bone?", Answer: "The femur."}, got[1])
	assert.Equal(t, []string{"Longest bone?"}, q.questions)

	// 调用方的 history 不被修改，包括其底层数组的剩余容量
	assert.Len(t, history, 1)
	assert.Equal(t, model.Turn{}, history[:2][1])
}

func TestChatSession_NilHistory(t *testing.T) {
	_, got, err := NewChatSession(&stubQuerier{answer: "a"}).Ask(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, []model.Turn{{Question: "q", Answer: "a"}}, got)
}

func TestChatSession_QueryError(t *testing.T) {
	history := []model.Turn{{Question: "q1", Answer: "a1"}}

	reply, got, err := NewChatSession(&stubQuerier{err: errBoom}).Ask(context.Background(), "q2", history)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, "", reply)
	assert.Equal(t, history, got)
}
