// Package model provides the data models shared by the exambot layers.
package model

import (
	"fmt"

	"github.com/kart-io/exambot/pkg/utils/json"
)

// QueryResult represents a RAG query result.
type QueryResult struct {
	Answer  string        `json:"answer"`
	Sources []ChunkSource `json:"sources"`
}

// ChunkSource represents source information for a retrieved chunk.
type ChunkSource struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Section      string  `json:"section"`
	Content      string  `json:"content"`
	Score        float32 `json:"score"`
}

// Turn is one exchange of the conversation. On the wire it is the pair
// [question, answer].
type Turn struct {
	Question string
	Answer   string
}

// MarshalJSON encodes the turn as a two-element array.
func (t Turn) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{t.Question, t.Answer})
}

// UnmarshalJSON decodes a [question, answer] pair.
func (t *Turn) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("turn must be a [question, answer] pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("turn must have exactly 2 elements, got %d", len(pair))
	}
	t.Question, t.Answer = pair[0], pair[1]
	return nil
}
