package brain

import "context"

// Message is one role-tagged entry of a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DeltaHandler receives incremental text deltas in stream order. Returning
// an error aborts the stream.
type DeltaHandler func(delta string) error

// Completer streams a model completion for an ordered conversation and
// returns the fully assembled text.
type Completer interface {
	StreamCompletion(ctx context.Context, messages []Message, onDelta DeltaHandler) (string, error)
}
