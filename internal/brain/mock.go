package brain

import (
	"context"
	"strings"
)

// MockCompleter replays scripted deltas. Used in tests and as the keyless
// local fallback.
type MockCompleter struct {
	Deltas []string
	Err    error
}

func NewMockCompleter(deltas ...string) *MockCompleter {
	if len(deltas) == 0 {
		deltas = []string{"I hear you. ", "Take a slow breath; ", "I'm right here with you."}
	}
	return &MockCompleter{Deltas: deltas}
}

func (m *MockCompleter) StreamCompletion(ctx context.Context, _ []Message, onDelta DeltaHandler) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	var out strings.Builder
	for _, delta := range m.Deltas {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return "", err
			}
		}
	}
	return out.String(), nil
}
