package archive

import (
	"context"
	"time"
)

// TurnRecord stores a single spoken user or assistant turn.
type TurnRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists the conversation transcript. Writes are best-effort: a
// failed archive write never fails the turn that produced it.
type Store interface {
	SaveTurn(ctx context.Context, record TurnRecord) error
	Recent(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error)
	Close() error
}
