package dialog

// Role tags one conversational turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged utterance. Immutable once appended.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Ledger is the ordered, append-only record of turns forming the model's
// context window. The persona system turn is synthesized per request and is
// never stored here. A Ledger belongs to exactly one session and is only
// mutated by that session's single in-flight turn.
type Ledger struct {
	turns []Turn
}

func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Append(role Role, text string) {
	l.turns = append(l.turns, Turn{Role: role, Text: text})
}

// Turns returns a copy of the recorded history in order.
func (l *Ledger) Turns() []Turn {
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

func (l *Ledger) Len() int { return len(l.turns) }
