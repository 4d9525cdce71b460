package dialog

import "time"

// State is the per-session conversational context: the turn gate and the
// ledger. It is created at session start, shared by every connection bound
// to the session, and lives until the session ends.
type State struct {
	Gate   *Gate
	Ledger *Ledger
}

func NewState(cooldown time.Duration) *State {
	return &State{
		Gate:   NewGate(cooldown),
		Ledger: NewLedger(),
	}
}
