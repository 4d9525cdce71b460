package dialog

import (
	"sync"
	"time"
)

// Rejection reasons reported by Admit.
const (
	RejectSpeaking = "speaking_in_progress"
	RejectCooldown = "cooldown_active"
)

// Admission is the result of one atomic gate check.
type Admission struct {
	OK     bool
	First  bool // first admitted turn of the session
	Reason string
}

// Gate serializes conversational turns for one session: while a turn is in
// flight no new transcription is admitted, and after a turn completes a
// configurable cooldown discards trailing transcriptions (typically echoes
// of the system's own voice).
type Gate struct {
	mu             sync.Mutex
	speaking       bool
	lastResponseAt time.Time
	cooldown       time.Duration
	started        bool

	now func() time.Time
}

func NewGate(cooldown time.Duration) *Gate {
	if cooldown < 0 {
		cooldown = 0
	}
	return &Gate{cooldown: cooldown, now: time.Now}
}

// Admit evaluates the admission rules as one atomic check-and-set. The
// speaking check runs before the cooldown check; an admitted caller owns the
// turn until it calls Release.
func (g *Gate) Admit() Admission {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.speaking {
		return Admission{Reason: RejectSpeaking}
	}
	if g.cooldown > 0 && !g.lastResponseAt.IsZero() && g.now().Sub(g.lastResponseAt) < g.cooldown {
		return Admission{Reason: RejectCooldown}
	}

	g.speaking = true
	first := !g.started
	g.started = true
	return Admission{OK: true, First: first}
}

// Release unconditionally ends the in-flight turn and stamps the completion
// time. It must run on every path, success or failure; a missed release
// deadlocks the session in the speaking state.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.speaking = false
	g.lastResponseAt = g.now()
}

// Speaking reports whether a turn is currently in flight.
func (g *Gate) Speaking() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.speaking
}
