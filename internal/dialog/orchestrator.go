package dialog

import (
	"context"
	"encoding/base64"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/soothelabs/soothe/internal/archive"
	"github.com/soothelabs/soothe/internal/observability"
	"github.com/soothelabs/soothe/internal/protocol"
	"github.com/soothelabs/soothe/internal/vad"
)

const archiveSaveTimeout = 2 * time.Second

// Orchestrator runs the turn-taking pipeline for websocket connections. It
// owns no per-session state itself; each session's gate and ledger arrive
// through the session's dialog State, passed explicitly.
type Orchestrator struct {
	assembler *Assembler
	detector  *vad.Detector
	store     archive.Store
	metrics   *observability.Metrics
	// turnTimeout bounds one turn end to end. Zero preserves the unbounded
	// behavior; the gate still releases if the upstream call ever returns.
	turnTimeout time.Duration
}

func NewOrchestrator(assembler *Assembler, detector *vad.Detector, store archive.Store, metrics *observability.Metrics, turnTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		assembler:   assembler,
		detector:    detector,
		store:       store,
		metrics:     metrics,
		turnTimeout: turnTimeout,
	}
}

// RunConnection consumes parsed client messages for one connection until the
// inbound channel closes or ctx is canceled. Admitted turns run inline, so
// events for one connection are emitted strictly in order.
func (o *Orchestrator) RunConnection(ctx context.Context, state *State, sessionID string, inbound <-chan any, outbound chan<- any) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			switch m := msg.(type) {
			case protocol.Transcription:
				o.handleTranscription(ctx, state, sessionID, m, outbound)
			case protocol.AudioData:
				o.handleAudioData(ctx, state, sessionID, m, outbound)
			}
		}
	}
}

func (o *Orchestrator) handleTranscription(ctx context.Context, state *State, sessionID string, msg protocol.Transcription, outbound chan<- any) {
	adm := state.Gate.Admit()
	if !adm.OK {
		// Admission rejection is not an error: a silent drop, counted only.
		if o.metrics != nil {
			o.metrics.TurnAdmissions.WithLabelValues(adm.Reason).Inc()
		}
		return
	}
	if o.metrics != nil {
		o.metrics.TurnAdmissions.WithLabelValues("admitted").Inc()
	}

	turnID := uuid.NewString()
	emit := func(m any) { o.send(ctx, outbound, m) }

	if adm.First {
		emit(protocol.ConversationStarted{Type: protocol.TypeConversationStarted, SessionID: sessionID})
	}
	emit(protocol.SystemSpeaking{Type: protocol.TypeSystemSpeaking, SessionID: sessionID, Speaking: true})

	state.Ledger.Append(RoleUser, msg.Text)
	o.archiveTurn(sessionID, RoleUser, msg.Text)

	turnCtx := ctx
	if o.turnTimeout > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(ctx, o.turnTimeout)
		defer cancel()
	}

	finalText, err := o.assembler.Respond(turnCtx, sessionID, turnID, state.Ledger, emit)

	// The gate must release on every path; a held gate deadlocks the session.
	state.Gate.Release()
	emit(protocol.SystemSpeaking{Type: protocol.TypeSystemSpeaking, SessionID: sessionID, Speaking: false})

	if err != nil {
		log.Printf("turn %s degraded for session %s: %v", turnID, sessionID, err)
	}
	o.archiveTurn(sessionID, RoleAssistant, finalText)
}

func (o *Orchestrator) handleAudioData(ctx context.Context, state *State, sessionID string, msg protocol.AudioData, outbound chan<- any) {
	// While the system speaks, microphone captures are its own output; do
	// not even classify them.
	if state.Gate.Speaking() {
		return
	}

	detected := false
	if raw, err := base64.StdEncoding.DecodeString(msg.WAVBase64); err == nil {
		detected = o.detector.Detect(raw)
	}

	if o.metrics != nil {
		result := "none"
		if detected {
			result = "speech"
		}
		o.metrics.SpeechDetections.WithLabelValues(result).Inc()
	}

	o.send(ctx, outbound, protocol.SpeechDetected{
		Type:      protocol.TypeSpeechDetected,
		SessionID: sessionID,
		Detected:  detected,
	})
}

func (o *Orchestrator) archiveTurn(sessionID string, role Role, text string) {
	if o.store == nil || text == "" {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.Background(), archiveSaveTimeout)
	defer cancel()
	if err := o.store.SaveTurn(saveCtx, archive.TurnRecord{
		SessionID: sessionID,
		Role:      string(role),
		Text:      text,
	}); err != nil {
		log.Printf("archive write failed for session %s: %v", sessionID, err)
	}
}

// send preserves emission order; it blocks on a saturated outbound queue
// rather than reordering or dropping turn events.
func (o *Orchestrator) send(ctx context.Context, outbound chan<- any, msg any) {
	select {
	case outbound <- msg:
	case <-ctx.Done():
	}
}
