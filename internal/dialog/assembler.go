package dialog

import (
	"context"
	"encoding/base64"
	"log"
	"strings"
	"time"

	"github.com/soothelabs/soothe/internal/brain"
	"github.com/soothelabs/soothe/internal/observability"
	"github.com/soothelabs/soothe/internal/protocol"
	"github.com/soothelabs/soothe/internal/reliability"
	"github.com/soothelabs/soothe/internal/speech"
)

// ApologyText is delivered as the final assistant response when the model
// call fails mid-turn.
const ApologyText = "Sorry, there was an error processing your request."

// Emitter pushes one outbound event toward the client. Implementations must
// preserve call order.
type Emitter func(msg any)

type AssemblerConfig struct {
	PersonaPrompt string
	// Streaming selects incremental synthesis of text batches over one
	// whole-response synthesis call.
	Streaming bool
	// FlushThreshold is the accumulated-text size that triggers a streaming
	// synthesis flush.
	FlushThreshold int
}

// Assembler drives one model completion per admitted turn, emits partial and
// final text events, and bridges finished text to the synthesis backend.
// A single Assembler serves all sessions; all per-turn state is local to one
// Respond call.
type Assembler struct {
	brain   brain.Completer
	speech  speech.Synthesizer
	metrics *observability.Metrics
	cfg     AssemblerConfig
}

func NewAssembler(completer brain.Completer, synthesizer speech.Synthesizer, metrics *observability.Metrics, cfg AssemblerConfig) *Assembler {
	if cfg.FlushThreshold <= 0 {
		cfg.FlushThreshold = 60
	}
	return &Assembler{
		brain:   completer,
		speech:  synthesizer,
		metrics: metrics,
		cfg:     cfg,
	}
}

// Respond runs one complete turn: model completion, text emission, and
// synthesis. It always emits exactly one final ai_response followed by one
// response_complete, no matter how the upstream calls fare, and returns the
// text recorded as the assistant's contribution. The returned error is
// informational; the failure has already been surfaced to the client.
func (a *Assembler) Respond(ctx context.Context, sessionID, turnID string, ledger *Ledger, emit Emitter) (string, error) {
	startedAt := time.Now()
	if a.cfg.Streaming {
		return a.respondStreaming(ctx, sessionID, turnID, ledger, emit, startedAt)
	}
	return a.respondBatch(ctx, sessionID, turnID, ledger, emit, startedAt)
}

// messages assembles the model context: the synthesized persona system turn
// followed by the ledger, in order.
func (a *Assembler) messages(ledger *Ledger) []brain.Message {
	msgs := make([]brain.Message, 0, ledger.Len()+1)
	msgs = append(msgs, brain.Message{Role: string(RoleSystem), Content: a.cfg.PersonaPrompt})
	for _, t := range ledger.Turns() {
		msgs = append(msgs, brain.Message{Role: string(t.Role), Content: t.Text})
	}
	return msgs
}

func (a *Assembler) respondBatch(ctx context.Context, sessionID, turnID string, ledger *Ledger, emit Emitter, startedAt time.Time) (string, error) {
	var acc strings.Builder
	final, err := a.brain.StreamCompletion(ctx, a.messages(ledger), func(delta string) error {
		acc.WriteString(delta)
		emit(protocol.AIResponse{
			Type:      protocol.TypeAIResponse,
			SessionID: sessionID,
			TurnID:    turnID,
			Text:      strings.TrimSpace(acc.String()),
			IsFinal:   false,
		})
		return nil
	})
	if err != nil {
		return a.failTurn(sessionID, turnID, ledger, emit, err)
	}

	final = strings.TrimSpace(final)
	emit(protocol.AIResponse{
		Type:      protocol.TypeAIResponse,
		SessionID: sessionID,
		TurnID:    turnID,
		Text:      final,
		IsFinal:   true,
	})
	ledger.Append(RoleAssistant, final)

	if final != "" {
		url, synthErr := a.speech.SynthesizeFull(ctx, final)
		if synthErr != nil {
			a.reportSynthesisFailure(sessionID, emit, synthErr)
		} else {
			a.observeFirstAudio(startedAt)
			emit(protocol.AudioResponse{
				Type:      protocol.TypeAudioResponse,
				SessionID: sessionID,
				TurnID:    turnID,
				URL:       url,
			})
		}
	}

	emit(protocol.ResponseComplete{Type: protocol.TypeResponseComplete, SessionID: sessionID, TurnID: turnID})
	return final, nil
}

func (a *Assembler) respondStreaming(ctx context.Context, sessionID, turnID string, ledger *Ledger, emit Emitter, startedAt time.Time) (string, error) {
	var (
		acc   strings.Builder
		batch strings.Builder
		seq   int
	)

	final, err := a.brain.StreamCompletion(ctx, a.messages(ledger), func(delta string) error {
		acc.WriteString(delta)
		emit(protocol.AIResponse{
			Type:      protocol.TypeAIResponse,
			SessionID: sessionID,
			TurnID:    turnID,
			Text:      strings.TrimSpace(acc.String()),
			IsFinal:   false,
		})

		batch.WriteString(delta)
		if batch.Len() >= a.cfg.FlushThreshold {
			seq = a.flushBatch(ctx, sessionID, turnID, batch.String(), seq, emit, startedAt)
			batch.Reset()
		}
		return nil
	})
	if err != nil {
		return a.failTurn(sessionID, turnID, ledger, emit, err)
	}

	if batch.Len() > 0 {
		seq = a.flushBatch(ctx, sessionID, turnID, batch.String(), seq, emit, startedAt)
	}

	final = strings.TrimSpace(final)
	emit(protocol.AIResponse{
		Type:      protocol.TypeAIResponse,
		SessionID: sessionID,
		TurnID:    turnID,
		Text:      final,
		IsFinal:   true,
	})
	ledger.Append(RoleAssistant, final)

	emit(protocol.ResponseComplete{Type: protocol.TypeResponseComplete, SessionID: sessionID, TurnID: turnID})
	return final, nil
}

// flushBatch sends one accumulated text batch to the streaming synthesis
// entry point and relays the resulting chunks. A failed flush degrades to no
// audio for that batch; the turn continues.
func (a *Assembler) flushBatch(ctx context.Context, sessionID, turnID, text string, seq int, emit Emitter, startedAt time.Time) int {
	stream, err := a.speech.SynthesizeStream(ctx, text)
	if err != nil {
		a.reportSynthesisFailure(sessionID, emit, err)
		return seq
	}
	defer stream.Close()

	for {
		chunk, ok := stream.Next()
		if !ok {
			return seq
		}
		if seq == 0 {
			a.observeFirstAudio(startedAt)
		}
		emit(protocol.AudioChunk{
			Type:        protocol.TypeAudioChunk,
			SessionID:   sessionID,
			TurnID:      turnID,
			Seq:         seq,
			ChunkBase64: base64.StdEncoding.EncodeToString(chunk),
		})
		seq++
	}
}

// failTurn converts a model failure into the fixed apology response. The
// apology is appended to the ledger so later turns see a coherent history.
func (a *Assembler) failTurn(sessionID, turnID string, ledger *Ledger, emit Emitter, cause error) (string, error) {
	log.Printf("model completion failed for session %s: %v", sessionID, cause)
	if a.metrics != nil {
		a.metrics.ProviderErrors.WithLabelValues("model", "completion_failed").Inc()
	}

	emit(protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: sessionID,
		Code:      "completion_failed",
		Source:    "model",
		Retryable: reliability.IsRetryable(cause),
		Detail:    cause.Error(),
	})
	emit(protocol.AIResponse{
		Type:      protocol.TypeAIResponse,
		SessionID: sessionID,
		TurnID:    turnID,
		Text:      ApologyText,
		IsFinal:   true,
	})
	ledger.Append(RoleAssistant, ApologyText)
	emit(protocol.ResponseComplete{Type: protocol.TypeResponseComplete, SessionID: sessionID, TurnID: turnID})
	return ApologyText, cause
}

func (a *Assembler) reportSynthesisFailure(sessionID string, emit Emitter, cause error) {
	log.Printf("speech synthesis failed for session %s: %v", sessionID, cause)
	if a.metrics != nil {
		a.metrics.ProviderErrors.WithLabelValues("synthesis", "request_failed").Inc()
	}
	emit(protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: sessionID,
		Code:      "synthesis_failed",
		Source:    "synthesis",
		Retryable: reliability.IsRetryable(cause),
		Detail:    cause.Error(),
	})
}

func (a *Assembler) observeFirstAudio(startedAt time.Time) {
	if a.metrics != nil {
		a.metrics.ObserveFirstAudioLatency(time.Since(startedAt))
	}
}
