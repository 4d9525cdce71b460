package dialog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/soothelabs/soothe/internal/brain"
	"github.com/soothelabs/soothe/internal/protocol"
	"github.com/soothelabs/soothe/internal/speech"
)

type eventSink struct {
	events []any
}

func (s *eventSink) emit(msg any) { s.events = append(s.events, msg) }

func (s *eventSink) aiResponses() []protocol.AIResponse {
	var out []protocol.AIResponse
	for _, e := range s.events {
		if r, ok := e.(protocol.AIResponse); ok {
			out = append(out, r)
		}
	}
	return out
}

func (s *eventSink) count(matches func(any) bool) int {
	n := 0
	for _, e := range s.events {
		if matches(e) {
			n++
		}
	}
	return n
}

func isResponseComplete(e any) bool { _, ok := e.(protocol.ResponseComplete); return ok }
func isAudioResponse(e any) bool    { _, ok := e.(protocol.AudioResponse); return ok }
func isAudioChunk(e any) bool       { _, ok := e.(protocol.AudioChunk); return ok }

func newBatchAssembler(completer brain.Completer, synth speech.Synthesizer) *Assembler {
	return NewAssembler(completer, synth, nil, AssemblerConfig{
		PersonaPrompt:  "stay calm",
		Streaming:      false,
		FlushThreshold: 60,
	})
}

func TestBatchModePartialsAreMonotonic(t *testing.T) {
	completer := brain.NewMockCompleter("Hello", " there", " friend")
	synth := speech.NewMockSynthesizer()
	a := newBatchAssembler(completer, synth)

	ledger := NewLedger()
	ledger.Append(RoleUser, "hi")
	sink := &eventSink{}

	final, err := a.Respond(context.Background(), "s1", "t1", ledger, sink.emit)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if final != "Hello there friend" {
		t.Fatalf("final = %q, want %q", final, "Hello there friend")
	}

	responses := sink.aiResponses()
	wantTexts := []string{"Hello", "Hello there", "Hello there friend", "Hello there friend"}
	if len(responses) != len(wantTexts) {
		t.Fatalf("got %d ai_response events, want %d", len(responses), len(wantTexts))
	}
	for i, r := range responses {
		if r.Text != wantTexts[i] {
			t.Fatalf("response[%d].Text = %q, want %q", i, r.Text, wantTexts[i])
		}
		wantFinal := i == len(responses)-1
		if r.IsFinal != wantFinal {
			t.Fatalf("response[%d].IsFinal = %v, want %v", i, r.IsFinal, wantFinal)
		}
	}

	// Partials never shrink.
	for i := 1; i < len(responses); i++ {
		if len(responses[i].Text) < len(responses[i-1].Text) {
			t.Fatalf("partial shrank at %d: %q -> %q", i, responses[i-1].Text, responses[i].Text)
		}
	}
}

func TestBatchModeEmitsAudioHandleAndCompletion(t *testing.T) {
	completer := brain.NewMockCompleter("All is well.")
	synth := speech.NewMockSynthesizer()
	a := newBatchAssembler(completer, synth)

	ledger := NewLedger()
	ledger.Append(RoleUser, "hi")
	sink := &eventSink{}

	if _, err := a.Respond(context.Background(), "s1", "t1", ledger, sink.emit); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	if n := sink.count(isAudioResponse); n != 1 {
		t.Fatalf("audio_response events = %d, want 1", n)
	}
	if n := sink.count(isResponseComplete); n != 1 {
		t.Fatalf("response_complete events = %d, want 1", n)
	}
	if _, ok := sink.events[len(sink.events)-1].(protocol.ResponseComplete); !ok {
		t.Fatalf("last event = %T, want ResponseComplete", sink.events[len(sink.events)-1])
	}
	if calls := synth.FullCalls(); len(calls) != 1 || calls[0] != "All is well." {
		t.Fatalf("full synthesis calls = %v, want final text once", calls)
	}

	turns := ledger.Turns()
	if last := turns[len(turns)-1]; last.Role != RoleAssistant || last.Text != "All is well." {
		t.Fatalf("last ledger turn = %+v, want assistant final", last)
	}
}

func TestStreamingModeFlushesAtThreshold(t *testing.T) {
	// Seven 9-char tokens: the accumulator first reaches 60 at token 7.
	token := "aaaaaaaa "
	deltas := make([]string, 7)
	for i := range deltas {
		deltas[i] = token
	}

	completer := brain.NewMockCompleter(deltas...)
	synth := speech.NewMockSynthesizer()
	a := NewAssembler(completer, synth, nil, AssemblerConfig{
		PersonaPrompt:  "stay calm",
		Streaming:      true,
		FlushThreshold: 60,
	})

	ledger := NewLedger()
	ledger.Append(RoleUser, "hi")
	sink := &eventSink{}

	if _, err := a.Respond(context.Background(), "s1", "t1", ledger, sink.emit); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	calls := synth.StreamCalls()
	if len(calls) != 1 {
		t.Fatalf("stream synthesis calls = %d, want exactly 1", len(calls))
	}
	if calls[0] != strings.Repeat(token, 7) {
		t.Fatalf("flushed batch = %q, want all 7 tokens", calls[0])
	}
	if n := sink.count(isAudioChunk); n == 0 {
		t.Fatalf("no audio_chunk events emitted")
	}
	if n := sink.count(isResponseComplete); n != 1 {
		t.Fatalf("response_complete events = %d, want 1", n)
	}
}

func TestStreamingModeFlushesTailAfterStreamEnd(t *testing.T) {
	completer := brain.NewMockCompleter(strings.Repeat("x", 70), "short tail")
	synth := speech.NewMockSynthesizer()
	a := NewAssembler(completer, synth, nil, AssemblerConfig{
		PersonaPrompt:  "stay calm",
		Streaming:      true,
		FlushThreshold: 60,
	})

	ledger := NewLedger()
	ledger.Append(RoleUser, "hi")
	sink := &eventSink{}

	if _, err := a.Respond(context.Background(), "s1", "t1", ledger, sink.emit); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	calls := synth.StreamCalls()
	if len(calls) != 2 {
		t.Fatalf("stream synthesis calls = %d, want threshold flush + tail flush", len(calls))
	}
	if calls[1] != "short tail" {
		t.Fatalf("tail flush = %q, want %q", calls[1], "short tail")
	}
}

func TestModelFailureYieldsApologyAndCompletion(t *testing.T) {
	completer := &brain.MockCompleter{Err: errors.New("upstream gone")}
	synth := speech.NewMockSynthesizer()
	a := newBatchAssembler(completer, synth)

	ledger := NewLedger()
	ledger.Append(RoleUser, "hi")
	sink := &eventSink{}

	final, err := a.Respond(context.Background(), "s1", "t1", ledger, sink.emit)
	if err == nil {
		t.Fatalf("Respond() error = nil, want informational cause")
	}
	if final != ApologyText {
		t.Fatalf("final = %q, want apology", final)
	}

	responses := sink.aiResponses()
	if len(responses) != 1 || !responses[0].IsFinal || responses[0].Text != ApologyText {
		t.Fatalf("ai_response events = %+v, want single final apology", responses)
	}
	if n := sink.count(isResponseComplete); n != 1 {
		t.Fatalf("response_complete events = %d, want 1", n)
	}

	turns := ledger.Turns()
	if last := turns[len(turns)-1]; last.Role != RoleAssistant || last.Text != ApologyText {
		t.Fatalf("last ledger turn = %+v, want persisted apology", last)
	}
}

func TestSynthesisFailureDoesNotDropTextResponse(t *testing.T) {
	completer := brain.NewMockCompleter("Here is a full answer for you.")
	synth := speech.NewMockSynthesizer()
	synth.Fail = true
	a := newBatchAssembler(completer, synth)

	ledger := NewLedger()
	ledger.Append(RoleUser, "hi")
	sink := &eventSink{}

	if _, err := a.Respond(context.Background(), "s1", "t1", ledger, sink.emit); err != nil {
		t.Fatalf("Respond() error = %v, want synthesis failure absorbed", err)
	}

	responses := sink.aiResponses()
	finalSeen := false
	for _, r := range responses {
		if r.IsFinal {
			finalSeen = true
			if r.Text == "" {
				t.Fatalf("final ai_response has empty text")
			}
		}
	}
	if !finalSeen {
		t.Fatalf("no final ai_response delivered")
	}
	if n := sink.count(isAudioResponse); n != 0 {
		t.Fatalf("audio_response events = %d, want 0 on synthesis failure", n)
	}
	if n := sink.count(isResponseComplete); n != 1 {
		t.Fatalf("response_complete events = %d, want 1", n)
	}
}

func TestStreamingSynthesisFailureYieldsNoChunks(t *testing.T) {
	completer := brain.NewMockCompleter(strings.Repeat("y", 80))
	synth := speech.NewMockSynthesizer()
	synth.Fail = true
	a := NewAssembler(completer, synth, nil, AssemblerConfig{
		PersonaPrompt:  "stay calm",
		Streaming:      true,
		FlushThreshold: 60,
	})

	ledger := NewLedger()
	ledger.Append(RoleUser, "hi")
	sink := &eventSink{}

	if _, err := a.Respond(context.Background(), "s1", "t1", ledger, sink.emit); err != nil {
		t.Fatalf("Respond() error = %v, want synthesis failure absorbed", err)
	}
	if n := sink.count(isAudioChunk); n != 0 {
		t.Fatalf("audio_chunk events = %d, want 0", n)
	}
	if n := sink.count(isResponseComplete); n != 1 {
		t.Fatalf("response_complete events = %d, want 1", n)
	}
}

func TestMessagesPrefixPersonaWithoutStoringIt(t *testing.T) {
	a := newBatchAssembler(brain.NewMockCompleter("ok"), speech.NewMockSynthesizer())
	ledger := NewLedger()
	ledger.Append(RoleUser, "hello")

	msgs := a.messages(ledger)
	if len(msgs) != 2 {
		t.Fatalf("len(messages) = %d, want persona + 1 turn", len(msgs))
	}
	if msgs[0].Role != string(RoleSystem) || msgs[0].Content != "stay calm" {
		t.Fatalf("messages[0] = %+v, want persona system turn", msgs[0])
	}
	if ledger.Len() != 1 {
		t.Fatalf("ledger grew to %d turns from message assembly, want 1", ledger.Len())
	}
}
