package dialog

import (
	"context"
	"encoding/base64"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/soothelabs/soothe/internal/audio"
	"github.com/soothelabs/soothe/internal/brain"
	"github.com/soothelabs/soothe/internal/protocol"
	"github.com/soothelabs/soothe/internal/speech"
	"github.com/soothelabs/soothe/internal/vad"
)

func newTestOrchestrator(completer brain.Completer, synth speech.Synthesizer) *Orchestrator {
	assembler := NewAssembler(completer, synth, nil, AssemblerConfig{
		PersonaPrompt:  "stay calm",
		FlushThreshold: 60,
	})
	return NewOrchestrator(assembler, vad.NewDetector(nil), nil, nil, 0)
}

// runTurns feeds the messages through a connection loop and returns every
// emitted event after the loop drains.
func runTurns(t *testing.T, o *Orchestrator, state *State, msgs ...any) []any {
	t.Helper()

	inbound := make(chan any, len(msgs))
	outbound := make(chan any, 256)
	for _, m := range msgs {
		inbound <- m
	}
	close(inbound)

	done := make(chan error, 1)
	go func() {
		done <- o.RunConnection(context.Background(), state, "s1", inbound, outbound)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunConnection() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("RunConnection() did not return")
	}

	close(outbound)
	var events []any
	for e := range outbound {
		events = append(events, e)
	}
	return events
}

func TestConnectionTurnEventOrder(t *testing.T) {
	o := newTestOrchestrator(brain.NewMockCompleter("Hello."), speech.NewMockSynthesizer())
	state := NewState(0)

	events := runTurns(t, o, state, protocol.Transcription{
		Type: protocol.TypeTranscription, SessionID: "s1", Text: "hi",
	})

	if len(events) < 5 {
		t.Fatalf("got %d events, want full turn sequence: %v", len(events), events)
	}
	if _, ok := events[0].(protocol.ConversationStarted); !ok {
		t.Fatalf("events[0] = %T, want ConversationStarted", events[0])
	}
	sp, ok := events[1].(protocol.SystemSpeaking)
	if !ok || !sp.Speaking {
		t.Fatalf("events[1] = %+v, want system speaking true", events[1])
	}
	last, ok := events[len(events)-1].(protocol.SystemSpeaking)
	if !ok || last.Speaking {
		t.Fatalf("last event = %+v, want system speaking false", events[len(events)-1])
	}
	if _, ok := events[len(events)-2].(protocol.ResponseComplete); !ok {
		t.Fatalf("second-to-last event = %T, want ResponseComplete", events[len(events)-2])
	}

	if state.Gate.Speaking() {
		t.Fatalf("gate still held after turn")
	}
	turns := state.Ledger.Turns()
	if len(turns) != 2 || turns[0].Role != RoleUser || turns[1].Role != RoleAssistant {
		t.Fatalf("ledger turns = %+v, want user then assistant", turns)
	}
}

func TestConversationStartedEmittedOnce(t *testing.T) {
	o := newTestOrchestrator(brain.NewMockCompleter("Hello."), speech.NewMockSynthesizer())
	state := NewState(0)

	events := runTurns(t, o, state,
		protocol.Transcription{Type: protocol.TypeTranscription, SessionID: "s1", Text: "one"},
		protocol.Transcription{Type: protocol.TypeTranscription, SessionID: "s1", Text: "two"},
	)

	started := 0
	completed := 0
	for _, e := range events {
		switch e.(type) {
		case protocol.ConversationStarted:
			started++
		case protocol.ResponseComplete:
			completed++
		}
	}
	if started != 1 {
		t.Fatalf("conversation_started events = %d, want 1", started)
	}
	if completed != 2 {
		t.Fatalf("response_complete events = %d, want 2", completed)
	}
}

func TestCooldownDropsTrailingTranscription(t *testing.T) {
	o := newTestOrchestrator(brain.NewMockCompleter("Hello."), speech.NewMockSynthesizer())
	state := NewState(time.Minute)

	events := runTurns(t, o, state,
		protocol.Transcription{Type: protocol.TypeTranscription, SessionID: "s1", Text: "real question"},
		protocol.Transcription{Type: protocol.TypeTranscription, SessionID: "s1", Text: "echo of the answer"},
	)

	completed := 0
	for _, e := range events {
		if _, ok := e.(protocol.ResponseComplete); ok {
			completed++
		}
	}
	if completed != 1 {
		t.Fatalf("response_complete events = %d, want 1 (second turn dropped in cooldown)", completed)
	}
	if got := state.Ledger.Len(); got != 2 {
		t.Fatalf("ledger length = %d, want 2 (dropped turn never recorded)", got)
	}
}

func TestGateReleasedAfterModelFailure(t *testing.T) {
	o := newTestOrchestrator(&brain.MockCompleter{Err: errors.New("down")}, speech.NewMockSynthesizer())
	state := NewState(0)

	events := runTurns(t, o, state, protocol.Transcription{
		Type: protocol.TypeTranscription, SessionID: "s1", Text: "hi",
	})

	if state.Gate.Speaking() {
		t.Fatalf("gate still held after failed turn")
	}

	var sawError, sawComplete bool
	for _, e := range events {
		switch m := e.(type) {
		case protocol.ErrorEvent:
			sawError = true
		case protocol.ResponseComplete:
			sawComplete = true
		case protocol.AIResponse:
			if m.IsFinal && m.Text != ApologyText {
				t.Fatalf("final text = %q, want apology", m.Text)
			}
		}
	}
	if !sawError || !sawComplete {
		t.Fatalf("error=%v complete=%v, want both after model failure", sawError, sawComplete)
	}

	last, ok := events[len(events)-1].(protocol.SystemSpeaking)
	if !ok || last.Speaking {
		t.Fatalf("last event = %+v, want system speaking false", events[len(events)-1])
	}
}

func TestAudioDataReportsDetection(t *testing.T) {
	o := newTestOrchestrator(brain.NewMockCompleter(), speech.NewMockSynthesizer())
	state := NewState(0)

	events := runTurns(t, o, state,
		protocol.AudioData{Type: protocol.TypeAudioData, SessionID: "s1", WAVBase64: encodeWAV(t, silencePCM16k(200))},
		protocol.AudioData{Type: protocol.TypeAudioData, SessionID: "s1", WAVBase64: encodeWAV(t, tonePCM16k(200))},
	)

	var got []bool
	for _, e := range events {
		if d, ok := e.(protocol.SpeechDetected); ok {
			got = append(got, d.Detected)
		}
	}
	if len(got) != 2 || got[0] || !got[1] {
		t.Fatalf("detections = %v, want [false true]", got)
	}
}

func TestAudioDataMalformedPayloadReportsNoSpeech(t *testing.T) {
	o := newTestOrchestrator(brain.NewMockCompleter(), speech.NewMockSynthesizer())
	state := NewState(0)

	events := runTurns(t, o, state,
		protocol.AudioData{Type: protocol.TypeAudioData, SessionID: "s1", WAVBase64: "%%%not-base64%%%"},
		protocol.AudioData{Type: protocol.TypeAudioData, SessionID: "s1", WAVBase64: base64.StdEncoding.EncodeToString([]byte("not a wav"))},
	)

	for _, e := range events {
		d, ok := e.(protocol.SpeechDetected)
		if !ok {
			t.Fatalf("unexpected event %T", e)
		}
		if d.Detected {
			t.Fatalf("malformed capture reported as speech")
		}
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 detection results", len(events))
	}
}

func silencePCM16k(ms int) []byte {
	return make([]byte, 16000*ms/1000*2)
}

func tonePCM16k(ms int) []byte {
	samples := 16000 * ms / 1000
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(0.5 * math.MaxInt16 * math.Sin(2*math.Pi*440*float64(i)/16000))
		pcm[2*i] = byte(v)
		pcm[2*i+1] = byte(v >> 8)
	}
	return pcm
}

func encodeWAV(t *testing.T, pcm []byte) string {
	t.Helper()
	wav, err := audio.EncodeWAVPCM16LE(pcm, 16000)
	if err != nil {
		t.Fatalf("EncodeWAVPCM16LE() error = %v", err)
	}
	return base64.StdEncoding.EncodeToString(wav)
}
