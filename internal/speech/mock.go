package speech

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
)

// MockSynthesizer records synthesis calls and replays canned audio. Used in
// tests and as the keyless local fallback.
type MockSynthesizer struct {
	mu          sync.Mutex
	fullCalls   []string
	streamCalls []string

	Chunks [][]byte
	Fail   bool
}

var errMockSynthesis = errors.New("synthesis unavailable")

func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{Chunks: [][]byte{[]byte("mock-audio")}}
}

func (m *MockSynthesizer) SynthesizeFull(_ context.Context, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return "", errMockSynthesis
	}
	m.fullCalls = append(m.fullCalls, text)
	return "/stream_audio?text=" + url.QueryEscape(text), nil
}

func (m *MockSynthesizer) SynthesizeStream(_ context.Context, text string) (ChunkStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return nil, errMockSynthesis
	}
	m.streamCalls = append(m.streamCalls, text)
	chunks := make([][]byte, len(m.Chunks))
	copy(chunks, m.Chunks)
	return &sliceChunkStream{chunks: chunks}, nil
}

// Fetch replays the first canned chunk so the audio retrieval endpoint works
// without a synthesis backend.
func (m *MockSynthesizer) Fetch(_ context.Context, _ string) ([]byte, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return nil, http.StatusServiceUnavailable, errMockSynthesis
	}
	if len(m.Chunks) == 0 {
		return nil, http.StatusOK, nil
	}
	return m.Chunks[0], http.StatusOK, nil
}

// FullCalls returns the texts passed to SynthesizeFull, in order.
func (m *MockSynthesizer) FullCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.fullCalls))
	copy(out, m.fullCalls)
	return out
}

// StreamCalls returns the text batches passed to SynthesizeStream, in order.
func (m *MockSynthesizer) StreamCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.streamCalls))
	copy(out, m.streamCalls)
	return out
}

type sliceChunkStream struct {
	chunks [][]byte
	pos    int
}

func (s *sliceChunkStream) Next() ([]byte, bool) {
	if s.pos >= len(s.chunks) {
		return nil, false
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, true
}

func (s *sliceChunkStream) Close() error { return nil }
