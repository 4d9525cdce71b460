package speech

import "context"

// ChunkStream is a finite, forward-only sequence of binary audio chunks.
// It is single-pass and non-restartable: once Next reports false the stream
// is exhausted and closed.
type ChunkStream interface {
	// Next returns the next audio chunk, or ok=false when the stream ends.
	Next() (chunk []byte, ok bool)
	Close() error
}

// Synthesizer converts finished text segments into audio. Both entry points
// treat upstream failure as a local, recoverable condition: the caller keeps
// the turn alive and simply delivers no audio.
type Synthesizer interface {
	// SynthesizeFull issues a whole-text synthesis request and returns a
	// retrievable handle the client later resolves for the audio bytes.
	SynthesizeFull(ctx context.Context, text string) (url string, err error)

	// SynthesizeStream issues a bounded text batch request and returns the
	// resulting audio as a chunk stream.
	SynthesizeStream(ctx context.Context, text string) (ChunkStream, error)
}
