package vad

import (
	"github.com/soothelabs/soothe/internal/audio"
)

// Detector reports whether a WAV-containerized audio capture contains any
// speech. It never returns an error: malformed containers, unsupported
// encodings, and captures shorter than one frame all report "no speech".
type Detector struct {
	classifier *Classifier
}

func NewDetector(classifier *Classifier) *Detector {
	if classifier == nil {
		classifier = NewClassifier(3)
	}
	return &Detector{classifier: classifier}
}

// Detect decodes raw WAV bytes and scans non-overlapping 30ms frames,
// short-circuiting on the first speech frame.
func (d *Detector) Detect(rawWAV []byte) bool {
	pcm, sampleRate, err := audio.DecodeWAVPCM16LE(rawWAV)
	if err != nil {
		return false
	}

	frameBytes := FrameBytes(sampleRate)
	if frameBytes <= 0 {
		return false
	}

	for offset := 0; offset+frameBytes <= len(pcm); offset += frameBytes {
		if d.classifier.IsSpeech(pcm[offset:offset+frameBytes], sampleRate) {
			return true
		}
	}
	return false
}
