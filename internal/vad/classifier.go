package vad

import (
	"encoding/binary"
	"math"
)

// FrameDurationMs is the fixed duration of one classification frame.
const FrameDurationMs = 30

// thresholds per aggressiveness level 0..3. Higher levels raise the energy
// floor and tighten the zero-crossing band, biasing toward non-speech.
var (
	energyFloors = [4]float64{0.005, 0.010, 0.020, 0.035}
	zcrCeilings  = [4]float64{0.60, 0.50, 0.42, 0.35}
)

// Classifier labels single fixed-duration PCM16LE frames as speech or
// non-speech using a deterministic energy and zero-crossing model.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	aggressiveness int
}

// NewClassifier returns a classifier at the given aggressiveness (0-3).
// Out-of-range values are clamped.
func NewClassifier(aggressiveness int) *Classifier {
	if aggressiveness < 0 {
		aggressiveness = 0
	} else if aggressiveness > 3 {
		aggressiveness = 3
	}
	return &Classifier{aggressiveness: aggressiveness}
}

// Aggressiveness reports the configured sensitivity level.
func (c *Classifier) Aggressiveness() int { return c.aggressiveness }

// IsSpeech classifies one 30ms PCM16LE mono frame. A frame whose length does
// not match the sample rate, or a non-positive sample rate, classifies as
// non-speech rather than failing.
func (c *Classifier) IsSpeech(frame []byte, sampleRate int) bool {
	if sampleRate <= 0 {
		return false
	}
	if len(frame) != FrameBytes(sampleRate) || len(frame) < 4 {
		return false
	}

	n := len(frame) / 2
	var (
		sumSquares float64
		crossings  int
		prev       int16
	)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(frame[2*i : 2*i+2]))
		v := float64(s) / 32768.0
		sumSquares += v * v
		if i > 0 && ((prev >= 0) != (s >= 0)) {
			crossings++
		}
		prev = s
	}

	energy := math.Sqrt(sumSquares / float64(n))
	zcr := float64(crossings) / float64(n-1)

	return energy >= energyFloors[c.aggressiveness] && zcr <= zcrCeilings[c.aggressiveness]
}

// FrameBytes returns the byte length of one 30ms PCM16LE mono frame.
func FrameBytes(sampleRate int) int {
	return sampleRate * FrameDurationMs / 1000 * 2
}
