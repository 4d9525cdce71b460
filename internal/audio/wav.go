package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	ErrNotWAV           = errors.New("not a RIFF/WAVE container")
	ErrUnsupportedCodec = errors.New("unsupported WAV encoding")
)

// EncodeWAVPCM16LE wraps raw PCM16LE mono audio bytes in a WAV container.
func EncodeWAVPCM16LE(pcm []byte, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteWAVPCM16LETo(&buf, pcm, sampleRate); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWAVPCM16LETo writes raw PCM16LE mono audio bytes to out as a WAV stream.
func WriteWAVPCM16LETo(out io.Writer, pcm []byte, sampleRate int) error {
	const (
		numChannels   = 1
		bitsPerSample = 16
		audioFormat   = 1 // PCM
	)
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	dataSize := uint32(len(pcm))
	byteRate := uint32(sampleRate * numChannels * bitsPerSample / 8)
	blockAlign := uint16(numChannels * bitsPerSample / 8)

	w := bufio.NewWriter(out)

	// RIFF header.
	if _, err := w.WriteString("RIFF"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(36)+dataSize); err != nil {
		return err
	}
	if _, err := w.WriteString("WAVE"); err != nil {
		return err
	}

	// fmt chunk.
	if _, err := w.WriteString("fmt "); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(16)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(audioFormat)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(numChannels)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(sampleRate)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, byteRate); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, blockAlign); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(bitsPerSample)); err != nil {
		return err
	}

	// data chunk.
	if _, err := w.WriteString("data"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, dataSize); err != nil {
		return err
	}
	if _, err := w.Write(pcm); err != nil {
		return err
	}
	return w.Flush()
}

// DecodeWAVPCM16LE extracts raw PCM16LE mono samples and the sample rate
// from a WAV container. Only uncompressed 16-bit mono PCM is accepted;
// anything else is reported as an error, never a panic.
func DecodeWAVPCM16LE(raw []byte) ([]byte, int, error) {
	if len(raw) < 12 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return nil, 0, ErrNotWAV
	}

	var (
		sampleRate int
		havefmt    bool
	)
	off := 12
	for off+8 <= len(raw) {
		chunkID := string(raw[off : off+4])
		chunkSize := int(binary.LittleEndian.Uint32(raw[off+4 : off+8]))
		body := off + 8
		if chunkSize < 0 || body+chunkSize > len(raw) {
			return nil, 0, fmt.Errorf("truncated %q chunk", chunkID)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, 0, fmt.Errorf("fmt chunk too small: %d bytes", chunkSize)
			}
			audioFormat := binary.LittleEndian.Uint16(raw[body : body+2])
			numChannels := binary.LittleEndian.Uint16(raw[body+2 : body+4])
			rate := binary.LittleEndian.Uint32(raw[body+4 : body+8])
			bitsPerSample := binary.LittleEndian.Uint16(raw[body+14 : body+16])
			if audioFormat != 1 || bitsPerSample != 16 {
				return nil, 0, fmt.Errorf("%w: format=%d bits=%d", ErrUnsupportedCodec, audioFormat, bitsPerSample)
			}
			if numChannels != 1 {
				return nil, 0, fmt.Errorf("%w: %d channels, want mono", ErrUnsupportedCodec, numChannels)
			}
			if rate == 0 {
				return nil, 0, fmt.Errorf("%w: zero sample rate", ErrUnsupportedCodec)
			}
			sampleRate = int(rate)
			havefmt = true
		case "data":
			if !havefmt {
				return nil, 0, errors.New("data chunk before fmt chunk")
			}
			return raw[body : body+chunkSize], sampleRate, nil
		}

		// Chunks are word-aligned.
		off = body + chunkSize
		if chunkSize%2 == 1 {
			off++
		}
	}

	return nil, 0, errors.New("missing data chunk")
}
