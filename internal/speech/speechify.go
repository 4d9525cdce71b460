package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/soothelabs/soothe/internal/reliability"
)

const streamChunkSize = 8 * 1024

// SpeechifyClient synthesizes speech through a Speechify-style HTTP API.
type SpeechifyClient struct {
	baseURL string
	apiKey  string
	voiceID string
	client  *http.Client
}

type SpeechifyConfig struct {
	BaseURL string
	APIKey  string
	VoiceID string
}

func NewSpeechifyClient(cfg SpeechifyConfig) *SpeechifyClient {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.sws.speechify.com"
	}
	return &SpeechifyClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		voiceID: cfg.VoiceID,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type synthesisRequest struct {
	Input   string `json:"input"`
	VoiceID string `json:"voice_id"`
}

func (c *SpeechifyClient) newRequest(ctx context.Context, text string) (*http.Request, error) {
	payload, err := json.Marshal(synthesisRequest{
		Input:   "<speak>" + text + "</speak>",
		VoiceID: c.voiceID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/stream", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	return req, nil
}

// SynthesizeFull requests the complete text and, on success, returns the
// retrieval handle a client resolves through GET /stream_audio.
func (c *SpeechifyClient) SynthesizeFull(ctx context.Context, text string) (string, error) {
	req, err := c.newRequest(ctx, text)
	if err != nil {
		return "", err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()
	// The response body is discarded here; the client re-fetches the audio
	// through the retrieval endpoint using the returned handle.
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", &reliability.UpstreamError{Source: "synthesis", Status: res.StatusCode, Detail: "full synthesis failed"}
	}

	return "/stream_audio?text=" + url.QueryEscape(text), nil
}

// SynthesizeStream requests a bounded text batch and exposes the audio body
// as a forward-only chunk stream.
func (c *SpeechifyClient) SynthesizeStream(ctx context.Context, text string) (ChunkStream, error) {
	req, err := c.newRequest(ctx, text)
	if err != nil {
		return nil, err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		res.Body.Close()
		return nil, &reliability.UpstreamError{Source: "synthesis", Status: res.StatusCode, Detail: "stream synthesis failed"}
	}

	return &httpChunkStream{body: res.Body}, nil
}

// Fetch retrieves the full audio payload for text along with the upstream
// status code, for proxying through the retrieval endpoint.
func (c *SpeechifyClient) Fetch(ctx context.Context, text string) ([]byte, int, error) {
	req, err := c.newRequest(ctx, text)
	if err != nil {
		return nil, 0, err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, res.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, res.StatusCode, nil
}

type httpChunkStream struct {
	body   io.ReadCloser
	closed bool
}

func (s *httpChunkStream) Next() ([]byte, bool) {
	if s.closed {
		return nil, false
	}
	buf := make([]byte, streamChunkSize)
	n, err := io.ReadFull(s.body, buf)
	if n > 0 {
		return buf[:n], true
	}
	if err != nil {
		_ = s.Close()
	}
	return nil, false
}

func (s *httpChunkStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
