package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"call-intelligence-go/internal/config"
	apperrors "call-intelligence-go/internal/errors"
	"call-intelligence-go/internal/logger"
)

// MockTranscript is returned for every file when USE_MOCK_TRANSCRIBE=true.
const MockTranscript = "MOCK TRANSCRIPT: Customer says they were charged twice this month and want a refund. " +
	"Agent apologises and promises to escalate to billing."

// Client sends audio to a Whisper-compatible /audio/transcriptions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	language   string
	mock       bool
	maxElapsed time.Duration
	httpClient *http.Client
	log        *logger.Logger
}

func New(cfg config.Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.GroqBaseURL, "/"),
		apiKey:     cfg.GroqAPIKey,
		model:      cfg.TranscribeModel,
		language:   cfg.TranscribeLanguage,
		mock:       cfg.MockTranscribe,
		maxElapsed: cfg.MaxRetryElapsed,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		log:        logger.New().WithComponent("transcription"),
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe returns the text of one audio file. Failures are TRANSCRIPTION errors;
// empty input is INVALID_REQUEST.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	log := c.log.WithField("file_name", filename).WithField("bytes", len(audio))
	if len(audio) == 0 {
		return "", apperrors.NewInvalidRequest(fmt.Sprintf("audio file %q is empty", filename))
	}
	if c.mock {
		log.Info("mock transcription mode ON")
		return MockTranscript, nil
	}

	body, contentType, err := c.multipartBody(audio, filename)
	if err != nil {
		return "", apperrors.NewTranscription(err)
	}

	var text string
	var lastErr error
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", bytes.NewReader(body))
		if err != nil {
			lastErr = err
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			log.WithError(err).Warn("transcription request failed")
			return err
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: status=%d body=%s", resp.StatusCode, raw)
			return lastErr
		}
		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("request rejected: status=%d body=%s", resp.StatusCode, raw)
			return backoff.Permanent(lastErr)
		}
		var parsed transcriptionResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			lastErr = fmt.Errorf("json decode error: %v body=%s", err, raw)
			return backoff.Permanent(lastErr)
		}
		text = parsed.Text
		lastErr = nil
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		log.WithError(lastErr).Error("transcription failed")
		return "", apperrors.NewTranscription(lastErr)
	}
	log.WithField("chars", len(text)).Info("transcription complete")
	return text, nil
}

func (c *Client) multipartBody(audio []byte, filename string) ([]byte, string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}
	fields := [][2]string{
		{"model", c.model},
		{"response_format", "json"},
		{"language", c.language},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return b.Bytes(), w.FormDataContentType(), nil
}
