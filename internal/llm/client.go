package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"call-intelligence-go/internal/config"
	"call-intelligence-go/internal/logger"
)

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxElapsed  time.Duration
	httpClient  *http.Client
	log         *logger.Logger
}

func New(cfg config.Config) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.GroqBaseURL, "/"),
		apiKey:      cfg.GroqAPIKey,
		model:       cfg.LLMModel,
		temperature: cfg.LLMTemperature,
		maxElapsed:  cfg.MaxRetryElapsed,
		httpClient:  &http.Client{Timeout: cfg.HTTPTimeout},
		log:         logger.New().WithComponent("llm"),
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Complete sends one system+user exchange and returns choices[0].message.content.
// Network errors and 5xx responses are retried with exponential backoff; 4xx is final.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	data, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}
	log := c.log.WithField("model", c.model).WithField("payload_len", len(data))

	var content string
	var lastErr error
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
		if err != nil {
			lastErr = err
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			log.WithError(err).Warn("llm request failed")
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("llm server error: status=%d body=%s", resp.StatusCode, body)
			log.WithField("http_status", resp.StatusCode).Warn("llm server error, retrying")
			return lastErr
		}
		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("llm request rejected: status=%d body=%s", resp.StatusCode, body)
			return backoff.Permanent(lastErr)
		}

		var parsed chatResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			lastErr = fmt.Errorf("json decode error: %v body=%s", err, body)
			return backoff.Permanent(lastErr)
		}
		if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
			lastErr = fmt.Errorf("llm returned no content")
			return lastErr
		}
		content = parsed.Choices[0].Message.Content
		lastErr = nil
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		log.WithError(lastErr).Error("llm completion failed")
		return "", lastErr
	}
	log.WithField("content_len", len(content)).Debug("llm completion received")
	return content, nil
}
