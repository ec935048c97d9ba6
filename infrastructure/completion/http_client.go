// Package completion implements the completion service port against an
// HTTP streaming endpoint. The provider is opaque to the rest of the
// service: it receives a linear message history and returns a chunk stream.
package completion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"loom-backend/application/ports"
)

// Client streams completions over HTTP server-sent events
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a completion client
func NewClient(endpoint, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type streamRequest struct {
	Model    string          `json:"model"`
	Messages []streamMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type streamMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamChunk struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
	Usage   *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
	Error string `json:"error,omitempty"`
}

// Stream sends the history and returns a chunk channel plus an error
// channel. The chunk channel closes after the final chunk; the error channel
// closes after it, carrying at most one mid-stream failure.
func (c *Client) Stream(ctx context.Context, model string, history []ports.CompletionTurn) (<-chan ports.CompletionChunk, <-chan error, error) {
	messages := make([]streamMessage, len(history))
	for i, turn := range history {
		messages[i] = streamMessage{
			Role:    turn.Role.String(),
			Content: turn.Content,
		}
	}

	body, err := json.Marshal(streamRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("completion request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, nil, fmt.Errorf("completion service returned status %d", resp.StatusCode)
	}

	chunks := make(chan ports.CompletionChunk)
	errs := make(chan error, 1)

	go func() {
		defer resp.Body.Close()
		defer close(errs)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				break
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				c.logger.Warn("skipping malformed stream chunk", zap.Error(err))
				continue
			}

			if chunk.Error != "" {
				close(chunks)
				errs <- fmt.Errorf("completion stream error: %s", chunk.Error)
				return
			}

			out := ports.CompletionChunk{
				Content: chunk.Content,
				Done:    chunk.Done,
			}
			if chunk.Usage != nil {
				out.InputTokens = chunk.Usage.InputTokens
				out.OutputTokens = chunk.Usage.OutputTokens
			}

			select {
			case chunks <- out:
			case <-ctx.Done():
				close(chunks)
				errs <- ctx.Err()
				return
			}
		}

		close(chunks)
		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("completion stream read failed: %w", err)
		}
	}()

	return chunks, errs, nil
}
