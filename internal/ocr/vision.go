package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const transcribePrompt = "Transcribe every piece of text visible in this game screenshot, " +
	"one line of the screen per line of output, preserving player names, numbers and " +
	"labels exactly as shown. Return plain text only, no commentary."

// VisionClient recognizes text through a hosted vision model behind an
// OpenAI-compatible chat-completions endpoint. All calls go through the shared
// limiter; rate-limit responses are retried in place with backoff, bounded by
// the retry config.
type VisionClient struct {
	endpoint   string
	apiKey     string
	model      string
	limiter    Limiter
	retry      RetryConfig
	breaker    *CircuitBreaker
	httpClient *http.Client
	log        *slog.Logger
}

func NewVisionClient(log *slog.Logger, endpoint, apiKey, model string, limiter Limiter, retry RetryConfig) *VisionClient {
	if limiter == nil {
		limiter = UnlimitedLimiter{}
	}
	return &VisionClient{
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		limiter:    limiter,
		retry:      retry,
		breaker:    NewCircuitBreaker(),
		httpClient: NewVisionHTTPClient(),
		log:        log,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []chatContent `json:"content"`
}

type chatContent struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL *chatImagePart `json:"image_url,omitempty"`
}

type chatImagePart struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (v *VisionClient) Recognize(ctx context.Context, img []byte) (string, error) {
	if v.endpoint == "" || v.apiKey == "" {
		return "", ErrUnavailable
	}
	if !v.breaker.Allow() {
		v.log.Warn("vision_circuit_open", "state", v.breaker.StateString())
		return "", fmt.Errorf("%w: circuit open", ErrUnavailable)
	}

	body, err := json.Marshal(chatRequest{
		Model: v.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatContent{
				{Type: "text", Text: transcribePrompt},
				{Type: "image_url", ImageURL: &chatImagePart{
					URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(img),
				}},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal vision request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= v.retry.MaxRetries; attempt++ {
		// the limiter enforces spacing for retries too; a throttled call
		// retries the same request, never the whole screenshot
		if err := v.limiter.Wait(ctx); err != nil {
			return "", err
		}

		text, retryAfter, err := v.doCall(ctx, body)
		if err == nil {
			v.breaker.RecordSuccess()
			return text, nil
		}
		lastErr = err

		if !errors.Is(err, ErrRateLimited) {
			// throttling is expected and handled by backoff; only hard
			// failures count against the breaker
			v.breaker.RecordFailure()
			return "", err
		}

		if attempt < v.retry.MaxRetries {
			backoff := CalculateBackoff(v.retry, attempt, retryAfter)
			v.log.Warn("vision_rate_limited",
				"attempt", attempt+1,
				"backoff_ms", backoff.Milliseconds(),
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return "", fmt.Errorf("%w: retries exhausted: %v", ErrRateLimited, lastErr)
}

func (v *VisionClient) doCall(ctx context.Context, body []byte) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.apiKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("vision request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		var retryAfter time.Duration
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		io.Copy(io.Discard, resp.Body)
		return "", retryAfter, ErrRateLimited
	}

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", 0, fmt.Errorf("vision request status %d: %s", resp.StatusCode, string(data))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", 0, fmt.Errorf("decode vision response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", 0, fmt.Errorf("vision response has no choices")
	}

	return parsed.Choices[0].Message.Content, 0, nil
}
