package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"roastbot/pkg/retrylimit"
)

const pollinationsURL = "https://text.pollinations.ai/openai"

// PollinationsProvider talks to the pollinations OpenAI-compatible endpoint
// behind an adaptive rate limiter with retry.
type PollinationsProvider struct {
	client  *http.Client
	limiter *retrylimit.AdaptiveLimiter
	retry   retrylimit.RetryConfig
}

// NewPollinationsProvider creates the provider with default limits.
func NewPollinationsProvider() *PollinationsProvider {
	return &PollinationsProvider{
		client:  &http.Client{Timeout: 25 * time.Second},
		limiter: retrylimit.NewAdaptiveLimiter(2, 1, 5, 1, 0.5),
		retry:   retrylimit.DefaultRetryConfig(),
	}
}

// Generate sends the messages and returns the cleaned reply.
func (p *PollinationsProvider) Generate(messages []Message) (string, error) {
	payload := map[string]any{
		"model":       "openai",
		"messages":    messages,
		"temperature": 1,
		"private":     true,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var reply string
	err = retrylimit.WithRetry(ctx, func() error {
		var callErr error
		reply, callErr = p.call(data)
		return callErr
	}, p.limiter, p.retry)
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (p *PollinationsProvider) call(data []byte) (string, error) {
	req, err := http.NewRequest(http.MethodPost, pollinationsURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("pollinations http %d: %s", resp.StatusCode, truncate(body))
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return "", fmt.Errorf("pollinations returned html")
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("pollinations empty choices")
	}

	reply := cleanReply(parsed.Choices[0].Message.Content)
	if isGarbageResponse(reply) {
		log.Printf("[WARN] pollinations garbage reply len=%d", len(reply))
		return "", fmt.Errorf("pollinations returned garbage")
	}
	return reply, nil
}
