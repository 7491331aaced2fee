package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nerdbot/internal/providers"
)

// reasoningPrefix marks the model family that rejects a separate system
// role. For these the preamble is folded into the user turn and history
// is omitted, a known limitation.
const reasoningPrefix = "o1"

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	HTTPClient  *http.Client
	MaxRetries  int
	BackoffBase time.Duration
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 400 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{cfg: cfg}
}

var _ providers.Provider = (*Client)(nil)

func (c *Client) Generate(ctx context.Context, req providers.Request) (providers.Result, *providers.Error) {
	body, err := c.buildPayload(req)
	if err != nil {
		return providers.Result{}, providers.Errorf(providers.KindUnexpected, "build request: %v", err)
	}

	var lastErr *providers.Error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		res, perr, retry := c.callOnce(ctx, body)
		if perr == nil {
			return res, nil
		}
		lastErr = perr
		if !retry || attempt == c.cfg.MaxRetries {
			break
		}
		backoff := c.cfg.BackoffBase * (1 << attempt)
		select {
		case <-ctx.Done():
			return providers.Result{}, providers.Errorf(providers.KindUnexpected, "request canceled: %v", ctx.Err())
		case <-time.After(backoff):
		}
	}
	return providers.Result{}, lastErr
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *Client) buildPayload(req providers.Request) ([]byte, error) {
	if isReasoningModel(c.cfg.Model) {
		payload := map[string]any{
			"model": c.cfg.Model,
			"messages": []message{
				{Role: "user", Content: req.Preamble + "\n\n" + req.Prompt},
			},
		}
		return json.Marshal(payload)
	}

	messages := make([]message, 0, providers.HistoryLimit+2)
	if strings.TrimSpace(req.Preamble) != "" {
		messages = append(messages, message{Role: "system", Content: req.Preamble})
	}
	for _, t := range providers.BoundHistory(req.History) {
		role := "user"
		if t.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, message{Role: role, Content: t.Content})
	}
	messages = append(messages, message{Role: "user", Content: req.Prompt})

	payload := map[string]any{
		"model":    c.cfg.Model,
		"messages": messages,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}
	return json.Marshal(payload)
}

func (c *Client) callOnce(ctx context.Context, body []byte) (providers.Result, *providers.Error, bool) {
	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return providers.Result{}, providers.Errorf(providers.KindUnexpected, "build request: %v", err), false
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return providers.Result{}, providers.Errorf(providers.KindBackendFault, "OpenAI request failed: %v", err), true
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return providers.Result{}, providers.Errorf(providers.KindBackendFault, "read OpenAI response: %v", err), false
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := classifyError(resp.StatusCode, respBody)
		return providers.Result{}, perr, resp.StatusCode >= 500
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int64 `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return providers.Result{}, providers.Errorf(providers.KindBackendFault, "decode OpenAI response: %v", err), false
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return providers.Result{}, providers.Errorf(providers.KindBackendFault, "OpenAI returned an empty response"), false
	}

	return providers.Result{
		Text:   parsed.Choices[0].Message.Content,
		Tokens: parsed.Usage.TotalTokens,
	}, nil, false
}

// classifyError prefers the structured error payload, then HTTP status,
// then the shared substring table.
func classifyError(status int, body []byte) *providers.Error {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &parsed)

	msg := parsed.Error.Message
	if msg == "" {
		msg = fmt.Sprintf("OpenAI API error (status %d)", status)
	}

	switch {
	case parsed.Error.Type == "insufficient_quota" || parsed.Error.Code == "insufficient_quota":
		return &providers.Error{Kind: providers.KindQuotaExceeded, Message: msg}
	case parsed.Error.Code == "invalid_api_key":
		return &providers.Error{Kind: providers.KindAuthInvalid, Message: msg}
	case parsed.Error.Code == "model_not_found":
		return &providers.Error{Kind: providers.KindInvalidArgument, Message: msg}
	}

	kind := providers.ClassifyStatus(status)
	if kind == providers.KindUnexpected {
		if k, ok := providers.ClassifyMessage(msg); ok {
			kind = k
		} else {
			kind = providers.KindBackendFault
		}
	}
	return &providers.Error{Kind: kind, Message: msg}
}

func isReasoningModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(model), reasoningPrefix)
}
