package gemini

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
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
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

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

func (c *Client) buildPayload(req providers.Request) ([]byte, error) {
	contents := make([]content, 0, providers.HistoryLimit+1)
	for _, t := range providers.BoundHistory(req.History) {
		role := "user"
		if t.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: t.Content}}})
	}
	contents = append(contents, content{Role: "user", Parts: []part{{Text: req.Prompt}}})

	payload := map[string]any{
		"contents": contents,
	}
	if strings.TrimSpace(req.Preamble) != "" {
		payload["systemInstruction"] = content{Parts: []part{{Text: req.Preamble}}}
	}
	generation := map[string]any{}
	if req.MaxTokens > 0 {
		generation["maxOutputTokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		generation["temperature"] = req.Temperature
	}
	if len(generation) > 0 {
		payload["generationConfig"] = generation
	}
	return json.Marshal(payload)
}

func (c *Client) callOnce(ctx context.Context, body []byte) (providers.Result, *providers.Error, bool) {
	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimSuffix(c.cfg.BaseURL, "/"), c.cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return providers.Result{}, providers.Errorf(providers.KindUnexpected, "build request: %v", err), false
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return providers.Result{}, providers.Errorf(providers.KindBackendFault, "Gemini request failed: %v", err), true
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return providers.Result{}, providers.Errorf(providers.KindBackendFault, "read Gemini response: %v", err), false
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := classifyError(resp.StatusCode, respBody)
		return providers.Result{}, perr, resp.StatusCode >= 500
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []part `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		UsageMetadata struct {
			TotalTokenCount int64 `json:"totalTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return providers.Result{}, providers.Errorf(providers.KindBackendFault, "decode Gemini response: %v", err), false
	}
	if len(parsed.Candidates) == 0 {
		return providers.Result{}, providers.Errorf(providers.KindBackendFault, "Gemini returned no candidates"), false
	}

	var sb strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return providers.Result{}, providers.Errorf(providers.KindBackendFault, "Gemini returned an empty response"), false
	}

	return providers.Result{
		Text:   text,
		Tokens: parsed.UsageMetadata.TotalTokenCount,
	}, nil, false
}

// classifyError prefers the structured google.rpc status, then HTTP
// status, then the shared substring table.
func classifyError(status int, body []byte) *providers.Error {
	var parsed struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &parsed)

	msg := parsed.Error.Message
	if msg == "" {
		msg = fmt.Sprintf("Gemini API error (status %d)", status)
	}

	switch parsed.Error.Status {
	case "RESOURCE_EXHAUSTED":
		// Gemini reports both throttling and exhausted quota under one
		// status; the message tells them apart.
		if k, ok := providers.ClassifyMessage(msg); ok && k == providers.KindQuotaExceeded {
			return &providers.Error{Kind: providers.KindQuotaExceeded, Message: msg}
		}
		return &providers.Error{Kind: providers.KindRateLimited, Message: msg}
	case "INVALID_ARGUMENT", "NOT_FOUND":
		if k, ok := providers.ClassifyMessage(msg); ok && k == providers.KindAuthInvalid {
			return &providers.Error{Kind: providers.KindAuthInvalid, Message: msg}
		}
		return &providers.Error{Kind: providers.KindInvalidArgument, Message: msg}
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return &providers.Error{Kind: providers.KindAuthInvalid, Message: msg}
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
