// Package openaicompat talks to hosted providers exposing the OpenAI
// chat/completions API (OpenRouter, Groq, Together, xAI, Z.ai, OpenAI).
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/llm"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/resilience"
)

type Client struct {
	preset     llm.Preset
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(preset llm.Preset, apiKey string, executor *resilience.Executor) *Client {
	preset.BaseURL = strings.TrimRight(preset.BaseURL, "/")
	return &Client{
		preset:     preset,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 90 * time.Second},
		executor:   executor,
	}
}

func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

func (c *Client) Capabilities() domain.CompletionCapabilities {
	return c.preset.Capabilities()
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	if c.apiKey == "" {
		return domain.Completion{}, domain.WrapError(domain.ErrInvalidInput, "complete",
			fmt.Errorf("%s api key is not configured", c.preset.Name))
	}

	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserPrompt})
	payload := chatRequest{
		Model:       c.preset.DefaultModel,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	var parsed chatResponse
	err := llm.Execute(ctx, c.executor, c.preset.Name+".complete", func(callCtx context.Context) error {
		return c.post(callCtx, payload, &parsed)
	})
	if err != nil {
		return domain.Completion{}, err
	}
	if len(parsed.Choices) == 0 {
		return domain.Completion{}, fmt.Errorf("%s returned empty choices", c.preset.Name)
	}

	model := parsed.Model
	if model == "" {
		model = c.preset.DefaultModel
	}
	return domain.Completion{
		Text:             strings.TrimSpace(parsed.Choices[0].Message.Content),
		Provider:         c.preset.Name,
		Model:            model,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}, nil
}

func (c *Client) post(ctx context.Context, payload chatRequest, out *chatResponse) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal completion request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.preset.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s completion request: %w", c.preset.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return llm.ReadHTTPError(c.preset.Name, "complete", resp)
	}
	*out = chatResponse{}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.preset.Name, err)
	}
	return nil
}
