package llmapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"llmfs/config"
	"llmfs/session"
)

// HTTPClient talks to an OpenAI-compatible chat-completions endpoint
// over plain net/http: a trimmed base URL, an http.Client with an
// explicit Timeout, and manually set headers rather than a generated
// SDK.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient returns a Client for the chat-completions endpoint at
// baseURL (expected to already end with "/", per config.normalizeBaseURL).
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

var _ Client = (*HTTPClient)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Query performs a stateless exchange: a system message built from the
// effective system prompt (if any), plus the single user prompt.
func (c *HTTPClient) Query(ctx context.Context, model string, params config.ModelParameters, prompt string) (string, error) {
	var messages []chatMessage
	if params.SystemPrompt != nil && *params.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: *params.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})
	return c.complete(ctx, model, params, messages)
}

// Converse performs a multi-turn exchange: the system message
// concatenates the effective system prompt with the conversation's
// context (when the context is non-empty), followed by the full
// history, whose tail is the newest user turn.
func (c *HTTPClient) Converse(ctx context.Context, model string, params config.ModelParameters, conv session.Conversation) (string, error) {
	var messages []chatMessage

	sys := ""
	if params.SystemPrompt != nil {
		sys = *params.SystemPrompt
	}
	if conv.Context != "" {
		sys = sys + "\n\nADDITIONAL CONTEXT FOR THIS CONVERSATION:\n" + conv.Context
	}
	if sys != "" {
		messages = append(messages, chatMessage{Role: "system", Content: sys})
	}

	for _, m := range conv.Messages {
		messages = append(messages, chatMessage{Role: roleString(m.Role), Content: m.Text})
	}

	return c.complete(ctx, model, params, messages)
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ListModels queries the OpenAI-compatible GET /models endpoint.
func (c *HTTPClient) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("LLM endpoint returned status %d: %s", resp.StatusCode, string(raw))
	}

	var result modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	names := make([]string, 0, len(result.Data))
	for _, m := range result.Data {
		names = append(names, m.ID)
	}
	return names, nil
}

func roleString(r session.Role) string {
	switch r {
	case session.RoleSystem:
		return "system"
	case session.RoleAssistant:
		return "assistant"
	default:
		return "user"
	}
}

func (c *HTTPClient) complete(ctx context.Context, model string, params config.ModelParameters, messages []chatMessage) (string, error) {
	reqBody := chatRequest{Model: model, Messages: messages, Temperature: params.Temperature}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("LLM endpoint returned status %d: %s", resp.StatusCode, string(raw))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("LLM endpoint returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}
