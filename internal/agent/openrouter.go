package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// OpenRouterAgent drives a character through the OpenRouter chat completion
// API. One agent holds the system prompt and rolling message history for a
// single character.
type OpenRouterAgent struct {
	name         string
	model        string
	systemPrompt string
	client       *OpenRouterClient
	history      []Message
	historyLimit int
}

// NewOpenRouterAgent creates an agent for a character. The system prompt is
// the character's backstory and standing instructions.
func NewOpenRouterAgent(name, model, systemPrompt string, client *OpenRouterClient) *OpenRouterAgent {
	return &OpenRouterAgent{
		name:         name,
		model:        model,
		systemPrompt: systemPrompt,
		client:       client,
		historyLimit: 40,
	}
}

func (a *OpenRouterAgent) Name() string { return a.name }

// Invoke sends the prompt with the character's history and records both
// sides of the exchange.
func (a *OpenRouterAgent) Invoke(ctx context.Context, prompt string) (string, error) {
	messages := make([]Message, 0, len(a.history)+2)
	messages = append(messages, Message{Role: "system", Content: a.systemPrompt})
	messages = append(messages, a.history...)
	messages = append(messages, Message{Role: "user", Content: prompt})

	resp, err := a.client.CreateCompletion(ctx, &CompletionRequest{
		Model:    a.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("agent %s: %w", a.name, err)
	}

	reply := resp.Choices[0].Message.Content
	a.history = append(a.history,
		Message{Role: "user", Content: prompt},
		Message{Role: "assistant", Content: reply},
	)
	if len(a.history) > a.historyLimit {
		a.history = a.history[len(a.history)-a.historyLimit:]
	}
	return reply, nil
}

// OpenRouterClient handles communication with the OpenRouter API.
type OpenRouterClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenRouterClient creates a client reading the API key from the
// environment.
func NewOpenRouterClient() *OpenRouterClient {
	return &OpenRouterClient{
		apiKey:  os.Getenv("OPENROUTER_API_KEY"),
		baseURL: "https://openrouter.ai/api/v1",
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the request to the OpenRouter API.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// CompletionResponse is the response from the OpenRouter API.
type CompletionResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int     `json:"index"`
		Message Message `json:"message"`
		Reason  string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// CreateCompletion calls the OpenRouter API.
func (c *OpenRouterClient) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY not set")
	}

	if req.Temperature == 0 {
		req.Temperature = 0.7
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = 2048
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/chat/completions", c.baseURL), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	httpReq.Header.Set("HTTP-Referer", "https://fablesim.local")
	httpReq.Header.Set("X-Title", "FableSim")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var completionResp CompletionResponse
	if err := json.Unmarshal(respBody, &completionResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if completionResp.Error != nil {
		return nil, fmt.Errorf("API error: %s (%s)", completionResp.Error.Message, completionResp.Error.Type)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if len(completionResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return &completionResp, nil
}
