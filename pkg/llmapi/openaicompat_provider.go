package llmapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	repairerrors "github.com/codeready-toolchain/repairagent/pkg/errors"
)

// OpenAICompatProvider is the HTTP fallback Provider (spec.md §6): a
// bearer-authenticated client against any OpenAI-compatible chat
// completions endpoint. Grounded on pkg/sourcehost.Client's stdlib
// net/http usage and status/error handling — the teacher's own codebase
// never reaches for an HTTP client library beyond the standard one, so
// this follows suit rather than introducing one (DESIGN.md).
type OpenAICompatProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewOpenAICompatProvider constructs a provider against baseURL (e.g.
// "https://api.openai.com/v1"), authenticating every request with
// apiKey as a bearer token.
func NewOpenAICompatProvider(baseURL, apiKey, model string) *OpenAICompatProvider {
	return &OpenAICompatProvider{
		httpClient: &http.Client{Timeout: 90 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
	}
}

type chatCompletionRequest struct {
	Model          string                 `json:"model"`
	Messages       []chatMessage          `json:"messages"`
	Temperature    float64                `json:"temperature,omitempty"`
	ResponseFormat map[string]string      `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate posts req to /chat/completions and maps the first choice back
// into a Response.
func (p *OpenAICompatProvider) Generate(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	body := chatCompletionRequest{
		Model:       model,
		Temperature: req.Temperature,
		Messages:    toChatMessages(req.Messages),
	}
	if req.ResponseFormat == ResponseFormatJSON {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("encoding chat completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(encoded))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, &repairerrors.TransportError{Target: "llm-openai-compat", Err: err}
	}
	defer resp.Body.Close()

	if err := p.statusError(resp); err != nil {
		return Response{}, err
	}

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Response{}, fmt.Errorf("decoding chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Response{}, fmt.Errorf("chat completion response had no choices")
	}

	choice := parsed.Choices[0]
	out := Response{
		Text: choice.Message.Content,
		Usage: Usage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
			TotalTokens:  parsed.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return out, nil
}

// Close is a no-op; OpenAICompatProvider holds no long-lived connection.
func (p *OpenAICompatProvider) Close() error { return nil }

func (p *OpenAICompatProvider) statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	err := fmt.Errorf("%s: %s", resp.Status, string(payload))
	if resp.StatusCode == http.StatusTooManyRequests {
		return &repairerrors.ClientError{Target: "llm-openai-compat", Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= 500 {
		return &repairerrors.TransportError{Target: "llm-openai-compat", Err: err}
	}
	return &repairerrors.ClientError{Target: "llm-openai-compat", Status: resp.StatusCode, Err: err}
}

func toChatMessages(msgs []ConversationMessage) []chatMessage {
	out := make([]chatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, chatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
