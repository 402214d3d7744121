package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/CinemateAI/cinemate-mvp/engine/chat"
)

// ChatClient implements chat.LLM over Ollama's /api/chat endpoint with
// native tool calling. Streaming is disabled; each request is one
// complete exchange.
type ChatClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewChatClient creates an Ollama chat-completion client.
func NewChatClient(baseURL, model string) *ChatClient {
	return &ChatClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type chatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
}

type chatToolCall struct {
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatToolSpec `json:"function"`
}

type chatToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatReq struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Tools    []chatTool     `json:"tools,omitempty"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResp struct {
	Message chatMessage `json:"message"`
}

// Complete runs one chat completion. If the model requests a tool, the
// returned Completion carries the first tool call; Ollama may emit several
// but the orchestrator only honors one per cycle.
func (c *ChatClient) Complete(ctx context.Context, req chat.CompletionRequest) (*chat.Completion, error) {
	payload := chatReq{
		Model:    c.model,
		Messages: make([]chatMessage, 0, len(req.Messages)),
		Stream:   false,
	}
	for _, t := range req.Messages {
		m := chatMessage{Role: string(t.Role), Content: t.Content}
		if t.ToolCall != nil {
			m.ToolCalls = []chatToolCall{{Function: chatToolFunction{
				Name:      t.ToolCall.Name,
				Arguments: t.ToolCall.Arguments,
			}}}
		}
		payload.Messages = append(payload.Messages, m)
	}
	for _, tool := range req.Tools {
		payload.Tools = append(payload.Tools, chatTool{
			Type: "function",
			Function: chatToolSpec{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	opts := map[string]any{}
	if req.Temperature > 0 {
		opts["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}
	if len(opts) > 0 {
		payload.Options = opts
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ollama chat encode: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("ollama chat: status %d", resp.StatusCode)
	}

	var result chatResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama chat decode: %w", err)
	}

	if len(result.Message.ToolCalls) > 0 {
		first := result.Message.ToolCalls[0]
		return &chat.Completion{ToolCall: &chat.ToolCall{
			Name:      first.Function.Name,
			Arguments: first.Function.Arguments,
		}}, nil
	}
	return &chat.Completion{Text: result.Message.Content}, nil
}
