package llm

import "encoding/json"

// Request types for OpenAI-compatible API

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRequest represents a chat completion request
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p"`
	Stream      bool      `json:"stream"`
}

// NewChatRequest builds a single-turn request carrying one user message
func NewChatRequest(model, content string, temperature, topP float64) ChatRequest {
	return ChatRequest{
		Model:       model,
		Messages:    []Message{{Role: RoleUser, Content: content}},
		Temperature: temperature,
		TopP:        topP,
	}
}

// MarshalJSON always writes "stream": false; streamed delivery is not supported.
func (r ChatRequest) MarshalJSON() ([]byte, error) {
	type wire ChatRequest
	w := wire(r)
	w.Stream = false
	return json.Marshal(w)
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	ID      string    `json:"id"`
	Object  string    `json:"object,omitempty"`
	Created int64     `json:"created"`
	Model   string    `json:"model"`
	Choices []Choice  `json:"choices"`
	Usage   Usage     `json:"usage"`
	Error   *APIFault `json:"error,omitempty"`
}

// Choice represents a completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason *string `json:"finish_reason"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage record
func (u *Usage) Add(o Usage) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
	u.TotalTokens += o.TotalTokens
}

// APIFault is the provider's error object. BigModel reports code as a
// string ("1261"), OpenAI-style gateways sometimes as a number.
type APIFault struct {
	Code    json.RawMessage `json:"code,omitempty"`
	Message string          `json:"message"`
	Type    string          `json:"type,omitempty"`
}

// CodeString returns the fault code without JSON quoting
func (f *APIFault) CodeString() string {
	if len(f.Code) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(f.Code, &s); err == nil {
		return s
	}
	return string(f.Code)
}

// ErrorResponse represents an API error body on non-2xx responses
type ErrorResponse struct {
	Error APIFault `json:"error"`
}
