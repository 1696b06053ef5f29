package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/s33g/companion-chat/internal/config"
)

const completionsPath = "/chat/completions"

// Client sends single-turn chat completion requests to one provider.
// It holds no mutable state after construction and is safe for
// concurrent use.
type Client struct {
	httpClient *http.Client
	provider   config.Provider
	endpoint   string
	apiKey     string
	logger     zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithAPIKey sets the bearer key, overriding the provider's env lookup
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new chat client for a provider
func NewClient(provider config.Provider, opts ...Option) (*Client, error) {
	// API key is optional (e.g., for a local gateway)
	apiKey := ""
	if provider.APIKeyEnv != "" {
		apiKey = os.Getenv(provider.APIKeyEnv)
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: provider.Timeout(),
		},
		provider: provider,
		apiKey:   apiKey,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	endpoint, err := completionsURL(provider.BaseURL)
	if err != nil {
		return nil, err
	}
	c.endpoint = endpoint
	c.logger = c.logger.With().
		Str("component", "llm").
		Str("provider", provider.Name).
		Logger()

	return c, nil
}

func completionsURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + completionsPath)
	if err != nil {
		return "", newError(KindInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", newError(KindInvalidURL, fmt.Errorf("%q is not an absolute http(s) URL", baseURL))
	}
	return u.String(), nil
}

// Name returns the provider name
func (c *Client) Name() string {
	return c.provider.Name
}

// Model returns the model id sent with every request
func (c *Client) Model() string {
	return c.provider.Model
}

// Chat sends message as the only user turn and returns the first
// choice's content unmodified
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	resp, err := c.Complete(ctx, message)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}

// Complete sends message as the only user turn and returns the decoded
// response, which always has at least one choice
func (c *Client) Complete(ctx context.Context, message string) (*ChatResponse, error) {
	req := NewChatRequest(c.provider.Model, message, c.provider.Temperature, c.provider.TopP)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, newError(KindEncoding, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, newError(KindInvalidURL, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug().
		Str("model", req.Model).
		Int("bytes", len(body)).
		Msg("Sending chat request")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug().Err(err).Dur("latency", time.Since(start)).Msg("Chat request failed")
		return nil, newError(KindTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindTransport, fmt.Errorf("failed to read response: %w", err))
	}

	c.logger.Debug().
		Int("status", resp.StatusCode).
		Int("bytes", len(respBody)).
		Dur("latency", time.Since(start)).
		Msg("Chat response received")

	return decodeResponse(resp.StatusCode, respBody)
}

// decodeResponse maps a status code and body to a usable response or an *Error
func decodeResponse(status int, body []byte) (*ChatResponse, error) {
	if status < 200 || status > 299 {
		e := &Error{StatusCode: status}
		switch status {
		case http.StatusUnauthorized:
			e.Kind = KindUnauthorized
		case http.StatusTooManyRequests:
			e.Kind = KindRateLimited
		default:
			e.Kind = KindHTTP
		}

		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			e.Code = errResp.Error.CodeString()
			e.Message = errResp.Error.Message
		}
		return nil, e
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, &Error{Kind: KindDecoding, StatusCode: status, Err: err}
	}

	if fault := chatResp.Error; fault != nil && (fault.Message != "" || len(fault.Code) > 0) {
		return nil, &Error{
			Kind:       KindAPI,
			StatusCode: status,
			Code:       fault.CodeString(),
			Message:    fault.Message,
		}
	}

	if len(chatResp.Choices) == 0 {
		return nil, &Error{Kind: KindDecoding, StatusCode: status, Message: "response contains no choices"}
	}

	return &chatResp, nil
}
