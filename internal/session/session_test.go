package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/s33g/companion-chat/internal/config"
	"github.com/s33g/companion-chat/internal/llm"
	"github.com/s33g/companion-chat/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// tiktoken may fetch its BPE ranks over HTTP and leave keep-alive
	// connections behind
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

type fakeCompleter struct {
	mu    sync.Mutex
	sent  []string
	reply func(message string) (*llm.ChatResponse, error)
}

func (f *fakeCompleter) Complete(_ context.Context, message string) (*llm.ChatResponse, error) {
	f.mu.Lock()
	f.sent = append(f.sent, message)
	f.mu.Unlock()
	return f.reply(message)
}

func echo(message string) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{
		Choices: []llm.Choice{{Message: llm.Message{Role: llm.RoleAssistant, Content: "re: " + message}}},
		Usage:   llm.Usage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5},
	}, nil
}

type fakeQuota struct {
	err    error
	tokens []int
}

func (q *fakeQuota) Allow(_ context.Context, _ string, tokens int) error {
	q.tokens = append(q.tokens, tokens)
	return q.err
}

func defaultSessionConfig() config.SessionConfig {
	return config.DefaultConfig().Session
}

func TestSession_Send(t *testing.T) {
	fc := &fakeCompleter{reply: echo}
	s := New(fc, defaultSessionConfig(), zerolog.Nop())

	reply, err := s.Send(context.Background(), "  你好 \n")
	require.NoError(t, err)

	assert.Equal(t, "re: 你好", reply.Content)
	assert.Equal(t, llm.RoleAssistant, reply.Role)
	assert.NotEmpty(t, reply.ID)
	assert.Equal(t, []string{"你好"}, fc.sent)

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, llm.RoleUser, history[0].Role)
	assert.Equal(t, "你好", history[0].Content)
	assert.NotEqual(t, history[0].ID, history[1].ID)
	assert.Equal(t, llm.Usage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5}, s.Usage())
}

func TestSession_SendIsSingleTurnByDefault(t *testing.T) {
	fc := &fakeCompleter{reply: echo}
	s := New(fc, defaultSessionConfig(), zerolog.Nop())

	for _, msg := range []string{"first", "second", "third"} {
		_, err := s.Send(context.Background(), msg)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"first", "second", "third"}, fc.sent)
	assert.Equal(t, 15, s.Usage().TotalTokens)
}

func TestSession_SendEmpty(t *testing.T) {
	fc := &fakeCompleter{reply: echo}
	s := New(fc, defaultSessionConfig(), zerolog.Nop())

	_, err := s.Send(context.Background(), " \t\n")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, s.History())
	assert.Empty(t, fc.sent)
}

func TestSession_SendFailure(t *testing.T) {
	fc := &fakeCompleter{reply: func(string) (*llm.ChatResponse, error) {
		return nil, &llm.Error{Kind: llm.KindUnauthorized, StatusCode: 401}
	}}
	s := New(fc, defaultSessionConfig(), zerolog.Nop())

	entry, err := s.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, llm.ErrUnauthorized)
	assert.True(t, entry.Failed())
	assert.Equal(t, "API密钥无效或已过期", entry.Content)

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Content)
	assert.True(t, history[1].Failed())
	assert.Equal(t, llm.Usage{}, s.Usage())
}

func TestSession_Quota(t *testing.T) {
	fc := &fakeCompleter{reply: echo}
	q := &fakeQuota{}
	s := New(fc, defaultSessionConfig(), zerolog.Nop(), WithQuota(q))

	_, err := s.Send(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, q.tokens, 1)
	assert.Greater(t, q.tokens[0], responseReserve)

	q.err = &ratelimit.ExceededError{Limit: "minute", RetryAfter: 42 * time.Second}
	entry, err := s.Send(context.Background(), "again")
	assert.ErrorIs(t, err, ratelimit.ErrExceeded)
	assert.Equal(t, "请求过于频繁，请在42秒后重试", entry.Content)

	// The rejected message never reached the provider
	assert.Equal(t, []string{"hello"}, fc.sent)
}

func TestSession_CarryContext(t *testing.T) {
	fc := &fakeCompleter{reply: echo}
	cfg := defaultSessionConfig()
	cfg.CarryContext = true
	cfg.MaxContextTokens = 4096
	s := New(fc, cfg, zerolog.Nop())

	_, err := s.Send(context.Background(), "my name is Ada")
	require.NoError(t, err)
	_, err = s.Send(context.Background(), "what is my name?")
	require.NoError(t, err)

	require.Len(t, fc.sent, 2)
	// First turn has nothing to carry
	assert.Equal(t, "my name is Ada", fc.sent[0])
	assert.Equal(t, "user: my name is Ada\nassistant: re: my name is Ada\nuser: what is my name?", fc.sent[1])
}

func TestSession_HistoryLimit(t *testing.T) {
	fc := &fakeCompleter{reply: echo}
	cfg := defaultSessionConfig()
	cfg.HistoryLimit = 3
	s := New(fc, cfg, zerolog.Nop())

	for i := 0; i < 4; i++ {
		_, err := s.Send(context.Background(), fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	history := s.History()
	require.Len(t, history, 3)
	assert.Equal(t, "re: m2", history[0].Content)
	assert.Equal(t, "re: m3", history[2].Content)

	cfg.HistoryLimit = 1
	s.SetConfig(cfg)
	assert.Len(t, s.History(), 1)
}

func TestSession_Clear(t *testing.T) {
	s := New(&fakeCompleter{reply: echo}, defaultSessionConfig(), zerolog.Nop())

	_, err := s.Send(context.Background(), "hello")
	require.NoError(t, err)

	s.Clear()
	assert.Empty(t, s.History())
	assert.Zero(t, s.Usage().TotalTokens)
}

func TestSession_ConcurrentSends(t *testing.T) {
	fc := &fakeCompleter{reply: echo}
	s := New(fc, defaultSessionConfig(), zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Send(context.Background(), fmt.Sprintf("msg %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.History(), 40)
	assert.Equal(t, 100, s.Usage().TotalTokens)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"invalid url", &llm.Error{Kind: llm.KindInvalidURL}, "无效的URL"},
		{"transport", &llm.Error{Kind: llm.KindTransport, Err: errors.New("dial tcp: refused")}, GenericFailure},
		{"unauthorized", &llm.Error{Kind: llm.KindUnauthorized, StatusCode: 401}, "API密钥无效或已过期"},
		{"rate limited", &llm.Error{Kind: llm.KindRateLimited, StatusCode: 429}, "超出API调用限制"},
		{"http", &llm.Error{Kind: llm.KindHTTP, StatusCode: 503}, "HTTP错误: 503"},
		{"empty choices", &llm.Error{Kind: llm.KindDecoding, Message: "response contains no choices"}, "无效的响应数据"},
		{"bad json", &llm.Error{Kind: llm.KindDecoding, Err: errors.New("unexpected end of JSON input")}, "数据解析错误: unexpected end of JSON input"},
		{"api", &llm.Error{Kind: llm.KindAPI, Code: "1301", Message: "内容不安全"}, "内容不安全"},
		{"wrapped", fmt.Errorf("ask: %w", &llm.Error{Kind: llm.KindRateLimited}), "超出API调用限制"},
		{"foreign", errors.New("boom"), GenericFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.err))
		})
	}
}

func TestContextBuilder_Fold(t *testing.T) {
	cb := NewContextBuilder(NewTokenCounter(), "")
	history := []Entry{
		{Role: llm.RoleUser, Content: "old question"},
		{Role: llm.RoleAssistant, Content: "old answer"},
		{Role: llm.RoleUser, Content: "failed question"},
		{Role: llm.RoleAssistant, Content: GenericFailure, Err: errors.New("refused")},
		{Role: llm.RoleUser, Content: "recent question"},
		{Role: llm.RoleAssistant, Content: "recent answer"},
	}

	folded := cb.Fold(history, "next", 4096)
	assert.Equal(t, strings.Join([]string{
		"user: old question",
		"assistant: old answer",
		"user: recent question",
		"assistant: recent answer",
		"user: next",
	}, "\n"), folded)

	// A tight budget keeps only the newest turns
	tight := cb.Fold(history, "next", cb.counter.CountMessage("next", "")+cb.counter.CountMessage("recent answer", ""))
	assert.Equal(t, "assistant: recent answer\nuser: next", tight)

	// A failure at the tail drops its question too
	failedTail := append(history[:2:2], history[2], history[3])
	assert.Equal(t, "user: old question\nassistant: old answer\nuser: next", cb.Fold(failedTail, "next", 4096))

	// Nothing fits: the message goes out as-is
	assert.Equal(t, "next", cb.Fold(history, "next", 1))
	assert.Equal(t, "next", cb.Fold(nil, "next", 4096))
}

func TestTokenCounter_Count(t *testing.T) {
	tc := NewTokenCounter()

	assert.Zero(t, tc.Count("", "glm-4-flash"))

	for _, text := range []string{"Hello, world!", "你好，有什么可以帮你？"} {
		count := tc.Count(text, "glm-4-flash")
		assert.Positive(t, count, text)
		assert.LessOrEqual(t, count, len(text), text)
	}

	assert.Equal(t, tc.Count("Hello", "")+messageOverhead, tc.CountMessage("Hello", ""))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
	assert.Equal(t, 1, estimateTokens("abcd"))
	assert.Equal(t, 2, estimateTokens("你好"))
}
