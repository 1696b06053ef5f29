package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/s33g/companion-chat/internal/config"
	"github.com/s33g/companion-chat/internal/llm"
)

// ErrEmptyMessage is returned by Send for blank input; nothing is sent
var ErrEmptyMessage = errors.New("message is empty")

// responseReserve is the token estimate reserved for a reply when
// charging the token quota
const responseReserve = 1000

// Completer performs one single-turn chat request
type Completer interface {
	Complete(ctx context.Context, message string) (*llm.ChatResponse, error)
}

// Quota is consulted before each request
type Quota interface {
	Allow(ctx context.Context, userID string, tokens int) error
}

// Entry is one line of the visible transcript
type Entry struct {
	ID        string
	Role      string
	Content   string
	Err       error // set on assistant entries that describe a failure
	Timestamp time.Time
}

// Failed reports whether the entry stands in for a failed request
func (e Entry) Failed() bool {
	return e.Err != nil
}

// Session keeps an in-memory transcript and forwards each user message
// to a Completer. Nothing is persisted.
type Session struct {
	completer Completer
	quota     Quota
	counter   *TokenCounter
	logger    zerolog.Logger
	now       func() time.Time

	mu      sync.Mutex
	cfg     config.SessionConfig
	entries []Entry
	usage   llm.Usage
}

// Option configures a Session
type Option func(*Session)

// WithQuota enforces q before each request
func WithQuota(q Quota) Option {
	return func(s *Session) {
		s.quota = q
	}
}

// WithTokenCounter shares a token counter between sessions
func WithTokenCounter(tc *TokenCounter) Option {
	return func(s *Session) {
		s.counter = tc
	}
}

// New creates a session sending through completer
func New(completer Completer, cfg config.SessionConfig, logger zerolog.Logger, opts ...Option) *Session {
	s := &Session{
		completer: completer,
		logger:    logger.With().Str("component", "session").Logger(),
		now:       time.Now,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.counter == nil {
		s.counter = NewTokenCounter()
	}
	return s
}

// SetConfig swaps the session settings; the transcript is kept
func (s *Session) SetConfig(cfg config.SessionConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg
	s.trimLocked()
}

// Send records text as a user turn, requests a reply, and records the
// reply. On failure an assistant entry carrying Describe(err) is
// recorded and returned together with the error. Blank input returns
// ErrEmptyMessage and records nothing.
func (s *Session) Send(ctx context.Context, text string) (Entry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Entry{}, ErrEmptyMessage
	}

	s.mu.Lock()
	cfg := s.cfg
	prior := make([]Entry, len(s.entries))
	copy(prior, s.entries)
	s.appendLocked(s.newEntry(llm.RoleUser, text, nil))
	s.mu.Unlock()

	outgoing := text
	if cfg.CarryContext {
		outgoing = NewContextBuilder(s.counter, "").Fold(prior, text, cfg.MaxContextTokens)
	}

	if s.quota != nil {
		tokens := s.counter.CountMessage(outgoing, "") + responseReserve
		if err := s.quota.Allow(ctx, cfg.User, tokens); err != nil {
			return s.fail(err), err
		}
	}

	start := s.now()
	resp, err := s.completer.Complete(ctx, outgoing)
	if err != nil {
		return s.fail(err), err
	}

	reply := s.newEntry(llm.RoleAssistant, resp.Choices[0].Message.Content, nil)

	s.mu.Lock()
	s.appendLocked(reply)
	s.usage.Add(resp.Usage)
	s.mu.Unlock()

	s.logger.Debug().
		Int("total_tokens", resp.Usage.TotalTokens).
		Dur("latency", s.now().Sub(start)).
		Msg("Reply received")

	return reply, nil
}

func (s *Session) fail(err error) Entry {
	s.logger.Warn().
		Err(err).
		Str("kind", llm.KindOf(err).String()).
		Msg("Chat request failed")

	e := s.newEntry(llm.RoleAssistant, Describe(err), err)

	s.mu.Lock()
	s.appendLocked(e)
	s.mu.Unlock()

	return e
}

func (s *Session) newEntry(role, content string, err error) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Err:       err,
		Timestamp: s.now(),
	}
}

func (s *Session) appendLocked(e Entry) {
	s.entries = append(s.entries, e)
	s.trimLocked()
}

func (s *Session) trimLocked() {
	if limit := s.cfg.HistoryLimit; limit > 0 && len(s.entries) > limit {
		s.entries = append([]Entry(nil), s.entries[len(s.entries)-limit:]...)
	}
}

// History returns a copy of the transcript, oldest first
func (s *Session) History() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Clear drops the transcript and usage totals
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	s.usage = llm.Usage{}
}

// Usage returns the provider-reported token totals for this session
func (s *Session) Usage() llm.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.usage
}
