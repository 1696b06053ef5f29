package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	"github.com/s33g/companion-chat/internal/session"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorBlue   = "\033[34m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

// LineReader reads one line of user input. *liner.State satisfies it.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// NewTerminal returns a liner-backed reader for interactive use. The
// caller must Close it to restore the terminal.
func NewTerminal() *liner.State {
	rl := liner.NewLiner()
	rl.SetCtrlCAborts(true)
	return rl
}

// REPL drives a chat session from line input
type REPL struct {
	reader  LineReader
	out     io.Writer
	session *session.Session
	title   string
	color   bool
}

// New creates a REPL. title is printed in the header (usually the model id).
func New(reader LineReader, out io.Writer, s *session.Session, title string, color bool) *REPL {
	return &REPL{
		reader:  reader,
		out:     out,
		session: s,
		title:   title,
		color:   color,
	}
}

// Run reads lines until EOF, Ctrl+C, /exit or ctx is done
func (r *REPL) Run(ctx context.Context) error {
	r.printf(colorYellow, "companion chat (%s) - /help for commands\n", r.title)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line, err := r.reader.Prompt("> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				r.printf("", "\n")
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.reader.AppendHistory(line)

		if strings.HasPrefix(line, "/") {
			if done := r.command(line); done {
				return nil
			}
			continue
		}

		entry, err := r.session.Send(ctx, line)
		switch {
		case errors.Is(err, session.ErrEmptyMessage):
			continue
		case err != nil:
			r.printf(colorRed, "%s\n", entry.Content)
		default:
			r.printf(colorBlue, "%s\n", entry.Content)
		}
	}
}

// command handles a slash command and reports whether the loop should end
func (r *REPL) command(line string) bool {
	switch strings.Fields(line)[0] {
	case "/exit", "/quit":
		return true
	case "/clear":
		r.session.Clear()
		r.printf(colorGreen, "Conversation cleared.\n")
	case "/history":
		history := r.session.History()
		if len(history) == 0 {
			r.printf(colorGreen, "No messages yet.\n")
		}
		for _, e := range history {
			color := colorBlue
			if e.Role == "user" {
				color = colorGreen
			} else if e.Failed() {
				color = colorRed
			}
			r.printf(color, "[%s] %s: %s\n", e.Timestamp.Format("15:04:05"), e.Role, e.Content)
		}
	case "/usage":
		u := r.session.Usage()
		r.printf(colorGreen, "prompt=%d completion=%d total=%d\n", u.PromptTokens, u.CompletionTokens, u.TotalTokens)
	case "/help":
		r.printf(colorGreen, "/history  show this session's messages\n/usage    show token usage\n/clear    forget this session\n/exit     quit\n")
	default:
		r.printf(colorRed, "Unknown command %s. Type /help.\n", line)
	}
	return false
}

func (r *REPL) printf(color, format string, args ...any) {
	if r.color && color != "" {
		fmt.Fprint(r.out, color)
		defer fmt.Fprint(r.out, colorReset)
	}
	fmt.Fprintf(r.out, format, args...)
}
