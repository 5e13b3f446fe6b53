package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelSuccessSlog is the slog level used for successful outcomes. It sits
// between Info and Warn so that info-level filtering keeps it.
const LevelSuccessSlog = slog.LevelInfo + 2

// Options configures the console and file outputs of a Logger.
type Options struct {
	// Console receives colored human-readable lines. Nil disables the console.
	Console io.Writer

	// NoColor forces plain console output.
	NoColor bool

	// Verbose enables debug-level output (HTTP traces).
	Verbose bool

	// File is an optional JSON log file, rotated by size.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Logger reports events through log/slog.
type Logger struct {
	log *slog.Logger
}

// NewLogger wraps a slog handler.
func NewLogger(h slog.Handler) *Logger {
	return &Logger{log: slog.New(h)}
}

// Setup builds a Logger from options. The returned closer releases the log
// file and must be called on shutdown.
func Setup(opts Options) (*Logger, io.Closer) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}

	var handlers []slog.Handler
	if opts.Console != nil {
		handlers = append(handlers, NewConsoleHandler(opts.Console, level, opts.NoColor))
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		closer = rotator
		handlers = append(handlers, slog.NewJSONHandler(rotator, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: replaceLevel,
		}))
	}

	return NewLogger(fanout(handlers)), closer
}

// Slog exposes the underlying logger for debug tracing.
func (l *Logger) Slog() *slog.Logger {
	return l.log
}

// Report implements Reporter.
func (l *Logger) Report(ev Event) {
	attrs := []slog.Attr{
		slog.String("event_id", ev.ID),
		slog.String("action", string(ev.Action)),
	}
	if ev.WizardID != NoWizard {
		attrs = append(attrs, slog.Int("wizard", ev.WizardID))
	}
	if ev.Kind != "" {
		attrs = append(attrs, slog.String("kind", ev.Kind))
	}
	if ev.Path != "" {
		attrs = append(attrs, slog.String("path", ev.Path))
	}
	if ev.Err != nil {
		attrs = append(attrs, slog.String("error", ev.Err.Error()))
	}
	l.log.LogAttrs(context.Background(), slogLevel(ev.Level), ev.Message, attrs...)
}

func slogLevel(l Level) slog.Level {
	switch l {
	case LevelSuccess:
		return LevelSuccessSlog
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelSuccessSlog {
			a.Value = slog.StringValue("SUCCESS")
		}
	}
	return a
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// ConsoleHandler writes one colored line per record:
//
//	✓ Uploaded event template for wizard 'Acme'  wizard=42 path=...
type ConsoleHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Leveler
	attrs []slog.Attr

	info, success, warn, fail, debug, dim lipgloss.Style
}

// hiddenConsoleKeys are attributes kept out of the console line.
var hiddenConsoleKeys = map[string]bool{"event_id": true, "action": true}

// NewConsoleHandler returns a handler writing to w. Colors are disabled when
// noColor is set or the environment asks for it (NO_COLOR).
func NewConsoleHandler(w io.Writer, level slog.Leveler, noColor bool) *ConsoleHandler {
	renderer := lipgloss.NewRenderer(w)
	if noColor || termenv.EnvNoColor() || !IsTerminal(w) {
		renderer.SetColorProfile(termenv.Ascii)
	}

	return &ConsoleHandler{
		mu:      &sync.Mutex{},
		w:       w,
		level:   level,
		info:    renderer.NewStyle().Foreground(lipgloss.Color("12")),
		success: renderer.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		warn:    renderer.NewStyle().Foreground(lipgloss.Color("11")),
		fail:    renderer.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		debug:   renderer.NewStyle().Faint(true),
		dim:     renderer.NewStyle().Faint(true),
	}
}

// IsTerminal reports whether stream is an interactive terminal. Only values
// with a file descriptor, such as *os.File, can be one.
func IsTerminal(stream any) bool {
	f, ok := stream.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// Enabled implements slog.Handler.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	symbol, style := h.decorate(r.Level)

	var b strings.Builder
	b.WriteString(style.Render(symbol))
	b.WriteByte(' ')
	b.WriteString(style.Render(r.Message))

	var fields []string
	appendAttr := func(a slog.Attr) bool {
		if !hiddenConsoleKeys[a.Key] {
			fields = append(fields, fmt.Sprintf("%s=%v", a.Key, a.Value.Any()))
		}
		return true
	}
	for _, a := range h.attrs {
		appendAttr(a)
	}
	r.Attrs(appendAttr)
	if len(fields) > 0 {
		b.WriteString("  ")
		b.WriteString(h.dim.Render(strings.Join(fields, " ")))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *ConsoleHandler) decorate(level slog.Level) (string, lipgloss.Style) {
	switch {
	case level >= slog.LevelError:
		return "✗", h.fail
	case level >= slog.LevelWarn:
		return "⚠", h.warn
	case level >= LevelSuccessSlog:
		return "✓", h.success
	case level >= slog.LevelInfo:
		return "•", h.info
	default:
		return "·", h.debug
	}
}

// WithAttrs implements slog.Handler.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup implements slog.Handler. Groups are flattened on the console.
func (h *ConsoleHandler) WithGroup(string) slog.Handler {
	return h
}
