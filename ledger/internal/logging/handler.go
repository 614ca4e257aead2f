// Package logging formats log lines for the command line:
//
//	[LEVEL] [STAGE] [HH:MM:SS] message key=value key=value
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// StageKey is shown in brackets instead of as a key=value pair.
const StageKey = "stage"

var levelColors = map[slog.Level]*color.Color{
	slog.LevelDebug: color.New(color.FgHiBlack),
	slog.LevelInfo:  color.New(color.FgCyan),
	slog.LevelWarn:  color.New(color.FgYellow),
	slog.LevelError: color.New(color.FgRed, color.Bold),
}

var timeColor = color.New(color.FgHiBlack)

// Handler is a slog.Handler writing one bracketed line per record.
type Handler struct {
	w         io.Writer
	level     slog.Leveler
	mu        *sync.Mutex
	stage     string
	useColors bool
	groups    []string
	attrs     []slog.Attr
}

// NewHandler returns a Handler writing to w. Colors are used when w is a
// terminal.
func NewHandler(w io.Writer, opts *slog.HandlerOptions) *Handler {
	return newHandler(w, opts, isTerminal(w))
}

var enableColorsOnce sync.Once

func newHandler(w io.Writer, opts *slog.HandlerOptions, useColors bool) *Handler {
	h := &Handler{
		w:         w,
		level:     slog.LevelInfo,
		mu:        &sync.Mutex{},
		useColors: useColors,
	}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	if useColors {
		// color disables itself when stdout is not a terminal, whatever w is
		enableColorsOnce.Do(func() {
			for _, c := range levelColors {
				c.EnableColor()
			}
			timeColor.EnableColor()
		})
	}
	return h
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	lvl := "[" + levelString(r.Level) + "]"
	if c, ok := levelColors[r.Level]; ok && h.useColors {
		lvl = c.Sprint(lvl)
	}
	buf.WriteString(lvl)

	if h.stage != "" {
		buf.WriteString(" [")
		buf.WriteString(h.stage)
		buf.WriteString("]")
	}

	if !r.Time.IsZero() {
		ts := "[" + r.Time.Format("15:04:05") + "]"
		if h.useColors {
			ts = timeColor.Sprint(ts)
		}
		buf.WriteString(" ")
		buf.WriteString(ts)
	}

	buf.WriteString(" ")
	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		h.appendAttr(&buf, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&buf, a)
		return true
	})
	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, buf.String())
	return err
}

func (h *Handler) appendAttr(buf *strings.Builder, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) || a.Key == StageKey {
		return
	}
	key := a.Key
	if len(h.groups) > 0 {
		key = strings.Join(h.groups, ".") + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			ga.Key = a.Key + "." + ga.Key
			h.appendAttr(buf, ga)
		}
		return
	}

	buf.WriteString(" ")
	buf.WriteString(key)
	buf.WriteString("=")
	v := fmt.Sprint(a.Value.Any())
	if strings.ContainsAny(v, " \t\n\"") {
		v = fmt.Sprintf("%q", v)
	}
	buf.WriteString(v)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	stage := h.stage
	for _, a := range attrs {
		if a.Key == StageKey {
			stage = a.Value.String()
		}
	}
	return &Handler{
		w:         h.w,
		level:     h.level,
		mu:        h.mu,
		stage:     stage,
		useColors: h.useColors,
		groups:    h.groups,
		attrs:     append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &Handler{
		w:         h.w,
		level:     h.level,
		mu:        h.mu,
		stage:     h.stage,
		useColors: h.useColors,
		groups:    append(append([]string(nil), h.groups...), name),
		attrs:     h.attrs,
	}
}

func levelString(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "DEBUG"
	case slog.LevelInfo:
		return "INFO"
	case slog.LevelWarn:
		return "WARN"
	case slog.LevelError:
		return "ERROR"
	default:
		return level.String()
	}
}

// ParseLevel maps debug, info, warn(ing) and error to a slog.Level,
// defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a logger writing to w at the named level.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(NewHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// Discard returns a logger dropping everything.
func Discard() *slog.Logger {
	return slog.New(NewHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(127)}))
}
