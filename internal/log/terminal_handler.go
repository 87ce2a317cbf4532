package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// palette holds the colours for one handler. Colours are per handler so a
// buffer-backed handler can render plain text while stderr stays coloured.
type palette struct {
	dim   *color.Color
	bold  *color.Color
	debug *color.Color
	info  *color.Color
	warn  *color.Color
	err   *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		dim:   color.New(color.Faint),
		bold:  color.New(color.Bold),
		debug: color.New(color.FgCyan),
		info:  color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		err:   color.New(color.FgRed),
	}
	for _, c := range []*color.Color{p.dim, p.bold, p.debug, p.info, p.warn, p.err} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// TerminalHandler formats log records as coloured terminal output.
//
// Output format:
//
//	15:04:05.000 INF distilled cluster cluster=0 guidelines=4
type TerminalHandler struct {
	writer io.Writer
	level  slog.Leveler
	attrs  []boundAttr
	groups []string
	colors palette
	mu     *sync.Mutex
}

// boundAttr is an attribute added through WithAttrs together with the groups
// open at that time.
type boundAttr struct {
	attr   slog.Attr
	groups []string
}

func newTerminalHandler(w io.Writer, opts *slog.HandlerOptions, colored bool) *TerminalHandler {
	var level slog.Leveler
	if opts != nil && opts.Level != nil {
		level = opts.Level
	} else {
		level = slog.LevelInfo
	}
	return &TerminalHandler{
		writer: w,
		level:  level,
		colors: newPalette(colored),
		mu:     &sync.Mutex{},
	}
}

// wantsColor reports whether w is an interactive terminal that should be coloured.
func wantsColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if f == os.Stdout {
		return !color.NoColor
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0 && os.Getenv("NO_COLOR") == ""
}

// Enabled reports whether the handler handles records at the given level.
func (h *TerminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats a log record and writes it as one line.
func (h *TerminalHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	buf.Grow(256)

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf.WriteString(h.colors.dim.Sprint(ts.Format("15:04:05.000")))
	buf.WriteByte(' ')

	c, label := h.levelStyle(r.Level)
	buf.WriteString(c.Sprint(label))
	buf.WriteByte(' ')

	buf.WriteString(h.colors.bold.Sprint(r.Message))

	for _, b := range h.attrs {
		h.appendAttr(&buf, b.attr, b.groups)
	}

	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&buf, a, h.groups)
		return true
	})

	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

// WithAttrs returns a new handler whose attributes consist of both the
// existing attributes and attrs.
func (h *TerminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]boundAttr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(merged, h.attrs)
	for _, a := range attrs {
		merged = append(merged, boundAttr{attr: a, groups: h.groups})
	}
	clone := *h
	clone.attrs = merged
	return &clone
}

// WithGroup returns a new handler with the given group name prepended to
// subsequent attribute keys.
func (h *TerminalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	extended := make([]string, len(h.groups)+1)
	copy(extended, h.groups)
	extended[len(h.groups)] = name
	clone := *h
	clone.groups = extended
	return &clone
}

func (h *TerminalHandler) levelStyle(level slog.Level) (*color.Color, string) {
	switch {
	case level < slog.LevelInfo:
		return h.colors.debug, "DBG"
	case level < slog.LevelWarn:
		return h.colors.info, "INF"
	case level < slog.LevelError:
		return h.colors.warn, "WRN"
	default:
		return h.colors.err, "ERR"
	}
}

func (h *TerminalHandler) appendAttr(buf *bytes.Buffer, a slog.Attr, groups []string) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		prefix := groups
		if a.Key != "" {
			prefix = append(append([]string{}, groups...), a.Key)
		}
		for _, ga := range a.Value.Group() {
			h.appendAttr(buf, ga, prefix)
		}
		return
	}

	var key strings.Builder
	for _, g := range groups {
		key.WriteString(g)
		key.WriteByte('.')
	}
	key.WriteString(a.Key)
	key.WriteByte('=')

	buf.WriteByte(' ')
	buf.WriteString(h.colors.dim.Sprint(key.String()))
	buf.WriteString(formatAttrValue(a.Value))
}

func formatAttrValue(v slog.Value) string {
	if v.Kind() == slog.KindString {
		s := v.String()
		if strings.ContainsAny(s, " \t\n\"\\") {
			return fmt.Sprintf("%q", s)
		}
		return s
	}
	return v.String()
}
