package helper

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"log/slog"

	"github.com/fatih/color"
)

// PrettyHandlerOptions configures a PrettyHandler
type PrettyHandlerOptions struct {
	SlogOpts slog.HandlerOptions
}

// PrettyHandler is a slog.Handler printing colourised single-line records
// with the attributes rendered as an indented JSON object. Attributes added
// through With are printed with every record, grouped ones under their group.
type PrettyHandler struct {
	slog.Handler
	l      *log.Logger
	attrs  []scopedAttr
	groups []string
}

// scopedAttr is an attribute added through With under the groups open at the time
type scopedAttr struct {
	groups []string
	attr   slog.Attr
}

// Handle formats and writes a single record.
func (h *PrettyHandler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String() + ":"

	switch {
	case r.Level >= slog.LevelError:
		level = color.RedString(level)
	case r.Level >= slog.LevelWarn:
		level = color.YellowString(level)
	case r.Level >= slog.LevelInfo:
		level = color.BlueString(level)
	default:
		level = color.MagentaString(level)
	}

	fields := make(map[string]interface{}, len(h.attrs)+r.NumAttrs())
	for _, sa := range h.attrs {
		addAttr(descend(fields, sa.groups), sa.attr)
	}
	if r.NumAttrs() > 0 {
		target := descend(fields, h.groups)
		r.Attrs(func(a slog.Attr) bool {
			addAttr(target, a)
			return true
		})
	}

	timeStr := r.Time.Format("[15:04:05.000]")
	msg := color.CyanString(r.Message)

	if len(fields) == 0 {
		h.l.Println(timeStr, level, msg)
		return nil
	}

	b, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return err
	}
	h.l.Println(timeStr, level, msg, color.WhiteString(string(b)))

	return nil
}

func descend(fields map[string]interface{}, groups []string) map[string]interface{} {
	for _, group := range groups {
		nested, ok := fields[group].(map[string]interface{})
		if !ok {
			nested = map[string]interface{}{}
			fields[group] = nested
		}
		fields = nested
	}
	return fields
}

func addAttr(fields map[string]interface{}, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		nested := map[string]interface{}{}
		for _, ga := range a.Value.Group() {
			addAttr(nested, ga)
		}
		if a.Key == "" {
			for k, v := range nested {
				fields[k] = v
			}
			return
		}
		fields[a.Key] = nested
		return
	}
	if err, ok := a.Value.Any().(error); ok {
		fields[a.Key] = err.Error()
		return
	}
	fields[a.Key] = a.Value.Any()
}

// WithAttrs keeps the pretty output for loggers derived with With
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	scoped := append([]scopedAttr(nil), h.attrs...)
	for _, a := range attrs {
		scoped = append(scoped, scopedAttr{groups: h.groups, attr: a})
	}
	return &PrettyHandler{
		Handler: h.Handler.WithAttrs(attrs),
		l:       h.l,
		attrs:   scoped,
		groups:  h.groups,
	}
}

// WithGroup keeps the pretty output for loggers derived with WithGroup
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &PrettyHandler{
		Handler: h.Handler.WithGroup(name),
		l:       h.l,
		attrs:   h.attrs,
		groups:  append(append([]string(nil), h.groups...), name),
	}
}

// NewPrettyHandler creates a PrettyHandler writing to out.
func NewPrettyHandler(out io.Writer, opts PrettyHandlerOptions) *PrettyHandler {
	h := &PrettyHandler{
		Handler: slog.NewJSONHandler(out, &opts.SlogOpts),
		l:       log.New(out, "", 0),
	}
	return h
}

// NewLogger returns a slog.Logger backed by a PrettyHandler.
func NewLogger(out io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewPrettyHandler(out, PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{Level: level},
	}))
}
