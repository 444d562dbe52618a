package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format is the handler encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config is the env-driven override of the environment presets. Empty
// fields keep the preset.
type Config struct {
	Level  string `env:"LOG_LEVEL"`
	Format string `env:"LOG_FORMAT"`
}

// Validate rejects values New would otherwise ignore.
func (c Config) Validate() error {
	var errs []error
	if c.Level != "" {
		if _, err := ParseLevel(c.Level); err != nil {
			errs = append(errs, err)
		}
	}
	switch Format(strings.ToLower(c.Format)) {
	case "", FormatJSON, FormatText:
	default:
		errs = append(errs, fmt.Errorf("invalid LOG_FORMAT %q: must be %q or %q", c.Format, FormatJSON, FormatText))
	}
	return errors.Join(errs...)
}

// ParseLevel accepts the slog level names (debug, info, warn, error) with
// optional offsets such as "info+2".
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return l, nil
}

type Option func(*options)

type options struct {
	level      slog.Level
	format     Format
	output     io.Writer
	attrs      []slog.Attr
	extractors []ContextExtractor
	redact     map[string]struct{}
}

func WithLevel(l slog.Level) Option {
	return func(o *options) { o.level = l }
}

// WithFormat panics on an unknown format.
func WithFormat(f Format) Option {
	return func(o *options) {
		switch f {
		case FormatJSON, FormatText:
			o.format = f
		default:
			panic(fmt.Errorf("invalid log format %q: must be %q or %q", f, FormatJSON, FormatText))
		}
	}
}

// WithOutput ignores a nil writer.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.output = w
		}
	}
}

func WithAttr(attrs ...slog.Attr) Option {
	return func(o *options) { o.attrs = append(o.attrs, attrs...) }
}

// WithContextExtractors adds attributes pulled from each record's context.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(o *options) {
		for _, ex := range extractors {
			if ex != nil {
				o.extractors = append(o.extractors, ex)
			}
		}
	}
}

// WithContextValue logs ctx.Value(key) under name whenever it is set.
func WithContextValue(name string, key any) Option {
	if name == "" || key == nil {
		return func(*options) {}
	}
	return WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
		if v := ctx.Value(key); v != nil {
			return slog.Any(name, v), true
		}
		return slog.Attr{}, false
	})
}

// WithEnvironment selects text output at debug level for development and
// local runs, JSON at info otherwise. Service and env are attached to every
// record.
func WithEnvironment(env, service string) Option {
	return func(o *options) {
		switch strings.ToLower(env) {
		case "", "development", "dev", "local":
			o.level = slog.LevelDebug
			o.format = FormatText
		default:
			o.level = slog.LevelInfo
			o.format = FormatJSON
		}
		if service != "" {
			o.attrs = append(o.attrs, slog.String("service", service))
		}
		if env != "" {
			o.attrs = append(o.attrs, slog.String("env", env))
		}
	}
}

// WithConfig applies LOG_LEVEL and LOG_FORMAT over the presets. Invalid
// values are skipped; Config.Validate reports them at startup.
func WithConfig(c Config) Option {
	return func(o *options) {
		if c.Level != "" {
			if l, err := ParseLevel(c.Level); err == nil {
				o.level = l
			}
		}
		switch f := Format(strings.ToLower(c.Format)); f {
		case FormatJSON, FormatText:
			o.format = f
		}
	}
}

// WithRedactedKeys replaces the set of attribute keys whose values are
// masked. Matching ignores case.
func WithRedactedKeys(keys ...string) Option {
	return func(o *options) { o.redact = keySet(keys) }
}

// New builds a logger. Without options it writes JSON at info level to
// stdout and masks DefaultRedactedKeys.
func New(opts ...Option) *slog.Logger {
	o := &options{
		level:  slog.LevelInfo,
		format: FormatJSON,
		output: os.Stdout,
		redact: keySet(DefaultRedactedKeys),
	}
	for _, opt := range opts {
		opt(o)
	}

	hopts := &slog.HandlerOptions{Level: o.level}
	if len(o.redact) > 0 {
		hopts.ReplaceAttr = redactAttr(o.redact)
	}

	var h slog.Handler
	if o.format == FormatText {
		h = slog.NewTextHandler(o.output, hopts)
	} else {
		h = slog.NewJSONHandler(o.output, hopts)
	}
	if len(o.attrs) > 0 {
		h = h.WithAttrs(o.attrs)
	}
	if len(o.extractors) > 0 {
		h = &contextHandler{next: h, extractors: o.extractors}
	}
	return slog.New(h)
}
