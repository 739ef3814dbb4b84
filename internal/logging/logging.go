package logging

import (
	"context"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"
	FieldUserID    = "user_id"
	FieldRoomID    = "room_id"
	FieldService   = "service"
)

type Config struct {
	Level   string
	Pretty  bool
	Service string
}

var (
	global zerolog.Logger
	once   sync.Once
)

func init() {
	global = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// New creates a configured logger writing to w (stdout when nil).
func New(cfg Config, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(w).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
	if cfg.Service != "" {
		logger = logger.With().Str(FieldService, cfg.Service).Logger()
	}
	return logger
}

// Init sets the global logger once and routes stdlib log output through it.
func Init(cfg Config) zerolog.Logger {
	once.Do(func() {
		global = New(cfg, nil)
		stdlog.SetFlags(0)
		stdlog.SetOutput(global.With().Str("source", "stdlog").Logger())
	})
	return global
}

// L returns the global logger.
func L() zerolog.Logger {
	return global
}

type ctxKey struct{}

func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// Ctx returns the request logger stored in ctx, or the global logger.
func Ctx(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return L()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
