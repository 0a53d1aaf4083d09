// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Options 控制全局 logger 的输出。
type Options struct {
	Service string
	Level   string
	Console bool
	Output  io.Writer
}

// Init 配置全局 zerolog logger，进程启动时调用一次。
func Init(opts Options) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zlog.Logger = zerolog.New(out).With().Timestamp().Str("service", opts.Service).Logger()
}

// Ctx 返回带有 trace_id / span_id 的 logger。
// context 里已经存了 logger (zerolog.Ctx) 时以它为基础，否则使用全局 logger。
func Ctx(ctx context.Context) *zerolog.Logger {
	base := zerolog.Ctx(ctx)
	if base.GetLevel() == zerolog.Disabled {
		base = &zlog.Logger
	}

	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return base
	}
	l := base.With().
		Str("trace_id", sc.TraceID().String()).
		Str("span_id", sc.SpanID().String()).
		Logger()
	return &l
}

// WithContext 把 logger 存入 context，后续 Ctx(ctx) 会以它为基础。
func WithContext(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}
