package system

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Logger adapts zerolog to the key/value types.Logger interface
type Logger struct {
	zl zerolog.Logger
}

// NewLogger creates a console logger writing to w. Debug enables debug level
// and caller information; otherwise only warnings and errors are shown.
func NewLogger(debug bool, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}

	console := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.Kitchen,
		NoColor:    !isTerminal(w),
	}

	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}

	ctx := zerolog.New(console).Level(level).With().Timestamp()
	if debug {
		ctx = ctx.Caller()
	}
	return &Logger{zl: ctx.Logger()}
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// With returns a child logger tagged with a component name
func (l *Logger) With(component string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", component).Logger()}
}

func (l *Logger) Debug(msg string, fields ...interface{}) {
	l.log(l.zl.Debug(), msg, fields)
}

func (l *Logger) Info(msg string, fields ...interface{}) {
	l.log(l.zl.Info(), msg, fields)
}

func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.log(l.zl.Warn(), msg, fields)
}

func (l *Logger) Error(msg string, fields ...interface{}) {
	l.log(l.zl.Error(), msg, fields)
}

func (l *Logger) log(ev *zerolog.Event, msg string, fields []interface{}) {
	if ev == nil {
		return
	}
	// A dangling key gets an empty value rather than being dropped
	if len(fields)%2 != 0 {
		fields = append(fields, "")
	}
	ev.Fields(fields).Msg(msg)
}
