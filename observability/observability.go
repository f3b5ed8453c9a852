package observability

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type Field interface {
	Key() string
	Value() interface{}
}

type stringField struct{ key, val string }

func (f stringField) Key() string        { return f.key }
func (f stringField) Value() interface{} { return f.val }

type intField struct {
	key string
	val int
}

func (f intField) Key() string        { return f.key }
func (f intField) Value() interface{} { return f.val }

type int64Field struct {
	key string
	val int64
}

func (f int64Field) Key() string        { return f.key }
func (f int64Field) Value() interface{} { return f.val }

type boolField struct {
	key string
	val bool
}

func (f boolField) Key() string        { return f.key }
func (f boolField) Value() interface{} { return f.val }

type durationField struct {
	key string
	val time.Duration
}

func (f durationField) Key() string        { return f.key }
func (f durationField) Value() interface{} { return f.val }

type errorField struct {
	key string
	err error
}

func (f errorField) Key() string        { return f.key }
func (f errorField) Value() interface{} { return f.err }

func String(key, value string) Field              { return stringField{key, value} }
func Int(key string, value int) Field             { return intField{key, value} }
func Int64(key string, value int64) Field         { return int64Field{key, value} }
func Bool(key string, value bool) Field           { return boolField{key, value} }
func Duration(key string, d time.Duration) Field  { return durationField{key, d} }
func Error(key string, err error) Field           { return errorField{key, err} }

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// TextLogger writes line-oriented "level msg key=value" records. Debug
// output is gated on Verbose.
type TextLogger struct {
	Out     io.Writer
	Verbose bool
	bound   []Field
}

func (l *TextLogger) Debug(msg string, fields ...Field) {
	if l.Verbose {
		l.write("DEBUG", msg, fields)
	}
}
func (l *TextLogger) Info(msg string, fields ...Field)  { l.write("INFO", msg, fields) }
func (l *TextLogger) Warn(msg string, fields ...Field)  { l.write("WARN", msg, fields) }
func (l *TextLogger) Error(msg string, fields ...Field) { l.write("ERROR", msg, fields) }

func (l *TextLogger) With(fields ...Field) Logger {
	bound := make([]Field, 0, len(l.bound)+len(fields))
	bound = append(bound, l.bound...)
	bound = append(bound, fields...)
	return &TextLogger{Out: l.Out, Verbose: l.Verbose, bound: bound}
}

func (l *TextLogger) write(level, msg string, fields []Field) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(msg)
	for _, f := range l.bound {
		fmt.Fprintf(&b, " %s=%v", f.Key(), f.Value())
	}
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key(), f.Value())
	}
	b.WriteByte('\n')
	io.WriteString(l.Out, b.String())
}

// Tracer provides distributed tracing hooks for library operations.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span represents a tracing span.
type Span interface {
	SetTag(key string, value interface{})
	SetError(err error)
	Finish()
}

type nopTracer struct{}

func (nopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, nopSpan{}
}

// NopTracer returns a tracer that does nothing.
func NopTracer() Tracer { return nopTracer{} }

type nopSpan struct{}

func (nopSpan) SetTag(string, interface{}) {}
func (nopSpan) SetError(error)             {}
func (nopSpan) Finish()                    {}

// Standard metric names emitted by the library.
const (
	MetricParseTime           = "pdfarc.parse.duration"
	MetricObjectCount         = "pdfarc.objects.count"
	MetricPageCount           = "pdfarc.pages.count"
	MetricActionsRemoved      = "pdfarc.actions.removed"
	MetricDestinationsRemoved = "pdfarc.destinations.removed"
	MetricConvertTime         = "pdfarc.convert.duration"
	MetricWriteTime           = "pdfarc.write.duration"
)
