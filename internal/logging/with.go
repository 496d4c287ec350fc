package logging

import "github.com/arloliu/credshare/types"

// fieldLogger prepends a fixed set of fields to every call.
type fieldLogger struct {
	base   types.Logger
	fields []any
}

// With returns a logger that attaches keysAndValues to every log call.
//
// Loggers that natively support field binding (SlogLogger, or anything with a
// With(...any) types.Logger method) are asked to bind the fields themselves;
// any other implementation is wrapped.
//
// Parameters:
//   - logger: Base logger
//   - keysAndValues: Alternating keys and values
//
// Returns:
//   - types.Logger: Logger carrying the extra fields
func With(logger types.Logger, keysAndValues ...any) types.Logger {
	if len(keysAndValues) == 0 {
		return logger
	}

	switch l := logger.(type) {
	case *NopLogger:
		return l
	case interface{ With(...any) types.Logger }:
		return l.With(keysAndValues...)
	}

	fields := make([]any, len(keysAndValues))
	copy(fields, keysAndValues)

	return &fieldLogger{base: logger, fields: fields}
}

func (f *fieldLogger) merge(keysAndValues []any) []any {
	out := make([]any, 0, len(f.fields)+len(keysAndValues))
	out = append(out, f.fields...)

	return append(out, keysAndValues...)
}

func (f *fieldLogger) Debug(msg string, keysAndValues ...any) {
	f.base.Debug(msg, f.merge(keysAndValues)...)
}

func (f *fieldLogger) Info(msg string, keysAndValues ...any) {
	f.base.Info(msg, f.merge(keysAndValues)...)
}

func (f *fieldLogger) Warn(msg string, keysAndValues ...any) {
	f.base.Warn(msg, f.merge(keysAndValues)...)
}

func (f *fieldLogger) Error(msg string, keysAndValues ...any) {
	f.base.Error(msg, f.merge(keysAndValues)...)
}

func (f *fieldLogger) Fatal(msg string, keysAndValues ...any) {
	f.base.Fatal(msg, f.merge(keysAndValues)...)
}
