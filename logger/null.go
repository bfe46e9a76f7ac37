package logger

// NullLogger implements Logger but does nothing (useful for tests).
type NullLogger struct{}

func NewNullLogger() *NullLogger { return &NullLogger{} }

func (NullLogger) Error(msg string, keyvals ...any) {}
func (NullLogger) Info(msg string, keyvals ...any)  {}
func (NullLogger) Debug(msg string, keyvals ...any) {}
