package ability

import "github.com/oarkflow/ability/logger"

// Logger is re-exported so callers don't need to import the subpackage.
type Logger = logger.Logger

// WithLogger installs a Logger on the Ability.
func WithLogger(l logger.Logger) Option {
	return func(a *Ability) error {
		if l == nil {
			l = logger.NewNullLogger()
		}
		a.logger = l
		return nil
	}
}

// WithTraceIDFunc installs a custom trace ID generator used when logging
// checks.
func WithTraceIDFunc(f logger.TraceIDFunc) Option {
	return func(a *Ability) error {
		if f == nil {
			f = logger.DefaultTraceID
		}
		a.traceIDFunc = f
		return nil
	}
}
