package service

// Logger is the logging contract for application services. The container
// adapts *zap.Logger to it.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
