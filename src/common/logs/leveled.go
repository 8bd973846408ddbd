package logs

// Leveled adapts a Logger to the LeveledLogger shape expected by HTTP client
// libraries such as go-retryablehttp, whose methods take a string message.
type Leveled struct {
	l *Logger
}

// Leveled returns an adapter that writes through l
func (l *Logger) Leveled() *Leveled {
	return &Leveled{l: l}
}

func (a *Leveled) Error(msg string, keysAndValues ...interface{}) {
	a.l.Error(msg, keysAndValues...)
}

func (a *Leveled) Info(msg string, keysAndValues ...interface{}) {
	a.l.Info(msg, keysAndValues...)
}

func (a *Leveled) Debug(msg string, keysAndValues ...interface{}) {
	a.l.Debug(msg, keysAndValues...)
}

func (a *Leveled) Warn(msg string, keysAndValues ...interface{}) {
	a.l.Warn(msg, keysAndValues...)
}
