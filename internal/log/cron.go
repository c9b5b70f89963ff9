package log

// CronLogger satisfies github.com/robfig/cron/v3's Logger interface so the
// scheduler's own messages (job start, recovered panics) share the app format.
type CronLogger struct{}

func (CronLogger) Info(msg string, keysAndValues ...interface{}) {
	// cron reports every wake-up at info level; that is debug noise for a 5s tick.
	Debug("cron: "+msg, keysAndValues...)
}

func (CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	Error("cron: "+msg, err, keysAndValues...)
}
