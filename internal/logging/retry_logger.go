package logging

import "github.com/sirupsen/logrus"

// RetryLogger 将 retryablehttp 的 LeveledLogger 接口桥接到 logrus。
// retryablehttp 的 Info 级日志（每次请求一条）降为 Debug，避免刷屏。
type RetryLogger struct {
	logger *logrus.Logger
}

// NewRetryLogger 包装 logger，nil 时使用 logrus 标准 logger。
func NewRetryLogger(logger *logrus.Logger) *RetryLogger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RetryLogger{logger: logger}
}

func (l *RetryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Error(msg)
}

func (l *RetryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Warn(msg)
}

func (l *RetryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Debug(msg)
}

func (l *RetryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Debug(msg)
}

func (l *RetryLogger) entry(keysAndValues []interface{}) *logrus.Entry {
	fields := logrus.Fields{"action": "upstream_retry"}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields[key] = keysAndValues[i+1]
	}
	return l.logger.WithFields(fields)
}
