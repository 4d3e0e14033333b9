package spotify

import (
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

type options struct {
	clock  clockwork.Clock
	logger *logrus.Logger
}

// Option 调整 Poller 的依赖注入。
type Option func(*options)

func getOpts(opts []Option) options {
	cfg := options{
		clock:  clockwork.NewRealClock(),
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithClock 注入时钟，测试中驱动轮询节奏。
func WithClock(clock clockwork.Clock) Option {
	return func(cfg *options) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// WithLogger 设置轮询日志输出。
func WithLogger(logger *logrus.Logger) Option {
	return func(cfg *options) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}
