package ratelimit

import (
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/apigate/internal/cache"
)

type config struct {
	clock  clockwork.Clock
	store  cache.Store
	logger *logrus.Logger
}

// Option 调整 Gate 的依赖注入。
type Option func(*config)

func getOpts(opts []Option) config {
	cfg := config{
		clock:  clockwork.NewRealClock(),
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithClock 注入时钟，测试中使用 clockwork.NewFakeClock。
func WithClock(clock clockwork.Clock) Option {
	return func(cfg *config) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// WithStore 让 Gate 把 lastAttemptAt 持久化到缓存介质的 _gate 命名空间，
// 进程重启后间隔仍然生效。不设置则只保存在内存中。
func WithStore(store cache.Store) Option {
	return func(cfg *config) {
		cfg.store = store
	}
}

// WithLogger 设置持久化失败时的日志输出。
func WithLogger(logger *logrus.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}
