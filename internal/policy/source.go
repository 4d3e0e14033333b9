package policy

import (
	"context"
	"errors"
	"time"
)

// SourceConfig 描述一个第三方数据源的缓存策略与回源方式，创建后不可修改。
// P 为调用参数，T 为缓存的数据形状。
type SourceConfig[P, T any] struct {
	// Name 同时作为 Gate 的 source 键与缓存 Locator.Source。
	Name string
	// KeyOf 由调用参数计算缓存键。
	KeyOf func(P) string
	// TTL 条目的新鲜期。
	TTL time.Duration
	// MaxAge 条目的绝对丢弃年龄，0 表示等于 TTL。
	MaxAge time.Duration
	// MinInterval 两次回源尝试的最小间隔，0 表示不节流。
	MinInterval time.Duration
	// FetchLive 执行一次真实回源。
	FetchLive func(ctx context.Context, params P) (T, error)
	// Validate 校验数据结构，回源结果与从缓存读回的数据都会经过它。
	Validate func(T) error
}

func (c SourceConfig[P, T]) normalized() (SourceConfig[P, T], error) {
	if c.Name == "" {
		return c, errors.New("source name required")
	}
	if c.KeyOf == nil {
		return c, errors.New("KeyOf required")
	}
	if c.FetchLive == nil {
		return c, errors.New("FetchLive required")
	}
	if c.TTL <= 0 {
		return c, errors.New("TTL must be positive")
	}
	if c.MaxAge <= 0 {
		c.MaxAge = c.TTL
	}
	if c.MinInterval < 0 {
		c.MinInterval = 0
	}
	if c.Validate == nil {
		c.Validate = func(T) error { return nil }
	}
	return c, nil
}

// Result 是 Resolve 的返回值。Data 为 nil 表示当前没有任何可用数据。
type Result[T any] struct {
	Data *T
	// Stale 为 true 表示数据不是本次新鲜命中或回源所得（或根本没有数据）。
	Stale bool
	// Limited 为 true 表示被 Gate 拒绝且没有可回退的旧数据。
	Limited bool
	// FetchedAt 是 Data 的回源时间，Data 为 nil 时为零值。
	FetchedAt time.Time
	// RetryIn 是距离下一次允许回源的等待时间。
	RetryIn time.Duration
	// Cause 说明数据不新鲜的原因，新鲜时为 nil。
	Cause error
}
