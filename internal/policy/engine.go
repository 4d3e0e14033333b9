// Package policy 实现第三方数据的“缓存命中 → 节流判断 → 回源 → 旧数据兜底”决策。
// 每个数据源以 SourceConfig 描述自身策略，共享同一个 Engine（EntryStore + Gate + 时钟）。
package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/apigate/internal/cache"
	"github.com/any-hub/apigate/internal/logging"
	"github.com/any-hub/apigate/internal/ratelimit"
)

// Resolve 结果的 outcome 字段取值，用于日志与测试断言。
const (
	OutcomeFreshHit      = "fresh_hit"
	OutcomeLiveFetch     = "live_fetch"
	OutcomeStaleLimited  = "stale_limited"
	OutcomeLimited       = "limited"
	OutcomeStaleFallback = "stale_fallback"
	OutcomeMissFailed    = "miss_failed"
	OutcomeAbandoned     = "abandoned"
)

// Options 汇总 Engine 的依赖。
type Options struct {
	Entries *cache.EntryStore
	Gate    *ratelimit.Gate
	Clock   clockwork.Clock
	Logger  *logrus.Logger
}

// Engine 持有进程级共享的 EntryStore 与 Gate，只有 Engine 会写入它们。
type Engine struct {
	entries *cache.EntryStore
	gate    *ratelimit.Gate
	clock   clockwork.Clock
	logger  *logrus.Logger
}

// NewEngine 校验依赖并构建 Engine。Entries 为空时等价于介质永远不可用。
func NewEngine(opts Options) (*Engine, error) {
	if opts.Gate == nil {
		return nil, errors.New("rate limit gate is required")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Engine{
		entries: opts.Entries,
		gate:    opts.Gate,
		clock:   opts.Clock,
		logger:  opts.Logger,
	}, nil
}

// Gate 暴露共享 Gate，供诊断端读取快照。
func (e *Engine) Gate() *ratelimit.Gate {
	return e.gate
}

// Source 把 SourceConfig 绑定到 Engine 上，对外提供 Resolve/Clear。
type Source[P, T any] struct {
	engine *Engine
	cfg    SourceConfig[P, T]
}

// NewSource 规范化配置并在 Gate 中注册 MinInterval。
func NewSource[P, T any](ctx context.Context, engine *Engine, cfg SourceConfig[P, T]) (*Source[P, T], error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	normalized, err := cfg.normalized()
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", cfg.Name, err)
	}
	engine.gate.Register(ctx, normalized.Name, normalized.MinInterval)
	return &Source[P, T]{engine: engine, cfg: normalized}, nil
}

// Name 返回 source 名称。
func (s *Source[P, T]) Name() string {
	return s.cfg.Name
}

// Strategy 返回生效的 TTL / MaxAge / MinInterval。
func (s *Source[P, T]) Strategy() (ttl, maxAge, minInterval time.Duration) {
	return s.cfg.TTL, s.cfg.MaxAge, s.cfg.MinInterval
}

// Clear 删除 params 对应的缓存条目，不影响 Gate 的 lastAttemptAt。
func (s *Source[P, T]) Clear(ctx context.Context, params P) {
	locator := cache.Locator{Source: s.cfg.Name, Key: s.cfg.KeyOf(params)}
	s.engine.entries.Remove(ctx, locator)
	s.engine.logger.WithFields(logging.SourceFields("cache_clear", locator.Source, locator.Key)).Info("cache_cleared")
}

type liveOutcome[T any] struct {
	data      T
	fetchedAt time.Time
	err       error
}

// Resolve 按以下顺序决策：读取条目 → 超过 MaxAge 丢弃 → TTL 内直接返回 →
// Gate 拒绝时返回旧数据或 limited → 回源成功写缓存，失败回退旧数据。
// 任何失败都不会以 error 返回，只体现在 Result 的 Stale/Limited/Cause 上。
//
// 回源在脱离调用方取消信号的 context 上执行：调用方 ctx 结束时立即拿到兜底结果，
// 但回源仍会完成并写入缓存。
func (s *Source[P, T]) Resolve(ctx context.Context, params P) Result[T] {
	started := s.engine.clock.Now()
	locator := cache.Locator{Source: s.cfg.Name, Key: s.cfg.KeyOf(params)}

	entry, data := s.load(ctx, locator)
	now := s.engine.clock.Now()

	if entry != nil && now.Sub(entry.FetchedAt) > s.cfg.MaxAge {
		s.engine.entries.Remove(ctx, locator)
		entry, data = nil, nil
	}

	if entry != nil && now.Before(entry.ExpiresAt()) {
		result := Result[T]{Data: data, FetchedAt: entry.FetchedAt}
		s.logResolve(locator, OutcomeFreshHit, started, nil)
		return result
	}

	if !s.engine.gate.CanAttempt(s.cfg.Name) {
		return s.fallback(locator, entry, data, ErrRateLimited, started)
	}

	detached := context.WithoutCancel(ctx)
	s.engine.gate.RecordAttempt(detached, s.cfg.Name)

	done := make(chan liveOutcome[T], 1)
	go func() {
		done <- s.fetch(detached, locator, params)
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return s.fallback(locator, entry, data, out.err, started)
		}
		fresh := out.data
		s.logResolve(locator, OutcomeLiveFetch, started, nil)
		return Result[T]{
			Data:      &fresh,
			FetchedAt: out.fetchedAt,
			RetryIn:   s.engine.gate.TimeUntilNextAttempt(s.cfg.Name),
		}
	case <-ctx.Done():
		return s.fallback(locator, entry, data, ctx.Err(), started)
	}
}

// load 读取并校验条目；损坏或不合法的条目会被删除并视为不存在。
func (s *Source[P, T]) load(ctx context.Context, locator cache.Locator) (*cache.Entry, *T) {
	entry := s.engine.entries.Get(ctx, locator)
	if entry == nil {
		return nil, nil
	}
	data := new(T)
	err := json.Unmarshal(entry.Data, data)
	if err == nil {
		err = s.cfg.Validate(*data)
	}
	if err != nil {
		s.engine.logger.WithError(err).WithFields(logging.SourceFields("resolve", locator.Source, locator.Key)).Warn("cache_entry_malformed")
		s.engine.entries.Remove(ctx, locator)
		return nil, nil
	}
	return entry, data
}

func (s *Source[P, T]) fetch(ctx context.Context, locator cache.Locator, params P) (out liveOutcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			out = liveOutcome[T]{err: fmt.Errorf("%w: panic: %v", ErrUpstreamFailure, r)}
		}
	}()

	data, err := s.cfg.FetchLive(ctx, params)
	if err != nil {
		return liveOutcome[T]{err: classify(err)}
	}
	if err := s.cfg.Validate(data); err != nil {
		return liveOutcome[T]{err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}

	fetchedAt := s.engine.clock.Now()
	entry, err := cache.NewEntry(data, fetchedAt, s.cfg.TTL)
	if err != nil {
		s.engine.logger.WithError(err).WithFields(logging.SourceFields("resolve", locator.Source, locator.Key)).Warn("cache_encode_failed")
	} else {
		s.engine.entries.Set(ctx, locator, entry)
	}
	return liveOutcome[T]{data: data, fetchedAt: fetchedAt.UTC()}
}

func (s *Source[P, T]) fallback(locator cache.Locator, entry *cache.Entry, data *T, cause error, started time.Time) Result[T] {
	result := Result[T]{
		Stale:   true,
		Cause:   cause,
		RetryIn: s.engine.gate.TimeUntilNextAttempt(s.cfg.Name),
	}
	outcome := OutcomeMissFailed
	switch {
	case entry != nil && data != nil:
		result.Data = data
		result.FetchedAt = entry.FetchedAt
		outcome = OutcomeStaleFallback
		if errors.Is(cause, ErrRateLimited) {
			outcome = OutcomeStaleLimited
		}
	case errors.Is(cause, ErrRateLimited):
		result.Limited = true
		outcome = OutcomeLimited
	}
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		outcome = OutcomeAbandoned
	}
	s.logResolve(locator, outcome, started, cause)
	return result
}

// classify 保证回源错误至少归入 ErrUpstreamFailure，已分类的错误原样保留。
func classify(err error) error {
	switch {
	case errors.Is(err, ErrMalformedResponse), errors.Is(err, ErrUpstreamFailure):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
}

func (s *Source[P, T]) logResolve(locator cache.Locator, outcome string, started time.Time, cause error) {
	fields := logging.SourceFields("resolve", locator.Source, locator.Key)
	fields["outcome"] = outcome
	fields["elapsed_ms"] = s.engine.clock.Since(started).Milliseconds()
	if cause != nil {
		fields["error"] = cause.Error()
		s.engine.logger.WithFields(fields).Warn("resolve_degraded")
		return
	}
	if outcome == OutcomeFreshHit {
		s.engine.logger.WithFields(fields).Debug("resolve_complete")
		return
	}
	s.engine.logger.WithFields(fields).Info("resolve_complete")
}
