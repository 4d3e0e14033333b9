package strava

import (
	"context"
	"fmt"

	"github.com/any-hub/apigate/internal/policy"
	"github.com/any-hub/apigate/internal/source"
)

// Source 是单例数据源，所有调用共享同一条目 athlete。
type Source struct {
	inner *policy.Source[struct{}, Snapshot]
}

// New 以合并后的策略创建数据源。
func New(ctx context.Context, engine *policy.Engine, fetcher *Fetcher, strategy source.Strategy) (*Source, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("strava fetcher is required")
	}
	inner, err := policy.NewSource(ctx, engine, policy.SourceConfig[struct{}, Snapshot]{
		Name:        Key,
		KeyOf:       func(struct{}) string { return EntryKey },
		TTL:         strategy.TTL,
		MaxAge:      strategy.MaxAge,
		MinInterval: strategy.MinInterval,
		FetchLive:   fetcher.FetchSnapshot,
		Validate:    ValidateSnapshot,
	})
	if err != nil {
		return nil, err
	}
	return &Source{inner: inner}, nil
}

// Resolve 返回最新的运动数据快照。
func (s *Source) Resolve(ctx context.Context) policy.Result[Snapshot] {
	return s.inner.Resolve(ctx, struct{}{})
}

// Clear 删除缓存条目，但保留 Gate 中的 lastAttemptAt：清除后在间隔内再次 Resolve 会得到 limited。
func (s *Source) Clear(ctx context.Context) {
	s.inner.Clear(ctx, struct{}{})
}
