package github

import (
	"context"
	"fmt"

	"github.com/any-hub/apigate/internal/policy"
	"github.com/any-hub/apigate/internal/source"
)

// Source 把 Fetcher 接入共享 Engine。
type Source struct {
	inner *policy.Source[Params, RepoMeta]
}

// New 以合并后的策略创建数据源；MinInterval > 0 时 GitHub 回源也会受 Gate 限制。
func New(ctx context.Context, engine *policy.Engine, fetcher *Fetcher, strategy source.Strategy) (*Source, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("github fetcher is required")
	}
	inner, err := policy.NewSource(ctx, engine, policy.SourceConfig[Params, RepoMeta]{
		Name:        Key,
		KeyOf:       CacheKey,
		TTL:         strategy.TTL,
		MaxAge:      strategy.MaxAge,
		MinInterval: strategy.MinInterval,
		FetchLive:   fetcher.FetchRepo,
		Validate:    ValidateRepo,
	})
	if err != nil {
		return nil, err
	}
	return &Source{inner: inner}, nil
}

// Resolve 返回 owner/repo 的元数据；参数不合法时返回 ErrInvalidName。
func (s *Source) Resolve(ctx context.Context, owner, repo string) (policy.Result[RepoMeta], error) {
	params, err := NewParams(owner, repo)
	if err != nil {
		return policy.Result[RepoMeta]{}, err
	}
	return s.inner.Resolve(ctx, params), nil
}

// Clear 删除单个仓库的缓存条目。
func (s *Source) Clear(ctx context.Context, owner, repo string) error {
	params, err := NewParams(owner, repo)
	if err != nil {
		return err
	}
	s.inner.Clear(ctx, params)
	return nil
}
