package server

import (
	"errors"

	"github.com/any-hub/apigate/internal/config"
	"github.com/any-hub/apigate/internal/source"
	"github.com/any-hub/apigate/internal/source/github"
	"github.com/any-hub/apigate/internal/source/spotify"
	"github.com/any-hub/apigate/internal/source/strava"
)

// SourceBinding 将数据源元数据与配置覆盖后的最终策略聚合在一起，
// 供启动流程与诊断端直接复用。
type SourceBinding struct {
	Meta source.Metadata
	// Strategy 是默认策略与配置覆盖合并后的结果。
	Strategy source.Strategy
	// Enabled 为 false 表示缺少凭证，对应路由返回 404。
	Enabled  bool
	AuthMode string
}

// SourceRegistry 按键索引所有已注册数据源的绑定结果。
type SourceRegistry struct {
	bindings map[string]*SourceBinding
	ordered  []*SourceBinding
}

// NewSourceRegistry 根据配置构建绑定表。调用方应在启动阶段创建一次并复用。
func NewSourceRegistry(cfg *config.Config) (*SourceRegistry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	metas := source.List()
	registry := &SourceRegistry{bindings: make(map[string]*SourceBinding, len(metas))}
	for _, meta := range metas {
		binding := buildBinding(cfg, meta)
		registry.bindings[meta.Key] = binding
		registry.ordered = append(registry.ordered, binding)
	}
	return registry, nil
}

func buildBinding(cfg *config.Config, meta source.Metadata) *SourceBinding {
	var (
		overrides source.StrategyOptions
		enabled   = true
		authMode  = "none"
	)
	switch meta.Key {
	case github.Key:
		overrides = cfg.GitHub.StrategyOverrides()
		authMode = cfg.GitHub.AuthMode()
	case strava.Key:
		overrides = cfg.Strava.StrategyOverrides()
		enabled = cfg.Strava.Enabled()
		authMode = "oauth_refresh"
	case spotify.Key:
		overrides = cfg.Spotify.StrategyOverrides()
		enabled = cfg.Spotify.Enabled()
		authMode = "oauth_refresh"
	}
	return &SourceBinding{
		Meta:     meta,
		Strategy: source.ResolveStrategy(meta, overrides),
		Enabled:  enabled,
		AuthMode: authMode,
	}
}

// Lookup 返回指定数据源的绑定结果。
func (r *SourceRegistry) Lookup(key string) (*SourceBinding, bool) {
	if r == nil {
		return nil, false
	}
	binding, ok := r.bindings[key]
	return binding, ok
}

// Enabled 表示数据源已注册且已启用。
func (r *SourceRegistry) Enabled(key string) bool {
	binding, ok := r.Lookup(key)
	return ok && binding.Enabled
}

// List 返回按键排序的绑定副本，用于 /-/sources 输出。
func (r *SourceRegistry) List() []SourceBinding {
	if r == nil || len(r.ordered) == 0 {
		return nil
	}
	result := make([]SourceBinding, len(r.ordered))
	for i, binding := range r.ordered {
		result[i] = *binding
	}
	return result
}
