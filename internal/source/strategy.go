package source

import "time"

// StrategyOptions 描述来自配置文件的覆盖项，零值表示沿用默认策略。
type StrategyOptions struct {
	TTLOverride          time.Duration
	MaxAgeOverride       time.Duration
	MinIntervalOverride  time.Duration
	PollIntervalOverride time.Duration
}

// ResolveStrategy 将数据源的默认策略与配置覆盖合并。
func ResolveStrategy(meta Metadata, opts StrategyOptions) Strategy {
	strategy := meta.Strategy
	if opts.TTLOverride > 0 {
		strategy.TTL = opts.TTLOverride
	}
	if opts.MaxAgeOverride > 0 {
		strategy.MaxAge = opts.MaxAgeOverride
	}
	if opts.MinIntervalOverride > 0 {
		strategy.MinInterval = opts.MinIntervalOverride
	}
	if opts.PollIntervalOverride > 0 {
		strategy.PollInterval = opts.PollIntervalOverride
	}
	return normalizeStrategy(strategy)
}

// normalizeStrategy 保证 MaxAge 不小于 TTL，否则条目在过期前就会被丢弃。
func normalizeStrategy(s Strategy) Strategy {
	if s.TTL < 0 {
		s.TTL = 0
	}
	if s.MaxAge < s.TTL {
		s.MaxAge = s.TTL
	}
	if s.MinInterval < 0 {
		s.MinInterval = 0
	}
	if s.PollInterval < 0 {
		s.PollInterval = 0
	}
	return s
}
