package source

import "time"

// Kind 区分走缓存策略的数据源与只在内存中保存最新快照的轮询器。
type Kind string

const (
	KindCached Kind = "cached"
	KindPoller Kind = "poller"
)

// Strategy 描述数据源的缓存与节流默认值。
type Strategy struct {
	TTL         time.Duration
	MaxAge      time.Duration
	MinInterval time.Duration
	// PollInterval 仅对 KindPoller 有意义。
	PollInterval time.Duration
}

// Gated 表示该数据源受 Gate 限制。
func (s Strategy) Gated() bool {
	return s.MinInterval > 0
}

// Metadata 记录一个数据源的静态信息，供配置、路由与诊断端使用。
type Metadata struct {
	Key         string
	Description string
	Kind        Kind
	// Route 是对外暴露的读取路径，仅用于诊断输出。
	Route    string
	Strategy Strategy
}
