package cache

import (
	"context"
	"errors"
	"time"
)

// Store 是缓存条目的持久化介质，只负责按 Locator 读写原始字节，不包含任何策略。
// 磁盘实现的布局为：
//
//	<StoragePath>/<Source>/<Key>.json
//
// SQLite 实现则把同样的 Locator 落到 cache_entries 表的一行。
type Store interface {
	// Get 返回 Locator 对应的原始记录。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, locator Locator) (*Record, error)

	// Put 覆盖写入一条记录。实现需保证写入原子性：读方要么看到旧值，要么看到新值。
	Put(ctx context.Context, locator Locator, payload []byte) (*Record, error)

	// Remove 删除记录，不存在时视为成功。
	Remove(ctx context.Context, locator Locator) error

	// Close 释放底层资源（文件句柄、数据库连接）。
	Close() error
}

// Locator 唯一定位一个缓存条目（Source + Key）。Key 允许包含 `/`，例如 owner/repo。
type Locator struct {
	Source string
	Key    string
}

// String 输出 source::key 形式，便于日志与锁表复用。
func (l Locator) String() string {
	return l.Source + "::" + l.Key
}

// Record 表示介质中的一条原始记录。
type Record struct {
	Locator   Locator
	Payload   []byte
	SizeBytes int64
	ModTime   time.Time
}

var (
	// ErrNotFound 表示缓存不存在。
	ErrNotFound = errors.New("cache entry not found")
	// ErrQuotaExceeded 表示单条记录超过了介质的容量上限。
	ErrQuotaExceeded = errors.New("cache quota exceeded")
)

// Options 控制介质的可选行为。
type Options struct {
	// MaxEntryBytes 限制单条记录的大小，0 表示不限制。
	MaxEntryBytes int64
}

func (o Options) admit(payload []byte) error {
	if o.MaxEntryBytes > 0 && int64(len(payload)) > o.MaxEntryBytes {
		return ErrQuotaExceeded
	}
	return nil
}

func validateLocator(locator Locator) error {
	if locator.Source == "" {
		return errors.New("source required")
	}
	if locator.Key == "" {
		return errors.New("key required")
	}
	return nil
}
