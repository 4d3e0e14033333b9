package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Entry 是一次成功回源的结果快照，写入后只读，直到被下一次成功回源覆盖或显式清除。
type Entry struct {
	Data      json.RawMessage `json:"data"`
	FetchedAt time.Time       `json:"fetchedAt"`
	TTLMillis int64           `json:"ttlMs"`
}

// NewEntry 将 data 序列化为 Entry。
func NewEntry(data any, fetchedAt time.Time, ttl time.Duration) (Entry, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Data:      raw,
		FetchedAt: fetchedAt.UTC(),
		TTLMillis: ttl.Milliseconds(),
	}, nil
}

// TTL 返回条目写入时生效的 TTL。
func (e Entry) TTL() time.Duration {
	return time.Duration(e.TTLMillis) * time.Millisecond
}

// ExpiresAt = FetchedAt + TTL。
func (e Entry) ExpiresAt() time.Time {
	return e.FetchedAt.Add(e.TTL())
}

// EntryStore 在 Store 之上提供 fail-soft 的条目读写：任何介质或反序列化错误
// 都只记录 warn 日志，Get 返回 nil、Set 丢弃写入，调用方永远拿不到错误。
type EntryStore struct {
	store  Store
	logger *logrus.Logger
}

// NewEntryStore 包装介质。logger 为空时使用 logrus 标准 logger。
func NewEntryStore(store Store, logger *logrus.Logger) *EntryStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &EntryStore{store: store, logger: logger}
}

// Get 返回 Locator 对应的条目；缺失、损坏或介质不可用时返回 nil。
func (s *EntryStore) Get(ctx context.Context, locator Locator) *Entry {
	if s == nil || s.store == nil {
		return nil
	}
	record, err := s.store.Get(ctx, locator)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.warn(locator, "cache_get_failed", err)
		}
		return nil
	}

	var entry Entry
	if err := json.Unmarshal(record.Payload, &entry); err != nil {
		s.warn(locator, "cache_decode_failed", err)
		return nil
	}
	if entry.FetchedAt.IsZero() || len(entry.Data) == 0 || string(entry.Data) == "null" {
		s.warn(locator, "cache_decode_failed", errors.New("entry missing data or fetchedAt"))
		return nil
	}
	return &entry
}

// Set 覆盖写入条目；介质拒绝（容量、权限、已关闭）时静默丢弃。
func (s *EntryStore) Set(ctx context.Context, locator Locator, entry Entry) {
	if s == nil || s.store == nil {
		return
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		s.warn(locator, "cache_encode_failed", err)
		return
	}
	if _, err := s.store.Put(ctx, locator, payload); err != nil {
		s.warn(locator, "cache_put_failed", err)
	}
}

// Remove 删除条目，失败同样只记录日志。
func (s *EntryStore) Remove(ctx context.Context, locator Locator) {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Remove(ctx, locator); err != nil {
		s.warn(locator, "cache_remove_failed", err)
	}
}

func (s *EntryStore) warn(locator Locator, code string, err error) {
	s.logger.WithError(err).WithFields(logrus.Fields{
		"action": "cache",
		"source": locator.Source,
		"key":    locator.Key,
	}).Warn(code)
}
