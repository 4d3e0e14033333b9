// Package ratelimit 实现按 source 维度的回源节流闸门：记录每个 source 最近一次
// 回源尝试的时间，并据此判断当前是否允许再次回源。
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/apigate/internal/cache"
)

// StateSource 是 Gate 持久化记录使用的 Locator.Source。
const StateSource = "_gate"

// State 是单个 source 的节流状态，LastAttemptAt 单调不减。
type State struct {
	LastAttemptAt time.Time `json:"lastAttemptAt"`
}

// Status 是诊断端使用的只读快照。
type Status struct {
	Source        string
	MinInterval   time.Duration
	LastAttemptAt time.Time
	RetryIn       time.Duration
}

// Gate 为每个 source 维护一份 State。MinInterval 为 0 的 source 永远放行。
type Gate struct {
	clock  clockwork.Clock
	store  cache.Store
	logger *logrus.Logger

	mu      sync.Mutex
	sources map[string]*tracker
}

type tracker struct {
	minInterval time.Duration
	state       State
}

// New 创建 Gate，整个进程共享一个实例。
func New(opts ...Option) *Gate {
	cfg := getOpts(opts)
	return &Gate{
		clock:   cfg.clock,
		store:   cfg.store,
		logger:  cfg.logger,
		sources: make(map[string]*tracker),
	}
}

// Register 声明 source 的最小回源间隔，并从介质恢复上次记录的尝试时间。
// 重复注册只更新间隔，不会回退已记录的时间。
func (g *Gate) Register(ctx context.Context, source string, minInterval time.Duration) {
	if minInterval < 0 {
		minInterval = 0
	}
	restored := g.load(ctx, source)

	g.mu.Lock()
	defer g.mu.Unlock()
	t := g.trackerLocked(source)
	t.minInterval = minInterval
	if restored.LastAttemptAt.After(t.state.LastAttemptAt) {
		t.state = restored
	}
}

// CanAttempt 当 now - lastAttemptAt >= minInterval 或从未尝试过时返回 true。
func (g *Gate) CanAttempt(source string) bool {
	return g.TimeUntilNextAttempt(source) == 0
}

// TimeUntilNextAttempt 返回 max(0, minInterval - (now - lastAttemptAt))。
func (g *Gate) TimeUntilNextAttempt(source string) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.sources[source]
	if !ok {
		return 0
	}
	return g.waitLocked(t)
}

// RecordAttempt 在每次回源前调用（无论最终成功与否），将 lastAttemptAt 推进到 now。
func (g *Gate) RecordAttempt(ctx context.Context, source string) {
	g.mu.Lock()
	t := g.trackerLocked(source)
	now := g.clock.Now()
	if now.After(t.state.LastAttemptAt) {
		t.state.LastAttemptAt = now
	}
	state := t.state
	gated := t.minInterval > 0
	g.mu.Unlock()

	if gated {
		g.persist(ctx, source, state)
	}
}

// LastAttempt 返回最近一次尝试时间，未尝试过时 ok 为 false。
func (g *Gate) LastAttempt(source string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.sources[source]
	if !ok || t.state.LastAttemptAt.IsZero() {
		return time.Time{}, false
	}
	return t.state.LastAttemptAt, true
}

// Snapshot 返回按 source 排序的全部节流状态。
func (g *Gate) Snapshot() []Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	keys := make([]string, 0, len(g.sources))
	for key := range g.sources {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]Status, 0, len(keys))
	for _, key := range keys {
		t := g.sources[key]
		result = append(result, Status{
			Source:        key,
			MinInterval:   t.minInterval,
			LastAttemptAt: t.state.LastAttemptAt,
			RetryIn:       g.waitLocked(t),
		})
	}
	return result
}

func (g *Gate) trackerLocked(source string) *tracker {
	t := g.sources[source]
	if t == nil {
		t = &tracker{}
		g.sources[source] = t
	}
	return t
}

func (g *Gate) waitLocked(t *tracker) time.Duration {
	if t.minInterval <= 0 || t.state.LastAttemptAt.IsZero() {
		return 0
	}
	wait := t.minInterval - g.clock.Since(t.state.LastAttemptAt)
	if wait < 0 {
		return 0
	}
	return wait
}

func (g *Gate) load(ctx context.Context, source string) State {
	if g.store == nil {
		return State{}
	}
	record, err := g.store.Get(ctx, cache.Locator{Source: StateSource, Key: source})
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			g.warn(source, "gate_load_failed", err)
		}
		return State{}
	}
	var state State
	if err := json.Unmarshal(record.Payload, &state); err != nil {
		g.warn(source, "gate_load_failed", err)
		return State{}
	}
	return state
}

func (g *Gate) persist(ctx context.Context, source string, state State) {
	if g.store == nil {
		return
	}
	payload, err := json.Marshal(state)
	if err != nil {
		g.warn(source, "gate_persist_failed", err)
		return
	}
	if _, err := g.store.Put(ctx, cache.Locator{Source: StateSource, Key: source}, payload); err != nil {
		g.warn(source, "gate_persist_failed", err)
	}
}

func (g *Gate) warn(source, code string, err error) {
	g.logger.WithError(err).WithFields(logrus.Fields{
		"action": "gate",
		"source": source,
	}).Warn(code)
}
