package source

import (
	"testing"
	"time"
)

func replaceRegistry(t *testing.T) func() {
	t.Helper()
	prev := globalRegistry
	globalRegistry = newRegistry()
	return func() { globalRegistry = prev }
}

func TestRegisterResolveAndList(t *testing.T) {
	cleanup := replaceRegistry(t)
	defer cleanup()

	if err := Register(Metadata{Key: "strava", Strategy: Strategy{TTL: time.Hour, MinInterval: 15 * time.Minute}}); err != nil {
		t.Fatalf("register strava failed: %v", err)
	}
	if err := Register(Metadata{Key: "github", Strategy: Strategy{TTL: 24 * time.Hour}}); err != nil {
		t.Fatalf("register github failed: %v", err)
	}
	if err := Register(Metadata{Key: "spotify", Kind: KindPoller, Strategy: Strategy{PollInterval: 30 * time.Second}}); err != nil {
		t.Fatalf("poller 不需要 TTL: %v", err)
	}

	meta, ok := Resolve("STRAVA")
	if !ok {
		t.Fatalf("resolve 应忽略大小写")
	}
	if meta.Kind != KindCached || !meta.Strategy.Gated() {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if meta.Strategy.MaxAge != time.Hour {
		t.Fatalf("MaxAge 未设置时应等于 TTL，得到 %s", meta.Strategy.MaxAge)
	}

	keys := Keys()
	if len(keys) != 3 || keys[0] != "github" || keys[1] != "spotify" || keys[2] != "strava" {
		t.Fatalf("unexpected order: %v", keys)
	}
}

func TestRegisterRejectsDuplicateAndInvalid(t *testing.T) {
	cleanup := replaceRegistry(t)
	defer cleanup()

	if err := Register(Metadata{Key: "github", Strategy: Strategy{TTL: time.Hour}}); err != nil {
		t.Fatalf("first registration should succeed: %v", err)
	}
	if err := Register(Metadata{Key: " GitHub ", Strategy: Strategy{TTL: time.Hour}}); err == nil {
		t.Fatalf("duplicate registration should fail")
	}
	if err := Register(Metadata{Key: ""}); err == nil {
		t.Fatalf("空键应失败")
	}
	if err := Register(Metadata{Key: "nottl"}); err == nil {
		t.Fatalf("缓存型数据源缺少 TTL 应失败")
	}
}

func TestResolveStrategyOverrides(t *testing.T) {
	meta := Metadata{Key: "strava", Strategy: Strategy{TTL: 24 * time.Hour, MaxAge: 24 * time.Hour, MinInterval: 15 * time.Minute}}

	got := ResolveStrategy(meta, StrategyOptions{})
	if got != meta.Strategy {
		t.Fatalf("无覆盖时应沿用默认策略: %+v", got)
	}

	got = ResolveStrategy(meta, StrategyOptions{TTLOverride: 48 * time.Hour, MinIntervalOverride: time.Hour})
	if got.TTL != 48*time.Hour || got.MinInterval != time.Hour {
		t.Fatalf("覆盖未生效: %+v", got)
	}
	if got.MaxAge != 48*time.Hour {
		t.Fatalf("MaxAge 应被抬升到 TTL，得到 %s", got.MaxAge)
	}
}
