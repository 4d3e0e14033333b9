package ratelimit

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/apigate/internal/cache"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestGateAllowsFirstAttempt(t *testing.T) {
	gate := New(WithClock(clockwork.NewFakeClockAt(t0)))
	gate.Register(context.Background(), "strava", 15*time.Minute)

	if !gate.CanAttempt("strava") {
		t.Fatalf("未尝试过的 source 应放行")
	}
	if wait := gate.TimeUntilNextAttempt("strava"); wait != 0 {
		t.Fatalf("expected zero wait, got %s", wait)
	}
	if _, ok := gate.LastAttempt("strava"); ok {
		t.Fatalf("未尝试前不应有 lastAttemptAt")
	}
}

func TestGateDeniesWithinInterval(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	gate := New(WithClock(clock))
	gate.Register(context.Background(), "strava", 15*time.Minute)

	gate.RecordAttempt(context.Background(), "strava")
	if gate.CanAttempt("strava") {
		t.Fatalf("RecordAttempt 之后应立即拒绝")
	}

	clock.Advance(5 * time.Minute)
	if gate.CanAttempt("strava") {
		t.Fatalf("5 分钟后仍在间隔内")
	}
	if wait := gate.TimeUntilNextAttempt("strava"); wait != 10*time.Minute {
		t.Fatalf("expected 10m wait, got %s", wait)
	}

	clock.Advance(10 * time.Minute)
	if !gate.CanAttempt("strava") {
		t.Fatalf("恰好达到间隔时应放行")
	}
	if wait := gate.TimeUntilNextAttempt("strava"); wait != 0 {
		t.Fatalf("expected zero wait, got %s", wait)
	}
}

func TestGateUngatedSourceAlwaysAllows(t *testing.T) {
	gate := New(WithClock(clockwork.NewFakeClockAt(t0)))
	gate.Register(context.Background(), "github", 0)

	gate.RecordAttempt(context.Background(), "github")
	if !gate.CanAttempt("github") {
		t.Fatalf("minInterval=0 的 source 应永远放行")
	}
	if !gate.CanAttempt("unknown") {
		t.Fatalf("未注册的 source 视为不节流")
	}
}

func TestGateLastAttemptIsMonotonic(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	gate := New(WithClock(clock))
	gate.Register(context.Background(), "strava", time.Minute)

	clock.Advance(time.Hour)
	gate.RecordAttempt(context.Background(), "strava")
	first, _ := gate.LastAttempt("strava")

	// 重新注册并恢复一个更早的持久化时间，不应回退。
	gate.Register(context.Background(), "strava", 2*time.Minute)
	gate.RecordAttempt(context.Background(), "strava")
	second, _ := gate.LastAttempt("strava")
	if second.Before(first) {
		t.Fatalf("lastAttemptAt 不应回退: %s < %s", second, first)
	}

	status := gate.Snapshot()
	if len(status) != 1 || status[0].MinInterval != 2*time.Minute {
		t.Fatalf("unexpected snapshot: %+v", status)
	}
}

func TestGatePersistsAcrossInstances(t *testing.T) {
	store, err := cache.NewFileStore(t.TempDir(), cache.Options{})
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	clock := clockwork.NewFakeClockAt(t0)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	first := New(WithClock(clock), WithStore(store), WithLogger(logger))
	first.Register(context.Background(), "strava", 15*time.Minute)
	first.RecordAttempt(context.Background(), "strava")

	clock.Advance(time.Minute)
	second := New(WithClock(clock), WithStore(store), WithLogger(logger))
	second.Register(context.Background(), "strava", 15*time.Minute)
	if second.CanAttempt("strava") {
		t.Fatalf("重启后应恢复 lastAttemptAt 并继续节流")
	}
	if wait := second.TimeUntilNextAttempt("strava"); wait != 14*time.Minute {
		t.Fatalf("expected 14m wait after restore, got %s", wait)
	}
}

func TestGateSnapshotSorted(t *testing.T) {
	gate := New(WithClock(clockwork.NewFakeClockAt(t0)))
	gate.Register(context.Background(), "strava", time.Minute)
	gate.Register(context.Background(), "github", 0)

	status := gate.Snapshot()
	if len(status) != 2 || status[0].Source != "github" || status[1].Source != "strava" {
		t.Fatalf("snapshot 应按 source 排序: %+v", status)
	}
}
