package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/apigate/internal/config"
	"github.com/any-hub/apigate/internal/policy"
	"github.com/any-hub/apigate/internal/ratelimit"
	"github.com/any-hub/apigate/internal/server"
	"github.com/any-hub/apigate/internal/source/github"
	"github.com/any-hub/apigate/internal/source/spotify"
	"github.com/any-hub/apigate/internal/source/strava"
)

var fetchedAt = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type fakeRepos struct {
	result policy.Result[github.RepoMeta]
	owner  string
	repo   string
}

func (f *fakeRepos) Resolve(_ context.Context, owner, repo string) (policy.Result[github.RepoMeta], error) {
	if _, err := github.NewParams(owner, repo); err != nil {
		return policy.Result[github.RepoMeta]{}, err
	}
	f.owner, f.repo = owner, repo
	return f.result, nil
}

type fakeFitness struct {
	result  policy.Result[strava.Snapshot]
	cleared int
}

func (f *fakeFitness) Resolve(context.Context) policy.Result[strava.Snapshot] {
	return f.result
}

func (f *fakeFitness) Clear(context.Context) {
	f.cleared++
}

type fakeNowPlaying struct {
	current spotify.NowPlaying
}

func (f fakeNowPlaying) Current() spotify.NowPlaying {
	return f.current
}

func newTestApp(t *testing.T, services server.Services) *fiber.App {
	t.Helper()
	if services.Registry == nil {
		registry, err := server.NewSourceRegistry(&config.Config{})
		if err != nil {
			t.Fatalf("registry error: %v", err)
		}
		services.Registry = registry
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	app, err := server.NewApp(server.AppOptions{
		Logger:   logger,
		Services: services,
		Routes:   []server.RouteRegistrar{RegisterAPIRoutes, RegisterSourceRoutes},
	})
	if err != nil {
		t.Fatalf("NewApp error: %v", err)
	}
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, path, nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("%s %s 缺少 X-Request-ID", method, path)
	}
	var body map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("响应应为 JSON 对象: %v (%s)", err, raw)
	}
	return resp.StatusCode, body
}

func TestRepoRouteReturnsFreshData(t *testing.T) {
	repos := &fakeRepos{result: policy.Result[github.RepoMeta]{
		Data:      &github.RepoMeta{FullName: "octocat/Hello-World", Stars: 5},
		FetchedAt: fetchedAt,
	}}
	app := newTestApp(t, server.Services{Repos: repos})

	status, body := doJSON(t, app, "GET", "/api/repos/Octocat/Hello-World")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if repos.owner != "Octocat" || repos.repo != "Hello-World" {
		t.Fatalf("路径参数未传递: %s/%s", repos.owner, repos.repo)
	}
	data, ok := body["data"].(map[string]any)
	if !ok || data["full_name"] != "octocat/Hello-World" {
		t.Fatalf("unexpected data: %v", body["data"])
	}
	if body["stale"] != false || body["limited"] != false {
		t.Fatalf("新鲜数据不应带降级标志: %v", body)
	}
	if body["fetched_at"] != "2026-05-04T10:00:00Z" {
		t.Fatalf("unexpected fetched_at: %v", body["fetched_at"])
	}
	if _, ok := body["reason"]; ok {
		t.Fatalf("新鲜数据不应带 reason")
	}
}

func TestRepoRouteRejectsInvalidName(t *testing.T) {
	app := newTestApp(t, server.Services{Repos: &fakeRepos{}})

	status, body := doJSON(t, app, "GET", "/api/repos/octo%20cat/x")
	if status != fiber.StatusBadRequest || body["error"] != "invalid_repository" {
		t.Fatalf("非法仓库名应返回 400: %d %v", status, body)
	}
}

func TestFitnessRouteLimitedStill200(t *testing.T) {
	fitness := &fakeFitness{result: policy.Result[strava.Snapshot]{
		Stale:   true,
		Limited: true,
		RetryIn: 14*time.Minute + 500*time.Millisecond,
		Cause:   policy.ErrRateLimited,
	}}
	app := newTestApp(t, server.Services{Fitness: fitness})

	status, body := doJSON(t, app, "GET", "/api/fitness")
	if status != fiber.StatusOK {
		t.Fatalf("limited 仍应返回 200，得到 %d", status)
	}
	if body["data"] != nil || body["stale"] != true || body["limited"] != true {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["fetched_at"] != nil {
		t.Fatalf("无数据时 fetched_at 应为 null")
	}
	if body["retry_in_seconds"] != float64(841) {
		t.Fatalf("retry_in_seconds 应向上取整: %v", body["retry_in_seconds"])
	}
	if body["reason"] != "rate_limited" {
		t.Fatalf("unexpected reason: %v", body["reason"])
	}
}

func TestFitnessRouteStaleFallback(t *testing.T) {
	fitness := &fakeFitness{result: policy.Result[strava.Snapshot]{
		Data:      &strava.Snapshot{Stats: &strava.Stats{}, Activities: []strava.Activity{{ID: 1}}},
		Stale:     true,
		FetchedAt: fetchedAt,
		Cause:     fmt.Errorf("%w: boom", policy.ErrUpstreamFailure),
	}}
	app := newTestApp(t, server.Services{Fitness: fitness})

	_, body := doJSON(t, app, "GET", "/api/fitness")
	if body["data"] == nil || body["stale"] != true || body["limited"] != false {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["reason"] != "upstream_failure" {
		t.Fatalf("unexpected reason: %v", body["reason"])
	}
}

func TestDisabledSourcesReturn404(t *testing.T) {
	app := newTestApp(t, server.Services{})

	for _, tc := range []struct{ method, path string }{
		{"GET", "/api/repos/a/b"},
		{"GET", "/api/fitness"},
		{"GET", "/api/now-playing"},
		{"POST", "/-/sources/strava/clear"},
	} {
		status, body := doJSON(t, app, tc.method, tc.path)
		if status != fiber.StatusNotFound || body["error"] != "source_disabled" {
			t.Fatalf("%s %s 未启用时应返回 404: %d %v", tc.method, tc.path, status, body)
		}
	}
}

func TestNowPlayingRoute(t *testing.T) {
	app := newTestApp(t, server.Services{NowPlaying: fakeNowPlaying{current: spotify.NowPlaying{
		Playing: true,
		Track:   &spotify.Track{Name: "Teardrop", Artists: []string{"Massive Attack"}},
	}}})

	status, body := doJSON(t, app, "GET", "/api/now-playing")
	if status != fiber.StatusOK || body["is_playing"] != true {
		t.Fatalf("unexpected response: %d %v", status, body)
	}
	track, ok := body["track"].(map[string]any)
	if !ok || track["name"] != "Teardrop" {
		t.Fatalf("unexpected track: %v", body["track"])
	}
}

func TestClearRouteCallsFitnessClear(t *testing.T) {
	fitness := &fakeFitness{}
	app := newTestApp(t, server.Services{Fitness: fitness})

	status, body := doJSON(t, app, "POST", "/-/sources/strava/clear")
	if status != fiber.StatusOK || body["cleared"] != "strava" {
		t.Fatalf("unexpected response: %d %v", status, body)
	}
	if fitness.cleared != 1 {
		t.Fatalf("Clear 应被调用一次，得到 %d", fitness.cleared)
	}
}

func TestSourcesRouteIncludesGateState(t *testing.T) {
	clock := clockwork.NewFakeClockAt(fetchedAt)
	gate := ratelimit.New(ratelimit.WithClock(clock))
	gate.Register(context.Background(), strava.Key, 15*time.Minute)
	gate.RecordAttempt(context.Background(), strava.Key)
	clock.Advance(5 * time.Minute)

	app := newTestApp(t, server.Services{Gate: gate})
	status, body := doJSON(t, app, "GET", "/-/sources")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	sources, ok := body["sources"].([]any)
	if !ok || len(sources) < 3 {
		t.Fatalf("unexpected sources: %v", body["sources"])
	}

	var found bool
	for _, raw := range sources {
		item := raw.(map[string]any)
		if item["key"] != strava.Key {
			continue
		}
		found = true
		gateState, ok := item["gate"].(map[string]any)
		if !ok {
			t.Fatalf("strava 应输出 gate 状态: %v", item)
		}
		if gateState["retry_in_seconds"] != float64(600) {
			t.Fatalf("unexpected retry: %v", gateState["retry_in_seconds"])
		}
		if gateState["last_attempt_at"] != "2026-05-04T10:00:00Z" {
			t.Fatalf("unexpected last attempt: %v", gateState["last_attempt_at"])
		}
		strategy := item["strategy"].(map[string]any)
		if strategy["gated"] != true || strategy["min_interval_seconds"] != float64(900) {
			t.Fatalf("unexpected strategy: %v", strategy)
		}
	}
	if !found {
		t.Fatalf("sources 缺少 strava")
	}
}

func TestReasonOf(t *testing.T) {
	testCases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{policy.ErrRateLimited, "rate_limited"},
		{fmt.Errorf("%w: x", policy.ErrMalformedResponse), "malformed_response"},
		{context.Canceled, "abandoned"},
		{fmt.Errorf("%w: x", policy.ErrUpstreamFailure), "upstream_failure"},
	}
	for _, tc := range testCases {
		if got := reasonOf(tc.err); got != tc.want {
			t.Fatalf("reasonOf(%v)=%q, want %q", tc.err, got, tc.want)
		}
	}
}
