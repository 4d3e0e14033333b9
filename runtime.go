package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/apigate/internal/cache"
	"github.com/any-hub/apigate/internal/config"
	"github.com/any-hub/apigate/internal/policy"
	"github.com/any-hub/apigate/internal/ratelimit"
	"github.com/any-hub/apigate/internal/server"
	"github.com/any-hub/apigate/internal/server/routes"
	"github.com/any-hub/apigate/internal/source/github"
	"github.com/any-hub/apigate/internal/source/spotify"
	"github.com/any-hub/apigate/internal/source/strava"
	"github.com/any-hub/apigate/internal/upstream"
)

const shutdownTimeout = 10 * time.Second

// appRuntime 持有进程生命周期内共享的组件。
type appRuntime struct {
	cfg      *config.Config
	logger   *logrus.Logger
	store    cache.Store
	services server.Services
	poller   *spotify.Poller
}

// buildRuntime 按配置装配缓存介质、Gate、Engine 与各数据源。
// 介质打开失败不会中止启动：Engine 退化为每次回源，Gate 只保存在内存中。
func buildRuntime(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*appRuntime, error) {
	registry, err := server.NewSourceRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("构建数据源注册表失败: %w", err)
	}

	store, err := cache.Open(cfg.Global.StorageDriver, cfg.Global.StoragePath, cache.Options{MaxEntryBytes: cfg.Global.MaxEntryBytes})
	if err != nil {
		logger.WithError(fmt.Errorf("%w: %v", policy.ErrStorageUnavailable, err)).WithFields(logrus.Fields{
			"action": "storage_open",
			"driver": cfg.Global.StorageDriver,
			"path":   cfg.Global.StoragePath,
		}).Warn("storage_unavailable")
		store = nil
	}

	clock := clockwork.NewRealClock()
	var gateOpts []ratelimit.Option
	gateOpts = append(gateOpts, ratelimit.WithClock(clock), ratelimit.WithLogger(logger))
	if store != nil {
		gateOpts = append(gateOpts, ratelimit.WithStore(store))
	}
	gate := ratelimit.New(gateOpts...)

	var entries *cache.EntryStore
	if store != nil {
		entries = cache.NewEntryStore(store, logger)
	}
	engine, err := policy.NewEngine(policy.Options{
		Entries: entries,
		Gate:    gate,
		Clock:   clock,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	httpClient := upstream.NewClient(cfg.Global, logger)
	rt := &appRuntime{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		services: server.Services{Registry: registry, Gate: gate},
	}

	if err := rt.bindGitHub(ctx, engine, httpClient); err != nil {
		return nil, err
	}
	if err := rt.bindStrava(ctx, engine, httpClient); err != nil {
		return nil, err
	}
	if err := rt.bindSpotify(httpClient, clock); err != nil {
		return nil, err
	}
	return rt, nil
}

func (rt *appRuntime) bindGitHub(ctx context.Context, engine *policy.Engine, httpClient *http.Client) error {
	binding, ok := rt.services.Registry.Lookup(github.Key)
	if !ok || !binding.Enabled {
		return nil
	}
	fetcher, err := github.NewFetcher(httpClient, rt.cfg.GitHub, rt.logger)
	if err != nil {
		return err
	}
	src, err := github.New(ctx, engine, fetcher, binding.Strategy)
	if err != nil {
		return err
	}
	rt.services.Repos = src
	return nil
}

func (rt *appRuntime) bindStrava(ctx context.Context, engine *policy.Engine, httpClient *http.Client) error {
	binding, ok := rt.services.Registry.Lookup(strava.Key)
	if !ok || !binding.Enabled {
		return nil
	}
	fetcher, err := strava.NewFetcher(httpClient, rt.cfg.Strava, rt.logger)
	if err != nil {
		return err
	}
	src, err := strava.New(ctx, engine, fetcher, binding.Strategy)
	if err != nil {
		return err
	}
	rt.services.Fitness = src
	return nil
}

func (rt *appRuntime) bindSpotify(httpClient *http.Client, clock clockwork.Clock) error {
	binding, ok := rt.services.Registry.Lookup(spotify.Key)
	if !ok || !binding.Enabled {
		return nil
	}
	poller, err := spotify.NewPoller(httpClient, rt.cfg.Spotify, binding.Strategy.PollInterval,
		spotify.WithClock(clock), spotify.WithLogger(rt.logger))
	if err != nil {
		return err
	}
	rt.poller = poller
	rt.services.NowPlaying = poller
	return nil
}

func (rt *appRuntime) newApp() (*fiber.App, error) {
	return server.NewApp(server.AppOptions{
		Logger:   rt.logger,
		Services: rt.services,
		Routes:   []server.RouteRegistrar{routes.RegisterAPIRoutes, routes.RegisterSourceRoutes},
	})
}

// serve 启动轮询器与 HTTP 服务，ctx 结束后依次关闭 HTTP、轮询器与缓存介质。
func (rt *appRuntime) serve(ctx context.Context) error {
	app, err := rt.newApp()
	if err != nil {
		return err
	}

	pollCtx, cancelPoll := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if rt.poller != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rt.poller.Run(pollCtx)
		}()
	}

	port := rt.cfg.Global.ListenPort
	listenErr := make(chan error, 1)
	go func() {
		rt.logger.WithFields(logrus.Fields{
			"action": "listen",
			"port":   port,
		}).Info("Fiber 服务启动")
		listenErr <- app.Listen(fmt.Sprintf(":%d", port), fiber.ListenConfig{DisableStartupMessage: true})
	}()

	var result *multierror.Error
	select {
	case err := <-listenErr:
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("listen: %w", err))
		}
	case <-ctx.Done():
		rt.logger.WithField("action", "shutdown").Info("收到退出信号，开始关闭")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			result = multierror.Append(result, fmt.Errorf("shutdown http: %w", err))
		}
	}

	cancelPoll()
	wg.Wait()
	if err := rt.close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// close 释放缓存介质。
func (rt *appRuntime) close() error {
	if rt.store == nil {
		return nil
	}
	if err := rt.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
