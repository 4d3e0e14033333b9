package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/apigate/internal/logging"
	"github.com/any-hub/apigate/internal/policy"
	"github.com/any-hub/apigate/internal/ratelimit"
	"github.com/any-hub/apigate/internal/source/github"
	"github.com/any-hub/apigate/internal/source/spotify"
	"github.com/any-hub/apigate/internal/source/strava"
)

// RepoResolver 由 github.Source 实现，测试中可替换。
type RepoResolver interface {
	Resolve(ctx context.Context, owner, repo string) (policy.Result[github.RepoMeta], error)
}

// FitnessResolver 由 strava.Source 实现。
type FitnessResolver interface {
	Resolve(ctx context.Context) policy.Result[strava.Snapshot]
	Clear(ctx context.Context)
}

// NowPlayingReader 由 spotify.Poller 实现。
type NowPlayingReader interface {
	Current() spotify.NowPlaying
}

// Services 汇总路由需要的数据源，未启用的数据源保持 nil。
type Services struct {
	Registry   *SourceRegistry
	Gate       *ratelimit.Gate
	Repos      RepoResolver
	Fitness    FitnessResolver
	NowPlaying NowPlayingReader
}

// RouteRegistrar 在 NewApp 中依次挂载路由。
type RouteRegistrar func(app *fiber.App, services Services, logger *logrus.Logger)

// AppOptions controls how the Fiber application is assembled.
type AppOptions struct {
	Logger   *logrus.Logger
	Services Services
	Routes   []RouteRegistrar
}

const contextKeyRequestID = "_apigate_request_id"

// NewApp builds a Fiber application with request-id/access-log middleware,
// panic recovery, the given routes, and a JSON not-found fallback.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Services.Registry == nil {
		return nil, errors.New("source registry is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(requestContextMiddleware(opts.Logger))
	app.Use(recover.New())

	for _, register := range opts.Routes {
		register(app, opts.Services, opts.Logger)
	}

	app.Use(func(c fiber.Ctx) error {
		return RenderError(c, fiber.StatusNotFound, "not_found")
	})

	return app, nil
}

// requestContextMiddleware 生成请求 ID 并在请求结束后输出访问日志。
func requestContextMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		started := time.Now()
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		err := c.Next()

		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		fields := logging.RequestFields(reqID, c.Method(), c.Path(), status, time.Since(started).Milliseconds())
		entry := logger.WithFields(fields)
		if err != nil {
			entry.WithError(err).Warn("request_failed")
		} else {
			entry.Debug("request_complete")
		}
		return err
	}
}

// RenderError 输出统一的 JSON 错误体。
func RenderError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
