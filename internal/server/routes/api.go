package routes

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/apigate/internal/server"
	"github.com/any-hub/apigate/internal/source/github"
)

// RegisterAPIRoutes 挂载 /api 下的数据读取接口。未启用的数据源返回 404。
func RegisterAPIRoutes(app *fiber.App, services server.Services, logger *logrus.Logger) {
	if app == nil {
		return
	}
	api := app.Group("/api")

	api.Get("/repos/:owner/:repo", func(c fiber.Ctx) error {
		if services.Repos == nil {
			return server.RenderError(c, fiber.StatusNotFound, "source_disabled")
		}
		res, err := services.Repos.Resolve(c.Context(), c.Params("owner"), c.Params("repo"))
		if errors.Is(err, github.ErrInvalidName) {
			return server.RenderError(c, fiber.StatusBadRequest, "invalid_repository")
		}
		if err != nil {
			return err
		}
		return c.JSON(encodeResult(res))
	})

	api.Get("/fitness", func(c fiber.Ctx) error {
		if services.Fitness == nil {
			return server.RenderError(c, fiber.StatusNotFound, "source_disabled")
		}
		return c.JSON(encodeResult(services.Fitness.Resolve(c.Context())))
	})

	api.Get("/now-playing", func(c fiber.Ctx) error {
		if services.NowPlaying == nil {
			return server.RenderError(c, fiber.StatusNotFound, "source_disabled")
		}
		return c.JSON(services.NowPlaying.Current())
	})
}
