package server

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/apigate/internal/config"
)

func TestRouterSetsRequestIDAndRendersNotFound(t *testing.T) {
	app := newTestApp(t, func(app *fiber.App, _ Services, _ *logrus.Logger) {
		app.Get("/ping", func(c fiber.Ctx) error {
			return c.SendString(RequestID(c))
		})
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	reqID := resp.Header.Get("X-Request-ID")
	if reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != reqID {
		t.Fatalf("RequestID(c) 应与响应头一致: %s vs %s", body, reqID)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/unknown", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 status, got %d", resp.StatusCode)
	}
	body, _ = io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte(`"not_found"`)) {
		t.Fatalf("expected not_found error, got %s", string(body))
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("404 响应同样需要 X-Request-ID")
	}
}

func TestRouterRecoversPanics(t *testing.T) {
	app := newTestApp(t, func(app *fiber.App, _ Services, _ *logrus.Logger) {
		app.Get("/boom", func(c fiber.Ctx) error {
			panic("boom")
		})
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("panic 应转为 500，得到 %d", resp.StatusCode)
	}
}

func TestNewAppRequiresDependencies(t *testing.T) {
	if _, err := NewApp(AppOptions{}); err == nil {
		t.Fatalf("缺少 logger 应报错")
	}
	logger := logrus.New()
	if _, err := NewApp(AppOptions{Logger: logger}); err == nil {
		t.Fatalf("缺少 registry 应报错")
	}
}

func newTestApp(t *testing.T, routes ...RouteRegistrar) *fiber.App {
	t.Helper()

	registry, err := NewSourceRegistry(&config.Config{})
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	app, err := NewApp(AppOptions{
		Logger:   logger,
		Services: Services{Registry: registry},
		Routes:   routes,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	return app
}
