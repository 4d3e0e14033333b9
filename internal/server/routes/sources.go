package routes

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/apigate/internal/logging"
	"github.com/any-hub/apigate/internal/ratelimit"
	"github.com/any-hub/apigate/internal/server"
	"github.com/any-hub/apigate/internal/source/strava"
)

// RegisterSourceRoutes 暴露 /-/sources 诊断接口与运动数据的清除入口。
func RegisterSourceRoutes(app *fiber.App, services server.Services, logger *logrus.Logger) {
	if app == nil || services.Registry == nil {
		return
	}

	app.Get("/-/sources", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"sources": encodeSources(services.Registry.List(), gateSnapshot(services.Gate)),
		})
	})

	app.Post("/-/sources/strava/clear", func(c fiber.Ctx) error {
		if services.Fitness == nil {
			return server.RenderError(c, fiber.StatusNotFound, "source_disabled")
		}
		services.Fitness.Clear(c.Context())
		fields := logging.SourceFields("cache_clear", strava.Key, strava.EntryKey)
		fields["request_id"] = server.RequestID(c)
		logger.WithFields(fields).Info("fitness_cache_cleared")
		return c.JSON(fiber.Map{"cleared": strava.Key})
	})
}

type sourcePayload struct {
	Key         string            `json:"key"`
	Description string            `json:"description"`
	Kind        string            `json:"kind"`
	Route       string            `json:"route"`
	Enabled     bool              `json:"enabled"`
	AuthMode    string            `json:"auth_mode"`
	Strategy    strategyPayload   `json:"strategy"`
	Gate        *gateStatePayload `json:"gate,omitempty"`
}

type strategyPayload struct {
	TTLSeconds          int64 `json:"ttl_seconds"`
	MaxAgeSeconds       int64 `json:"max_age_seconds"`
	MinIntervalSeconds  int64 `json:"min_interval_seconds"`
	PollIntervalSeconds int64 `json:"poll_interval_seconds,omitempty"`
	Gated               bool  `json:"gated"`
}

type gateStatePayload struct {
	LastAttemptAt  *time.Time `json:"last_attempt_at"`
	RetryInSeconds int64      `json:"retry_in_seconds"`
}

func gateSnapshot(gate *ratelimit.Gate) map[string]ratelimit.Status {
	if gate == nil {
		return nil
	}
	result := make(map[string]ratelimit.Status)
	for _, status := range gate.Snapshot() {
		result[status.Source] = status
	}
	return result
}

func encodeSources(bindings []server.SourceBinding, gates map[string]ratelimit.Status) []sourcePayload {
	if len(bindings) == 0 {
		return nil
	}
	result := make([]sourcePayload, 0, len(bindings))
	for _, binding := range bindings {
		strategy := binding.Strategy
		item := sourcePayload{
			Key:         binding.Meta.Key,
			Description: binding.Meta.Description,
			Kind:        string(binding.Meta.Kind),
			Route:       binding.Meta.Route,
			Enabled:     binding.Enabled,
			AuthMode:    binding.AuthMode,
			Strategy: strategyPayload{
				TTLSeconds:          int64(strategy.TTL / time.Second),
				MaxAgeSeconds:       int64(strategy.MaxAge / time.Second),
				MinIntervalSeconds:  int64(strategy.MinInterval / time.Second),
				PollIntervalSeconds: int64(strategy.PollInterval / time.Second),
				Gated:               strategy.Gated(),
			},
		}
		if status, ok := gates[binding.Meta.Key]; ok {
			gate := &gateStatePayload{RetryInSeconds: int64(status.RetryIn / time.Second)}
			if !status.LastAttemptAt.IsZero() {
				last := status.LastAttemptAt.UTC()
				gate.LastAttemptAt = &last
			}
			item.Gate = gate
		}
		result = append(result, item)
	}
	return result
}
