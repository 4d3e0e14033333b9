// Package strava 描述运动数据数据源：单一条目，15 分钟回源间隔，24 小时后丢弃。
package strava

import (
	"time"

	"github.com/any-hub/apigate/internal/source"
)

// Key 是数据源名称，同时作为缓存 Locator.Source 与 Gate 键。
const Key = "strava"

// EntryKey 是唯一条目的缓存键。
const EntryKey = "athlete"

const (
	defaultTTL         = 24 * time.Hour
	defaultMinInterval = 15 * time.Minute
)

func init() {
	source.MustRegister(source.Metadata{
		Key:         Key,
		Description: "Strava athlete stats and recent activities, rate limited",
		Kind:        source.KindCached,
		Route:       "/api/fitness",
		Strategy: source.Strategy{
			TTL:         defaultTTL,
			MaxAge:      defaultTTL,
			MinInterval: defaultMinInterval,
		},
	})
}
