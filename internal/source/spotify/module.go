// Package spotify 轮询“正在播放”状态，只在内存中保存最新快照，不经过缓存与 Gate。
package spotify

import (
	"time"

	"github.com/any-hub/apigate/internal/source"
)

// Key 是数据源名称。
const Key = "spotify"

const defaultPollInterval = 30 * time.Second

func init() {
	source.MustRegister(source.Metadata{
		Key:         Key,
		Description: "Spotify currently playing track, polled in memory",
		Kind:        source.KindPoller,
		Route:       "/api/now-playing",
		Strategy: source.Strategy{
			PollInterval: defaultPollInterval,
		},
	})
}
