// Package github 描述 GitHub 仓库元数据数据源：默认不节流，24 小时 TTL。
package github

import (
	"time"

	"github.com/any-hub/apigate/internal/source"
)

// Key 是数据源名称，同时作为缓存 Locator.Source 与 Gate 键。
const Key = "github"

const defaultTTL = 24 * time.Hour

func init() {
	source.MustRegister(source.Metadata{
		Key:         Key,
		Description: "GitHub repository metadata cached per owner/repo",
		Kind:        source.KindCached,
		Route:       "/api/repos/:owner/:repo",
		Strategy: source.Strategy{
			TTL:    defaultTTL,
			MaxAge: defaultTTL,
		},
	})
}
