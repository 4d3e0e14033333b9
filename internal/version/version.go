package version

import "fmt"

// ServiceName 出现在日志 service 字段与版本输出中。
const ServiceName = "apigate"

// Version/Commit 可在构建时通过 -ldflags 注入，默认使用开发占位符。
var (
	Version = "0.1.0"
	Commit  = "dev"
)

// Full 返回便于 CLI 打印的完整版本信息。
func Full() string {
	return fmt.Sprintf("%s %s (%s)", ServiceName, Version, Commit)
}

// UserAgent 用于所有上游请求的 User-Agent 头。
func UserAgent() string {
	return fmt.Sprintf("%s/%s", ServiceName, Version)
}
