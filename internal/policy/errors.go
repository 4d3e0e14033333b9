package policy

import "errors"

// 错误分类：全部在 Resolve 边界内部消化，只通过 Result.Cause 暴露给调用方与日志。
var (
	// ErrStorageUnavailable 介质不可用或容量不足，降级为“无缓存”。
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrMalformedResponse 回源结果未通过结构校验，与上游失败同等对待。
	ErrMalformedResponse = errors.New("malformed response")
	// ErrUpstreamFailure 网络错误、超时或非 2xx 状态。
	ErrUpstreamFailure = errors.New("upstream failure")
	// ErrRateLimited Gate 拒绝本次回源。
	ErrRateLimited = errors.New("rate limited")
)
