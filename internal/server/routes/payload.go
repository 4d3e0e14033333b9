package routes

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/any-hub/apigate/internal/policy"
)

// resultPayload 是所有解析型接口的响应体；降级只体现在 stale/limited 标志上，HTTP 状态始终为 200。
type resultPayload struct {
	Data           any        `json:"data"`
	Stale          bool       `json:"stale"`
	Limited        bool       `json:"limited"`
	FetchedAt      *time.Time `json:"fetched_at"`
	RetryInSeconds int64      `json:"retry_in_seconds"`
	Reason         string     `json:"reason,omitempty"`
}

func encodeResult[T any](res policy.Result[T]) resultPayload {
	payload := resultPayload{
		Stale:          res.Stale,
		Limited:        res.Limited,
		RetryInSeconds: int64(math.Ceil(res.RetryIn.Seconds())),
		Reason:         reasonOf(res.Cause),
	}
	if res.Data != nil {
		payload.Data = res.Data
		fetchedAt := res.FetchedAt.UTC()
		payload.FetchedAt = &fetchedAt
	}
	return payload
}

// reasonOf 把错误归类为稳定的短码，不把上游原始信息暴露给调用方。
func reasonOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, policy.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, policy.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "abandoned"
	default:
		return "upstream_failure"
	}
}
