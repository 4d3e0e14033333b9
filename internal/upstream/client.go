// Package upstream 提供所有数据源共享的上游 HTTP 客户端与状态码错误类型。
package upstream

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/apigate/internal/config"
	"github.com/any-hub/apigate/internal/logging"
	"github.com/any-hub/apigate/internal/version"
)

// 共享的 Transport 参数，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          50,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// maxBackoffFactor 限制指数退避的上限为 InitialBackoff 的倍数。
const maxBackoffFactor = 8

// NewClient 返回带重试的共享 http.Client。UpstreamTimeout 约束单次尝试，
// 重试次数由 MaxRetries 决定；重试耗尽后把最后一次响应原样交给调用方判断状态码。
func NewClient(cfg config.GlobalConfig, logger *logrus.Logger) *http.Client {
	timeout := 15 * time.Second
	if cfg.UpstreamTimeout.DurationValue() > 0 {
		timeout = cfg.UpstreamTimeout.DurationValue()
	}
	backoff := time.Second
	if cfg.InitialBackoff.DurationValue() > 0 {
		backoff = cfg.InitialBackoff.DurationValue()
	}

	rclient := &retryablehttp.Client{
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: &userAgentTransport{base: defaultTransport.Clone(), agent: version.UserAgent()},
		},
		Logger:       logging.NewRetryLogger(logger),
		RetryWaitMin: backoff,
		RetryWaitMax: backoff * maxBackoffFactor,
		RetryMax:     cfg.MaxRetries,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: lastResponse,
	}
	return rclient.StandardClient()
}

// lastResponse 在重试耗尽后返回最后一次响应而不是错误，由调用方根据状态码构建 StatusError。
func lastResponse(resp *http.Response, err error, attempts int) (*http.Response, error) {
	if resp != nil {
		return resp, nil
	}
	if err == nil {
		err = fmt.Errorf("giving up after %d attempt(s)", attempts)
	}
	return nil, err
}

// userAgentTransport 为未显式设置 User-Agent 的请求补充默认值。
type userAgentTransport struct {
	base  http.RoundTripper
	agent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(clone)
}
