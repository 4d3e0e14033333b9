package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/apigate/internal/config"
	"github.com/any-hub/apigate/internal/policy"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testGlobal(retries int) config.GlobalConfig {
	return config.GlobalConfig{
		MaxRetries:      retries,
		InitialBackoff:  config.Duration(time.Millisecond),
		UpstreamTimeout: config.Duration(5 * time.Second),
	}
}

func TestNewClientRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(testGlobal(2), quietLogger())
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("重试后应成功，得到 %d", resp.StatusCode)
	}
	if n := hits.Load(); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestNewClientPassesThroughFinalFailure(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	}))
	defer server.Close()

	client := NewClient(testGlobal(1), quietLogger())
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("重试耗尽后应返回最后一次响应: %v", err)
	}
	defer resp.Body.Close()

	checkErr := CheckResponse(resp)
	var statusErr *StatusError
	if !errors.As(checkErr, &statusErr) {
		t.Fatalf("expected StatusError, got %v", checkErr)
	}
	if statusErr.Status != http.StatusServiceUnavailable || statusErr.Body != "maintenance" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
	if !errors.Is(checkErr, policy.ErrUpstreamFailure) {
		t.Fatalf("StatusError 应匹配 ErrUpstreamFailure")
	}
	if n := hits.Load(); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
}

func TestNewClientDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(testGlobal(3), quietLogger())
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if n := hits.Load(); n != 1 {
		t.Fatalf("4xx 不应重试，得到 %d 次", n)
	}
}

func TestNewClientSetsUserAgent(t *testing.T) {
	var agent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.Header.Get("User-Agent"))
	}))
	defer server.Close()

	client := NewClient(testGlobal(0), quietLogger())
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	resp.Body.Close()
	if got, _ := agent.Load().(string); !strings.HasPrefix(got, "apigate/") {
		t.Fatalf("unexpected user agent: %q", got)
	}
}

func TestFromResponseTruncatesBody(t *testing.T) {
	err := FromResponse(http.StatusInternalServerError, []byte(strings.Repeat("x", 2000)))
	if len(err.Body) != maxBodyExcerpt {
		t.Fatalf("响应体应截断为 %d 字节，得到 %d", maxBodyExcerpt, len(err.Body))
	}
	if !strings.Contains(err.Error(), "500") {
		t.Fatalf("错误信息应包含状态码: %s", err.Error())
	}
}

func TestCheckResponseAccepts2xx(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusNoContent, Body: io.NopCloser(strings.NewReader(""))}
	if err := CheckResponse(resp); err != nil {
		t.Fatalf("2xx 不应报错: %v", err)
	}
}
