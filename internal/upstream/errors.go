package upstream

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/any-hub/apigate/internal/policy"
)

// maxBodyExcerpt 是 StatusError 保留的响应体长度上限。
const maxBodyExcerpt = 512

// StatusError 描述一次非 2xx 的上游响应，errors.Is 可匹配 policy.ErrUpstreamFailure。
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	text := http.StatusText(e.Status)
	if e.Body == "" {
		return fmt.Sprintf("upstream status %d %s", e.Status, text)
	}
	return fmt.Sprintf("upstream status %d %s: %s", e.Status, text, e.Body)
}

func (e *StatusError) Unwrap() error {
	return policy.ErrUpstreamFailure
}

// FromResponse 由状态码与响应体构建 StatusError，响应体会被截断。
func FromResponse(status int, body []byte) *StatusError {
	text := strings.TrimSpace(string(body))
	if len(text) > maxBodyExcerpt {
		text = text[:maxBodyExcerpt]
	}
	return &StatusError{Status: status, Body: text}
}

// CheckResponse 对 2xx 返回 nil；否则读取（并限制）响应体后返回 StatusError。
// 调用方仍负责关闭 resp.Body。
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyExcerpt))
	return FromResponse(resp.StatusCode, body)
}
