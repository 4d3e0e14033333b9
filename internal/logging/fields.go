package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// SourceFields 提供数据源维度的字段，供 Resolve/Clear/轮询日志复用。
func SourceFields(action, source, key string) logrus.Fields {
	fields := logrus.Fields{
		"action": action,
		"source": source,
	}
	if key != "" {
		fields["key"] = key
	}
	return fields
}

// RequestFields 提供 HTTP 访问日志字段。
func RequestFields(requestID, method, path string, status int, elapsedMs int64) logrus.Fields {
	return logrus.Fields{
		"action":     "http_request",
		"request_id": requestID,
		"method":     method,
		"path":       path,
		"status":     status,
		"elapsed_ms": elapsedMs,
	}
}
