/*
 * @module service/monitoring/classifier
 * @description 状态分类器，将异构健康端点响应（状态码+响应体）归一化为三态状态，并提取CPU/内存指标
 * @architecture 分层架构 - 业务服务层（纯函数，无副作用）
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 响应解析 -> 优先级规则匹配 -> 三态状态输出
 * @rules checks数组优先；HTTP 5xx与显式错误指示必须压过响应体中的乐观文案，防止误判为ok
 * @dependencies github.com/spf13/cast
 * @refs service/monitoring/health_checker.go
 */

package monitoring

import (
	"math"
	"strings"

	"github.com/spf13/cast"

	"sentinel-service/service/models"
)

// ClassifyResponse 按优先级规则将HTTP响应归一化为三态状态
// 优先级：checks数组聚合 > HTTP 5xx > 显式错误指示 > status字段down > status字段ok/degraded > 状态码兜底
func ClassifyResponse(statusCode int, body map[string]interface{}) string {
	if body == nil {
		return classifyByCode(statusCode)
	}

	// checks数组是最可靠的判断依据（microservice-health-endpoint格式）
	if checks := cast.ToSlice(body["checks"]); len(checks) > 0 {
		return aggregateChecks(checks)
	}

	hasError := hasErrorIndicator(body)

	rawStatus := cast.ToString(body["status"])
	status := strings.ToLower(rawStatus)

	isDownStatus := status == "down" || status == "unhealthy"

	switch {
	case statusCode >= 500:
		// HTTP 5xx直接判定为down，响应体内容不可信
		return models.StatusDown
	case hasError:
		return models.StatusDown
	case isDownStatus:
		return models.StatusDown
	case status == "up" || status == "ok" || status == "healthy":
		return models.StatusOK
	case status == "degraded" || status == "warning":
		return models.StatusDegraded
	}

	// 响应体没有可识别的状态字段，回退到状态码
	switch {
	case statusCode == 200:
		return models.StatusOK
	case statusCode == 503:
		return models.StatusDown
	case statusCode >= 400 && statusCode < 500:
		return models.StatusDegraded
	default:
		return models.StatusDown
	}
}

// classifyByCode 无响应体时按状态码判定
func classifyByCode(statusCode int) string {
	switch {
	case statusCode == 200:
		return models.StatusOK
	case statusCode >= 500:
		return models.StatusDown
	case statusCode >= 400:
		return models.StatusDegraded
	default:
		return models.StatusDown
	}
}

// aggregateChecks 聚合checks数组中每个检查项的状态
// 任一down则整体down；存在degraded或unknown则整体degraded；全部ok则整体ok
func aggregateChecks(checks []interface{}) string {
	hasDown := false
	hasDegradedOrUnknown := false

	for _, item := range checks {
		check := cast.ToStringMap(item)

		raw := cast.ToString(check["status"])
		if raw == "" {
			raw = cast.ToString(check["state"])
		}

		switch strings.ToLower(raw) {
		case "up", "ok", "healthy":
			// ok
		case "down", "unhealthy", "error":
			hasDown = true
		case "degraded", "warning":
			hasDegradedOrUnknown = true
		default:
			// 未知状态按降级处理
			hasDegradedOrUnknown = true
		}
	}

	switch {
	case hasDown:
		return models.StatusDown
	case hasDegradedOrUnknown:
		return models.StatusDegraded
	default:
		return models.StatusOK
	}
}

// hasErrorIndicator 检查响应体中的显式错误指示字段
// error/errors/failed 按真值判断；healthy/health 仅匹配显式的布尔 false
func hasErrorIndicator(body map[string]interface{}) bool {
	if isTruthy(body["error"]) || isTruthy(body["errors"]) || isTruthy(body["failed"]) {
		return true
	}
	if v, ok := body["healthy"].(bool); ok && !v {
		return true
	}
	if v, ok := body["health"].(bool); ok && !v {
		return true
	}
	return false
}

// isTruthy 按动态语言的真值语义判断任意JSON值
func isTruthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	case []interface{}:
		return len(val) > 0
	case map[string]interface{}:
		return len(val) > 0
	default:
		return true
	}
}

// ExtractSystemMetrics 从响应体的system字段中提取CPU使用率（%）和内存占用（MB）
// memory_usage 取 heapUsed 或 rss（字节），换算为MB保留1位小数；
// cpu_load 数组取正值平均后乘100换算为百分比，保留1位小数
func ExtractSystemMetrics(body map[string]interface{}) (cpu, memory float64) {
	if body == nil {
		return 0, 0
	}

	system := cast.ToStringMap(body["system"])
	if system == nil {
		return 0, 0
	}

	if memUsage := cast.ToStringMap(system["memory_usage"]); memUsage != nil {
		bytes := cast.ToFloat64(memUsage["heapUsed"])
		if bytes == 0 {
			bytes = cast.ToFloat64(memUsage["rss"])
		}
		memory = round1(bytes / 1024 / 1024)
	}

	if loads := cast.ToSlice(system["cpu_load"]); len(loads) > 0 {
		var sum float64
		var count int
		for _, item := range loads {
			if v := cast.ToFloat64(item); v > 0 {
				sum += v
				count++
			}
		}
		if count > 0 {
			cpu = round1(sum / float64(count) * 100)
		}
	}

	return cpu, memory
}

// round1 保留1位小数
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
