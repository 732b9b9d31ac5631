/*
 * @module service/monitoring/classifier_test
 * @description 状态分类器单元测试，覆盖优先级规则、checks聚合和资源指标提取
 * @architecture 测试层 - 纯函数单元测试
 * @documentReference dev_docs/test_plan.md
 * @stateFlow 构造响应 -> 分类 -> 断言三态结果
 * @rules 重点覆盖5xx压过乐观响应体、错误指示字段和状态码兜底路径
 * @dependencies testing, testify
 * @refs classifier.go
 */

package monitoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sentinel-service/service/models"
)

func TestClassifyResponse_NoBody(t *testing.T) {
	testCases := []struct {
		name       string
		statusCode int
		expected   string
	}{
		{"200无响应体判定为ok", 200, models.StatusOK},
		{"500无响应体判定为down", 500, models.StatusDown},
		{"503无响应体判定为down", 503, models.StatusDown},
		{"404无响应体判定为degraded", 404, models.StatusDegraded},
		{"429无响应体判定为degraded", 429, models.StatusDegraded},
		{"302无响应体判定为down", 302, models.StatusDown},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ClassifyResponse(tc.statusCode, nil))
		})
	}
}

func TestClassifyResponse_ServerErrorOverridesBody(t *testing.T) {
	// 5xx时响应体中的乐观状态不可信
	body := map[string]interface{}{"status": "ok"}
	assert.Equal(t, models.StatusDown, ClassifyResponse(503, body))
	assert.Equal(t, models.StatusDown, ClassifyResponse(500, body))

	// 2xx时正常采信响应体
	assert.Equal(t, models.StatusOK, ClassifyResponse(200, body))
}

func TestClassifyResponse_StatusField(t *testing.T) {
	testCases := []struct {
		name     string
		status   string
		expected string
	}{
		{"up判定为ok", "up", models.StatusOK},
		{"ok判定为ok", "ok", models.StatusOK},
		{"healthy判定为ok", "healthy", models.StatusOK},
		{"大写UP判定为ok", "UP", models.StatusOK},
		{"degraded判定为degraded", "degraded", models.StatusDegraded},
		{"warning判定为degraded", "warning", models.StatusDegraded},
		{"down判定为down", "down", models.StatusDown},
		{"unhealthy判定为down", "unhealthy", models.StatusDown},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			body := map[string]interface{}{"status": tc.status}
			assert.Equal(t, tc.expected, ClassifyResponse(200, body))
		})
	}
}

func TestClassifyResponse_ErrorIndicators(t *testing.T) {
	// 错误指示字段压过状态字段
	assert.Equal(t, models.StatusDown, ClassifyResponse(200, map[string]interface{}{
		"status": "ok",
		"error":  "connection refused",
	}))

	assert.Equal(t, models.StatusDown, ClassifyResponse(200, map[string]interface{}{
		"errors": []interface{}{"db unreachable"},
	}))

	assert.Equal(t, models.StatusDown, ClassifyResponse(200, map[string]interface{}{
		"failed": true,
	}))

	assert.Equal(t, models.StatusDown, ClassifyResponse(200, map[string]interface{}{
		"healthy": false,
	}))

	// 空的错误字段不算错误指示
	assert.Equal(t, models.StatusOK, ClassifyResponse(200, map[string]interface{}{
		"status": "ok",
		"error":  "",
		"errors": []interface{}{},
	}))

	// healthy为true不是错误
	assert.Equal(t, models.StatusOK, ClassifyResponse(200, map[string]interface{}{
		"healthy": true,
		"status":  "ok",
	}))
}

func TestClassifyResponse_ChecksAggregation(t *testing.T) {
	// 全部ok
	body := map[string]interface{}{
		"checks": []interface{}{
			map[string]interface{}{"name": "db", "status": "up"},
			map[string]interface{}{"name": "cache", "status": "ok"},
		},
	}
	assert.Equal(t, models.StatusOK, ClassifyResponse(200, body))

	// 任一down则整体down
	body = map[string]interface{}{
		"checks": []interface{}{
			map[string]interface{}{"name": "db", "status": "up"},
			map[string]interface{}{"name": "cache", "status": "down"},
		},
	}
	assert.Equal(t, models.StatusDown, ClassifyResponse(200, body))

	// 存在degraded则整体degraded
	body = map[string]interface{}{
		"checks": []interface{}{
			map[string]interface{}{"name": "db", "status": "up"},
			map[string]interface{}{"name": "cache", "status": "degraded"},
		},
	}
	assert.Equal(t, models.StatusDegraded, ClassifyResponse(200, body))

	// 未知状态按降级处理
	body = map[string]interface{}{
		"checks": []interface{}{
			map[string]interface{}{"name": "db", "status": "something"},
		},
	}
	assert.Equal(t, models.StatusDegraded, ClassifyResponse(200, body))

	// checks支持state字段
	body = map[string]interface{}{
		"checks": []interface{}{
			map[string]interface{}{"name": "db", "state": "up"},
		},
	}
	assert.Equal(t, models.StatusOK, ClassifyResponse(200, body))
}

func TestClassifyResponse_CodeFallback(t *testing.T) {
	// 响应体没有可识别字段时按状态码兜底
	body := map[string]interface{}{"version": "1.2.3"}
	assert.Equal(t, models.StatusOK, ClassifyResponse(200, body))
	assert.Equal(t, models.StatusDown, ClassifyResponse(503, body))
	assert.Equal(t, models.StatusDegraded, ClassifyResponse(404, body))
	assert.Equal(t, models.StatusDown, ClassifyResponse(301, body))
}

func TestExtractSystemMetrics(t *testing.T) {
	body := map[string]interface{}{
		"system": map[string]interface{}{
			"memory_usage": map[string]interface{}{
				"heapUsed": float64(134217728), // 128MB
				"rss":      float64(268435456),
			},
			"cpu_load": []interface{}{0.5, 0.3, 0.4},
		},
	}

	cpu, memory := ExtractSystemMetrics(body)
	assert.Equal(t, 128.0, memory)
	assert.Equal(t, 40.0, cpu) // (0.5+0.3+0.4)/3*100
}

func TestExtractSystemMetrics_RSSFallback(t *testing.T) {
	body := map[string]interface{}{
		"system": map[string]interface{}{
			"memory_usage": map[string]interface{}{
				"rss": float64(52428800), // 50MB
			},
		},
	}

	cpu, memory := ExtractSystemMetrics(body)
	assert.Equal(t, 50.0, memory)
	assert.Equal(t, 0.0, cpu)
}

func TestExtractSystemMetrics_NegativeLoadIgnored(t *testing.T) {
	// 负值（不可用）不参与平均
	body := map[string]interface{}{
		"system": map[string]interface{}{
			"cpu_load": []interface{}{-1.0, 0.6},
		},
	}

	cpu, _ := ExtractSystemMetrics(body)
	assert.Equal(t, 60.0, cpu)
}

func TestExtractSystemMetrics_MissingSystem(t *testing.T) {
	cpu, memory := ExtractSystemMetrics(map[string]interface{}{"status": "ok"})
	assert.Equal(t, 0.0, cpu)
	assert.Equal(t, 0.0, memory)

	cpu, memory = ExtractSystemMetrics(nil)
	assert.Equal(t, 0.0, cpu)
	assert.Equal(t, 0.0, memory)
}
