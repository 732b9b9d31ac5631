/*
 * @module service/monitoring/health_checker_test
 * @description 健康检查器测试，覆盖探测分类、前序状态对比、日志落库、指标补齐与事件推送
 * @architecture 测试层 - 业务服务测试
 * @documentReference dev_docs/test_plan.md
 * @stateFlow 启动httptest目标服务 -> 执行检查 -> 断言结果与落库数据
 * @rules 连接失败判定为down且响应码为0；单个服务失败不影响同批次其他服务
 * @dependencies testing, testify, net/http/httptest, sentinel-service/testutil
 * @refs health_checker.go
 */

package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"sentinel-service/service/models"
	"sentinel-service/testutil"
)

// recordingPublisher 记录发布事件的测试发布器
type recordingPublisher struct {
	mu        sync.Mutex
	health    []*models.HealthUpdateEvent
	incidents []*models.IncidentEvent
}

func (p *recordingPublisher) PublishHealthUpdate(event *models.HealthUpdateEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.health = append(p.health, event)
}

func (p *recordingPublisher) PublishIncidentOpened(event *models.IncidentEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.incidents = append(p.incidents, event)
}

type HealthCheckerTestSuite struct {
	suite.Suite
	testDB    *testutil.TestDB
	factory   *testutil.TestDataFactory
	publisher *recordingPublisher
	checker   *HealthChecker
	project   *models.Project
}

func (suite *HealthCheckerTestSuite) SetupSuite() {
	suite.testDB = testutil.NewTestDB()
	suite.factory = testutil.NewTestDataFactory(suite.testDB.DB)
}

func (suite *HealthCheckerTestSuite) TearDownSuite() {
	suite.testDB.Close()
}

func (suite *HealthCheckerTestSuite) SetupTest() {
	suite.testDB.CleanDB()
	suite.project = suite.factory.CreateProject()
	suite.publisher = &recordingPublisher{}
	detector := NewIncidentDetector(suite.testDB.DB)
	suite.checker = NewHealthChecker(suite.testDB.DB, detector, suite.publisher)
}

func (suite *HealthCheckerTestSuite) serveJSON(code int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		w.Write([]byte(body))
	}))
}

func (suite *HealthCheckerTestSuite) healthLogsFor(serviceID string) []models.HealthLog {
	var logs []models.HealthLog
	suite.NoError(suite.testDB.DB.Where("service_id = ?", serviceID).
		Order("timestamp ASC, id ASC").Find(&logs).Error)
	return logs
}

func (suite *HealthCheckerTestSuite) TestHealthyServicePersistsOKLog() {
	server := suite.serveJSON(200, `{"status":"ok","system":{"memory_usage":{"heapUsed":134217728},"cpu_load":[0.4]}}`)
	defer server.Close()
	svc := suite.factory.CreateService(suite.project.ID, func(s *models.Service) {
		s.URL = server.URL
	})

	results, err := suite.checker.CheckAll(context.Background())

	suite.NoError(err)
	suite.Len(results, 1)
	suite.Equal(models.StatusOK, results[0].Status)
	suite.Equal(200, results[0].ResponseCode)
	suite.Equal(128.0, results[0].Memory)
	suite.Equal(40.0, results[0].CPU)
	suite.Empty(results[0].PreviousStatus)
	suite.False(results[0].StatusChanged)

	logs := suite.healthLogsFor(svc.ID)
	suite.Len(logs, 1)
	suite.Equal(models.StatusOK, logs[0].Status)
	suite.Equal(0, logs[0].ErrorCount)
}

func (suite *HealthCheckerTestSuite) TestServerErrorClassifiedDown() {
	server := suite.serveJSON(503, `{"status":"ok"}`)
	defer server.Close()
	svc := suite.factory.CreateService(suite.project.ID, func(s *models.Service) {
		s.URL = server.URL
	})

	results, err := suite.checker.CheckAll(context.Background())

	suite.NoError(err)
	suite.Len(results, 1)
	suite.Equal(models.StatusDown, results[0].Status)
	suite.Equal(503, results[0].ResponseCode)

	logs := suite.healthLogsFor(svc.ID)
	suite.Len(logs, 1)
	suite.Equal(1, logs[0].ErrorCount)
}

func (suite *HealthCheckerTestSuite) TestUnreachableServiceIsDown() {
	// 端口未监听，连接被拒绝
	svc := suite.factory.CreateService(suite.project.ID, func(s *models.Service) {
		s.URL = "http://127.0.0.1:1"
	})

	results, err := suite.checker.CheckAll(context.Background())

	suite.NoError(err)
	suite.Len(results, 1)
	suite.Equal(models.StatusDown, results[0].Status)
	suite.Equal(0, results[0].ResponseCode)
	suite.GreaterOrEqual(results[0].Latency, int64(0))

	logs := suite.healthLogsFor(svc.ID)
	suite.Len(logs, 1)
}

func (suite *HealthCheckerTestSuite) TestStatusTransitionDetected() {
	server := suite.serveJSON(200, `{"status":"ok"}`)
	defer server.Close()
	svc := suite.factory.CreateService(suite.project.ID, func(s *models.Service) {
		s.URL = server.URL
	})
	suite.factory.CreateHealthLog(svc.ID, func(l *models.HealthLog) {
		l.Status = models.StatusDown
	})

	results, err := suite.checker.CheckAll(context.Background())

	suite.NoError(err)
	suite.Len(results, 1)
	suite.Equal(models.StatusDown, results[0].PreviousStatus)
	suite.True(results[0].StatusChanged)
}

func (suite *HealthCheckerTestSuite) TestUnchangedStatusNotFlagged() {
	server := suite.serveJSON(200, `{"status":"ok"}`)
	defer server.Close()
	svc := suite.factory.CreateService(suite.project.ID, func(s *models.Service) {
		s.URL = server.URL
	})
	suite.factory.CreateHealthLog(svc.ID)

	results, err := suite.checker.CheckAll(context.Background())

	suite.NoError(err)
	suite.Len(results, 1)
	suite.Equal(models.StatusOK, results[0].PreviousStatus)
	suite.False(results[0].StatusChanged)
}

func (suite *HealthCheckerTestSuite) TestPreviousStatusTieBrokenByInsertion() {
	server := suite.serveJSON(200, `{"status":"ok"}`)
	defer server.Close()
	svc := suite.factory.CreateService(suite.project.ID, func(s *models.Service) {
		s.URL = server.URL
	})

	// 两条日志时间戳完全相同，后插入的记录视为最新
	ts := time.Now().Add(-time.Minute)
	suite.factory.CreateHealthLog(svc.ID, func(l *models.HealthLog) {
		l.Status = models.StatusOK
		l.Timestamp = ts
	})
	suite.factory.CreateHealthLog(svc.ID, func(l *models.HealthLog) {
		l.Status = models.StatusDown
		l.Timestamp = ts
	})

	results, err := suite.checker.CheckAll(context.Background())

	suite.NoError(err)
	suite.Len(results, 1)
	suite.Equal(models.StatusDown, results[0].PreviousStatus)
	suite.True(results[0].StatusChanged)
}

func (suite *HealthCheckerTestSuite) TestInactiveServiceSkipped() {
	suite.factory.CreateService(suite.project.ID, func(s *models.Service) {
		s.Active = false
	})

	results, err := suite.checker.CheckAll(context.Background())

	suite.NoError(err)
	suite.Empty(results)
}

func (suite *HealthCheckerTestSuite) TestFailingServiceDoesNotBlockBatch() {
	healthy := suite.serveJSON(200, `{"status":"ok"}`)
	defer healthy.Close()
	suite.factory.CreateService(suite.project.ID, func(s *models.Service) {
		s.URL = healthy.URL
	})
	suite.factory.CreateService(suite.project.ID, func(s *models.Service) {
		s.URL = "http://127.0.0.1:1"
	})

	results, err := suite.checker.CheckAll(context.Background())

	suite.NoError(err)
	suite.Len(results, 2)
	statuses := map[string]bool{}
	for _, r := range results {
		statuses[r.Status] = true
	}
	suite.True(statuses[models.StatusOK])
	suite.True(statuses[models.StatusDown])
}

func (suite *HealthCheckerTestSuite) TestMetricsFallbackJSON() {
	health := suite.serveJSON(200, `{"status":"ok"}`)
	defer health.Close()
	metrics := suite.serveJSON(200, `{"cpu":{"usage":35.5},"mem":{"heapUsed":67108864}}`)
	defer metrics.Close()
	suite.factory.CreateService(suite.project.ID, func(s *models.Service) {
		s.URL = health.URL
		s.MetricsURL = metrics.URL
	})

	results, err := suite.checker.CheckAll(context.Background())

	suite.NoError(err)
	suite.Len(results, 1)
	suite.Equal(35.5, results[0].CPU)
	suite.Equal(64.0, results[0].Memory)
}

func (suite *HealthCheckerTestSuite) TestMetricsFallbackPrometheusText() {
	health := suite.serveJSON(200, `{"status":"ok"}`)
	defer health.Close()
	metrics := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(`# HELP process_cpu_usage The recent cpu usage
# TYPE process_cpu_usage gauge
process_cpu_usage 0.25
# HELP process_resident_memory_bytes Resident memory size
# TYPE process_resident_memory_bytes gauge
process_resident_memory_bytes 2.68435456E8
`))
	}))
	defer metrics.Close()
	suite.factory.CreateService(suite.project.ID, func(s *models.Service) {
		s.URL = health.URL
		s.MetricsURL = metrics.URL
	})

	results, err := suite.checker.CheckAll(context.Background())

	suite.NoError(err)
	suite.Len(results, 1)
	suite.Equal(25.0, results[0].CPU)
	suite.Equal(256.0, results[0].Memory)
}

func (suite *HealthCheckerTestSuite) TestPublisherReceivesEvents() {
	server := suite.serveJSON(503, ``)
	defer server.Close()
	svc := suite.factory.CreateService(suite.project.ID, func(s *models.Service) {
		s.URL = server.URL
	})

	_, err := suite.checker.CheckAll(context.Background())

	suite.NoError(err)
	suite.Len(suite.publisher.health, 1)
	suite.Equal(svc.ID, suite.publisher.health[0].ServiceID)
	suite.Equal(models.StatusDown, suite.publisher.health[0].Status)

	// down首次出现同时开启事件并推送
	suite.Len(suite.publisher.incidents, 1)
	suite.Equal(models.IncidentTypeDown, suite.publisher.incidents[0].Type)
}

func (suite *HealthCheckerTestSuite) TestNilPublisherTolerated() {
	server := suite.serveJSON(200, `{"status":"ok"}`)
	defer server.Close()
	suite.factory.CreateService(suite.project.ID, func(s *models.Service) {
		s.URL = server.URL
	})

	checker := NewHealthChecker(suite.testDB.DB, NewIncidentDetector(suite.testDB.DB), nil)
	results, err := checker.CheckAll(context.Background())

	suite.NoError(err)
	suite.Len(results, 1)
}

func TestHealthCheckerTestSuite(t *testing.T) {
	suite.Run(t, new(HealthCheckerTestSuite))
}

func TestBuildHealthURL(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{"裸地址", "http://svc:3000", "http://svc:3000/health"},
		{"末尾斜杠", "http://svc:3000/", "http://svc:3000/health"},
		{"已含health后缀", "http://svc:3000/health", "http://svc:3000/health"},
		{"health后带斜杠", "http://svc:3000/health/", "http://svc:3000/health"},
		{"带路径前缀", "http://svc:3000/api", "http://svc:3000/api/health"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, buildHealthURL(tc.input))
		})
	}
}

func TestBuildMetricsURL(t *testing.T) {
	assert.Equal(t, "http://svc:3000/metrics", buildMetricsURL("http://svc:3000"))
	assert.Equal(t, "http://svc:3000/metrics", buildMetricsURL("http://svc:3000/metrics/"))
}

func TestParseJSONMetricsRSSFallback(t *testing.T) {
	cpu, memory := parseJSONMetrics(map[string]interface{}{
		"cpuUsage": 12.3,
		"memoryUsage": map[string]interface{}{
			"rss": float64(52428800),
		},
	})
	assert.Equal(t, 12.3, cpu)
	assert.Equal(t, 50.0, memory)
}
