/*
 * @module api/controllers/monitoring_controller
 * @description 监控数据控制器，提供状态总览、事件、可靠性评分、告警日志查询与调试触发接口
 * @architecture MVC架构 - 控制器层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow HTTP请求处理流程
 * @rules 统一的错误处理和响应格式；调试触发接口同步执行并返回结果
 * @dependencies sentinel-service/service, github.com/go-chi/render
 * @refs service/monitoring/monitor_service.go
 */

package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"gorm.io/gorm"

	"sentinel-service/service"
	"sentinel-service/service/models"
	"sentinel-service/service/monitoring"
)

// MonitoringController 监控数据控制器
type MonitoringController struct {
	db *gorm.DB
}

// NewMonitoringController 创建监控数据控制器实例
func NewMonitoringController() *MonitoringController {
	return &MonitoringController{db: service.DB}
}

// ServiceStatusView 服务状态总览条目
type ServiceStatusView struct {
	ServiceID   string     `json:"service_id"`
	ServiceName string     `json:"service_name"`
	Group       string     `json:"group"`
	Status      string     `json:"status"`
	Latency     int64      `json:"latency"`
	CPU         float64    `json:"cpu"`
	Memory      float64    `json:"memory"`
	CheckedAt   *time.Time `json:"checked_at,omitempty"`
}

// GetDashboard 获取状态总览
// @Summary 获取状态总览
// @Description 返回所有活跃服务的最新健康状态
// @Tags 监控
// @Produce json
// @Success 200 {object} APIResponse{data=[]ServiceStatusView}
// @Router /monitoring/dashboard [get]
func (c *MonitoringController) GetDashboard(w http.ResponseWriter, r *http.Request) {
	var services []models.Service
	if err := c.db.Where("active = ?", true).Order("name ASC").Find(&services).Error; err != nil {
		render.JSON(w, r, InternalErrorResponse("获取服务列表失败", nil))
		return
	}

	views := make([]ServiceStatusView, 0, len(services))
	for i := range services {
		view := ServiceStatusView{
			ServiceID:   services[i].ID,
			ServiceName: services[i].Name,
			Group:       services[i].Group,
			Status:      "unknown",
		}

		var latest models.HealthLog
		err := c.db.Where("service_id = ?", services[i].ID).
			Order("timestamp DESC, id DESC").
			First(&latest).Error
		if err == nil {
			view.Status = latest.Status
			view.Latency = latest.Latency
			view.CPU = latest.CPU
			view.Memory = latest.Memory
			view.CheckedAt = &latest.Timestamp
		}

		views = append(views, view)
	}

	render.JSON(w, r, SuccessResponse("查询成功", views))
}

// GetIncidents 获取事件列表
// @Summary 获取事件列表
// @Description 分页获取事件列表，支持按服务和解决状态过滤
// @Tags 监控
// @Produce json
// @Param service_id query string false "服务ID过滤"
// @Param resolved query bool false "解决状态过滤"
// @Param page query int false "页码" default(1)
// @Param size query int false "每页大小" default(20)
// @Success 200 {object} PaginatedResponse{data=[]models.Incident}
// @Router /monitoring/incidents [get]
func (c *MonitoringController) GetIncidents(w http.ResponseWriter, r *http.Request) {
	page, size := parsePagination(r, 20)

	query := c.db.Model(&models.Incident{})
	if serviceID := r.URL.Query().Get("service_id"); serviceID != "" {
		query = query.Where("service_id = ?", serviceID)
	}
	if resolved := r.URL.Query().Get("resolved"); resolved != "" {
		query = query.Where("resolved = ?", resolved == "true")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		render.JSON(w, r, InternalErrorResponse("获取事件列表失败", nil))
		return
	}

	var incidents []models.Incident
	if err := query.Order("started_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&incidents).Error; err != nil {
		render.JSON(w, r, InternalErrorResponse("获取事件列表失败", nil))
		return
	}

	render.JSON(w, r, &PaginatedResponse{
		Status: 0,
		Msg:    "查询成功",
		Data:   incidents,
		Total:  total,
		Page:   page,
		Size:   size,
	})
}

// GetIncident 获取事件详情
// @Summary 获取事件详情
// @Description 根据ID获取事件详细信息
// @Tags 监控
// @Produce json
// @Param id path string true "事件ID"
// @Success 200 {object} APIResponse{data=models.Incident}
// @Failure 404 {object} APIResponse
// @Router /monitoring/incidents/{id} [get]
func (c *MonitoringController) GetIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		render.JSON(w, r, BadRequestResponse("ID参数不能为空", nil))
		return
	}

	var incident models.Incident
	if err := c.db.First(&incident, "id = ?", id).Error; err != nil {
		render.JSON(w, r, NotFoundResponse("事件不存在", nil))
		return
	}

	render.JSON(w, r, SuccessResponse("查询成功", &incident))
}

// GetReliabilityScores 获取可靠性评分列表
// @Summary 获取可靠性评分列表
// @Description 返回所有服务的可靠性评分
// @Tags 监控
// @Produce json
// @Success 200 {object} APIResponse{data=[]models.ReliabilityScore}
// @Router /monitoring/reliability [get]
func (c *MonitoringController) GetReliabilityScores(w http.ResponseWriter, r *http.Request) {
	var scores []models.ReliabilityScore
	if err := c.db.Order("uptime ASC").Find(&scores).Error; err != nil {
		render.JSON(w, r, InternalErrorResponse("获取可靠性评分失败", nil))
		return
	}

	render.JSON(w, r, SuccessResponse("查询成功", scores))
}

// GetServiceReliability 获取服务可靠性评分
// @Summary 获取服务可靠性评分
// @Description 根据服务ID获取可靠性评分
// @Tags 监控
// @Produce json
// @Param service_id path string true "服务ID"
// @Success 200 {object} APIResponse{data=models.ReliabilityScore}
// @Failure 404 {object} APIResponse
// @Router /monitoring/reliability/{service_id} [get]
func (c *MonitoringController) GetServiceReliability(w http.ResponseWriter, r *http.Request) {
	serviceID := chi.URLParam(r, "service_id")
	if serviceID == "" {
		render.JSON(w, r, BadRequestResponse("服务ID参数不能为空", nil))
		return
	}

	var score models.ReliabilityScore
	if err := c.db.First(&score, "service_id = ?", serviceID).Error; err != nil {
		render.JSON(w, r, NotFoundResponse("该服务暂无可靠性评分", nil))
		return
	}

	render.JSON(w, r, SuccessResponse("查询成功", &score))
}

// GetAlertLogs 获取告警日志列表
// @Summary 获取告警日志列表
// @Description 分页获取告警发送审计日志
// @Tags 监控
// @Produce json
// @Param service_id query string false "服务ID过滤"
// @Param page query int false "页码" default(1)
// @Param size query int false "每页大小" default(20)
// @Success 200 {object} PaginatedResponse{data=[]models.AlertLog}
// @Router /monitoring/alert-logs [get]
func (c *MonitoringController) GetAlertLogs(w http.ResponseWriter, r *http.Request) {
	page, size := parsePagination(r, 20)

	query := c.db.Model(&models.AlertLog{})
	if serviceID := r.URL.Query().Get("service_id"); serviceID != "" {
		query = query.Where("service_id = ?", serviceID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		render.JSON(w, r, InternalErrorResponse("获取告警日志失败", nil))
		return
	}

	var logs []models.AlertLog
	if err := query.Order("timestamp DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&logs).Error; err != nil {
		render.JSON(w, r, InternalErrorResponse("获取告警日志失败", nil))
		return
	}

	render.JSON(w, r, &PaginatedResponse{
		Status: 0,
		Msg:    "查询成功",
		Data:   logs,
		Total:  total,
		Page:   page,
		Size:   size,
	})
}

// TriggerHealthCheck 手动触发健康检查
// @Summary 手动触发健康检查
// @Description 同步执行一轮健康检查并返回逐服务结果
// @Tags 调试
// @Produce json
// @Success 200 {object} APIResponse
// @Router /debug/health-check [post]
func (c *MonitoringController) TriggerHealthCheck(w http.ResponseWriter, r *http.Request) {
	results := service.GlobalSchedulerService.TriggerHealthCheck(r.Context())
	render.JSON(w, r, SuccessResponse("健康检查已执行", results))
}

// TriggerReliabilityCalculation 手动触发可靠性评分计算
// @Summary 手动触发可靠性评分计算
// @Description 同步执行一轮可靠性评分计算
// @Tags 调试
// @Produce json
// @Success 200 {object} APIResponse
// @Router /debug/reliability [post]
func (c *MonitoringController) TriggerReliabilityCalculation(w http.ResponseWriter, r *http.Request) {
	service.GlobalSchedulerService.TriggerReliabilityCalculation(r.Context())
	render.JSON(w, r, SuccessResponse("可靠性评分计算已执行", nil))
}

// TestAlertRequest 测试告警请求
type TestAlertRequest struct {
	ServiceID string `json:"service_id"`
	Status    string `json:"status" example:"down"`
}

// TriggerTestAlert 发送测试告警
// @Summary 发送测试告警
// @Description 对指定服务模拟一次状态恶化并走完整告警链路
// @Tags 调试
// @Accept json
// @Produce json
// @Param request body TestAlertRequest true "测试告警请求"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Router /debug/test-alert [post]
func (c *MonitoringController) TriggerTestAlert(w http.ResponseWriter, r *http.Request) {
	var req TestAlertRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", nil))
		return
	}
	if req.ServiceID == "" {
		render.JSON(w, r, BadRequestResponse("服务ID不能为空", nil))
		return
	}
	if req.Status == "" {
		req.Status = models.StatusDown
	}
	if req.Status != models.StatusDown && req.Status != models.StatusDegraded {
		render.JSON(w, r, BadRequestResponse("测试状态只支持 down 或 degraded", nil))
		return
	}

	var svc models.Service
	if err := c.db.First(&svc, "id = ?", req.ServiceID).Error; err != nil {
		render.JSON(w, r, NotFoundResponse("服务不存在", nil))
		return
	}

	service.GlobalMonitorService.Dispatcher().TriggerAlerts(r.Context(), []*monitoring.CheckResult{
		{
			ServiceID:      svc.ID,
			ServiceName:    svc.Name,
			Status:         req.Status,
			PreviousStatus: models.StatusOK,
			StatusChanged:  true,
		},
	})

	render.JSON(w, r, SuccessResponse("测试告警已触发", nil))
}
