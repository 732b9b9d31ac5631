/*
 * @module api/controllers/service_controller
 * @description 服务管理控制器，提供被监控服务的增删改查与健康日志查询接口
 * @architecture MVC架构 - 控制器层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow HTTP请求处理流程
 * @rules 统一的错误处理和响应格式，参数验证
 * @dependencies sentinel-service/service, github.com/go-chi/render
 * @refs service/models/service.go
 */

package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"gorm.io/gorm"

	"sentinel-service/service"
	"sentinel-service/service/models"
)

// ServiceController 服务管理控制器
type ServiceController struct {
	db *gorm.DB
}

// NewServiceController 创建服务控制器实例
func NewServiceController() *ServiceController {
	return &ServiceController{db: service.DB}
}

// CreateService 注册被监控服务
// @Summary 注册服务
// @Description 注册新的被监控服务
// @Tags 服务管理
// @Accept json
// @Produce json
// @Param service body models.Service true "服务信息"
// @Success 200 {object} APIResponse{data=models.Service}
// @Failure 400 {object} APIResponse
// @Router /services [post]
func (c *ServiceController) CreateService(w http.ResponseWriter, r *http.Request) {
	var req models.Service
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, BadRequestResponse(fmt.Sprintf("请求参数格式错误:%s", err.Error()), nil))
		return
	}

	if req.Name == "" || req.URL == "" || req.ProjectID == "" {
		render.JSON(w, r, BadRequestResponse("服务名称、URL和项目ID不能为空", nil))
		return
	}

	var project models.Project
	if err := c.db.First(&project, "id = ?", req.ProjectID).Error; err != nil {
		render.JSON(w, r, BadRequestResponse("项目不存在", nil))
		return
	}

	if err := c.db.Create(&req).Error; err != nil {
		render.JSON(w, r, BadRequestResponse(err.Error(), nil))
		return
	}

	render.JSON(w, r, SuccessResponse("创建成功", &req))
}

// GetServices 获取服务列表
// @Summary 获取服务列表
// @Description 获取服务列表，支持按项目和分组过滤
// @Tags 服务管理
// @Produce json
// @Param project_id query string false "项目ID过滤"
// @Param group query string false "分组过滤"
// @Success 200 {object} APIResponse{data=[]models.Service}
// @Router /services [get]
func (c *ServiceController) GetServices(w http.ResponseWriter, r *http.Request) {
	query := c.db.Model(&models.Service{})
	if projectID := r.URL.Query().Get("project_id"); projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}
	if group := r.URL.Query().Get("group"); group != "" {
		query = query.Where("\"group\" = ?", group)
	}

	var services []models.Service
	if err := query.Order("created_at ASC").Find(&services).Error; err != nil {
		render.JSON(w, r, InternalErrorResponse("获取服务列表失败", nil))
		return
	}

	render.JSON(w, r, SuccessResponse("查询成功", services))
}

// GetService 获取服务详情
// @Summary 获取服务详情
// @Description 根据ID获取服务详细信息，含最新健康状态
// @Tags 服务管理
// @Produce json
// @Param id path string true "服务ID"
// @Success 200 {object} APIResponse{data=models.Service}
// @Failure 404 {object} APIResponse
// @Router /services/{id} [get]
func (c *ServiceController) GetService(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		render.JSON(w, r, BadRequestResponse("ID参数不能为空", nil))
		return
	}

	var svc models.Service
	if err := c.db.Preload("Project").First(&svc, "id = ?", id).Error; err != nil {
		render.JSON(w, r, NotFoundResponse("服务不存在", nil))
		return
	}

	render.JSON(w, r, SuccessResponse("查询成功", &svc))
}

// UpdateService 更新服务
// @Summary 更新服务
// @Description 更新服务配置
// @Tags 服务管理
// @Accept json
// @Produce json
// @Param id path string true "服务ID"
// @Param service body models.Service true "更新信息"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Router /services/{id} [put]
func (c *ServiceController) UpdateService(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		render.JSON(w, r, BadRequestResponse("ID参数不能为空", nil))
		return
	}

	var existing models.Service
	if err := c.db.First(&existing, "id = ?", id).Error; err != nil {
		render.JSON(w, r, NotFoundResponse("服务不存在", nil))
		return
	}

	var req map[string]interface{}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", nil))
		return
	}

	// 只允许更新白名单字段
	allowed := map[string]string{
		"name":        "name",
		"url":         "url",
		"metrics_url": "metrics_url",
		"group":       "group",
		"owner_email": "owner_email",
		"slo_target":  "slo_target",
		"active":      "active",
	}
	updates := map[string]interface{}{}
	for key, column := range allowed {
		if value, ok := req[key]; ok {
			updates[column] = value
		}
	}
	if len(updates) == 0 {
		render.JSON(w, r, BadRequestResponse("没有可更新的字段", nil))
		return
	}

	if err := c.db.Model(&existing).Updates(updates).Error; err != nil {
		render.JSON(w, r, BadRequestResponse(err.Error(), nil))
		return
	}

	render.JSON(w, r, SuccessResponse("更新成功", nil))
}

// DeleteService 删除服务
// @Summary 删除服务
// @Description 删除被监控服务
// @Tags 服务管理
// @Produce json
// @Param id path string true "服务ID"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Router /services/{id} [delete]
func (c *ServiceController) DeleteService(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		render.JSON(w, r, BadRequestResponse("ID参数不能为空", nil))
		return
	}

	if err := c.db.Delete(&models.Service{}, "id = ?", id).Error; err != nil {
		render.JSON(w, r, BadRequestResponse(err.Error(), nil))
		return
	}

	render.JSON(w, r, SuccessResponse("删除成功", nil))
}

// GetServiceHealthLogs 获取服务健康日志
// @Summary 获取服务健康日志
// @Description 分页获取指定服务的健康日志，按时间倒序
// @Tags 服务管理
// @Produce json
// @Param id path string true "服务ID"
// @Param page query int false "页码" default(1)
// @Param size query int false "每页大小" default(50)
// @Success 200 {object} PaginatedResponse{data=[]models.HealthLog}
// @Router /services/{id}/health-logs [get]
func (c *ServiceController) GetServiceHealthLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		render.JSON(w, r, BadRequestResponse("ID参数不能为空", nil))
		return
	}

	page, size := parsePagination(r, 50)

	query := c.db.Model(&models.HealthLog{}).Where("service_id = ?", id)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		render.JSON(w, r, InternalErrorResponse("获取健康日志失败", nil))
		return
	}

	var logs []models.HealthLog
	if err := query.Order("timestamp DESC, id DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&logs).Error; err != nil {
		render.JSON(w, r, InternalErrorResponse("获取健康日志失败", nil))
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

// parsePagination 解析分页参数
func parsePagination(r *http.Request, defaultSize int) (page, size int) {
	page = 1
	size = defaultSize
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && s > 0 && s <= 500 {
		size = s
	}
	return page, size
}
