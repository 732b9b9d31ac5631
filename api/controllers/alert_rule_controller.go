/*
 * @module api/controllers/alert_rule_controller
 * @description 告警规则控制器，提供告警规则的增删改查接口
 * @architecture MVC架构 - 控制器层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow HTTP请求处理流程
 * @rules 统一的错误处理和响应格式，参数验证
 * @dependencies sentinel-service/service, github.com/go-chi/render
 * @refs service/models/alert_rule.go
 */

package controllers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"gorm.io/gorm"

	"sentinel-service/service"
	"sentinel-service/service/models"
)

// AlertRuleController 告警规则控制器
type AlertRuleController struct {
	db *gorm.DB
}

// NewAlertRuleController 创建告警规则控制器实例
func NewAlertRuleController() *AlertRuleController {
	return &AlertRuleController{db: service.DB}
}

// CreateAlertRule 创建告警规则
// @Summary 创建告警规则
// @Description 为服务创建告警规则
// @Tags 告警规则
// @Accept json
// @Produce json
// @Param rule body models.AlertRule true "告警规则"
// @Success 200 {object} APIResponse{data=models.AlertRule}
// @Failure 400 {object} APIResponse
// @Router /alert-rules [post]
func (c *AlertRuleController) CreateAlertRule(w http.ResponseWriter, r *http.Request) {
	var req models.AlertRule
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, BadRequestResponse(fmt.Sprintf("请求参数格式错误:%s", err.Error()), nil))
		return
	}

	if req.ServiceID == "" {
		render.JSON(w, r, BadRequestResponse("服务ID不能为空", nil))
		return
	}

	var svc models.Service
	if err := c.db.First(&svc, "id = ?", req.ServiceID).Error; err != nil {
		render.JSON(w, r, BadRequestResponse("服务不存在", nil))
		return
	}
	if req.ProjectID == "" {
		req.ProjectID = svc.ProjectID
	}

	if err := c.db.Create(&req).Error; err != nil {
		render.JSON(w, r, BadRequestResponse(err.Error(), nil))
		return
	}

	render.JSON(w, r, SuccessResponse("创建成功", &req))
}

// GetAlertRules 获取告警规则列表
// @Summary 获取告警规则列表
// @Description 获取告警规则列表，支持按服务过滤
// @Tags 告警规则
// @Produce json
// @Param service_id query string false "服务ID过滤"
// @Success 200 {object} APIResponse{data=[]models.AlertRule}
// @Router /alert-rules [get]
func (c *AlertRuleController) GetAlertRules(w http.ResponseWriter, r *http.Request) {
	query := c.db.Model(&models.AlertRule{})
	if serviceID := r.URL.Query().Get("service_id"); serviceID != "" {
		query = query.Where("service_id = ?", serviceID)
	}

	var rules []models.AlertRule
	if err := query.Order("created_at ASC").Find(&rules).Error; err != nil {
		render.JSON(w, r, InternalErrorResponse("获取告警规则失败", nil))
		return
	}

	render.JSON(w, r, SuccessResponse("查询成功", rules))
}

// GetAlertRule 获取告警规则详情
// @Summary 获取告警规则详情
// @Description 根据ID获取告警规则
// @Tags 告警规则
// @Produce json
// @Param id path string true "规则ID"
// @Success 200 {object} APIResponse{data=models.AlertRule}
// @Failure 404 {object} APIResponse
// @Router /alert-rules/{id} [get]
func (c *AlertRuleController) GetAlertRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		render.JSON(w, r, BadRequestResponse("ID参数不能为空", nil))
		return
	}

	var rule models.AlertRule
	if err := c.db.First(&rule, "id = ?", id).Error; err != nil {
		render.JSON(w, r, NotFoundResponse("告警规则不存在", nil))
		return
	}

	render.JSON(w, r, SuccessResponse("查询成功", &rule))
}

// UpdateAlertRule 更新告警规则
// @Summary 更新告警规则
// @Description 更新告警规则配置
// @Tags 告警规则
// @Accept json
// @Produce json
// @Param id path string true "规则ID"
// @Param rule body models.AlertRule true "更新信息"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Router /alert-rules/{id} [put]
func (c *AlertRuleController) UpdateAlertRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		render.JSON(w, r, BadRequestResponse("ID参数不能为空", nil))
		return
	}

	var existing models.AlertRule
	if err := c.db.First(&existing, "id = ?", id).Error; err != nil {
		render.JSON(w, r, NotFoundResponse("告警规则不存在", nil))
		return
	}

	var req models.AlertRule
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", nil))
		return
	}

	existing.Enabled = req.Enabled
	existing.Rules = req.Rules
	existing.Channels = req.Channels
	existing.MessageScript = req.MessageScript

	if err := c.db.Save(&existing).Error; err != nil {
		render.JSON(w, r, BadRequestResponse(err.Error(), nil))
		return
	}

	render.JSON(w, r, SuccessResponse("更新成功", &existing))
}

// DeleteAlertRule 删除告警规则
// @Summary 删除告警规则
// @Description 删除告警规则
// @Tags 告警规则
// @Produce json
// @Param id path string true "规则ID"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Router /alert-rules/{id} [delete]
func (c *AlertRuleController) DeleteAlertRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		render.JSON(w, r, BadRequestResponse("ID参数不能为空", nil))
		return
	}

	if err := c.db.Delete(&models.AlertRule{}, "id = ?", id).Error; err != nil {
		render.JSON(w, r, BadRequestResponse(err.Error(), nil))
		return
	}

	render.JSON(w, r, SuccessResponse("删除成功", nil))
}
