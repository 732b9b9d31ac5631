/*
 * @module api/controllers/project_controller
 * @description 项目管理控制器，提供项目的增删改查接口
 * @architecture MVC架构 - 控制器层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow HTTP请求处理流程
 * @rules 统一的错误处理和响应格式，参数验证
 * @dependencies sentinel-service/service, github.com/go-chi/render
 * @refs service/models/project.go
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

// ProjectController 项目管理控制器
type ProjectController struct {
	db *gorm.DB
}

// NewProjectController 创建项目控制器实例
func NewProjectController() *ProjectController {
	return &ProjectController{db: service.DB}
}

// CreateProject 创建项目
// @Summary 创建项目
// @Description 创建新的监控项目
// @Tags 项目管理
// @Accept json
// @Produce json
// @Param project body models.Project true "项目信息"
// @Success 200 {object} APIResponse{data=models.Project}
// @Failure 400 {object} APIResponse
// @Router /projects [post]
func (c *ProjectController) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req models.Project
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, BadRequestResponse(fmt.Sprintf("请求参数格式错误:%s", err.Error()), nil))
		return
	}

	if req.Name == "" {
		render.JSON(w, r, BadRequestResponse("项目名称不能为空", nil))
		return
	}

	if err := c.db.Create(&req).Error; err != nil {
		render.JSON(w, r, BadRequestResponse(err.Error(), nil))
		return
	}

	render.JSON(w, r, SuccessResponse("创建成功", &req))
}

// GetProjects 获取项目列表
// @Summary 获取项目列表
// @Description 获取所有项目及其服务
// @Tags 项目管理
// @Produce json
// @Success 200 {object} APIResponse{data=[]models.Project}
// @Router /projects [get]
func (c *ProjectController) GetProjects(w http.ResponseWriter, r *http.Request) {
	var projects []models.Project
	if err := c.db.Preload("Services").Order("created_at ASC").Find(&projects).Error; err != nil {
		render.JSON(w, r, InternalErrorResponse("获取项目列表失败", nil))
		return
	}

	render.JSON(w, r, SuccessResponse("查询成功", projects))
}

// GetProject 获取项目详情
// @Summary 获取项目详情
// @Description 根据ID获取项目详细信息
// @Tags 项目管理
// @Produce json
// @Param id path string true "项目ID"
// @Success 200 {object} APIResponse{data=models.Project}
// @Failure 404 {object} APIResponse
// @Router /projects/{id} [get]
func (c *ProjectController) GetProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		render.JSON(w, r, BadRequestResponse("ID参数不能为空", nil))
		return
	}

	var project models.Project
	if err := c.db.Preload("Services").First(&project, "id = ?", id).Error; err != nil {
		render.JSON(w, r, NotFoundResponse("项目不存在", nil))
		return
	}

	render.JSON(w, r, SuccessResponse("查询成功", &project))
}

// UpdateProject 更新项目
// @Summary 更新项目
// @Description 更新项目信息
// @Tags 项目管理
// @Accept json
// @Produce json
// @Param id path string true "项目ID"
// @Param project body models.Project true "更新信息"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Router /projects/{id} [put]
func (c *ProjectController) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		render.JSON(w, r, BadRequestResponse("ID参数不能为空", nil))
		return
	}

	var existing models.Project
	if err := c.db.First(&existing, "id = ?", id).Error; err != nil {
		render.JSON(w, r, NotFoundResponse("项目不存在", nil))
		return
	}

	var req models.Project
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", nil))
		return
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.OwnerEmail != "" {
		updates["owner_email"] = req.OwnerEmail
	}

	if err := c.db.Model(&existing).Updates(updates).Error; err != nil {
		render.JSON(w, r, BadRequestResponse(err.Error(), nil))
		return
	}

	render.JSON(w, r, SuccessResponse("更新成功", nil))
}

// DeleteProject 删除项目
// @Summary 删除项目
// @Description 删除项目及其关联服务
// @Tags 项目管理
// @Produce json
// @Param id path string true "项目ID"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Router /projects/{id} [delete]
func (c *ProjectController) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		render.JSON(w, r, BadRequestResponse("ID参数不能为空", nil))
		return
	}

	if err := c.db.Delete(&models.Project{}, "id = ?", id).Error; err != nil {
		render.JSON(w, r, BadRequestResponse(err.Error(), nil))
		return
	}

	render.JSON(w, r, SuccessResponse("删除成功", nil))
}
