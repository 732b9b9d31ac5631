/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs api/controllers
 */

package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"sentinel-service/api/controllers"
)

// InitRoute 初始化所有API路由
func InitRoute(r *chi.Mux) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 健康检查
	healthController := controllers.NewHealthController()
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// SSE事件订阅
	eventController := controllers.NewEventController()
	r.Get("/sse/{user_name}", eventController.HandleSSE)

	// 项目管理
	r.Route("/projects", func(r chi.Router) {
		projectController := controllers.NewProjectController()
		r.Post("/", projectController.CreateProject)
		r.Get("/", projectController.GetProjects)
		r.Get("/{id}", projectController.GetProject)
		r.Put("/{id}", projectController.UpdateProject)
		r.Delete("/{id}", projectController.DeleteProject)
	})

	// 服务管理
	r.Route("/services", func(r chi.Router) {
		serviceController := controllers.NewServiceController()
		r.Post("/", serviceController.CreateService)
		r.Get("/", serviceController.GetServices)
		r.Get("/{id}", serviceController.GetService)
		r.Put("/{id}", serviceController.UpdateService)
		r.Delete("/{id}", serviceController.DeleteService)
		r.Get("/{id}/health-logs", serviceController.GetServiceHealthLogs)
	})

	// 告警规则管理
	r.Route("/alert-rules", func(r chi.Router) {
		alertRuleController := controllers.NewAlertRuleController()
		r.Post("/", alertRuleController.CreateAlertRule)
		r.Get("/", alertRuleController.GetAlertRules)
		r.Get("/{id}", alertRuleController.GetAlertRule)
		r.Put("/{id}", alertRuleController.UpdateAlertRule)
		r.Delete("/{id}", alertRuleController.DeleteAlertRule)
	})

	// 监控数据
	r.Route("/monitoring", func(r chi.Router) {
		monitoringController := controllers.NewMonitoringController()

		// 状态总览
		r.Get("/dashboard", monitoringController.GetDashboard)

		// 事件管理
		r.Route("/incidents", func(r chi.Router) {
			r.Get("/", monitoringController.GetIncidents)
			r.Get("/{id}", monitoringController.GetIncident)
		})

		// 可靠性评分
		r.Route("/reliability", func(r chi.Router) {
			r.Get("/", monitoringController.GetReliabilityScores)
			r.Get("/{service_id}", monitoringController.GetServiceReliability)
		})

		// 告警日志
		r.Get("/alert-logs", monitoringController.GetAlertLogs)
	})

	// 调试接口
	r.Route("/debug", func(r chi.Router) {
		monitoringController := controllers.NewMonitoringController()
		r.Post("/health-check", monitoringController.TriggerHealthCheck)
		r.Post("/reliability", monitoringController.TriggerReliabilityCalculation)
		r.Post("/test-alert", monitoringController.TriggerTestAlert)
	})
}
