package api

import (
	"github.com/labstack/echo/v4"

	"zoho-crm-pulse/internal/transport/middleware"
)

// SetupRoutes настраивает маршруты API
func SetupRoutes(e *echo.Group, h *Handler, auth *middleware.OperatorAuth) {
	e.GET("/health", h.Health)

	// Сводки и аналитика
	ai := e.Group("/ai")
	ai.GET("/daily-summary", h.DailySummary)
	ai.GET("/analytics", h.Analytics)
	ai.POST("/whatsapp/webhook", h.WhatsAppWebhook)

	// Ручной запуск требует оператора
	ai.POST("/trigger", h.Trigger, auth.RequireOperator)

	// Данные дашборда
	e.GET("/dashboard/data", h.DashboardData)
}
