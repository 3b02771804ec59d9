package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/scahts-api/internal/middleware"
	"github.com/noah-isme/scahts-api/internal/models"
	"github.com/noah-isme/scahts-api/internal/service"
)

// Handlers groups every HTTP handler mounted by RegisterRoutes.
type Handlers struct {
	Auth         *AuthHandler
	Leave        *LeaveHandler
	Notification *NotificationHandler
	Export       *ExportHandler
	Metrics      *MetricsHandler
}

// RouteDeps carries the cross-cutting collaborators of the route table.
type RouteDeps struct {
	Tokens    middleware.TokenValidator
	Audit     middleware.AuditWriter
	Logger    *zap.Logger
	APIPrefix string
}

// RegisterRoutes mounts health checks at the root and the API under the prefix.
func RegisterRoutes(r *gin.Engine, h Handlers, deps RouteDeps) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	prefix := deps.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)
	api.Use(middleware.WithResponseMeta())

	api.POST("/auth/login", h.Auth.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.Tokens))
	secured.GET("/auth/me", h.Auth.Me)

	leave := secured.Group("/leave")
	leave.POST("/apply", middleware.RequireAction(service.ActionLeaveApply), h.Leave.Apply)
	leave.GET("/my-requests", middleware.RequireAction(service.ActionLeaveListOwn), h.Leave.MyRequests)
	leave.GET("/:id", middleware.RequireRoles(models.Roles...), h.Leave.Get)
	leave.PUT("/:id/withdraw", middleware.RequireAction(service.ActionLeaveWithdraw), h.Leave.Withdraw)

	teacher := secured.Group("/teacher/leave-requests")
	teacher.GET("", middleware.RequireAction(service.ActionLeaveListTeacher), h.Leave.TeacherPending)
	teacher.PUT("/:id/action", middleware.RequireAction(service.ActionLeaveTeacherReview), h.Leave.TeacherAct)

	hod := secured.Group("/hod/leave-requests")
	hod.GET("", middleware.RequireAction(service.ActionLeaveListHOD), h.Leave.HODPending)
	hod.PUT("/:id/action", middleware.RequireAction(service.ActionLeaveHODReview), h.Leave.HODAct)

	notifications := secured.Group("/notifications")
	notifications.GET("", h.Notification.List)
	notifications.GET("/unread-count", h.Notification.UnreadCount)
	notifications.PUT("/read-all", h.Notification.MarkAllRead)
	notifications.PUT("/:id/read", h.Notification.MarkRead)

	admin := secured.Group("/admin")
	exportMiddleware := []gin.HandlerFunc{middleware.RequireAction(service.ActionLeaveExport)}
	if deps.Audit != nil {
		exportMiddleware = append(exportMiddleware, middleware.Audit(deps.Audit, models.AuditActionLeaveExport, "leave_request", deps.Logger))
	}
	admin.GET("/leave-requests/export", append(exportMiddleware, h.Export.LeaveRegister)...)
	admin.POST("/notifications/bulk", middleware.RequireAction(service.ActionNotificationBulk), h.Notification.Broadcast)
}
