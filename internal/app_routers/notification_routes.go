package approuters

import (
	"github.com/gin-gonic/gin"

	"github.com/Stevy64/Kongossa/internal/configuration"
)

func NotificationRouters(router *gin.Engine, container *configuration.Container) {
	notifRoute := router.Group("/kg/api/notifications", container.AuthMiddleware)
	{
		notifRoute.GET("", container.NotificationHandler.List)
		notifRoute.GET("/unread-count", container.NotificationHandler.UnreadCount)
		notifRoute.POST("/mark-read/:notificationId", container.NotificationHandler.MarkRead)
		notifRoute.POST("/mark-all-read", container.NotificationHandler.MarkAllRead)
	}
}
