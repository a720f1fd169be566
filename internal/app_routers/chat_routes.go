package approuters

import (
	"github.com/gin-gonic/gin"

	"github.com/Stevy64/Kongossa/internal/configuration"
)

func ChatRouters(router *gin.Engine, container *configuration.Container) {
	chatRoute := router.Group("/kg/api/chat", container.AuthMiddleware)
	{
		chatRoute.POST("/start/:userId", container.ChatHandler.StartConversation)
		chatRoute.GET("/conversations", container.ChatHandler.Sidebar)
		chatRoute.POST("/conversations/:conversationId/messages", container.ChatHandler.SendMessage)
		chatRoute.GET("/conversations/:conversationId/messages", container.ChatHandler.History)
		chatRoute.GET("/conversations/:conversationId/messages/new", container.ChatHandler.NewMessages)
		chatRoute.POST("/conversations/:conversationId/open", container.ChatHandler.OpenConversation)
		chatRoute.POST("/messages/:messageId/read", container.ChatHandler.MarkMessageRead)
	}
}
