package approuters

import (
	"github.com/gin-gonic/gin"

	"github.com/Stevy64/Kongossa/internal/configuration"
)

func GroupRouters(router *gin.Engine, container *configuration.Container) {
	groupRoute := router.Group("/kg/api/groups", container.AuthMiddleware)
	{
		groupRoute.POST("/:groupId/messages", container.GroupHandler.PostMessage)
		groupRoute.GET("/:groupId/messages", container.GroupHandler.ListMessages)
		groupRoute.POST("/:groupId/requests", container.GroupHandler.CreateRequest)
	}

	requestRoute := router.Group("/kg/api/group-requests", container.AuthMiddleware)
	{
		requestRoute.POST("/:requestId/resolve", container.GroupHandler.ResolveRequest)
	}
}
