package routes

import (
	"schoolfee/controllers"
	"schoolfee/middleware"
	"schoolfee/utils"

	"github.com/gin-gonic/gin"
)

func SetupAutomationRoutes(api *gin.RouterGroup, automationController *controllers.AutomationController, auth *middleware.AuthMiddleware) {
	automation := api.Group("/automation")
	adminOnly := auth.RequireRole(utils.RoleAdmin)
	{
		automation.GET("/rules", automationController.GetRules)
		automation.GET("/rules/:id", automationController.GetRule)
		automation.POST("/rules", adminOnly, automationController.CreateRule)
		automation.PATCH("/rules/:id/toggle", adminOnly, automationController.ToggleRule)

		automation.GET("/templates", automationController.GetTemplates)
		automation.POST("/templates", adminOnly, automationController.CreateTemplate)
		automation.POST("/templates/preview", automationController.PreviewTemplate)

		automation.POST("/run", adminOnly, automationController.RunNow)
		automation.GET("/stats", automationController.GetStats)
	}
}
