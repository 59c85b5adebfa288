package routes

import (
	"schoolfee/controllers"
	"schoolfee/interfaces"
	"schoolfee/middleware"
	"schoolfee/services"
	"schoolfee/utils"
	"schoolfee/workers"

	"github.com/gin-gonic/gin"
)

// Dependencies are the already-wired services the HTTP layer exposes.
type Dependencies struct {
	Environment     string
	CORSOrigins     []string
	JWT             *utils.JWTService
	Counters        interfaces.CounterStore
	RuleService     *services.RuleService
	DeliveryService *services.DeliveryService
	Worker          *workers.AutomationWorker
	HealthChecks    map[string]controllers.HealthCheckFunc

	TwilioAuthToken   string
	StatusCallbackURL string
}

// Controllers initialization
type Controllers struct {
	Automation *controllers.AutomationController
	Webhook    *controllers.WebhookController
	Health     *controllers.HealthController
}

// SetupRoutes initializes all application routes
func SetupRoutes(deps Dependencies) *gin.Engine {
	router := gin.New()

	controllers := initializeControllers(deps)
	authMiddleware := middleware.NewAuthMiddleware(deps.JWT)

	setupGlobalMiddleware(router, deps)
	setupPublicRoutes(router, controllers, deps)
	setupAuthenticatedRoutes(router, controllers, authMiddleware, deps)

	return router
}

func initializeControllers(deps Dependencies) *Controllers {
	return &Controllers{
		Automation: controllers.NewAutomationController(deps.RuleService, deps.Worker),
		Webhook:    controllers.NewWebhookController(deps.DeliveryService, deps.TwilioAuthToken, deps.StatusCallbackURL),
		Health:     controllers.NewHealthController(deps.HealthChecks),
	}
}

func setupGlobalMiddleware(router *gin.Engine, deps Dependencies) {
	router.Use(middleware.NewErrorHandler(deps.Environment, nil).Handle())
	router.Use(middleware.DefaultLoggerMiddleware())
	router.Use(middleware.CORSMiddleware(deps.Environment, deps.CORSOrigins))
}

// Public routes (no authentication required)
func setupPublicRoutes(router *gin.Engine, controllers *Controllers, deps Dependencies) {
	router.GET("/health", controllers.Health.HealthCheck)

	webhooks := router.Group("/webhooks")
	webhooks.Use(middleware.WebhookRateLimit(deps.Counters))
	{
		webhooks.POST("/twilio/status", controllers.Webhook.TwilioStatus)
	}
}

// Authenticated routes (requires valid JWT token)
func setupAuthenticatedRoutes(router *gin.Engine, controllers *Controllers, auth *middleware.AuthMiddleware, deps Dependencies) {
	api := router.Group("/api/v1")
	api.Use(auth.RequireAuth())
	api.Use(middleware.APIRateLimit(deps.Counters))

	SetupAutomationRoutes(api, controllers.Automation, auth)
}
