package router

import (
	"pos_ledger_backend/internal/handlers"
	"pos_ledger_backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupPublicAuthRoutes sets up the unauthenticated auth routes.
func SetupPublicAuthRoutes(authGroup *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh-token", authHandler.Refresh)
}

// SetupAuthenticatedAuthRoutes sets up the auth routes behind the JWT check.
func SetupAuthenticatedAuthRoutes(authGroup *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	authGroup.GET("/me", authHandler.GetProfile)
	authGroup.POST("/register", middleware.RoleAuthMiddleware("Admin"), authHandler.Register)
}

// SetupCatalogRoutes sets up the thin product/location catalog routes.
func SetupCatalogRoutes(authenticatedGroup *gin.RouterGroup, catalogHandler *handlers.CatalogHandler) {
	productRoutes := authenticatedGroup.Group("/products")
	productRoutes.Use(middleware.RoleAuthMiddleware("Admin", "Staff"))
	{
		productRoutes.POST("", middleware.RoleAuthMiddleware("Admin"), catalogHandler.CreateProduct)
		productRoutes.GET("", catalogHandler.GetProducts)
		productRoutes.GET("/:id", catalogHandler.GetProduct)
	}

	locationRoutes := authenticatedGroup.Group("/locations")
	locationRoutes.Use(middleware.RoleAuthMiddleware("Admin", "Staff"))
	{
		locationRoutes.POST("", middleware.RoleAuthMiddleware("Admin"), catalogHandler.CreateLocation)
		locationRoutes.GET("", catalogHandler.GetLocations)
	}
}

// SetupMovementRoutes sets up the stock ledger routes.
func SetupMovementRoutes(authenticatedGroup *gin.RouterGroup, movementHandler *handlers.MovementHandler) {
	movementRoutes := authenticatedGroup.Group("/movements")
	movementRoutes.Use(middleware.RoleAuthMiddleware("Admin", "Staff"))
	{
		movementRoutes.POST("", movementHandler.RecordMovement)
		movementRoutes.POST("/transfer", movementHandler.RecordTransfer)
		movementRoutes.GET("", movementHandler.GetMovements)
		movementRoutes.GET("/:id", movementHandler.GetMovement)
	}
}

// SetupInventoryRoutes sets up the projected inventory routes.
func SetupInventoryRoutes(authenticatedGroup *gin.RouterGroup, inventoryHandler *handlers.InventoryHandler) {
	inventoryRoutes := authenticatedGroup.Group("/inventory")
	inventoryRoutes.Use(middleware.RoleAuthMiddleware("Admin", "Staff"))
	{
		inventoryRoutes.GET("", inventoryHandler.GetInventory)
		inventoryRoutes.GET("/:product_id", inventoryHandler.GetInventoryItem)
		inventoryRoutes.POST("/:product_id/reserved", inventoryHandler.AdjustReserved)
		inventoryRoutes.POST("/:product_id/rebuild", middleware.RoleAuthMiddleware("Admin"), inventoryHandler.RebuildProjection)
	}
}

// SetupReportRoutes sets up the valuation and aging report routes.
func SetupReportRoutes(authenticatedGroup *gin.RouterGroup, reportHandler *handlers.ReportHandler) {
	reportRoutes := authenticatedGroup.Group("/reports")
	reportRoutes.Use(middleware.RoleAuthMiddleware("Admin", "Staff"))
	{
		reportRoutes.GET("/valuation", reportHandler.GetValuation)
		reportRoutes.GET("/aging", reportHandler.GetAgingReport)
	}
}

// SetupStockCountRoutes sets up the physical count routes.
func SetupStockCountRoutes(authenticatedGroup *gin.RouterGroup, stockCountHandler *handlers.StockCountHandler) {
	stockCountRoutes := authenticatedGroup.Group("/stock-counts")
	stockCountRoutes.Use(middleware.RoleAuthMiddleware("Admin", "Staff"))
	{
		stockCountRoutes.POST("", stockCountHandler.CreateStockCount)
		stockCountRoutes.GET("", stockCountHandler.GetStockCounts)
		stockCountRoutes.GET("/:id", stockCountHandler.GetStockCount)
		stockCountRoutes.POST("/:id/complete", stockCountHandler.CompleteStockCount)
	}
}

// SetupAlertRoutes sets up the inventory alert routes.
func SetupAlertRoutes(authenticatedGroup *gin.RouterGroup, alertHandler *handlers.AlertHandler) {
	alertRoutes := authenticatedGroup.Group("/alerts")
	alertRoutes.Use(middleware.RoleAuthMiddleware("Admin", "Staff"))
	{
		alertRoutes.GET("", alertHandler.GetAlerts)
		alertRoutes.POST("/evaluate", alertHandler.EvaluateAlerts)
		alertRoutes.POST("/:id/acknowledge", alertHandler.AcknowledgeAlert)
	}
}
