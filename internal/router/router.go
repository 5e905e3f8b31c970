package router

import (
	"database/sql"

	"pos_ledger_backend/internal/handlers"
	"pos_ledger_backend/internal/middleware"
	"pos_ledger_backend/internal/repositories"
	"pos_ledger_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// Config carries the tunable business windows into service construction.
type Config struct {
	// ExpiryWarningDays is the fallback expiring-soon window for products
	// without their own setting.
	ExpiryWarningDays int
	// AgingWindowDays and OldWindowDays set the aging report buckets.
	AgingWindowDays int
	OldWindowDays   int
}

// Setup initializes the routing for the application.
func Setup(engine *gin.Engine, db *sql.DB, cfg Config) {
	// Repositories
	authRepo := repositories.NewAuthRepository(db)
	catalogRepo := repositories.NewCatalogRepository(db)
	movementRepo := repositories.NewMovementRepository(db)
	projectionRepo := repositories.NewProjectionRepository(db)
	batchRepo := repositories.NewBatchRepository(db)
	stockCountRepo := repositories.NewStockCountRepository(db)
	alertRepo := repositories.NewAlertRepository(db)

	// Services
	authService := services.NewAuthService(authRepo)
	catalogService := services.NewCatalogService(catalogRepo)
	projectionService := services.NewProjectionService(movementRepo, projectionRepo, batchRepo, catalogRepo, cfg.ExpiryWarningDays)
	alertService := services.NewAlertService(alertRepo, projectionRepo, batchRepo, catalogRepo, cfg.ExpiryWarningDays)
	ledgerService := services.NewLedgerService(movementRepo, batchRepo, catalogRepo, projectionService, alertService)
	valuationService := services.NewValuationService(movementRepo, projectionRepo, batchRepo, catalogRepo)
	agingService := services.NewAgingService(batchRepo, services.AgingConfig{
		AgingWindowDays: cfg.AgingWindowDays,
		OldWindowDays:   cfg.OldWindowDays,
	})
	stockCountService := services.NewStockCountService(stockCountRepo, movementRepo, batchRepo, catalogRepo, projectionService, alertService)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	catalogHandler := handlers.NewCatalogHandler(catalogService)
	movementHandler := handlers.NewMovementHandler(ledgerService)
	inventoryHandler := handlers.NewInventoryHandler(projectionService)
	reportHandler := handlers.NewReportHandler(valuationService, agingService)
	stockCountHandler := handlers.NewStockCountHandler(stockCountService)
	alertHandler := handlers.NewAlertHandler(alertService)

	apiV1 := engine.Group("/api/v1")

	// Public authentication routes
	SetupPublicAuthRoutes(apiV1.Group("/auth"), authHandler)

	// Authenticated routes
	authenticated := apiV1.Group("")
	authenticated.Use(middleware.AuthMiddleware())
	{
		SetupAuthenticatedAuthRoutes(authenticated.Group("/auth"), authHandler)
		SetupCatalogRoutes(authenticated, catalogHandler)
		SetupMovementRoutes(authenticated, movementHandler)
		SetupInventoryRoutes(authenticated, inventoryHandler)
		SetupReportRoutes(authenticated, reportHandler)
		SetupStockCountRoutes(authenticated, stockCountHandler)
		SetupAlertRoutes(authenticated, alertHandler)
	}
}
