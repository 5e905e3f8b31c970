package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pos_ledger_backend/internal/models"
	"pos_ledger_backend/internal/repositories/memory"
	"pos_ledger_backend/internal/services"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testExpiryWarningDays = 7

// fixture wires the full service graph over the in-memory store.
type fixture struct {
	store       *memory.Store
	ledger      services.LedgerService
	projections services.ProjectionService
	alerts      services.AlertService
	valuation   services.ValuationService
	aging       services.AgingService
	counts      services.StockCountService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()

	projections := services.NewProjectionService(
		store.MovementRepo(), store.ProjectionRepo(), store.BatchRepo(), store.CatalogRepo(),
		testExpiryWarningDays,
	)
	alerts := services.NewAlertService(
		store.AlertRepo(), store.ProjectionRepo(), store.BatchRepo(), store.CatalogRepo(),
		testExpiryWarningDays,
	)
	return &fixture{
		store:       store,
		ledger:      services.NewLedgerService(store.MovementRepo(), store.BatchRepo(), store.CatalogRepo(), projections, alerts),
		projections: projections,
		alerts:      alerts,
		valuation:   services.NewValuationService(store.MovementRepo(), store.ProjectionRepo(), store.BatchRepo(), store.CatalogRepo()),
		aging:       services.NewAgingService(store.BatchRepo(), services.AgingConfig{AgingWindowDays: 30, OldWindowDays: 7}),
		counts:      services.NewStockCountService(store.StockCountRepo(), store.MovementRepo(), store.BatchRepo(), store.CatalogRepo(), projections, alerts),
	}
}

func (f *fixture) seedProduct(t *testing.T, id string, sellingPrice int64, minStock *int64, batchTracked bool) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:            id,
		Name:          "Product " + id,
		SellingPrice:  sellingPrice,
		MinStockLevel: minStock,
		BatchTracked:  batchTracked,
		IsActive:      true,
	}
	require.NoError(t, f.store.CatalogRepo().CreateProduct(product))
	return product
}

func (f *fixture) seedLocation(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.store.CatalogRepo().CreateLocation(&models.Location{ID: id, Name: "Location " + id}))
}

func (f *fixture) stockIn(t *testing.T, productID string, qty, unitCost int64) *models.Movement {
	t.Helper()
	movement, replayed, err := f.ledger.RecordMovement(services.RecordMovementRequest{
		ProductID:    productID,
		MovementType: models.MovementStockIn,
		Quantity:     qty,
		UnitCost:     &unitCost,
	})
	require.NoError(t, err)
	require.False(t, replayed)
	return movement
}

func (f *fixture) sell(t *testing.T, productID string, qty int64) *models.Movement {
	t.Helper()
	movement, replayed, err := f.ledger.RecordMovement(services.RecordMovementRequest{
		ProductID:    productID,
		MovementType: models.MovementSale,
		Quantity:     qty,
	})
	require.NoError(t, err)
	require.False(t, replayed)
	return movement
}

func (f *fixture) onHand(t *testing.T, productID, locationID string) int64 {
	t.Helper()
	item, err := f.projections.Project(productID, locationID)
	require.NoError(t, err)
	return item.QuantityOnHand
}

func recordSale(productID string, qty int64) services.RecordMovementRequest {
	return services.RecordMovementRequest{
		ProductID:    productID,
		MovementType: models.MovementSale,
		Quantity:     qty,
	}
}

func recordBatchStockIn(productID string, qty, unitCost int64, batchNumber string, expiry *time.Time) services.RecordMovementRequest {
	return services.RecordMovementRequest{
		ProductID:    productID,
		MovementType: models.MovementStockIn,
		Quantity:     qty,
		UnitCost:     &unitCost,
		BatchNumber:  &batchNumber,
		ExpiryDate:   expiry,
	}
}

// hookedProjections wraps a ProjectionService with an after-read callback,
// used to stage a write inside another writer's read-then-append window.
type hookedProjections struct {
	services.ProjectionService
	onProject func(productID, locationID string)
}

func (h *hookedProjections) Project(productID, locationID string) (*models.ProjectedInventoryItem, error) {
	item, err := h.ProjectionService.Project(productID, locationID)
	if err == nil && h.onProject != nil {
		h.onProject(productID, locationID)
	}
	return item, err
}

func i64(v int64) *int64 { return &v }

func strPtr(s string) *string { return &s }

func daysFromNow(days int) *time.Time {
	t := time.Now().Add(time.Duration(days) * 24 * time.Hour)
	return &t
}
