package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos_ledger_backend/internal/models"
)

// =============================================================================
// CHECKPOINT REPLAY
// =============================================================================

func TestProject_ZeroForUnknownKey(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)

	item, err := f.projections.Project("cola", models.DefaultLocationID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), item.QuantityOnHand)
	assert.Nil(t, item.LastMovementAt)
}

func TestProject_ReplaysTailPastStaleCheckpoint(t *testing.T) {
	// A checkpoint that lags the log must be caught up by replaying only
	// the movements past its watermark.
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)

	f.stockIn(t, "cola", 10, 250)
	stale, err := f.projections.Project("cola", models.DefaultLocationID)
	require.NoError(t, err)

	f.sell(t, "cola", 4)

	// Reinstate the older checkpoint, as if the later write had not been
	// folded in.
	require.NoError(t, f.store.ProjectionRepo().Upsert(stale))

	item, err := f.projections.Project("cola", models.DefaultLocationID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), item.QuantityOnHand)
}

func TestRebuild_AgreesWithIncrementalProjection(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)

	f.stockIn(t, "cola", 10, 250)
	f.sell(t, "cola", 3)
	f.stockIn(t, "cola", 5, 260)
	f.sell(t, "cola", 2)

	incremental := f.onHand(t, "cola", models.DefaultLocationID)

	result, err := f.projections.Rebuild("cola", models.DefaultLocationID)
	require.NoError(t, err)
	assert.Equal(t, incremental, result.Item.QuantityOnHand)
	assert.Equal(t, int64(0), result.Drift)
}

func TestRebuild_ReportsAndCorrectsDrift(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)
	f.stockIn(t, "cola", 10, 250)

	// Corrupt the checkpoint directly.
	item, err := f.store.ProjectionRepo().Get("cola", models.DefaultLocationID)
	require.NoError(t, err)
	item.QuantityOnHand += 5
	require.NoError(t, f.store.ProjectionRepo().Upsert(item))

	result, err := f.projections.Rebuild("cola", models.DefaultLocationID)
	require.NoError(t, err)
	assert.Equal(t, int64(-5), result.Drift)
	assert.Equal(t, int64(10), result.Item.QuantityOnHand)

	// The corrected checkpoint sticks.
	assert.Equal(t, int64(10), f.onHand(t, "cola", models.DefaultLocationID))
}

func TestRebuild_PreservesReservedCounter(t *testing.T) {
	// Reserved is owned by the reservation flow, not derived from
	// movements; a rebuild must not zero it.
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)
	f.stockIn(t, "cola", 10, 250)

	_, err := f.projections.AdjustReserved("cola", models.DefaultLocationID, 3)
	require.NoError(t, err)

	result, err := f.projections.Rebuild("cola", models.DefaultLocationID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Item.QuantityReserved)
	assert.Equal(t, int64(7), result.Item.Available())
}

// =============================================================================
// RESERVATIONS
// =============================================================================

func TestAdjustReserved_NeverBelowZero(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)
	f.stockIn(t, "cola", 10, 250)

	item, err := f.projections.AdjustReserved("cola", models.DefaultLocationID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), item.QuantityReserved)

	item, err = f.projections.AdjustReserved("cola", models.DefaultLocationID, -5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), item.QuantityReserved)
}

func TestAdjustReserved_ReducesAvailability(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)
	f.stockIn(t, "cola", 10, 250)

	_, err := f.projections.AdjustReserved("cola", models.DefaultLocationID, 8)
	require.NoError(t, err)

	_, _, err = f.ledger.RecordMovement(recordSale("cola", 5))
	assert.Error(t, err, "only 2 units are available once 8 are reserved")

	_, _, err = f.ledger.RecordMovement(recordSale("cola", 2))
	assert.NoError(t, err)
}

// =============================================================================
// INVENTORY LISTING
// =============================================================================

func TestGetInventory_LowStockFilter(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, i64(5), false)
	f.seedProduct(t, "chips", 300, i64(5), false)
	f.stockIn(t, "cola", 3, 250)
	f.stockIn(t, "chips", 20, 150)

	items, total, err := f.projections.GetInventory(models.InventoryFilters{LowStock: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "cola", items[0].ProductID)
}

func TestGetInventory_ExpiringSoonFilter(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "milk", 300, nil, true)
	f.seedProduct(t, "cola", 400, nil, false)

	_, _, err := f.ledger.RecordMovement(recordBatchStockIn("milk", 10, 200, "LOT-1", daysFromNow(3)))
	require.NoError(t, err)
	f.stockIn(t, "cola", 10, 250)

	items, total, err := f.projections.GetInventory(models.InventoryFilters{ExpiringSoon: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "milk", items[0].ProductID)
}
