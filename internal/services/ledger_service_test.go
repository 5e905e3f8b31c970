package services_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos_ledger_backend/internal/models"
	"pos_ledger_backend/internal/services"
)

// =============================================================================
// MOVEMENT RECORDING
// =============================================================================

func TestRecordMovement_StockInThenSale(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)

	f.stockIn(t, "cola", 10, 250)
	f.sell(t, "cola", 4)

	assert.Equal(t, int64(6), f.onHand(t, "cola", models.DefaultLocationID))

	movements, total, err := f.ledger.GetMovementHistory(models.MovementFilters{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	// Newest first.
	assert.Equal(t, models.MovementSale, movements[0].MovementType)
	assert.Equal(t, models.MovementStockIn, movements[1].MovementType)
}

func TestRecordMovement_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.ledger.RecordMovement(services.RecordMovementRequest{
		ProductID:    "ghost",
		MovementType: models.MovementStockIn,
		Quantity:     1,
	})
	assert.ErrorIs(t, err, services.ErrProductNotFound)
}

func TestRecordMovement_CountVarianceRejected(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)

	_, _, err := f.ledger.RecordMovement(services.RecordMovementRequest{
		ProductID:    "cola",
		MovementType: models.MovementCountVariance,
		Quantity:     1,
	})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestRecordMovement_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)
	f.stockIn(t, "cola", 3, 250)

	_, _, err := f.ledger.RecordMovement(services.RecordMovementRequest{
		ProductID:    "cola",
		MovementType: models.MovementSale,
		Quantity:     5,
	})
	assert.ErrorIs(t, err, services.ErrInsufficientStock)
	assert.Equal(t, int64(3), f.onHand(t, "cola", models.DefaultLocationID))
}

func TestRecordMovement_AllowNegative(t *testing.T) {
	// A waste write-off may drive on_hand negative when explicitly allowed;
	// the quantity is recorded as-is, never clamped.
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)
	f.stockIn(t, "cola", 2, 250)

	_, _, err := f.ledger.RecordMovement(services.RecordMovementRequest{
		ProductID:     "cola",
		MovementType:  models.MovementWaste,
		Quantity:      5,
		AllowNegative: true,
	})
	require.NoError(t, err)

	item, err := f.projections.Project("cola", models.DefaultLocationID)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), item.QuantityOnHand)
	assert.True(t, item.NegativeStock)
	assert.Equal(t, int64(0), item.Available(), "available is clamped for display")
}

// =============================================================================
// IDEMPOTENCY
// =============================================================================

func TestRecordMovement_IdempotentReplay(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)

	req := services.RecordMovementRequest{
		ProductID:      "cola",
		MovementType:   models.MovementStockIn,
		Quantity:       10,
		UnitCost:       i64(250),
		IdempotencyKey: strPtr("po-1001"),
	}
	first, replayed, err := f.ledger.RecordMovement(req)
	require.NoError(t, err)
	require.False(t, replayed)

	second, replayed, err := f.ledger.RecordMovement(req)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)

	// The replay must not move stock twice.
	assert.Equal(t, int64(10), f.onHand(t, "cola", models.DefaultLocationID))
}

func TestRecordMovement_IdempotencyKeyCollision(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)

	req := services.RecordMovementRequest{
		ProductID:      "cola",
		MovementType:   models.MovementStockIn,
		Quantity:       10,
		UnitCost:       i64(250),
		IdempotencyKey: strPtr("po-1001"),
	}
	_, _, err := f.ledger.RecordMovement(req)
	require.NoError(t, err)

	req.Quantity = 20
	_, _, err = f.ledger.RecordMovement(req)
	assert.ErrorIs(t, err, services.ErrIdempotencyConflict)
}

// =============================================================================
// TRANSFERS
// =============================================================================

func TestRecordTransfer_MovesStockBetweenLocations(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)
	f.seedLocation(t, "backroom")
	f.stockIn(t, "cola", 10, 250)

	pair, replayed, err := f.ledger.RecordTransfer(services.RecordTransferRequest{
		ProductID:      "cola",
		FromLocationID: models.DefaultLocationID,
		ToLocationID:   "backroom",
		Quantity:       4,
	})
	require.NoError(t, err)
	require.False(t, replayed)
	require.Len(t, pair, 2)

	assert.Equal(t, models.MovementTransferOut, pair[0].MovementType)
	assert.Equal(t, models.MovementTransferIn, pair[1].MovementType)
	require.NotNil(t, pair[0].ReferenceID)
	require.NotNil(t, pair[1].ReferenceID)
	assert.Equal(t, *pair[0].ReferenceID, *pair[1].ReferenceID)

	// Cost carries over from the source's latest inbound movement.
	require.NotNil(t, pair[1].UnitCost)
	assert.Equal(t, int64(250), *pair[1].UnitCost)

	assert.Equal(t, int64(6), f.onHand(t, "cola", models.DefaultLocationID))
	assert.Equal(t, int64(4), f.onHand(t, "cola", "backroom"))
}

func TestRecordTransfer_InsufficientAtSource(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)
	f.seedLocation(t, "backroom")
	f.stockIn(t, "cola", 2, 250)

	_, _, err := f.ledger.RecordTransfer(services.RecordTransferRequest{
		ProductID:      "cola",
		FromLocationID: models.DefaultLocationID,
		ToLocationID:   "backroom",
		Quantity:       5,
	})
	assert.ErrorIs(t, err, services.ErrInsufficientStock)
	assert.Equal(t, int64(2), f.onHand(t, "cola", models.DefaultLocationID))
	assert.Equal(t, int64(0), f.onHand(t, "cola", "backroom"))
}

func TestRecordTransfer_IdempotentReplay(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)
	f.seedLocation(t, "backroom")
	f.stockIn(t, "cola", 10, 250)

	req := services.RecordTransferRequest{
		ProductID:      "cola",
		FromLocationID: models.DefaultLocationID,
		ToLocationID:   "backroom",
		Quantity:       4,
		IdempotencyKey: strPtr("tr-1"),
	}
	first, _, err := f.ledger.RecordTransfer(req)
	require.NoError(t, err)

	second, replayed, err := f.ledger.RecordTransfer(req)
	require.NoError(t, err)
	assert.True(t, replayed)
	require.Len(t, second, 2)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[1].ID, second[1].ID)

	assert.Equal(t, int64(6), f.onHand(t, "cola", models.DefaultLocationID))
	assert.Equal(t, int64(4), f.onHand(t, "cola", "backroom"))
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestRecordMovement_ConcurrentSalesNeverOversell(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)
	f.stockIn(t, "cola", 10, 250)

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.ledger.RecordMovement(services.RecordMovementRequest{
				ProductID:    "cola",
				MovementType: models.MovementSale,
				Quantity:     1,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, rejected := 0, 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, services.ErrInsufficientStock)
			rejected++
		}
	}
	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 10, rejected)
	assert.Equal(t, int64(0), f.onHand(t, "cola", models.DefaultLocationID))
}

func TestRecordMovement_KeepsConcurrentReservation(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)
	f.stockIn(t, "cola", 10, 250)

	// A reservation that lands between the movement's projection read and
	// its append must survive the checkpoint write.
	var once sync.Once
	hooked := &hookedProjections{
		ProjectionService: f.projections,
		onProject: func(productID, locationID string) {
			once.Do(func() {
				_, err := f.store.ProjectionRepo().AdjustReserved(productID, locationID, 5)
				require.NoError(t, err)
			})
		},
	}
	ledger := services.NewLedgerService(
		f.store.MovementRepo(), f.store.BatchRepo(), f.store.CatalogRepo(), hooked, nil,
	)

	_, _, err := ledger.RecordMovement(recordSale("cola", 2))
	require.NoError(t, err)

	item, err := f.projections.Project("cola", models.DefaultLocationID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), item.QuantityOnHand)
	assert.Equal(t, int64(5), item.QuantityReserved)
	assert.Equal(t, int64(3), item.QuantityAvailable)
}
