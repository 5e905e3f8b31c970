package services_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos_ledger_backend/internal/models"
	"pos_ledger_backend/internal/services"
)

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSubmitStockCount_Draft(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)
	f.stockIn(t, "cola", 10, 250)

	count, err := f.counts.Submit(services.SubmitStockCountRequest{
		Items: []services.StockCountItemRequest{
			{ProductID: "cola", CountedQuantity: 7},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StockCountDraft, count.Status)
	require.Len(t, count.Items, 1)
	// Expectations are frozen at completion, not submission.
	assert.Equal(t, int64(0), count.Items[0].ExpectedQuantity)
	assert.Equal(t, int64(7), count.Items[0].CountedQuantity)

	// A draft moves nothing.
	assert.Equal(t, int64(10), f.onHand(t, "cola", models.DefaultLocationID))
}

func TestSubmitStockCount_Validation(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)

	_, err := f.counts.Submit(services.SubmitStockCountRequest{})
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = f.counts.Submit(services.SubmitStockCountRequest{
		Items: []services.StockCountItemRequest{
			{ProductID: "cola", CountedQuantity: -1},
		},
	})
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = f.counts.Submit(services.SubmitStockCountRequest{
		Items: []services.StockCountItemRequest{
			{ProductID: "cola", CountedQuantity: 5},
			{ProductID: "cola", CountedQuantity: 6},
		},
	})
	assert.ErrorIs(t, err, services.ErrValidation, "duplicate lines for one product")

	_, err = f.counts.Submit(services.SubmitStockCountRequest{
		Items: []services.StockCountItemRequest{
			{ProductID: "ghost", CountedQuantity: 5},
		},
	})
	assert.ErrorIs(t, err, services.ErrProductNotFound)
}

// =============================================================================
// COMPLETION
// =============================================================================

func TestCompleteStockCount_VarianceClosesGap(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)
	f.stockIn(t, "cola", 10, 250)

	count, err := f.counts.Submit(services.SubmitStockCountRequest{
		Items: []services.StockCountItemRequest{
			{ProductID: "cola", CountedQuantity: 7},
		},
	})
	require.NoError(t, err)

	completed, movements, err := f.counts.Complete(count.ID, i64(1))
	require.NoError(t, err)

	assert.Equal(t, models.StockCountCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	require.Len(t, completed.Items, 1)
	assert.Equal(t, int64(10), completed.Items[0].ExpectedQuantity)
	assert.Equal(t, int64(-3), completed.Items[0].Variance)

	require.Len(t, movements, 1)
	assert.Equal(t, models.MovementCountVariance, movements[0].MovementType)
	assert.Equal(t, models.DirectionOut, movements[0].Direction)
	assert.Equal(t, int64(3), movements[0].Quantity)
	require.NotNil(t, movements[0].ReferenceID)
	assert.Equal(t, count.ID, *movements[0].ReferenceID)

	// The projection now matches the counted reality.
	assert.Equal(t, int64(7), f.onHand(t, "cola", models.DefaultLocationID))
}

func TestCompleteStockCount_SurplusVarianceIsInbound(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)
	f.stockIn(t, "cola", 10, 250)

	count, err := f.counts.Submit(services.SubmitStockCountRequest{
		Items: []services.StockCountItemRequest{
			{ProductID: "cola", CountedQuantity: 12},
		},
	})
	require.NoError(t, err)

	_, movements, err := f.counts.Complete(count.ID, nil)
	require.NoError(t, err)

	require.Len(t, movements, 1)
	assert.Equal(t, models.DirectionIn, movements[0].Direction)
	assert.Equal(t, int64(2), movements[0].Quantity)
	// Inbound variance carries the latest known cost.
	require.NotNil(t, movements[0].UnitCost)
	assert.Equal(t, int64(250), *movements[0].UnitCost)

	assert.Equal(t, int64(12), f.onHand(t, "cola", models.DefaultLocationID))
}

func TestCompleteStockCount_NoVarianceNoMovement(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)
	f.stockIn(t, "cola", 10, 250)

	count, err := f.counts.Submit(services.SubmitStockCountRequest{
		Items: []services.StockCountItemRequest{
			{ProductID: "cola", CountedQuantity: 10},
		},
	})
	require.NoError(t, err)

	completed, movements, err := f.counts.Complete(count.ID, nil)
	require.NoError(t, err)

	assert.Empty(t, movements)
	assert.Equal(t, models.StockCountCompleted, completed.Status)
	assert.Equal(t, int64(0), completed.Items[0].Variance)
}

func TestCompleteStockCount_Terminal(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)
	f.stockIn(t, "cola", 10, 250)

	count, err := f.counts.Submit(services.SubmitStockCountRequest{
		Items: []services.StockCountItemRequest{
			{ProductID: "cola", CountedQuantity: 7},
		},
	})
	require.NoError(t, err)

	_, _, err = f.counts.Complete(count.ID, nil)
	require.NoError(t, err)

	_, _, err = f.counts.Complete(count.ID, nil)
	assert.ErrorIs(t, err, services.ErrCountAlreadyCompleted)

	// The variance was applied exactly once.
	assert.Equal(t, int64(7), f.onHand(t, "cola", models.DefaultLocationID))
}

func TestCompleteStockCount_ExpectationsReadAtCompletionTime(t *testing.T) {
	// Stock moves between submission and completion; the variance is
	// computed against the state at completion, not at submission.
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)
	f.stockIn(t, "cola", 10, 250)

	count, err := f.counts.Submit(services.SubmitStockCountRequest{
		Items: []services.StockCountItemRequest{
			{ProductID: "cola", CountedQuantity: 7},
		},
	})
	require.NoError(t, err)

	f.sell(t, "cola", 3)

	completed, movements, err := f.counts.Complete(count.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(7), completed.Items[0].ExpectedQuantity)
	assert.Equal(t, int64(0), completed.Items[0].Variance)
	assert.Empty(t, movements)
}

func TestCompleteStockCount_BatchLineReconcilesBatch(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "milk", 350, nil, true)

	inbound, _, err := f.ledger.RecordMovement(recordBatchStockIn("milk", 10, 200, "LOT-1", daysFromNow(30)))
	require.NoError(t, err)
	require.NotNil(t, inbound.BatchID)

	count, err := f.counts.Submit(services.SubmitStockCountRequest{
		Items: []services.StockCountItemRequest{
			{ProductID: "milk", BatchID: inbound.BatchID, CountedQuantity: 8},
		},
	})
	require.NoError(t, err)

	_, movements, err := f.counts.Complete(count.ID, nil)
	require.NoError(t, err)

	require.Len(t, movements, 1)
	require.NotNil(t, movements[0].BatchID)
	assert.Equal(t, *inbound.BatchID, *movements[0].BatchID)

	// Both the batch-level and product-level quantities close on 8.
	batchQty, err := f.projections.ProjectBatch(*inbound.BatchID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), batchQty)
	assert.Equal(t, int64(8), f.onHand(t, "milk", models.DefaultLocationID))
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestCompleteStockCount_SerializesWithConcurrentMovement(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "milk", 500, nil, false)
	f.stockIn(t, "milk", 100, 200)

	count, err := f.counts.Submit(services.SubmitStockCountRequest{
		Items: []services.StockCountItemRequest{
			{ProductID: "milk", CountedQuantity: 90},
		},
	})
	require.NoError(t, err)

	// A sale fired while the completion holds the key must wait for the
	// completion's checkpoint to commit, or its movement would be orphaned
	// above the checkpoint it was folded into.
	var wg sync.WaitGroup
	var saleErr error
	var once sync.Once
	hooked := &hookedProjections{
		ProjectionService: f.projections,
		onProject: func(string, string) {
			once.Do(func() {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _, saleErr = f.ledger.RecordMovement(recordSale("milk", 20))
				}()
				time.Sleep(50 * time.Millisecond)
			})
		},
	}
	counts := services.NewStockCountService(
		f.store.StockCountRepo(), f.store.MovementRepo(), f.store.BatchRepo(),
		f.store.CatalogRepo(), hooked, nil,
	)

	completed, movements, err := counts.Complete(count.ID, nil)
	require.NoError(t, err)
	wg.Wait()
	require.NoError(t, saleErr)

	require.Len(t, movements, 1)
	assert.Equal(t, models.StockCountCompleted, completed.Status)

	// 100 counted down to 90, then 20 sold. The checkpoint and a full
	// replay must agree without needing a rebuild.
	assert.Equal(t, int64(70), f.onHand(t, "milk", models.DefaultLocationID))
	rebuilt, err := f.projections.Rebuild("milk", models.DefaultLocationID)
	require.NoError(t, err)
	require.Zero(t, rebuilt.Drift)
	assert.Equal(t, int64(70), rebuilt.Item.QuantityOnHand)
}
