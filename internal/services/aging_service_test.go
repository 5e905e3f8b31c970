package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos_ledger_backend/internal/models"
	"pos_ledger_backend/internal/services"
)

// =============================================================================
// BUCKET CLASSIFICATION
// =============================================================================

func agingBatch(id string, qty int64, expiry *time.Time) models.Batch {
	return models.Batch{
		ID:             id,
		ProductID:      "milk",
		LocationID:     models.DefaultLocationID,
		BatchNumber:    id,
		ExpiryDate:     expiry,
		UnitCost:       200,
		QuantityOnHand: qty,
	}
}

func TestClassify_EveryBatchInExactlyOneBucket(t *testing.T) {
	f := newFixture(t)
	asOf := time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)
	at := func(days int) *time.Time {
		e := asOf.Add(time.Duration(days) * 24 * time.Hour)
		return &e
	}

	batches := []models.Batch{
		agingBatch("no-expiry", 10, nil),        // fresh
		agingBatch("far-out", 20, at(40)),       // fresh
		agingBatch("a-month", 30, at(20)),       // aging
		agingBatch("this-week", 40, at(5)),      // old
		agingBatch("yesterday", 50, at(-1)),     // expired
		agingBatch("empty", 0, at(-1)),          // no stock, excluded
	}

	report := f.aging.Classify(batches, asOf)

	classified := 0
	for _, entries := range report.Buckets {
		classified += len(entries)
	}
	assert.Equal(t, 5, classified, "each stocked batch lands in exactly one bucket")

	assert.Len(t, report.Buckets[models.BucketFresh], 2)
	assert.Len(t, report.Buckets[models.BucketAging], 1)
	assert.Len(t, report.Buckets[models.BucketOld], 1)
	assert.Len(t, report.Buckets[models.BucketExpired], 1)

	assert.Equal(t, int64(30), report.Totals[models.BucketFresh])
	assert.Equal(t, int64(30), report.Totals[models.BucketAging])
	assert.Equal(t, int64(40), report.Totals[models.BucketOld])
	assert.Equal(t, int64(50), report.Totals[models.BucketExpired])
}

func TestClassify_FiveDaysOutIsOld(t *testing.T) {
	f := newFixture(t)
	asOf := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	expiry := asOf.Add(5 * 24 * time.Hour)

	report := f.aging.Classify([]models.Batch{agingBatch("b1", 10, &expiry)}, asOf)

	require.Len(t, report.Buckets[models.BucketOld], 1)
	entry := report.Buckets[models.BucketOld][0]
	require.NotNil(t, entry.DaysUntilExpiry)
	assert.Equal(t, 5, *entry.DaysUntilExpiry)
}

func TestClassify_ExpiryBoundaryIsExpired(t *testing.T) {
	// A batch expiring exactly now counts as expired, not old.
	f := newFixture(t)
	asOf := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	expiry := asOf

	report := f.aging.Classify([]models.Batch{agingBatch("b1", 10, &expiry)}, asOf)
	assert.Len(t, report.Buckets[models.BucketExpired], 1)
	assert.Empty(t, report.Buckets[models.BucketOld])
}

// =============================================================================
// REPORT OVER LIVE STOCK
// =============================================================================

func TestGetAgingReport_OnlyStockedBatches(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "milk", 350, nil, true)

	_, _, err := f.ledger.RecordMovement(recordBatchStockIn("milk", 10, 200, "LOT-1", daysFromNow(3)))
	require.NoError(t, err)
	soldOut, _, err := f.ledger.RecordMovement(recordBatchStockIn("milk", 5, 220, "LOT-2", daysFromNow(3)))
	require.NoError(t, err)

	// Empty the second batch; it disappears from the report.
	_, _, err = f.ledger.RecordMovement(services.RecordMovementRequest{
		ProductID:    "milk",
		MovementType: models.MovementSale,
		Quantity:     5,
		BatchID:      soldOut.BatchID,
	})
	require.NoError(t, err)

	report, err := f.aging.GetAgingReport()
	require.NoError(t, err)

	total := 0
	for _, entries := range report.Buckets {
		total += len(entries)
	}
	assert.Equal(t, 1, total)
	assert.Len(t, report.Buckets[models.BucketOld], 1)
}
