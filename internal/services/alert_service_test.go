package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos_ledger_backend/internal/models"
)

// =============================================================================
// EVALUATION LIFECYCLE
// =============================================================================

func TestEvaluate_LowStockCreatedOnce(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, i64(5), false)
	f.stockIn(t, "cola", 10, 250)

	alerts, err := f.alerts.GetAlerts(strPtr("cola"))
	require.NoError(t, err)
	assert.Empty(t, alerts, "10 on hand with threshold 5 is healthy")

	// Movement recording runs the evaluator.
	f.sell(t, "cola", 6)

	alerts, err = f.alerts.GetAlerts(strPtr("cola"))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertLowStock, alerts[0].AlertType)
	assert.Equal(t, int64(5), alerts[0].ThresholdValue)
	assert.Equal(t, int64(4), alerts[0].CurrentValue)

	// Re-evaluating with no state change duplicates nothing.
	delta, err := f.alerts.Evaluate("cola")
	require.NoError(t, err)
	assert.Empty(t, delta.Created)
	assert.Empty(t, delta.Cleared)

	alerts, err = f.alerts.GetAlerts(strPtr("cola"))
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestEvaluate_OutOfStockSupersedesLowStock(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, i64(5), false)
	f.stockIn(t, "cola", 10, 250)
	f.sell(t, "cola", 6)
	f.sell(t, "cola", 4)

	alerts, err := f.alerts.GetAlerts(strPtr("cola"))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertOutOfStock, alerts[0].AlertType)
}

func TestEvaluate_ClearsWhenConditionResolves(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, i64(5), false)
	f.stockIn(t, "cola", 10, 250)
	f.sell(t, "cola", 6)

	// Restock past the threshold; the evaluator retires the open alert.
	f.stockIn(t, "cola", 20, 250)

	alerts, err := f.alerts.GetAlerts(strPtr("cola"))
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestEvaluate_RecreatesAfterAcknowledgedRecurrence(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, i64(5), false)
	f.stockIn(t, "cola", 10, 250)
	f.sell(t, "cola", 6)

	alerts, err := f.alerts.GetAlerts(strPtr("cola"))
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	acked, err := f.alerts.Acknowledge(alerts[0].ID, 1)
	require.NoError(t, err)
	assert.True(t, acked.IsAcknowledged)
	require.NotNil(t, acked.AcknowledgedBy)
	assert.Equal(t, int64(1), *acked.AcknowledgedBy)

	open, err := f.alerts.GetAlerts(strPtr("cola"))
	require.NoError(t, err)
	assert.Empty(t, open, "acknowledged alerts leave the open list")

	// Recover, then breach again: a fresh alert appears.
	f.stockIn(t, "cola", 10, 250)
	f.sell(t, "cola", 12)

	open, err = f.alerts.GetAlerts(strPtr("cola"))
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.NotEqual(t, acked.ID, open[0].ID)
}

// =============================================================================
// EXPIRY ALERTS
// =============================================================================

func TestEvaluate_ExpiringSoonPerBatch(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "milk", 350, nil, true)

	near, _, err := f.ledger.RecordMovement(recordBatchStockIn("milk", 10, 200, "LOT-NEAR", daysFromNow(3)))
	require.NoError(t, err)
	_, _, err = f.ledger.RecordMovement(recordBatchStockIn("milk", 10, 200, "LOT-FAR", daysFromNow(60)))
	require.NoError(t, err)

	alerts, err := f.alerts.GetAlerts(strPtr("milk"))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertExpiringSoon, alerts[0].AlertType)
	require.NotNil(t, alerts[0].BatchID)
	assert.Equal(t, *near.BatchID, *alerts[0].BatchID)
}

func TestEvaluate_ExpiredBatch(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "milk", 350, nil, true)

	_, _, err := f.ledger.RecordMovement(recordBatchStockIn("milk", 10, 200, "LOT-OLD", daysFromNow(-1)))
	require.NoError(t, err)

	alerts, err := f.alerts.GetAlerts(strPtr("milk"))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertExpired, alerts[0].AlertType)
}

// =============================================================================
// ACKNOWLEDGEMENT
// =============================================================================

func TestAcknowledge_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, i64(5), false)
	f.stockIn(t, "cola", 4, 250)

	alerts, err := f.alerts.GetAlerts(strPtr("cola"))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	id := alerts[0].ID

	first, err := f.alerts.Acknowledge(id, 1)
	require.NoError(t, err)
	second, err := f.alerts.Acknowledge(id, 2)
	require.NoError(t, err)

	// The second acknowledgement changes nothing.
	require.NotNil(t, second.AcknowledgedBy)
	assert.Equal(t, *first.AcknowledgedBy, *second.AcknowledgedBy)
	assert.Equal(t, first.AcknowledgedAt.Unix(), second.AcknowledgedAt.Unix())
}
