package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMovementType_FixedDirection(t *testing.T) {
	tests := []struct {
		movementType MovementType
		direction    MovementDirection
		fixed        bool
	}{
		{MovementStockIn, DirectionIn, true},
		{MovementAdjustmentIn, DirectionIn, true},
		{MovementTransferIn, DirectionIn, true},
		{MovementReturn, DirectionIn, true},
		{MovementStockOut, DirectionOut, true},
		{MovementAdjustmentOut, DirectionOut, true},
		{MovementTransferOut, DirectionOut, true},
		{MovementSale, DirectionOut, true},
		{MovementWaste, DirectionOut, true},
		{MovementDamage, DirectionOut, true},
		{MovementCountVariance, "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.movementType), func(t *testing.T) {
			d, ok := tt.movementType.FixedDirection()
			assert.Equal(t, tt.fixed, ok)
			if tt.fixed {
				assert.Equal(t, tt.direction, d)
			}
			assert.True(t, tt.movementType.IsValid())
		})
	}

	assert.False(t, MovementType("borrow").IsValid())
}

func TestMovement_SignedQuantity(t *testing.T) {
	in := Movement{Direction: DirectionIn, Quantity: 5}
	out := Movement{Direction: DirectionOut, Quantity: 5}
	assert.Equal(t, int64(5), in.SignedQuantity())
	assert.Equal(t, int64(-5), out.SignedQuantity())
}

func TestMovement_SamePayload(t *testing.T) {
	base := func() Movement {
		cost := int64(250)
		return Movement{
			ProductID:    "cola",
			LocationID:   DefaultLocationID,
			MovementType: MovementStockIn,
			Direction:    DirectionIn,
			Quantity:     10,
			UnitCost:     &cost,
		}
	}

	a, b := base(), base()
	assert.True(t, a.SamePayload(&b))

	b = base()
	b.Quantity = 11
	assert.False(t, a.SamePayload(&b))

	b = base()
	b.UnitCost = nil
	assert.False(t, a.SamePayload(&b))

	b = base()
	batchID := "lot-1"
	b.BatchID = &batchID
	assert.False(t, a.SamePayload(&b))
}

func TestProjectedInventoryItem_Apply(t *testing.T) {
	item := ProjectedInventoryItem{ProductID: "cola", LocationID: DefaultLocationID}

	item.Apply(&Movement{Direction: DirectionIn, Quantity: 10, Seq: 1, CreatedAt: time.Now()})
	item.Apply(&Movement{Direction: DirectionOut, Quantity: 4, Seq: 2, CreatedAt: time.Now()})

	assert.Equal(t, int64(6), item.QuantityOnHand)
	assert.Equal(t, int64(2), item.LastSeq)
	assert.NotNil(t, item.LastMovementAt)
}

func TestProjectedInventoryItem_AvailableClamped(t *testing.T) {
	item := ProjectedInventoryItem{QuantityOnHand: 3, QuantityReserved: 5}
	assert.Equal(t, int64(0), item.Available())

	item.QuantityReserved = 1
	assert.Equal(t, int64(2), item.Available())
}

func TestBatch_Expiry(t *testing.T) {
	now := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)

	noExpiry := Batch{}
	assert.False(t, noExpiry.IsExpired(now))
	_, ok := noExpiry.DaysUntilExpiry(now)
	assert.False(t, ok)

	future := now.Add(5 * 24 * time.Hour)
	fresh := Batch{ExpiryDate: &future}
	assert.False(t, fresh.IsExpired(now))
	days, ok := fresh.DaysUntilExpiry(now)
	assert.True(t, ok)
	assert.Equal(t, 5, days)

	past := now.Add(-24 * time.Hour)
	expired := Batch{ExpiryDate: &past}
	assert.True(t, expired.IsExpired(now))
	days, _ = expired.DaysUntilExpiry(now)
	assert.Equal(t, -1, days)
}
