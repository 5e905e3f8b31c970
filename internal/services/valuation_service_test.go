package services_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos_ledger_backend/internal/models"
	"pos_ledger_backend/internal/services"
)

// =============================================================================
// VALUATION
// =============================================================================

func TestValuate_LastInboundCost(t *testing.T) {
	// 100 units on hand, last received at 250 cents: stock value 25000.
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)
	f.stockIn(t, "cola", 100, 250)

	v, err := f.valuation.Valuate(models.ScopeAll, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(25000), v.TotalValue)
	assert.Equal(t, int64(40000), v.TotalRetailValue)
	assert.Equal(t, int64(15000), v.PotentialProfit)
	assert.True(t, v.ProfitMarginPct.Equal(decimal.NewFromFloat(37.5)),
		"margin = 15000/40000*100, got %s", v.ProfitMarginPct)
	assert.Equal(t, 1, v.ItemCount)
}

func TestValuate_LatestCostWinsOverEarlier(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)
	f.stockIn(t, "cola", 50, 200)
	f.stockIn(t, "cola", 50, 300)

	v, err := f.valuation.Valuate(models.ScopeAll, nil, nil)
	require.NoError(t, err)

	// 100 on hand, all valued at the most recent inbound cost.
	assert.Equal(t, int64(100*300), v.TotalValue)
}

func TestValuate_BatchStockUsesBatchCost(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "milk", 350, nil, true)

	_, _, err := f.ledger.RecordMovement(recordBatchStockIn("milk", 10, 200, "LOT-1", daysFromNow(30)))
	require.NoError(t, err)
	_, _, err = f.ledger.RecordMovement(recordBatchStockIn("milk", 5, 240, "LOT-2", daysFromNow(60)))
	require.NoError(t, err)

	v, err := f.valuation.Valuate(models.ScopeProduct, strPtr("milk"), nil)
	require.NoError(t, err)

	// One line per batch, each at its own cost.
	assert.Equal(t, 2, v.ItemCount)
	assert.Equal(t, int64(10*200+5*240), v.TotalValue)
}

func TestValuate_ScopesAreAdditive(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, nil, false)
	f.seedProduct(t, "chips", 300, nil, false)
	f.stockIn(t, "cola", 10, 250)
	f.stockIn(t, "chips", 20, 150)

	all, err := f.valuation.Valuate(models.ScopeAll, nil, nil)
	require.NoError(t, err)
	cola, err := f.valuation.Valuate(models.ScopeProduct, strPtr("cola"), nil)
	require.NoError(t, err)
	chips, err := f.valuation.Valuate(models.ScopeProduct, strPtr("chips"), nil)
	require.NoError(t, err)

	assert.Equal(t, all.TotalValue, cola.TotalValue+chips.TotalValue)
	assert.Equal(t, all.TotalRetailValue, cola.TotalRetailValue+chips.TotalRetailValue)
}

func TestValuate_OutOfStockExcludedFromValue(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "cola", 400, i64(5), false)
	f.stockIn(t, "cola", 10, 250)
	f.sell(t, "cola", 10)

	v, err := f.valuation.Valuate(models.ScopeAll, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(0), v.TotalValue)
	assert.Equal(t, 0, v.ItemCount)
	assert.Equal(t, 1, v.OutOfStockCount)
	assert.True(t, v.ProfitMarginPct.IsZero())
}

func TestValuate_ScopeValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.valuation.Valuate(models.ScopeProduct, nil, nil)
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = f.valuation.Valuate("weekly", nil, nil)
	assert.ErrorIs(t, err, services.ErrValidation)
}
