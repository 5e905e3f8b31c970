package models

import "github.com/shopspring/decimal"

// ValuationScope selects what a valuation run covers.
type ValuationScope string

const (
	ScopeAll      ValuationScope = "all"
	ScopeProduct  ValuationScope = "product"
	ScopeLocation ValuationScope = "location"
)

// ValuationItem is the valued stock of one (product, location) or
// (product, location, batch) line. Monetary fields are minor units (cents).
type ValuationItem struct {
	ProductID      string  `json:"product_id"`
	ProductName    string  `json:"product_name"`
	ProductSKU     *string `json:"product_sku,omitempty"`
	LocationID     string  `json:"location_id"`
	BatchID        *string `json:"batch_id,omitempty"`
	QuantityOnHand int64   `json:"quantity_on_hand"`
	UnitCost       int64   `json:"unit_cost"`
	SellingPrice   int64   `json:"selling_price"`
	StockValue     int64   `json:"stock_value"`  // quantity_on_hand * unit_cost
	RetailValue    int64   `json:"retail_value"` // quantity_on_hand * selling_price
}

// Valuation aggregates the monetary worth of on-hand stock. All sums are
// minor units; the margin percentage is computed once at the end and never
// accumulated.
type Valuation struct {
	Scope            ValuationScope  `json:"scope"`
	ProductID        *string         `json:"product_id,omitempty"`
	LocationID       *string         `json:"location_id,omitempty"`
	TotalValue       int64           `json:"total_value"`
	TotalRetailValue int64           `json:"total_retail_value"`
	PotentialProfit  int64           `json:"potential_profit"`
	ProfitMarginPct  decimal.Decimal `json:"profit_margin_pct"`
	ItemCount        int             `json:"item_count"`
	OutOfStockCount  int             `json:"out_of_stock_count"`
	LowStockCount    int             `json:"low_stock_count"`
	Items            []ValuationItem `json:"items"`
}

// AgingBucket labels a batch by remaining shelf life.
type AgingBucket string

const (
	BucketFresh   AgingBucket = "fresh"
	BucketAging   AgingBucket = "aging"
	BucketOld     AgingBucket = "old"
	BucketExpired AgingBucket = "expired"
)

// AgingEntry is one batch classified into exactly one bucket.
type AgingEntry struct {
	Batch           Batch       `json:"batch"`
	Bucket          AgingBucket `json:"bucket"`
	DaysUntilExpiry *int        `json:"days_until_expiry,omitempty"`
}

// AgingReport buckets all batches with stock on hand by expiry proximity.
type AgingReport struct {
	AsOf    string                      `json:"as_of"`
	Buckets map[AgingBucket][]AgingEntry `json:"buckets"`
	Totals  map[AgingBucket]int64        `json:"totals"` // units on hand per bucket
}
