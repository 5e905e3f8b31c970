package models

import "time"

// StockCountStatus is the lifecycle state of a physical count.
// draft -> completed, terminal. A re-count is a new StockCount.
type StockCountStatus string

const (
	StockCountDraft     StockCountStatus = "draft"
	StockCountCompleted StockCountStatus = "completed"
)

// StockCount is a physical inventory count used to reconcile projected
// quantities against reality. Completion is the only sanctioned way to
// correct stock outside the normal movement flow.
type StockCount struct {
	ID          string           `json:"id" db:"id"`
	LocationID  string           `json:"location_id" db:"location_id"`
	CountDate   time.Time        `json:"count_date" db:"count_date"`
	CountedBy   *int64           `json:"counted_by,omitempty" db:"counted_by"`
	Status      StockCountStatus `json:"status" db:"status"`
	Notes       *string          `json:"notes,omitempty" db:"notes"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty" db:"completed_at"`

	Items []StockCountItem `json:"items"`
}

// StockCountItem is one counted line. ExpectedQuantity and Variance are
// filled at completion time from the projector, not at submission time.
type StockCountItem struct {
	ID               string  `json:"id" db:"id"`
	StockCountID     string  `json:"stock_count_id" db:"stock_count_id"`
	ProductID        string  `json:"product_id" db:"product_id"`
	BatchID          *string `json:"batch_id,omitempty" db:"batch_id"`
	ExpectedQuantity int64   `json:"expected_quantity" db:"expected_quantity"`
	CountedQuantity  int64   `json:"counted_quantity" db:"counted_quantity"`
	Variance         int64   `json:"variance" db:"variance"` // counted - expected
	Notes            *string `json:"notes,omitempty" db:"notes"`

	ProductName *string `json:"product_name,omitempty"`
	ProductSKU  *string `json:"product_sku,omitempty"`
}
