package models

import "time"

// Product is the catalog collaborator's view of a sellable item. The ledger
// only reads from it: existence checks, selling price, and alert thresholds.
type Product struct {
	ID                string    `json:"id" db:"id"`
	SKU               *string   `json:"sku,omitempty" db:"sku"`
	Name              string    `json:"name" db:"name" binding:"required"`
	SellingPrice      int64     `json:"selling_price" db:"selling_price"` // minor units (cents)
	MinStockLevel     *int64    `json:"min_stock_level,omitempty" db:"min_stock_level"`
	ExpiryWarningDays *int      `json:"expiry_warning_days,omitempty" db:"expiry_warning_days"`
	BatchTracked      bool      `json:"batch_tracked" db:"batch_tracked"`
	IsActive          bool      `json:"is_active" db:"is_active"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// Location is a physical or logical place stock can sit.
type Location struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name" binding:"required"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
