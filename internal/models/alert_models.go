package models

import "time"

// AlertType classifies inventory alerts.
type AlertType string

const (
	AlertLowStock     AlertType = "low_stock"
	AlertOutOfStock   AlertType = "out_of_stock"
	AlertExpiringSoon AlertType = "expiring_soon"
	AlertExpired      AlertType = "expired"
)

// InventoryAlert records a threshold breach for a product. An open,
// unacknowledged alert of the same type is never duplicated; once
// acknowledged, a recurring breach creates a fresh alert.
type InventoryAlert struct {
	ID             string     `json:"id" db:"id"`
	ProductID      string     `json:"product_id" db:"product_id"`
	BatchID        *string    `json:"batch_id,omitempty" db:"batch_id"`
	AlertType      AlertType  `json:"alert_type" db:"alert_type"`
	ThresholdValue int64      `json:"threshold_value" db:"threshold_value"`
	CurrentValue   int64      `json:"current_value" db:"current_value"`
	IsAcknowledged bool       `json:"is_acknowledged" db:"is_acknowledged"`
	AcknowledgedBy *int64     `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`

	ProductName *string `json:"product_name,omitempty"`
	ProductSKU  *string `json:"product_sku,omitempty"`
}

// AlertDelta is the result of one evaluator pass for a product.
type AlertDelta struct {
	Created []InventoryAlert `json:"created"`
	Cleared []InventoryAlert `json:"cleared"`
}
