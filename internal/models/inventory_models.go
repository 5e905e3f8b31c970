package models

import "time"

// DefaultLocationID is used when a movement or query does not name a location.
const DefaultLocationID = "default"

// MovementType identifies the business event behind a stock movement.
type MovementType string

const (
	MovementStockIn       MovementType = "stock_in"
	MovementStockOut      MovementType = "stock_out"
	MovementAdjustmentIn  MovementType = "adjustment_in"
	MovementAdjustmentOut MovementType = "adjustment_out"
	MovementTransferIn    MovementType = "transfer_in"
	MovementTransferOut   MovementType = "transfer_out"
	MovementSale          MovementType = "sale"
	MovementReturn        MovementType = "return"
	MovementWaste         MovementType = "waste"
	MovementDamage        MovementType = "damage"
	MovementCountVariance MovementType = "count_variance"
)

// MovementDirection is the logical sign of a movement's quantity.
type MovementDirection string

const (
	DirectionIn  MovementDirection = "in"
	DirectionOut MovementDirection = "out"
)

// movementDirections maps each movement type to its fixed direction.
// MovementCountVariance is absent: its direction follows the variance sign
// and is set explicitly when the count is completed.
var movementDirections = map[MovementType]MovementDirection{
	MovementStockIn:       DirectionIn,
	MovementAdjustmentIn:  DirectionIn,
	MovementTransferIn:    DirectionIn,
	MovementReturn:        DirectionIn,
	MovementStockOut:      DirectionOut,
	MovementAdjustmentOut: DirectionOut,
	MovementTransferOut:   DirectionOut,
	MovementSale:          DirectionOut,
	MovementWaste:         DirectionOut,
	MovementDamage:        DirectionOut,
}

// IsValid reports whether t is a recognized movement type.
func (t MovementType) IsValid() bool {
	if t == MovementCountVariance {
		return true
	}
	_, ok := movementDirections[t]
	return ok
}

// FixedDirection returns the direction implied by the type, if any.
// count_variance has no fixed direction and returns ok=false.
func (t MovementType) FixedDirection() (MovementDirection, bool) {
	d, ok := movementDirections[t]
	return d, ok
}

// Movement is a single immutable entry in the stock ledger. Movements are
// never updated or deleted; corrections are recorded as new, offsetting
// movements.
type Movement struct {
	ID             string            `json:"id" db:"id"`
	Seq            int64             `json:"-" db:"seq"` // insertion order, tie-breaker for equal created_at
	ProductID      string            `json:"product_id" db:"product_id"`
	LocationID     string            `json:"location_id" db:"location_id"`
	BatchID        *string           `json:"batch_id,omitempty" db:"batch_id"`
	MovementType   MovementType      `json:"movement_type" db:"movement_type"`
	Direction      MovementDirection `json:"direction" db:"direction"`
	Quantity       int64             `json:"quantity" db:"quantity"`             // magnitude, always > 0
	UnitCost       *int64            `json:"unit_cost,omitempty" db:"unit_cost"` // minor units (cents)
	ReferenceID    *string           `json:"reference_id,omitempty" db:"reference_id"`
	ReferenceType  *string           `json:"reference_type,omitempty" db:"reference_type"`
	ActorID        *int64            `json:"actor_id,omitempty" db:"actor_id"`
	Notes          *string           `json:"notes,omitempty" db:"notes"`
	IdempotencyKey *string           `json:"idempotency_key,omitempty" db:"idempotency_key"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`

	ProductName *string `json:"product_name,omitempty"`
	ProductSKU  *string `json:"product_sku,omitempty"`
	ActorName   *string `json:"actor_name,omitempty"`
}

// SignedQuantity returns the quantity with the movement's direction applied.
func (m *Movement) SignedQuantity() int64 {
	if m.Direction == DirectionOut {
		return -m.Quantity
	}
	return m.Quantity
}

// SamePayload reports whether another movement describes the same stock
// event. Used to distinguish an idempotent replay from a key collision.
func (m *Movement) SamePayload(other *Movement) bool {
	if m.ProductID != other.ProductID ||
		m.LocationID != other.LocationID ||
		m.MovementType != other.MovementType ||
		m.Direction != other.Direction ||
		m.Quantity != other.Quantity {
		return false
	}
	if (m.BatchID == nil) != (other.BatchID == nil) {
		return false
	}
	if m.BatchID != nil && *m.BatchID != *other.BatchID {
		return false
	}
	if (m.UnitCost == nil) != (other.UnitCost == nil) {
		return false
	}
	if m.UnitCost != nil && *m.UnitCost != *other.UnitCost {
		return false
	}
	return true
}

// MovementFilters narrows movement history queries.
type MovementFilters struct {
	ProductID    *string
	LocationID   *string
	BatchID      *string
	MovementType *MovementType
	StartDate    *time.Time
	EndDate      *time.Time
	Page         int
	PageSize     int
}

// Batch is a tracked lot of a product sharing a cost and optional expiry
// date. QuantityOnHand is derived from movements referencing the batch and
// is never stored as an independent counter.
type Batch struct {
	ID          string     `json:"id" db:"id"`
	ProductID   string     `json:"product_id" db:"product_id"`
	LocationID  string     `json:"location_id" db:"location_id"`
	BatchNumber string     `json:"batch_number" db:"batch_number"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty" db:"expiry_date"`
	UnitCost    int64      `json:"unit_cost" db:"unit_cost"` // minor units (cents)
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`

	QuantityOnHand int64 `json:"quantity_on_hand"`

	ProductName *string `json:"product_name,omitempty"`
	ProductSKU  *string `json:"product_sku,omitempty"`
}

// IsExpired reports whether the batch has passed its expiry as of the given
// time. Batches without an expiry date never expire.
func (b *Batch) IsExpired(asOf time.Time) bool {
	if b.ExpiryDate == nil {
		return false
	}
	return !b.ExpiryDate.After(asOf)
}

// DaysUntilExpiry returns whole days remaining until expiry, negative if
// already expired, and ok=false for batches without an expiry date.
func (b *Batch) DaysUntilExpiry(asOf time.Time) (int, bool) {
	if b.ExpiryDate == nil {
		return 0, false
	}
	return int(b.ExpiryDate.Sub(asOf).Hours() / 24), true
}

// ProjectedInventoryItem is the materialized quantity view for a
// (product, location) key. It is rebuildable from the movement log at any
// time and is never a source of truth on its own.
type ProjectedInventoryItem struct {
	ProductID         string     `json:"product_id" db:"product_id"`
	LocationID        string     `json:"location_id" db:"location_id"`
	QuantityOnHand    int64      `json:"quantity_on_hand" db:"quantity_on_hand"`
	QuantityReserved  int64      `json:"quantity_reserved" db:"quantity_reserved"`
	QuantityAvailable int64      `json:"quantity_available"`
	LastMovementAt    *time.Time `json:"last_movement_at,omitempty" db:"last_movement_at"`
	LastSeq           int64      `json:"-" db:"last_seq"` // replay checkpoint
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`

	ProductName   *string `json:"product_name,omitempty"`
	ProductSKU    *string `json:"product_sku,omitempty"`
	MinStockLevel *int64  `json:"min_stock_level,omitempty"`
	NegativeStock bool    `json:"negative_stock,omitempty"` // diagnostic, see projector
}

// Available computes on_hand minus reserved, clamped at zero for display.
// The underlying on_hand is deliberately not clamped.
func (p *ProjectedInventoryItem) Available() int64 {
	avail := p.QuantityOnHand - p.QuantityReserved
	if avail < 0 {
		return 0
	}
	return avail
}

// Apply folds one movement into the projection. Movements must be applied
// in (created_at, seq) order for the checkpoint to stay consistent.
func (p *ProjectedInventoryItem) Apply(m *Movement) {
	p.QuantityOnHand += m.SignedQuantity()
	t := m.CreatedAt
	p.LastMovementAt = &t
	if m.Seq > p.LastSeq {
		p.LastSeq = m.Seq
	}
	p.QuantityAvailable = p.Available()
}

// InventoryFilters narrows projected inventory queries.
type InventoryFilters struct {
	ProductID    *string
	LocationID   *string
	LowStock     bool
	OutOfStock   bool
	Expired      bool
	ExpiringSoon bool
	Search       *string
	Page         int
	PageSize     int
}
