package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"pos_ledger_backend/internal/models"
)

// ProjectionRepository reads and maintains the materialized quantity view.
// Rows here are checkpoints, always reconstructable from the movement log.
type ProjectionRepository interface {
	// Get returns the checkpoint for a key, or ErrNotFound when the key
	// has never been projected.
	Get(productID, locationID string) (*models.ProjectedInventoryItem, error)

	// Upsert overwrites the checkpoint for a key, except quantity_reserved,
	// which survives on existing rows. Used by tail replays and rebuilds.
	Upsert(item *models.ProjectedInventoryItem) error

	// AdjustReserved moves the reservation counter by delta (positive to
	// hold, negative to release) and returns the updated row. Reserved is
	// owned by the cart/reservation collaborator, never derived from
	// movements, and never allowed below zero.
	AdjustReserved(productID, locationID string, delta int64) (*models.ProjectedInventoryItem, error)

	// List returns projected items joined with catalog data, filtered.
	List(filters models.InventoryFilters) ([]models.ProjectedInventoryItem, int, error)

	// ListByProduct returns all location rows for one product.
	ListByProduct(productID string) ([]models.ProjectedInventoryItem, error)
}

type projectionRepository struct {
	db *sql.DB
}

// NewProjectionRepository creates a new Postgres-backed ProjectionRepository.
func NewProjectionRepository(db *sql.DB) ProjectionRepository {
	return &projectionRepository{db: db}
}

func (r *projectionRepository) Get(productID, locationID string) (*models.ProjectedInventoryItem, error) {
	query := `SELECT product_id, location_id, quantity_on_hand, quantity_reserved, last_movement_at, last_seq, updated_at
	          FROM projected_inventory
	          WHERE product_id = $1 AND location_id = $2`

	var p models.ProjectedInventoryItem
	var lastMovementAt sql.NullTime
	err := r.db.QueryRow(query, productID, locationID).Scan(
		&p.ProductID, &p.LocationID, &p.QuantityOnHand, &p.QuantityReserved, &lastMovementAt, &p.LastSeq, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: getting projection: %v", ErrDatabaseError, err)
	}
	if lastMovementAt.Valid {
		p.LastMovementAt = &lastMovementAt.Time
	}
	p.QuantityAvailable = p.Available()
	return &p, nil
}

func (r *projectionRepository) Upsert(item *models.ProjectedInventoryItem) error {
	return upsertProjection(r.db, item)
}

func (r *projectionRepository) AdjustReserved(productID, locationID string, delta int64) (*models.ProjectedInventoryItem, error) {
	query := `INSERT INTO projected_inventory
	          (product_id, location_id, quantity_on_hand, quantity_reserved, last_seq, updated_at)
	          VALUES ($1, $2, 0, GREATEST($3, 0), 0, $4)
	          ON CONFLICT (product_id, location_id) DO UPDATE SET
	            quantity_reserved = GREATEST(projected_inventory.quantity_reserved + $3, 0),
	            updated_at = $4
	          RETURNING product_id, location_id, quantity_on_hand, quantity_reserved, last_movement_at, last_seq, updated_at`

	var p models.ProjectedInventoryItem
	var lastMovementAt sql.NullTime
	err := r.db.QueryRow(query, productID, locationID, delta, time.Now()).Scan(
		&p.ProductID, &p.LocationID, &p.QuantityOnHand, &p.QuantityReserved, &lastMovementAt, &p.LastSeq, &p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: adjusting reserved quantity: %v", ErrDatabaseError, err)
	}
	if lastMovementAt.Valid {
		p.LastMovementAt = &lastMovementAt.Time
	}
	p.QuantityAvailable = p.Available()
	return &p, nil
}

func (r *projectionRepository) List(filters models.InventoryFilters) ([]models.ProjectedInventoryItem, int, error) {
	items := []models.ProjectedInventoryItem{}
	totalCount := 0

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT
	    pi.product_id, pi.location_id, pi.quantity_on_hand, pi.quantity_reserved,
	    pi.last_movement_at, pi.last_seq, pi.updated_at,
	    p.name AS product_name, p.sku AS product_sku, p.min_stock_level,
	    COUNT(*) OVER() AS total_count
	  FROM projected_inventory pi
	  JOIN products p ON pi.product_id = p.id`)

	var conditions []string
	var args []interface{}
	argCount := 1

	if filters.ProductID != nil {
		conditions = append(conditions, fmt.Sprintf("pi.product_id = $%d", argCount))
		args = append(args, *filters.ProductID)
		argCount++
	}
	if filters.LocationID != nil {
		conditions = append(conditions, fmt.Sprintf("pi.location_id = $%d", argCount))
		args = append(args, *filters.LocationID)
		argCount++
	}
	if filters.LowStock {
		conditions = append(conditions, "p.min_stock_level IS NOT NULL AND pi.quantity_on_hand <= p.min_stock_level AND pi.quantity_on_hand > 0")
	}
	if filters.OutOfStock {
		conditions = append(conditions, "pi.quantity_on_hand <= 0")
	}
	if filters.Search != nil && *filters.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(p.name ILIKE $%d OR p.sku ILIKE $%d)", argCount, argCount))
		args = append(args, "%"+*filters.Search+"%")
		argCount++
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(conditions, " AND "))
	}

	queryBuilder.WriteString(" ORDER BY p.name ASC, pi.location_id ASC")

	page := filters.Page
	if page < 1 {
		page = 1
	}
	pageSize := filters.PageSize
	if pageSize < 1 {
		pageSize = 100
	}
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1))
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Query(queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: listing projected inventory: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.ProjectedInventoryItem
		var lastMovementAt sql.NullTime
		var productName, productSKU sql.NullString
		var minStockLevel sql.NullInt64

		if err := rows.Scan(
			&p.ProductID, &p.LocationID, &p.QuantityOnHand, &p.QuantityReserved,
			&lastMovementAt, &p.LastSeq, &p.UpdatedAt,
			&productName, &productSKU, &minStockLevel,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("%w: scanning projected inventory: %v", ErrDatabaseError, err)
		}

		if lastMovementAt.Valid {
			p.LastMovementAt = &lastMovementAt.Time
		}
		if productName.Valid {
			p.ProductName = &productName.String
		}
		if productSKU.Valid {
			p.ProductSKU = &productSKU.String
		}
		if minStockLevel.Valid {
			p.MinStockLevel = &minStockLevel.Int64
		}
		p.QuantityAvailable = p.Available()
		p.NegativeStock = p.QuantityOnHand < 0

		items = append(items, p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating projected inventory: %v", ErrDatabaseError, err)
	}

	return items, totalCount, nil
}

func (r *projectionRepository) ListByProduct(productID string) ([]models.ProjectedInventoryItem, error) {
	items, _, err := r.List(models.InventoryFilters{ProductID: &productID, PageSize: 10000})
	return items, err
}
