package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"pos_ledger_backend/internal/models"
)

// BatchRepository persists batch/lot metadata. A batch's quantity on hand is
// always derived by summing the signed movements that reference it, so there
// is no counter column to drift.
type BatchRepository interface {
	Create(batch *models.Batch) error
	FindByID(id string) (*models.Batch, error)
	FindByNumber(productID, locationID, batchNumber string) (*models.Batch, error)

	// ListWithStock returns batches with derived quantity_on_hand > 0,
	// joined with product data.
	ListWithStock() ([]models.Batch, error)

	// ListByProductWithStock is ListWithStock narrowed to one product.
	ListByProductWithStock(productID string) ([]models.Batch, error)
}

type batchRepository struct {
	db *sql.DB
}

// NewBatchRepository creates a new Postgres-backed BatchRepository.
func NewBatchRepository(db *sql.DB) BatchRepository {
	return &batchRepository{db: db}
}

// insertBatch writes one batch row; shared with the movement repository so
// batch creation can ride in the same transaction as the creating movement.
func insertBatch(executor SQLExecutor, b *models.Batch) error {
	query := `INSERT INTO batches (id, product_id, location_id, batch_number, expiry_date, unit_cost, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	_, err := executor.Exec(query, b.ID, b.ProductID, b.LocationID, b.BatchNumber, b.ExpiryDate, b.UnitCost, b.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: batch number for product/location", ErrDuplicateKey)
		}
		return fmt.Errorf("%w: inserting batch: %v", ErrDatabaseError, err)
	}
	return nil
}

func (r *batchRepository) Create(batch *models.Batch) error {
	return insertBatch(r.db, batch)
}

const batchSelect = `SELECT b.id, b.product_id, b.location_id, b.batch_number, b.expiry_date, b.unit_cost, b.created_at,
	    COALESCE(SUM(CASE WHEN m.direction = 'in' THEN m.quantity WHEN m.direction = 'out' THEN -m.quantity END), 0) AS quantity_on_hand,
	    p.name AS product_name, p.sku AS product_sku
	  FROM batches b
	  JOIN products p ON b.product_id = p.id
	  LEFT JOIN movements m ON m.batch_id = b.id`

const batchGroup = ` GROUP BY b.id, b.product_id, b.location_id, b.batch_number, b.expiry_date, b.unit_cost, b.created_at, p.name, p.sku`

func (r *batchRepository) scanBatches(rows *sql.Rows) ([]models.Batch, error) {
	batches := []models.Batch{}
	for rows.Next() {
		var b models.Batch
		var expiryDate sql.NullTime
		var productName, productSKU sql.NullString

		if err := rows.Scan(
			&b.ID, &b.ProductID, &b.LocationID, &b.BatchNumber, &expiryDate, &b.UnitCost, &b.CreatedAt,
			&b.QuantityOnHand, &productName, &productSKU,
		); err != nil {
			return nil, fmt.Errorf("%w: scanning batch: %v", ErrDatabaseError, err)
		}
		if expiryDate.Valid {
			b.ExpiryDate = &expiryDate.Time
		}
		if productName.Valid {
			b.ProductName = &productName.String
		}
		if productSKU.Valid {
			b.ProductSKU = &productSKU.String
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating batches: %v", ErrDatabaseError, err)
	}
	return batches, nil
}

func (r *batchRepository) FindByID(id string) (*models.Batch, error) {
	rows, err := r.db.Query(batchSelect+` WHERE b.id = $1`+batchGroup, id)
	if err != nil {
		return nil, fmt.Errorf("%w: finding batch: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	batches, err := r.scanBatches(rows)
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return nil, ErrNotFound
	}
	return &batches[0], nil
}

func (r *batchRepository) FindByNumber(productID, locationID, batchNumber string) (*models.Batch, error) {
	rows, err := r.db.Query(
		batchSelect+` WHERE b.product_id = $1 AND b.location_id = $2 AND b.batch_number = $3`+batchGroup,
		productID, locationID, batchNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: finding batch by number: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	batches, err := r.scanBatches(rows)
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return nil, ErrNotFound
	}
	return &batches[0], nil
}

func (r *batchRepository) ListWithStock() ([]models.Batch, error) {
	rows, err := r.db.Query(batchSelect + batchGroup + ` HAVING COALESCE(SUM(CASE WHEN m.direction = 'in' THEN m.quantity WHEN m.direction = 'out' THEN -m.quantity END), 0) > 0 ORDER BY b.expiry_date ASC NULLS LAST`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing batches with stock: %v", ErrDatabaseError, err)
	}
	defer rows.Close()
	return r.scanBatches(rows)
}

func (r *batchRepository) ListByProductWithStock(productID string) ([]models.Batch, error) {
	rows, err := r.db.Query(
		batchSelect+` WHERE b.product_id = $1`+batchGroup+` HAVING COALESCE(SUM(CASE WHEN m.direction = 'in' THEN m.quantity WHEN m.direction = 'out' THEN -m.quantity END), 0) > 0 ORDER BY b.expiry_date ASC NULLS LAST`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: listing product batches with stock: %v", ErrDatabaseError, err)
	}
	defer rows.Close()
	return r.scanBatches(rows)
}
