package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"pos_ledger_backend/internal/models"
)

// StockCountRepository persists physical counts. Completion is atomic: the
// status flip, the item variances, the emitted movements, and the projection
// updates commit in one transaction, or not at all.
type StockCountRepository interface {
	Create(count *models.StockCount) error
	FindByID(id string) (*models.StockCount, error)
	List(locationID *string, status *models.StockCountStatus, page, pageSize int) ([]models.StockCount, int, error)

	// Complete flips a draft count to completed, writes the final item
	// expectations/variances, and appends the variance movements with
	// their projection updates. Returns ErrStaleState when the count is
	// no longer a draft.
	Complete(count *models.StockCount, movements []models.Movement, projections []models.ProjectedInventoryItem) error
}

type stockCountRepository struct {
	db *sql.DB
}

// NewStockCountRepository creates a new Postgres-backed StockCountRepository.
func NewStockCountRepository(db *sql.DB) StockCountRepository {
	return &stockCountRepository{db: db}
}

func (r *stockCountRepository) Create(count *models.StockCount) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin stock count create: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	if count.CreatedAt.IsZero() {
		count.CreatedAt = time.Now()
	}
	_, err = tx.Exec(
		`INSERT INTO stock_counts (id, location_id, count_date, counted_by, status, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		count.ID, count.LocationID, count.CountDate, count.CountedBy, count.Status, count.Notes, count.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: inserting stock count: %v", ErrDatabaseError, err)
	}

	for i := range count.Items {
		item := &count.Items[i]
		item.StockCountID = count.ID
		_, err = tx.Exec(
			`INSERT INTO stock_count_items (id, stock_count_id, product_id, batch_id, expected_quantity, counted_quantity, variance, notes)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			item.ID, item.StockCountID, item.ProductID, item.BatchID,
			item.ExpectedQuantity, item.CountedQuantity, item.Variance, item.Notes,
		)
		if err != nil {
			return fmt.Errorf("%w: inserting stock count item: %v", ErrDatabaseError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit stock count create: %v", ErrDatabaseError, err)
	}
	return nil
}

func (r *stockCountRepository) FindByID(id string) (*models.StockCount, error) {
	var c models.StockCount
	var countedBy sql.NullInt64
	var notes sql.NullString
	var completedAt sql.NullTime

	err := r.db.QueryRow(
		`SELECT id, location_id, count_date, counted_by, status, notes, created_at, completed_at
		 FROM stock_counts WHERE id = $1`, id,
	).Scan(&c.ID, &c.LocationID, &c.CountDate, &countedBy, &c.Status, &notes, &c.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: finding stock count: %v", ErrDatabaseError, err)
	}
	if countedBy.Valid {
		c.CountedBy = &countedBy.Int64
	}
	if notes.Valid {
		c.Notes = &notes.String
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}

	rows, err := r.db.Query(
		`SELECT i.id, i.stock_count_id, i.product_id, i.batch_id, i.expected_quantity, i.counted_quantity, i.variance, i.notes,
		        p.name AS product_name, p.sku AS product_sku
		 FROM stock_count_items i
		 JOIN products p ON i.product_id = p.id
		 WHERE i.stock_count_id = $1
		 ORDER BY p.name ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: loading stock count items: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	c.Items = []models.StockCountItem{}
	for rows.Next() {
		var item models.StockCountItem
		var batchID, itemNotes, productName, productSKU sql.NullString

		if err := rows.Scan(
			&item.ID, &item.StockCountID, &item.ProductID, &batchID,
			&item.ExpectedQuantity, &item.CountedQuantity, &item.Variance, &itemNotes,
			&productName, &productSKU,
		); err != nil {
			return nil, fmt.Errorf("%w: scanning stock count item: %v", ErrDatabaseError, err)
		}
		if batchID.Valid {
			item.BatchID = &batchID.String
		}
		if itemNotes.Valid {
			item.Notes = &itemNotes.String
		}
		if productName.Valid {
			item.ProductName = &productName.String
		}
		if productSKU.Valid {
			item.ProductSKU = &productSKU.String
		}
		c.Items = append(c.Items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating stock count items: %v", ErrDatabaseError, err)
	}

	return &c, nil
}

func (r *stockCountRepository) List(locationID *string, status *models.StockCountStatus, page, pageSize int) ([]models.StockCount, int, error) {
	counts := []models.StockCount{}
	totalCount := 0

	var queryBuilder strings.Builder
	queryBuilder.WriteString(
		`SELECT id, location_id, count_date, counted_by, status, notes, created_at, completed_at,
		        COUNT(*) OVER() AS total_count
		 FROM stock_counts`)

	var conditions []string
	var args []interface{}
	argCount := 1

	if locationID != nil {
		conditions = append(conditions, fmt.Sprintf("location_id = $%d", argCount))
		args = append(args, *locationID)
		argCount++
	}
	if status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argCount))
		args = append(args, *status)
		argCount++
	}
	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(conditions, " AND "))
	}

	queryBuilder.WriteString(" ORDER BY count_date DESC, created_at DESC")

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1))
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Query(queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: listing stock counts: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.StockCount
		var countedBy sql.NullInt64
		var notes sql.NullString
		var completedAt sql.NullTime

		if err := rows.Scan(
			&c.ID, &c.LocationID, &c.CountDate, &countedBy, &c.Status, &notes, &c.CreatedAt, &completedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("%w: scanning stock count: %v", ErrDatabaseError, err)
		}
		if countedBy.Valid {
			c.CountedBy = &countedBy.Int64
		}
		if notes.Valid {
			c.Notes = &notes.String
		}
		if completedAt.Valid {
			c.CompletedAt = &completedAt.Time
		}
		counts = append(counts, c)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating stock counts: %v", ErrDatabaseError, err)
	}

	return counts, totalCount, nil
}

func (r *stockCountRepository) Complete(count *models.StockCount, movements []models.Movement, projections []models.ProjectedInventoryItem) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin stock count completion: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	// Guarded transition: only a draft may complete. The row count tells
	// us whether another writer got there first.
	res, err := tx.Exec(
		`UPDATE stock_counts SET status = $1, completed_at = $2 WHERE id = $3 AND status = $4`,
		models.StockCountCompleted, count.CompletedAt, count.ID, models.StockCountDraft,
	)
	if err != nil {
		return fmt.Errorf("%w: completing stock count: %v", ErrDatabaseError, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: completing stock count: %v", ErrDatabaseError, err)
	}
	if affected == 0 {
		return ErrStaleState
	}

	for i := range count.Items {
		item := &count.Items[i]
		_, err = tx.Exec(
			`UPDATE stock_count_items SET expected_quantity = $1, variance = $2 WHERE id = $3`,
			item.ExpectedQuantity, item.Variance, item.ID,
		)
		if err != nil {
			return fmt.Errorf("%w: updating stock count item: %v", ErrDatabaseError, err)
		}
	}

	for i := range movements {
		if err := insertMovement(tx, &movements[i]); err != nil {
			return err
		}
	}
	for i := range projections {
		p := &projections[i]
		// Pin each checkpoint past the variance movements just written.
		for j := range movements {
			m := &movements[j]
			if m.ProductID == p.ProductID && m.LocationID == p.LocationID && m.Seq > p.LastSeq {
				p.LastSeq = m.Seq
			}
		}
		if err := upsertProjection(tx, p); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit stock count completion: %v", ErrDatabaseError, err)
	}
	return nil
}
