package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"pos_ledger_backend/internal/models"
)

// MovementRepository is the persistence interface for the append-only
// movement log. There is no update or delete: corrections are new,
// offsetting movements. Multi-row writes are atomic.
type MovementRepository interface {
	// Append persists one movement together with the updated projection
	// checkpoint for its (product, location) key, and optionally a batch
	// row created by this movement. All-or-nothing.
	Append(movement *models.Movement, projection *models.ProjectedInventoryItem, newBatch *models.Batch) error

	// AppendPair persists two movements (a transfer leg pair) and both
	// updated projections atomically.
	AppendPair(out, in *models.Movement, outProjection, inProjection *models.ProjectedInventoryItem) error

	FindByID(id string) (*models.Movement, error)
	FindByIdempotencyKey(key string) (*models.Movement, error)

	// FindByReference returns all movements tagged with a reference id,
	// replay order. Used to reassemble transfer pairs and count output.
	FindByReference(referenceID string) ([]models.Movement, error)

	// GetMovements returns history, newest first, with total count.
	GetMovements(filters models.MovementFilters) ([]models.Movement, int, error)

	// LoadForKey returns all movements for a (product, location) key in
	// replay order: created_at ascending, seq breaking ties.
	LoadForKey(productID, locationID string) ([]models.Movement, error)

	// LoadForKeyAfter returns movements with seq greater than afterSeq,
	// in replay order. Used for checkpointed recomputes.
	LoadForKeyAfter(productID, locationID string, afterSeq int64) ([]models.Movement, error)

	// LoadForBatch returns all movements referencing a batch, replay order.
	LoadForBatch(batchID string) ([]models.Movement, error)

	// LatestInboundUnitCost returns the unit cost of the most recent
	// inbound movement with a cost for the key, ok=false when none exists.
	LatestInboundUnitCost(productID, locationID string) (int64, bool, error)
}

type movementRepository struct {
	db *sql.DB
}

// NewMovementRepository creates a new Postgres-backed MovementRepository.
func NewMovementRepository(db *sql.DB) MovementRepository {
	return &movementRepository{db: db}
}

const movementColumns = `id, seq, product_id, location_id, batch_id, movement_type, direction,
	quantity, unit_cost, reference_id, reference_type, actor_id, notes, idempotency_key, created_at`

func scanMovement(row interface{ Scan(dest ...interface{}) error }, m *models.Movement) error {
	var batchID, referenceID, referenceType, notes, idempotencyKey sql.NullString
	var unitCost, actorID sql.NullInt64

	err := row.Scan(
		&m.ID, &m.Seq, &m.ProductID, &m.LocationID, &batchID, &m.MovementType, &m.Direction,
		&m.Quantity, &unitCost, &referenceID, &referenceType, &actorID, &notes, &idempotencyKey, &m.CreatedAt,
	)
	if err != nil {
		return err
	}
	if batchID.Valid {
		m.BatchID = &batchID.String
	}
	if unitCost.Valid {
		m.UnitCost = &unitCost.Int64
	}
	if referenceID.Valid {
		m.ReferenceID = &referenceID.String
	}
	if referenceType.Valid {
		m.ReferenceType = &referenceType.String
	}
	if actorID.Valid {
		m.ActorID = &actorID.Int64
	}
	if notes.Valid {
		m.Notes = &notes.String
	}
	if idempotencyKey.Valid {
		m.IdempotencyKey = &idempotencyKey.String
	}
	return nil
}

// insertMovement writes one movement row and fills in the assigned seq.
func insertMovement(executor SQLExecutor, m *models.Movement) error {
	query := `INSERT INTO movements
	          (id, product_id, location_id, batch_id, movement_type, direction, quantity, unit_cost,
	           reference_id, reference_type, actor_id, notes, idempotency_key, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	          RETURNING seq`

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	err := executor.QueryRow(query,
		m.ID, m.ProductID, m.LocationID, m.BatchID, m.MovementType, m.Direction, m.Quantity, m.UnitCost,
		m.ReferenceID, m.ReferenceType, m.ActorID, m.Notes, m.IdempotencyKey, m.CreatedAt,
	).Scan(&m.Seq)

	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: movement idempotency key", ErrDuplicateKey)
		}
		return fmt.Errorf("%w: inserting movement: %v", ErrDatabaseError, err)
	}
	return nil
}

// upsertProjection writes the projection checkpoint for a key. On an
// existing row quantity_reserved is left alone: reservations move only
// through AdjustReserved, and the checkpoint value in hand may predate a
// reservation landed while the movement was in flight.
func upsertProjection(executor SQLExecutor, p *models.ProjectedInventoryItem) error {
	query := `INSERT INTO projected_inventory
	          (product_id, location_id, quantity_on_hand, quantity_reserved, last_movement_at, last_seq, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          ON CONFLICT (product_id, location_id) DO UPDATE SET
	            quantity_on_hand = EXCLUDED.quantity_on_hand,
	            last_movement_at = EXCLUDED.last_movement_at,
	            last_seq = EXCLUDED.last_seq,
	            updated_at = EXCLUDED.updated_at`

	p.UpdatedAt = time.Now()
	_, err := executor.Exec(query,
		p.ProductID, p.LocationID, p.QuantityOnHand, p.QuantityReserved, p.LastMovementAt, p.LastSeq, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: upserting projection: %v", ErrDatabaseError, err)
	}
	return nil
}

func (r *movementRepository) Append(movement *models.Movement, projection *models.ProjectedInventoryItem, newBatch *models.Batch) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin append: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	if newBatch != nil {
		if err := insertBatch(tx, newBatch); err != nil {
			return err
		}
	}
	if err := insertMovement(tx, movement); err != nil {
		return err
	}
	// Pin the checkpoint to the seq assigned by the insert.
	if movement.Seq > projection.LastSeq {
		projection.LastSeq = movement.Seq
	}
	if err := upsertProjection(tx, projection); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit append: %v", ErrDatabaseError, err)
	}
	return nil
}

func (r *movementRepository) AppendPair(out, in *models.Movement, outProjection, inProjection *models.ProjectedInventoryItem) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin transfer append: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	if err := insertMovement(tx, out); err != nil {
		return err
	}
	if err := insertMovement(tx, in); err != nil {
		return err
	}
	if out.Seq > outProjection.LastSeq {
		outProjection.LastSeq = out.Seq
	}
	if in.Seq > inProjection.LastSeq {
		inProjection.LastSeq = in.Seq
	}
	if err := upsertProjection(tx, outProjection); err != nil {
		return err
	}
	if err := upsertProjection(tx, inProjection); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit transfer append: %v", ErrDatabaseError, err)
	}
	return nil
}

func (r *movementRepository) FindByID(id string) (*models.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements WHERE id = $1`
	var m models.Movement
	err := scanMovement(r.db.QueryRow(query, id), &m)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: finding movement by id: %v", ErrDatabaseError, err)
	}
	return &m, nil
}

func (r *movementRepository) FindByIdempotencyKey(key string) (*models.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements WHERE idempotency_key = $1`
	var m models.Movement
	err := scanMovement(r.db.QueryRow(query, key), &m)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: finding movement by idempotency key: %v", ErrDatabaseError, err)
	}
	return &m, nil
}

func (r *movementRepository) GetMovements(filters models.MovementFilters) ([]models.Movement, int, error) {
	movements := []models.Movement{}
	totalCount := 0

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT
	    m.id, m.seq, m.product_id, m.location_id, m.batch_id, m.movement_type, m.direction,
	    m.quantity, m.unit_cost, m.reference_id, m.reference_type, m.actor_id, m.notes,
	    m.idempotency_key, m.created_at,
	    p.name AS product_name, p.sku AS product_sku,
	    u.full_name AS actor_name,
	    COUNT(*) OVER() AS total_count
	  FROM movements m
	  JOIN products p ON m.product_id = p.id
	  LEFT JOIN users u ON m.actor_id = u.id`)

	var conditions []string
	var args []interface{}
	argCount := 1

	if filters.ProductID != nil {
		conditions = append(conditions, fmt.Sprintf("m.product_id = $%d", argCount))
		args = append(args, *filters.ProductID)
		argCount++
	}
	if filters.LocationID != nil {
		conditions = append(conditions, fmt.Sprintf("m.location_id = $%d", argCount))
		args = append(args, *filters.LocationID)
		argCount++
	}
	if filters.BatchID != nil {
		conditions = append(conditions, fmt.Sprintf("m.batch_id = $%d", argCount))
		args = append(args, *filters.BatchID)
		argCount++
	}
	if filters.MovementType != nil && *filters.MovementType != "" {
		conditions = append(conditions, fmt.Sprintf("m.movement_type = $%d", argCount))
		args = append(args, *filters.MovementType)
		argCount++
	}
	if filters.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("m.created_at >= $%d", argCount))
		args = append(args, *filters.StartDate)
		argCount++
	}
	if filters.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("m.created_at <= $%d", argCount))
		args = append(args, *filters.EndDate)
		argCount++
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(conditions, " AND "))
	}

	queryBuilder.WriteString(" ORDER BY m.created_at DESC, m.seq DESC")

	page := filters.Page
	if page < 1 {
		page = 1
	}
	pageSize := filters.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1))
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Query(queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: getting movements: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.Movement
		var batchID, referenceID, referenceType, notes, idempotencyKey sql.NullString
		var unitCost, actorID sql.NullInt64
		var productName, productSKU, actorName sql.NullString

		if err := rows.Scan(
			&m.ID, &m.Seq, &m.ProductID, &m.LocationID, &batchID, &m.MovementType, &m.Direction,
			&m.Quantity, &unitCost, &referenceID, &referenceType, &actorID, &notes,
			&idempotencyKey, &m.CreatedAt,
			&productName, &productSKU, &actorName,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("%w: scanning movement: %v", ErrDatabaseError, err)
		}

		if batchID.Valid {
			m.BatchID = &batchID.String
		}
		if unitCost.Valid {
			m.UnitCost = &unitCost.Int64
		}
		if referenceID.Valid {
			m.ReferenceID = &referenceID.String
		}
		if referenceType.Valid {
			m.ReferenceType = &referenceType.String
		}
		if actorID.Valid {
			m.ActorID = &actorID.Int64
		}
		if notes.Valid {
			m.Notes = &notes.String
		}
		if idempotencyKey.Valid {
			m.IdempotencyKey = &idempotencyKey.String
		}
		if productName.Valid {
			m.ProductName = &productName.String
		}
		if productSKU.Valid {
			m.ProductSKU = &productSKU.String
		}
		if actorName.Valid {
			m.ActorName = &actorName.String
		}

		movements = append(movements, m)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating movements: %v", ErrDatabaseError, err)
	}

	return movements, totalCount, nil
}

func (r *movementRepository) loadWhere(where string, args ...interface{}) ([]models.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements WHERE ` + where + ` ORDER BY created_at ASC, seq ASC`
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: loading movements: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	movements := []models.Movement{}
	for rows.Next() {
		var m models.Movement
		if err := scanMovement(rows, &m); err != nil {
			return nil, fmt.Errorf("%w: scanning movement: %v", ErrDatabaseError, err)
		}
		movements = append(movements, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating movements: %v", ErrDatabaseError, err)
	}
	return movements, nil
}

func (r *movementRepository) LoadForKey(productID, locationID string) ([]models.Movement, error) {
	return r.loadWhere("product_id = $1 AND location_id = $2", productID, locationID)
}

func (r *movementRepository) LoadForKeyAfter(productID, locationID string, afterSeq int64) ([]models.Movement, error) {
	return r.loadWhere("product_id = $1 AND location_id = $2 AND seq > $3", productID, locationID, afterSeq)
}

func (r *movementRepository) LoadForBatch(batchID string) ([]models.Movement, error) {
	return r.loadWhere("batch_id = $1", batchID)
}

func (r *movementRepository) FindByReference(referenceID string) ([]models.Movement, error) {
	return r.loadWhere("reference_id = $1", referenceID)
}

func (r *movementRepository) LatestInboundUnitCost(productID, locationID string) (int64, bool, error) {
	query := `SELECT unit_cost FROM movements
	          WHERE product_id = $1 AND location_id = $2 AND direction = 'in' AND unit_cost IS NOT NULL
	          ORDER BY created_at DESC, seq DESC
	          LIMIT 1`
	var cost int64
	err := r.db.QueryRow(query, productID, locationID).Scan(&cost)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: latest inbound unit cost: %v", ErrDatabaseError, err)
	}
	return cost, true, nil
}
