package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"pos_ledger_backend/internal/models"
)

// AlertRepository persists inventory alerts. Alerts are a derived,
// operator-facing view; unlike movements they may be removed when the
// breach resolves before anyone acknowledged it.
type AlertRepository interface {
	Create(alert *models.InventoryAlert) error
	FindByID(id string) (*models.InventoryAlert, error)

	// Open returns unacknowledged alerts, optionally for one product.
	Open(productID *string) ([]models.InventoryAlert, error)

	// Acknowledge marks an alert acknowledged. Idempotent: acknowledging
	// an already-acknowledged alert is a no-op.
	Acknowledge(id string, userID int64) error

	// Delete removes an alert row. Used by the evaluator to retire open
	// alerts whose condition no longer holds.
	Delete(id string) error
}

type alertRepository struct {
	db *sql.DB
}

// NewAlertRepository creates a new Postgres-backed AlertRepository.
func NewAlertRepository(db *sql.DB) AlertRepository {
	return &alertRepository{db: db}
}

func (r *alertRepository) Create(alert *models.InventoryAlert) error {
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	_, err := r.db.Exec(
		`INSERT INTO inventory_alerts (id, product_id, batch_id, alert_type, threshold_value, current_value, is_acknowledged, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		alert.ID, alert.ProductID, alert.BatchID, alert.AlertType,
		alert.ThresholdValue, alert.CurrentValue, alert.IsAcknowledged, alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: inserting alert: %v", ErrDatabaseError, err)
	}
	return nil
}

const alertSelect = `SELECT a.id, a.product_id, a.batch_id, a.alert_type, a.threshold_value, a.current_value,
	    a.is_acknowledged, a.acknowledged_by, a.acknowledged_at, a.created_at,
	    p.name AS product_name, p.sku AS product_sku
	  FROM inventory_alerts a
	  JOIN products p ON a.product_id = p.id`

func scanAlert(row interface{ Scan(dest ...interface{}) error }, a *models.InventoryAlert) error {
	var batchID, productName, productSKU sql.NullString
	var acknowledgedBy sql.NullInt64
	var acknowledgedAt sql.NullTime

	err := row.Scan(
		&a.ID, &a.ProductID, &batchID, &a.AlertType, &a.ThresholdValue, &a.CurrentValue,
		&a.IsAcknowledged, &acknowledgedBy, &acknowledgedAt, &a.CreatedAt,
		&productName, &productSKU,
	)
	if err != nil {
		return err
	}
	if batchID.Valid {
		a.BatchID = &batchID.String
	}
	if acknowledgedBy.Valid {
		a.AcknowledgedBy = &acknowledgedBy.Int64
	}
	if acknowledgedAt.Valid {
		a.AcknowledgedAt = &acknowledgedAt.Time
	}
	if productName.Valid {
		a.ProductName = &productName.String
	}
	if productSKU.Valid {
		a.ProductSKU = &productSKU.String
	}
	return nil
}

func (r *alertRepository) FindByID(id string) (*models.InventoryAlert, error) {
	var a models.InventoryAlert
	err := scanAlert(r.db.QueryRow(alertSelect+` WHERE a.id = $1`, id), &a)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: finding alert: %v", ErrDatabaseError, err)
	}
	return &a, nil
}

func (r *alertRepository) Open(productID *string) ([]models.InventoryAlert, error) {
	query := alertSelect + ` WHERE a.is_acknowledged = FALSE`
	var args []interface{}
	if productID != nil {
		query += ` AND a.product_id = $1`
		args = append(args, *productID)
	}
	query += ` ORDER BY a.created_at DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: listing open alerts: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	alerts := []models.InventoryAlert{}
	for rows.Next() {
		var a models.InventoryAlert
		if err := scanAlert(rows, &a); err != nil {
			return nil, fmt.Errorf("%w: scanning alert: %v", ErrDatabaseError, err)
		}
		alerts = append(alerts, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating alerts: %v", ErrDatabaseError, err)
	}
	return alerts, nil
}

func (r *alertRepository) Acknowledge(id string, userID int64) error {
	res, err := r.db.Exec(
		`UPDATE inventory_alerts SET is_acknowledged = TRUE, acknowledged_by = $1, acknowledged_at = $2
		 WHERE id = $3 AND is_acknowledged = FALSE`,
		userID, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("%w: acknowledging alert: %v", ErrDatabaseError, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: acknowledging alert: %v", ErrDatabaseError, err)
	}
	if affected == 0 {
		// Either missing or already acknowledged; the caller decides.
		var exists bool
		if err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM inventory_alerts WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("%w: checking alert existence: %v", ErrDatabaseError, err)
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

func (r *alertRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM inventory_alerts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: deleting alert: %v", ErrDatabaseError, err)
	}
	return nil
}
