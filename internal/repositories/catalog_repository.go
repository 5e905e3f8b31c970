package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"pos_ledger_backend/internal/models"
)

// CatalogRepository is the thin catalog collaborator surface the ledger
// depends on: existence checks, prices, thresholds, and minimal CRUD so the
// system is operable without the full product-management frontend.
type CatalogRepository interface {
	CreateProduct(product *models.Product) error
	FindProductByID(id string) (*models.Product, error)
	GetProducts(page, pageSize int) ([]models.Product, int, error)

	CreateLocation(location *models.Location) error
	FindLocationByID(id string) (*models.Location, error)
	GetLocations() ([]models.Location, error)
}

type catalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a new Postgres-backed CatalogRepository.
func NewCatalogRepository(db *sql.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) CreateProduct(product *models.Product) error {
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	_, err := r.db.Exec(
		`INSERT INTO products (id, sku, name, selling_price, min_stock_level, expiry_warning_days, batch_tracked, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		product.ID, product.SKU, product.Name, product.SellingPrice, product.MinStockLevel,
		product.ExpiryWarningDays, product.BatchTracked, product.IsActive, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: product sku", ErrDuplicateKey)
		}
		return fmt.Errorf("%w: inserting product: %v", ErrDatabaseError, err)
	}
	return nil
}

func scanProduct(row interface{ Scan(dest ...interface{}) error }, p *models.Product) error {
	var sku sql.NullString
	var minStockLevel sql.NullInt64
	var expiryWarningDays sql.NullInt64

	err := row.Scan(
		&p.ID, &sku, &p.Name, &p.SellingPrice, &minStockLevel, &expiryWarningDays,
		&p.BatchTracked, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if sku.Valid {
		p.SKU = &sku.String
	}
	if minStockLevel.Valid {
		p.MinStockLevel = &minStockLevel.Int64
	}
	if expiryWarningDays.Valid {
		days := int(expiryWarningDays.Int64)
		p.ExpiryWarningDays = &days
	}
	return nil
}

const productColumns = `id, sku, name, selling_price, min_stock_level, expiry_warning_days, batch_tracked, is_active, created_at, updated_at`

func (r *catalogRepository) FindProductByID(id string) (*models.Product, error) {
	var p models.Product
	err := scanProduct(r.db.QueryRow(`SELECT `+productColumns+` FROM products WHERE id = $1`, id), &p)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: finding product: %v", ErrDatabaseError, err)
	}
	return &p, nil
}

func (r *catalogRepository) GetProducts(page, pageSize int) ([]models.Product, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 100
	}

	rows, err := r.db.Query(
		`SELECT `+productColumns+`, COUNT(*) OVER() AS total_count
		 FROM products ORDER BY name ASC LIMIT $1 OFFSET $2`,
		pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: listing products: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	products := []models.Product{}
	totalCount := 0
	for rows.Next() {
		var p models.Product
		var sku sql.NullString
		var minStockLevel, expiryWarningDays sql.NullInt64

		if err := rows.Scan(
			&p.ID, &sku, &p.Name, &p.SellingPrice, &minStockLevel, &expiryWarningDays,
			&p.BatchTracked, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("%w: scanning product: %v", ErrDatabaseError, err)
		}
		if sku.Valid {
			p.SKU = &sku.String
		}
		if minStockLevel.Valid {
			p.MinStockLevel = &minStockLevel.Int64
		}
		if expiryWarningDays.Valid {
			days := int(expiryWarningDays.Int64)
			p.ExpiryWarningDays = &days
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating products: %v", ErrDatabaseError, err)
	}
	return products, totalCount, nil
}

func (r *catalogRepository) CreateLocation(location *models.Location) error {
	if location.CreatedAt.IsZero() {
		location.CreatedAt = time.Now()
	}
	_, err := r.db.Exec(
		`INSERT INTO locations (id, name, created_at) VALUES ($1, $2, $3)`,
		location.ID, location.Name, location.CreatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: location id", ErrDuplicateKey)
		}
		return fmt.Errorf("%w: inserting location: %v", ErrDatabaseError, err)
	}
	return nil
}

func (r *catalogRepository) FindLocationByID(id string) (*models.Location, error) {
	var l models.Location
	err := r.db.QueryRow(`SELECT id, name, created_at FROM locations WHERE id = $1`, id).
		Scan(&l.ID, &l.Name, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: finding location: %v", ErrDatabaseError, err)
	}
	return &l, nil
}

func (r *catalogRepository) GetLocations() ([]models.Location, error) {
	rows, err := r.db.Query(`SELECT id, name, created_at FROM locations ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing locations: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	locations := []models.Location{}
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning location: %v", ErrDatabaseError, err)
		}
		locations = append(locations, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating locations: %v", ErrDatabaseError, err)
	}
	return locations, nil
}
