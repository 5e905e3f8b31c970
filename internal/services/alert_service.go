package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pos_ledger_backend/internal/models"
	"pos_ledger_backend/internal/repositories"
)

type AlertService interface {
	// Evaluate reconciles a product's open alerts against its current
	// state. Idempotent: evaluating twice with no state change in between
	// creates and clears nothing.
	Evaluate(productID string) (*models.AlertDelta, error)

	// EvaluateAll runs Evaluate for every catalog product.
	EvaluateAll() (*models.AlertDelta, error)

	GetAlerts(productID *string) ([]models.InventoryAlert, error)

	// Acknowledge marks an alert seen. Idempotent.
	Acknowledge(alertID string, userID int64) (*models.InventoryAlert, error)
}

type alertService struct {
	alertRepo      repositories.AlertRepository
	projectionRepo repositories.ProjectionRepository
	batchRepo      repositories.BatchRepository
	catalogRepo    repositories.CatalogRepository

	expiryWarningDays int
}

// NewAlertService creates an AlertService. expiryWarningDays is the fallback
// warning window for products without their own setting.
func NewAlertService(
	alertRepo repositories.AlertRepository,
	projectionRepo repositories.ProjectionRepository,
	batchRepo repositories.BatchRepository,
	catalogRepo repositories.CatalogRepository,
	expiryWarningDays int,
) AlertService {
	return &alertService{
		alertRepo:         alertRepo,
		projectionRepo:    projectionRepo,
		batchRepo:         batchRepo,
		catalogRepo:       catalogRepo,
		expiryWarningDays: expiryWarningDays,
	}
}

// alertKey identifies one desired alert condition for dedup purposes.
type alertKey struct {
	Type    models.AlertType
	BatchID string
}

func (s *alertService) Evaluate(productID string) (*models.AlertDelta, error) {
	product, err := s.catalogRepo.FindProductByID(productID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		return nil, err
	}

	desired, err := s.desiredAlerts(product)
	if err != nil {
		return nil, err
	}
	open, err := s.alertRepo.Open(&productID)
	if err != nil {
		return nil, err
	}

	openByKey := make(map[alertKey]*models.InventoryAlert, len(open))
	for i := range open {
		openByKey[keyOf(&open[i])] = &open[i]
	}

	delta := &models.AlertDelta{Created: []models.InventoryAlert{}, Cleared: []models.InventoryAlert{}}
	for key, alert := range desired {
		if _, exists := openByKey[key]; exists {
			continue
		}
		alert.ID = uuid.NewString()
		alert.CreatedAt = time.Now()
		if err := s.alertRepo.Create(&alert); err != nil {
			return nil, err
		}
		delta.Created = append(delta.Created, alert)
	}
	for key, alert := range openByKey {
		if _, stillBreached := desired[key]; stillBreached {
			continue
		}
		if err := s.alertRepo.Delete(alert.ID); err != nil {
			return nil, err
		}
		delta.Cleared = append(delta.Cleared, *alert)
	}
	return delta, nil
}

// desiredAlerts computes the alert conditions currently true for a product.
// Quantity thresholds use the total on hand across locations; expiry
// conditions are per stocked batch.
func (s *alertService) desiredAlerts(product *models.Product) (map[alertKey]models.InventoryAlert, error) {
	desired := make(map[alertKey]models.InventoryAlert)

	projections, err := s.projectionRepo.ListByProduct(product.ID)
	if err != nil {
		return nil, err
	}
	var totalOnHand int64
	for i := range projections {
		totalOnHand += projections[i].QuantityOnHand
	}

	if totalOnHand <= 0 && len(projections) > 0 {
		desired[alertKey{Type: models.AlertOutOfStock}] = models.InventoryAlert{
			ProductID:    product.ID,
			AlertType:    models.AlertOutOfStock,
			CurrentValue: totalOnHand,
		}
	} else if product.MinStockLevel != nil && totalOnHand > 0 && totalOnHand <= *product.MinStockLevel {
		desired[alertKey{Type: models.AlertLowStock}] = models.InventoryAlert{
			ProductID:      product.ID,
			AlertType:      models.AlertLowStock,
			ThresholdValue: *product.MinStockLevel,
			CurrentValue:   totalOnHand,
		}
	}

	batches, err := s.batchRepo.ListByProductWithStock(product.ID)
	if err != nil {
		return nil, err
	}
	window := s.expiryWarningDays
	if product.ExpiryWarningDays != nil {
		window = *product.ExpiryWarningDays
	}
	now := time.Now()
	for i := range batches {
		b := batches[i]
		days, ok := b.DaysUntilExpiry(now)
		if !ok {
			continue
		}
		batchID := b.ID
		if b.IsExpired(now) {
			desired[alertKey{Type: models.AlertExpired, BatchID: batchID}] = models.InventoryAlert{
				ProductID:    product.ID,
				BatchID:      &batchID,
				AlertType:    models.AlertExpired,
				CurrentValue: b.QuantityOnHand,
			}
		} else if days <= window {
			desired[alertKey{Type: models.AlertExpiringSoon, BatchID: batchID}] = models.InventoryAlert{
				ProductID:      product.ID,
				BatchID:        &batchID,
				AlertType:      models.AlertExpiringSoon,
				ThresholdValue: int64(window),
				CurrentValue:   int64(days),
			}
		}
	}
	return desired, nil
}

func keyOf(a *models.InventoryAlert) alertKey {
	k := alertKey{Type: a.AlertType}
	if a.BatchID != nil {
		k.BatchID = *a.BatchID
	}
	return k
}

func (s *alertService) EvaluateAll() (*models.AlertDelta, error) {
	const pageSize = 500
	total := &models.AlertDelta{Created: []models.InventoryAlert{}, Cleared: []models.InventoryAlert{}}
	for page := 1; ; page++ {
		products, count, err := s.catalogRepo.GetProducts(page, pageSize)
		if err != nil {
			return nil, err
		}
		for i := range products {
			delta, err := s.Evaluate(products[i].ID)
			if err != nil {
				return nil, err
			}
			total.Created = append(total.Created, delta.Created...)
			total.Cleared = append(total.Cleared, delta.Cleared...)
		}
		if len(products) == 0 || page*pageSize >= count {
			break
		}
	}
	return total, nil
}

func (s *alertService) GetAlerts(productID *string) ([]models.InventoryAlert, error) {
	return s.alertRepo.Open(productID)
}

func (s *alertService) Acknowledge(alertID string, userID int64) (*models.InventoryAlert, error) {
	if err := s.alertRepo.Acknowledge(alertID, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAlertNotFound, alertID)
		}
		return nil, err
	}
	return s.alertRepo.FindByID(alertID)
}
