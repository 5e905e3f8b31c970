package services

import (
	"errors"
	"fmt"
	"time"

	"pos_ledger_backend/internal/models"
	"pos_ledger_backend/internal/repositories"
	"pos_ledger_backend/pkg/utils"
)

// RebuildResult reports a full replay of one key, including any drift the
// replay found between the stored checkpoint and the movement log.
type RebuildResult struct {
	Item           *models.ProjectedInventoryItem `json:"item"`
	PreviousOnHand int64                          `json:"previous_on_hand"`
	Drift          int64                          `json:"drift"` // rebuilt - checkpointed
}

type ProjectionService interface {
	// Project returns the current quantity view for a key, replaying any
	// movements past the stored checkpoint. A key with no movements
	// projects to zero.
	Project(productID, locationID string) (*models.ProjectedInventoryItem, error)

	// Rebuild discards the checkpoint and replays the full movement log
	// for a key. The two paths must agree; a non-zero drift means the
	// checkpoint had been corrupted and is now corrected.
	Rebuild(productID, locationID string) (*RebuildResult, error)

	// ProjectBatch folds the movements referencing one batch into its
	// derived on-hand quantity.
	ProjectBatch(batchID string) (int64, error)

	GetInventory(filters models.InventoryFilters) ([]models.ProjectedInventoryItem, int, error)
	AdjustReserved(productID, locationID string, delta int64) (*models.ProjectedInventoryItem, error)
}

type projectionService struct {
	movementRepo   repositories.MovementRepository
	projectionRepo repositories.ProjectionRepository
	batchRepo      repositories.BatchRepository
	catalogRepo    repositories.CatalogRepository

	expiryWarningDays int
}

// NewProjectionService creates a ProjectionService. expiryWarningDays is the
// fallback warning window for products without their own setting.
func NewProjectionService(
	movementRepo repositories.MovementRepository,
	projectionRepo repositories.ProjectionRepository,
	batchRepo repositories.BatchRepository,
	catalogRepo repositories.CatalogRepository,
	expiryWarningDays int,
) ProjectionService {
	return &projectionService{
		movementRepo:      movementRepo,
		projectionRepo:    projectionRepo,
		batchRepo:         batchRepo,
		catalogRepo:       catalogRepo,
		expiryWarningDays: expiryWarningDays,
	}
}

func (s *projectionService) Project(productID, locationID string) (*models.ProjectedInventoryItem, error) {
	item, err := s.projectionRepo.Get(productID, locationID)
	if errors.Is(err, repositories.ErrNotFound) {
		item = &models.ProjectedInventoryItem{ProductID: productID, LocationID: locationID}
	} else if err != nil {
		return nil, err
	}

	tail, err := s.movementRepo.LoadForKeyAfter(productID, locationID, item.LastSeq)
	if err != nil {
		return nil, err
	}
	for i := range tail {
		item.Apply(&tail[i])
	}
	item.QuantityAvailable = item.Available()

	if item.QuantityOnHand < 0 {
		item.NegativeStock = true
		utils.LogWarn("negative stock detected", map[string]interface{}{
			"product_id":  productID,
			"location_id": locationID,
			"on_hand":     item.QuantityOnHand,
		})
	}

	if len(tail) > 0 {
		item.UpdatedAt = time.Now()
		if err := s.projectionRepo.Upsert(item); err != nil {
			return nil, err
		}
	}
	return item, nil
}

func (s *projectionService) Rebuild(productID, locationID string) (*RebuildResult, error) {
	var previous int64
	var reserved int64
	cached, err := s.projectionRepo.Get(productID, locationID)
	if err == nil {
		previous = cached.QuantityOnHand
		reserved = cached.QuantityReserved
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	all, err := s.movementRepo.LoadForKey(productID, locationID)
	if err != nil {
		return nil, err
	}
	rebuilt := &models.ProjectedInventoryItem{
		ProductID:        productID,
		LocationID:       locationID,
		QuantityReserved: reserved,
	}
	for i := range all {
		rebuilt.Apply(&all[i])
	}
	rebuilt.QuantityAvailable = rebuilt.Available()
	rebuilt.NegativeStock = rebuilt.QuantityOnHand < 0
	rebuilt.UpdatedAt = time.Now()

	if err := s.projectionRepo.Upsert(rebuilt); err != nil {
		return nil, err
	}

	drift := rebuilt.QuantityOnHand - previous
	if drift != 0 {
		utils.LogWarn("projection drift corrected on rebuild", map[string]interface{}{
			"product_id":  productID,
			"location_id": locationID,
			"drift":       drift,
		})
	}
	return &RebuildResult{Item: rebuilt, PreviousOnHand: previous, Drift: drift}, nil
}

func (s *projectionService) ProjectBatch(batchID string) (int64, error) {
	if _, err := s.batchRepo.FindByID(batchID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return 0, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
		}
		return 0, err
	}
	ms, err := s.movementRepo.LoadForBatch(batchID)
	if err != nil {
		return 0, err
	}
	var qty int64
	for i := range ms {
		qty += ms[i].SignedQuantity()
	}
	return qty, nil
}

func (s *projectionService) GetInventory(filters models.InventoryFilters) ([]models.ProjectedInventoryItem, int, error) {
	if filters.Expired || filters.ExpiringSoon {
		return s.listByExpiry(filters)
	}
	return s.projectionRepo.List(filters)
}

// listByExpiry narrows the projected view to products that have at least one
// stocked batch in the requested expiry state. Batch quantities are derived,
// so the batch list is the authority here.
func (s *projectionService) listByExpiry(filters models.InventoryFilters) ([]models.ProjectedInventoryItem, int, error) {
	batches, err := s.batchRepo.ListWithStock()
	if err != nil {
		return nil, 0, err
	}
	now := time.Now()
	wanted := make(map[string]bool)
	for i := range batches {
		b := &batches[i]
		if filters.Expired && b.IsExpired(now) {
			wanted[b.ProductID] = true
			continue
		}
		if filters.ExpiringSoon && !b.IsExpired(now) {
			days, ok := b.DaysUntilExpiry(now)
			if !ok {
				continue
			}
			window := s.expiryWarningDays
			if p, err := s.catalogRepo.FindProductByID(b.ProductID); err == nil && p.ExpiryWarningDays != nil {
				window = *p.ExpiryWarningDays
			}
			if days <= window {
				wanted[b.ProductID] = true
			}
		}
	}

	base := filters
	base.Expired = false
	base.ExpiringSoon = false
	base.PageSize = 500
	matched := []models.ProjectedInventoryItem{}
	for page := 1; ; page++ {
		base.Page = page
		items, total, err := s.projectionRepo.List(base)
		if err != nil {
			return nil, 0, err
		}
		for i := range items {
			if wanted[items[i].ProductID] {
				matched = append(matched, items[i])
			}
		}
		if len(items) == 0 || page*base.PageSize >= total {
			break
		}
	}
	total := len(matched)
	if filters.Page > 0 && filters.PageSize > 0 {
		start := (filters.Page - 1) * filters.PageSize
		if start >= total {
			return []models.ProjectedInventoryItem{}, total, nil
		}
		end := start + filters.PageSize
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func (s *projectionService) AdjustReserved(productID, locationID string, delta int64) (*models.ProjectedInventoryItem, error) {
	if _, err := s.catalogRepo.FindProductByID(productID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		return nil, err
	}
	return s.projectionRepo.AdjustReserved(productID, locationID, delta)
}
