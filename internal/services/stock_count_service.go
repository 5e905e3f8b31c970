package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pos_ledger_backend/internal/models"
	"pos_ledger_backend/internal/repositories"
	"pos_ledger_backend/pkg/utils"
)

// SubmitStockCountRequest opens a draft count for one location.
type SubmitStockCountRequest struct {
	LocationID string                  `json:"location_id"`
	CountDate  *time.Time              `json:"count_date"`
	Notes      *string                 `json:"notes"`
	Items      []StockCountItemRequest `json:"items" binding:"required"`

	CountedBy *int64 `json:"-"`
}

// StockCountItemRequest is one counted line as submitted. Expectations are
// not taken here; they are read from the projector at completion time.
type StockCountItemRequest struct {
	ProductID       string  `json:"product_id" binding:"required"`
	BatchID         *string `json:"batch_id"`
	CountedQuantity int64   `json:"counted_quantity"`
	Notes           *string `json:"notes"`
}

type StockCountService interface {
	// Submit stores a draft count. Nothing moves until completion.
	Submit(req SubmitStockCountRequest) (*models.StockCount, error)

	GetStockCount(id string) (*models.StockCount, error)
	ListStockCounts(locationID *string, status *models.StockCountStatus, page, pageSize int) ([]models.StockCount, int, error)

	// Complete freezes expectations from the projector, computes
	// variances, and appends one count_variance movement per non-zero
	// variance, all atomically. Completed counts are terminal.
	Complete(id string, actorID *int64) (*models.StockCount, []models.Movement, error)
}

type stockCountService struct {
	countRepo    repositories.StockCountRepository
	movementRepo repositories.MovementRepository
	batchRepo    repositories.BatchRepository
	catalogRepo  repositories.CatalogRepository
	projections  ProjectionService
	alerts       AlertService
}

// NewStockCountService creates a StockCountService. alerts may be nil.
func NewStockCountService(
	countRepo repositories.StockCountRepository,
	movementRepo repositories.MovementRepository,
	batchRepo repositories.BatchRepository,
	catalogRepo repositories.CatalogRepository,
	projections ProjectionService,
	alerts AlertService,
) StockCountService {
	return &stockCountService{
		countRepo:    countRepo,
		movementRepo: movementRepo,
		batchRepo:    batchRepo,
		catalogRepo:  catalogRepo,
		projections:  projections,
		alerts:       alerts,
	}
}

func (s *stockCountService) Submit(req SubmitStockCountRequest) (*models.StockCount, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: a stock count needs at least one item", ErrValidation)
	}
	if req.LocationID == "" {
		req.LocationID = models.DefaultLocationID
	}
	if _, err := s.catalogRepo.FindLocationByID(req.LocationID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrLocationNotFound, req.LocationID)
		}
		return nil, err
	}

	countID := uuid.NewString()
	seen := make(map[string]bool, len(req.Items))
	items := make([]models.StockCountItem, 0, len(req.Items))
	for _, line := range req.Items {
		if line.CountedQuantity < 0 {
			return nil, fmt.Errorf("%w: counted quantity cannot be negative", ErrValidation)
		}
		if _, err := s.catalogRepo.FindProductByID(line.ProductID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
			}
			return nil, err
		}
		lineKey := line.ProductID
		if line.BatchID != nil {
			batch, err := s.batchRepo.FindByID(*line.BatchID)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, *line.BatchID)
				}
				return nil, err
			}
			if batch.ProductID != line.ProductID {
				return nil, fmt.Errorf("%w: batch %s belongs to a different product", ErrValidation, batch.ID)
			}
			if batch.LocationID != req.LocationID {
				return nil, fmt.Errorf("%w: batch %s belongs to a different location", ErrValidation, batch.ID)
			}
			lineKey += "|" + *line.BatchID
		}
		if seen[lineKey] {
			return nil, fmt.Errorf("%w: duplicate count line for product %s", ErrValidation, line.ProductID)
		}
		seen[lineKey] = true

		items = append(items, models.StockCountItem{
			ID:              uuid.NewString(),
			StockCountID:    countID,
			ProductID:       line.ProductID,
			BatchID:         line.BatchID,
			CountedQuantity: line.CountedQuantity,
			Notes:           line.Notes,
		})
	}

	countDate := time.Now()
	if req.CountDate != nil {
		countDate = *req.CountDate
	}
	count := &models.StockCount{
		ID:         countID,
		LocationID: req.LocationID,
		CountDate:  countDate,
		CountedBy:  req.CountedBy,
		Status:     models.StockCountDraft,
		Notes:      req.Notes,
		Items:      items,
	}
	if err := s.countRepo.Create(count); err != nil {
		return nil, err
	}
	return count, nil
}

func (s *stockCountService) GetStockCount(id string) (*models.StockCount, error) {
	count, err := s.countRepo.FindByID(id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrStockCountNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return count, nil
}

func (s *stockCountService) ListStockCounts(locationID *string, status *models.StockCountStatus, page, pageSize int) ([]models.StockCount, int, error) {
	return s.countRepo.List(locationID, status, page, pageSize)
}

func (s *stockCountService) Complete(id string, actorID *int64) (*models.StockCount, []models.Movement, error) {
	count, err := s.countRepo.FindByID(id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", ErrStockCountNotFound, id)
	}
	if err != nil {
		return nil, nil, err
	}
	if count.Status != models.StockCountDraft {
		return nil, nil, fmt.Errorf("%w: %s", ErrCountAlreadyCompleted, id)
	}

	keys := make([]string, 0, len(count.Items))
	for i := range count.Items {
		keys = append(keys, movementKey(count.Items[i].ProductID, count.LocationID))
	}
	unlock := movementLocks.Acquire(keys...)
	defer unlock()

	now := time.Now()
	refType := "stock_count"
	movements := []models.Movement{}
	updated := make(map[string]*models.ProjectedInventoryItem)

	for i := range count.Items {
		item := &count.Items[i]

		expected, batchCost, err := s.expectedQuantity(item, count.LocationID)
		if err != nil {
			return nil, nil, err
		}
		item.ExpectedQuantity = expected
		item.Variance = item.CountedQuantity - expected
		if item.Variance == 0 {
			continue
		}

		direction := models.DirectionIn
		if item.Variance < 0 {
			direction = models.DirectionOut
		}
		magnitude := item.Variance
		if magnitude < 0 {
			magnitude = -magnitude
		}
		var unitCost *int64
		if direction == models.DirectionIn {
			unitCost = batchCost
			if unitCost == nil {
				if cost, ok, err := s.movementRepo.LatestInboundUnitCost(item.ProductID, count.LocationID); err != nil {
					return nil, nil, err
				} else if ok {
					unitCost = &cost
				}
			}
		}

		movement := models.Movement{
			ID:            uuid.NewString(),
			ProductID:     item.ProductID,
			LocationID:    count.LocationID,
			BatchID:       item.BatchID,
			MovementType:  models.MovementCountVariance,
			Direction:     direction,
			Quantity:      magnitude,
			UnitCost:      unitCost,
			ReferenceID:   &count.ID,
			ReferenceType: &refType,
			ActorID:       actorID,
			Notes:         item.Notes,
			CreatedAt:     now,
		}

		key := movementKey(item.ProductID, count.LocationID)
		projection, ok := updated[key]
		if !ok {
			base, err := s.projections.Project(item.ProductID, count.LocationID)
			if err != nil {
				return nil, nil, err
			}
			clone := *base
			projection = &clone
			updated[key] = projection
		}
		projection.Apply(&movement)
		movements = append(movements, movement)
	}

	count.Status = models.StockCountCompleted
	count.CompletedAt = &now
	if count.CountedBy == nil {
		count.CountedBy = actorID
	}

	projections := make([]models.ProjectedInventoryItem, 0, len(updated))
	for _, p := range updated {
		projections = append(projections, *p)
	}
	err = s.countRepo.Complete(count, movements, projections)
	if errors.Is(err, repositories.ErrStaleState) {
		return nil, nil, fmt.Errorf("%w: %s", ErrCountAlreadyCompleted, id)
	}
	if err != nil {
		return nil, nil, err
	}

	s.evaluateAlerts(count.Items)

	final, err := s.countRepo.FindByID(id)
	if err != nil {
		return count, movements, nil
	}
	return final, movements, nil
}

// expectedQuantity reads what the ledger says should be on hand for a count
// line. Batch lines fold the batch's own movements; product lines use the
// key projection. The second return is the batch cost, if any, for pricing
// an inbound variance.
func (s *stockCountService) expectedQuantity(item *models.StockCountItem, locationID string) (int64, *int64, error) {
	if item.BatchID != nil {
		batch, err := s.batchRepo.FindByID(*item.BatchID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return 0, nil, fmt.Errorf("%w: %s", ErrBatchNotFound, *item.BatchID)
			}
			return 0, nil, err
		}
		ms, err := s.movementRepo.LoadForBatch(*item.BatchID)
		if err != nil {
			return 0, nil, err
		}
		var qty int64
		for i := range ms {
			qty += ms[i].SignedQuantity()
		}
		cost := batch.UnitCost
		return qty, &cost, nil
	}

	projection, err := s.projections.Project(item.ProductID, locationID)
	if err != nil {
		return 0, nil, err
	}
	return projection.QuantityOnHand, nil, nil
}

func (s *stockCountService) evaluateAlerts(items []models.StockCountItem) {
	if s.alerts == nil {
		return
	}
	done := make(map[string]bool, len(items))
	for i := range items {
		pid := items[i].ProductID
		if done[pid] {
			continue
		}
		done[pid] = true
		if _, err := s.alerts.Evaluate(pid); err != nil {
			utils.LogError(err, "alert evaluation after count completion failed")
		}
	}
}
