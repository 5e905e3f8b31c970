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

// RecordMovementRequest carries one stock event into the ledger. Quantity is
// a magnitude; the direction follows the movement type.
type RecordMovementRequest struct {
	ProductID    string              `json:"product_id" binding:"required"`
	LocationID   string              `json:"location_id"`
	MovementType models.MovementType `json:"movement_type" binding:"required"`
	Quantity     int64               `json:"quantity" binding:"required,gt=0"`
	UnitCost     *int64              `json:"unit_cost"`

	// Either an existing batch id, or batch details to register a new lot
	// on an inbound movement of a batch-tracked product.
	BatchID     *string    `json:"batch_id"`
	BatchNumber *string    `json:"batch_number"`
	ExpiryDate  *time.Time `json:"expiry_date"`

	ReferenceID    *string `json:"reference_id"`
	ReferenceType  *string `json:"reference_type"`
	Notes          *string `json:"notes"`
	IdempotencyKey *string `json:"idempotency_key"`
	AllowNegative  bool    `json:"allow_negative"`

	ActorID *int64 `json:"-"`
}

// RecordTransferRequest moves stock between two locations as an atomic
// out/in movement pair sharing a reference id.
type RecordTransferRequest struct {
	ProductID      string  `json:"product_id" binding:"required"`
	FromLocationID string  `json:"from_location_id" binding:"required"`
	ToLocationID   string  `json:"to_location_id" binding:"required"`
	Quantity       int64   `json:"quantity" binding:"required,gt=0"`
	UnitCost       *int64  `json:"unit_cost"`
	Notes          *string `json:"notes"`
	IdempotencyKey *string `json:"idempotency_key"`
	AllowNegative  bool    `json:"allow_negative"`

	ActorID *int64 `json:"-"`
}

type LedgerService interface {
	// RecordMovement appends one movement. The second return value is true
	// when the movement is an idempotent replay of an earlier request.
	RecordMovement(req RecordMovementRequest) (*models.Movement, bool, error)

	// RecordTransfer appends a transfer_out/transfer_in pair atomically
	// and returns both legs, out first.
	RecordTransfer(req RecordTransferRequest) ([]models.Movement, bool, error)

	GetMovement(id string) (*models.Movement, error)
	GetMovementHistory(filters models.MovementFilters) ([]models.Movement, int, error)
}

type ledgerService struct {
	movementRepo repositories.MovementRepository
	batchRepo    repositories.BatchRepository
	catalogRepo  repositories.CatalogRepository
	projections  ProjectionService
	alerts       AlertService
}

// NewLedgerService creates a LedgerService. alerts may be nil; movement
// recording then skips the post-append alert evaluation.
func NewLedgerService(
	movementRepo repositories.MovementRepository,
	batchRepo repositories.BatchRepository,
	catalogRepo repositories.CatalogRepository,
	projections ProjectionService,
	alerts AlertService,
) LedgerService {
	return &ledgerService{
		movementRepo: movementRepo,
		batchRepo:    batchRepo,
		catalogRepo:  catalogRepo,
		projections:  projections,
		alerts:       alerts,
	}
}

func (s *ledgerService) RecordMovement(req RecordMovementRequest) (*models.Movement, bool, error) {
	if !req.MovementType.IsValid() {
		return nil, false, fmt.Errorf("%w: unknown movement type %q", ErrValidation, req.MovementType)
	}
	direction, ok := req.MovementType.FixedDirection()
	if !ok {
		// count_variance is only ever written by count completion.
		return nil, false, fmt.Errorf("%w: movement type %q cannot be recorded directly", ErrValidation, req.MovementType)
	}
	if req.Quantity <= 0 {
		return nil, false, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if req.LocationID == "" {
		req.LocationID = models.DefaultLocationID
	}

	product, err := s.catalogRepo.FindProductByID(req.ProductID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, false, fmt.Errorf("%w: %s", ErrProductNotFound, req.ProductID)
		}
		return nil, false, err
	}
	if _, err := s.catalogRepo.FindLocationByID(req.LocationID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, false, fmt.Errorf("%w: %s", ErrLocationNotFound, req.LocationID)
		}
		return nil, false, err
	}

	batchID, newBatch, err := s.resolveBatch(product, direction, &req)
	if err != nil {
		return nil, false, err
	}

	if req.IdempotencyKey != nil {
		prior, err := s.movementRepo.FindByIdempotencyKey(*req.IdempotencyKey)
		if err == nil {
			return s.replayOrConflict(prior, &req, direction, batchID)
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, false, err
		}
	}

	unlock := movementLocks.Acquire(movementKey(req.ProductID, req.LocationID))
	defer unlock()

	projection, err := s.projections.Project(req.ProductID, req.LocationID)
	if err != nil {
		return nil, false, err
	}
	if direction == models.DirectionOut && !req.AllowNegative {
		if req.Quantity > projection.Available() {
			return nil, false, fmt.Errorf("%w: requested %d, available %d",
				ErrInsufficientStock, req.Quantity, projection.Available())
		}
	}

	movement := &models.Movement{
		ID:             uuid.NewString(),
		ProductID:      req.ProductID,
		LocationID:     req.LocationID,
		BatchID:        batchID,
		MovementType:   req.MovementType,
		Direction:      direction,
		Quantity:       req.Quantity,
		UnitCost:       req.UnitCost,
		ReferenceID:    req.ReferenceID,
		ReferenceType:  req.ReferenceType,
		ActorID:        req.ActorID,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      time.Now(),
	}
	updated := *projection
	updated.Apply(movement)

	err = s.movementRepo.Append(movement, &updated, newBatch)
	if errors.Is(err, repositories.ErrDuplicateKey) && req.IdempotencyKey != nil {
		// Lost a race on the unique index; resolve against the winner.
		prior, findErr := s.movementRepo.FindByIdempotencyKey(*req.IdempotencyKey)
		if findErr != nil {
			return nil, false, err
		}
		return s.replayOrConflict(prior, &req, direction, batchID)
	}
	if err != nil {
		return nil, false, err
	}

	if updated.QuantityOnHand < 0 {
		utils.LogWarn("negative stock detected", map[string]interface{}{
			"product_id":  movement.ProductID,
			"location_id": movement.LocationID,
			"on_hand":     updated.QuantityOnHand,
			"movement_id": movement.ID,
		})
	}

	s.evaluateAlerts(movement.ProductID)
	return movement, false, nil
}

// resolveBatch validates the batch reference on a movement, or builds a new
// batch row for an inbound lot of a batch-tracked product.
func (s *ledgerService) resolveBatch(product *models.Product, direction models.MovementDirection, req *RecordMovementRequest) (*string, *models.Batch, error) {
	if req.BatchID != nil {
		batch, err := s.batchRepo.FindByID(*req.BatchID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, nil, fmt.Errorf("%w: %s", ErrBatchNotFound, *req.BatchID)
			}
			return nil, nil, err
		}
		if batch.ProductID != req.ProductID {
			return nil, nil, fmt.Errorf("%w: batch %s belongs to a different product", ErrValidation, batch.ID)
		}
		return req.BatchID, nil, nil
	}

	if req.BatchNumber == nil {
		return nil, nil, nil
	}
	if direction != models.DirectionIn {
		return nil, nil, fmt.Errorf("%w: batch_number is only valid on inbound movements", ErrValidation)
	}
	if !product.BatchTracked {
		return nil, nil, fmt.Errorf("%w: product %s is not batch tracked", ErrValidation, product.ID)
	}

	existing, err := s.batchRepo.FindByNumber(req.ProductID, req.LocationID, *req.BatchNumber)
	if err == nil {
		return &existing.ID, nil, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, nil, err
	}
	if req.UnitCost == nil {
		return nil, nil, fmt.Errorf("%w: unit_cost is required when registering a new batch", ErrValidation)
	}
	batch := &models.Batch{
		ID:          uuid.NewString(),
		ProductID:   req.ProductID,
		LocationID:  req.LocationID,
		BatchNumber: *req.BatchNumber,
		ExpiryDate:  req.ExpiryDate,
		UnitCost:    *req.UnitCost,
	}
	return &batch.ID, batch, nil
}

// replayOrConflict decides whether an existing movement under the same
// idempotency key is a replay (same payload, return it) or a collision.
func (s *ledgerService) replayOrConflict(prior *models.Movement, req *RecordMovementRequest, direction models.MovementDirection, batchID *string) (*models.Movement, bool, error) {
	candidate := &models.Movement{
		ProductID:    req.ProductID,
		LocationID:   req.LocationID,
		BatchID:      batchID,
		MovementType: req.MovementType,
		Direction:    direction,
		Quantity:     req.Quantity,
		UnitCost:     req.UnitCost,
	}
	if prior.SamePayload(candidate) {
		return prior, true, nil
	}
	return nil, false, fmt.Errorf("%w: key %q", ErrIdempotencyConflict, *req.IdempotencyKey)
}

func (s *ledgerService) RecordTransfer(req RecordTransferRequest) ([]models.Movement, bool, error) {
	if req.Quantity <= 0 {
		return nil, false, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if req.FromLocationID == req.ToLocationID {
		return nil, false, fmt.Errorf("%w: source and destination locations are the same", ErrValidation)
	}
	if _, err := s.catalogRepo.FindProductByID(req.ProductID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, false, fmt.Errorf("%w: %s", ErrProductNotFound, req.ProductID)
		}
		return nil, false, err
	}
	for _, loc := range []string{req.FromLocationID, req.ToLocationID} {
		if _, err := s.catalogRepo.FindLocationByID(loc); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, false, fmt.Errorf("%w: %s", ErrLocationNotFound, loc)
			}
			return nil, false, err
		}
	}

	if req.IdempotencyKey != nil {
		prior, err := s.movementRepo.FindByIdempotencyKey(*req.IdempotencyKey)
		if err == nil {
			return s.replayTransfer(prior, &req)
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, false, err
		}
	}

	unlock := movementLocks.Acquire(
		movementKey(req.ProductID, req.FromLocationID),
		movementKey(req.ProductID, req.ToLocationID),
	)
	defer unlock()

	source, err := s.projections.Project(req.ProductID, req.FromLocationID)
	if err != nil {
		return nil, false, err
	}
	if !req.AllowNegative && req.Quantity > source.Available() {
		return nil, false, fmt.Errorf("%w: requested %d, available %d at %s",
			ErrInsufficientStock, req.Quantity, source.Available(), req.FromLocationID)
	}
	dest, err := s.projections.Project(req.ProductID, req.ToLocationID)
	if err != nil {
		return nil, false, err
	}

	unitCost := req.UnitCost
	if unitCost == nil {
		if cost, ok, err := s.movementRepo.LatestInboundUnitCost(req.ProductID, req.FromLocationID); err != nil {
			return nil, false, err
		} else if ok {
			unitCost = &cost
		}
	}

	refID := uuid.NewString()
	refType := "transfer"
	now := time.Now()
	out := models.Movement{
		ID:             uuid.NewString(),
		ProductID:      req.ProductID,
		LocationID:     req.FromLocationID,
		MovementType:   models.MovementTransferOut,
		Direction:      models.DirectionOut,
		Quantity:       req.Quantity,
		UnitCost:       unitCost,
		ReferenceID:    &refID,
		ReferenceType:  &refType,
		ActorID:        req.ActorID,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
	}
	in := models.Movement{
		ID:            uuid.NewString(),
		ProductID:     req.ProductID,
		LocationID:    req.ToLocationID,
		MovementType:  models.MovementTransferIn,
		Direction:     models.DirectionIn,
		Quantity:      req.Quantity,
		UnitCost:      unitCost,
		ReferenceID:   &refID,
		ReferenceType: &refType,
		ActorID:       req.ActorID,
		Notes:         req.Notes,
		CreatedAt:     now,
	}

	updatedSource := *source
	updatedSource.Apply(&out)
	updatedDest := *dest
	updatedDest.Apply(&in)

	err = s.movementRepo.AppendPair(&out, &in, &updatedSource, &updatedDest)
	if errors.Is(err, repositories.ErrDuplicateKey) && req.IdempotencyKey != nil {
		prior, findErr := s.movementRepo.FindByIdempotencyKey(*req.IdempotencyKey)
		if findErr != nil {
			return nil, false, err
		}
		return s.replayTransfer(prior, &req)
	}
	if err != nil {
		return nil, false, err
	}

	s.evaluateAlerts(req.ProductID)
	return []models.Movement{out, in}, false, nil
}

// replayTransfer reassembles a previously recorded pair from the out leg
// found under the idempotency key.
func (s *ledgerService) replayTransfer(outLeg *models.Movement, req *RecordTransferRequest) ([]models.Movement, bool, error) {
	if outLeg.MovementType != models.MovementTransferOut ||
		outLeg.ProductID != req.ProductID ||
		outLeg.LocationID != req.FromLocationID ||
		outLeg.Quantity != req.Quantity {
		return nil, false, fmt.Errorf("%w: key %q", ErrIdempotencyConflict, *req.IdempotencyKey)
	}
	if outLeg.ReferenceID == nil {
		return nil, false, fmt.Errorf("%w: key %q", ErrIdempotencyConflict, *req.IdempotencyKey)
	}
	pair, err := s.movementRepo.FindByReference(*outLeg.ReferenceID)
	if err != nil {
		return nil, false, err
	}
	ordered := make([]models.Movement, 0, 2)
	for i := range pair {
		if pair[i].Direction == models.DirectionOut {
			ordered = append([]models.Movement{pair[i]}, ordered...)
		} else {
			ordered = append(ordered, pair[i])
		}
	}
	return ordered, true, nil
}

func (s *ledgerService) GetMovement(id string) (*models.Movement, error) {
	m, err := s.movementRepo.FindByID(id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMovementNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *ledgerService) GetMovementHistory(filters models.MovementFilters) ([]models.Movement, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 {
		filters.PageSize = 50
	}
	return s.movementRepo.GetMovements(filters)
}

// evaluateAlerts runs the alert evaluator after a write. Failures are logged
// and never fail the movement itself.
func (s *ledgerService) evaluateAlerts(productID string) {
	if s.alerts == nil {
		return
	}
	if _, err := s.alerts.Evaluate(productID); err != nil {
		utils.LogError(err, "alert evaluation after movement failed")
	}
}
