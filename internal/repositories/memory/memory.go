// Package memory provides in-memory implementations of the repository
// interfaces, for tests and local development without Postgres. Atomicity
// guarantees match the Postgres implementations: multi-row writes happen
// under one lock, all-or-nothing.
package memory

import (
	"sort"
	"sync"
	"time"

	"pos_ledger_backend/internal/models"
	"pos_ledger_backend/internal/repositories"
)

type projKey struct {
	ProductID  string
	LocationID string
}

// Store holds all in-memory state. Repository views share the same store
// and lock, mirroring how the SQL repositories share one database.
type Store struct {
	mu          sync.RWMutex
	seq         int64
	movements   []models.Movement
	idempotency map[string]string // idempotency key -> movement id
	projections map[projKey]models.ProjectedInventoryItem
	batches     map[string]models.Batch
	counts      map[string]models.StockCount
	alerts      map[string]models.InventoryAlert
	products    map[string]models.Product
	locations   map[string]models.Location
	users       map[int64]models.User
	nextUserID  int64
}

// NewStore creates an empty store with the default location seeded.
func NewStore() *Store {
	s := &Store{
		idempotency: make(map[string]string),
		projections: make(map[projKey]models.ProjectedInventoryItem),
		batches:     make(map[string]models.Batch),
		counts:      make(map[string]models.StockCount),
		alerts:      make(map[string]models.InventoryAlert),
		products:    make(map[string]models.Product),
		locations:   make(map[string]models.Location),
		users:       make(map[int64]models.User),
	}
	s.locations[models.DefaultLocationID] = models.Location{
		ID:        models.DefaultLocationID,
		Name:      "Default",
		CreatedAt: time.Now(),
	}
	return s
}

func (s *Store) MovementRepo() repositories.MovementRepository     { return &movementRepo{s} }
func (s *Store) ProjectionRepo() repositories.ProjectionRepository { return &projectionRepo{s} }
func (s *Store) BatchRepo() repositories.BatchRepository           { return &batchRepo{s} }
func (s *Store) StockCountRepo() repositories.StockCountRepository { return &stockCountRepo{s} }
func (s *Store) AlertRepo() repositories.AlertRepository           { return &alertRepo{s} }
func (s *Store) CatalogRepo() repositories.CatalogRepository       { return &catalogRepo{s} }
func (s *Store) AuthRepo() repositories.AuthRepository             { return &authRepo{s} }

// =========================================================================
// MOVEMENTS
// =========================================================================

type movementRepo struct {
	s *Store
}

// putProjectionLocked stores a checkpoint, keeping the reservation counter
// of any existing row. Reserved changes only through AdjustReserved.
func putProjectionLocked(s *Store, p *models.ProjectedInventoryItem) {
	k := projKey{p.ProductID, p.LocationID}
	if existing, ok := s.projections[k]; ok {
		p.QuantityReserved = existing.QuantityReserved
	}
	p.UpdatedAt = time.Now()
	s.projections[k] = *p
}

func (r *movementRepo) appendLocked(m *models.Movement) error {
	if m.IdempotencyKey != nil {
		if _, exists := r.s.idempotency[*m.IdempotencyKey]; exists {
			return repositories.ErrDuplicateKey
		}
	}
	r.s.seq++
	m.Seq = r.s.seq
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	r.s.movements = append(r.s.movements, *m)
	if m.IdempotencyKey != nil {
		r.s.idempotency[*m.IdempotencyKey] = m.ID
	}
	return nil
}

func (r *movementRepo) Append(movement *models.Movement, projection *models.ProjectedInventoryItem, newBatch *models.Batch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if newBatch != nil {
		if newBatch.CreatedAt.IsZero() {
			newBatch.CreatedAt = time.Now()
		}
		r.s.batches[newBatch.ID] = *newBatch
	}
	if err := r.appendLocked(movement); err != nil {
		return err
	}
	// The service computed the projection before seq assignment; pin the
	// checkpoint to the row just written.
	if movement.Seq > projection.LastSeq {
		projection.LastSeq = movement.Seq
	}
	putProjectionLocked(r.s, projection)
	return nil
}

func (r *movementRepo) AppendPair(out, in *models.Movement, outProjection, inProjection *models.ProjectedInventoryItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.appendLocked(out); err != nil {
		return err
	}
	if err := r.appendLocked(in); err != nil {
		return err
	}
	if out.Seq > outProjection.LastSeq {
		outProjection.LastSeq = out.Seq
	}
	if in.Seq > inProjection.LastSeq {
		inProjection.LastSeq = in.Seq
	}
	putProjectionLocked(r.s, outProjection)
	putProjectionLocked(r.s, inProjection)
	return nil
}

func (r *movementRepo) FindByID(id string) (*models.Movement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for i := range r.s.movements {
		if r.s.movements[i].ID == id {
			m := r.s.movements[i]
			return &m, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *movementRepo) FindByIdempotencyKey(key string) (*models.Movement, error) {
	r.s.mu.RLock()
	id, ok := r.s.idempotency[key]
	r.s.mu.RUnlock()
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return r.FindByID(id)
}

func sortReplayOrder(ms []models.Movement) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].Seq < ms[j].Seq
		}
		return ms[i].CreatedAt.Before(ms[j].CreatedAt)
	})
}

func (r *movementRepo) GetMovements(filters models.MovementFilters) ([]models.Movement, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := []models.Movement{}
	for _, m := range r.s.movements {
		if filters.ProductID != nil && m.ProductID != *filters.ProductID {
			continue
		}
		if filters.LocationID != nil && m.LocationID != *filters.LocationID {
			continue
		}
		if filters.BatchID != nil && (m.BatchID == nil || *m.BatchID != *filters.BatchID) {
			continue
		}
		if filters.MovementType != nil && *filters.MovementType != "" && m.MovementType != *filters.MovementType {
			continue
		}
		if filters.StartDate != nil && m.CreatedAt.Before(*filters.StartDate) {
			continue
		}
		if filters.EndDate != nil && m.CreatedAt.After(*filters.EndDate) {
			continue
		}
		if p, ok := r.s.products[m.ProductID]; ok {
			name := p.Name
			m.ProductName = &name
			m.ProductSKU = p.SKU
		}
		matched = append(matched, m)
	}

	// Newest first, matching the SQL repository.
	sortReplayOrder(matched)
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}

	total := len(matched)
	page := filters.Page
	if page < 1 {
		page = 1
	}
	pageSize := filters.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *movementRepo) loadWhere(match func(*models.Movement) bool) []models.Movement {
	result := []models.Movement{}
	for i := range r.s.movements {
		if match(&r.s.movements[i]) {
			result = append(result, r.s.movements[i])
		}
	}
	sortReplayOrder(result)
	return result
}

func (r *movementRepo) LoadForKey(productID, locationID string) ([]models.Movement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.loadWhere(func(m *models.Movement) bool {
		return m.ProductID == productID && m.LocationID == locationID
	}), nil
}

func (r *movementRepo) LoadForKeyAfter(productID, locationID string, afterSeq int64) ([]models.Movement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.loadWhere(func(m *models.Movement) bool {
		return m.ProductID == productID && m.LocationID == locationID && m.Seq > afterSeq
	}), nil
}

func (r *movementRepo) LoadForBatch(batchID string) ([]models.Movement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.loadWhere(func(m *models.Movement) bool {
		return m.BatchID != nil && *m.BatchID == batchID
	}), nil
}

func (r *movementRepo) FindByReference(referenceID string) ([]models.Movement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.loadWhere(func(m *models.Movement) bool {
		return m.ReferenceID != nil && *m.ReferenceID == referenceID
	}), nil
}

func (r *movementRepo) LatestInboundUnitCost(productID, locationID string) (int64, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	candidates := r.loadWhere(func(m *models.Movement) bool {
		return m.ProductID == productID && m.LocationID == locationID &&
			m.Direction == models.DirectionIn && m.UnitCost != nil
	})
	if len(candidates) == 0 {
		return 0, false, nil
	}
	return *candidates[len(candidates)-1].UnitCost, true, nil
}

// =========================================================================
// PROJECTIONS
// =========================================================================

type projectionRepo struct {
	s *Store
}

func (r *projectionRepo) Get(productID, locationID string) (*models.ProjectedInventoryItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.projections[projKey{productID, locationID}]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	p.QuantityAvailable = p.Available()
	return &p, nil
}

func (r *projectionRepo) Upsert(item *models.ProjectedInventoryItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	putProjectionLocked(r.s, item)
	return nil
}

func (r *projectionRepo) AdjustReserved(productID, locationID string, delta int64) (*models.ProjectedInventoryItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := projKey{productID, locationID}
	p := r.s.projections[k]
	p.ProductID = productID
	p.LocationID = locationID
	p.QuantityReserved += delta
	if p.QuantityReserved < 0 {
		p.QuantityReserved = 0
	}
	p.UpdatedAt = time.Now()
	r.s.projections[k] = p

	p.QuantityAvailable = p.Available()
	return &p, nil
}

func (r *projectionRepo) List(filters models.InventoryFilters) ([]models.ProjectedInventoryItem, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	items := []models.ProjectedInventoryItem{}
	for _, p := range r.s.projections {
		if filters.ProductID != nil && p.ProductID != *filters.ProductID {
			continue
		}
		if filters.LocationID != nil && p.LocationID != *filters.LocationID {
			continue
		}

		product, hasProduct := r.s.products[p.ProductID]
		if !hasProduct {
			continue
		}
		if filters.LowStock {
			if product.MinStockLevel == nil || p.QuantityOnHand > *product.MinStockLevel || p.QuantityOnHand <= 0 {
				continue
			}
		}
		if filters.OutOfStock && p.QuantityOnHand > 0 {
			continue
		}
		if filters.Search != nil && *filters.Search != "" {
			if !containsFold(product.Name, *filters.Search) &&
				(product.SKU == nil || !containsFold(*product.SKU, *filters.Search)) {
				continue
			}
		}

		name := product.Name
		p.ProductName = &name
		p.ProductSKU = product.SKU
		p.MinStockLevel = product.MinStockLevel
		p.QuantityAvailable = p.Available()
		p.NegativeStock = p.QuantityOnHand < 0
		items = append(items, p)
	}

	sort.Slice(items, func(i, j int) bool {
		if *items[i].ProductName == *items[j].ProductName {
			return items[i].LocationID < items[j].LocationID
		}
		return *items[i].ProductName < *items[j].ProductName
	})

	total := len(items)
	page := filters.Page
	if page < 1 {
		page = 1
	}
	pageSize := filters.PageSize
	if pageSize < 1 {
		pageSize = 100
	}
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return items[start:end], total, nil
}

func (r *projectionRepo) ListByProduct(productID string) ([]models.ProjectedInventoryItem, error) {
	items, _, err := r.List(models.InventoryFilters{ProductID: &productID, PageSize: 10000})
	return items, err
}
