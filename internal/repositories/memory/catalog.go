package memory

import (
	"sort"
	"strings"
	"time"

	"pos_ledger_backend/internal/models"
	"pos_ledger_backend/internal/repositories"
)

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// =========================================================================
// BATCHES
// =========================================================================

type batchRepo struct {
	s *Store
}

func (r *batchRepo) Create(batch *models.Batch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.batches {
		if b.ProductID == batch.ProductID && b.LocationID == batch.LocationID && b.BatchNumber == batch.BatchNumber {
			return repositories.ErrDuplicateKey
		}
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now()
	}
	r.s.batches[batch.ID] = *batch
	return nil
}

// quantityLocked derives a batch's on-hand total from its movements.
func (r *batchRepo) quantityLocked(batchID string) int64 {
	var total int64
	for i := range r.s.movements {
		m := &r.s.movements[i]
		if m.BatchID != nil && *m.BatchID == batchID {
			total += m.SignedQuantity()
		}
	}
	return total
}

func (r *batchRepo) decorateLocked(b models.Batch) models.Batch {
	b.QuantityOnHand = r.quantityLocked(b.ID)
	if p, ok := r.s.products[b.ProductID]; ok {
		name := p.Name
		b.ProductName = &name
		b.ProductSKU = p.SKU
	}
	return b
}

func (r *batchRepo) FindByID(id string) (*models.Batch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.batches[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	b = r.decorateLocked(b)
	return &b, nil
}

func (r *batchRepo) FindByNumber(productID, locationID, batchNumber string) (*models.Batch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, b := range r.s.batches {
		if b.ProductID == productID && b.LocationID == locationID && b.BatchNumber == batchNumber {
			b = r.decorateLocked(b)
			return &b, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *batchRepo) listWithStockLocked(match func(*models.Batch) bool) []models.Batch {
	batches := []models.Batch{}
	for _, b := range r.s.batches {
		if match != nil && !match(&b) {
			continue
		}
		b = r.decorateLocked(b)
		if b.QuantityOnHand > 0 {
			batches = append(batches, b)
		}
	}
	// Soonest expiry first, no-expiry batches last.
	sort.Slice(batches, func(i, j int) bool {
		bi, bj := batches[i].ExpiryDate, batches[j].ExpiryDate
		if bi == nil {
			return false
		}
		if bj == nil {
			return true
		}
		return bi.Before(*bj)
	})
	return batches
}

func (r *batchRepo) ListWithStock() ([]models.Batch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.listWithStockLocked(nil), nil
}

func (r *batchRepo) ListByProductWithStock(productID string) ([]models.Batch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.listWithStockLocked(func(b *models.Batch) bool {
		return b.ProductID == productID
	}), nil
}

// =========================================================================
// STOCK COUNTS
// =========================================================================

type stockCountRepo struct {
	s *Store
}

func (r *stockCountRepo) Create(count *models.StockCount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if count.CreatedAt.IsZero() {
		count.CreatedAt = time.Now()
	}
	for i := range count.Items {
		count.Items[i].StockCountID = count.ID
	}
	r.s.counts[count.ID] = cloneCount(count)
	return nil
}

func cloneCount(c *models.StockCount) models.StockCount {
	out := *c
	out.Items = make([]models.StockCountItem, len(c.Items))
	copy(out.Items, c.Items)
	return out
}

func (r *stockCountRepo) FindByID(id string) (*models.StockCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.counts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := cloneCount(&c)
	for i := range out.Items {
		if p, ok := r.s.products[out.Items[i].ProductID]; ok {
			name := p.Name
			out.Items[i].ProductName = &name
			out.Items[i].ProductSKU = p.SKU
		}
	}
	return &out, nil
}

func (r *stockCountRepo) List(locationID *string, status *models.StockCountStatus, page, pageSize int) ([]models.StockCount, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := []models.StockCount{}
	for _, c := range r.s.counts {
		if locationID != nil && c.LocationID != *locationID {
			continue
		}
		if status != nil && c.Status != *status {
			continue
		}
		counts = append(counts, cloneCount(&c))
	}
	sort.Slice(counts, func(i, j int) bool {
		return counts[i].CountDate.After(counts[j].CountDate)
	})

	total := len(counts)
	if page < 1 {
		page = 1
	}
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
	return counts[start:end], total, nil
}

func (r *stockCountRepo) Complete(count *models.StockCount, movements []models.Movement, projections []models.ProjectedInventoryItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.counts[count.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	if stored.Status != models.StockCountDraft {
		return repositories.ErrStaleState
	}

	mr := &movementRepo{r.s}
	for i := range movements {
		if err := mr.appendLocked(&movements[i]); err != nil {
			return err
		}
	}
	for i := range projections {
		p := projections[i]
		// Pin each checkpoint past the variance movements just written.
		for j := range movements {
			m := &movements[j]
			if m.ProductID == p.ProductID && m.LocationID == p.LocationID && m.Seq > p.LastSeq {
				p.LastSeq = m.Seq
			}
		}
		putProjectionLocked(r.s, &p)
	}

	updated := cloneCount(count)
	updated.Status = models.StockCountCompleted
	r.s.counts[count.ID] = updated
	return nil
}

// =========================================================================
// ALERTS
// =========================================================================

type alertRepo struct {
	s *Store
}

func (r *alertRepo) Create(alert *models.InventoryAlert) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	r.s.alerts[alert.ID] = *alert
	return nil
}

func (r *alertRepo) decorateLocked(a models.InventoryAlert) models.InventoryAlert {
	if p, ok := r.s.products[a.ProductID]; ok {
		name := p.Name
		a.ProductName = &name
		a.ProductSKU = p.SKU
	}
	return a
}

func (r *alertRepo) FindByID(id string) (*models.InventoryAlert, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.alerts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	a = r.decorateLocked(a)
	return &a, nil
}

func (r *alertRepo) Open(productID *string) ([]models.InventoryAlert, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	alerts := []models.InventoryAlert{}
	for _, a := range r.s.alerts {
		if a.IsAcknowledged {
			continue
		}
		if productID != nil && a.ProductID != *productID {
			continue
		}
		alerts = append(alerts, r.decorateLocked(a))
	}
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
	return alerts, nil
}

func (r *alertRepo) Acknowledge(id string, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.alerts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if a.IsAcknowledged {
		return nil
	}
	now := time.Now()
	a.IsAcknowledged = true
	a.AcknowledgedBy = &userID
	a.AcknowledgedAt = &now
	r.s.alerts[id] = a
	return nil
}

func (r *alertRepo) Delete(id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.alerts, id)
	return nil
}

// =========================================================================
// CATALOG
// =========================================================================

type catalogRepo struct {
	s *Store
}

func (r *catalogRepo) CreateProduct(product *models.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if product.SKU != nil {
		for _, p := range r.s.products {
			if p.SKU != nil && *p.SKU == *product.SKU {
				return repositories.ErrDuplicateKey
			}
		}
	}
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	r.s.products[product.ID] = *product
	return nil
}

func (r *catalogRepo) FindProductByID(id string) (*models.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &p, nil
}

func (r *catalogRepo) GetProducts(page, pageSize int) ([]models.Product, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	products := []models.Product{}
	for _, p := range r.s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].Name < products[j].Name
	})

	total := len(products)
	if page < 1 {
		page = 1
	}
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
	return products[start:end], total, nil
}

func (r *catalogRepo) CreateLocation(location *models.Location) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.locations[location.ID]; exists {
		return repositories.ErrDuplicateKey
	}
	if location.CreatedAt.IsZero() {
		location.CreatedAt = time.Now()
	}
	r.s.locations[location.ID] = *location
	return nil
}

func (r *catalogRepo) FindLocationByID(id string) (*models.Location, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.locations[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &l, nil
}

func (r *catalogRepo) GetLocations() ([]models.Location, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	locations := []models.Location{}
	for _, l := range r.s.locations {
		locations = append(locations, l)
	}
	sort.Slice(locations, func(i, j int) bool {
		return locations[i].Name < locations[j].Name
	})
	return locations, nil
}

// =========================================================================
// USERS
// =========================================================================

type authRepo struct {
	s *Store
}

func (r *authRepo) CreateUser(user *models.User, hashedPassword string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == user.Username {
			return 0, repositories.ErrDuplicateKey
		}
	}
	r.s.nextUserID++
	user.ID = r.s.nextUserID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	stored := *user
	stored.PasswordHash = hashedPassword
	r.s.users[user.ID] = stored
	return user.ID, nil
}

func (r *authRepo) FindUserByUsername(username string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Username == username {
			found := u
			return &found, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *authRepo) FindUserByID(userID int64) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	found := u
	return &found, nil
}
