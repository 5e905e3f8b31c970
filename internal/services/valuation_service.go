package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"pos_ledger_backend/internal/models"
	"pos_ledger_backend/internal/repositories"
)

type ValuationService interface {
	// Valuate prices on-hand stock within the scope. Stock in a tracked
	// batch is valued at the batch's recorded cost; untracked stock at
	// the latest inbound movement cost for its (product, location) key.
	Valuate(scope models.ValuationScope, productID, locationID *string) (*models.Valuation, error)
}

type valuationService struct {
	movementRepo   repositories.MovementRepository
	projectionRepo repositories.ProjectionRepository
	batchRepo      repositories.BatchRepository
	catalogRepo    repositories.CatalogRepository
}

// NewValuationService creates a ValuationService.
func NewValuationService(
	movementRepo repositories.MovementRepository,
	projectionRepo repositories.ProjectionRepository,
	batchRepo repositories.BatchRepository,
	catalogRepo repositories.CatalogRepository,
) ValuationService {
	return &valuationService{
		movementRepo:   movementRepo,
		projectionRepo: projectionRepo,
		batchRepo:      batchRepo,
		catalogRepo:    catalogRepo,
	}
}

func (s *valuationService) Valuate(scope models.ValuationScope, productID, locationID *string) (*models.Valuation, error) {
	filters := models.InventoryFilters{PageSize: 500}
	switch scope {
	case models.ScopeAll:
	case models.ScopeProduct:
		if productID == nil {
			return nil, fmt.Errorf("%w: product scope requires a product id", ErrValidation)
		}
		filters.ProductID = productID
	case models.ScopeLocation:
		if locationID == nil {
			return nil, fmt.Errorf("%w: location scope requires a location id", ErrValidation)
		}
		filters.LocationID = locationID
	default:
		return nil, fmt.Errorf("%w: unknown valuation scope %q", ErrValidation, scope)
	}

	projections := []models.ProjectedInventoryItem{}
	for page := 1; ; page++ {
		filters.Page = page
		items, total, err := s.projectionRepo.List(filters)
		if err != nil {
			return nil, err
		}
		projections = append(projections, items...)
		if len(items) == 0 || page*filters.PageSize >= total {
			break
		}
	}

	batches, err := s.batchRepo.ListWithStock()
	if err != nil {
		return nil, err
	}
	batchesByKey := make(map[string][]models.Batch)
	for i := range batches {
		b := batches[i]
		if locationID != nil && b.LocationID != *locationID {
			continue
		}
		k := b.ProductID + "|" + b.LocationID
		batchesByKey[k] = append(batchesByKey[k], b)
	}

	products := make(map[string]*models.Product)
	valuation := &models.Valuation{
		Scope:      scope,
		ProductID:  productID,
		LocationID: locationID,
		Items:      []models.ValuationItem{},
	}

	for i := range projections {
		p := &projections[i]
		product, ok := products[p.ProductID]
		if !ok {
			product, err = s.catalogRepo.FindProductByID(p.ProductID)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					continue
				}
				return nil, err
			}
			products[p.ProductID] = product
		}

		if p.QuantityOnHand <= 0 {
			valuation.OutOfStockCount++
			continue
		}
		if product.MinStockLevel != nil && p.QuantityOnHand <= *product.MinStockLevel {
			valuation.LowStockCount++
		}

		remaining := p.QuantityOnHand
		for _, b := range batchesByKey[p.ProductID+"|"+p.LocationID] {
			qty := b.QuantityOnHand
			if qty > remaining {
				qty = remaining
			}
			if qty <= 0 {
				continue
			}
			batchID := b.ID
			valuation.Items = append(valuation.Items, valuationLine(product, p.LocationID, &batchID, qty, b.UnitCost))
			remaining -= qty
		}
		if remaining > 0 {
			cost, ok, err := s.movementRepo.LatestInboundUnitCost(p.ProductID, p.LocationID)
			if err != nil {
				return nil, err
			}
			if !ok {
				cost = 0
			}
			valuation.Items = append(valuation.Items, valuationLine(product, p.LocationID, nil, remaining, cost))
		}
	}

	for i := range valuation.Items {
		valuation.TotalValue += valuation.Items[i].StockValue
		valuation.TotalRetailValue += valuation.Items[i].RetailValue
	}
	valuation.PotentialProfit = valuation.TotalRetailValue - valuation.TotalValue
	valuation.ItemCount = len(valuation.Items)
	if valuation.TotalRetailValue > 0 {
		valuation.ProfitMarginPct = decimal.NewFromInt(valuation.PotentialProfit).
			Div(decimal.NewFromInt(valuation.TotalRetailValue)).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	return valuation, nil
}

func valuationLine(product *models.Product, locationID string, batchID *string, qty, unitCost int64) models.ValuationItem {
	return models.ValuationItem{
		ProductID:      product.ID,
		ProductName:    product.Name,
		ProductSKU:     product.SKU,
		LocationID:     locationID,
		BatchID:        batchID,
		QuantityOnHand: qty,
		UnitCost:       unitCost,
		SellingPrice:   product.SellingPrice,
		StockValue:     qty * unitCost,
		RetailValue:    qty * product.SellingPrice,
	}
}
