package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pos_ledger_backend/internal/models"
	"pos_ledger_backend/internal/repositories"
)

// CatalogService is the thin product/location surface the ledger depends
// on. Full catalog management (pricing rules, categories, suppliers) lives
// in the catalog system; this covers just enough to run a store.
type CatalogService interface {
	CreateProduct(product *models.Product) (*models.Product, error)
	GetProduct(id string) (*models.Product, error)
	GetProducts(page, pageSize int) ([]models.Product, int, error)

	CreateLocation(location *models.Location) (*models.Location, error)
	GetLocations() ([]models.Location, error)
}

type catalogService struct {
	catalogRepo repositories.CatalogRepository
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(catalogRepo repositories.CatalogRepository) CatalogService {
	return &catalogService{catalogRepo: catalogRepo}
}

func (s *catalogService) CreateProduct(product *models.Product) (*models.Product, error) {
	if product.Name == "" {
		return nil, fmt.Errorf("%w: product name is required", ErrValidation)
	}
	if product.SellingPrice < 0 {
		return nil, fmt.Errorf("%w: selling price cannot be negative", ErrValidation)
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	product.IsActive = true
	if err := s.catalogRepo.CreateProduct(product); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: duplicate product sku", ErrValidation)
		}
		return nil, err
	}
	return product, nil
}

func (s *catalogService) GetProduct(id string) (*models.Product, error) {
	product, err := s.catalogRepo.FindProductByID(id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *catalogService) GetProducts(page, pageSize int) ([]models.Product, int, error) {
	return s.catalogRepo.GetProducts(page, pageSize)
}

func (s *catalogService) CreateLocation(location *models.Location) (*models.Location, error) {
	if location.Name == "" {
		return nil, fmt.Errorf("%w: location name is required", ErrValidation)
	}
	if location.ID == "" {
		location.ID = uuid.NewString()
	}
	if err := s.catalogRepo.CreateLocation(location); err != nil {
		return nil, err
	}
	return location, nil
}

func (s *catalogService) GetLocations() ([]models.Location, error) {
	return s.catalogRepo.GetLocations()
}
