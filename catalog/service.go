// Package catalog реализует работу с товарами мерчанта: CRUD и атомарную
// корректировку остатков.
package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/duka/domain"
)

// ProductInput — атрибуты товара, задаваемые мерчантом.
type ProductInput struct {
	Name        string
	Brand       string
	SKU         string
	Description string
	Category    string
	Size        string
	Type        string
	ImageURL    string
	PriceMinor  int64
	// Stock учитывается только при создании; дальше остаток меняется
	// исключительно через AdjustStock.
	Stock int32
}

// Service — сервис каталога. ownerID каждого вызова обязан приходить из
// аутентифицированной сессии, а не из клиентского payload.
type Service struct {
	products domain.ProductRepository
	logger   *log.Entry
}

// NewService создаёт сервис каталога.
func NewService(products domain.ProductRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	return &Service{products: products, logger: logger}
}

// CreateProduct валидирует и сохраняет новый товар.
func (s *Service) CreateProduct(ownerID string, input ProductInput) (domain.Product, error) {
	now := time.Now().UTC()
	product := domain.Product{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        input.Name,
		Brand:       input.Brand,
		SKU:         input.SKU,
		Description: input.Description,
		Category:    input.Category,
		Size:        input.Size,
		Type:        input.Type,
		ImageURL:    input.ImageURL,
		PriceMinor:  input.PriceMinor,
		Stock:       input.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if errs := product.ValidateInvariants(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	if err := s.products.Create(product); err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"sku":        product.SKU,
	}).Info("product created")

	return product, nil
}

// UpdateProduct перезаписывает атрибуты товара. Остаток не трогается.
func (s *Service) UpdateProduct(ownerID, id string, input ProductInput) (domain.Product, error) {
	current, err := s.products.Get(ownerID, id)
	if err != nil {
		return domain.Product{}, err
	}

	current.Name = input.Name
	current.Brand = input.Brand
	current.SKU = input.SKU
	current.Description = input.Description
	current.Category = input.Category
	current.Size = input.Size
	current.Type = input.Type
	current.ImageURL = input.ImageURL
	current.PriceMinor = input.PriceMinor
	current.UpdatedAt = time.Now().UTC()

	if errs := current.ValidateInvariants(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	if err := s.products.Update(current); err != nil {
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}
	return current, nil
}

// DeleteProduct удаляет товар владельца.
func (s *Service) DeleteProduct(ownerID, id string) error {
	if err := s.products.Delete(ownerID, id); err != nil {
		return err
	}
	s.logger.WithField("product_id", id).Info("product deleted")
	return nil
}

// GetProduct возвращает товар владельца.
func (s *Service) GetProduct(ownerID, id string) (domain.Product, error) {
	return s.products.Get(ownerID, id)
}

// ListProducts возвращает товары владельца, новые первыми.
func (s *Service) ListProducts(ownerID string) ([]domain.Product, error) {
	return s.products.List(ownerID)
}

// AdjustStock атомарно применяет дельту к остатку товара. Положительная
// дельта — приход, отрицательная — списание. Контракт атомарности
// обеспечивает репозиторий.
func (s *Service) AdjustStock(ownerID, productID string, delta int32) (domain.Product, error) {
	product, err := s.products.AdjustStock(ownerID, productID, delta)
	if err != nil {
		var insufficient *domain.InsufficientStockError
		if errors.As(err, &insufficient) {
			s.logger.WithFields(log.Fields{
				"product_id": productID,
				"requested":  insufficient.Requested,
				"available":  insufficient.Available,
			}).Warn("stock adjustment rejected")
		}
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": productID,
		"delta":      delta,
		"stock":      product.Stock,
	}).Debug("stock adjusted")

	return product, nil
}
