package memory

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/duka/domain"
)

func seedProduct(t *testing.T, repo domain.ProductRepository, id string, stock int32) domain.Product {
	t.Helper()

	now := time.Now().UTC()
	product := domain.Product{
		ID:         id,
		OwnerID:    "owner-1",
		Name:       "Air Max 90",
		Brand:      "Nike",
		SKU:        "SKU-" + id,
		PriceMinor: 100000,
		Stock:      stock,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repo.Create(product); err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func TestProductRepository_CreateDuplicateSKU(t *testing.T) {
	repo := NewProductRepository()
	seedProduct(t, repo, "product-1", 5)

	dup := domain.Product{
		ID:      "product-2",
		OwnerID: "owner-1",
		Name:    "Air Max 95",
		SKU:     "SKU-product-1",
	}
	if err := repo.Create(dup); !errors.Is(err, domain.ErrSKUTaken) {
		t.Fatalf("expected ErrSKUTaken, got %v", err)
	}

	// Тот же SKU у другого владельца — не конфликт.
	other := dup
	other.ID = "product-3"
	other.OwnerID = "owner-2"
	if err := repo.Create(other); err != nil {
		t.Fatalf("expected cross-owner sku to be allowed, got %v", err)
	}
}

func TestProductRepository_OwnerScope(t *testing.T) {
	repo := NewProductRepository()
	seedProduct(t, repo, "product-1", 5)

	if _, err := repo.Get("owner-2", "product-1"); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied for foreign owner, got %v", err)
	}
	if _, err := repo.Get("owner-1", "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProductRepository_AdjustStock(t *testing.T) {
	repo := NewProductRepository()
	seedProduct(t, repo, "product-1", 5)

	updated, err := repo.AdjustStock("owner-1", "product-1", -3)
	if err != nil {
		t.Fatalf("adjust stock: %v", err)
	}
	if updated.Stock != 2 {
		t.Fatalf("expected stock 2, got %d", updated.Stock)
	}

	var insufficient *domain.InsufficientStockError
	if _, err := repo.AdjustStock("owner-1", "product-1", -3); !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.Available != 2 || insufficient.Requested != 3 {
		t.Fatalf("unexpected error payload: %+v", insufficient)
	}

	// Неудачное списание ничего не меняет.
	current, err := repo.Get("owner-1", "product-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if current.Stock != 2 {
		t.Fatalf("expected stock unchanged at 2, got %d", current.Stock)
	}
}

func TestProductRepository_AdjustStockConcurrent(t *testing.T) {
	// Свойство: ни одно чередование конкурентных списаний не уводит остаток в минус.
	repo := NewProductRepository()
	seedProduct(t, repo, "product-1", 50)

	const workers = 100

	var wg sync.WaitGroup
	var okCnt int32
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.AdjustStock("owner-1", "product-1", -1); err == nil {
				mu.Lock()
				okCnt++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	product, err := repo.Get("owner-1", "product-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock < 0 {
		t.Fatalf("stock went negative: %d", product.Stock)
	}
	if okCnt != 50 {
		t.Fatalf("expected exactly 50 successful decrements, got %d", okCnt)
	}
	if product.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", product.Stock)
	}
}

func TestProductRepository_UpdateKeepsStock(t *testing.T) {
	repo := NewProductRepository()
	product := seedProduct(t, repo, "product-1", 5)

	product.Name = "Air Max 90 SE"
	product.Stock = 999 // попытка обойти атомарную корректировку
	if err := repo.Update(product); err != nil {
		t.Fatalf("update product: %v", err)
	}

	current, err := repo.Get("owner-1", "product-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if current.Stock != 5 {
		t.Fatalf("expected stock preserved at 5, got %d", current.Stock)
	}
	if current.Name != "Air Max 90 SE" {
		t.Fatalf("expected name updated, got %s", current.Name)
	}
}
