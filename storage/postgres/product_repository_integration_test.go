package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/duka/domain"
)

func TestProductRepository_PostgresCreateGetListUpdate(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewProductRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	first := sampleProduct("product-1", "owner-1", "SKU-1", now.Add(-2*time.Minute))
	second := sampleProduct("product-2", "owner-1", "SKU-2", now.Add(-time.Minute))

	if err := repo.Create(first); err != nil {
		t.Fatalf("create first product: %v", err)
	}
	if err := repo.Create(second); err != nil {
		t.Fatalf("create second product: %v", err)
	}

	got, err := repo.Get("owner-1", first.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.SKU != first.SKU || got.Stock != first.Stock || got.PriceMinor != first.PriceMinor {
		t.Fatalf("unexpected product payload: %+v", got)
	}

	listed, err := repo.List("owner-1")
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != second.ID {
		t.Fatalf("unexpected list result: %+v", listed)
	}

	// Update не трогает остаток даже при другом значении в структуре.
	updated := got
	updated.Name = "Renamed"
	updated.PriceMinor = 99900
	updated.Stock = 999
	updated.UpdatedAt = now
	if err := repo.Update(updated); err != nil {
		t.Fatalf("update product: %v", err)
	}

	after, err := repo.Get("owner-1", first.ID)
	if err != nil {
		t.Fatalf("get updated product: %v", err)
	}
	if after.Name != "Renamed" || after.PriceMinor != 99900 {
		t.Fatalf("attributes were not updated: %+v", after)
	}
	if after.Stock != first.Stock {
		t.Fatalf("stock must not change via Update: got=%d want=%d", after.Stock, first.Stock)
	}
}

func TestProductRepository_PostgresSKUUniquePerOwner(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewProductRepository(store)

	now := time.Now().UTC()
	if err := repo.Create(sampleProduct("product-a", "owner-1", "SKU-DUP", now)); err != nil {
		t.Fatalf("create first: %v", err)
	}

	dup := sampleProduct("product-b", "owner-1", "SKU-DUP", now)
	if err := repo.Create(dup); !errors.Is(err, domain.ErrSKUTaken) {
		t.Fatalf("expected ErrSKUTaken, got %v", err)
	}

	// У другого владельца тот же SKU допустим.
	other := sampleProduct("product-c", "owner-2", "SKU-DUP", now)
	if err := repo.Create(other); err != nil {
		t.Fatalf("same sku for other owner must pass: %v", err)
	}
}

func TestProductRepository_PostgresAdjustStock(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewProductRepository(store)

	now := time.Now().UTC()
	product := sampleProduct("product-stock", "owner-1", "SKU-STOCK", now)
	product.Stock = 5
	if err := repo.Create(product); err != nil {
		t.Fatalf("create product: %v", err)
	}

	adjusted, err := repo.AdjustStock("owner-1", product.ID, -3)
	if err != nil {
		t.Fatalf("adjust stock down: %v", err)
	}
	if adjusted.Stock != 2 {
		t.Fatalf("unexpected stock after deduction: %d", adjusted.Stock)
	}

	var insufficient *domain.InsufficientStockError
	if _, err := repo.AdjustStock("owner-1", product.ID, -3); !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.Available != 2 || insufficient.Requested != 3 {
		t.Fatalf("unexpected insufficiency details: %+v", insufficient)
	}

	// Неудачная корректировка ничего не меняет.
	current, err := repo.Get("owner-1", product.ID)
	if err != nil {
		t.Fatalf("get after failed adjust: %v", err)
	}
	if current.Stock != 2 {
		t.Fatalf("stock must stay at 2, got %d", current.Stock)
	}

	restocked, err := repo.AdjustStock("owner-1", product.ID, 4)
	if err != nil {
		t.Fatalf("adjust stock up: %v", err)
	}
	if restocked.Stock != 6 {
		t.Fatalf("unexpected stock after restock: %d", restocked.Stock)
	}
}

func TestProductRepository_PostgresOwnerScope(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewProductRepository(store)

	product := sampleProduct("product-scope", "owner-1", "SKU-SCOPE", time.Now().UTC())
	if err := repo.Create(product); err != nil {
		t.Fatalf("create product: %v", err)
	}

	if _, err := repo.Get("owner-1", "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.Get("owner-2", product.ID); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if _, err := repo.AdjustStock("owner-2", product.ID, -1); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied on adjust, got %v", err)
	}
	if err := repo.Delete("owner-2", product.ID); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied on delete, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected unique violation for code 23505")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "22001"}) {
		t.Fatal("unexpected unique violation for non-unique code")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("plain error must not be unique violation")
	}
}

func sampleProduct(id, ownerID, sku string, createdAt time.Time) domain.Product {
	return domain.Product{
		ID:         id,
		OwnerID:    ownerID,
		Name:       "Sneakers " + id,
		Brand:      "Nykee",
		SKU:        sku,
		Category:   "shoes",
		Size:       "42",
		Type:       "sneaker",
		PriceMinor: 250000,
		Stock:      10,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}
