package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/duka/domain"
)

const (
	opTimeout = 5 * time.Second
)

const productColumns = `
	id, owner_id, name, brand, sku, description, category, size, type,
	image_url, price_minor, stock, created_at, updated_at
`

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func (r *productRepository) Create(product domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (
			id, owner_id, name, brand, sku, description, category, size, type,
			image_url, price_minor, stock, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		product.ID, product.OwnerID, product.Name, product.Brand, product.SKU,
		product.Description, product.Category, product.Size, product.Type,
		product.ImageURL, product.PriceMinor, product.Stock,
		product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSKUTaken
		}
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

func (r *productRepository) Get(ownerID, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	product, err := r.getByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	if product.OwnerID != ownerID {
		return domain.Product{}, domain.ErrPermissionDenied
	}

	return product, nil
}

func (r *productRepository) List(ownerID string) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

// Update перезаписывает атрибуты товара; остаток меняется только через AdjustStock.
func (r *productRepository) Update(product domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $3,
		    brand = $4,
		    sku = $5,
		    description = $6,
		    category = $7,
		    size = $8,
		    type = $9,
		    image_url = $10,
		    price_minor = $11,
		    updated_at = $12
		WHERE id = $1
		  AND owner_id = $2
	`,
		product.ID, product.OwnerID, product.Name, product.Brand, product.SKU,
		product.Description, product.Category, product.Size, product.Type,
		product.ImageURL, product.PriceMinor, product.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSKUTaken
		}
		return fmt.Errorf("update product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return r.scopeMiss(ctx, product.OwnerID, product.ID)
	}

	return nil
}

func (r *productRepository) Delete(ownerID, id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM products WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return r.scopeMiss(ctx, ownerID, id)
	}

	return nil
}

// AdjustStock применяет дельту одним условным обновлением: проверка
// достаточности остатка и запись неразделимы, поэтому конкурентные списания
// не уводят остаток в минус.
func (r *productRepository) AdjustStock(ownerID, id string, delta int32) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $3,
		    updated_at = $4
		WHERE id = $1
		  AND owner_id = $2
		  AND stock + $3 >= 0
		RETURNING `+productColumns,
		id, ownerID, delta, time.Now().UTC(),
	)

	product, err := scanProduct(row)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("adjust stock: %w", err)
	}

	// Обновление не прошло: разбираемся, нет товара, чужой владелец
	// или не хватило остатка.
	current, lookupErr := r.getByID(ctx, id)
	if lookupErr != nil {
		return domain.Product{}, lookupErr
	}
	if current.OwnerID != ownerID {
		return domain.Product{}, domain.ErrPermissionDenied
	}

	return domain.Product{}, &domain.InsufficientStockError{
		ProductID: id,
		Requested: -delta,
		Available: current.Stock,
	}
}

func (r *productRepository) getByID(ctx context.Context, id string) (domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id)

	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	return product, nil
}

// scopeMiss различает отсутствие записи и доступ к чужой записи.
func (r *productRepository) scopeMiss(ctx context.Context, ownerID, id string) error {
	product, err := r.getByID(ctx, id)
	if err != nil {
		return err
	}
	if product.OwnerID != ownerID {
		return domain.ErrPermissionDenied
	}
	return domain.ErrNotFound
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var product domain.Product
	err := row.Scan(
		&product.ID, &product.OwnerID, &product.Name, &product.Brand,
		&product.SKU, &product.Description, &product.Category, &product.Size,
		&product.Type, &product.ImageURL, &product.PriceMinor, &product.Stock,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.ProductRepository = (*productRepository)(nil)
