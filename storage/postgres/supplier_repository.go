package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/duka/domain"
)

const supplierColumns = `
	id, owner_id, name, phone, email, address, brands, created_at, updated_at
`

type supplierRepository struct {
	db *sql.DB
}

// NewSupplierRepository создаёт PostgreSQL-реализацию SupplierRepository.
func NewSupplierRepository(store *Store) domain.SupplierRepository {
	return &supplierRepository{db: store.DB()}
}

func (r *supplierRepository) Create(supplier domain.Supplier) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	brands, err := marshalBrands(supplier.Brands)
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO suppliers (
			id, owner_id, name, phone, email, address, brands, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		supplier.ID, supplier.OwnerID, supplier.Name, supplier.Phone,
		supplier.Email, supplier.Address, brands,
		supplier.CreatedAt, supplier.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert supplier: %w", err)
	}

	return nil
}

func (r *supplierRepository) Get(ownerID, id string) (domain.Supplier, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.scoped(ctx, ownerID, id)
}

func (r *supplierRepository) List(ownerID string) ([]domain.Supplier, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+supplierColumns+`
		FROM suppliers
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0)
	for rows.Next() {
		supplier, err := scanSupplier(rows)
		if err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		suppliers = append(suppliers, supplier)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suppliers: %w", err)
	}

	return suppliers, nil
}

func (r *supplierRepository) Update(supplier domain.Supplier) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	brands, err := marshalBrands(supplier.Brands)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE suppliers
		SET name = $3,
		    phone = $4,
		    email = $5,
		    address = $6,
		    brands = $7,
		    updated_at = $8
		WHERE id = $1
		  AND owner_id = $2
	`,
		supplier.ID, supplier.OwnerID, supplier.Name, supplier.Phone,
		supplier.Email, supplier.Address, brands, supplier.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update supplier: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		_, err := r.scoped(ctx, supplier.OwnerID, supplier.ID)
		if err != nil {
			return err
		}
		return domain.ErrNotFound
	}

	return nil
}

func (r *supplierRepository) Delete(ownerID, id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM suppliers WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete supplier: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		_, err := r.scoped(ctx, ownerID, id)
		if err != nil {
			return err
		}
		return domain.ErrNotFound
	}

	return nil
}

func (r *supplierRepository) scoped(ctx context.Context, ownerID, id string) (domain.Supplier, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+supplierColumns+`
		FROM suppliers
		WHERE id = $1
	`, id)

	supplier, err := scanSupplier(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Supplier{}, domain.ErrNotFound
		}
		return domain.Supplier{}, fmt.Errorf("select supplier: %w", err)
	}
	if supplier.OwnerID != ownerID {
		return domain.Supplier{}, domain.ErrPermissionDenied
	}

	return supplier, nil
}

func scanSupplier(row rowScanner) (domain.Supplier, error) {
	var (
		supplier domain.Supplier
		brands   []byte
	)

	err := row.Scan(
		&supplier.ID, &supplier.OwnerID, &supplier.Name, &supplier.Phone,
		&supplier.Email, &supplier.Address, &brands,
		&supplier.CreatedAt, &supplier.UpdatedAt,
	)
	if err != nil {
		return domain.Supplier{}, err
	}

	if len(brands) > 0 {
		if err := json.Unmarshal(brands, &supplier.Brands); err != nil {
			return domain.Supplier{}, fmt.Errorf("decode supplier brands: %w", err)
		}
	}

	return supplier, nil
}

// Бренды хранятся как JSONB-массив строк.
func marshalBrands(brands []string) ([]byte, error) {
	if brands == nil {
		brands = []string{}
	}
	data, err := json.Marshal(brands)
	if err != nil {
		return nil, fmt.Errorf("encode supplier brands: %w", err)
	}
	return data, nil
}

var _ domain.SupplierRepository = (*supplierRepository)(nil)
