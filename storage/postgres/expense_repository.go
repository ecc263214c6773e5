package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/duka/domain"
)

const expenseColumns = `
	id, owner_id, category, description, amount_minor, spent_at, created_at, updated_at
`

type expenseRepository struct {
	db *sql.DB
}

// NewExpenseRepository создаёт PostgreSQL-реализацию ExpenseRepository.
func NewExpenseRepository(store *Store) domain.ExpenseRepository {
	return &expenseRepository{db: store.DB()}
}

func (r *expenseRepository) Create(expense domain.Expense) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (
			id, owner_id, category, description, amount_minor, spent_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		expense.ID, expense.OwnerID, expense.Category, expense.Description,
		expense.AmountMinor, expense.SpentAt, expense.CreatedAt, expense.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}

	return nil
}

func (r *expenseRepository) Get(ownerID, id string) (domain.Expense, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.scoped(ctx, ownerID, id)
}

func (r *expenseRepository) List(ownerID string) ([]domain.Expense, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE owner_id = $1
		ORDER BY spent_at DESC, id DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0)
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}

	return expenses, nil
}

func (r *expenseRepository) Update(expense domain.Expense) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses
		SET category = $3,
		    description = $4,
		    amount_minor = $5,
		    spent_at = $6,
		    updated_at = $7
		WHERE id = $1
		  AND owner_id = $2
	`,
		expense.ID, expense.OwnerID, expense.Category, expense.Description,
		expense.AmountMinor, expense.SpentAt, expense.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		_, err := r.scoped(ctx, expense.OwnerID, expense.ID)
		if err != nil {
			return err
		}
		return domain.ErrNotFound
	}

	return nil
}

func (r *expenseRepository) Delete(ownerID, id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM expenses WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
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

func (r *expenseRepository) scoped(ctx context.Context, ownerID, id string) (domain.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE id = $1
	`, id)

	expense, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Expense{}, domain.ErrNotFound
		}
		return domain.Expense{}, fmt.Errorf("select expense: %w", err)
	}
	if expense.OwnerID != ownerID {
		return domain.Expense{}, domain.ErrPermissionDenied
	}

	return expense, nil
}

func scanExpense(row rowScanner) (domain.Expense, error) {
	var expense domain.Expense
	err := row.Scan(
		&expense.ID, &expense.OwnerID, &expense.Category, &expense.Description,
		&expense.AmountMinor, &expense.SpentAt, &expense.CreatedAt, &expense.UpdatedAt,
	)
	if err != nil {
		return domain.Expense{}, err
	}
	return expense, nil
}

var _ domain.ExpenseRepository = (*expenseRepository)(nil)
