package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/duka/domain"
)

const paymentColumns = `
	id, owner_id, order_id, reference, amount_minor, status, method,
	customer_name, customer_phone, customer_email,
	checkout_request_id, receipt, created_at, updated_at
`

type paymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository создаёт PostgreSQL-реализацию PaymentRepository.
func NewPaymentRepository(store *Store) domain.PaymentRepository {
	return &paymentRepository{db: store.DB()}
}

func (r *paymentRepository) Create(attempt domain.PaymentAttempt) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_attempts (
			id, owner_id, order_id, reference, amount_minor, status, method,
			customer_name, customer_phone, customer_email,
			checkout_request_id, receipt, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		attempt.ID, attempt.OwnerID, attempt.OrderID, attempt.Reference,
		attempt.AmountMinor, string(attempt.Status), string(attempt.Method),
		attempt.Customer.Name, attempt.Customer.Phone, attempt.Customer.Email,
		attempt.CheckoutRequestID, attempt.Receipt,
		attempt.CreatedAt, attempt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment attempt: %w", err)
	}

	return nil
}

func (r *paymentRepository) Get(ownerID, id string) (domain.PaymentAttempt, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.scoped(ctx, ownerID, id)
}

func (r *paymentRepository) List(ownerID string, limit int) ([]domain.PaymentAttempt, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT ` + paymentColumns + `
		FROM payment_attempts
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)

	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", ownerID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("list payment attempts: %w", err)
	}
	defer rows.Close()

	return collectAttempts(rows)
}

func (r *paymentRepository) ListByOrder(ownerID, orderID string) ([]domain.PaymentAttempt, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payment_attempts
		WHERE owner_id = $1
		  AND order_id = $2
		ORDER BY created_at DESC, id DESC
	`, ownerID, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payment attempts by order: %w", err)
	}
	defer rows.Close()

	return collectAttempts(rows)
}

func (r *paymentRepository) SetCheckoutRequestID(ownerID, id, checkoutRequestID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE payment_attempts
		SET checkout_request_id = $3,
		    updated_at = $4
		WHERE id = $1
		  AND owner_id = $2
	`, id, ownerID, checkoutRequestID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set checkout request id: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		_, err := r.scoped(ctx, ownerID, id)
		return err
	}

	return nil
}

// Complete переводит pending-попытку в completed одним условным обновлением:
// гонка двух подтверждений завершится успехом ровно одного.
func (r *paymentRepository) Complete(ownerID, id, receipt string) (domain.PaymentAttempt, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		UPDATE payment_attempts
		SET status = $3,
		    receipt = $4,
		    updated_at = $5
		WHERE id = $1
		  AND owner_id = $2
		  AND status = $6
		RETURNING `+paymentColumns,
		id, ownerID,
		string(domain.AttemptStatusCompleted), receipt, time.Now().UTC(),
		string(domain.AttemptStatusPending),
	)

	return r.finishTransition(ctx, row, ownerID, id, "complete payment attempt")
}

// Fail переводит pending-попытку в failed; терминальные попытки не трогает.
func (r *paymentRepository) Fail(ownerID, id string) (domain.PaymentAttempt, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		UPDATE payment_attempts
		SET status = $3,
		    updated_at = $4
		WHERE id = $1
		  AND owner_id = $2
		  AND status = $5
		RETURNING `+paymentColumns,
		id, ownerID,
		string(domain.AttemptStatusFailed), time.Now().UTC(),
		string(domain.AttemptStatusPending),
	)

	return r.finishTransition(ctx, row, ownerID, id, "fail payment attempt")
}

func (r *paymentRepository) CreateLink(link domain.PaymentLink) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_links (
			id, payment_id, url, status, expires_at, created_at
		) VALUES ($1,$2,$3,$4,$5,$6)
	`,
		link.ID, link.PaymentID, link.URL, link.Status,
		link.ExpiresAt, link.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert payment link: %w", err)
	}

	return nil
}

// finishTransition разбирает исход условного перехода статуса: успех,
// отсутствие записи, чужой владелец или уже терминальная попытка.
func (r *paymentRepository) finishTransition(ctx context.Context, row rowScanner, ownerID, id, op string) (domain.PaymentAttempt, error) {
	attempt, err := scanAttempt(row)
	if err == nil {
		return attempt, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.PaymentAttempt{}, fmt.Errorf("%s: %w", op, err)
	}

	existing, lookupErr := r.scoped(ctx, ownerID, id)
	if lookupErr != nil {
		return domain.PaymentAttempt{}, lookupErr
	}
	if existing.Status.Terminal() {
		return domain.PaymentAttempt{}, domain.ErrAttemptTerminal
	}

	return domain.PaymentAttempt{}, fmt.Errorf("%s: %w", op, err)
}

func (r *paymentRepository) scoped(ctx context.Context, ownerID, id string) (domain.PaymentAttempt, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payment_attempts
		WHERE id = $1
	`, id)

	attempt, err := scanAttempt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PaymentAttempt{}, domain.ErrNotFound
		}
		return domain.PaymentAttempt{}, fmt.Errorf("select payment attempt: %w", err)
	}
	if attempt.OwnerID != ownerID {
		return domain.PaymentAttempt{}, domain.ErrPermissionDenied
	}

	return attempt, nil
}

func collectAttempts(rows *sql.Rows) ([]domain.PaymentAttempt, error) {
	attempts := make([]domain.PaymentAttempt, 0)
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment attempts: %w", err)
	}

	return attempts, nil
}

func scanAttempt(row rowScanner) (domain.PaymentAttempt, error) {
	var (
		attempt domain.PaymentAttempt
		status  string
		method  string
	)

	err := row.Scan(
		&attempt.ID, &attempt.OwnerID, &attempt.OrderID, &attempt.Reference,
		&attempt.AmountMinor, &status, &method,
		&attempt.Customer.Name, &attempt.Customer.Phone, &attempt.Customer.Email,
		&attempt.CheckoutRequestID, &attempt.Receipt,
		&attempt.CreatedAt, &attempt.UpdatedAt,
	)
	if err != nil {
		return domain.PaymentAttempt{}, err
	}

	attempt.Status = domain.AttemptStatus(status)
	attempt.Method = domain.PaymentMethod(method)

	return attempt, nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
