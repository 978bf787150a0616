// Package postgres is the pgx-backed payment Store. Every credit mutation
// locks the customer's credit row with SELECT ... FOR UPDATE, which is what
// serializes concurrent debits across processes.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-payment-saga/internal/payment-service/app"
	"github.com/jcmexdev/order-payment-saga/internal/payment-service/domain"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
	pg "github.com/jcmexdev/order-payment-saga/internal/pkg/postgres"
)

const paymentColumns = `id, order_id, customer_id, price::text, status, failure_message, created_at`

type Store struct {
	pool *pgxpool.Pool
}

var _ app.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Settle(ctx context.Context, orderID, customerID uuid.UUID, fn app.SettleFunc) error {
	return pg.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		credit, err := lockCredit(ctx, tx, customerID, true)
		if err != nil {
			return err
		}
		existing, err := findPayment(ctx, tx, `WHERE order_id = $1 FOR UPDATE`, orderID)
		if err != nil && !pg.IsNoRows(err) {
			return fmt.Errorf("postgres: load payment of order %s: %w", orderID, err)
		}

		payment, err := fn(existing, credit)
		if err != nil {
			return err
		}
		if err := saveCredit(ctx, tx, credit); err != nil {
			return err
		}
		if payment != nil {
			return savePayment(ctx, tx, payment)
		}
		return nil
	})
}

func (s *Store) UpdateCredit(ctx context.Context, customerID uuid.UUID, create bool, fn func(*domain.CreditEntry) error) (*domain.CreditEntry, error) {
	var credit *domain.CreditEntry
	err := pg.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		if credit, err = lockCredit(ctx, tx, customerID, create); err != nil {
			return err
		}
		if err := fn(credit); err != nil {
			return err
		}
		return saveCredit(ctx, tx, credit)
	})
	if err != nil {
		return nil, err
	}
	return credit, nil
}

func (s *Store) FindCredit(ctx context.Context, customerID uuid.UUID) (*domain.CreditEntry, error) {
	var (
		id    uuid.UUID
		total string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, total_credit::text FROM credit_entries WHERE customer_id = $1`, customerID,
	).Scan(&id, &total)
	if pg.IsNoRows(err) {
		return nil, creditNotFound(customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load credit of %s: %w", customerID, err)
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse credit %q: %w", total, err)
	}
	return domain.RestoreCreditEntry(id, customerID, amount), nil
}

func (s *Store) SavePayment(ctx context.Context, p *domain.Payment) error {
	return pg.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		return savePayment(ctx, tx, p)
	})
}

func (s *Store) FindPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	var p *domain.Payment
	err := pg.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		p, err = findPayment(ctx, tx, `WHERE order_id = $1`, orderID)
		return err
	})
	if pg.IsNoRows(err) {
		return nil, errs.NotFound("payment not found for order: %s", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load payment of order %s: %w", orderID, err)
	}
	return p, nil
}

func (s *Store) FindPaymentsByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*domain.Payment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE customer_id = $1 ORDER BY created_at`, customerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list payments of %s: %w", customerID, err)
	}
	payments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Payment, error) {
		return scanPayment(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan payments of %s: %w", customerID, err)
	}
	return payments, nil
}

// lockCredit returns the customer's credit row locked for the rest of tx.
// With create a missing row is inserted at zero first; ON CONFLICT covers a
// concurrent insert by another transaction.
func lockCredit(ctx context.Context, tx pgx.Tx, customerID uuid.UUID, create bool) (*domain.CreditEntry, error) {
	if create {
		_, err := tx.Exec(ctx, `
			INSERT INTO credit_entries (id, customer_id, total_credit) VALUES ($1, $2, 0)
			ON CONFLICT (customer_id) DO NOTHING`, uuid.New(), customerID)
		if err != nil {
			return nil, fmt.Errorf("postgres: create credit of %s: %w", customerID, err)
		}
	}

	var (
		id    uuid.UUID
		total string
	)
	err := tx.QueryRow(ctx,
		`SELECT id, total_credit::text FROM credit_entries WHERE customer_id = $1 FOR UPDATE`, customerID,
	).Scan(&id, &total)
	if pg.IsNoRows(err) {
		return nil, creditNotFound(customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: lock credit of %s: %w", customerID, err)
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse credit %q: %w", total, err)
	}
	return domain.RestoreCreditEntry(id, customerID, amount), nil
}

func saveCredit(ctx context.Context, tx pgx.Tx, c *domain.CreditEntry) error {
	_, err := tx.Exec(ctx, `UPDATE credit_entries SET total_credit = $2::text::numeric WHERE id = $1`,
		c.ID(), c.TotalCredit().String())
	if err != nil {
		return fmt.Errorf("postgres: save credit of %s: %w", c.CustomerID(), err)
	}
	return nil
}

func savePayment(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO payments (id, order_id, customer_id, price, status, failure_message, created_at)
		VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7)
		ON CONFLICT (order_id) DO UPDATE SET status = EXCLUDED.status, failure_message = EXCLUDED.failure_message`,
		p.ID(), p.OrderID(), p.CustomerID(), p.Price().String(), string(p.Status()), p.FailureMessage(), p.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("postgres: save payment of order %s: %w", p.OrderID(), err)
	}
	return nil
}

func findPayment(ctx context.Context, tx pgx.Tx, where string, arg any) (*domain.Payment, error) {
	return scanPayment(tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments `+where, arg))
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		snap   domain.PaymentSnapshot
		price  string
		status string
		at     time.Time
	)
	if err := row.Scan(&snap.ID, &snap.OrderID, &snap.CustomerID, &price, &status, &snap.FailureMessage, &at); err != nil {
		return nil, err
	}
	var err error
	if snap.Price, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	snap.Status = domain.PaymentStatus(status)
	snap.CreatedAt = at.UTC()
	return domain.RestorePayment(snap), nil
}

func creditNotFound(customerID uuid.UUID) error {
	return errs.NotFound("Credit entry not found for customer: %s", customerID)
}
