// Package postgres is the pgx-backed OrderStore.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-payment-saga/internal/order-service/domain"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
	pg "github.com/jcmexdev/order-payment-saga/internal/pkg/postgres"
)

// Money columns travel as text so decimals never pass through float64.
const orderColumns = `id, customer_id, restaurant_id, tracking_id,
	original_price::text, discount::text, voucher_code, price::text,
	status, failure_messages, rating, comment, created_at`

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Save(ctx context.Context, o *domain.Order) error {
	return pg.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		snap := o.Snapshot()
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (id, customer_id, restaurant_id, tracking_id, original_price, discount,
				voucher_code, price, status, failure_messages, rating, comment, created_at)
			VALUES ($1, $2, $3, $4, $5::text::numeric, $6::text::numeric, $7, $8::text::numeric, $9, $10, $11, $12, $13)`,
			snap.ID, snap.CustomerID, snap.RestaurantID, snap.TrackingID,
			snap.OriginalPrice.String(), snap.Discount.String(), snap.VoucherCode, snap.Price.String(),
			string(snap.Status), snap.FailureMessages, ratingScore(snap.Rating), ratingComment(snap.Rating), snap.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert order %s: %w", snap.ID, err)
		}
		return insertItems(ctx, tx, snap.ID, snap.Items)
	})
}

func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var o *domain.Order
	err := pg.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		o, err = load(ctx, tx, id, false)
		return err
	})
	return o, err
}

func (s *Store) FindByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*domain.Order, error) {
	var out []*domain.Order
	err := pg.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at`, customerID)
		if err != nil {
			return fmt.Errorf("postgres: list orders of %s: %w", customerID, err)
		}
		snaps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Snapshot, error) {
			return scanOrder(row)
		})
		if err != nil {
			return fmt.Errorf("postgres: scan orders of %s: %w", customerID, err)
		}
		for _, snap := range snaps {
			if snap.Items, err = loadItems(ctx, tx, snap.ID); err != nil {
				return err
			}
			out = append(out, domain.Restore(snap))
		}
		return nil
	})
	return out, err
}

// Update locks the order row for the whole read-modify-write, so concurrent
// settlements of the same order apply one after the other.
func (s *Store) Update(ctx context.Context, id uuid.UUID, fn func(*domain.Order) error) (*domain.Order, error) {
	var o *domain.Order
	err := pg.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		if o, err = load(ctx, tx, id, true); err != nil {
			return err
		}
		if err := fn(o); err != nil {
			return err
		}

		snap := o.Snapshot()
		_, err = tx.Exec(ctx, `
			UPDATE orders SET original_price = $2::text::numeric, discount = $3::text::numeric, voucher_code = $4,
				price = $5::text::numeric, status = $6, failure_messages = $7, rating = $8, comment = $9
			WHERE id = $1`,
			snap.ID, snap.OriginalPrice.String(), snap.Discount.String(), snap.VoucherCode,
			snap.Price.String(), string(snap.Status), snap.FailureMessages,
			ratingScore(snap.Rating), ratingComment(snap.Rating),
		)
		if err != nil {
			return fmt.Errorf("postgres: update order %s: %w", id, err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
			return fmt.Errorf("postgres: clear items of %s: %w", id, err)
		}
		return insertItems(ctx, tx, id, snap.Items)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) Statistics(ctx context.Context, filter domain.StatisticsFilter) (domain.Statistics, error) {
	var (
		count   int64
		revenue string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT count(*), COALESCE(sum(original_price), 0)::text
		FROM orders
		WHERE ($1::uuid IS NULL OR customer_id = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at <= $3)`,
		filter.CustomerID, filter.From, filter.To,
	).Scan(&count, &revenue)
	if err != nil {
		return domain.Statistics{}, fmt.Errorf("postgres: order statistics: %w", err)
	}
	total, err := decimal.NewFromString(revenue)
	if err != nil {
		return domain.Statistics{}, fmt.Errorf("postgres: parse revenue %q: %w", revenue, err)
	}
	return domain.Statistics{TotalOrders: count, TotalRevenue: total}, nil
}

func load(ctx context.Context, tx pgx.Tx, id uuid.UUID, forUpdate bool) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	snap, err := scanOrder(tx.QueryRow(ctx, query, id))
	if pg.IsNoRows(err) {
		return nil, errs.NotFound("order not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load order %s: %w", id, err)
	}
	if snap.Items, err = loadItems(ctx, tx, id); err != nil {
		return nil, err
	}
	return domain.Restore(snap), nil
}

func scanOrder(row pgx.Row) (domain.Snapshot, error) {
	var (
		snap                          domain.Snapshot
		original, discount, price, st string
		rating                        *int
		comment                       string
		createdAt                     time.Time
	)
	err := row.Scan(&snap.ID, &snap.CustomerID, &snap.RestaurantID, &snap.TrackingID,
		&original, &discount, &snap.VoucherCode, &price,
		&st, &snap.FailureMessages, &rating, &comment, &createdAt)
	if err != nil {
		return snap, err
	}
	if snap.OriginalPrice, err = decimal.NewFromString(original); err != nil {
		return snap, err
	}
	if snap.Discount, err = decimal.NewFromString(discount); err != nil {
		return snap, err
	}
	if snap.Price, err = decimal.NewFromString(price); err != nil {
		return snap, err
	}
	snap.Status = domain.OrderStatus(st)
	snap.CreatedAt = createdAt.UTC()
	if rating != nil {
		snap.Rating = &domain.Rating{Score: *rating, Comment: comment}
	}
	return snap, nil
}

func loadItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := tx.Query(ctx,
		`SELECT product_id, price::text, quantity FROM order_items WHERE order_id = $1 ORDER BY position`, orderID)
	if err != nil {
		return nil, fmt.Errorf("postgres: load items of %s: %w", orderID, err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OrderItem, error) {
		var (
			it    domain.OrderItem
			price string
		)
		if err := row.Scan(&it.ProductID, &price, &it.Quantity); err != nil {
			return it, err
		}
		var err error
		it.Price, err = decimal.NewFromString(price)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan items of %s: %w", orderID, err)
	}
	return items, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, items []domain.OrderItem) error {
	batch := &pgx.Batch{}
	for i, it := range items {
		batch.Queue(`INSERT INTO order_items (order_id, position, product_id, price, quantity)
			VALUES ($1, $2, $3, $4::text::numeric, $5)`, orderID, i, it.ProductID, it.Price.String(), it.Quantity)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: insert items of %s: %w", orderID, err)
	}
	return nil
}

func ratingScore(r *domain.Rating) *int {
	if r == nil {
		return nil
	}
	return &r.Score
}

func ratingComment(r *domain.Rating) string {
	if r == nil {
		return ""
	}
	return r.Comment
}
