// Package memory is an in-process payment Store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-payment-saga/internal/payment-service/app"
	"github.com/jcmexdev/order-payment-saga/internal/payment-service/domain"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
)

type creditRow struct {
	id    uuid.UUID
	total decimal.Decimal
}

// Store serializes each customer with a keyLock and guards the maps with mu.
// mu is only held for map access, never across a SettleFunc.
type Store struct {
	customers *keyLock

	mu       sync.RWMutex
	credits  map[uuid.UUID]creditRow
	payments map[uuid.UUID]domain.PaymentSnapshot // by order id
}

var _ app.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		customers: newKeyLock(),
		credits:   make(map[uuid.UUID]creditRow),
		payments:  make(map[uuid.UUID]domain.PaymentSnapshot),
	}
}

func (s *Store) Settle(ctx context.Context, orderID, customerID uuid.UUID, fn app.SettleFunc) error {
	unlock := s.customers.Lock(customerID)
	defer unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	credit := s.loadCredit(customerID, true)
	existing, _ := s.loadPayment(orderID)

	payment, err := fn(existing, credit)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.credits[customerID] = creditRow{id: credit.ID(), total: credit.TotalCredit()}
	if payment != nil {
		s.payments[orderID] = payment.Snapshot()
	}
	return nil
}

func (s *Store) UpdateCredit(ctx context.Context, customerID uuid.UUID, create bool, fn func(*domain.CreditEntry) error) (*domain.CreditEntry, error) {
	unlock := s.customers.Lock(customerID)
	defer unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	credit := s.loadCredit(customerID, create)
	if credit == nil {
		return nil, creditNotFound(customerID)
	}
	if err := fn(credit); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.credits[customerID] = creditRow{id: credit.ID(), total: credit.TotalCredit()}
	s.mu.Unlock()
	return credit, nil
}

func (s *Store) FindCredit(_ context.Context, customerID uuid.UUID) (*domain.CreditEntry, error) {
	if c := s.loadCredit(customerID, false); c != nil {
		return c, nil
	}
	return nil, creditNotFound(customerID)
}

func (s *Store) SavePayment(_ context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.OrderID()] = p.Snapshot()
	return nil
}

func (s *Store) FindPaymentByOrderID(_ context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	if p, ok := s.loadPayment(orderID); ok {
		return p, nil
	}
	return nil, errs.NotFound("payment not found for order: %s", orderID)
}

func (s *Store) FindPaymentsByCustomerID(_ context.Context, customerID uuid.UUID) ([]*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Payment
	for _, snap := range s.payments {
		if snap.CustomerID == customerID {
			out = append(out, domain.RestorePayment(snap))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().Before(out[j].CreatedAt()) })
	return out, nil
}

// loadCredit returns a copy of the customer's entry. With create a missing
// entry is returned at zero; it is only stored once the caller saves it.
func (s *Store) loadCredit(customerID uuid.UUID, create bool) *domain.CreditEntry {
	s.mu.RLock()
	row, ok := s.credits[customerID]
	s.mu.RUnlock()
	if ok {
		return domain.RestoreCreditEntry(row.id, customerID, row.total)
	}
	if !create {
		return nil
	}
	return domain.RestoreCreditEntry(uuid.New(), customerID, decimal.Zero)
}

func (s *Store) loadPayment(orderID uuid.UUID) (*domain.Payment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.payments[orderID]
	if !ok {
		return nil, false
	}
	return domain.RestorePayment(snap), true
}

func creditNotFound(customerID uuid.UUID) error {
	return errs.NotFound("Credit entry not found for customer: %s", customerID)
}
