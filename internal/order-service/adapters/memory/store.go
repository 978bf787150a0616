// Package memory is an in-process OrderStore.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-payment-saga/internal/order-service/domain"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
)

// Store keeps snapshots, so callers never share an Order with the store.
type Store struct {
	mu     sync.Mutex
	orders map[uuid.UUID]domain.Snapshot
}

func NewStore() *Store {
	return &Store{orders: make(map[uuid.UUID]domain.Snapshot)}
}

func (s *Store) Save(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID()] = o.Snapshot()
	return nil
}

func (s *Store) FindByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(id)
}

func (s *Store) find(id uuid.UUID) (*domain.Order, error) {
	snap, ok := s.orders[id]
	if !ok {
		return nil, errs.NotFound("order not found: %s", id)
	}
	return domain.Restore(snap), nil
}

func (s *Store) FindByCustomerID(_ context.Context, customerID uuid.UUID) ([]*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Order
	for _, snap := range s.orders {
		if snap.CustomerID == customerID {
			out = append(out, domain.Restore(snap))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().Before(out[j].CreatedAt()) })
	return out, nil
}

// Update holds the store lock for the whole read-modify-write.
func (s *Store) Update(_ context.Context, id uuid.UUID, fn func(*domain.Order) error) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.find(id)
	if err != nil {
		return nil, err
	}
	if err := fn(o); err != nil {
		return nil, err
	}
	s.orders[id] = o.Snapshot()
	return domain.Restore(s.orders[id]), nil
}

func (s *Store) Statistics(_ context.Context, filter domain.StatisticsFilter) (domain.Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := domain.Statistics{TotalRevenue: decimal.Zero}
	for _, snap := range s.orders {
		o := domain.Restore(snap)
		if !filter.Matches(o) {
			continue
		}
		stats.TotalOrders++
		stats.TotalRevenue = stats.TotalRevenue.Add(o.OriginalPrice())
	}
	return stats, nil
}
