// Package memory implements ports.Store in process memory. Transactions are
// serialized by a single lock and applied to a copy of the data set, which is
// swapped in only when the transaction function succeeds.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/bizdesk/backoffice/internal/core/domain"
	"github.com/bizdesk/backoffice/internal/core/ports"
)

var errReadOnly = errors.New("memory store: write in read-only transaction")

type dataset struct {
	users       map[string]domain.User
	assignments map[string]domain.CustomerAssignment // keyed by customer id
	products    map[string]domain.Product
	orders      map[string]domain.Order
}

func newDataset() *dataset {
	return &dataset{
		users:       make(map[string]domain.User),
		assignments: make(map[string]domain.CustomerAssignment),
		products:    make(map[string]domain.Product),
		orders:      make(map[string]domain.Order),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.assignments {
		c.assignments[k] = v
	}
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = cloneOrder(v)
	}
	return c
}

func cloneOrder(o domain.Order) domain.Order {
	if o.Items != nil {
		o.Items = append([]domain.OrderItem(nil), o.Items...)
	}
	return o
}

// Store is an in-memory ports.Store.
type Store struct {
	mu   sync.RWMutex
	data *dataset
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: newDataset()}
}

// InTx runs fn against a private copy of the data set and publishes the copy
// when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&tx{data: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

// View runs fn against the current data set under a read lock.
func (s *Store) View(ctx context.Context, fn func(tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&tx{data: s.data, readOnly: true})
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }
