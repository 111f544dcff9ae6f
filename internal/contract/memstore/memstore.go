// Package memstore is an in-memory contract.Repository. It enforces the same
// version and balance checks as the Postgres store under a single mutex.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/merenda/internal/contract"
)

type Store struct {
	mu        sync.RWMutex
	contracts map[uuid.UUID]*contract.Contract
	lineItems map[uuid.UUID]*contract.LineItem
	order     []uuid.UUID
	events    map[uuid.UUID][]*contract.Event
}

var _ contract.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		contracts: make(map[uuid.UUID]*contract.Contract),
		lineItems: make(map[uuid.UUID]*contract.LineItem),
		events:    make(map[uuid.UUID][]*contract.Event),
	}
}

func (s *Store) CreateContract(_ context.Context, c *contract.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.contracts[c.ID]; exists {
		return fmt.Errorf("contract %s already exists", c.ID)
	}

	stored := copyContract(c)
	s.contracts[c.ID] = stored
	s.order = append(s.order, c.ID)

	for _, li := range stored.LineItems {
		s.lineItems[li.ID] = li
	}

	return nil
}

func (s *Store) GetContract(_ context.Context, id uuid.UUID) (*contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contracts[id]
	if !ok {
		return nil, contract.ErrNotFound
	}

	return copyContract(c), nil
}

func (s *Store) ListContracts(_ context.Context, status *contract.Status) ([]*contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*contract.Contract

	for _, id := range s.order {
		c := s.contracts[id]
		if status != nil && c.Status != *status {
			continue
		}

		out = append(out, copyContract(c))
	}

	return out, nil
}

func (s *Store) UpdateStatus(_ context.Context, id uuid.UUID, status contract.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[id]
	if !ok {
		return contract.ErrNotFound
	}

	c.Status = status

	return nil
}

func (s *Store) GetLineItem(_ context.Context, contractID, lineItemID uuid.UUID) (*contract.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	li, ok := s.lineItems[lineItemID]
	if !ok || li.ContractID != contractID {
		return nil, contract.ErrLineItemNotFound
	}

	cp := *li

	return &cp, nil
}

func (s *Store) ApplyBalanceChange(_ context.Context, change contract.BalanceChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	li, ok := s.lineItems[change.LineItemID]
	if !ok {
		return contract.ErrLineItemNotFound
	}

	if s.contracts[li.ContractID].Status != contract.StatusActive {
		return contract.ErrClosed
	}

	if li.Version != change.ExpectedVersion {
		return contract.ErrStaleVersion
	}

	switch {
	case change.AcquiredQuantity.IsNegative(),
		change.AcquiredQuantity.GreaterThan(change.ContractedQuantity):
		return fmt.Errorf("line item %s: balance %s/%s out of bounds",
			li.ID, change.AcquiredQuantity, change.ContractedQuantity)
	case change.ContractedQuantity.LessThan(li.ContractedQuantity),
		change.AcquiredQuantity.LessThan(li.AcquiredQuantity):
		return fmt.Errorf("line item %s: balances cannot decrease", li.ID)
	}

	li.ContractedQuantity = change.ContractedQuantity
	li.AcquiredQuantity = change.AcquiredQuantity
	li.Version++

	ev := *change.Event
	s.events[li.ContractID] = append(s.events[li.ContractID], &ev)

	return nil
}

func (s *Store) ListEvents(_ context.Context, contractID uuid.UUID) ([]*contract.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.events[contractID]
	out := make([]*contract.Event, len(stored))

	for i, ev := range stored {
		cp := *ev
		out[i] = &cp
	}

	return out, nil
}

func copyContract(c *contract.Contract) *contract.Contract {
	cp := *c
	cp.LineItems = make([]*contract.LineItem, len(c.LineItems))

	for i, li := range c.LineItems {
		liCopy := *li
		cp.LineItems[i] = &liCopy
	}

	return &cp
}
