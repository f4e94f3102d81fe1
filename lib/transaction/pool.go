// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package transaction

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/emberchain/ember/lib/common"
)

// DefaultCapacity is the pool's default maximum transaction count.
const DefaultCapacity = 8192

var (
	// ErrPoolFull is returned when the pool is at capacity.
	ErrPoolFull = errors.New("transaction pool is full")

	// ErrTransactionUsurped is returned when a submitted transaction
	// conflicts with a queued transaction of higher priority.
	ErrTransactionUsurped = errors.New("transaction usurped by higher priority conflict")
)

type poolEntry struct {
	vt         *ValidTransaction
	insertedAt time.Time
}

// Pool holds validated transactions awaiting inclusion. Internally
// synchronized: multiple callers may insert and read concurrently.
type Pool struct {
	mu           sync.RWMutex
	transactions map[common.Hash]*poolEntry
	provides     map[string]common.Hash // dependency tag -> providing tx
	capacity     int
	lifetime     time.Duration
	now          func() time.Time
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithCapacity sets the pool's maximum transaction count.
func WithCapacity(capacity int) PoolOption {
	return func(p *Pool) { p.capacity = capacity }
}

// WithLifetime sets the duration after which an unincluded transaction is
// evicted. Zero disables expiry.
func WithLifetime(lifetime time.Duration) PoolOption {
	return func(p *Pool) { p.lifetime = lifetime }
}

func withClock(now func() time.Time) PoolOption {
	return func(p *Pool) { p.now = now }
}

// NewPool returns a new empty Pool.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		transactions: make(map[common.Hash]*poolEntry),
		provides:     make(map[string]common.Hash),
		capacity:     DefaultCapacity,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Insert adds a transaction to the pool. A transaction whose Provides tags
// conflict with a queued lower-priority transaction usurps it; if the queued
// conflict has higher or equal priority the new transaction is rejected.
func (p *Pool) Insert(vt *ValidTransaction) (common.Hash, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.evictExpiredLocked()

	hash := vt.Extrinsic.Hash()
	if _, has := p.transactions[hash]; has {
		return hash, nil
	}

	var usurped []common.Hash
	for _, tag := range vt.Validity.Provides {
		existingHash, has := p.provides[string(tag)]
		if !has {
			continue
		}

		existing := p.transactions[existingHash]
		if existing == nil {
			continue
		}

		if existing.vt.Validity.Priority >= vt.Validity.Priority {
			return common.Hash{}, fmt.Errorf("%w: conflicting tag %s",
				ErrTransactionUsurped, common.BytesToHex(tag))
		}
		usurped = append(usurped, existingHash)
	}

	if len(p.transactions)-len(usurped) >= p.capacity {
		return common.Hash{}, ErrPoolFull
	}

	for _, h := range usurped {
		p.removeLocked(h)
	}

	p.transactions[hash] = &poolEntry{vt: vt, insertedAt: p.now()}
	for _, tag := range vt.Validity.Provides {
		p.provides[string(tag)] = hash
	}
	return hash, nil
}

// Transactions returns all transactions currently in the pool.
func (p *Pool) Transactions() []*ValidTransaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	txs := make([]*ValidTransaction, 0, len(p.transactions))
	for _, entry := range p.transactions {
		txs = append(txs, entry.vt)
	}
	return txs
}

// Get returns the pooled transaction with the given hash, or nil.
func (p *Pool) Get(hash common.Hash) *ValidTransaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entry := p.transactions[hash]
	if entry == nil {
		return nil
	}
	return entry.vt
}

// Remove removes a transaction from the pool.
func (p *Pool) Remove(hash common.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(hash)
}

// Len returns the number of pooled transactions.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.transactions)
}

// Best returns up to budget ready transactions in priority-descending order.
// A transaction with an unmet Requires tag is excluded until another
// transaction providing that tag precedes it. The computation is restartable:
// it never consumes pool contents.
func (p *Pool) Best(budget int) []*ValidTransaction {
	p.mu.Lock()
	p.evictExpiredLocked()

	queue := NewPriorityQueue()
	for _, entry := range p.transactions {
		_, _ = queue.Push(entry.vt)
	}
	p.mu.Unlock()

	provided := make(map[string]bool)
	var (
		best     []*ValidTransaction
		deferred []*ValidTransaction
	)

	// drain in priority order, deferring transactions whose dependencies
	// are unmet; retry deferred ones whenever new tags become available
	for len(best) < budget {
		vt := queue.Pop()
		if vt == nil {
			break
		}

		if !requiresMet(vt, provided) {
			deferred = append(deferred, vt)
			continue
		}

		best = append(best, vt)
		for _, tag := range vt.Validity.Provides {
			provided[string(tag)] = true
		}

		// newly provided tags may unblock deferred transactions
		still := deferred[:0]
		for _, d := range deferred {
			if len(best) < budget && requiresMet(d, provided) {
				best = append(best, d)
				for _, tag := range d.Validity.Provides {
					provided[string(tag)] = true
				}
				continue
			}
			still = append(still, d)
		}
		deferred = still
	}

	return best
}

func requiresMet(vt *ValidTransaction, provided map[string]bool) bool {
	for _, tag := range vt.Validity.Requires {
		if !provided[string(tag)] {
			return false
		}
	}
	return true
}

func (p *Pool) removeLocked(hash common.Hash) {
	entry := p.transactions[hash]
	if entry == nil {
		return
	}

	for _, tag := range entry.vt.Validity.Provides {
		if p.provides[string(tag)] == hash {
			delete(p.provides, string(tag))
		}
	}
	delete(p.transactions, hash)
}

func (p *Pool) evictExpiredLocked() {
	if p.lifetime == 0 {
		return
	}

	cutoff := p.now().Add(-p.lifetime)
	for hash, entry := range p.transactions {
		if entry.insertedAt.Before(cutoff) {
			p.removeLocked(hash)
		}
	}
}
