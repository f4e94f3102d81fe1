// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package state

import (
	"sync"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
	"github.com/emberchain/ember/lib/transaction"
)

// TransactionState holds the pending transaction pool and the ready queue.
type TransactionState struct {
	queue *transaction.PriorityQueue
	pool  *transaction.Pool

	// notifierChannels maps a status channel to the hex string of the
	// extrinsic it reports on.
	notifierChannels map[chan transaction.Status]string
	notifierLock     sync.RWMutex
}

// NewTransactionState returns a new TransactionState.
func NewTransactionState(poolOpts ...transaction.PoolOption) *TransactionState {
	return &TransactionState{
		queue:            transaction.NewPriorityQueue(),
		pool:             transaction.NewPool(poolOpts...),
		notifierChannels: make(map[chan transaction.Status]string),
	}
}

// Push pushes a transaction to the ready queue, ordered by priority. The
// first promotion of an extrinsic reports the Ready status.
func (s *TransactionState) Push(vt *transaction.ValidTransaction) (common.Hash, error) {
	if !s.queue.Exists(vt.Extrinsic) {
		s.notifyStatus(vt.Extrinsic, transaction.Ready)
	}
	return s.queue.Push(vt)
}

// Pop removes and returns the head of the ready queue.
func (s *TransactionState) Pop() *transaction.ValidTransaction {
	return s.queue.Pop()
}

// Peek returns the head of the ready queue without removing it.
func (s *TransactionState) Peek() *transaction.ValidTransaction {
	return s.queue.Peek()
}

// Pending returns the current transactions in the queue and pool.
func (s *TransactionState) Pending() []*transaction.ValidTransaction {
	return append(s.queue.Pending(), s.pool.Transactions()...)
}

// PendingInPool returns the current transactions in the pool.
func (s *TransactionState) PendingInPool() []*transaction.ValidTransaction {
	return s.pool.Transactions()
}

// Best promotes the pool's best transactions into the ready queue and
// returns up to budget of them in execution order. The pool resolves
// priority and dependency ordering; the queue carries the promoted ready
// set until inclusion evicts it. Queue entries whose pool copy was evicted
// in the meantime are dropped.
func (s *TransactionState) Best(budget int) []*transaction.ValidTransaction {
	best := s.pool.Best(budget)
	for _, vt := range best {
		if _, err := s.Push(vt); err != nil {
			logger.Warn("failed to promote transaction",
				"extrinsic", vt.Extrinsic.Hash(), "error", err)
		}
	}

	for _, vt := range s.queue.Pending() {
		if s.pool.Get(vt.Extrinsic.Hash()) == nil {
			s.queue.RemoveExtrinsic(vt.Extrinsic)
		}
	}
	return best
}

// Exists reports whether the extrinsic is known to the pool or queue.
func (s *TransactionState) Exists(ext types.Extrinsic) bool {
	if s.pool.Get(ext.Hash()) != nil {
		return true
	}
	return s.queue.Exists(ext)
}

// RemoveExtrinsic removes an extrinsic from the queue and pool.
func (s *TransactionState) RemoveExtrinsic(ext types.Extrinsic) {
	s.pool.Remove(ext.Hash())
	s.queue.RemoveExtrinsic(ext)
}

// RemoveExtrinsicFromPool removes an extrinsic from the pool only.
func (s *TransactionState) RemoveExtrinsicFromPool(ext types.Extrinsic) {
	s.pool.Remove(ext.Hash())
}

// AddToPool adds a validated transaction to the pool.
func (s *TransactionState) AddToPool(vt *transaction.ValidTransaction) (common.Hash, error) {
	hash, err := s.pool.Insert(vt)
	if err != nil {
		return common.Hash{}, err
	}

	s.notifyStatus(vt.Extrinsic, transaction.Future)
	return hash, nil
}

// NotifyStatus reports a status transition for the given extrinsic to any
// registered listeners.
func (s *TransactionState) NotifyStatus(ext types.Extrinsic, status transaction.Status) {
	s.notifyStatus(ext, status)
}

// GetStatusNotifierChannel creates and returns a status notifier channel.
func (s *TransactionState) GetStatusNotifierChannel(ext types.Extrinsic) chan transaction.Status {
	s.notifierLock.Lock()
	defer s.notifierLock.Unlock()

	ch := make(chan transaction.Status, defaultBufferSize)
	s.notifierChannels[ch] = ext.String()
	return ch
}

// FreeStatusNotifierChannel deletes the given status notifier channel.
func (s *TransactionState) FreeStatusNotifierChannel(ch chan transaction.Status) {
	s.notifierLock.Lock()
	defer s.notifierLock.Unlock()

	delete(s.notifierChannels, ch)
}

// CollectGauge exports pool and queue sizes for the metrics collector.
func (s *TransactionState) CollectGauge() map[string]int64 {
	return map[string]int64{
		"ember/transaction/pool":  int64(len(s.pool.Transactions())),
		"ember/transaction/queue": int64(len(s.queue.Pending())),
	}
}

func (s *TransactionState) notifyStatus(ext types.Extrinsic, status transaction.Status) {
	s.notifierLock.RLock()
	defer s.notifierLock.RUnlock()

	extStr := ext.String()
	for ch, target := range s.notifierChannels {
		if target != extStr {
			continue
		}
		select {
		case ch <- status:
		default:
		}
	}
}
