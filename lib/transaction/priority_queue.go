// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package transaction

import (
	"container/heap"
	"sort"
	"sync"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
)

type item struct {
	data  *ValidTransaction
	order uint64 // insertion order, breaks priority ties FIFO
	index int
}

type priorityQueue []*item

func (pq priorityQueue) Len() int { return len(pq) }

func lessItems(a, b *item) bool {
	if a.data.Validity.Priority == b.data.Validity.Priority {
		return a.order < b.order
	}
	return a.data.Validity.Priority > b.data.Validity.Priority
}

func (pq priorityQueue) Less(i, j int) bool {
	return lessItems(pq[i], pq[j])
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	n := len(*pq)
	it := x.(*item)
	it.index = n
	*pq = append(*pq, it)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*pq = old[:n-1]
	return it
}

// PriorityQueue is a thread-safe priority-ordered transaction queue.
// Equal priorities are served in submission order, so a fixed transaction
// set always drains in the same order regardless of interleaving.
type PriorityQueue struct {
	mu     sync.Mutex
	pq     priorityQueue
	byHash map[common.Hash]*item
	next   uint64
}

// NewPriorityQueue creates a new PriorityQueue.
func NewPriorityQueue() *PriorityQueue {
	q := &PriorityQueue{
		byHash: make(map[common.Hash]*item),
	}
	heap.Init(&q.pq)
	return q
}

// Push adds a transaction, ordered by priority. Re-pushing an extrinsic
// already in the queue is a no-op.
func (q *PriorityQueue) Push(vt *ValidTransaction) (common.Hash, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	hash := vt.Extrinsic.Hash()
	if _, has := q.byHash[hash]; has {
		return hash, nil
	}

	it := &item{data: vt, order: q.next}
	q.next++
	heap.Push(&q.pq, it)
	q.byHash[hash] = it
	return hash, nil
}

// Pop removes and returns the highest-priority transaction, or nil.
func (q *PriorityQueue) Pop() *ValidTransaction {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pq.Len() == 0 {
		return nil
	}

	it := heap.Pop(&q.pq).(*item)
	delete(q.byHash, it.data.Extrinsic.Hash())
	return it.data
}

// Peek returns the highest-priority transaction without removing it, or nil.
func (q *PriorityQueue) Peek() *ValidTransaction {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pq.Len() == 0 {
		return nil
	}
	return q.pq[0].data
}

// Pending returns all queued transactions in priority order. The queue is
// not modified.
func (q *PriorityQueue) Pending() []*ValidTransaction {
	q.mu.Lock()
	defer q.mu.Unlock()

	// sort a snapshot of the item pointers; popping a copied heap would
	// rewrite the shared heap indices and corrupt the live queue
	cp := make([]*item, len(q.pq))
	copy(cp, q.pq)
	sort.Slice(cp, func(i, j int) bool { return lessItems(cp[i], cp[j]) })

	pending := make([]*ValidTransaction, len(cp))
	for i, it := range cp {
		pending[i] = it.data
	}
	return pending
}

// RemoveExtrinsic removes the transaction with the given extrinsic, if queued.
func (q *PriorityQueue) RemoveExtrinsic(ext types.Extrinsic) {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, has := q.byHash[ext.Hash()]
	if !has {
		return
	}

	heap.Remove(&q.pq, it.index)
	delete(q.byHash, ext.Hash())
}

// Exists returns true if the extrinsic is in the queue.
func (q *PriorityQueue) Exists(ext types.Extrinsic) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, has := q.byHash[ext.Hash()]
	return has
}

// Len returns the number of queued transactions.
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pq.Len()
}
