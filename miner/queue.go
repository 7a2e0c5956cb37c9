package miner

import (
	"sync"

	"github.com/dolthub/swiss"
)

// proofQueue is the multi-producer single-consumer pending-proof queue.
// Coarse-locked: pushes are rare (one per found proof) and the consumer
// swap-drains. A swiss map keyed by nonce guards against duplicate
// submissions within one rotation; it resets on refresh.
type proofQueue struct {
	lock    sync.Mutex
	pending []Proof
	seen    *swiss.Map[uint64, struct{}]
}

func newProofQueue() *proofQueue {
	return &proofQueue{
		seen: swiss.NewMap[uint64, struct{}](64),
	}
}

// push enqueues p unless its nonce was already recorded this rotation.
// Reports whether the proof was accepted.
func (q *proofQueue) push(p Proof) bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.seen.Has(p.Nonce) {
		return false
	}
	q.seen.Put(p.Nonce, struct{}{})
	q.pending = append(q.pending, p)
	return true
}

// drain hands the pending slice to the consumer and starts a fresh one.
// Enqueue order is preserved per worker.
func (q *proofQueue) drain() []Proof {
	q.lock.Lock()
	defer q.lock.Unlock()

	out := q.pending
	q.pending = nil
	return out
}

func (q *proofQueue) size() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.pending)
}

// resetDedup clears the per-rotation nonce index. Pending proofs survive;
// they carry their originating seed.
func (q *proofQueue) resetDedup() {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.seen.Clear()
}
