package miner

import (
	"sync"
	"time"
)

const rateSamples = 64

type rateSample struct {
	at     time.Time
	hashes uint64
}

// rateRing is the bounded hashrate sample ring. Workers record the running
// hash counter at batch boundaries; the reporter reads the rolling rate as
// delta-hashes over delta-time across the ring.
type rateRing struct {
	lock    sync.Mutex
	samples [rateSamples]rateSample
	head    int
	count   int
}

func newRateRing() *rateRing {
	return &rateRing{}
}

func (r *rateRing) record(hashesDone uint64) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.samples[r.head] = rateSample{at: time.Now(), hashes: hashesDone}
	r.head = (r.head + 1) % rateSamples
	if r.count < rateSamples {
		r.count++
	}
}

func (r *rateRing) rate() float64 {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.count < 2 {
		return 0
	}

	newest := r.samples[(r.head+rateSamples-1)%rateSamples]
	oldest := r.samples[(r.head+rateSamples-r.count)%rateSamples]

	dt := newest.at.Sub(oldest.at).Seconds()
	if dt <= 0 || newest.hashes < oldest.hashes {
		return 0
	}
	return float64(newest.hashes-oldest.hashes) / dt
}
