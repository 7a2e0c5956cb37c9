package miner

import (
	"encoding/binary"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cyberia-to/universal-hash/types"
	"github.com/cyberia-to/universal-hash/uhash"
)

// TemplateMinSize is the smallest canonical mining input: 32-byte seed, an
// empty address, 8-byte timestamp and 8-byte nonce.
const TemplateMinSize = 48

// DefaultBatchSize keeps one batch in the tens-to-hundreds of milliseconds
// range, bounding responsiveness to stop and refresh.
const DefaultBatchSize = 16

var (
	ErrInputTooShort  = errors.New("mining template shorter than 48 bytes")
	ErrAlreadyRunning = errors.New("miner already running")
	// ErrCancelled ends a cooperative batch early when the session rotated
	// underneath it; HashesTried still reports the work done.
	ErrCancelled = errors.New("batch cancelled by rotation")
)

// Template is the canonical mining input, seed ‖ address ‖ LE64(timestamp)
// ‖ LE64(nonce), with the nonce window at the tail. The address goes in as
// raw UTF-8 bytes, no normalisation and no length prefix; the on-chain
// verifier reproduces this framing byte for byte.
type Template struct {
	buf []byte
}

func NewTemplate(seed types.Hash, address string, timestamp uint64) Template {
	buf := make([]byte, 0, types.HashSize+len(address)+16)
	buf = append(buf, seed[:]...)
	buf = append(buf, address...)
	buf = binary.LittleEndian.AppendUint64(buf, timestamp)
	buf = binary.LittleEndian.AppendUint64(buf, 0)
	return Template{buf: buf}
}

// PutNonce writes nonce into the tail window.
func (t Template) PutNonce(nonce uint64) {
	binary.LittleEndian.PutUint64(t.buf[len(t.buf)-8:], nonce)
}

func (t Template) Bytes() []byte {
	return t.buf
}

// clone gives a worker its own nonce window.
func (t Template) clone() Template {
	buf := make([]byte, len(t.buf))
	copy(buf, t.buf)
	return Template{buf: buf}
}

// Proof is an immutable record of a candidate that met difficulty. Seed
// tags which rotation produced it; proofs found before a refresh stay valid
// under the old seed until the verifier's rotation window closes.
type Proof struct {
	Hash        types.Hash `json:"hash"`
	Nonce       uint64     `json:"nonce"`
	Timestamp   uint64     `json:"timestamp"`
	HashesTried uint64     `json:"hashes_tried"`
	ElapsedNs   uint64     `json:"elapsed_ns"`
	Seed        types.Hash `json:"seed"`
}

// BatchResult is the outcome of one cooperative mining batch.
type BatchResult struct {
	Found       bool
	Hash        types.Hash
	Nonce       uint64
	HashesTried uint64
}

// Session is the immutable per-rotation state. Refresh replaces the whole
// session rather than mutating it.
type Session struct {
	ID             uuid.UUID
	Seed           types.Hash
	Address        string
	Timestamp      uint64
	DifficultyBits uint32

	template Template
}

func newSession(seed types.Hash, address string, timestamp uint64, difficultyBits uint32) (*Session, error) {
	template := NewTemplate(seed, address, timestamp)
	if len(template.Bytes()) < TemplateMinSize {
		return nil, ErrInputTooShort
	}
	return &Session{
		ID:             uuid.New(),
		Seed:           seed,
		Address:        address,
		Timestamp:      timestamp,
		DifficultyBits: difficultyBits,
		template:       template,
	}, nil
}

// Miner owns the nonce search. It serves two modes: synchronous MineBatch
// calls for cooperative single-threaded hosts, and Start/Stop with its own
// worker goroutines for native hosts. A long-lived Miner keeps its
// scratchpads across hashes.
type Miner struct {
	lock    sync.RWMutex
	session *Session

	generation atomic.Uint64
	running    atomic.Bool

	hashesDone atomic.Uint64
	queue      *proofQueue
	ring       *rateRing
	sinks      sinkSet

	batchSize uint64
	wg        sync.WaitGroup

	// hasher backs the synchronous MineBatch surface
	hasher *uhash.Hasher
}

func New(seed types.Hash, address string, timestamp uint64, difficultyBits uint32) (*Miner, error) {
	session, err := newSession(seed, address, timestamp, difficultyBits)
	if err != nil {
		return nil, err
	}

	return &Miner{
		session:   session,
		queue:     newProofQueue(),
		ring:      newRateRing(),
		batchSize: DefaultBatchSize,
		hasher:    uhash.NewSequentialHasher(),
	}, nil
}

// SetBatchSize tunes worker batch length. Takes effect at the next batch
// boundary.
func (m *Miner) SetBatchSize(n uint64) {
	if n == 0 {
		n = DefaultBatchSize
	}
	m.lock.Lock()
	m.batchSize = n
	m.lock.Unlock()
}

// AttachSink subscribes a sink to the miner event stream.
func (m *Miner) AttachSink(s Sink) {
	m.sinks.attach(s)
}

func (m *Miner) Session() *Session {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.session
}

// MineBatch evaluates batchSize nonces from start with the given stride on
// the calling goroutine. Returns as soon as a candidate meets difficulty,
// or after the batch is exhausted. The cooperative surface: an external
// event loop calls this repeatedly and stays responsive between batches.
func (m *Miner) MineBatch(start, stride, batchSize uint64) (BatchResult, error) {
	if stride == 0 {
		stride = 1
	}

	gen := m.generation.Load()
	m.lock.RLock()
	session := m.session
	m.lock.RUnlock()

	// own nonce window; the session template is shared with workers
	template := session.template.clone()
	var result BatchResult

	nonce := start
	for i := uint64(0); i < batchSize; i++ {
		if m.generation.Load() != gen {
			return result, ErrCancelled
		}
		template.PutNonce(nonce)
		digest := m.hasher.Sum(template.Bytes())
		result.HashesTried++
		m.hashesDone.Add(1)

		if types.CheckPoW(digest, session.DifficultyBits) {
			result.Found = true
			result.Hash = digest
			result.Nonce = nonce
			return result, nil
		}
		nonce += stride
	}
	return result, nil
}

// Start launches workers goroutines, worker w beginning at startNonce + w
// with stride workers. The partition covers every nonce exactly once with
// no cross-worker coordination. workers <= 0 uses one per CPU.
func (m *Miner) Start(workers int, startNonce uint64) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	gen := m.generation.Load()
	for w := 0; w < workers; w++ {
		m.wg.Add(1)
		go m.worker(w, workers, startNonce, gen)
	}
	return nil
}

// Stop signals all workers and waits for them to finish their in-flight
// batches. Hashes are never interrupted mid-way; a batch is the suspension
// unit.
func (m *Miner) Stop() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}
	m.generation.Add(1)
	m.wg.Wait()
}

// Refresh rotates the session to a new seed and difficulty. Workers abandon
// their in-flight batch at the next boundary and restart from a fresh nonce
// origin; the per-rotation dedup index resets. Pending proofs from the old
// seed stay queued, tagged with the seed that produced them.
func (m *Miner) Refresh(seed types.Hash, difficultyBits uint32, timestamp uint64) error {
	m.lock.Lock()
	session, err := newSession(seed, m.session.Address, timestamp, difficultyBits)
	if err != nil {
		m.lock.Unlock()
		return err
	}
	m.session = session
	m.lock.Unlock()

	m.queue.resetDedup()
	m.generation.Add(1)

	m.publish(Event{
		Type: EventRotation,
		Seed: seed,
	})
	return nil
}

// TakeProofs drains the pending-proof queue.
func (m *Miner) TakeProofs() []Proof {
	return m.queue.drain()
}

func (m *Miner) PendingProofs() int {
	return m.queue.size()
}

// HashesDone is the total number of digests computed over the miner's
// lifetime.
func (m *Miner) HashesDone() uint64 {
	return m.hashesDone.Load()
}

// Hashrate reports the rolling rate over the sample ring, in H/s.
func (m *Miner) Hashrate() float64 {
	return m.ring.rate()
}

func (m *Miner) Running() bool {
	return m.running.Load()
}

func (m *Miner) publish(ev Event) {
	ev.At = time.Now().UTC()
	m.sinks.publish(ev)
}

// worker runs batches until stopped. On refresh it re-reads the session and
// restarts its stride from the fresh origin. Finding a proof never pauses
// the search: the proof is enqueued and the very next nonce in the stride
// is evaluated.
func (m *Miner) worker(w, workers int, startNonce uint64, gen uint64) {
	defer m.wg.Done()

	hasher := uhash.NewSequentialHasher()
	stride := uint64(workers)
	nonce := startNonce + uint64(w)

	m.lock.RLock()
	session := m.session
	template := session.template.clone()
	batchSize := m.batchSize
	m.lock.RUnlock()

	for {
		if !m.running.Load() {
			return
		}
		if current := m.generation.Load(); current != gen {
			// rotation: pick up the new session and nonce origin
			gen = current
			nonce = startNonce + uint64(w)
			m.lock.RLock()
			session = m.session
			template = session.template.clone()
			batchSize = m.batchSize
			m.lock.RUnlock()
		}

		batchStart := time.Now()
		var tried uint64
		for i := uint64(0); i < batchSize; i++ {
			template.PutNonce(nonce)
			digest := hasher.Sum(template.Bytes())
			tried++

			if types.CheckPoW(digest, session.DifficultyBits) {
				proof := Proof{
					Hash:        digest,
					Nonce:       nonce,
					Timestamp:   session.Timestamp,
					HashesTried: m.hashesDone.Load() + tried,
					ElapsedNs:   uint64(time.Since(batchStart).Nanoseconds()),
					Seed:        session.Seed,
				}
				if m.queue.push(proof) {
					m.publish(Event{
						Type:  EventProofFound,
						Proof: &proof,
					})
				}
				// continuous mining: straight on to the next nonce
			}
			nonce += stride
		}

		done := m.hashesDone.Add(tried)
		m.ring.record(done)
	}
}
