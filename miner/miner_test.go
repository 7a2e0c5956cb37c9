package miner

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberia-to/universal-hash/types"
	"github.com/cyberia-to/universal-hash/uhash"
)

func testSeed(b byte) (seed types.Hash) {
	for i := range seed {
		seed[i] = b
	}
	return
}

func TestTemplateFraming(t *testing.T) {
	seed := testSeed(0x01)
	template := NewTemplate(seed, "alice", 7)
	template.PutNonce(42)

	buf := template.Bytes()
	require.Len(t, buf, 32+5+8+8)
	assert.Equal(t, seed[:], buf[:32])
	assert.Equal(t, []byte("alice"), buf[32:37])
	assert.Equal(t, uint64(7), binary.LittleEndian.Uint64(buf[37:45]))
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(buf[45:53]))

	// the nonce window is the final 8 bytes regardless of address length
	assert.Equal(t, uint64(42), uhash.EffectiveNonce(buf))
}

func TestNew_EmptyAddressAllowed(t *testing.T) {
	m, err := New(testSeed(0), "", 0, 8)
	require.NoError(t, err)
	require.Len(t, m.Session().template.Bytes(), TemplateMinSize)
}

func TestMineBatch_DifficultyZeroFindsFirstNonce(t *testing.T) {
	m, err := New(testSeed(0x01), "a", 0, 0)
	require.NoError(t, err)

	res, err := m.MineBatch(100, 1, 4)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, uint64(100), res.Nonce)
	assert.Equal(t, uint64(1), res.HashesTried)
}

func TestMineBatch_ExhaustsAndCounts(t *testing.T) {
	// difficulty 256 requires the all-zero digest, unreachable in a batch
	m, err := New(testSeed(0x01), "a", 0, 256)
	require.NoError(t, err)

	res, err := m.MineBatch(0, 3, 4)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, uint64(4), res.HashesTried)
	assert.Equal(t, uint64(4), m.HashesDone())

	// hashes done strictly increases batch over batch
	_, err = m.MineBatch(12, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), m.HashesDone())
}

func TestMineBatch_MatchesVerifier(t *testing.T) {
	m, err := New(testSeed(0x02), "miner1", 99, 0)
	require.NoError(t, err)

	res, err := m.MineBatch(7, 1, 1)
	require.NoError(t, err)
	require.True(t, res.Found)

	v := NewVerifier(4)
	proof := Proof{
		Hash:      res.Hash,
		Nonce:     res.Nonce,
		Timestamp: 99,
		Seed:      testSeed(0x02),
	}
	assert.True(t, v.VerifyProof(proof, "miner1", 0))
	assert.False(t, v.VerifyProof(proof, "someone-else", 0))
}

func TestMineBatch_CancelledByRotation(t *testing.T) {
	m, err := New(testSeed(0x08), "c", 0, 256)
	require.NoError(t, err)

	type outcome struct {
		res BatchResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := m.MineBatch(0, 1, 1<<20)
		done <- outcome{res, err}
	}()

	for m.HashesDone() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, m.Refresh(testSeed(0x09), 256, 1))

	select {
	case out := <-done:
		require.ErrorIs(t, out.err, ErrCancelled)
		assert.False(t, out.res.Found)
		assert.Greater(t, out.res.HashesTried, uint64(0))
	case <-time.After(30 * time.Second):
		t.Fatal("batch did not observe the rotation")
	}
}

// A sequential search at a small difficulty converges geometrically; the
// attempt bound keeps the flake probability negligible while the expected
// cost stays at a handful of hashes.
func TestMineBatch_DifficultySearch(t *testing.T) {
	const bits = 2

	m, err := New(testSeed(0x09), "search", 0, bits)
	require.NoError(t, err)

	var tried uint64
	for nonce := uint64(0); tried < 128; nonce += 4 {
		res, err := m.MineBatch(nonce, 1, 4)
		require.NoError(t, err)
		tried += res.HashesTried

		if res.Found {
			assert.Zero(t, res.Hash[0]>>(8-bits), "found hash misses the target bits")
			assert.GreaterOrEqual(t, res.Nonce, uint64(0))
			return
		}
	}
	t.Fatalf("no proof within %d attempts at %d bits", tried, bits)
}

func TestWorkers_ContinuousMining(t *testing.T) {
	m, err := New(testSeed(0x03), "w", 1, 0)
	require.NoError(t, err)
	m.SetBatchSize(2)

	require.NoError(t, m.Start(2, 0))
	require.Error(t, m.Start(2, 0), "second start must fail")

	deadline := time.Now().Add(30 * time.Second)
	var proofs []Proof
	for len(proofs) < 4 && time.Now().Before(deadline) {
		proofs = append(proofs, m.TakeProofs()...)
		time.Sleep(20 * time.Millisecond)
	}
	m.Stop()
	proofs = append(proofs, m.TakeProofs()...)

	require.GreaterOrEqual(t, len(proofs), 4, "expected proofs at difficulty 0")

	// disjoint nonce partition: no nonce is ever evaluated twice
	seen := map[uint64]struct{}{}
	for _, p := range proofs {
		_, dup := seen[p.Nonce]
		require.False(t, dup, "nonce %d evaluated twice", p.Nonce)
		seen[p.Nonce] = struct{}{}
	}

	// every proof verifies under the session seed
	v := NewVerifier(16)
	for _, p := range proofs {
		assert.True(t, v.VerifyProof(p, "w", 0), "proof %d does not verify", p.Nonce)
	}

	assert.Greater(t, m.HashesDone(), uint64(0))
}

func TestRefresh_RotatesSeed(t *testing.T) {
	seed0 := testSeed(0x04)
	seed1 := testSeed(0x05)

	m, err := New(seed0, "r", 1, 0)
	require.NoError(t, err)
	m.SetBatchSize(1)

	require.NoError(t, m.Start(1, 0))

	waitProofs := func() []Proof {
		deadline := time.Now().Add(30 * time.Second)
		var out []Proof
		for len(out) == 0 && time.Now().Before(deadline) {
			out = m.TakeProofs()
			time.Sleep(10 * time.Millisecond)
		}
		return out
	}

	before := waitProofs()
	require.NotEmpty(t, before)

	require.NoError(t, m.Refresh(seed1, 0, 2))
	// proofs from the old generation may still land; wait for the rotation
	// to propagate, then drain
	time.Sleep(200 * time.Millisecond)
	m.TakeProofs()

	after := waitProofs()
	m.Stop()
	require.NotEmpty(t, after)

	v := NewVerifier(16)
	for _, p := range before {
		assert.Equal(t, seed0, p.Seed)
		assert.True(t, v.VerifyProof(p, "r", 0))
	}
	for _, p := range after {
		assert.Equal(t, seed1, p.Seed, "post-rotation proof carries old seed")
		assert.True(t, v.VerifyProof(p, "r", 0))
	}

	assert.Equal(t, seed1, m.Session().Seed)
	assert.Equal(t, uint64(2), m.Session().Timestamp)
}

func TestProofQueue_DedupAndDrain(t *testing.T) {
	q := newProofQueue()

	assert.True(t, q.push(Proof{Nonce: 1}))
	assert.True(t, q.push(Proof{Nonce: 2}))
	assert.False(t, q.push(Proof{Nonce: 1}), "duplicate nonce accepted")
	assert.Equal(t, 2, q.size())

	drained := q.drain()
	require.Len(t, drained, 2)
	assert.Equal(t, uint64(1), drained[0].Nonce)
	assert.Equal(t, uint64(2), drained[1].Nonce)
	assert.Empty(t, q.drain())

	// still deduped after drain, until the rotation resets the index
	assert.False(t, q.push(Proof{Nonce: 2}))
	q.resetDedup()
	assert.True(t, q.push(Proof{Nonce: 2}))
}

func TestRateRing(t *testing.T) {
	r := newRateRing()
	assert.Zero(t, r.rate(), "no samples yet")

	r.record(0)
	assert.Zero(t, r.rate(), "one sample is not a rate")

	time.Sleep(50 * time.Millisecond)
	r.record(100)

	rate := r.rate()
	assert.Greater(t, rate, 100.0)
	assert.Less(t, rate, 100000.0)

	// overflow the ring; rate stays finite and positive
	for i := uint64(0); i < rateSamples*2; i++ {
		r.record(100 + i)
	}
	assert.GreaterOrEqual(t, r.rate(), 0.0)
}

type captureSink struct {
	events chan Event
}

func (c *captureSink) Publish(ev Event) {
	select {
	case c.events <- ev:
	default:
	}
}

func TestEventStream(t *testing.T) {
	m, err := New(testSeed(0x06), "e", 0, 0)
	require.NoError(t, err)

	sink := &captureSink{events: make(chan Event, 64)}
	m.AttachSink(sink)

	require.NoError(t, m.Refresh(testSeed(0x07), 0, 1))

	select {
	case ev := <-sink.events:
		assert.Equal(t, EventRotation, ev.Type)
		assert.Equal(t, testSeed(0x07), ev.Seed)
		assert.False(t, ev.At.IsZero())
	default:
		t.Fatal("rotation event not published")
	}

	m.PublishHashrate()
	select {
	case ev := <-sink.events:
		assert.Equal(t, EventHashrate, ev.Type)
	default:
		t.Fatal("hashrate event not published")
	}
}

func TestVerifier_CacheStable(t *testing.T) {
	v := NewVerifier(8)
	input := []byte("cached input")

	first := v.Digest(input)
	second := v.Digest(input)
	assert.Equal(t, first, second)
	assert.Equal(t, uhash.Sum(input), first)
}
