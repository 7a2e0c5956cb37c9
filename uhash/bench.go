package uhash

import (
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/remeh/sizedwaitgroup"
)

// BenchmarkResult summarises a benchmark run.
type BenchmarkResult struct {
	Hashes     uint64        `json:"hashes"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	HashrateHz float64       `json:"hashrate_hz"`
}

// benchInput builds a mining-shaped 48-byte input with i in the nonce
// window.
func benchInput(buf *[48]byte, i uint64) []byte {
	binary.LittleEndian.PutUint64(buf[40:], i)
	return buf[:]
}

// RunBenchmark computes numHashes digests on a single reused hasher and
// reports the achieved hashrate.
func RunBenchmark(numHashes uint64) BenchmarkResult {
	hasher := NewHasher()
	var input [48]byte

	start := time.Now()
	for i := uint64(0); i < numHashes; i++ {
		hasher.Sum(benchInput(&input, i))
	}
	elapsed := time.Since(start)

	return benchResult(numHashes, elapsed)
}

// RunBenchmarkParallel fans numHashes out over workers hashers, bounded by
// a sized waitgroup. Peak memory is workers × 2 MiB.
func RunBenchmarkParallel(numHashes uint64, workers int) BenchmarkResult {
	if workers < 1 {
		workers = 1
	}

	swg := sizedwaitgroup.New(workers)
	var next atomic.Uint64

	start := time.Now()
	for w := 0; w < workers; w++ {
		swg.Add()
		go func() {
			defer swg.Done()
			hasher := NewSequentialHasher()
			var input [48]byte
			for {
				i := next.Add(1) - 1
				if i >= numHashes {
					return
				}
				hasher.Sum(benchInput(&input, i))
			}
		}()
	}
	swg.Wait()
	elapsed := time.Since(start)

	return benchResult(numHashes, elapsed)
}

func benchResult(hashes uint64, elapsed time.Duration) BenchmarkResult {
	var rate float64
	if elapsed > 0 {
		rate = float64(hashes) / elapsed.Seconds()
	}
	return BenchmarkResult{
		Hashes:     hashes,
		Elapsed:    elapsed,
		HashrateHz: rate,
	}
}
