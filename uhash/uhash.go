package uhash

import (
	"encoding/binary"
	"math/bits"
	"sync"

	sha256 "github.com/minio/sha256-simd"
	"github.com/zeebo/blake3"

	"github.com/cyberia-to/universal-hash/types"
)

// Hasher computes UniversalHash v4 digests. It owns the four chain
// scratchpads (2 MiB total) and reuses them across hashes, so a long-lived
// Hasher amortises the allocation. Not safe for concurrent use; give every
// worker its own.
type Hasher struct {
	pads    [Chains]*scratchpad
	states  [Chains][StateSize]byte
	seedBuf []byte

	// parallel runs one goroutine per chain; the sequential driver produces
	// byte-identical digests since the combine is positional and chains
	// never read each other.
	parallel bool
}

// NewHasher allocates a hasher running its chains on parallel goroutines.
func NewHasher() *Hasher {
	return newHasher(true)
}

// NewSequentialHasher allocates a hasher running its chains one after
// another on the calling goroutine. Intended for cooperative environments
// and for workers that are already fanned out.
func NewSequentialHasher() *Hasher {
	return newHasher(false)
}

func newHasher(parallel bool) *Hasher {
	h := &Hasher{
		parallel: parallel,
	}
	for c := range h.pads {
		h.pads[c] = newScratchpad()
	}
	return h
}

// EffectiveNonce reads the little-endian u64 from the final 8 bytes of
// input. Inputs shorter than 8 bytes are zero-extended.
func EffectiveNonce(input []byte) uint64 {
	if len(input) >= 8 {
		return binary.LittleEndian.Uint64(input[len(input)-8:])
	}
	var tail [8]byte
	copy(tail[:], input)
	return binary.LittleEndian.Uint64(tail[:])
}

// Sum computes the 32-byte U-Hash digest of input. Any input length is
// accepted. The pipeline: per-chain BLAKE3 seed derivation, AES scratchpad
// expansion, 12,288 memory-hard rounds per chain rotating the three raw
// primitives, positional combine of the four final states, then full
// SHA-256 and BLAKE3.
func (h *Hasher) Sum(input []byte) types.Hash {
	nonce := EffectiveNonce(input)

	// chain_seed[c] = BLAKE3(input ‖ LE64(nonce ^ c·GoldenRatio))
	var seeds [Chains][32]byte
	buf := append(h.seedBuf[:0], input...)
	base := len(buf)
	for c := range seeds {
		buf = buf[:base]
		buf = binary.LittleEndian.AppendUint64(buf, nonce^(uint64(c)*GoldenRatio))
		seeds[c] = blake3.Sum256(buf)
	}
	h.seedBuf = buf

	if h.parallel {
		var wg sync.WaitGroup
		wg.Add(Chains)
		for c := range Chains {
			go func() {
				defer wg.Done()
				h.runChain(c, nonce, &seeds[c])
			}()
		}
		wg.Wait()
	} else {
		for c := range Chains {
			h.runChain(c, nonce, &seeds[c])
		}
	}

	var combined [Chains * StateSize]byte
	for c := range Chains {
		copy(combined[c*StateSize:], h.states[c][:])
	}

	inner := sha256.Sum256(combined[:])
	return types.Hash(blake3.Sum256(inner[:]))
}

// Sum is the one-shot convenience form. It allocates and discards 2 MiB of
// scratchpad; batch callers should hold a Hasher instead.
func Sum(input []byte) types.Hash {
	return NewSequentialHasher().Sum(input)
}

func (h *Hasher) runChain(chain int, nonce uint64, seed *[32]byte) {
	sp := h.pads[chain]
	sp.fill(seed)

	state := &h.states[chain]
	copy(state[:32], seed[:])
	copy(state[32:], seed[:])

	for round := uint64(0); round < Rounds; round++ {
		idx := blockAddress(state, round)
		block := sp.block(idx)

		switch selectPrimitive(nonce, uint64(chain), round) {
		case primitiveAES:
			aesCompress(state, block)
		case primitiveSHA256:
			sha256Compress(state, block)
		default:
			blake3Compress(state, block)
		}

		// write-back goes to the address that was read, never to one
		// derived from the updated state
		copy(block[:], state[:])
	}
}

func blockAddress(state *[StateSize]byte, round uint64) uint64 {
	mixed := binary.LittleEndian.Uint64(state[0:]) ^
		binary.LittleEndian.Uint64(state[8:]) ^
		bits.RotateLeft64(round, 13) ^
		(round * AddressMix)
	return mixed & addressMask
}
