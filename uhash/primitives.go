package uhash

import (
	"encoding/binary"

	"golang.org/x/sys/cpu"
)

// The three raw compression primitives. Each consumes the 64-byte state and
// a 64-byte scratchpad block and replaces the state; none of them allocate
// and none of them can fail. Their rotation schedule is
// (effective_nonce + chain + round) mod 3, computed in u64 wraparound.
const (
	primitiveAES = iota
	primitiveSHA256
	primitiveBLAKE3
)

func selectPrimitive(nonce uint64, chain uint64, round uint64) int {
	return int((nonce + chain + round) % NumPrimitives)
}

// Capabilities is the hardware feature set sampled once at startup. The
// portable primitives are the canonical bit-exact definition on every
// platform; the flags are surfaced over the benchmark/introspection paths so
// operators can see what the host offers.
type Capabilities struct {
	AES  bool `json:"aes"`
	SHA2 bool `json:"sha2"`
}

var hostCapabilities = Capabilities{
	AES:  cpu.X86.HasAES || cpu.ARM64.HasAES,
	SHA2: cpu.ARM64.HasSHA2,
}

func HostCapabilities() Capabilities {
	return hostCapabilities
}

// aesCompress applies four AESENC rounds per 128-bit state lane, using the
// four block lanes as round keys: lane j takes keys b[(j+r) mod 4] for
// r = 0..3. The result is xored lane-wise with the original state.
func aesCompress(state *[StateSize]byte, block *[BlockSize]byte) {
	var s, k [4][16]byte
	for j := range 4 {
		copy(s[j][:], state[j*16:])
		copy(k[j][:], block[j*16:])
	}

	for j := range 4 {
		aesenc(&s[j], &k[j])
		aesenc(&s[j], &k[(j+1)&3])
		aesenc(&s[j], &k[(j+2)&3])
		aesenc(&s[j], &k[(j+3)&3])
	}

	// state still holds the pre-round lanes; fold the rounds in
	for j := range 4 {
		for i := range 16 {
			state[j*16+i] ^= s[j][i]
		}
	}
}

// sha256Compress treats the state as two independent 32-byte SHA-256
// chaining values (big-endian words) and runs the raw block compression of
// the same 64-byte block once per half. No padding, no length suffix.
func sha256Compress(state *[StateSize]byte, block *[BlockSize]byte) {
	for half := 0; half < StateSize; half += 32 {
		var h [8]uint32
		for i := range 8 {
			h[i] = binary.BigEndian.Uint32(state[half+i*4:])
		}
		sha256Block(&h, block)
		for i := range 8 {
			binary.BigEndian.PutUint32(state[half+i*4:], h[i])
		}
	}
}

// blake3Compress runs seven rounds of the BLAKE3 compression function. The
// eight-word chaining value folds the 16 little-endian state words as
// h[i] = s[i] ^ s[i+8]; counter and flags are zero and the block length
// input is the full 64 bytes. The full 64-byte compressed output becomes
// the new state.
func blake3Compress(state *[StateSize]byte, block *[BlockSize]byte) {
	var s, m [16]uint32
	for i := range 16 {
		s[i] = binary.LittleEndian.Uint32(state[i*4:])
		m[i] = binary.LittleEndian.Uint32(block[i*4:])
	}

	var h [8]uint32
	for i := range 8 {
		h[i] = s[i] ^ s[i+8]
	}

	v := [16]uint32{
		h[0], h[1], h[2], h[3],
		h[4], h[5], h[6], h[7],
		blake3IV[0], blake3IV[1], blake3IV[2], blake3IV[3],
		0, 0, BlockSize, 0,
	}

	for r := range 7 {
		sched := &blake3Schedule[r]

		// column mixing
		blake3G(&v, 0, 4, 8, 12, m[sched[0]], m[sched[1]])
		blake3G(&v, 1, 5, 9, 13, m[sched[2]], m[sched[3]])
		blake3G(&v, 2, 6, 10, 14, m[sched[4]], m[sched[5]])
		blake3G(&v, 3, 7, 11, 15, m[sched[6]], m[sched[7]])

		// diagonal mixing
		blake3G(&v, 0, 5, 10, 15, m[sched[8]], m[sched[9]])
		blake3G(&v, 1, 6, 11, 12, m[sched[10]], m[sched[11]])
		blake3G(&v, 2, 7, 8, 13, m[sched[12]], m[sched[13]])
		blake3G(&v, 3, 4, 9, 14, m[sched[14]], m[sched[15]])
	}

	for i := range 8 {
		binary.LittleEndian.PutUint32(state[i*4:], v[i]^v[i+8])
		binary.LittleEndian.PutUint32(state[(i+8)*4:], v[i+8]^h[i])
	}
}
