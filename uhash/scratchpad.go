package uhash

import (
	"encoding/binary"
	"unsafe"
)

// scratchpad is the per-chain 512 KiB mixing buffer. Backed by a uint64
// array to guarantee word alignment; always heap-allocated through
// newScratchpad, never shared between chains.
type scratchpad struct {
	words [ScratchpadSize / 8]uint64
}

func newScratchpad() *scratchpad {
	return new(scratchpad)
}

func (sp *scratchpad) bytes() *[ScratchpadSize]byte {
	// #nosec G103 -- fixed-size view over the word array
	return (*[ScratchpadSize]byte)(unsafe.Pointer(&sp.words))
}

// block returns the 64-byte block at index idx. idx must already be reduced
// mod BlocksPerPad; addressing never produces partial blocks.
func (sp *scratchpad) block(idx uint64) *[BlockSize]byte {
	return (*[BlockSize]byte)(sp.bytes()[idx*BlockSize:])
}

// fill expands a 32-byte chain seed over the whole pad. The schedule:
// ks = seed as two 128-bit lanes (k0, k1); a running previous-block lane
// vector p starts as [k0, k1, k0, k1]. Block i lane j starts from the
// counter payload LE64(4i+j) ‖ LE64((i<<32) ^ (j·GoldenRatio)) and takes
// four AESENC rounds keyed k0, p[j], k1, p[(j+1) mod 4]; the four produced
// lanes are written at offset i·64 and become the new p.
//
// Every byte of the pad is written before any round reads it, which is what
// makes cross-hash scratchpad reuse safe.
func (sp *scratchpad) fill(seed *[32]byte) {
	var k0, k1 [16]byte
	copy(k0[:], seed[:16])
	copy(k1[:], seed[16:])

	p := [4][16]byte{k0, k1, k0, k1}

	buf := sp.bytes()
	for i := 0; i < BlocksPerPad; i++ {
		var next [4][16]byte
		for j := 0; j < 4; j++ {
			var lane [16]byte
			binary.LittleEndian.PutUint64(lane[:8], uint64(i)*4+uint64(j))
			binary.LittleEndian.PutUint64(lane[8:], (uint64(i)<<32)^(uint64(j)*GoldenRatio))

			aesenc(&lane, &k0)
			aesenc(&lane, &p[j])
			aesenc(&lane, &k1)
			aesenc(&lane, &p[(j+1)&3])
			next[j] = lane

			copy(buf[i*BlockSize+j*16:], lane[:])
		}
		p = next
	}
}
