// Package main builds the c-shared U-Hash library. The ABI mirrors the
// mobile bindings: opaque handles, flat byte buffers, no allocation crossing
// the boundary.
//
// Build with: go build -buildmode=c-shared -o libuhash.so ./cmd/libuhash
package main

/*
#include <stdint.h>
#include <stddef.h>
*/
import "C"

import (
	"encoding/binary"
	"sync"
	"time"
	"unsafe"

	"github.com/cyberia-to/universal-hash/types"
	"github.com/cyberia-to/universal-hash/uhash"
	"github.com/cyberia-to/universal-hash/utils"
)

// cgo forbids passing Go pointers out, so hashers live behind numeric
// handles.
var (
	handleLock sync.Mutex
	handleSeq  uint64
	hashers    = map[uint64]*uhash.Hasher{}
)

//export uhash_new
func uhash_new() C.uint64_t {
	handleLock.Lock()
	defer handleLock.Unlock()

	handleSeq++
	hashers[handleSeq] = uhash.NewSequentialHasher()
	return C.uint64_t(handleSeq)
}

//export uhash_free
func uhash_free(handle C.uint64_t) {
	handleLock.Lock()
	defer handleLock.Unlock()
	delete(hashers, uint64(handle))
}

// uhash_hash computes the digest of input into output (32 bytes). Returns 0
// on success, -1 on a bad handle or nil buffer.
//
//export uhash_hash
func uhash_hash(handle C.uint64_t, input *C.uint8_t, inputLen C.size_t, output *C.uint8_t) C.int {
	if output == nil || (input == nil && inputLen != 0) {
		return -1
	}

	handleLock.Lock()
	hasher := hashers[uint64(handle)]
	handleLock.Unlock()
	if hasher == nil {
		return -1
	}

	var in []byte
	if inputLen != 0 {
		// #nosec G103 -- caller-owned buffer, length given by caller
		in = unsafe.Slice((*byte)(unsafe.Pointer(input)), int(inputLen))
	}

	digest := hasher.Sum(in)
	// #nosec G103 -- caller guarantees 32 writable bytes
	out := unsafe.Slice((*byte)(unsafe.Pointer(output)), types.HashSize)
	copy(out, digest[:])
	return 0
}

// uhash_benchmark computes iterations hashes and returns the elapsed
// microseconds.
//
//export uhash_benchmark
func uhash_benchmark(iterations C.uint32_t) C.uint64_t {
	hasher := uhash.NewSequentialHasher()
	var input [48]byte

	start := time.Now()
	for i := uint64(0); i < uint64(iterations); i++ {
		binary.LittleEndian.PutUint64(input[40:], i)
		hasher.Sum(input[:])
	}
	return C.uint64_t(time.Since(start).Microseconds())
}

//export uhash_hashrate
func uhash_hashrate(iterations C.uint32_t, microseconds C.uint64_t) C.double {
	if microseconds == 0 {
		return 0
	}
	return C.double(float64(iterations) / (float64(microseconds) / 1e6))
}

// uhash_get_params writes the parameter JSON into buf, returning the number
// of bytes written, or -1 if buf is too small.
//
//export uhash_get_params
func uhash_get_params(buf *C.char, bufLen C.size_t) C.int {
	payload, err := utils.MarshalJSON(uhash.GetParams())
	if err != nil || buf == nil || int(bufLen) < len(payload) {
		return -1
	}

	// #nosec G103 -- caller-owned buffer, length given by caller
	out := unsafe.Slice((*byte)(unsafe.Pointer(buf)), int(bufLen))
	copy(out, payload)
	return C.int(len(payload))
}

func main() {}
