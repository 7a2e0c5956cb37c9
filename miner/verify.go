package miner

import (
	"sync"

	"github.com/floatdrop/lru"

	"github.com/cyberia-to/universal-hash/types"
	"github.com/cyberia-to/universal-hash/uhash"
)

// Verifier reproduces digests for proof checking and memoises recent
// results, so re-verifying a proof on multiple paths (event stream,
// submitter, proof log) costs one hash.
type Verifier struct {
	lock   sync.Mutex
	hasher *uhash.Hasher
	cache  *lru.LRU[string, types.Hash]
}

func NewVerifier(cacheSize int) *Verifier {
	if cacheSize <= 0 {
		cacheSize = 128
	}
	return &Verifier{
		hasher: uhash.NewSequentialHasher(),
		cache:  lru.New[string, types.Hash](cacheSize),
	}
}

// Digest computes (or recalls) the U-Hash digest of input.
func (v *Verifier) Digest(input []byte) types.Hash {
	v.lock.Lock()
	defer v.lock.Unlock()

	key := string(input)
	if cached := v.cache.Get(key); cached != nil {
		return *cached
	}

	digest := v.hasher.Sum(input)
	v.cache.Set(key, digest)
	return digest
}

// VerifyProof checks that p reproduces under its recorded seed and meets
// bits leading zero bits.
func (v *Verifier) VerifyProof(p Proof, address string, bits uint32) bool {
	template := NewTemplate(p.Seed, address, p.Timestamp)
	template.PutNonce(p.Nonce)

	digest := v.Digest(template.Bytes())
	return digest == p.Hash && types.CheckPoW(digest, bits)
}
