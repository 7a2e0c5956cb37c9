package uhash

import (
	"crypto/rand"
	stdsha256 "crypto/sha256"
	"encoding/binary"
	"testing"
)

// AESENC is MixColumns(ShiftRows(SubBytes(s))) ^ key, so for a fixed input
// lane the outputs under two keys differ by exactly key1 ^ key2.
func TestAesenc_KeyLinearity(t *testing.T) {
	var raw, k1, k2 [16]byte
	_, _ = rand.Read(raw[:])
	for i := range 16 {
		k1[i] = byte(i)
		k2[i] = byte(0xA5 ^ i*7)
	}

	a, b := raw, raw
	aesenc(&a, &k1)
	aesenc(&b, &k2)

	for i := range 16 {
		if a[i]^b[i] != k1[i]^k2[i] {
			t.Fatalf("byte %d: output delta %02x, want key delta %02x", i, a[i]^b[i], k1[i]^k2[i])
		}
	}
}

func TestAesenc_Permutes(t *testing.T) {
	var zero [16]byte
	lane := [16]byte{1, 2, 3, 4}
	orig := lane
	aesenc(&lane, &zero)
	if lane == orig {
		t.Fatal("round left the lane unchanged")
	}

	// deterministic
	lane2 := orig
	aesenc(&lane2, &zero)
	if lane != lane2 {
		t.Fatal("round is not deterministic")
	}
}

// xtime against a few hand-reduced GF(2^8) products.
func TestXtime(t *testing.T) {
	for _, tc := range []struct{ in, want byte }{
		{0x01, 0x02},
		{0x57, 0xae},
		{0xae, 0x47},
		{0x80, 0x1b},
		{0xff, 0xe5},
	} {
		if got := xtime(tc.in); got != tc.want {
			t.Errorf("xtime(%02x) = %02x, want %02x", tc.in, got, tc.want)
		}
	}
}

// Compressing the standard IV with the padding block of the empty message
// must reproduce SHA-256(""), and a padded one-block message must match
// crypto/sha256. This pins the raw compression to FIPS 180-4 exactly.
func TestSha256Block_MatchesFullHash(t *testing.T) {
	iv := [8]uint32{0x6a09e667, 0xbb67ae85, 0x3c6ef372, 0xa54ff53a, 0x510e527f, 0x9b05688c, 0x1f83d9ab, 0x5be0cd19}

	t.Run("empty", func(t *testing.T) {
		var block [BlockSize]byte
		block[0] = 0x80

		h := iv
		sha256Block(&h, &block)

		want := stdsha256.Sum256(nil)
		for i := range 8 {
			if h[i] != binary.BigEndian.Uint32(want[i*4:]) {
				t.Fatalf("word %d: %08x, want %08x", i, h[i], binary.BigEndian.Uint32(want[i*4:]))
			}
		}
	})

	t.Run("abc", func(t *testing.T) {
		var block [BlockSize]byte
		copy(block[:], "abc")
		block[3] = 0x80
		binary.BigEndian.PutUint64(block[56:], 3*8)

		h := iv
		sha256Block(&h, &block)

		want := stdsha256.Sum256([]byte("abc"))
		for i := range 8 {
			if h[i] != binary.BigEndian.Uint32(want[i*4:]) {
				t.Fatalf("word %d: %08x, want %08x", i, h[i], binary.BigEndian.Uint32(want[i*4:]))
			}
		}
	})
}

func TestSha256Compress_HalvesIndependent(t *testing.T) {
	var state, state2 [StateSize]byte
	var block [BlockSize]byte
	_, _ = rand.Read(state[:])
	_, _ = rand.Read(block[:])

	// flipping a bit in the high half must not disturb the low half
	state2 = state
	state2[40] ^= 0x10

	sha256Compress(&state, &block)
	sha256Compress(&state2, &block)

	if [32]byte(state[:32]) != [32]byte(state2[:32]) {
		t.Fatal("high-half change leaked into low half")
	}
	if [32]byte(state[32:]) == [32]byte(state2[32:]) {
		t.Fatal("high-half change did not change high half")
	}
}

func TestPrimitives_DeterministicAndMixing(t *testing.T) {
	var seedState [StateSize]byte
	var block [BlockSize]byte
	_, _ = rand.Read(seedState[:])
	_, _ = rand.Read(block[:])

	for _, tc := range []struct {
		name string
		fn   func(*[StateSize]byte, *[BlockSize]byte)
	}{
		{"aes", aesCompress},
		{"sha256", sha256Compress},
		{"blake3", blake3Compress},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := seedState
			b := seedState
			tc.fn(&a, &block)
			tc.fn(&b, &block)
			if a != b {
				t.Fatal("not deterministic")
			}
			if a == seedState {
				t.Fatal("state unchanged")
			}

			// single-bit block change must avalanche into the state
			flipped := block
			flipped[17] ^= 1
			c := seedState
			tc.fn(&c, &flipped)
			if c == a {
				t.Fatal("block bit flip did not change output")
			}

			var diff int
			for i := range a {
				diff += popcount8(a[i] ^ c[i])
			}
			if diff < 96 {
				t.Fatalf("weak diffusion: only %d of 512 bits differ", diff)
			}
		})
	}
}

func TestHostCapabilities(t *testing.T) {
	// sampled once; must be stable
	if HostCapabilities() != HostCapabilities() {
		t.Fatal("capability set not stable")
	}
}
