package types

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math/bits"

	fasthex "github.com/tmthrgd/go-hex"
)

const HashSize = 32

// Hash is a 32-byte U-Hash digest; epoch seeds share the representation.
// A digest leaves the process in exactly two shapes: lowercase hex wherever
// text is involved (logs, JSON event payloads, config seeds) and the raw 32
// bytes in the proof log. The text interfaces below cover the former, the
// sql ones the latter.
type Hash [HashSize]byte

var ZeroHash Hash

func HashFromString(s string) (h Hash, err error) {
	if err = h.UnmarshalText([]byte(s)); err != nil {
		return ZeroHash, err
	}
	return h, nil
}

func MustHashFromString(s string) Hash {
	h, err := HashFromString(s)
	if err != nil {
		panic(err)
	}
	return h
}

func HashFromBytes(buf []byte) (h Hash) {
	if len(buf) != HashSize {
		return
	}
	copy(h[:], buf)
	return
}

func (h Hash) String() string {
	return fasthex.EncodeToString(h[:])
}

// MarshalText makes digests hex strings under any text-aware encoder; the
// JSON layer picks it up for proof and event payloads.
func (h Hash) MarshalText() ([]byte, error) {
	out := make([]byte, HashSize*2)
	fasthex.Encode(out, h[:])
	return out, nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	if len(text) != HashSize*2 {
		return fmt.Errorf("digest must be %d hex chars, got %d", HashSize*2, len(text))
	}
	_, err := fasthex.Decode(h[:], text)
	return err
}

// LeadingZeroBits counts zero bits from the front of the digest read
// big-endian, the orientation the difficulty predicate is defined in.
func (h Hash) LeadingZeroBits() uint32 {
	var n uint32
	for i := 0; i < HashSize; i += 8 {
		v := binary.BigEndian.Uint64(h[i:])
		if v == 0 {
			n += 64
			continue
		}
		return n + uint32(bits.LeadingZeros64(v))
	}
	return n
}

// Digests persist as raw 32-byte blobs.

func (h Hash) Value() (driver.Value, error) {
	return h[:], nil
}

func (h *Hash) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) != HashSize {
			return fmt.Errorf("digest column holds %d bytes, want %d", len(v), HashSize)
		}
		copy(h[:], v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into a digest", src)
	}
}
