// Package digest provides the content fingerprint used as the cache key
// for parsed blocks.
//
// The digest is a plain SHA-256 over a block's raw byte span. Cache
// correctness rests on collision-freedom, not just distribution quality,
// so a cryptographic primitive is required here; a fast checksum such as
// CRC32 is not an acceptable substitute.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Size is the digest width in bytes.
const Size = sha256.Size

// Digest is a fixed-width content fingerprint. The zero value is never
// produced by Sum for any input (including empty input) in practice and
// is used as a sentinel for "not yet computed".
type Digest [Size]byte

// Sum computes the digest of data. Deterministic and total: identical
// byte content always yields an identical digest, for any input
// including the empty one.
func Sum(data []byte) Digest {
	return sha256.Sum256(data)
}

// String returns the lowercase hex encoding of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether the digest is the zero sentinel.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Parse decodes a lowercase hex digest produced by String. Used when
// loading persisted cache records.
func Parse(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("parsing digest %q: %w", s, err)
	}
	if len(raw) != Size {
		return d, fmt.Errorf("parsing digest %q: got %d bytes, want %d", s, len(raw), Size)
	}
	copy(d[:], raw)
	return d, nil
}

// MarshalText implements encoding.TextMarshaler for persisted records.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
