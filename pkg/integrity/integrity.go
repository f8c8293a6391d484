// Package integrity verifies archive bytes against index-declared checksums.
//
// Verification is unconditional: every byte sequence that reaches the output
// writer, whether freshly downloaded or read from a local cache, must first
// pass [Verify].
package integrity

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"

	"github.com/matzehuels/cargo-dl/pkg/errors"
)

// Size is the length of a checksum in bytes.
const Size = sha256.Size

// Checksum is a SHA-256 digest.
type Checksum [Size]byte

// ParseChecksum decodes a 64-character hex digest.
func ParseChecksum(s string) (Checksum, error) {
	var c Checksum
	b, err := hex.DecodeString(s)
	if err != nil {
		return c, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid checksum %q", s)
	}
	if len(b) != Size {
		return c, errors.New(errors.ErrCodeInvalidInput, "checksum %q has %d bytes, want %d", s, len(b), Size)
	}
	copy(c[:], b)
	return c, nil
}

// Sum computes the checksum of data.
func Sum(data []byte) Checksum {
	return sha256.Sum256(data)
}

// String returns the lowercase hex encoding.
func (c Checksum) String() string { return hex.EncodeToString(c[:]) }

// IsZero reports whether c is the zero value.
func (c Checksum) IsZero() bool { return c == Checksum{} }

// MarshalText implements encoding.TextMarshaler.
func (c Checksum) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Checksum) UnmarshalText(text []byte) error {
	parsed, err := ParseChecksum(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Verify hashes data and compares it with expected.
// A mismatch is an [errors.ErrCodeChecksumMismatch] error naming both digests.
func Verify(data []byte, expected Checksum) error {
	return check(Sum(data), expected)
}

func check(got, expected Checksum) error {
	if !bytes.Equal(got[:], expected[:]) {
		return errors.New(errors.ErrCodeChecksumMismatch,
			"invalid checksum, expected %s but got %s", expected, got)
	}
	return nil
}

// HashingReader computes a checksum over everything read through it.
type HashingReader struct {
	r io.Reader
	h hash.Hash
}

// NewHashingReader wraps r.
func NewHashingReader(r io.Reader) *HashingReader {
	return &HashingReader{r: r, h: sha256.New()}
}

// Read implements io.Reader.
func (hr *HashingReader) Read(p []byte) (int, error) {
	n, err := hr.r.Read(p)
	hr.h.Write(p[:n])
	return n, err
}

// Sum returns the checksum of the bytes read so far.
func (hr *HashingReader) Sum() Checksum {
	var c Checksum
	copy(c[:], hr.h.Sum(nil))
	return c
}

// Verify compares the bytes read so far with expected.
func (hr *HashingReader) Verify(expected Checksum) error {
	return check(hr.Sum(), expected)
}
