package serialization

import (
	"crypto/sha256"
	"io"
)

// ComputeChecksum computes SHA-256 checksum of data.
func ComputeChecksum(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// checksumSection hashes n bytes of r starting at off without loading them
// into memory at once. A short section reports ErrTruncated.
func checksumSection(r io.ReaderAt, off, n int64) ([32]byte, error) {
	h := sha256.New()
	copied, err := io.Copy(h, io.NewSectionReader(r, off, n))
	if err != nil {
		return [32]byte{}, err
	}
	if copied != n {
		return [32]byte{}, ErrTruncated
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// ValidateChecksum compares computed checksum against stored checksum.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(computed, stored [32]byte) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}
