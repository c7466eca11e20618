// Package hasher produces deterministic, fixed-width fingerprints for
// artifact specs and file outputs (spec component C2).
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sort"
	"strings"
)

// ZeroHash is the sentinel hash for a missing input file. HashFile never
// fails on a missing path; it returns this sentinel and lets the caller
// decide what to do with it.
const ZeroHash = "00000000000000000000"

// fingerprintBytes is the truncated width of a fingerprint, in raw bytes
// (80 bits = 10 bytes), hex-encoded to 20 characters.
const fingerprintBytes = 10

// Fingerprint computes the Execution Cache key for an artifact: a truncated
// SHA-256 over its contract and the resolved output hashes of its
// dependencies, in sorted order. Deterministic under any permutation of the
// input map (resolvedRequiresHashes), and stable across process restarts.
func Fingerprint(contract string, resolvedRequiresHashes map[string]string) string {
	ids := make([]string, 0, len(resolvedRequiresHashes))
	for id := range resolvedRequiresHashes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString(contract)
	b.WriteByte('\n')
	for _, id := range ids {
		hash := resolvedRequiresHashes[id]
		if hash == "" {
			hash = ZeroHash
		}
		b.WriteString(hash)
		b.WriteByte('\n')
	}

	return truncatedHex(b.String())
}

// HashFile computes the content fingerprint of a file on disk. A missing
// file hashes to ZeroHash rather than returning an error; callers that care
// about file existence must check separately (os.Stat).
func HashFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ZeroHash
	}
	return truncatedHex(string(data))
}

// HashBytes computes the content fingerprint of an in-memory payload, used
// for inline (non-file) artifact outputs.
func HashBytes(data []byte) string {
	return truncatedHex(string(data))
}

func truncatedHex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:fingerprintBytes])
}
