// Package integrity provides tamper-evident hashing for script versions and
// Merkle roots over a script's version history. All functions are pure and
// deterministic.
package integrity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"
)

const hashV1Prefix = "v1:"

// ComputeScriptHash produces a versioned SHA-256 hex digest over the fields
// that identify a script version. Each field is written as a 4-byte
// big-endian length followed by its bytes, so no delimiter can collide with
// script content.
func ComputeScriptHash(ownerID, scriptType string, version int, content string) string {
	h := sha256.New()
	writeField := func(s string) {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s))) //nolint:gosec // content is bounded by model.MaxContentLen
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}
	writeField(ownerID)
	writeField(scriptType)
	writeField(strconv.Itoa(version))
	writeField(content)
	return hashV1Prefix + hex.EncodeToString(h.Sum(nil))
}

// VerifyScriptHash reports whether stored matches the recomputed hash.
// Unknown or missing prefixes never verify.
func VerifyScriptHash(stored, ownerID, scriptType string, version int, content string) bool {
	if !strings.HasPrefix(stored, hashV1Prefix) {
		return false
	}
	return stored == ComputeScriptHash(ownerID, scriptType, version, content)
}

// hashPair produces SHA-256(0x01 || a || b) as a hex string.
// The 0x01 prefix separates internal nodes from leaves (RFC 6962).
func hashPair(a, b string) string {
	h := sha256.New()
	h.Write([]byte{0x01})
	h.Write([]byte(a))
	h.Write([]byte(b))
	return hex.EncodeToString(h.Sum(nil))
}

// HistoryRoot builds a Merkle root from per-version hashes given in
// ascending version order. Empty input yields "", a single leaf is its own
// root, and odd levels pair the last node with itself.
func HistoryRoot(leaves []string) string {
	if len(leaves) == 0 {
		return ""
	}
	if len(leaves) == 1 {
		return leaves[0]
	}

	level := make([]string, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		var next []string
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, hashPair(level[i], level[i]))
			}
		}
		level = next
	}

	return level[0]
}
