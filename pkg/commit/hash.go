package commit

import (
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/orneryd/triedb/pkg/trie"
)

// Hash computes a commit id from a transaction's forward and inverse
// deltas: a deterministic, order-independent digest over every (key, old,
// new) triple touched by either trie. Two deltas with the same net
// key/value content hash to the same id regardless of how they were built
// up (spec.md §8, property 6); the id does not depend on the parent commit
// (spec.md §4.4 leaves cross-parent id collisions an open question that
// this package does not attempt to resolve on its own).
//
// blake2b-256 is used rather than stdlib sha256 to match the Merkle-hash
// convention the wider trie corpus this module was grounded on (notably
// iotaledger-trie.go's trie_blake2b model) standardizes on, and to give
// golang.org/x/crypto — otherwise unused once auth/encryption are out of
// scope — a home native to this domain.
func Hash(newValues, oldValues *trie.Trie) string {
	keys := unionKeys(newValues, oldValues)

	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only errors on a bad key, and nil is always valid.
		panic("commit: blake2b.New256(nil) failed: " + err.Error())
	}

	for _, k := range keys {
		writeLengthPrefixed(h, k)
		ov, ok := oldValues.Get(k)
		writeMarked(h, ov, ok)
		nv, ok := newValues.Get(k)
		writeMarked(h, nv, ok)
	}

	return hex.EncodeToString(h.Sum(nil))
}

func unionKeys(a, b *trie.Trie) []string {
	set := make(map[string]struct{})
	for k := range a.Keys("") {
		set[k] = struct{}{}
	}
	for k := range b.Keys("") {
		set[k] = struct{}{}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeLengthPrefixed(h hash.Hash, s string) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	h.Write(lenBuf[:])
	h.Write([]byte(s))
}

// writeMarked writes a one-byte presence marker followed by the
// length-prefixed value, so an absent key cannot collide with a present
// key holding the empty string.
func writeMarked(h hash.Hash, s string, present bool) {
	if !present {
		h.Write([]byte{0})
		return
	}
	h.Write([]byte{1})
	writeLengthPrefixed(h, s)
}
