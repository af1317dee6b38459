package core

import (
	"crypto/sha256"
	"encoding/binary"
)

const genesisHashSeed = "mena:genesis:v1"

// StateHasher maintains the envelope hash chain:
// state_hash[N] = SHA-256(prev_hash || sequence || delta_digest).
type StateHasher struct {
	tip [32]byte
}

// NewStateHasher initializes the chain at the genesis hash.
func NewStateHasher() *StateHasher {
	return &StateHasher{tip: sha256.Sum256([]byte(genesisHashSeed))}
}

// Tip returns the current chain head without advancing it.
func (h *StateHasher) Tip() [32]byte {
	return h.tip
}

// SetTip restores the chain head from a snapshot.
func (h *StateHasher) SetTip(tip [32]byte) {
	h.tip = tip
}

// Advance folds one applied action into the chain and returns the new
// head.
func (h *StateHasher) Advance(sequence int64, digest []byte) [32]byte {
	hasher := sha256.New()
	hasher.Write(h.tip[:])

	var seqBuf [8]byte
	binary.LittleEndian.PutUint64(seqBuf[:], uint64(sequence))
	hasher.Write(seqBuf[:])

	hasher.Write(digest)

	var out [32]byte
	copy(out[:], hasher.Sum(nil))
	h.tip = out
	return out
}
