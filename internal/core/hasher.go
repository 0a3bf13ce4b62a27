package core

import (
	"crypto/sha256"
	"encoding/binary"
)

// GenesisHashSeed anchors the hash chain. Changing it invalidates every
// recorded chain, so it is versioned.
const GenesisHashSeed = "DebtLedger:genesis:v1"

// StateHasher links each applied command's state digest to its predecessor:
//
//	stateHash[n] = SHA-256(stateHash[n-1] || sequence || digest)
//
// The sequence is encoded as 8 little-endian bytes. Two replicas that applied
// the same commands in the same order end up with the same chain tip.
type StateHasher struct {
	prevHash [32]byte
}

func NewStateHasher() *StateHasher {
	return &StateHasher{prevHash: sha256.Sum256([]byte(GenesisHashSeed))}
}

// ComputeHash extends the chain over the given digest and advances the tip.
func (h *StateHasher) ComputeHash(sequence int64, stateDigest []byte) [32]byte {
	var seq [8]byte
	binary.LittleEndian.PutUint64(seq[:], uint64(sequence))

	next := sha256.New()
	next.Write(h.prevHash[:])
	next.Write(seq[:])
	next.Write(stateDigest)

	var hash [32]byte
	copy(hash[:], next.Sum(nil))
	h.prevHash = hash
	return hash
}

// GetPrevHash returns the current chain tip.
func (h *StateHasher) GetPrevHash() [32]byte {
	return h.prevHash
}

// SetPrevHash rewinds the tip to a snapshotted value so the chain continues
// from the restored state rather than from genesis.
func (h *StateHasher) SetPrevHash(hash [32]byte) {
	h.prevHash = hash
}
