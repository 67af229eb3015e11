package core

import (
	"crypto/sha256"
	"encoding/binary"

	"PaymentsEngine/internal/ledger"
)

const GenesisHashSeed = "PaymentsEngine:genesis:v1"

// StateHasher fingerprints a run. Every applied record folds the account it
// touched into a SHA-256 chain:
//
//	tip[n] = SHA-256(tip[n-1] || record (8 bytes LE) || account.CanonicalBytes())
//
// Rejected records are not folded, so two runs over the same input end on
// the same tip.
type StateHasher struct {
	tip    [32]byte
	folded uint64
}

func NewStateHasher() *StateHasher {
	return &StateHasher{tip: GenesisHash()}
}

// GenesisHash is the tip of a run that applied nothing.
func GenesisHash() [32]byte {
	return sha256.Sum256([]byte(GenesisHashSeed))
}

// Fold extends the chain with the state of acct after record was applied.
func (h *StateHasher) Fold(record uint64, acct *ledger.Account) [32]byte {
	var seq [8]byte
	binary.LittleEndian.PutUint64(seq[:], record)

	d := sha256.New()
	d.Write(h.tip[:])
	d.Write(seq[:])
	d.Write(acct.CanonicalBytes())
	d.Sum(h.tip[:0])

	h.folded++
	return h.tip
}

// Tip returns the current head of the chain.
func (h *StateHasher) Tip() [32]byte {
	return h.tip
}

// Folded returns the number of records folded so far.
func (h *StateHasher) Folded() uint64 {
	return h.folded
}
