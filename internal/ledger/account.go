package ledger

import (
	fpmath "PaymentsEngine/internal/math"
)

// Account is a client's balance triple, lock state and stored entries.
// Invariant: Total == Available + Held after every successful mutation.
type Account struct {
	ID        uint16
	Available fpmath.Money
	Held      fpmath.Money
	Total     fpmath.Money
	Locked    bool
	Entries   []Entry
}

func NewAccount(id uint16) *Account {
	return &Account{ID: id}
}

// FindEntry returns the index of the entry with the given tx id. Callers
// mutate the entry through Entries[idx] so the account stays the only owner.
func (a *Account) FindEntry(txID uint32) (int, bool) {
	for i := range a.Entries {
		if a.Entries[i].TxID == txID {
			return i, true
		}
	}
	return -1, false
}

// Balance returns the externally visible balances of the account.
func (a *Account) Balance() AccountBalance {
	return AccountBalance{
		Client:    a.ID,
		Available: a.Available,
		Held:      a.Held,
		Total:     a.Total,
		Locked:    a.Locked,
	}
}

// CanonicalBytes for deterministic hashing
func (a *Account) CanonicalBytes() []byte {
	buf := make([]byte, 0, 27)

	// client id (2 bytes LE)
	buf = append(buf, byte(a.ID), byte(a.ID>>8))

	buf = appendUint64LE(buf, uint64(a.Available))
	buf = appendUint64LE(buf, uint64(a.Held))
	buf = appendUint64LE(buf, uint64(a.Total))

	if a.Locked {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func appendUint64LE(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}
