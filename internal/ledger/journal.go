package ledger

import (
	"fmt"

	fpmath "PaymentsEngine/internal/math"
)

// EntryKind is the type of a stored transaction. Only deposits and
// withdrawals are ever kept; dispute, resolve and chargeback are control
// records that reference an entry.
type EntryKind int32

const (
	EntryKindDeposit EntryKind = iota + 1
	EntryKindWithdrawal
)

func (k EntryKind) String() string {
	switch k {
	case EntryKindDeposit:
		return "deposit"
	case EntryKindWithdrawal:
		return "withdrawal"
	default:
		return "unknown"
	}
}

// Entry is a previously accepted deposit or withdrawal, kept so later
// disputes can find it.
//
// Lifecycle: Created -> Disputed -> Finalized. Disputed is never cleared;
// Finalized (resolved or charged back) is terminal.
type Entry struct {
	Kind      EntryKind
	Client    uint16
	TxID      uint32
	Amount    fpmath.Money
	Disputed  bool
	Finalized bool
}

// Validate ensures the entry is well-formed.
func (e Entry) Validate() error {
	if e.Kind != EntryKindDeposit && e.Kind != EntryKindWithdrawal {
		return fmt.Errorf("entry tx=%d has invalid kind %d", e.TxID, e.Kind)
	}
	if e.Finalized && !e.Disputed {
		return fmt.Errorf("entry tx=%d is finalized without a dispute", e.TxID)
	}
	return nil
}
