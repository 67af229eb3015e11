package event

import (
	"errors"
	"strings"

	fpmath "PaymentsEngine/internal/math"
)

// TxType discriminator for transaction records
type TxType int32

const (
	TxTypeUnknown TxType = iota
	TxTypeDeposit
	TxTypeWithdrawal
	TxTypeDispute
	TxTypeResolve
	TxTypeChargeback
)

// ErrMalformedRecord marks a record that could not be decoded. The pipeline
// rejects such a record and moves on; it never aborts the run.
var ErrMalformedRecord = errors.New("malformed record")

// Transaction is one decoded input record.
type Transaction struct {
	Type   TxType
	Client uint16
	TxID   uint32

	// Amount is only meaningful when HasAmount is set. Dispute, resolve and
	// chargeback records never carry one.
	Amount    fpmath.Money
	HasAmount bool
}

// CarriesAmount reports whether records of this type read the amount column.
func (t TxType) CarriesAmount() bool {
	return t == TxTypeDeposit || t == TxTypeWithdrawal
}

// ParseTxType maps the wire name ("deposit", "Withdrawal", ...) to a TxType.
func ParseTxType(s string) (TxType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deposit":
		return TxTypeDeposit, true
	case "withdrawal":
		return TxTypeWithdrawal, true
	case "dispute":
		return TxTypeDispute, true
	case "resolve":
		return TxTypeResolve, true
	case "chargeback":
		return TxTypeChargeback, true
	default:
		return TxTypeUnknown, false
	}
}

func (t TxType) String() string {
	switch t {
	case TxTypeDeposit:
		return "deposit"
	case TxTypeWithdrawal:
		return "withdrawal"
	case TxTypeDispute:
		return "dispute"
	case TxTypeResolve:
		return "resolve"
	case TxTypeChargeback:
		return "chargeback"
	default:
		return "unknown"
	}
}
