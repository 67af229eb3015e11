package core

import (
	"fmt"

	"PaymentsEngine/internal/event"
)

// Reason is the closed set of causes for rejecting a record. Reason
// implements error so callers can match with errors.Is(err, core.AccountFrozen).
type Reason uint8

const (
	AccountFrozen Reason = iota + 1
	MissingAmount
	BalanceOverflow
	InsufficientFunds
	ReferencedTransactionNotFound
	AlreadyDisputed
	BalanceUnderflow
	HeldOverflow
	InvalidDisputeTarget
	AlreadyFinalized
	NotUnderDispute
	HeldUnderflow
	UnsupportedTransaction
	MalformedRecord
)

// Label returns the snake_case name used for metrics labels.
func (r Reason) Label() string {
	switch r {
	case AccountFrozen:
		return "account_frozen"
	case MissingAmount:
		return "missing_amount"
	case BalanceOverflow:
		return "balance_overflow"
	case InsufficientFunds:
		return "insufficient_funds"
	case ReferencedTransactionNotFound:
		return "referenced_transaction_not_found"
	case AlreadyDisputed:
		return "already_disputed"
	case BalanceUnderflow:
		return "balance_underflow"
	case HeldOverflow:
		return "held_overflow"
	case InvalidDisputeTarget:
		return "invalid_dispute_target"
	case AlreadyFinalized:
		return "already_finalized"
	case NotUnderDispute:
		return "not_under_dispute"
	case HeldUnderflow:
		return "held_underflow"
	case UnsupportedTransaction:
		return "unsupported_transaction"
	case MalformedRecord:
		return "malformed_record"
	default:
		return "unknown"
	}
}

func (r Reason) Error() string {
	switch r {
	case AccountFrozen:
		return "account is frozen, further transactions are not allowed"
	case MissingAmount:
		return "transaction requires an amount"
	case BalanceOverflow:
		return "available balance would overflow"
	case InsufficientFunds:
		return "insufficient available funds"
	case ReferencedTransactionNotFound:
		return "referenced transaction not found"
	case AlreadyDisputed:
		return "referenced transaction is already disputed"
	case BalanceUnderflow:
		return "available balance would go negative"
	case HeldOverflow:
		return "held balance would overflow"
	case InvalidDisputeTarget:
		return "only deposits and withdrawals can be disputed"
	case AlreadyFinalized:
		return "referenced transaction is already resolved or charged back"
	case NotUnderDispute:
		return "referenced transaction is not under dispute"
	case HeldUnderflow:
		return "held balance would go negative"
	case UnsupportedTransaction:
		return "unsupported transaction type"
	case MalformedRecord:
		return "malformed record"
	default:
		return "unknown rejection"
	}
}

// RejectError describes a record that was discarded. The account it
// targeted is left exactly as it was before the record.
type RejectError struct {
	Record uint64 // 1-based position in the input stream, 0 if not yet assigned
	Client uint16
	TxID   uint32
	Type   event.TxType
	Reason Reason
	Detail string // decode error of a malformed row
}

func reject(tx event.Transaction, reason Reason) *RejectError {
	return &RejectError{
		Client: tx.Client,
		TxID:   tx.TxID,
		Type:   tx.Type,
		Reason: reason,
	}
}

func (e *RejectError) Error() string {
	if e.Reason == MalformedRecord {
		if e.Detail != "" {
			return fmt.Sprintf("%s. Discarding transaction.", e.Detail)
		}
		return fmt.Sprintf("%s. Discarding transaction.", e.Reason.Error())
	}
	return fmt.Sprintf("client %d, %s tx %d: %s. Discarding transaction.",
		e.Client, e.Type, e.TxID, e.Reason.Error())
}

func (e *RejectError) Unwrap() error {
	return e.Reason
}
