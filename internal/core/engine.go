package core

import (
	"PaymentsEngine/internal/event"
	"PaymentsEngine/internal/ledger"
	fpmath "PaymentsEngine/internal/math"
)

// Engine applies transaction records to client accounts. It holds no state
// of its own: everything it reads or writes lives on the account passed in.
//
// Every handler computes the new balances first and commits them only after
// all checks pass, so a rejected record leaves the account untouched.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Apply is the dispatcher entry point. It returns nil when the record was
// applied, or a *RejectError naming the reason it was discarded.
func (e *Engine) Apply(acct *ledger.Account, tx event.Transaction) error {
	if acct.Locked {
		return reject(tx, AccountFrozen)
	}

	switch tx.Type {
	case event.TxTypeDeposit:
		return e.handleDeposit(acct, tx)
	case event.TxTypeWithdrawal:
		return e.handleWithdrawal(acct, tx)
	case event.TxTypeDispute:
		return e.handleDispute(acct, tx)
	case event.TxTypeResolve:
		return e.handleResolve(acct, tx)
	case event.TxTypeChargeback:
		return e.handleChargeback(acct, tx)
	default:
		return reject(tx, UnsupportedTransaction)
	}
}

func (e *Engine) handleDeposit(acct *ledger.Account, tx event.Transaction) error {
	if !tx.HasAmount {
		return reject(tx, MissingAmount)
	}

	available, err := fpmath.Add(acct.Available, tx.Amount)
	if err != nil {
		return reject(tx, BalanceOverflow)
	}
	total, err := fpmath.Add(available, acct.Held)
	if err != nil {
		return reject(tx, BalanceOverflow)
	}

	acct.Available = available
	acct.Total = total
	acct.Entries = append(acct.Entries, newEntry(ledger.EntryKindDeposit, tx))
	return nil
}

func (e *Engine) handleWithdrawal(acct *ledger.Account, tx event.Transaction) error {
	if !tx.HasAmount {
		return reject(tx, MissingAmount)
	}

	available, err := fpmath.Sub(acct.Available, tx.Amount)
	if err != nil {
		return reject(tx, InsufficientFunds)
	}
	// available shrank, so this cannot overflow
	total, _ := fpmath.Add(available, acct.Held)

	acct.Available = available
	acct.Total = total
	acct.Entries = append(acct.Entries, newEntry(ledger.EntryKindWithdrawal, tx))
	return nil
}

// handleDispute moves the referenced amount into held.
// Disputing a deposit takes the funds out of available (total unchanged).
// Disputing a withdrawal provisionally refunds it: held grows, available is
// untouched, so total grows.
func (e *Engine) handleDispute(acct *ledger.Account, tx event.Transaction) error {
	idx, ok := acct.FindEntry(tx.TxID)
	if !ok {
		return reject(tx, ReferencedTransactionNotFound)
	}
	entry := &acct.Entries[idx]

	// Disputed is never cleared, so this also rejects disputes against
	// resolved or charged-back entries.
	if entry.Disputed {
		return reject(tx, AlreadyDisputed)
	}

	available := acct.Available
	switch entry.Kind {
	case ledger.EntryKindDeposit:
		var err error
		available, err = fpmath.Sub(acct.Available, entry.Amount)
		if err != nil {
			return reject(tx, BalanceUnderflow)
		}
	case ledger.EntryKindWithdrawal:
	default:
		return reject(tx, InvalidDisputeTarget)
	}

	held, err := fpmath.Add(acct.Held, entry.Amount)
	if err != nil {
		return reject(tx, HeldOverflow)
	}
	total, err := fpmath.Add(available, held)
	if err != nil {
		return reject(tx, HeldOverflow)
	}

	acct.Available = available
	acct.Held = held
	acct.Total = total
	entry.Disputed = true
	return nil
}

// handleResolve releases held funds back to available.
func (e *Engine) handleResolve(acct *ledger.Account, tx event.Transaction) error {
	entry, rej := e.findDisputedEntry(acct, tx)
	if rej != nil {
		return rej
	}

	held, err := fpmath.Sub(acct.Held, entry.Amount)
	if err != nil {
		return reject(tx, HeldUnderflow)
	}
	available, err := fpmath.Add(acct.Available, entry.Amount)
	if err != nil {
		return reject(tx, BalanceOverflow)
	}
	total, err := fpmath.Add(available, held)
	if err != nil {
		return reject(tx, BalanceOverflow)
	}

	acct.Available = available
	acct.Held = held
	acct.Total = total
	entry.Finalized = true
	return nil
}

// handleChargeback removes held funds permanently and freezes the account.
func (e *Engine) handleChargeback(acct *ledger.Account, tx event.Transaction) error {
	entry, rej := e.findDisputedEntry(acct, tx)
	if rej != nil {
		return rej
	}

	held, err := fpmath.Sub(acct.Held, entry.Amount)
	if err != nil {
		return reject(tx, HeldUnderflow)
	}
	// held shrank, so this cannot overflow
	total, _ := fpmath.Add(acct.Available, held)

	acct.Held = held
	acct.Total = total
	acct.Locked = true
	entry.Finalized = true
	return nil
}

// findDisputedEntry performs the lookup shared by resolve and chargeback.
func (e *Engine) findDisputedEntry(acct *ledger.Account, tx event.Transaction) (*ledger.Entry, *RejectError) {
	idx, ok := acct.FindEntry(tx.TxID)
	if !ok {
		return nil, reject(tx, ReferencedTransactionNotFound)
	}
	entry := &acct.Entries[idx]

	if entry.Finalized {
		return nil, reject(tx, AlreadyFinalized)
	}
	if !entry.Disputed {
		return nil, reject(tx, NotUnderDispute)
	}
	return entry, nil
}

func newEntry(kind ledger.EntryKind, tx event.Transaction) ledger.Entry {
	return ledger.Entry{
		Kind:   kind,
		Client: tx.Client,
		TxID:   tx.TxID,
		Amount: tx.Amount,
	}
}
