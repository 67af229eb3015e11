package core_test

import (
	"testing"

	"PaymentsEngine/internal/core"
	"PaymentsEngine/internal/event"
	"PaymentsEngine/internal/ledger"
	fpmath "PaymentsEngine/internal/math"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

func deposit(client uint16, tx uint32, amount string) event.Transaction {
	return event.Transaction{Type: event.TxTypeDeposit, Client: client, TxID: tx, Amount: fpmath.MustParseMoney(amount), HasAmount: true}
}

func withdrawal(client uint16, tx uint32, amount string) event.Transaction {
	return event.Transaction{Type: event.TxTypeWithdrawal, Client: client, TxID: tx, Amount: fpmath.MustParseMoney(amount), HasAmount: true}
}

func dispute(client uint16, tx uint32) event.Transaction {
	return event.Transaction{Type: event.TxTypeDispute, Client: client, TxID: tx}
}

func resolve(client uint16, tx uint32) event.Transaction {
	return event.Transaction{Type: event.TxTypeResolve, Client: client, TxID: tx}
}

func chargeback(client uint16, tx uint32) event.Transaction {
	return event.Transaction{Type: event.TxTypeChargeback, Client: client, TxID: tx}
}

func money(s string) fpmath.Money {
	return fpmath.MustParseMoney(s)
}

func requireApplied(t *testing.T, e *core.Engine, acct *ledger.Account, tx event.Transaction) {
	t.Helper()
	require.NoError(t, e.Apply(acct, tx), "%s tx %d", tx.Type, tx.TxID)
}

// requireRejected applies tx, checks the reason and that the account did not change.
func requireRejected(t *testing.T, e *core.Engine, acct *ledger.Account, tx event.Transaction, want core.Reason) {
	t.Helper()
	before := cloneAccount(acct)

	err := e.Apply(acct, tx)
	require.Error(t, err)
	assert.ErrorIs(t, err, want)

	var rej *core.RejectError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, want, rej.Reason)
	assert.Equal(t, tx.Client, rej.Client)
	assert.Equal(t, tx.TxID, rej.TxID)
	assert.Equal(t, tx.Type, rej.Type)

	assert.Equal(t, before, acct, "rejected %s must not mutate the account", tx.Type)
}

func cloneAccount(a *ledger.Account) *ledger.Account {
	c := *a
	c.Entries = append([]ledger.Entry(nil), a.Entries...)
	return &c
}

func assertBalances(t *testing.T, acct *ledger.Account, available, held, total string, locked bool) {
	t.Helper()
	assert.Equal(t, money(available), acct.Available, "available")
	assert.Equal(t, money(held), acct.Held, "held")
	assert.Equal(t, money(total), acct.Total, "total")
	assert.Equal(t, locked, acct.Locked, "locked")
}

// ============================================================================
// Deposits and withdrawals
// ============================================================================

func TestEngine_DepositCreditsAvailableAndStoresEntry(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	requireApplied(t, e, acct, deposit(1, 1, "1.5"))
	requireApplied(t, e, acct, deposit(1, 2, "0.0001"))

	assertBalances(t, acct, "1.5001", "0", "1.5001", false)
	require.Len(t, acct.Entries, 2)
	assert.Equal(t, ledger.Entry{Kind: ledger.EntryKindDeposit, Client: 1, TxID: 1, Amount: money("1.5")}, acct.Entries[0])
}

func TestEngine_WithdrawalDebitsAvailable(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	requireApplied(t, e, acct, deposit(1, 1, "10"))
	requireApplied(t, e, acct, withdrawal(1, 2, "2.5"))

	assertBalances(t, acct, "7.5", "0", "7.5", false)
	require.Len(t, acct.Entries, 2)
	assert.Equal(t, ledger.EntryKindWithdrawal, acct.Entries[1].Kind)
}

func TestEngine_WithdrawalOfEntireBalance(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	requireApplied(t, e, acct, deposit(1, 1, "3"))
	requireApplied(t, e, acct, withdrawal(1, 2, "3"))

	assertBalances(t, acct, "0", "0", "0", false)
}

// Scenario D
func TestEngine_WithdrawalInsufficientFunds(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	requireApplied(t, e, acct, deposit(1, 1, "5.0"))
	requireRejected(t, e, acct, withdrawal(1, 2, "100.0"), core.InsufficientFunds)

	assertBalances(t, acct, "5.0", "0", "5.0", false)
	assert.Len(t, acct.Entries, 1, "rejected withdrawal is not stored")
}

func TestEngine_MissingAmount(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	requireRejected(t, e, acct, event.Transaction{Type: event.TxTypeDeposit, Client: 1, TxID: 1}, core.MissingAmount)
	requireRejected(t, e, acct, event.Transaction{Type: event.TxTypeWithdrawal, Client: 1, TxID: 2}, core.MissingAmount)
}

func TestEngine_DepositOverflow(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	big := event.Transaction{Type: event.TxTypeDeposit, Client: 1, TxID: 1, Amount: fpmath.MaxMoney, HasAmount: true}
	requireApplied(t, e, acct, big)
	requireRejected(t, e, acct, deposit(1, 2, "0.0001"), core.BalanceOverflow)
}

func TestEngine_DepositOverflowOfTotalWithHeldFunds(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	half := fpmath.MaxMoney / 2
	requireApplied(t, e, acct, event.Transaction{Type: event.TxTypeDeposit, Client: 1, TxID: 1, Amount: half, HasAmount: true})
	requireApplied(t, e, acct, dispute(1, 1))

	// available alone would fit, available + held does not
	requireRejected(t, e, acct, event.Transaction{Type: event.TxTypeDeposit, Client: 1, TxID: 2, Amount: half + 2, HasAmount: true}, core.BalanceOverflow)
}

func TestEngine_DuplicateDepositIDsAreNotDeduplicated(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	requireApplied(t, e, acct, deposit(1, 1, "1"))
	requireApplied(t, e, acct, deposit(1, 1, "1"))

	assertBalances(t, acct, "2", "0", "2", false)
}

func TestEngine_UnsupportedType(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	requireRejected(t, e, acct, event.Transaction{Type: event.TxTypeUnknown, Client: 1, TxID: 1}, core.UnsupportedTransaction)
}

// ============================================================================
// Disputes
// ============================================================================

// Scenario A
func TestEngine_DisputeDepositMovesFundsToHeld(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	requireApplied(t, e, acct, deposit(1, 1, "5.0"))
	requireApplied(t, e, acct, dispute(1, 1))

	assertBalances(t, acct, "0", "5.0", "5.0", false)
	assert.True(t, acct.Entries[0].Disputed)
	assert.False(t, acct.Entries[0].Finalized)
}

func TestEngine_DisputeWithdrawalHoldsProvisionalRefund(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	requireApplied(t, e, acct, deposit(1, 1, "10"))
	requireApplied(t, e, acct, withdrawal(1, 2, "4"))
	requireApplied(t, e, acct, dispute(1, 2))

	assertBalances(t, acct, "6", "4", "10", false)
}

// Scenario E
func TestEngine_DisputeUnknownTransaction(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	requireApplied(t, e, acct, deposit(1, 1, "5"))
	requireRejected(t, e, acct, dispute(1, 99), core.ReferencedTransactionNotFound)
}

func TestEngine_DoubleDisputeAppliesOnce(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	requireApplied(t, e, acct, deposit(1, 1, "5"))
	requireApplied(t, e, acct, deposit(1, 2, "5"))
	requireApplied(t, e, acct, dispute(1, 1))
	requireRejected(t, e, acct, dispute(1, 1), core.AlreadyDisputed)

	assertBalances(t, acct, "5", "5", "10", false)
}

func TestEngine_DisputeDepositAlreadySpent(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	requireApplied(t, e, acct, deposit(1, 1, "5"))
	requireApplied(t, e, acct, withdrawal(1, 2, "3"))
	requireRejected(t, e, acct, dispute(1, 1), core.BalanceUnderflow)

	assert.False(t, acct.Entries[0].Disputed)
}

func TestEngine_DisputeHeldOverflow(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	requireApplied(t, e, acct, event.Transaction{Type: event.TxTypeDeposit, Client: 1, TxID: 1, Amount: fpmath.MaxMoney, HasAmount: true})
	requireApplied(t, e, acct, withdrawal(1, 2, "1"))
	requireApplied(t, e, acct, deposit(1, 3, "1"))

	// refunding the withdrawal would push held + available past the range
	requireRejected(t, e, acct, dispute(1, 2), core.HeldOverflow)
}

func TestEngine_InvalidDisputeTarget(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)
	acct.Entries = append(acct.Entries, ledger.Entry{Kind: ledger.EntryKind(99), Client: 1, TxID: 7, Amount: 1})

	requireRejected(t, e, acct, dispute(1, 7), core.InvalidDisputeTarget)
}

// ============================================================================
// Resolve
// ============================================================================

// Scenario B
func TestEngine_ResolveReleasesHeldFunds(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	requireApplied(t, e, acct, deposit(1, 1, "5.0"))
	requireApplied(t, e, acct, dispute(1, 1))
	requireApplied(t, e, acct, resolve(1, 1))

	assertBalances(t, acct, "5.0", "0", "5.0", false)
	assert.True(t, acct.Entries[0].Finalized)
	assert.True(t, acct.Entries[0].Disputed, "resolve does not clear the disputed flag")
}

func TestEngine_ResolveWithdrawalDisputeRefunds(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	requireApplied(t, e, acct, deposit(1, 1, "10"))
	requireApplied(t, e, acct, withdrawal(1, 2, "4"))
	requireApplied(t, e, acct, dispute(1, 2))
	requireApplied(t, e, acct, resolve(1, 2))

	assertBalances(t, acct, "10", "0", "10", false)
}

func TestEngine_ResolveRejections(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	requireApplied(t, e, acct, deposit(1, 1, "5"))
	requireRejected(t, e, acct, resolve(1, 2), core.ReferencedTransactionNotFound)
	requireRejected(t, e, acct, resolve(1, 1), core.NotUnderDispute)

	requireApplied(t, e, acct, dispute(1, 1))
	requireApplied(t, e, acct, resolve(1, 1))
	requireRejected(t, e, acct, resolve(1, 1), core.AlreadyFinalized)
	requireRejected(t, e, acct, chargeback(1, 1), core.AlreadyFinalized)
}

func TestEngine_ResolvedEntryCannotBeDisputedAgain(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	requireApplied(t, e, acct, deposit(1, 1, "5"))
	requireApplied(t, e, acct, dispute(1, 1))
	requireApplied(t, e, acct, resolve(1, 1))
	requireRejected(t, e, acct, dispute(1, 1), core.AlreadyDisputed)

	assertBalances(t, acct, "5", "0", "5", false)
}

func TestEngine_ResolveHeldUnderflow(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	// held cannot cover the entry: only reachable through inconsistent state
	acct.Entries = append(acct.Entries, ledger.Entry{Kind: ledger.EntryKindDeposit, Client: 1, TxID: 1, Amount: 10, Disputed: true})
	requireRejected(t, e, acct, resolve(1, 1), core.HeldUnderflow)
	requireRejected(t, e, acct, chargeback(1, 1), core.HeldUnderflow)
}

func TestEngine_ResolveBalanceOverflow(t *testing.T) {
	e := core.NewEngine()
	acct := &ledger.Account{ID: 1, Available: fpmath.MaxMoney, Held: 10, Total: fpmath.MaxMoney}
	acct.Entries = append(acct.Entries, ledger.Entry{Kind: ledger.EntryKindDeposit, Client: 1, TxID: 1, Amount: 10, Disputed: true})

	requireRejected(t, e, acct, resolve(1, 1), core.BalanceOverflow)
}

// ============================================================================
// Chargeback
// ============================================================================

// Scenario C
func TestEngine_ChargebackRemovesFundsAndLocks(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	requireApplied(t, e, acct, deposit(1, 1, "5.0"))
	requireApplied(t, e, acct, dispute(1, 1))
	requireApplied(t, e, acct, chargeback(1, 1))

	assertBalances(t, acct, "0", "0", "0", true)
	assert.True(t, acct.Entries[0].Finalized)

	requireRejected(t, e, acct, deposit(1, 2, "1"), core.AccountFrozen)
	assertBalances(t, acct, "0", "0", "0", true)
}

func TestEngine_ChargebackOfWithdrawalDispute(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	requireApplied(t, e, acct, deposit(1, 1, "10"))
	requireApplied(t, e, acct, withdrawal(1, 2, "4"))
	requireApplied(t, e, acct, dispute(1, 2))
	requireApplied(t, e, acct, chargeback(1, 2))

	assertBalances(t, acct, "6", "0", "6", true)
}

func TestEngine_ChargebackRequiresDispute(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	requireApplied(t, e, acct, deposit(1, 1, "5"))
	requireRejected(t, e, acct, chargeback(1, 1), core.NotUnderDispute)
	requireRejected(t, e, acct, chargeback(1, 3), core.ReferencedTransactionNotFound)
}

func TestEngine_LockedAccountRejectsEveryType(t *testing.T) {
	e := core.NewEngine()
	acct := ledger.NewAccount(1)

	requireApplied(t, e, acct, deposit(1, 1, "5"))
	requireApplied(t, e, acct, deposit(1, 2, "5"))
	requireApplied(t, e, acct, dispute(1, 1))
	requireApplied(t, e, acct, dispute(1, 2))
	requireApplied(t, e, acct, chargeback(1, 1))

	for _, tx := range []event.Transaction{
		deposit(1, 3, "1"),
		withdrawal(1, 4, "1"),
		dispute(1, 2),
		resolve(1, 2),
		chargeback(1, 2),
	} {
		requireRejected(t, e, acct, tx, core.AccountFrozen)
	}
	assertBalances(t, acct, "0", "5", "5", true)
}

// ============================================================================
// Errors
// ============================================================================

func TestRejectError_Message(t *testing.T) {
	err := &core.RejectError{Record: 3, Client: 1, TxID: 7, Type: event.TxTypeWithdrawal, Reason: core.InsufficientFunds}
	assert.Equal(t, "client 1, withdrawal tx 7: insufficient available funds. Discarding transaction.", err.Error())

	malformed := &core.RejectError{Record: 4, Reason: core.MalformedRecord, Detail: "malformed record: unknown type \"refund\""}
	assert.Equal(t, "malformed record: unknown type \"refund\". Discarding transaction.", malformed.Error())
}

func TestReason_LabelsAreDistinct(t *testing.T) {
	seen := map[string]core.Reason{}
	for r := core.AccountFrozen; r <= core.MalformedRecord; r++ {
		label := r.Label()
		require.NotEqual(t, "unknown", label, "reason %d", r)
		_, dup := seen[label]
		require.False(t, dup, "duplicate label %q", label)
		seen[label] = r
	}
}
