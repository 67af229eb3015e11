package ledger

import (
	"fmt"

	fpmath "PaymentsEngine/internal/math"
)

// InvariantValidator checks account invariants
type InvariantValidator struct {
	store *AccountStore
}

func NewInvariantValidator(store *AccountStore) *InvariantValidator {
	return &InvariantValidator{
		store: store,
	}
}

// ValidateBalance verifies total == available + held
func (v *InvariantValidator) ValidateBalance(acct *Account) error {
	sum, err := fpmath.Add(acct.Available, acct.Held)
	if err != nil {
		return fmt.Errorf("client %d: available+held overflows: %w", acct.ID, err)
	}
	if sum != acct.Total {
		return fmt.Errorf("client %d: total %s != available %s + held %s",
			acct.ID, acct.Total, acct.Available, acct.Held)
	}
	return nil
}

// ValidateAccount runs ValidateBalance and checks every stored entry.
func (v *InvariantValidator) ValidateAccount(acct *Account) error {
	if err := v.ValidateBalance(acct); err != nil {
		return err
	}

	for _, e := range acct.Entries {
		if e.Client != acct.ID {
			return fmt.Errorf("client %d: entry tx=%d belongs to client %d", acct.ID, e.TxID, e.Client)
		}
		if err := e.Validate(); err != nil {
			return fmt.Errorf("client %d: %w", acct.ID, err)
		}
	}
	return nil
}

// ValidateAll runs ValidateAccount over every known account.
func (v *InvariantValidator) ValidateAll() error {
	for _, acct := range v.store.Accounts() {
		if err := v.ValidateAccount(acct); err != nil {
			return err
		}
	}
	return nil
}
