package ledger

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// AccountStore maintains in-memory client accounts.
// Not safe for concurrent use; the processor owns it.
type AccountStore struct {
	accounts map[uint16]*Account
}

func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[uint16]*Account),
	}
}

// GetOrCreate returns the account for id, creating an empty one on first use.
func (s *AccountStore) GetOrCreate(id uint16) *Account {
	if acct, ok := s.accounts[id]; ok {
		return acct
	}
	acct := NewAccount(id)
	s.accounts[id] = acct
	return acct
}

// Get returns the account for id if it has been referenced.
func (s *AccountStore) Get(id uint16) (*Account, bool) {
	acct, ok := s.accounts[id]
	return acct, ok
}

// Len returns the number of known accounts.
func (s *AccountStore) Len() int {
	return len(s.accounts)
}

// LockedCount returns the number of frozen accounts.
func (s *AccountStore) LockedCount() int {
	n := 0
	for _, acct := range s.accounts {
		if acct.Locked {
			n++
		}
	}
	return n
}

// Accounts returns all accounts sorted by client id.
func (s *AccountStore) Accounts() []*Account {
	out := make([]*Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		out = append(out, acct)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// Snapshot copies the current balances into a Snapshot tagged with runID.
func (s *AccountStore) Snapshot(runID uuid.UUID, stateHash [32]byte, createdAt time.Time) *Snapshot {
	accounts := s.Accounts()
	snap := &Snapshot{
		RunID:     runID,
		StateHash: stateHash,
		Accounts:  make([]AccountBalance, 0, len(accounts)),
		CreatedAt: createdAt,
	}
	for _, acct := range accounts {
		snap.Accounts = append(snap.Accounts, acct.Balance())
	}
	return snap
}
