package ledger

import (
	"encoding/hex"
	"time"

	fpmath "PaymentsEngine/internal/math"

	"github.com/google/uuid"
)

// AccountBalance is the reported view of one client account.
type AccountBalance struct {
	Client    uint16       `json:"client"`
	Available fpmath.Money `json:"available"`
	Held      fpmath.Money `json:"held"`
	Total     fpmath.Money `json:"total"`
	Locked    bool         `json:"locked"`
}

// Snapshot is the final state of a run, handed to the report writer and
// to the optional exporters.
type Snapshot struct {
	RunID     uuid.UUID        `json:"run_id"`
	StateHash [32]byte         `json:"-"`
	Accounts  []AccountBalance `json:"accounts"`
	CreatedAt time.Time        `json:"created_at"`
}

// StateHashHex returns the run's final state hash as lowercase hex.
func (s *Snapshot) StateHashHex() string {
	return hex.EncodeToString(s.StateHash[:])
}
