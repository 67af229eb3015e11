package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"PaymentsEngine/internal/ledger"
)

// Header is the first line of every balances report.
var Header = []string{"client", "available", "held", "total", "locked"}

// WriteBalances writes one CSV row per account, in the order given, with
// amounts rendered to exactly four fractional digits.
func WriteBalances(w io.Writer, accounts []ledger.AccountBalance) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}

	row := make([]string, len(Header))
	for _, a := range accounts {
		row[0] = strconv.FormatUint(uint64(a.Client), 10)
		row[1] = a.Available.String()
		row[2] = a.Held.String()
		row[3] = a.Total.String()
		row[4] = strconv.FormatBool(a.Locked)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write report row for client %d: %w", a.Client, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return nil
}
