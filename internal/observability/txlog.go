package observability

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// TxLog is the per-run transaction log: one line per input record, either
// a success marker or the reason the record was discarded.
type TxLog struct {
	w      *bufio.Writer
	closer io.Closer
}

// CreateTxLog truncates (or creates) the log file at path.
func CreateTxLog(path string) (*TxLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open transaction log: %w", err)
	}
	return &TxLog{w: bufio.NewWriter(f), closer: f}, nil
}

// NewTxLog writes to w. Close flushes but does not close w.
func NewTxLog(w io.Writer) *TxLog {
	return &TxLog{w: bufio.NewWriter(w)}
}

func (l *TxLog) Success(record uint64) error {
	_, err := fmt.Fprintf(l.w, "[RECORD #%d][SUCCESS]: Transaction processed successfully.\n", record)
	return err
}

func (l *TxLog) Failure(record uint64, reason error) error {
	_, err := fmt.Fprintf(l.w, "[RECORD #%d][ERROR]: %s\n", record, reason)
	return err
}

// Close flushes buffered lines and closes the file, if any.
func (l *TxLog) Close() error {
	if err := l.w.Flush(); err != nil {
		if l.closer != nil {
			l.closer.Close()
		}
		return fmt.Errorf("flush transaction log: %w", err)
	}
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
