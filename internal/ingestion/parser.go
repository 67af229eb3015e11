package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"PaymentsEngine/internal/event"
	fpmath "PaymentsEngine/internal/math"
)

// Column names of the input header. Columns are located by name, so their
// order in the file does not matter.
const (
	colType   = "type"
	colClient = "client"
	colTx     = "tx"
	colAmount = "amount"
)

// CSVSource decodes transaction records from a CSV stream with a
// "type,client,tx,amount" header. Every field is trimmed and rows may omit
// the trailing amount column.
//
// Next returns io.EOF after the last row. A row that cannot be decoded
// yields an error wrapping event.ErrMalformedRecord; the source stays usable
// and the following call returns the next row.
type CSVSource struct {
	r *csv.Reader

	headerRead bool
	typeIdx    int
	clientIdx  int
	txIdx      int
	amountIdx  int // -1 when the header has no amount column
	width      int
}

func NewCSVSource(r io.Reader) *CSVSource {
	cr := csv.NewReader(&lineCleaner{br: bufio.NewReader(r), first: true})
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return &CSVSource{r: cr, amountIdx: -1}
}

// Next decodes the next data row.
func (s *CSVSource) Next() (event.Transaction, error) {
	if !s.headerRead {
		if err := s.readHeader(); err != nil {
			return event.Transaction{}, err
		}
	}

	row, err := s.r.Read()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return event.Transaction{}, fmt.Errorf("%w: line %d: %v", event.ErrMalformedRecord, perr.Line, perr.Err)
		}
		return event.Transaction{}, err
	}

	return s.decode(row)
}

func (s *CSVSource) readHeader() error {
	header, err := s.r.Read()
	if err != nil {
		// io.EOF here means an empty input: zero records, not an error.
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("read header: %w", err)
	}

	idx := map[string]int{}
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, name := range []string{colType, colClient, colTx} {
		if _, ok := idx[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("read header: missing column(s) %s", strings.Join(missing, ", "))
	}

	s.typeIdx = idx[colType]
	s.clientIdx = idx[colClient]
	s.txIdx = idx[colTx]
	if i, ok := idx[colAmount]; ok {
		s.amountIdx = i
	}
	s.width = len(header)
	s.headerRead = true
	return nil
}

func (s *CSVSource) decode(row []string) (event.Transaction, error) {
	var tx event.Transaction

	if len(row) > s.width {
		return tx, fmt.Errorf("%w: expected at most %d fields, got %d", event.ErrMalformedRecord, s.width, len(row))
	}

	field := func(i int) (string, bool) {
		if i < 0 || i >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[i]), true
	}

	typeStr, ok := field(s.typeIdx)
	if !ok {
		return tx, fmt.Errorf("%w: missing type field", event.ErrMalformedRecord)
	}
	txType, ok := event.ParseTxType(typeStr)
	if !ok {
		return tx, fmt.Errorf("%w: unknown transaction type %q", event.ErrMalformedRecord, typeStr)
	}
	tx.Type = txType

	clientStr, ok := field(s.clientIdx)
	if !ok {
		return tx, fmt.Errorf("%w: missing client field", event.ErrMalformedRecord)
	}
	client, err := strconv.ParseUint(clientStr, 10, 16)
	if err != nil {
		return tx, fmt.Errorf("%w: invalid client id %q", event.ErrMalformedRecord, clientStr)
	}
	tx.Client = uint16(client)

	txStr, ok := field(s.txIdx)
	if !ok {
		return tx, fmt.Errorf("%w: missing tx field", event.ErrMalformedRecord)
	}
	txID, err := strconv.ParseUint(txStr, 10, 32)
	if err != nil {
		return tx, fmt.Errorf("%w: invalid tx id %q", event.ErrMalformedRecord, txStr)
	}
	tx.TxID = uint32(txID)

	if !txType.CarriesAmount() {
		return tx, nil
	}

	// An empty or absent amount is left to the engine (MissingAmount).
	amountStr, _ := field(s.amountIdx)
	if amountStr == "" {
		return tx, nil
	}
	amount, err := fpmath.ParseMoney(amountStr)
	if err != nil {
		return tx, fmt.Errorf("%w: %v", event.ErrMalformedRecord, err)
	}
	tx.Amount = amount
	tx.HasAmount = true
	return tx, nil
}

var (
	utf8BOM = []byte("\ufeff")
	// A closing quote followed by blanks up to the next separator or line end.
	blanksAfterQuote = regexp.MustCompile(`"[ \t]+(,|\r?\n|$)`)
)

// lineCleaner feeds csv.Reader line by line. It drops a leading UTF-8 BOM
// and the blanks after a closing quote, which csv.Reader would otherwise
// report as a bare quote.
type lineCleaner struct {
	br    *bufio.Reader
	first bool
	buf   []byte
	err   error
}

func (c *lineCleaner) Read(p []byte) (int, error) {
	for len(c.buf) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		line, err := c.br.ReadBytes('\n')
		if c.first {
			line = bytes.TrimPrefix(line, utf8BOM)
			c.first = false
		}
		if bytes.IndexByte(line, '"') >= 0 {
			line = blanksAfterQuote.ReplaceAll(line, []byte(`"$1`))
		}
		c.buf, c.err = line, err
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}
