// Package qif decodes non-investment Quicken Interchange Format statements.
package qif

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var ErrUnexpectedEOF = errors.New("qif: unexpected EOF while reading transaction")

// Split is one category line of a split transaction.
type Split struct {
	Category string // S
	Memo     string // E
	Amount   string // $
}

// Transaction is a non-investment QIF record. Values are kept as written;
// dates in particular are locale dependent.
type Transaction struct {
	// Account type from the last !Type: header, e.g. "Bank"
	Type string

	Date     string // D
	Amount   string // T, or U when present
	Num      string // N
	Payee    string // P
	Memo     string // M, multiple lines joined with '\n'
	Addr     string // A, multiple lines joined with '\n'
	Cleared  string // C
	Category string // L
	Splits   []Split

	// Line number of the D line, for error reporting
	Line int
}

// Decoder reads QIF data from an input stream.
type Decoder struct {
	r    *bufio.Reader
	line int
}

// NewDecoder returns a new QIF decoder that reads from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode reads every transaction from the stream. Lines outside of
// transactions are ignored.
func (d *Decoder) Decode() ([]*Transaction, error) {
	var (
		transactions []*Transaction
		currentType  string
	)

	for {
		line, err := d.readLine()
		if err == io.EOF {
			return transactions, nil
		}
		if err != nil {
			return nil, err
		}

		switch {
		case len(line) == 0:
		case strings.HasPrefix(line, "!Type:"):
			currentType = strings.TrimSpace(line[len("!Type:"):])
		case line[0] == 'D':
			tx, err := d.decodeTransaction(currentType, line)
			if err != nil {
				return nil, err
			}
			transactions = append(transactions, tx)
		}
	}
}

// decodeTransaction reads the fields following the D line up to and
// including the ^ end marker.
func (d *Decoder) decodeTransaction(txType string, firstLine string) (*Transaction, error) {
	tx := &Transaction{Type: txType, Line: d.line}
	tx.assign(firstLine)

	for {
		line, err := d.readLine()
		if err == io.EOF {
			return nil, ErrUnexpectedEOF
		}
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			continue
		}
		if line[0] == '^' {
			return tx, nil
		}
		tx.assign(line)
	}
}

func (tx *Transaction) assign(line string) {
	if len(line) == 0 {
		return
	}
	value := line[1:]

	switch line[0] {
	case 'D':
		tx.Date = value
	case 'T':
		if tx.Amount == "" {
			tx.Amount = value
		}
	case 'U':
		// higher precision amount wins over T
		tx.Amount = value
	case 'N':
		tx.Num = value
	case 'P':
		tx.Payee = value
	case 'M':
		tx.Memo = appendLine(tx.Memo, value)
	case 'A':
		tx.Addr = appendLine(tx.Addr, value)
	case 'C':
		tx.Cleared = value
	case 'L':
		tx.Category = value
	case 'S':
		tx.Splits = append(tx.Splits, Split{Category: value})
	case 'E':
		if n := len(tx.Splits); n > 0 {
			tx.Splits[n-1].Memo = value
		}
	case '$':
		if n := len(tx.Splits); n > 0 {
			tx.Splits[n-1].Amount = value
		}
	}
}

func appendLine(s, v string) string {
	if s == "" {
		return v
	}
	return s + "\n" + v
}

// readLine reads a single line without the trailing '\n' or '\r\n'.
func (d *Decoder) readLine() (string, error) {
	line, err := d.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if err == io.EOF && len(line) == 0 {
		return "", io.EOF
	}
	d.line++
	return line, nil
}

// ParseQIF parses all transactions from a QIF stream.
func ParseQIF(reader io.Reader) ([]*Transaction, error) {
	return NewDecoder(reader).Decode()
}
