// Package statement turns statement files of banks, card issuers and
// receipt services into ledgers holding the source side posting of each
// transaction.
package statement

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	date "github.com/joyt/godate"
	"github.com/shopspring/decimal"
	"github.com/stmtrecon/ledger"
	"github.com/stmtrecon/ledger/ledger/config"
)

var (
	ErrUnsupportedStatementType = errors.New("unsupported statement type")
	ErrMalformedRecord          = errors.New("malformed record")
	ErrUnknownFormat            = errors.New("unknown statement format")
)

// Parser reads the statements of one source.
type Parser interface {
	// Source is the name matched against statement paths.
	Source() string
	// Accounts maps each supported statement type to its source account.
	Accounts() map[ledger.StatementType]string
	Parse(path string, r io.Reader) (*ledger.Ledger, error)
}

// path fragments identifying a statement type, checked in order
var typeFragments = []struct {
	fragment string
	typ      ledger.StatementType
}{
	{"bank", ledger.StatementBank},
	{"card", ledger.StatementCreditCard},
	{"receipt", ledger.StatementReceipt},
	{"stock", ledger.StatementStock},
}

// TypeFromPath detects the statement type from the directory or file names
// of path, e.g. bank/esun/202401.csv.
func TypeFromPath(path string) (ledger.StatementType, error) {
	p := strings.ToLower(filepath.ToSlash(path))
	for _, tf := range typeFragments {
		if strings.Contains(p, tf.fragment) {
			return tf.typ, nil
		}
	}
	return ledger.StatementInvalid, fmt.Errorf("%s: %w", path, ErrUnsupportedStatementType)
}

// NewParser returns the parser for the format of src.
func NewParser(src config.Source, logger *slog.Logger) (Parser, error) {
	b, err := newBase(src, logger)
	if err != nil {
		return nil, err
	}
	switch src.Format {
	case "", "csv":
		return &CSVParser{base: b}, nil
	case "qif":
		return &QIFParser{base: b}, nil
	case "iif":
		return &IIFParser{base: b}, nil
	default:
		return nil, fmt.Errorf("%s: %q: %w", src.Name, src.Format, ErrUnknownFormat)
	}
}

// base holds what every parser needs from its source configuration.
type base struct {
	src      config.Source
	accounts map[ledger.StatementType]string
	logger   *slog.Logger

	dateLayout string
}

func newBase(src config.Source, logger *slog.Logger) (base, error) {
	accounts := make(map[ledger.StatementType]string, len(src.Accounts))
	for name, account := range src.Accounts {
		typ, err := ledger.ParseStatementType(name)
		if err != nil {
			return base{}, fmt.Errorf("source %s: %w", src.Name, err)
		}
		accounts[typ] = account
	}
	if src.Currency == "" {
		src.Currency = config.DefaultCurrency
	}
	if src.Delimiter == "" {
		src.Delimiter = ","
	}
	layout := src.DateLayout
	if layout == "" {
		layout = time.DateOnly
	}
	return base{
		src:        src,
		accounts:   accounts,
		logger:     logger.With("source", src.Name),
		dateLayout: layout,
	}, nil
}

func (b *base) Source() string {
	return b.src.Name
}

func (b *base) Accounts() map[ledger.StatementType]string {
	return b.accounts
}

// ledgerFor returns an empty ledger for the statement at path along with the
// account of its source side postings.
func (b *base) ledgerFor(path string) (*ledger.Ledger, string, error) {
	typ, err := TypeFromPath(path)
	if err != nil {
		return nil, "", err
	}
	account, ok := b.accounts[typ]
	if !ok {
		return nil, "", fmt.Errorf("%s does not provide %s statements: %w", b.src.Name, typ, ErrUnsupportedStatementType)
	}
	return &ledger.Ledger{Source: b.src.Name, Type: typ}, account, nil
}

// skip logs a record that can not be turned into a transaction.
func (b *base) skip(path string, row int, err error) {
	b.logger.Warn("skipping record", "file", path, "row", row, "error", err)
}

// parseDate uses the configured layout. Without one it tries the layout of
// the previous date before guessing.
func (b *base) parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date: %w", ErrMalformedRecord)
	}
	t, err := time.Parse(b.dateLayout, s)
	if err == nil {
		return t, nil
	}
	if b.src.DateLayout != "" {
		return time.Time{}, fmt.Errorf("date %q: %v: %w", s, err, ErrMalformedRecord)
	}
	t, layout, err := date.ParseAndGetLayout(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %v: %w", s, err, ErrMalformedRecord)
	}
	b.dateLayout = layout
	return t, nil
}

var amountCleaner = strings.NewReplacer(",", "", " ", "", "\u00a0", "", "NT$", "", "$", "")

// parseQuantity reads numbers as printed on statements: 1,234.50, $12,
// (12.00) for negatives.
func parseQuantity(s string) (decimal.Decimal, bool, error) {
	s = amountCleaner.Replace(strings.TrimSpace(s))
	if s == "" || s == "-" {
		return decimal.Zero, false, nil
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	q, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("amount %q: %w", s, ErrMalformedRecord)
	}
	if neg {
		q = q.Neg()
	}
	return q, true, nil
}

// amount turns a statement quantity into the source account's amount.
func (b *base) amount(q decimal.Decimal, currency string) ledger.Amount {
	if b.src.Negate {
		q = q.Neg()
	}
	if currency == "" {
		currency = b.src.Currency
	}
	return ledger.NewAmount(q, currency)
}

// note stores a statement remark on t, keyed by the source name.
func (b *base) note(t *ledger.Transaction, value string) {
	if value = strings.TrimSpace(value); value != "" {
		t.InsertComment(b.src.Name, value, ledger.Rename)
	}
}
