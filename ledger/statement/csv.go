package statement

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stmtrecon/ledger"
)

// CSVParser reads delimited statements with a header row.
type CSVParser struct {
	base
}

type csvColumns struct {
	date, title, amount, withdraw, deposit, note, currency int
}

func (p *CSVParser) Parse(path string, r io.Reader) (*ledger.Ledger, error) {
	l, account, err := p.ledgerFor(path)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(r)
	csvReader.Comma, _ = utf8.DecodeRuneInString(p.src.Delimiter)
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true
	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if p.src.SkipRows >= len(records) {
		return l, nil
	}
	header := records[p.src.SkipRows]
	cols, err := p.findColumns(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var prev *ledger.Transaction
	for i, record := range records[p.src.SkipRows+1:] {
		row := p.src.SkipRows + i + 2
		if blankRecord(record) {
			continue
		}
		t, err := p.parseRecord(record, cols, account)
		if err != nil {
			p.skip(path, row, err)
			continue
		}

		if p.src.MergeRows && prev != nil && prev.Date.Equal(t.Date) && prev.Title == t.Title {
			if err := prev.AddPostingAmount(0, *t.PrimaryPosting().Amount); err != nil {
				p.skip(path, row, err)
				continue
			}
			for _, key := range t.Comments.Keys() {
				v, _ := t.Comments.Get(key)
				prev.InsertComment(key, v, ledger.Rename)
			}
			continue
		}
		l.Append(t)
		prev = t
	}

	p.logger.Debug("parsed statement", "file", path, "type", l.Type, "transactions", l.Len())
	return l, nil
}

func (p *CSVParser) parseRecord(record []string, cols csvColumns, account string) (*ledger.Transaction, error) {
	date, err := p.parseDate(field(record, cols.date))
	if err != nil {
		return nil, err
	}

	q, ok, err := p.quantity(record, cols)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no amount: %w", ErrMalformedRecord)
	}

	t := ledger.NewTransaction(date, strings.TrimSpace(field(record, cols.title)), account,
		p.amount(q, strings.TrimSpace(field(record, cols.currency))))
	p.note(t, field(record, cols.note))
	return t, nil
}

// quantity reads the amount column, or the withdraw and deposit pair.
// Withdrawals are negative.
func (p *CSVParser) quantity(record []string, cols csvColumns) (decimal.Decimal, bool, error) {
	if cols.amount >= 0 {
		return parseQuantity(field(record, cols.amount))
	}
	w, wok, err := parseQuantity(field(record, cols.withdraw))
	if err != nil {
		return decimal.Zero, false, err
	}
	d, dok, err := parseQuantity(field(record, cols.deposit))
	if err != nil {
		return decimal.Zero, false, err
	}
	switch {
	case wok && !w.IsZero():
		return w.Neg(), true, nil
	case dok:
		return d, true, nil
	case wok:
		return w, true, nil
	}
	return decimal.Zero, false, nil
}

var errMissingColumns = errors.New("unable to find columns required from header field names")

// findColumns uses the configured column names, guessing the ones left
// empty from the header.
func (p *CSVParser) findColumns(header []string) (csvColumns, error) {
	cols := csvColumns{-1, -1, -1, -1, -1, -1, -1}
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	lookup := func(name string) int {
		name = strings.ToLower(strings.TrimSpace(name))
		for i, n := range names {
			if n == name {
				return i
			}
		}
		return -1
	}

	c := p.src.Columns
	for _, m := range []struct {
		configured string
		dst        *int
	}{
		{c.Date, &cols.date},
		{c.Title, &cols.title},
		{c.Amount, &cols.amount},
		{c.Withdraw, &cols.withdraw},
		{c.Deposit, &cols.deposit},
		{c.Note, &cols.note},
		{c.Currency, &cols.currency},
	} {
		if m.configured == "" {
			continue
		}
		if *m.dst = lookup(m.configured); *m.dst < 0 {
			return cols, fmt.Errorf("column %q not in header: %w", m.configured, errMissingColumns)
		}
	}

	for i, name := range names {
		switch {
		case cols.date < 0 && strings.Contains(name, "date"):
			cols.date = i
		case cols.title < 0 && (strings.Contains(name, "description") || strings.Contains(name, "payee")):
			cols.title = i
		case cols.amount < 0 && cols.withdraw < 0 && (strings.Contains(name, "amount") || strings.Contains(name, "expense")):
			cols.amount = i
		case cols.note < 0 && (strings.Contains(name, "note") || strings.Contains(name, "comment")):
			cols.note = i
		case cols.currency < 0 && strings.Contains(name, "currency"):
			cols.currency = i
		}
	}

	if cols.date < 0 || cols.title < 0 || (cols.amount < 0 && (cols.withdraw < 0 || cols.deposit < 0)) {
		return cols, errMissingColumns
	}
	return cols, nil
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

func blankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
