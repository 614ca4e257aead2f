package statement

import (
	"fmt"
	"io"
	"strings"

	"github.com/stmtrecon/ledger"
	"github.com/stmtrecon/ledger/ledger/qif"
)

// US style, as exported by Quicken
const qifDateLayout = "01/02/2006"

// QIFParser reads Quicken Interchange Format statements. Split lines only
// annotate the transaction; the total amount is what the source recorded.
type QIFParser struct {
	base
}

func (p *QIFParser) Parse(path string, r io.Reader) (*ledger.Ledger, error) {
	l, account, err := p.ledgerFor(path)
	if err != nil {
		return nil, err
	}

	entries, err := qif.ParseQIF(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if p.src.DateLayout == "" {
		p.dateLayout = qifDateLayout
	}

	for _, e := range entries {
		t, err := p.parseEntry(e, account)
		if err != nil {
			p.skip(path, e.Line, err)
			continue
		}
		l.Append(t)
	}

	p.logger.Debug("parsed statement", "file", path, "type", l.Type, "transactions", l.Len())
	return l, nil
}

func (p *QIFParser) parseEntry(e *qif.Transaction, account string) (*ledger.Transaction, error) {
	date, err := p.parseDate(e.Date)
	if err != nil {
		return nil, err
	}
	q, ok, err := parseQuantity(e.Amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no amount: %w", ErrMalformedRecord)
	}

	title, memo := e.Payee, e.Memo
	if title == "" {
		title, memo = strings.ReplaceAll(memo, "\n", " "), ""
	}
	t := ledger.NewTransaction(date, title, account, p.amount(q, ""))
	p.note(t, strings.ReplaceAll(memo, "\n", " "))
	if e.Num != "" {
		t.InsertComment("num", e.Num, ledger.Rename)
	}
	if e.Category != "" {
		t.InsertComment("category", e.Category, ledger.Rename)
	}
	for _, s := range e.Splits {
		t.InsertComment("split", strings.TrimSpace(s.Category+" "+s.Amount+" "+s.Memo), ledger.Rename)
	}
	return t, nil
}
