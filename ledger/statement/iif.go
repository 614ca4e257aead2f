package statement

import (
	"fmt"
	"io"

	"github.com/stmtrecon/ledger"
	"github.com/stmtrecon/ledger/ledger/iif"
)

// IIFParser reads QuickBooks IIF exports. The TRNS line is the source side
// posting; SPL lines become postings only with keep_splits.
type IIFParser struct {
	base
}

func (p *IIFParser) Parse(path string, r io.Reader) (*ledger.Ledger, error) {
	l, account, err := p.ledgerFor(path)
	if err != nil {
		return nil, err
	}

	entries, err := iif.ParseIIF(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	for i, e := range entries {
		if e.Tr.Date.IsZero() {
			p.skip(path, i+1, fmt.Errorf("no date: %w", ErrMalformedRecord))
			continue
		}

		title := e.Tr.Name
		if title == "" {
			title = e.Tr.Memo
		}
		t := ledger.NewTransaction(e.Tr.Date, title, account, p.amount(e.Tr.Amount, ""))
		if e.Tr.Name != "" {
			p.note(t, e.Tr.Memo)
		}
		if e.Tr.DocNum != "" {
			t.InsertComment("docnum", e.Tr.DocNum, ledger.Rename)
		}
		if p.src.KeepSplits {
			for _, s := range e.Splits {
				amt := p.amount(s.Amount, "")
				t.AppendPostings(ledger.Posting{Account: s.Account, Amount: &amt})
			}
		}
		l.Append(t)
	}

	p.logger.Debug("parsed statement", "file", path, "type", l.Type, "transactions", l.Len())
	return l, nil
}
