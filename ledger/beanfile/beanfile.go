// Package beanfile writes ledgers as beancount text that ledger.ParseLedger
// reads back.
package beanfile

import (
	"bufio"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/stmtrecon/ledger"
)

const (
	DefaultColumns = 80

	newLine     = "\n"
	indent      = "  "
	metaIndent  = "    "
	minSpaceGap = 2
)

var spaceStr = strings.Repeat(" ", DefaultColumns)

func spaces(n int) string {
	if n > len(spaceStr) {
		return strings.Repeat(" ", n)
	}
	return spaceStr[:n]
}

// WriteTransaction writes a transaction with posting amounts right aligned
// to the given column width. Postings keep their order.
func WriteTransaction(w io.StringWriter, trans *ledger.Transaction, columns int) {
	w.WriteString(trans.Date.Format(time.DateOnly))
	w.WriteString(" ")
	w.WriteString(trans.Flag.String())
	w.WriteString(" ")
	w.WriteString(strconv.Quote(trans.Title))
	w.WriteString(newLine)
	writeMeta(w, indent, &trans.Comments)

	for _, p := range trans.Postings {
		w.WriteString(indent)
		w.WriteString(p.Account)
		if p.Amount != nil {
			amt := p.Amount.String()
			gap := columns - len(indent) - utf8.RuneCountInString(p.Account) - utf8.RuneCountInString(amt)
			w.WriteString(spaces(max(gap, minSpaceGap)))
			w.WriteString(amt)
			if p.Price != nil {
				w.WriteString(" @ ")
				w.WriteString(p.Price.String())
			}
		}
		w.WriteString(newLine)
		writeMeta(w, metaIndent, &p.Comments)
	}
	w.WriteString(newLine)
}

func writeMeta(w io.StringWriter, prefix string, c *ledger.Comments) {
	for _, key := range c.Keys() {
		value, _ := c.Get(key)
		w.WriteString(prefix)
		w.WriteString(key)
		w.WriteString(": ")
		w.WriteString(strconv.Quote(value))
		w.WriteString(newLine)
	}
}

// WriteLedger writes the transactions of every ledger in order.
func WriteLedger(w io.Writer, columns int, ledgers ...*ledger.Ledger) error {
	buf := bufio.NewWriter(w)
	for _, l := range ledgers {
		for _, trans := range l.Transactions {
			WriteTransaction(buf, trans, columns)
		}
	}
	return buf.Flush()
}

// WriteAccounts writes one open directive per distinct account, sorted by
// name.
func WriteAccounts(w io.Writer, accounts []string, openDate time.Time) error {
	sorted := slices.Clone(accounts)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	buf := bufio.NewWriter(w)
	date := openDate.Format(time.DateOnly)
	for _, account := range sorted {
		if account == "" {
			continue
		}
		buf.WriteString(date)
		buf.WriteString(" open ")
		buf.WriteString(account)
		buf.WriteString(newLine)
	}
	return buf.Flush()
}
