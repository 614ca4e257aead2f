package ledger

import (
	"slices"
	"strings"
	"time"
)

const keySep = "\x1f"

func shiftedDate(t *Transaction, dayOffset int) string {
	return t.Date.AddDate(0, 0, dayOffset).Format(time.DateOnly)
}

func amountKey(a *Amount) string {
	if a == nil {
		return "-"
	}
	return a.String()
}

// HashTitleAndAmount keys a transaction by date, primary amount and title.
func HashTitleAndAmount(t *Transaction, dayOffset int) Key {
	p := t.PrimaryPosting()
	return Key(shiftedDate(t, dayOffset) + keySep + amountKey(p.Amount) + keySep + t.Title)
}

// HashDateAndAmount keys a transaction by date and primary amount.
func HashDateAndAmount(t *Transaction, dayOffset int) Key {
	p := t.PrimaryPosting()
	return Key(shiftedDate(t, dayOffset) + keySep + amountKey(p.Amount))
}

// HashPostings keys a transaction by date and the set of account and amount
// pairs of all its postings, regardless of posting order.
func HashPostings(t *Transaction, dayOffset int) Key {
	pairs := make([]string, 0, len(t.Postings))
	for _, p := range t.Postings {
		pairs = append(pairs, p.Account+" "+amountKey(p.Amount))
	}
	slices.Sort(pairs)
	pairs = slices.Compact(pairs)
	return Key(shiftedDate(t, dayOffset) + keySep + strings.Join(pairs, keySep))
}

// SameFirstPosting reports whether both transactions start with the same
// posting, i.e. were recorded from the same side.
func SameFirstPosting(existing, candidate *Transaction) bool {
	return existing.PrimaryPosting().Equal(candidate.PrimaryPosting())
}

// DedupByTitleAndAmount removes transactions with the same title and amount
// as one in an earlier ledger within toleranceDays. Ledgers on the left take
// priority, so curated ledgers go first.
func DedupByTitleAndAmount(ledgers []*Ledger, toleranceDays int) {
	Dedup(ledgers, HashTitleAndAmount, toleranceDays, DefaultOptions())
}

// DedupBankTransfer collapses a transfer that two bank ledgers each recorded,
// postings in opposite order, into the first one seen. Transactions starting
// with the same posting are never collapsed, so a bank repeating a
// transfer is kept twice.
func DedupBankTransfer(ledgers []*Ledger, toleranceDays int, ignoreSameSource bool) {
	Dedup(ledgers, HashPostings, toleranceDays, Options{
		IgnoreSameSource: ignoreSameSource,
		RestrictToTypes:  []StatementType{StatementBank},
		DiffHook:         SameFirstPosting,
	})
}

// MergeSameDateAmount merges transactions sharing date and amount into the
// earliest one, e.g. a receipt and the card charge paying for it.
func MergeSameDateAmount(ledgers []*Ledger, toleranceDays int, mergePostings bool) {
	Dedup(ledgers, HashDateAndAmount, toleranceDays, Options{
		IgnoreSameSource: true,
		MergeOnDuplicate: true,
		MergePostings:    mergePostings,
	})
}
