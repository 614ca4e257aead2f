package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNeedAtLeastTwoPostings        = errors.New("need at least two postings")
	ErrNoEmptyAccountForExtraBalance = errors.New("unable to balance transaction: no empty account to place extra balance")
	ErrMoreThanOneEmptyAccountInTx   = errors.New("unable to balance transaction: more than one account empty")
	ErrEmptyAccountManyCurrencies    = errors.New("unable to balance transaction: more than one currency left for empty account")
	ErrNoPostings                    = errors.New("transaction has no postings")
	ErrPostingIndex                  = errors.New("posting index out of range")
	ErrIncompatibleLedger            = errors.New("ledgers differ in source or statement type")
)

// NewTransaction returns a transaction with a single posting on account.
func NewTransaction(date time.Time, title, account string, amount Amount) *Transaction {
	t := &Transaction{Date: date, Title: title}
	t.AppendPostings(Posting{Account: account, Amount: &amount})
	return t
}

// AppendPostings appends postings in order.
func (t *Transaction) AppendPostings(postings ...Posting) {
	t.Postings = append(t.Postings, postings...)
}

// PrimaryPosting returns the first posting, the one recorded by the source
// statement. It panics when the transaction has no postings.
func (t *Transaction) PrimaryPosting() Posting {
	if len(t.Postings) == 0 {
		panic(fmt.Errorf("%s %q: %w", t.Date.Format(time.DateOnly), t.Title, ErrNoPostings))
	}
	return t.Postings[0]
}

// AddPostingAmount adds amount to the posting at index. A currency mismatch
// leaves the posting untouched.
func (t *Transaction) AddPostingAmount(index int, amount Amount) error {
	if index < 0 || index >= len(t.Postings) {
		return fmt.Errorf("%d: %w", index, ErrPostingIndex)
	}
	p := &t.Postings[index]
	if p.Amount == nil {
		p.Amount = &amount
		return nil
	}
	sum, err := p.Amount.Add(amount)
	if err != nil {
		return err
	}
	p.Amount = &sum
	return nil
}

// InsertComment annotates the transaction and returns the key used.
func (t *Transaction) InsertComment(key, value string, onExist OnExistence) string {
	return t.Comments.Insert(key, value, onExist)
}

// Merge folds src into t: its comments are inserted according to onExist and,
// when mergePostings is set, its postings are appended.
func (t *Transaction) Merge(src *Transaction, onExist OnExistence, mergePostings bool) {
	for _, key := range src.Comments.keys {
		t.Comments.Insert(key, src.Comments.values[key], onExist)
	}
	if mergePostings {
		for _, p := range src.Postings {
			p.Comments = p.Comments.Clone()
			t.Postings = append(t.Postings, p)
		}
	}
	if t.Flag == FlagOK {
		t.Flag = FlagMerged
	}
}

// Contains reports whether keyword appears in the title or any comment of the
// transaction or its postings.
func (t *Transaction) Contains(keyword string) bool {
	if keyword == "" {
		return false
	}
	if strings.Contains(t.Title, keyword) {
		return true
	}
	for _, v := range t.Comments.values {
		if strings.Contains(v, keyword) {
			return true
		}
	}
	for _, p := range t.Postings {
		for _, v := range p.Comments.values {
			if strings.Contains(v, keyword) {
				return true
			}
		}
	}
	return false
}

// Equal reports whether both postings hit the same account with the same
// amount, price and comments.
func (p Posting) Equal(o Posting) bool {
	return p.Account == o.Account &&
		amountPtrEqual(p.Amount, o.Amount) &&
		amountPtrEqual(p.Price, o.Price) &&
		p.Comments.Equal(&o.Comments)
}

// weight is what the posting contributes to the transaction balance.
func (p Posting) weight() Amount {
	if p.Price != nil {
		return Amount{Quantity: p.Amount.Quantity.Mul(p.Price.Quantity), Currency: p.Price.Currency}
	}
	return *p.Amount
}

// IsBalanced returns nil if the transaction is balanced to 0, otherwise an error.
// A single posting without an amount receives the balancing amount.
func (t *Transaction) IsBalanced() error {
	if len(t.Postings) < 2 {
		return ErrNeedAtLeastTwoPostings
	}

	balances := make(map[string]decimal.Decimal)
	var currencies []string
	var numEmpty int
	var emptyIdx int

	for i, p := range t.Postings {
		if p.Amount == nil {
			numEmpty++
			emptyIdx = i
			continue
		}
		w := p.weight()
		if _, ok := balances[w.Currency]; !ok {
			currencies = append(currencies, w.Currency)
		}
		balances[w.Currency] = balances[w.Currency].Add(w.Quantity)
	}

	var remaining []Amount
	for _, cur := range currencies {
		if !balances[cur].IsZero() {
			remaining = append(remaining, Amount{Quantity: balances[cur], Currency: cur})
		}
	}
	if len(remaining) == 0 {
		return nil
	}

	switch numEmpty {
	case 0:
		return ErrNoEmptyAccountForExtraBalance
	case 1:
		if len(remaining) > 1 {
			return ErrEmptyAccountManyCurrencies
		}
		// If there is a single empty account, then it is obvious where to
		// place the remaining balance.
		amt := remaining[0].Neg()
		t.Postings[emptyIdx].Amount = &amt
		return nil
	default:
		return ErrMoreThanOneEmptyAccountInTx
	}
}

// Len returns the number of transactions.
func (l *Ledger) Len() int {
	return len(l.Transactions)
}

// Append adds transactions to the end of the ledger.
func (l *Ledger) Append(ts ...*Transaction) {
	l.Transactions = append(l.Transactions, ts...)
}

// Combine appends the transactions of other. Only ledgers of the same
// source and statement type can be combined.
func (l *Ledger) Combine(other *Ledger) error {
	if l.Source != other.Source || l.Type != other.Type {
		return fmt.Errorf("%s/%s and %s/%s: %w", l.Source, l.Type, other.Source, other.Type, ErrIncompatibleLedger)
	}
	l.Transactions = append(l.Transactions, other.Transactions...)
	return nil
}
