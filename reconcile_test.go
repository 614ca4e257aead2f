package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
)

func transfer(date, from, to string, amount int64) *Transaction {
	t := NewTransaction(day(date), "Transfer", from, *twd(-amount))
	t.AppendPostings(Posting{Account: to, Amount: twd(amount)})
	return t
}

func TestHashes(t *testing.T) {
	a := tx("2024-01-10", "X", 100)
	b := tx("2024-01-11", "X", 100)
	b.Postings[0].Amount = &Amount{Quantity: decimal.RequireFromString("100.00"), Currency: "TWD"}

	if HashTitleAndAmount(a, 1) != HashTitleAndAmount(b, 0) {
		t.Error("expected shifted title hash to match")
	}
	if HashTitleAndAmount(a, 0) == HashTitleAndAmount(b, 0) {
		t.Error("expected different dates to differ")
	}
	b.Title = "Y"
	if HashDateAndAmount(a, 1) != HashDateAndAmount(b, 0) {
		t.Error("expected date and amount hash to ignore the title")
	}

	out := transfer("2024-01-10", "Assets:A", "Assets:B", 500)
	in := NewTransaction(day("2024-01-10"), "Incoming", "Assets:B", *twd(500))
	in.AppendPostings(Posting{Account: "Assets:A", Amount: twd(-500)})
	if HashPostings(out, 0) != HashPostings(in, 0) {
		t.Error("expected posting hash to ignore posting order and title")
	}
	in.Postings[1].Account = "Assets:C"
	if HashPostings(out, 0) == HashPostings(in, 0) {
		t.Error("expected posting hash to depend on accounts")
	}
}

func TestDedupByTitleAndAmount(t *testing.T) {
	custom := newLedger("custom", StatementCustom, tx("2024-01-10", "Rent", -20000))
	ignored := newLedger("ignored", StatementIgnored, tx("2024-01-15", "Fee", -15))
	bank := newLedger("esun", StatementBank,
		tx("2024-01-10", "Rent", -20000),
		tx("2024-01-12", "Salary", 50000),
		tx("2024-01-15", "Fee", -15),
		tx("2024-01-15", "Fee", -16),
	)

	DedupByTitleAndAmount([]*Ledger{custom, ignored, bank}, 0)

	if got := titles(bank); len(got) != 2 || got[0] != "Salary" || got[1] != "Fee" {
		t.Errorf("unexpected survivors %v", got)
	}
	if custom.Len() != 1 || ignored.Len() != 1 {
		t.Error("curated ledgers modified")
	}
}

func TestDedupBankTransfer(t *testing.T) {
	a := newLedger("esun", StatementBank, transfer("2024-01-10", "Assets:ESun", "Assets:Cathay", 500))
	b := newLedger("cathay", StatementBank, transfer("2024-01-11", "Assets:Cathay", "Assets:ESun", -500))
	card := newLedger("cathay", StatementCreditCard, transfer("2024-01-10", "Assets:ESun", "Assets:Cathay", 500))

	ledgers := []*Ledger{a, card, b}
	DedupBankTransfer(ledgers, 1, false)

	if a.Len() != 1 || b.Len() != 0 {
		t.Fatalf("expected transfer collapsed into the first bank, got %d and %d", a.Len(), b.Len())
	}
	if card.Len() != 1 {
		t.Errorf("non bank ledger touched")
	}
	if got := a.Transactions[0].PrimaryPosting().Account; got != "Assets:ESun" {
		t.Errorf("expected first bank's transaction kept, got primary account %s", got)
	}

	// running it again changes nothing
	DedupBankTransfer(ledgers, 1, false)
	if a.Len() != 1 || b.Len() != 0 || card.Len() != 1 {
		t.Errorf("second run changed ledgers: %d, %d, %d", a.Len(), b.Len(), card.Len())
	}
}

func TestDedupBankTransferOutsideTolerance(t *testing.T) {
	a := newLedger("esun", StatementBank, transfer("2024-01-10", "Assets:ESun", "Assets:Cathay", 500))
	b := newLedger("cathay", StatementBank, transfer("2024-01-12", "Assets:Cathay", "Assets:ESun", -500))

	DedupBankTransfer([]*Ledger{a, b}, 1, false)

	if a.Len() != 1 || b.Len() != 1 {
		t.Errorf("expected both kept, got %d and %d", a.Len(), b.Len())
	}
}

// A bank file listing the same transfer twice holds two real transfers.
func TestDedupBankTransferRepeatedInOneFile(t *testing.T) {
	a := newLedger("esun", StatementBank,
		transfer("2024-01-10", "Assets:ESun", "Assets:Cathay", 500),
		transfer("2024-01-10", "Assets:ESun", "Assets:Cathay", 500),
	)
	b := newLedger("cathay", StatementBank)

	for _, ignoreSameSource := range []bool{false, true} {
		DedupBankTransfer([]*Ledger{a, b}, 1, ignoreSameSource)
		if a.Len() != 2 {
			t.Errorf("ignoreSameSource=%v: expected repeated transfer kept, got %d", ignoreSameSource, a.Len())
		}
	}
}

// Both sides of a transfer between two accounts of one bank are listed in
// statements sharing a source.
func TestDedupBankTransferSameSource(t *testing.T) {
	build := func() []*Ledger {
		return []*Ledger{
			newLedger("esun", StatementBank, transfer("2024-01-10", "Assets:ESun:Checking", "Assets:ESun:Savings", 500)),
			newLedger("esun", StatementBank, transfer("2024-01-10", "Assets:ESun:Savings", "Assets:ESun:Checking", -500)),
		}
	}

	ledgers := build()
	DedupBankTransfer(ledgers, 1, false)
	if ledgers[0].Len() != 1 || ledgers[1].Len() != 0 {
		t.Errorf("expected same source transfer collapsed, got %d and %d", ledgers[0].Len(), ledgers[1].Len())
	}

	ledgers = build()
	DedupBankTransfer(ledgers, 1, true)
	if ledgers[0].Len() != 1 || ledgers[1].Len() != 1 {
		t.Errorf("expected same source transfer kept, got %d and %d", ledgers[0].Len(), ledgers[1].Len())
	}
}

func TestMergeSameDateAmount(t *testing.T) {
	for _, mergePostings := range []bool{false, true} {
		receipt := NewTransaction(day("2024-01-10"), "Lunch set", "Liabilities:Card", *twd(-120))
		receipt.InsertComment("item", "noodles", Replace)
		receipt.AppendPostings(Posting{Account: "Expenses:Food", Amount: twd(120)})

		charge := NewTransaction(day("2024-01-11"), "RESTAURANT 123", "Liabilities:Card", *twd(-120))
		charge.InsertComment("item", "card charge", Replace)
		other := NewTransaction(day("2024-01-11"), "MRT", "Liabilities:Card", *twd(-30))

		receipts := newLedger("invoice", StatementReceipt, receipt)
		cards := newLedger("cathay", StatementCreditCard, charge, other)

		MergeSameDateAmount([]*Ledger{receipts, cards}, 3, mergePostings)

		if cards.Len() != 1 || cards.Transactions[0] != other {
			t.Fatalf("mergePostings=%v: expected charge merged away, got %v", mergePostings, titles(cards))
		}
		if receipt.Title != "Lunch set" || receipt.Flag != FlagMerged {
			t.Errorf("unexpected receipt %q flag %s", receipt.Title, receipt.Flag)
		}
		if v, _ := receipt.Comments.Get("item"); v != "noodles" {
			t.Errorf("receipt comment overwritten: %q", v)
		}
		if v, _ := receipt.Comments.Get(renameKey("item")); v != "card charge" {
			t.Errorf("charge comment lost: %q", v)
		}

		wantPostings := 2
		if mergePostings {
			wantPostings = 3
		}
		if len(receipt.Postings) != wantPostings {
			t.Errorf("mergePostings=%v: expected %d postings, got %d", mergePostings, wantPostings, len(receipt.Postings))
		}
	}
}
