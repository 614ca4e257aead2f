package ledger

import (
	"fmt"
	"strings"
	"time"
)

// StatementType tags the kind of statement a Ledger was recovered from.
type StatementType string

const (
	StatementInvalid    StatementType = "invalid"
	StatementIgnored    StatementType = "ignored"
	StatementCustom     StatementType = "custom"
	StatementBank       StatementType = "bank"
	StatementCreditCard StatementType = "creditcard"
	StatementReceipt    StatementType = "receipt"
	StatementStock      StatementType = "stock"
)

var statementTypes = []StatementType{
	StatementInvalid,
	StatementIgnored,
	StatementCustom,
	StatementBank,
	StatementCreditCard,
	StatementReceipt,
	StatementStock,
}

// ParseStatementType returns the StatementType named by s. "card" is accepted
// as an alias of creditcard.
func ParseStatementType(s string) (StatementType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "card" {
		return StatementCreditCard, nil
	}
	for _, typ := range statementTypes {
		if string(typ) == s {
			return typ, nil
		}
	}
	return StatementInvalid, fmt.Errorf("unknown statement type %q", s)
}

// Flag marks how a transaction came to be.
type Flag int

const (
	FlagOK Flag = iota
	FlagTransfer
	FlagConversion
	FlagMerged
)

// String returns the single character used for the flag in ledger files.
func (f Flag) String() string {
	switch f {
	case FlagTransfer:
		return "T"
	case FlagConversion:
		return "C"
	case FlagMerged:
		return "M"
	default:
		return "*"
	}
}

// ParseFlag maps a ledger file flag back to a Flag. Unknown flags are FlagOK.
func ParseFlag(s string) Flag {
	switch s {
	case "T":
		return FlagTransfer
	case "C":
		return FlagConversion
	case "M":
		return FlagMerged
	default:
		return FlagOK
	}
}

// Posting is one leg of a transaction. A nil Amount is inferred later,
// either by balancing or by whatever reads the ledger file.
type Posting struct {
	Account  string
	Amount   *Amount
	Comments Comments

	// Per unit price written with @ notation
	Price *Amount
}

// Transaction is a dated, titled list of postings. Parsers produce
// transactions holding only the source side posting; the classifier adds
// the offsetting one.
type Transaction struct {
	Date     time.Time
	Title    string
	Postings []Posting
	Comments Comments
	Flag     Flag
}

// Ledger holds the transactions recovered from one source and statement type.
type Ledger struct {
	Source       string
	Type         StatementType
	Transactions []*Transaction
}
