package statement

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stmtrecon/ledger"
	"github.com/stmtrecon/ledger/ledger/config"
	"github.com/stmtrecon/ledger/ledger/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func esunSource() config.Source {
	return config.Source{
		Name:       "esun",
		Format:     "csv",
		Delimiter:  ",",
		DateLayout: "2006/01/02",
		Currency:   "TWD",
		Accounts:   map[string]string{"bank": "Assets:Bank:ESun"},
		Columns: config.Columns{
			Date:     "交易日期",
			Title:    "摘要",
			Withdraw: "支出",
			Deposit:  "存入",
			Note:     "備註",
		},
	}
}

const esunCSV = `交易日期,摘要,支出,存入,餘額,備註
2024/01/05,ATM withdrawal,"1,000",,"9,000",
2024/01/06,Salary,,"50,000","59,000",January
,Broken,10,,,
2024/01/07,No amount,,,,

2024/01/08,Transfer to Cathay,500,,"58,500",rent
`

func newTestParser(t *testing.T, src config.Source, logs *bytes.Buffer) Parser {
	t.Helper()
	p, err := NewParser(src, logging.New(logs, "debug"))
	require.NoError(t, err)
	return p
}

func mustDate(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestTypeFromPath(t *testing.T) {
	for path, want := range map[string]ledger.StatementType{
		"bank/esun/202401.csv":           ledger.StatementBank,
		"creditcard/cathay/2024.csv":     ledger.StatementCreditCard,
		"Card/Cathay.csv":                ledger.StatementCreditCard,
		"receipt/invoice/202401.csv":     ledger.StatementReceipt,
		"stock/schwab/2024.qif":          ledger.StatementStock,
		filepath.Join("bank", "a", "b"): ledger.StatementBank,
	} {
		got, err := TypeFromPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := TypeFromPath("misc/esun.csv")
	assert.ErrorIs(t, err, ErrUnsupportedStatementType)
}

func TestCSVParserWithdrawDeposit(t *testing.T) {
	var logs bytes.Buffer
	p := newTestParser(t, esunSource(), &logs)

	l, err := p.Parse("bank/esun/202401.csv", strings.NewReader(esunCSV))
	require.NoError(t, err)

	assert.Equal(t, "esun", l.Source)
	assert.Equal(t, ledger.StatementBank, l.Type)
	require.Equal(t, 3, l.Len())

	first := l.Transactions[0]
	assert.Equal(t, mustDate("2024-01-05"), first.Date)
	assert.Equal(t, "ATM withdrawal", first.Title)
	require.Len(t, first.Postings, 1)
	assert.Equal(t, "Assets:Bank:ESun", first.Postings[0].Account)
	assert.Equal(t, "-1000 TWD", first.Postings[0].Amount.String())
	assert.Equal(t, 0, first.Comments.Len())

	salary := l.Transactions[1]
	assert.Equal(t, "50000 TWD", salary.Postings[0].Amount.String())
	note, ok := salary.Comments.Get("esun")
	assert.True(t, ok)
	assert.Equal(t, "January", note)

	assert.Equal(t, "Transfer to Cathay", l.Transactions[2].Title)

	assert.Contains(t, logs.String(), "skipping record")
	assert.Contains(t, logs.String(), "row=4")
	assert.Contains(t, logs.String(), "row=5")
}

func TestCSVParserSniffedHeader(t *testing.T) {
	src := config.Source{
		Name:     "cathay",
		Currency: "TWD",
		Negate:   true,
		Accounts: map[string]string{"creditcard": "Liabilities:CreditCard:Cathay"},
	}
	data := "Card statement\n" +
		"Transaction Date;Payee;Amount;Currency;Comment\n" +
		"2024-02-01;Coffee shop;120;;\n" +
		"2024-02-02;Amazon JP;(3,000);JPY;refund\n"
	src.Delimiter = ";"
	src.SkipRows = 1
	var logs bytes.Buffer
	p := newTestParser(t, src, &logs)

	l, err := p.Parse("card/cathay/202402.csv", strings.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 2, l.Len())

	assert.Equal(t, ledger.StatementCreditCard, l.Type)
	assert.Equal(t, "Coffee shop", l.Transactions[0].Title)
	assert.Equal(t, "-120 TWD", l.Transactions[0].Postings[0].Amount.String())
	assert.Equal(t, "3000 JPY", l.Transactions[1].Postings[0].Amount.String())
	note, _ := l.Transactions[1].Comments.Get("cathay")
	assert.Equal(t, "refund", note)
}

func TestCSVParserMissingColumns(t *testing.T) {
	var logs bytes.Buffer
	p := newTestParser(t, config.Source{
		Name:     "esun",
		Accounts: map[string]string{"bank": "Assets:Bank:ESun"},
	}, &logs)

	_, err := p.Parse("bank/esun/x.csv", strings.NewReader("when,what\n2024-01-01,x\n"))
	assert.ErrorIs(t, err, errMissingColumns)
}

func TestCSVParserMergeRows(t *testing.T) {
	src := config.Source{
		Name:     "invoice",
		Currency: "TWD",
		Negate:   true,
		Accounts: map[string]string{"receipt": "Liabilities:CreditCard:Cathay"},
		Columns:  config.Columns{Date: "date", Title: "store", Amount: "subtotal", Note: "item"},
	}
	src.MergeRows = true
	var logs bytes.Buffer
	p := newTestParser(t, src, &logs)

	data := `date,store,item,subtotal
2024-03-01,Bakery,bread,60
2024-03-01,Bakery,milk,45
2024-03-01,Cafe,latte,90
2024-03-02,Bakery,bread,60
`
	l, err := p.Parse("receipt/invoice/202403.csv", strings.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 3, l.Len())

	bakery := l.Transactions[0]
	assert.Equal(t, "-105 TWD", bakery.Postings[0].Amount.String())
	assert.Equal(t, 2, bakery.Comments.Len())
	item, _ := bakery.Comments.Get("invoice")
	assert.Equal(t, "bread", item)
}

func TestCSVParserUnsupportedType(t *testing.T) {
	var logs bytes.Buffer
	p := newTestParser(t, esunSource(), &logs)

	_, err := p.Parse("card/esun/202401.csv", strings.NewReader(esunCSV))
	assert.ErrorIs(t, err, ErrUnsupportedStatementType)
}

const paypalQIF = `!Type:Bank
D01/15/2024
T-25.00
N1001
PSpotify
MFamily plan
LEntertainment
^
D01/16/2024
T12.50
MRefund from
Mmarketplace
^
DNot a date
T1.00
PBroken
^
`

func TestQIFParser(t *testing.T) {
	var logs bytes.Buffer
	p := newTestParser(t, config.Source{
		Name:     "paypal",
		Format:   "qif",
		Currency: "USD",
		Accounts: map[string]string{"bank": "Assets:PayPal"},
	}, &logs)

	l, err := p.Parse("bank/paypal/2024.qif", strings.NewReader(paypalQIF))
	require.NoError(t, err)
	require.Equal(t, 2, l.Len())

	spotify := l.Transactions[0]
	assert.Equal(t, mustDate("2024-01-15"), spotify.Date)
	assert.Equal(t, "Spotify", spotify.Title)
	assert.Equal(t, "-25 USD", spotify.Postings[0].Amount.String())
	memo, _ := spotify.Comments.Get("paypal")
	assert.Equal(t, "Family plan", memo)
	num, _ := spotify.Comments.Get("num")
	assert.Equal(t, "1001", num)

	refund := l.Transactions[1]
	assert.Equal(t, "Refund from marketplace", refund.Title)
	assert.Equal(t, 0, refund.Comments.Len())

	assert.Contains(t, logs.String(), "row=14")
}

const depositIIF = "!TRNS\tTRNSID\tTRNSTYPE\tDATE\tACCNT\tNAME\tAMOUNT\tDOCNUM\tMEMO\n" +
	"!SPL\tSPLID\tTRNSTYPE\tDATE\tACCNT\tNAME\tAMOUNT\tDOCNUM\tMEMO\n" +
	"!ENDTRNS\n" +
	"TRNS\t1\tDEPOSIT\t7/1/2024\tChecking\tACME\t1500\t42\tInvoice 7\n" +
	"SPL\t2\tDEPOSIT\t7/1/2024\tIncome:Consulting\tACME\t-1200\t\t\n" +
	"SPL\t3\tDEPOSIT\t7/1/2024\tIncome:Expenses\tACME\t-300\t\t\n" +
	"ENDTRNS\n"

func TestIIFParser(t *testing.T) {
	for _, keepSplits := range []bool{false, true} {
		var logs bytes.Buffer
		p := newTestParser(t, config.Source{
			Name:       "quickbooks",
			Format:     "iif",
			Currency:   "USD",
			KeepSplits: keepSplits,
			Accounts:   map[string]string{"bank": "Assets:Bank:Checking"},
		}, &logs)

		l, err := p.Parse("bank/quickbooks/2024.iif", strings.NewReader(depositIIF))
		require.NoError(t, err)
		require.Equal(t, 1, l.Len())

		tr := l.Transactions[0]
		assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), tr.Date)
		assert.Equal(t, "ACME", tr.Title)
		assert.Equal(t, "1500 USD", tr.Postings[0].Amount.String())
		memo, _ := tr.Comments.Get("quickbooks")
		assert.Equal(t, "Invoice 7", memo)
		doc, _ := tr.Comments.Get("docnum")
		assert.Equal(t, "42", doc)

		if keepSplits {
			require.Len(t, tr.Postings, 3)
			assert.Equal(t, "Income:Consulting", tr.Postings[1].Account)
			assert.NoError(t, tr.IsBalanced())
		} else {
			assert.Len(t, tr.Postings, 1)
		}
	}
}

func TestNewParserUnknownFormat(t *testing.T) {
	_, err := NewParser(config.Source{Name: "x", Format: "ofx"}, logging.Discard())
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = NewParser(config.Source{Name: "x", Accounts: map[string]string{"loan": "Liabilities:Loan"}}, logging.Discard())
	assert.Error(t, err)
}

func writeStatement(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	data := []byte(content)
	if strings.HasSuffix(rel, ".br") {
		var buf bytes.Buffer
		w := brotli.NewWriter(&buf)
		_, err := w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
		data = buf.Bytes()
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestLoader(t *testing.T) {
	dir := t.TempDir()
	writeStatement(t, dir, "bank/esun/202401.csv", esunCSV)
	writeStatement(t, dir, "bank/esun/202402.csv.br", "交易日期,摘要,支出,存入,餘額,備註\n2024/02/01,Fee,15,,,\n")
	writeStatement(t, dir, "bank/paypal/2024.qif", paypalQIF)
	writeStatement(t, dir, "bank/esun/.~lock.202401.csv", "garbage")
	writeStatement(t, dir, "receipt/esun/202401.csv", esunCSV)
	writeStatement(t, dir, "bank/unknown/202401.csv", esunCSV)
	writeStatement(t, dir, "notes/esun.txt", "hello")

	var logs bytes.Buffer
	logger := logging.New(&logs, "debug")
	esun, err := NewParser(esunSource(), logger)
	require.NoError(t, err)
	paypal, err := NewParser(config.Source{
		Name:     "paypal",
		Format:   "qif",
		Currency: "USD",
		Accounts: map[string]string{"bank": "Assets:PayPal"},
	}, logger)
	require.NoError(t, err)

	loader := NewLoader(logger, esun, paypal)
	groups, err := loader.Load(dir)
	require.NoError(t, err)

	banks := groups[ledger.StatementBank]
	require.Len(t, banks, 2)
	assert.Equal(t, "esun", banks[0].Source)
	assert.Equal(t, 4, banks[0].Len())
	assert.Equal(t, "Fee", banks[0].Transactions[3].Title)
	assert.Equal(t, "paypal", banks[1].Source)
	assert.Equal(t, 2, banks[1].Len())

	assert.Empty(t, groups[ledger.StatementReceipt])
	assert.Equal(t, 6, groups.Len())
	assert.Len(t, groups.All(), 2)

	assert.Contains(t, logs.String(), "no parser for statement")
	assert.Contains(t, logs.String(), "skipping statement")
	assert.NotContains(t, logs.String(), "lock")

	assert.Equal(t, []string{"Assets:Bank:ESun", "Assets:PayPal"}, loader.Accounts())

	p, ok := loader.Parser("paypal")
	assert.True(t, ok)
	assert.Equal(t, "paypal", p.Source())
}

func TestLoaderPrefersLongestSourceName(t *testing.T) {
	short, err := NewParser(config.Source{Name: "sun", Accounts: map[string]string{"bank": "Assets:Sun"}}, logging.Discard())
	require.NoError(t, err)
	long, err := NewParser(config.Source{Name: "esun", Accounts: map[string]string{"bank": "Assets:ESun"}}, logging.Discard())
	require.NoError(t, err)

	loader := NewLoader(logging.Discard(), short, long)
	assert.Equal(t, long, loader.findParser("bank/esun/2024.csv"))
	assert.Equal(t, short, loader.findParser("bank/sun/2024.csv"))
	assert.Nil(t, loader.findParser("bank/cathay/2024.csv"))
}

func TestGroupsAllOrder(t *testing.T) {
	g := make(Groups)
	for _, l := range []*ledger.Ledger{
		{Source: "invoice", Type: ledger.StatementReceipt},
		{Source: "cathay", Type: ledger.StatementCreditCard},
		{Source: "esun", Type: ledger.StatementBank},
		{Source: "fubon", Type: ledger.StatementBank},
	} {
		require.NoError(t, g.add(l))
	}

	var got []string
	for _, l := range g.All() {
		got = append(got, l.Source)
	}
	assert.Equal(t, []string{"esun", "fubon", "cathay", "invoice"}, got)
}

func TestLoaderLoadFile(t *testing.T) {
	dir := t.TempDir()
	writeStatement(t, dir, "bank/202401.csv", esunCSV)

	esun, err := NewParser(esunSource(), logging.Discard())
	require.NoError(t, err)
	loader := NewLoader(logging.Discard(), esun)

	l, err := loader.LoadFile("esun", filepath.Join(dir, "bank", "202401.csv"))
	require.NoError(t, err)
	assert.Equal(t, ledger.StatementBank, l.Type)
	assert.Equal(t, 3, l.Len())

	_, err = loader.LoadFile("cathay", filepath.Join(dir, "bank", "202401.csv"))
	assert.Error(t, err)
}

func TestNoteKeyedBySourceName(t *testing.T) {
	src := esunSource()
	src.DisplayName = "E.Sun Bank"
	p := newTestParser(t, src, &bytes.Buffer{})

	l, err := p.Parse("bank/esun/202401.csv", strings.NewReader(esunCSV))
	require.NoError(t, err)

	salary := l.Transactions[1]
	assert.Equal(t, []string{"esun"}, salary.Comments.Keys())
	_, ok := salary.Comments.Get("E.Sun Bank")
	assert.False(t, ok)
}
