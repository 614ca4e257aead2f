package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stmtrecon/ledger/ledger/beanfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const printLedger = `2024-01-03 * "Dinner"
  Liabilities:Card  -800 TWD
  Expenses:Food

2024-01-01 * "Salary"
  Assets:Bank  50000 TWD
  Income:Salary

2024-01-02 * "Lunch"
  Liabilities:Card  -120 TWD
  Expenses:Food
`

func TestCliTransactions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.bean")
	require.NoError(t, os.WriteFile(path, []byte(printLedger), 0o644))

	ledgerFilePath = path
	columnWidth, columnWide = beanfile.DefaultColumns, false

	tests := []struct {
		name       string
		begin, end string
		payee      string
		want       []string
	}{
		{"everything", "1970/01/01", "2100/01/01", "", []string{"Salary", "Lunch", "Dinner"}},
		{"inclusive range", "2024-01-02", "2024-01-03", "", []string{"Lunch", "Dinner"}},
		{"payee", "1970/01/01", "2100/01/01", "Lu", []string{"Lunch"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			startString, endString, payeeFilter = tt.begin, tt.end, tt.payee

			got, err := cliTransactions()
			require.NoError(t, err)
			var titles []string
			for _, trans := range got {
				titles = append(titles, trans.Title)
			}
			assert.Equal(t, tt.want, titles)
		})
	}

	startString = "not a date"
	_, err := cliTransactions()
	assert.Error(t, err)
}
