package cmd

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/cobra"
	"github.com/stmtrecon/ledger"
	"github.com/stmtrecon/ledger/ledger/beanfile"
	"github.com/stmtrecon/ledger/ledger/pipeline"
	"golang.org/x/term"
)

const transactionDateFormat = "2006/01/02"

var ledgerFilePath string
var startString, endString string
var columnWidth int
var columnWide bool
var payeeFilter string

func cliTransactions() ([]*ledger.Transaction, error) {
	if columnWidth == beanfile.DefaultColumns && columnWide {
		columnWidth = 132
		fd := int(os.Stdout.Fd())
		if term.IsTerminal(fd) {
			tw, _, err := term.GetSize(fd)
			if err == nil {
				columnWidth = tw
			}
		}
	}

	parsedStartDate, tstartErr := dateparse.ParseAny(startString)
	parsedEndDate, tendErr := dateparse.ParseAny(endString)
	if tstartErr != nil || tendErr != nil {
		return nil, errors.New("unable to parse start or end date string argument")
	}
	// include end dates' transactions too
	parsedEndDate = parsedEndDate.Add(time.Second)

	path := ledgerFilePath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(cfg.Beancount.OutputFolder, pipeline.ResultFile)
	}

	var generalLedger []*ledger.Transaction
	var parseError error
	if path == "-" {
		generalLedger, parseError = ledger.ParseLedger(os.Stdin)
	} else {
		generalLedger, parseError = ledger.ParseLedgerFile(path)
	}
	if parseError != nil {
		return nil, parseError
	}

	slices.SortStableFunc(generalLedger, func(a, b *ledger.Transaction) int {
		return a.Date.Compare(b.Date)
	})

	return slices.DeleteFunc(generalLedger, func(trans *ledger.Transaction) bool {
		return trans.Date.Before(parsedStartDate) || !trans.Date.Before(parsedEndDate) ||
			!strings.Contains(trans.Title, payeeFilter)
	}), nil
}

// printCmd represents the print command
var printCmd = &cobra.Command{
	Use:   "print [account-substring-filter]...",
	Short: "Print transactions in ledger file format",
	RunE: func(_ *cobra.Command, args []string) error {
		generalLedger, err := cliTransactions()
		if err != nil {
			return err
		}
		return PrintLedger(generalLedger, args, columnWidth)
	},
}

func init() {
	rootCmd.AddCommand(printCmd)

	startDate := time.Date(1970, 1, 1, 0, 0, 0, 0, time.Local)
	endDate := time.Now().AddDate(100, 0, 0)
	printCmd.Flags().StringVarP(&ledgerFilePath, "file", "f", "", "Ledger file to read, - for stdin (default the result of the last run).")
	printCmd.Flags().StringVarP(&startString, "begin-date", "b", startDate.Format(transactionDateFormat), "Begin date of transaction processing.")
	printCmd.Flags().StringVarP(&endString, "end-date", "e", endDate.Format(transactionDateFormat), "End date of transaction processing.")
	printCmd.Flags().StringVar(&payeeFilter, "payee", "", "Filter output to payees that contain this string.")
	printCmd.Flags().IntVar(&columnWidth, "columns", beanfile.DefaultColumns, "Set a column width for output.")
	printCmd.Flags().BoolVar(&columnWide, "wide", false, "Wide output (use terminal width).")
}

// PrintLedger prints the transactions with a posting on an account matching
// one of the filters, or all of them without filters.
func PrintLedger(generalLedger []*ledger.Transaction, filterArr []string, columns int) error {
	buf := bufio.NewWriter(os.Stdout)
	for _, trans := range generalLedger {
		inFilter := len(filterArr) == 0
		for _, p := range trans.Postings {
			for _, filter := range filterArr {
				if strings.Contains(p.Account, filter) {
					inFilter = true
				}
			}
		}
		if inFilter {
			beanfile.WriteTransaction(buf, trans, columns)
		}
	}
	return buf.Flush()
}
