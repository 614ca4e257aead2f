package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/stmtrecon/ledger"
	"github.com/stmtrecon/ledger/ledger/beanfile"
)

var allowMatching bool
var importColumns int

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <source> <statement-file>",
	Short: "Import one statement and print it as ledger transactions",
	Long: `Parse a statement with the named source, complete each transaction with
its account and print the result. The statement type is detected from the
file path. Transactions already present in the override or ignored
ledgers are left out unless --allow-matching is given.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cfg, logger, err := newPipeline()
		if err != nil {
			return err
		}

		l, err := p.Loader().LoadFile(args[0], args[1])
		if err != nil {
			return err
		}
		custom, ignored, err := p.Curated()
		if err != nil {
			return err
		}
		if !allowMatching {
			before := l.Len()
			ledger.DedupByTitleAndAmount([]*ledger.Ledger{custom, ignored, l}, cfg.Processing.TitleToleranceDays)
			logger.Debug("left out known transactions", "count", before-l.Len())
		}

		classifier := p.Classifier()
		classifier.Train(custom)
		classifier.Classify(l)

		columns := importColumns
		if columns == 0 {
			columns = cfg.Beancount.Columns
		}
		return beanfile.WriteLedger(os.Stdout, columns, l)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().BoolVar(&allowMatching, "allow-matching", false, "Keep transactions already recorded in override or ignored ledgers.")
	importCmd.Flags().IntVar(&importColumns, "columns", 0, "Set a column width for output (default beancount.columns).")
}
