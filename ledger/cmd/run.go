package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Import every statement and write the reconciled ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, _, _, err := newPipeline()
		if err != nil {
			return err
		}
		summary, err := p.Run()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), summary)
		return nil
	},
}

// accountsCmd represents the accounts command
var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Write the open directives of every known account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, _, _, err := newPipeline()
		if err != nil {
			return err
		}
		path, err := p.WriteAccounts()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d accounts to %s\n", len(p.Accounts()), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(accountsCmd)
}
