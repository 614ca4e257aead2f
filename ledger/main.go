package main

import "github.com/stmtrecon/ledger/ledger/cmd"

func main() {
	cmd.Execute()
}
