package main

import "github.com/dvloznov/inbox-ledger/internal/cli"

func main() {
	cli.Execute()
}
