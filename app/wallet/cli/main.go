package main

import "github.com/ardanlabs/ethview/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
