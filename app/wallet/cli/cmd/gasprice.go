package cmd

import (
	"context"
	"fmt"

	"github.com/ardanlabs/ethview/foundation/client"
	"github.com/ardanlabs/ethview/foundation/provider/node"
	"github.com/spf13/cobra"
)

var gasPriceCmd = &cobra.Command{
	Use:   "gasprice",
	Short: "Print the current gas price in wei.",
	RunE:  gasPriceRun,
}

func init() {
	rootCmd.AddCommand(gasPriceCmd)
}

func gasPriceRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	nd, err := node.Dial(ctx, rpcURL, node.Config{})
	if err != nil {
		return err
	}
	defer nd.Shutdown()

	gas, err := client.New(nd).GasPrice(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), gas)

	return nil
}
