package cmd

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ardanlabs/ethview/business/core/session"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect to the wallet and print the session as it changes",
	RunE:  watchRun,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func watchRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	term := newTerminal(cmd.InOrStdin(), cmd.OutOrStdout())
	defer term.close()

	ns := loadNames()
	state := func(s session.Session) {
		names := make([]string, len(s.Accounts))
		for i, account := range s.Accounts {
			names[i] = label(ns, account)
		}

		term.printf("connected[%v] chain[%s] accounts[%s] gas[%s] balance[%s ETH]\n",
			s.Connected, s.ChainID, strings.Join(names, ", "), s.GasPrice, s.Ether())
	}

	w, err := openWallet(ctx, term, session.Transfer{}, state)
	if err != nil {
		return err
	}
	defer w.close()

	if err := w.session.Connect(ctx); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "watching the wallet, ctrl-c to stop")
	<-ctx.Done()

	return nil
}
