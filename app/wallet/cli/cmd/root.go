// Package cmd contains the wallet session commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ardanlabs/ethview/business/core/session"
	"github.com/ardanlabs/ethview/foundation/logger"
	"github.com/ardanlabs/ethview/foundation/nameservice"
	"github.com/ardanlabs/ethview/foundation/provider/node"
	"github.com/spf13/cobra"
)

var (
	rpcURL      string
	interval    time.Duration
	timeout     time.Duration
	accountName string
	accountPath string
	verbose     bool
)

const (
	keyExtenstion = ".ecdsa"
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&rpcURL, "rpc", "r", "http://localhost:8545", "Url of the wallet node.")
	rootCmd.PersistentFlags().DurationVarP(&interval, "interval", "i", 2*time.Second, "How often the node is polled for changes.")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "T", 30*time.Second, "How long a command waits on the wallet.")
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "private.ecdsa", "Name of the private key.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log session activity to stderr.")
}

var rootCmd = &cobra.Command{
	Use:          "wallet",
	Short:        "Your simple wallet session",
	SilenceUsage: true,
}

// Execute runs the command named on the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getPrivateKeyPath() string {
	if !strings.HasSuffix(accountName, keyExtenstion) {
		accountName += keyExtenstion
	}

	return filepath.Join(accountPath, accountName)
}

// =============================================================================

// wallet bundles what a command needs to drive a session against the node.
type wallet struct {
	node    *node.Node
	session *session.Reconciler
	names   *nameservice.NameService
}

// openWallet dials the node and starts a session over it. The caller must
// call close when done.
func openWallet(ctx context.Context, ui session.UI, transfer session.Transfer, state session.StateHandler) (*wallet, error) {
	ev, err := eventHandler()
	if err != nil {
		return nil, err
	}

	ns := loadNames()

	nd, err := node.Dial(ctx, rpcURL, node.Config{
		PollInterval: interval,
		EvHandler:    ev,
	})
	if err != nil {
		return nil, err
	}

	sess, err := session.New(session.Config{
		Provider:     nd,
		UI:           ui,
		Transfer:     transfer,
		EvHandler:    ev,
		StateHandler: state,
	})
	if err != nil {
		nd.Shutdown()
		return nil, err
	}

	nd.Start()

	w := wallet{
		node:    nd,
		session: sess,
		names:   ns,
	}

	return &w, nil
}

// connect asks for the accounts and waits for the session to catch up.
func (w *wallet) connect(ctx context.Context) (session.Session, error) {
	if err := w.session.Connect(ctx); err != nil {
		return session.Session{}, err
	}

	if err := w.session.Settle(ctx); err != nil {
		return session.Session{}, err
	}

	return w.session.Snapshot(), nil
}

func (w *wallet) close() {
	w.session.Shutdown()
	w.node.Shutdown()
}

// eventHandler logs session activity when running verbose.
func eventHandler() (func(v string, args ...any), error) {
	if !verbose {
		return nil, nil
	}

	log, err := logger.New("WALLET", "stderr")
	if err != nil {
		return nil, fmt.Errorf("constructing logger: %w", err)
	}

	ev := func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...))
	}

	return ev, nil
}

// loadNames reads the names of the keys in the account path. The names are
// optional so a missing key folder produces an empty name service.
func loadNames() *nameservice.NameService {
	ns, err := nameservice.New(accountPath)
	if err != nil {
		ns, _ = nameservice.New("")
	}
	return ns
}

// label renders an address with its name when it has one.
func label(ns *nameservice.NameService, address string) string {
	if name := ns.Lookup(address); name != address {
		return fmt.Sprintf("%s (%s)", address, name)
	}
	return address
}
