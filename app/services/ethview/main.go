package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/ethview/app/services/ethview/handlers"
	"github.com/ardanlabs/ethview/business/core/session"
	"github.com/ardanlabs/ethview/business/sys/metrics"
	"github.com/ardanlabs/ethview/business/sys/validate"
	"github.com/ardanlabs/ethview/business/web/browser"
	"github.com/ardanlabs/ethview/foundation/client"
	"github.com/ardanlabs/ethview/foundation/events"
	"github.com/ardanlabs/ethview/foundation/logger"
	"github.com/ardanlabs/ethview/foundation/nameservice"
	"github.com/ardanlabs/ethview/foundation/provider"
	"github.com/ardanlabs/ethview/foundation/provider/node"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ETHVIEW")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			APIHost         string        `conf:"default:0.0.0.0:8080"`
		}
		Provider struct {
			URL          string        `conf:"default:http://localhost:8545"`
			PollInterval time.Duration `conf:"default:2s"`
			DialTimeout  time.Duration `conf:"default:5s"`
		}
		Session struct {
			PromptTimeout time.Duration `conf:"default:30s"`
		}
		Transfer struct {
			From   string `conf:"default:0x940a4589E77e5e23002410773f6dE65C5a4E2a66" validate:"required,eth_addr"`
			To     string `conf:"default:0x52dD916B89acb5d1E1a9062ec649d31A9c47CF22" validate:"required,eth_addr"`
			Amount uint64 `conf:"default:1" validate:"gte=1"`
		}
		NameService struct {
			Folder string
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "ETHVIEW"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	if err := validate.Check(cfg.Transfer); err != nil {
		return fmt.Errorf("validating transfer config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service Support

	// The nameservice package provides names for wallet addresses. The names
	// come from the key file names in the configured folder.
	ns, err := nameservice.New(cfg.NameService.Folder)
	if err != nil {
		return fmt.Errorf("unable to load account name service: %w", err)
	}

	for address, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "address", address)
	}

	// =========================================================================
	// Session Support

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	// The session packages accept a function of this signature to allow the
	// application to log.
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
	}

	// An empty provider url runs the service as a user without a wallet.
	var prov provider.Provider
	var nd *node.Node
	if cfg.Provider.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Provider.DialTimeout)
		defer cancel()

		nd, err = node.Dial(ctx, cfg.Provider.URL, node.Config{
			PollInterval: cfg.Provider.PollInterval,
			EvHandler:    ev,
		})
		if err != nil {
			return fmt.Errorf("dialing provider: %w", err)
		}
		defer nd.Shutdown()

		prov = nd
	}

	// The events package fans every frame out to the connected pages.
	evts := events.New()

	brw := browser.New(browser.Config{
		Evts:          evts,
		PromptTimeout: cfg.Session.PromptTimeout,
		MetaMask:      prov != nil && prov.IsMetaMask(),
		LibVersion:    client.LibVersion(),
		Names:         ns,
		EvHandler:     ev,
	})

	sess, err := session.New(session.Config{
		Provider: prov,
		UI:       brw,
		Transfer: session.Transfer{
			From:   cfg.Transfer.From,
			To:     cfg.Transfer.To,
			Amount: cfg.Transfer.Amount,
		},
		Metrics:      m,
		EvHandler:    ev,
		StateHandler: brw.State,
	})
	if err != nil {
		return fmt.Errorf("constructing session: %w", err)
	}
	defer sess.Shutdown()

	// Polling starts only after the session is listening so the first
	// connect event is not lost.
	if nd != nil {
		nd.Start()
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, prov, reg)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start API Service

	log.Infow("startup", "status", "initializing V1 API support")

	// Construct the mux for the API calls.
	apiMux := handlers.APIMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		Session:  sess,
		Browser:  brw,
		Evts:     evts,
		Metrics:  m,
	})

	// Construct a server to service the requests against the mux. The write
	// timeout does not apply to hijacked websocket connections.
	api := http.Server{
		Addr:         cfg.Web.APIHost,
		Handler:      apiMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown API started")
		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop api service gracefully: %w", err)
		}
	}

	return nil
}
