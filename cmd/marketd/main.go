package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rampnet/config"
	"rampnet/core/events"
	"rampnet/core/state"
	"rampnet/core/types"
	"rampnet/gateway/verifier"
	"rampnet/native/market"
	"rampnet/native/scheduler"
	"rampnet/native/token"
	"rampnet/observability/logging"
	"rampnet/rpc"
	"rampnet/storage"
)

const shutdownTimeout = 10 * time.Second

// logEmitter forwards engine events to the structured log so off-chain
// indexers can tail the daemon output.
type logEmitter struct {
	log *slog.Logger
}

type attributedEvent interface {
	EventType() string
	Event() *types.Event
}

func (l logEmitter) Emit(evt events.Event) {
	if carrier, ok := evt.(attributedEvent); ok && carrier.Event() != nil {
		args := make([]any, 0, 2*len(carrier.Event().Attributes))
		for k, v := range carrier.Event().Attributes {
			args = append(args, k, v)
		}
		l.log.Info(evt.EventType(), args...)
		return
	}
	l.log.Info(evt.EventType())
}

func main() {
	configPath := flag.String("config", "marketd.toml", "path to the marketd configuration file")
	flag.Parse()

	logger := logging.Setup("marketd", os.Getenv("MARKETD_ENV"))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if cfg.ServiceEnv != "" {
		logger = logging.Setup("marketd", cfg.ServiceEnv)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	custody, _ := config.ParseAddress(cfg.CustodyAddress)

	ledger := token.NewLedger(manager)
	engine := market.NewEngine()
	engine.SetState(manager)
	engine.SetToken(token.NewVault(ledger, custody))
	engine.SetCustody(custody)
	engine.SetReserveWindow(cfg.ReserveWindowSeconds)
	engine.SetEmitter(logEmitter{log: logger})

	admins := make(market.AdminSet)
	for _, raw := range cfg.AdminAddresses {
		addr, _ := config.ParseAddress(raw)
		admins[addr] = true
	}
	engine.SetAuthority(admins)

	for _, raw := range cfg.AllowedAssets {
		asset, _ := config.ParseAddress(raw)
		if err := manager.SetAssetAllowed(asset, true); err != nil {
			logger.Error("seed asset allow list", "error", err)
			os.Exit(1)
		}
	}

	for _, v := range cfg.Verifiers {
		addr, _ := config.ParseAddress(v.Address)
		engine.RegisterVerifier(addr, verifier.NewClient(v.Endpoint, v.AuthToken))
	}

	sched := scheduler.NewScheduler()
	sched.SetState(manager)
	sched.SetLedger(engine)
	sched.SetEmitter(logEmitter{log: logger})
	if cfg.SchedulerAddress != "" {
		identity, _ := config.ParseAddress(cfg.SchedulerAddress)
		sched.SetIdentity(identity)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", rpc.NewServer(engine, sched, logger))

	srv := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: mux,
	}

	go func() {
		logger.Info("marketd listening", "address", cfg.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down marketd")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
