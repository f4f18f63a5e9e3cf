// Package main is the entry point for the strikewindow trading engine: an
// automated trader for 15-minute binary up/down prediction-market contracts
// on crypto assets, settled against an on-chain price oracle.
//
// main wires every module into one running process:
//  1. Loads and validates configuration from the environment.
//  2. Initializes structured logging.
//  3. Opens the database gateway and applies pending migrations.
//  4. Builds the registry catalog and discovers every known component.
//  5. Loads the launch manifest (the strategies, sizing, and symbols this
//     run is authorized to trade).
//  6. Starts one market-state store and one set of feed subscribers per
//     manifest symbol.
//  7. Builds the contract resolver, the execution adapter (paper or live,
//     by mode), and the outcomes logger.
//  8. Builds the safety layer: auto-stop (persisted, cron-reset) and the
//     kill switch, reporting any snapshot left by a prior process.
//  9. Builds the orchestrator, recovers open positions, and runs its tick
//     loop in the background.
//  10. Starts the HTTP status/kill/manifest-reload API.
//  11. Waits for a shutdown signal, then drains everything within a bounded
//      grace period and writes a fresh safety snapshot before exit.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/strikewindow/internal/api"
	"github.com/aristath/strikewindow/internal/config"
	"github.com/aristath/strikewindow/internal/contracts"
	"github.com/aristath/strikewindow/internal/database"
	"github.com/aristath/strikewindow/internal/domain"
	"github.com/aristath/strikewindow/internal/events"
	"github.com/aristath/strikewindow/internal/execution"
	"github.com/aristath/strikewindow/internal/execution/paper"
	"github.com/aristath/strikewindow/internal/execution/polymarket"
	"github.com/aristath/strikewindow/internal/feeds"
	"github.com/aristath/strikewindow/internal/feeds/clobbook"
	"github.com/aristath/strikewindow/internal/feeds/exchange"
	"github.com/aristath/strikewindow/internal/feeds/oraclepush"
	"github.com/aristath/strikewindow/internal/feeds/oraclesse"
	"github.com/aristath/strikewindow/internal/marketstate"
	"github.com/aristath/strikewindow/internal/orchestrator"
	"github.com/aristath/strikewindow/internal/outcomes"
	"github.com/aristath/strikewindow/internal/registry"
	"github.com/aristath/strikewindow/internal/registry/components"
	"github.com/aristath/strikewindow/internal/safety"
	"github.com/aristath/strikewindow/pkg/logger"
)

// getEnv retrieves an environment variable, returning a fallback when it is
// unset or empty.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

const snapshotPath = "./data/safety-snapshot.msgpack"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{Level: "info", Pretty: true}).Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: getEnv("LOG_PRETTY", "true") == "true"})
	log.Info().Str("mode", string(cfg.Mode)).Msg("starting strikewindow")

	if err := os.MkdirAll(filepath.Dir(snapshotPath), 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create safety snapshot directory")
	}

	gwCfg := database.DefaultGatewayConfig(cfg.DatabaseURL)
	gwCfg.QueryTimeout = cfg.QueryTimeout()
	gw, err := database.NewGateway(gwCfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database gateway")
	}
	defer gw.Close()

	strategyStore := database.NewStrategyStore(gw)
	windowStore := database.NewWindowStore(gw)
	positionStore := database.NewPositionStore(gw)
	outcomeStore := database.NewOutcomeStore(gw)
	autoStopStore := database.NewAutoStopStore(gw)

	catalog := registry.NewCatalog()
	registered, failed := registry.Discover(catalog, []registry.Component{
		components.NewThresholdEntry(1),
		components.NewNearExpiryHold(1),
		components.NewRSIDivergence(1),
		components.NewFixedSizing(1),
	}, log)
	log.Info().Int("registered", registered).Int("failed", failed).Msg("component discovery complete")

	manifestPath := getEnv("MANIFEST_PATH", "manifest.json")
	knownStrategies, err := knownStrategyNames(strategyStore)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list known strategies")
	}
	manifest, err := config.LoadManifest(".", manifestPath, knownStrategies)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load launch manifest")
	}

	bus := events.NewBus(log)

	marketStores := make(map[string]*marketstate.Store, len(manifest.Symbols))
	subscribers := make([]feeds.Subscriber, 0, len(manifest.Symbols)*3)
	for _, symbol := range manifest.Symbols {
		store := marketstate.New(symbol, log)
		marketStores[symbol] = store

		exchangeURL := getEnv("EXCHANGE_WS_URL", "wss://stream.binance.com:9443/ws")
		oracleSSEURL := getEnv("ORACLE_SSE_URL", "")
		clobURL := getEnv("CLOB_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws")

		subscribers = append(subscribers, exchange.New(exchangeURL, []string{symbol}, log))
		subscribers = append(subscribers, clobbook.New(clobURL, []string{}, log))
		if oracleSSEURL != "" {
			subscribers = append(subscribers, oraclesse.New(oracleSSEURL, symbol, log))
		} else {
			subscribers = append(subscribers, oraclepush.New(getEnv("ORACLE_PUSH_URL", ""), symbol, 5*time.Second, log))
		}
	}

	resolver := contracts.New(marketStores, windowStore, log)

	adapter, err := buildExecutionAdapter(cfg, marketStores, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build execution adapter")
	}

	outcomesLogger := outcomes.NewLogger(outcomeStore, log)

	autoStop, err := safety.New(autoStopStore, safety.Limits{
		MaxDrawdownPct:      cfg.MaxDrawdownPct,
		MaxDailyLossDollars: cfg.MaxDailyLossDollars,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize auto-stop")
	}
	if err := autoStop.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start auto-stop cron")
	}
	defer autoStop.Stop()

	if snap, ok, err := safety.ReadSnapshot(snapshotPath); err != nil {
		log.Warn().Err(err).Msg("failed to read prior safety snapshot")
	} else if ok {
		log.Info().Time("written_at", snap.WrittenAt).Int("open_positions", len(snap.OpenPositions)).
			Msg("found safety snapshot from prior run")
	}

	orch := orchestrator.New(cfg, manifest, catalog, strategyStore, adapter, resolver, resolver,
		windowStore, positionStore, outcomesLogger, autoStop, bus, marketStores, log)

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	if err := orch.Recover(runCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to recover open positions")
	}

	killSwitch := safety.NewKillSwitch(cfg.GracefulTimeout(), log)

	for _, sub := range subscribers {
		if err := sub.Start(runCtx); err != nil {
			log.Error().Err(err).Msg("failed to start feed subscriber")
			continue
		}
		go drainTicks(runCtx, sub, marketStores, manifest.Symbols)
	}
	defer func() {
		for _, sub := range subscribers {
			_ = sub.Stop()
		}
	}()

	orchErrCh := make(chan error, 1)
	go func() {
		orchErrCh <- orch.Run(runCtx)
	}()

	status := &processStatus{cfg: cfg, autoStop: autoStop, orch: orch}
	reloader := &manifestReloader{root: ".", known: knownStrategies}

	apiServer := api.New(api.Config{
		Port:     apiPort(),
		Log:      log,
		Status:   status,
		Kill:     killSwitch,
		Manifest: reloader,
		DevMode:  getEnv("DEV_MODE", "false") == "true",
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutdown signal received")
	case err := <-orchErrCh:
		if err != nil {
			log.Error().Err(err).Msg("orchestrator stopped unexpectedly")
		}
	}

	cancelRun()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout())
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("API server forced to shutdown")
	}

	snap := safety.Snapshot{
		InflightOrders: orch.InflightOrderIDs(),
		AutoStopState:  autoStop.State(),
		WrittenAt:      time.Now(),
	}
	if err := safety.WriteSnapshotAtomic(snapshotPath, snap); err != nil {
		log.Error().Err(err).Msg("failed to write shutdown safety snapshot")
	}

	log.Info().Msg("strikewindow stopped")
}

// drainTicks forwards every tick a subscriber produces into the
// marketstate.Store for its symbol, until ctx is cancelled. Exchange and
// oracle ticks carry their own symbol; CLOB book deltas don't, so those are
// fanned out to every tracked symbol's store, which discards updates for
// token ids it doesn't own.
func drainTicks(ctx context.Context, sub feeds.Subscriber, stores map[string]*marketstate.Store, symbols []string) {
	for {
		select {
		case tick, ok := <-sub.Ticks():
			if !ok {
				return
			}
			if store, ok := stores[tick.Symbol]; ok {
				store.Ingest(tick)
				continue
			}
			for _, symbol := range symbols {
				stores[symbol].Ingest(tick)
			}
		case <-ctx.Done():
			return
		}
	}
}

// buildExecutionAdapter selects the paper simulator or the live Polymarket
// adapter by cfg.Mode (spec.md §4.H).
func buildExecutionAdapter(cfg *config.Config, stores map[string]*marketstate.Store, log zerolog.Logger) (execution.Adapter, error) {
	if cfg.Mode == config.ModeLive {
		httpClient, err := polymarket.NewHTTPClient(
			getEnv("POLYMARKET_API_URL", "https://clob.polymarket.com"),
			cfg.Credentials.APIKey, cfg.Credentials.APISecret, cfg.Credentials.Passphrase,
			cfg.Credentials.PrivateKey, cfg.Credentials.FunderAddress, log,
		)
		if err != nil {
			return nil, err
		}
		return polymarket.New(httpClient, cfg.Credentials.FunderAddress, log)
	}

	books := multiBook{stores: stores}
	return paper.New(books, cfg.StartingCapital, paper.DefaultSlippage()), nil
}

// multiBook fans BookFor out across every symbol's market store, so the
// paper simulator doesn't need to know which symbol a token id belongs to.
type multiBook struct {
	stores map[string]*marketstate.Store
}

func (m multiBook) BookFor(tokenID string) (domain.BookTop, bool) {
	for _, store := range m.stores {
		if top, ok := store.BookFor(tokenID); ok {
			return top, true
		}
	}
	return domain.BookTop{}, false
}

func knownStrategyNames(store *database.StrategyStore) (map[string]bool, error) {
	instances, err := store.List()
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(instances))
	for _, inst := range instances {
		known[inst.Name] = true
	}
	return known, nil
}

func apiPort() int {
	port := getEnv("PORT", "8080")
	var p int
	if _, err := fmt.Sscanf(port, "%d", &p); err != nil || p <= 0 {
		return 8080
	}
	return p
}

// processStatus adapts the engine's live components to api.StatusProvider.
type processStatus struct {
	cfg      *config.Config
	autoStop *safety.AutoStop
	orch     *orchestrator.Orchestrator
}

func (s *processStatus) Mode() string          { return string(s.cfg.Mode) }
func (s *processStatus) AutoStopTripped() bool { return s.autoStop.Tripped() }
func (s *processStatus) InflightOrderCount() int {
	return len(s.orch.InflightOrderIDs())
}

// manifestReloader adapts config.LoadManifest to api.ManifestReloader. It
// does not hot-swap the running orchestrator's manifest — spec.md §3 treats
// the manifest as immutable for a process's lifetime — it only validates a
// candidate file and reports what it would load, so an operator can stage a
// manifest for the next restart.
type manifestReloader struct {
	root  string
	known map[string]bool
}

func (r *manifestReloader) Reload(path string) (*config.LaunchManifest, error) {
	return config.LoadManifest(r.root, path, r.known)
}
