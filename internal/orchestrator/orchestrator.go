// Package orchestrator drives every active window's lifecycle, evaluates
// every manifest strategy against it once per tick, enforces entry gates,
// and hands orders to the execution adapter (spec.md §4.G).
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/config"
	"github.com/aristath/strikewindow/internal/domain"
	"github.com/aristath/strikewindow/internal/events"
	"github.com/aristath/strikewindow/internal/execution"
	"github.com/aristath/strikewindow/internal/marketstate"
	"github.com/aristath/strikewindow/internal/outcomes"
	"github.com/aristath/strikewindow/internal/registry"
	"github.com/aristath/strikewindow/internal/strategy"
	"github.com/aristath/strikewindow/internal/windowclock"
)

// ContractResolver supplies the current window's strike and token ids once
// the venue has published them, allowing discovering -> active (spec.md
// §4.E).
type ContractResolver interface {
	ResolveContract(symbol string, openEpoch int64) (*domain.Window, bool, error)
}

// SettlementSource supplies the settlement oracle price once it is known,
// allowing settling -> settled (spec.md §4.E).
type SettlementSource interface {
	SettlementPrice(symbol, windowID string) (decimal.Decimal, bool)
}

// symbolRuntime is one symbol's window-lifecycle state, owned exclusively
// by the orchestrator's tick goroutine.
type symbolRuntime struct {
	symbol string
	clock  *windowclock.Clock
	market *marketstate.Store
	window *domain.Window
}

// Orchestrator is the driver of spec.md §4.G. Tick is called from one
// ticker goroutine; strategy evaluation within a tick runs concurrently on
// the worker pool, and those pool tasks write the held-position map under
// heldMu and the in-flight registry under its own lock.
type Orchestrator struct {
	cfg      *config.Config
	manifest *config.LaunchManifest
	catalog  *registry.Catalog
	store    strategy.Store
	adapter  execution.Adapter

	contracts  ContractResolver
	settlement SettlementSource
	windows    WindowStore
	positions  PositionStore
	outcomes   *outcomes.Logger
	autoStop   AutoStopNotifier
	bus        *events.Bus

	symbols map[string]*symbolRuntime

	heldMu sync.Mutex
	held   map[positionKey]*domain.Position

	inflight *inflightRegistry
	pool     *workerPool

	log zerolog.Logger
}

// New builds an Orchestrator. Callers must call Recover before Run to load
// any open positions left by a prior process.
func New(
	cfg *config.Config,
	manifest *config.LaunchManifest,
	catalog *registry.Catalog,
	store strategy.Store,
	adapter execution.Adapter,
	contracts ContractResolver,
	settlement SettlementSource,
	windows WindowStore,
	positions PositionStore,
	outcomesLogger *outcomes.Logger,
	autoStop AutoStopNotifier,
	bus *events.Bus,
	marketStores map[string]*marketstate.Store,
	log zerolog.Logger,
) *Orchestrator {
	symbols := make(map[string]*symbolRuntime, len(manifest.Symbols))
	for _, sym := range manifest.Symbols {
		symbols[sym] = &symbolRuntime{
			symbol: sym,
			clock:  windowclock.New(sym, cfg.MinTimeRemaining(), cfg.SettlementGrace()),
			market: marketStores[sym],
		}
	}

	return &Orchestrator{
		cfg:        cfg,
		manifest:   manifest,
		catalog:    catalog,
		store:      store,
		adapter:    adapter,
		contracts:  contracts,
		settlement: settlement,
		windows:    windows,
		positions:  positions,
		outcomes:   outcomesLogger,
		autoStop:   autoStop,
		bus:        bus,
		symbols:    symbols,
		held:       make(map[positionKey]*domain.Position),
		inflight:   newInflightRegistry(log),
		pool:       newWorkerPool(runtimeWorkerCount(len(manifest.Symbols) * len(manifest.Strategies))),
		log:        log.With().Str("component", "orchestrator").Logger(),
	}
}

// defaultVenueMinimumSize is Polymarket's CLOB minimum order size in
// contract units; live deployments should source this from the venue
// instead once an endpoint for it is wired.
var defaultVenueMinimumSize = decimal.NewFromFloat(1)

// runtimeWorkerCount bounds the worker pool to a sane range regardless of
// how many (symbol, strategy) pairs the manifest names.
func runtimeWorkerCount(pairs int) int {
	if pairs < 4 {
		return 4
	}
	if pairs > 64 {
		return 64
	}
	return pairs
}

// InflightOrderIDs returns every order id currently awaiting acknowledgement,
// for the safety layer's shutdown snapshot (spec.md §4.J).
func (o *Orchestrator) InflightOrderIDs() []string {
	return o.inflight.orderIDs()
}

// Recover loads every open position from storage, re-binding the ones whose
// strategy is still active and liquidating the rest as orphans (spec.md
// §4.G "Recovery"). It must be called once, before Run.
func (o *Orchestrator) Recover(ctx context.Context) error {
	open, err := o.positions.ListOpen()
	if err != nil {
		return err
	}

	active := make(map[string]bool, len(o.manifest.Strategies))
	for _, id := range o.manifest.Strategies {
		inst, err := o.store.Get(id)
		if err == nil && inst.Active {
			active[id] = true
		}
	}

	rebound, orphans := recoverPositions(open, active, o.log)

	o.heldMu.Lock()
	o.held = rebound
	o.heldMu.Unlock()

	for _, orphan := range orphans {
		o.bus.Publish(events.PositionRecovered, "orchestrator", map[string]interface{}{
			"strategy_id": orphan.StrategyID, "window_id": orphan.WindowID, "orphan": true,
		})
		// tryExit's symbolRuntime parameter is unused by its body; recovery
		// happens before any symbol runtime starts ticking, so nil is safe.
		o.tryExit(ctx, nil, orphan.StrategyID, orphan)
	}

	return nil
}

// Run drives the tick loop until ctx is cancelled, then waits for
// in-flight strategy evaluations to finish before returning (spec.md §5
// graceful cancellation).
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.pool.wait()
			return ctx.Err()
		case now := <-ticker.C:
			o.tick(ctx, now)
		}
	}
}

// tick runs one full pass: advance every symbol's window clock, react to
// every transition it emits, evaluate every manifest strategy against every
// active window, and reap expired in-flight orders.
func (o *Orchestrator) tick(ctx context.Context, now time.Time) {
	for _, rt := range o.symbols {
		for _, ev := range rt.clock.Tick(now) {
			o.handleTransition(ctx, rt, ev)
		}

		if rt.clock.State() == windowclock.StateDiscovering {
			o.tryResolveContract(rt)
		}
		if rt.clock.State() == windowclock.StateSettling {
			o.trySettlement(rt)
		}
	}

	o.reapExpiredOrders(ctx)

	for _, rt := range o.symbols {
		if rt.window == nil {
			continue
		}
		state := rt.clock.State()
		if state != windowclock.StateActive && state != windowclock.StateNearExpiry {
			continue
		}
		for _, strategyID := range o.manifest.Strategies {
			strategyID, rt := strategyID, rt
			o.pool.submit(func() {
				o.evaluate(ctx, rt, strategyID, now)
			})
		}
	}
}

func (o *Orchestrator) handleTransition(ctx context.Context, rt *symbolRuntime, ev windowclock.Event) {
	windowID := domain.WindowName(rt.symbol, ev.OpenEpoch)
	eventType := clockEventType(ev.To)
	o.bus.Publish(eventType, "orchestrator", map[string]interface{}{
		"symbol": rt.symbol, "window_id": windowID, "from": string(ev.From), "to": string(ev.To),
	})

	switch ev.To {
	case windowclock.StateDiscovering:
		rt.window = nil
	case windowclock.StateSettled:
		o.finalizeSettlement(rt, windowID, ev.At)
	}
}

func clockEventType(state windowclock.State) events.EventType {
	switch state {
	case windowclock.StateDiscovering:
		return events.WindowDiscovering
	case windowclock.StateActive:
		return events.WindowOpen
	case windowclock.StateNearExpiry:
		return events.WindowNearExpiry
	case windowclock.StateSettling:
		return events.WindowSettling
	case windowclock.StateSettled:
		return events.WindowSettled
	default:
		return events.SystemStatusChanged
	}
}

// tryResolveContract asks (the feed layer's) ContractResolver whether the
// current window's strike and token ids are known yet; if so it persists
// the window row and unblocks discovering -> active.
func (o *Orchestrator) tryResolveContract(rt *symbolRuntime) {
	openEpoch := domain.OpenEpochFor(time.Now())
	window, ok, err := o.contracts.ResolveContract(rt.symbol, openEpoch)
	if err != nil {
		o.bus.PublishError("orchestrator", err, map[string]interface{}{"symbol": rt.symbol})
		return
	}
	if !ok {
		return
	}

	rt.window = window
	rt.market.SetWindow(window.WindowID, window.StrikePrice, window.UpTokenID, window.DownTokenID)
	rt.clock.ResolveContract()
}

// trySettlement asks the SettlementSource whether the final oracle price
// has arrived yet; if so it unblocks settling -> settled on the next tick.
func (o *Orchestrator) trySettlement(rt *symbolRuntime) {
	if rt.window == nil {
		return
	}
	if _, ok := o.settlement.SettlementPrice(rt.symbol, rt.window.WindowID); ok {
		rt.clock.ReceiveSettlement()
	}
}

// finalizeSettlement computes and records the outcome for every held
// position in the window that just settled (spec.md §4.G "Settlement").
func (o *Orchestrator) finalizeSettlement(rt *symbolRuntime, windowID string, settledAt time.Time) {
	if rt.window == nil {
		return
	}

	finalPrice, ok := o.settlement.SettlementPrice(rt.symbol, windowID)
	if !ok {
		// Grace period expired without a settlement price; fall back to
		// the last oracle reading this process has seen.
		snap := rt.market.Snapshot(settledAt)
		finalPrice = snap.Sources[domain.SourceOraclePush].Price
		if finalPrice.IsZero() {
			finalPrice = snap.Sources[domain.SourceOracleSSE].Price
		}
	}

	o.heldMu.Lock()
	var held []*domain.Position
	for key, pos := range o.held {
		if key.WindowID == windowID {
			held = append(held, pos)
		}
	}
	o.heldMu.Unlock()

	if err := settleWindow(windowID, finalPrice, rt.window, held, o.positions, o.windows, o.outcomes, o.autoStop, settledAt, o.log); err != nil {
		o.bus.PublishError("orchestrator", err, map[string]interface{}{"window_id": windowID})
		return
	}

	o.heldMu.Lock()
	for _, pos := range held {
		delete(o.held, positionKey{StrategyID: pos.StrategyID, WindowID: pos.WindowID})
	}
	o.heldMu.Unlock()
}

// evaluate runs one strategy's executeStrategy for one active window and
// acts on the decision (spec.md §4.G per-tick procedure). It runs on a
// worker-pool goroutine; every write to orchestrator state it makes is
// confined to o.held (its own lock) and the inflight registry (its own
// lock), so it never races the tick goroutine.
func (o *Orchestrator) evaluate(ctx context.Context, rt *symbolRuntime, strategyID string, now time.Time) {
	key := positionKey{StrategyID: strategyID, WindowID: rt.window.WindowID}

	o.heldMu.Lock()
	existing := o.held[key]
	o.heldMu.Unlock()

	snap := rt.market.Snapshot(now)
	evalCtx := buildEvalContext(rt, snap, now)

	decision, err := strategy.ExecuteStrategy(o.catalog, o.store, strategyID, evalCtx)
	if err != nil {
		o.bus.PublishError("orchestrator", err, map[string]interface{}{"strategy_id": strategyID, "window_id": rt.window.WindowID})
		return
	}

	switch decision.Action {
	case "enter":
		if existing != nil && existing.Status != domain.PositionClosed {
			return
		}
		o.tryEnter(ctx, rt, strategyID, decision, snap)
	case "exit":
		if existing == nil || existing.Status == domain.PositionClosed {
			return
		}
		o.tryExit(ctx, rt, strategyID, existing)
	}
}

func buildEvalContext(rt *symbolRuntime, snap domain.MarketSnapshot, now time.Time) registry.EvalContext {
	strike, _ := rt.window.StrikePrice.Float64()
	mid, _ := snap.Mid.Float64()
	bestBid, _ := snap.UpBook.BestBid.Float64()
	bestAsk, _ := snap.UpBook.BestAsk.Float64()

	remainingMs := (rt.window.CloseEpoch - now.Unix()) * 1000
	if remainingMs < 0 {
		remainingMs = 0
	}

	oracleStale := snap.StalenessMs[domain.SourceOraclePush]
	if oracleStale < 0 {
		oracleStale = snap.StalenessMs[domain.SourceOracleSSE]
	}

	return registry.EvalContext{
		WindowID:        rt.window.WindowID,
		Symbol:          rt.symbol,
		Strike:          strike,
		Mid:             mid,
		BestBid:         bestBid,
		BestAsk:         bestAsk,
		TimeRemainingMs: remainingMs,
		OracleStaleMs:   oracleStale,
		Now:             now,
	}
}

// tryEnter checks the entry gates and, if all pass, submits the order and
// tracks it in-flight (spec.md §4.G steps 3).
func (o *Orchestrator) tryEnter(ctx context.Context, rt *symbolRuntime, strategyID string, decision *strategy.Decision, snap domain.MarketSnapshot) {
	tokenID := rt.window.UpTokenID
	side := domain.SideBuy
	if decision.Direction == string(domain.DirectionFadeUp) {
		tokenID = rt.window.DownTokenID
	}

	o.heldMu.Lock()
	var exposure decimal.Decimal
	for _, pos := range o.held {
		if pos.Status != domain.PositionClosed {
			exposure = exposure.Add(pos.Size.Mul(pos.EntryPrice))
		}
	}
	existing := o.held[positionKey{StrategyID: strategyID, WindowID: rt.window.WindowID}]
	o.heldMu.Unlock()

	proposedCost := decision.Size.Mul(snap.Mid)

	autoStopTripped := o.autoStop != nil && o.autoStop.Tripped()

	err := checkGates(gateInput{
		ClockState:         rt.clock.State(),
		ManifestStrategies: manifestStrategySet(o.manifest.Strategies),
		StrategyID:         strategyID,
		WindowID:           rt.window.WindowID,
		AutoStopTripped:    autoStopTripped,
		CurrentExposure:    exposure,
		ProposedCost:       proposedCost,
		MaxExposure:        o.manifest.MaxExposureDollars,
		ExistingPosition:   existing,
		AdapterMode:        o.adapter.Mode(),
		ConfiguredMode:     o.cfg.Mode,
		ProposedSize:       decision.Size,
		VenueMinimumSize:   defaultVenueMinimumSize,
	})
	if err != nil {
		o.bus.Publish(events.GateRejected, "orchestrator", map[string]interface{}{
			"strategy_id": strategyID, "window_id": rt.window.WindowID, "reason": err.Error(),
		})
		return
	}

	requestID := uuid.NewString()
	orderCtx, cancel := context.WithTimeout(ctx, o.cfg.InflightTimeout())
	defer cancel()

	result, err := o.adapter.PlaceOrder(orderCtx, tokenID, side, snap.Mid, decision.Size)
	if err != nil {
		o.bus.Publish(events.OrderRejected, "orchestrator", map[string]interface{}{
			"strategy_id": strategyID, "window_id": rt.window.WindowID, "error": err.Error(),
		})
		return
	}

	o.inflight.track(strategyID, rt.window.WindowID, requestID, result.OrderID, o.cfg.InflightTimeout())

	pos := domain.Position{
		StrategyID: strategyID,
		WindowID:   rt.window.WindowID,
		TokenID:    tokenID,
		Side:       side,
		Size:       decision.Size,
		EntryPrice: snap.Mid,
		EntryTime:  time.Now(),
		Status:     domain.PositionOpen,
	}
	if err := o.positions.Upsert(pos); err != nil {
		o.bus.PublishError("orchestrator", err, map[string]interface{}{"strategy_id": strategyID, "window_id": rt.window.WindowID})
		return
	}

	o.heldMu.Lock()
	o.held[positionKey{StrategyID: strategyID, WindowID: rt.window.WindowID}] = &pos
	o.heldMu.Unlock()

	o.inflight.acknowledge(strategyID, rt.window.WindowID, requestID)

	sig := domain.Signal{
		WindowID:    rt.window.WindowID,
		StrategyID:  strategyID,
		Symbol:      rt.symbol,
		Direction:   domain.Direction(decision.Direction),
		Confidence:  decision.Confidence,
		TokenID:     tokenID,
		Side:        side,
		GeneratedAt: time.Now(),
	}
	if _, err := o.outcomes.LogSignal(sig); err != nil {
		o.log.Error().Err(err).Str("strategy_id", strategyID).Msg("failed to log signal")
	}

	o.bus.Publish(events.SignalGenerated, "orchestrator", map[string]interface{}{"strategy_id": strategyID, "window_id": rt.window.WindowID})
	o.bus.Publish(events.OrderPlaced, "orchestrator", map[string]interface{}{"strategy_id": strategyID, "order_id": result.OrderID})
	o.bus.Publish(events.PositionOpened, "orchestrator", map[string]interface{}{"strategy_id": strategyID, "window_id": rt.window.WindowID})
}

// tryExit liquidates an open position (spec.md §4.G step 4).
func (o *Orchestrator) tryExit(ctx context.Context, rt *symbolRuntime, strategyID string, pos *domain.Position) {
	orderCtx, cancel := context.WithTimeout(ctx, o.cfg.InflightTimeout())
	defer cancel()

	result, err := o.adapter.PlaceOrder(orderCtx, pos.TokenID, oppositeSide(pos.Side), decimal.Zero, pos.Size)
	if err != nil {
		o.bus.Publish(events.OrderRejected, "orchestrator", map[string]interface{}{"strategy_id": strategyID, "error": err.Error()})
		return
	}

	pos.Status = domain.PositionClosed
	pos.ExitReason = "strategy_exit"
	pos.ExitPrice = result.Making

	if err := o.positions.Upsert(*pos); err != nil {
		o.bus.PublishError("orchestrator", err, map[string]interface{}{"strategy_id": strategyID})
		return
	}

	// Entries are always buys (tryEnter), so a strategy exit is always the
	// matching sell: PnL is simply the price delta times size, unlike
	// settleWindow's binary payout which only applies once a window
	// actually reaches on-chain settlement.
	pnl := result.Making.Sub(pos.EntryPrice).Mul(pos.Size)
	if o.autoStop != nil {
		if err := o.autoStop.RecordFill(pnl); err != nil {
			o.bus.PublishError("orchestrator", err, map[string]interface{}{"strategy_id": strategyID})
		}
	}

	o.heldMu.Lock()
	delete(o.held, positionKey{StrategyID: strategyID, WindowID: pos.WindowID})
	o.heldMu.Unlock()

	o.bus.Publish(events.PositionClosed, "orchestrator", map[string]interface{}{"strategy_id": strategyID, "window_id": pos.WindowID})
}

func oppositeSide(side domain.OrderSide) domain.OrderSide {
	if side == domain.SideBuy {
		return domain.SideSell
	}
	return domain.SideBuy
}

func manifestStrategySet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// reapExpiredOrders cancels every in-flight order whose deadline has passed
// without an acknowledgement (spec.md §4.G "In-flight registry").
func (o *Orchestrator) reapExpiredOrders(ctx context.Context) {
	for _, key := range o.inflight.expired(time.Now()) {
		orderID, ok := o.inflight.orderIDFor(key)
		if !ok {
			continue
		}
		cancelCtx, cancel := context.WithTimeout(ctx, o.cfg.InflightTimeout())
		if err := o.adapter.Cancel(cancelCtx, orderID); err != nil {
			o.log.Error().Err(err).Str("order_id", orderID).Msg("failed to cancel expired in-flight order")
			cancel()
			continue
		}
		cancel()
		o.inflight.remove(key)
		o.bus.Publish(events.InflightTimeout, "orchestrator", map[string]interface{}{
			"strategy_id": key.StrategyID, "window_id": key.WindowID, "order_id": orderID,
		})
	}
}
