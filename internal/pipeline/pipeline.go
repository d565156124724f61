// Package pipeline hosts the decision loop: market data in, indicator
// evaluation, alerting, signal proposal, risk validation and execution.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"tradepilot/internal/alerts"
	"tradepilot/internal/equity"
	"tradepilot/internal/events"
	"tradepilot/internal/exchange"
	"tradepilot/internal/market"
	"tradepilot/internal/proposer"
	"tradepilot/internal/risk"
	"tradepilot/internal/signal"
	"tradepilot/internal/trading"
)

// minHistory is the number of closes needed before indicators are
// evaluated; it covers the slowest indicator period plus warmup.
const minHistory = 35

// Config holds the pipeline's scheduling knobs.
type Config struct {
	DecisionInterval   time.Duration
	CandleHistory      int
	CleanupSchedule    string
	DailyResetSchedule string
	EquitySchedule     string
	AutoTrade          bool
	QuoteAsset         string
}

// DecisionRecorder persists gate verdicts, best effort.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, c signal.Candidate, accepted bool, rejectReason string) error
}

// symbolState is the rolling per-symbol market history.
type symbolState struct {
	prices  []float64
	volumes []float64
	highs   []float64
	lows    []float64

	lastSnapshot *market.Snapshot
	indicators   market.Indicators
	lastDecision time.Time
}

// Pipeline wires the stages together around the ticker stream.
type Pipeline struct {
	cfg      Config
	stream   *market.Stream
	engine   *alerts.Engine
	proposer proposer.Proposer
	gate     *risk.Gate
	manager  *trading.Manager
	tracker  *equity.Tracker
	exchange exchange.Exchange
	bus      *events.Bus
	logger   zerolog.Logger

	decisions DecisionRecorder

	mu        sync.RWMutex
	symbols   map[string]*symbolState
	dayEquity float64 // equity at the start of the trading day
}

// New assembles a pipeline. The decision recorder is optional.
func New(
	cfg Config,
	stream *market.Stream,
	engine *alerts.Engine,
	prop proposer.Proposer,
	gate *risk.Gate,
	manager *trading.Manager,
	tracker *equity.Tracker,
	ex exchange.Exchange,
	bus *events.Bus,
	logger zerolog.Logger,
) *Pipeline {
	if cfg.CandleHistory < minHistory {
		cfg.CandleHistory = minHistory
	}
	return &Pipeline{
		cfg:      cfg,
		stream:   stream,
		engine:   engine,
		proposer: prop,
		gate:     gate,
		manager:  manager,
		tracker:  tracker,
		exchange: ex,
		bus:      bus,
		logger:   logger.With().Str("component", "Pipeline").Logger(),
		symbols:  make(map[string]*symbolState),
	}
}

// SetDecisionRecorder attaches the audit sink for gate verdicts.
func (p *Pipeline) SetDecisionRecorder(r DecisionRecorder) { p.decisions = r }

// Run consumes the ticker stream until the context is cancelled. It starts
// the position monitor and the scheduled maintenance jobs.
func (p *Pipeline) Run(ctx context.Context) error {
	go p.manager.StartMonitoring(ctx)

	scheduler, err := p.startJobs(ctx)
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	p.refreshEquity(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-p.stream.Updates():
			if !ok {
				return ctx.Err()
			}
			p.handleTick(ctx, tick)
		}
	}
}

func (p *Pipeline) startJobs(ctx context.Context) (*cron.Cron, error) {
	scheduler := cron.New()

	if _, err := scheduler.AddFunc(p.cfg.CleanupSchedule, func() {
		if removed := p.engine.CleanupSignals(); removed > 0 {
			p.logger.Info().Int("removed", removed).Msg("stale signals cleaned up")
		}
	}); err != nil {
		return nil, err
	}

	if _, err := scheduler.AddFunc(p.cfg.DailyResetSchedule, func() {
		p.manager.ResetDailyPnL()
		p.mu.Lock()
		p.dayEquity = p.tracker.Current()
		p.mu.Unlock()
		p.logger.Info().Float64("reference_equity", p.tracker.Current()).Msg("daily counters reset")
	}); err != nil {
		return nil, err
	}

	if _, err := scheduler.AddFunc(p.cfg.EquitySchedule, func() {
		p.refreshEquity(ctx)
	}); err != nil {
		return nil, err
	}

	scheduler.Start()
	return scheduler, nil
}

// handleTick folds a ticker update into the symbol history, evaluates
// alerts and, at most once per decision interval, runs the full
// propose-validate-execute path.
func (p *Pipeline) handleTick(ctx context.Context, tick market.Ticker) {
	snap := market.Snapshot{
		Symbol:         tick.Symbol,
		Price:          tick.Last,
		PriceChange24h: tick.Change24h,
		Volume24h:      tick.Volume,
		Timestamp:      tick.Timestamp,
	}

	p.mu.Lock()
	state, ok := p.symbols[tick.Symbol]
	if !ok {
		state = &symbolState{}
		p.symbols[tick.Symbol] = state
	}
	prev := state.lastSnapshot
	state.lastSnapshot = &snap

	state.prices = appendBounded(state.prices, tick.Last, p.cfg.CandleHistory)
	state.volumes = appendBounded(state.volumes, tick.Volume, p.cfg.CandleHistory)
	state.highs = appendBounded(state.highs, tick.Last, p.cfg.CandleHistory)
	state.lows = appendBounded(state.lows, tick.Last, p.cfg.CandleHistory)

	ready := len(state.prices) >= minHistory
	if ready {
		state.indicators = market.CalculateAll(state.prices, state.volumes, state.highs, state.lows)
	}
	indicators := state.indicators
	due := time.Since(state.lastDecision) >= p.cfg.DecisionInterval
	if ready && due {
		state.lastDecision = time.Now()
	}
	p.mu.Unlock()

	if !ready {
		return
	}

	for _, a := range p.engine.CheckAlerts(tick.Symbol, snap, prev, indicators) {
		p.logger.Info().
			Str("symbol", a.Symbol).
			Str("type", string(a.Type)).
			Str("severity", string(a.Severity)).
			Msg(a.Message)
		if p.bus != nil {
			p.bus.PublishAlert(a.Symbol, string(a.Type), string(a.Severity), a.Message)
		}
	}

	if due {
		p.decide(ctx, snap, indicators)
	}
}

// decide runs one propose-validate-execute cycle for a symbol.
func (p *Pipeline) decide(ctx context.Context, snap market.Snapshot, ind market.Indicators) {
	candidate, err := p.proposer.Propose(ctx, snap, ind)
	if err != nil {
		p.logger.Warn().Err(err).Str("symbol", snap.Symbol).Msg("proposer failed")
		return
	}
	if candidate == nil {
		return
	}

	p.engine.SetTradingSignals([]signal.Candidate{*candidate})
	if !candidate.Tradable() {
		return
	}

	if p.bus != nil {
		p.bus.PublishSignalProposed(candidate.Symbol, string(candidate.Action), candidate.Reasoning, candidate.Confidence)
	}

	verdict := p.gate.Validate(*candidate, p.portfolioView(), p.accountView(), p.marketView(snap, ind))
	p.recordDecision(*candidate, verdict)

	if !verdict.Accepted {
		if p.bus != nil {
			p.bus.PublishSignalRejected(candidate.Symbol, string(candidate.Action), verdict.Reason, verdict.FailedChecks())
		}
		return
	}
	if !p.cfg.AutoTrade {
		p.logger.Info().Str("symbol", candidate.Symbol).Msg("signal accepted, auto trading disabled")
		return
	}

	if _, err := p.manager.ExecuteSignal(ctx, *candidate, false); err != nil {
		p.logger.Warn().Err(err).Str("symbol", candidate.Symbol).Msg("execution failed")
	}
}

// SubmitManual validates and executes an operator-issued signal. The
// signal passes the same gate as autonomous ones but sizes with the
// manual fraction and skips the symbol cooldown.
func (p *Pipeline) SubmitManual(ctx context.Context, c signal.Candidate) (risk.Verdict, *trading.ExecutionResult, error) {
	p.mu.RLock()
	state := p.symbols[c.Symbol]
	p.mu.RUnlock()

	var mkt risk.MarketView
	if state != nil && state.lastSnapshot != nil {
		mkt = p.marketView(*state.lastSnapshot, state.indicators)
	}

	verdict := p.gate.Validate(c, p.portfolioView(), p.accountView(), mkt)
	p.recordDecision(c, verdict)
	if !verdict.Accepted {
		if p.bus != nil {
			p.bus.PublishSignalRejected(c.Symbol, string(c.Action), verdict.Reason, verdict.FailedChecks())
		}
		return verdict, nil, nil
	}

	result, err := p.manager.ExecuteSignal(ctx, c, true)
	return verdict, result, err
}

// ActiveSignals exposes the engine's registry for the API layer.
func (p *Pipeline) ActiveSignals() []signal.Active {
	return p.engine.GetActiveSignals()
}

// IndicatorVotes exposes per-indicator votes for a symbol, for diagnostics.
func (p *Pipeline) IndicatorVotes(symbol string) []alerts.Vote {
	p.mu.RLock()
	defer p.mu.RUnlock()
	state, ok := p.symbols[symbol]
	if !ok {
		return nil
	}
	return p.engine.IndicatorVotes(state.indicators)
}

func (p *Pipeline) portfolioView() risk.PortfolioView {
	status := p.manager.GetPortfolioStatus()

	positions := make([]risk.PositionView, 0, len(status.OpenPositions))
	for _, pos := range status.OpenPositions {
		positions = append(positions, risk.PositionView{Symbol: pos.Symbol, Side: string(pos.Side)})
	}

	p.mu.RLock()
	ref := p.dayEquity
	p.mu.RUnlock()

	return risk.PortfolioView{
		OpenPositions:   positions,
		DailyPnL:        status.DailyPnL,
		ReferenceEquity: ref,
	}
}

func (p *Pipeline) accountView() risk.AccountView {
	return risk.AccountView{
		Equity:   p.tracker.Current(),
		Drawdown: p.tracker.Drawdown(),
	}
}

func (p *Pipeline) marketView(snap market.Snapshot, ind market.Indicators) risk.MarketView {
	mkt := risk.MarketView{
		Price:     snap.Price,
		Bollinger: ind.Bollinger,
		ATR:       ind.ATR,
		Volume24h: snap.Volume24h,
	}
	if ind.EMA != nil {
		trend := ind.EMA.Signal
		mkt.Trend = &trend
	} else if ind.SMA != nil {
		trend := ind.SMA.Signal
		mkt.Trend = &trend
	}
	return mkt
}

// refreshEquity recomputes equity from the account balance plus unrealized
// P&L. The first refresh also sets the daily reference equity.
func (p *Pipeline) refreshEquity(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	balances, err := p.exchange.AccountBalance(callCtx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("equity refresh failed")
		return
	}
	quote := balances[p.cfg.QuoteAsset]

	status := p.manager.GetPortfolioStatus()
	unrealized := make([]float64, 0, len(status.OpenPositions))
	for _, pos := range status.OpenPositions {
		unrealized = append(unrealized, pos.Unrealized.Absolute)
	}

	p.tracker.UpdateEquity(equity.Balance{Free: quote.Free, Locked: quote.Locked}, unrealized)

	p.mu.Lock()
	if p.dayEquity == 0 {
		p.dayEquity = p.tracker.Current()
	}
	p.mu.Unlock()
}

func (p *Pipeline) recordDecision(c signal.Candidate, v risk.Verdict) {
	if p.decisions == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.decisions.RecordDecision(ctx, c, v.Accepted, v.Reason); err != nil {
			p.logger.Warn().Err(err).Str("symbol", c.Symbol).Msg("decision audit failed")
		}
	}()
}

func appendBounded(series []float64, v float64, limit int) []float64 {
	series = append(series, v)
	if len(series) > limit {
		series = series[len(series)-limit:]
	}
	return series
}
