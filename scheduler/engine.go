// Package scheduler sequences the analysis pipeline: the periodic
// fetch, signal and risk activities plus the two daily cron activities.
// All core computation stays synchronous; the only suspension points
// are broker and persistence I/O.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"optionsdesk/apperrors"
	"optionsdesk/broker"
	"optionsdesk/buffer"
	"optionsdesk/config"
	"optionsdesk/confluence"
	"optionsdesk/logger"
	"optionsdesk/market"
	"optionsdesk/metrics"
	"optionsdesk/options"
	"optionsdesk/plan"
	"optionsdesk/regime"
	"optionsdesk/risk"
	"optionsdesk/signal"
	"optionsdesk/store"
)

// Update is pushed to observers (the websocket hub) whenever the
// pipeline produces something worth showing.
type Update struct {
	Kind      string           `json:"kind"` // "signal" | "plan" | "risk" | "buffer"
	Signal    *signal.TradeSignal `json:"signal,omitempty"`
	Plan      *plan.Plan       `json:"plan,omitempty"`
	RiskState *risk.DailyState `json:"risk_state,omitempty"`
	Buffer    *buffer.Metrics  `json:"buffer,omitempty"`
}

// Engine owns the pipeline components and implements each scheduled
// activity as one synchronous method.
type Engine struct {
	cfg        *config.Config
	broker     broker.Broker
	validator  *market.Validator
	ring       *buffer.Ring
	classifier *regime.Classifier
	optsEngine *options.Engine
	governor   *risk.Governor
	store      *store.Store

	// OnUpdate, when set, receives pipeline updates for live display.
	OnUpdate func(Update)

	lastTimestamp time.Time // monotonic-timestamp gate on accepted snapshots
}

// NewEngine wires the pipeline from configuration.
func NewEngine(cfg *config.Config, b broker.Broker, st *store.Store) *Engine {
	hours := market.HoursConfig{
		Location:        cfg.Location,
		MarketOpen:      cfg.MarketOpen,
		MarketClose:     cfg.MarketClose,
		OpeningRangeEnd: cfg.OpeningRangeEnd,
	}
	return &Engine{
		cfg:       cfg,
		broker:    b,
		validator: market.NewValidator(staleness(cfg), latency(cfg), hours),
		ring:      buffer.New(cfg.DataBufferSize, cfg.MinBufferFillCount, staleness(cfg)),
		classifier: regime.NewClassifier(regime.HoursConfig{
			Location:        cfg.Location,
			MarketOpen:      cfg.MarketOpen,
			OpeningRangeEnd: cfg.OpeningRangeEnd,
		}),
		optsEngine: options.NewEngine(),
		governor: risk.NewGovernor(risk.GovernorConfig{
			TradingCapital:       cfg.TradingCapital,
			MaxTradesPerDay:      cfg.MaxTradesPerDay,
			MaxDailyLossPct:      cfg.MaxDailyLossPct,
			MaxConsecutiveLosses: cfg.MaxConsecutiveLosses,
			MinRiskReward:        cfg.MinRiskReward,
			LotSize:              cfg.LotSize,
		}),
		store: st,
	}
}

func staleness(cfg *config.Config) time.Duration {
	return time.Duration(cfg.MaxDataStalenessSec * float64(time.Second))
}

func latency(cfg *config.Config) time.Duration {
	return time.Duration(cfg.MaxLatencyMs * float64(time.Millisecond))
}

// Ring exposes the buffer for read-only observers (API handlers).
func (e *Engine) Ring() *buffer.Ring { return e.ring }

// Governor exposes the risk governor for the API's trade-logging
// handlers; every mutation still runs under the governor's own lock.
func (e *Engine) Governor() *risk.Governor { return e.governor }

// Store exposes the persistence layer to API read handlers.
func (e *Engine) Store() *store.Store { return e.store }

// FetchOnce is the ~1 Hz activity: one bounded broker pull, validate,
// append. A failed tick is discarded; the warm-up gate protects
// consumers from the gap.
func (e *Engine) FetchOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, staleness(e.cfg))
	defer cancel()

	snap, err := e.broker.GetMarketSnapshot(ctx)
	if err != nil {
		metrics.BrokerFetches.WithLabelValues("error").Inc()
		return err
	}
	metrics.BrokerFetches.WithLabelValues("ok").Inc()

	now := e.cfg.Now()
	res := e.validator.Validate(snap, now, true)
	metrics.SnapshotsIngested.WithLabelValues(string(res.Status)).Inc()
	if !res.Valid {
		logger.Debugf("snapshot discarded (%s): %v", res.Status, res.Errors)
		return apperrors.New(kindFor(res.Status), fmt.Sprintf("snapshot rejected: %v", res.Errors))
	}
	for _, w := range res.Warnings {
		logger.Warnf("snapshot warning: %s", w)
	}

	// Accepted timestamps are monotone; an out-of-order tick is a
	// vendor replay and is dropped.
	if !e.lastTimestamp.IsZero() && snap.Timestamp.Before(e.lastTimestamp) {
		return apperrors.New(apperrors.DataStale, "out-of-order snapshot dropped")
	}
	e.lastTimestamp = snap.Timestamp

	e.ring.Append(snap)

	m := e.ring.MetricsSnapshot(now)
	metrics.BufferFillPercent.Set(m.FillPercentage)
	metrics.BufferReady.Set(boolGauge(m.Status == buffer.StatusReady))
	e.publish(Update{Kind: "buffer", Buffer: &m})
	return nil
}

func kindFor(s market.Status) apperrors.Kind {
	switch s {
	case market.StatusStale:
		return apperrors.DataStale
	case market.StatusIncomplete:
		return apperrors.DataIncomplete
	case market.StatusOutsideHours:
		return apperrors.OutsideHours
	default:
		return apperrors.DataUnavailable
	}
}

// GenerateSignal is the ~0.2 Hz activity: run the three engines over
// the buffered window, fuse, and build/check a plan when the signal is
// valid. Every fused signal is appended to the audit trail.
func (e *Engine) GenerateSignal(ctx context.Context) (*signal.TradeSignal, *plan.Plan, error) {
	now := e.cfg.Now()

	if !e.ring.TradeAllowed(now) {
		reason := e.ring.NoTradeReason(now)
		logger.Debugf("signal skipped: %s", reason)
		return nil, nil, apperrors.New(apperrors.BufferNotReady, reason)
	}

	snap, ok := e.ring.Latest()
	if !ok {
		return nil, nil, apperrors.New(apperrors.BufferNotReady, "buffer is empty")
	}

	vixLevel := regime.VIXLevelFromValue(snap.VIX.Value)
	reg := e.classifier.Classify(snap, vixLevel)
	metrics.RegimeClassifications.WithLabelValues(string(reg.Type)).Inc()

	window := windowFromSnapshots(e.ring.GetAll())
	conf := confluence.Score(window, regimeDirection(reg.Trend), e.cfg.MinConfluenceScore)
	metrics.ConfluenceScore.Set(conf.Total)

	intel := e.optsEngine.Analyze(snap.OptionsChain, snap.Spot.LTP)
	metrics.OptionsConfidence.Set(intel.Confidence)
	if intel.HasConflict {
		metrics.OptionsConflicts.Inc()
	}

	sig := signal.Fuse(snap, reg, conf, intel)
	metrics.SignalsGenerated.WithLabelValues(fmt.Sprintf("%t", sig.Valid)).Inc()
	if err := e.store.Signals().Append(sig); err != nil {
		logger.Errorf("persisting signal: %v", err)
	}
	e.publish(Update{Kind: "signal", Signal: &sig})

	if !sig.Valid {
		return &sig, nil, nil
	}

	p := plan.Build(sig, snap, reg, intel, plan.BuilderConfig{
		MaxRiskAmount: e.cfg.MaxRiskAmount,
		MinRiskReward: e.cfg.MinRiskReward,
		LotSize:       e.cfg.LotSize,
	}, now)

	if p.Valid {
		check := e.governor.CheckTradeRisk(p)
		if check.Allowed {
			metrics.RiskChecks.WithLabelValues("allowed").Inc()
			for _, w := range check.Warnings {
				p.Reasoning = append(p.Reasoning, "risk warning: "+w)
			}
		} else {
			metrics.RiskChecks.WithLabelValues("rejected").Inc()
			p.Status = plan.StatusRejected
			p.Valid = false
			p.RejectionReasons = append(p.RejectionReasons, check.Reasons...)
			if check.SuggestedLots > 0 {
				p.RejectionReasons = append(p.RejectionReasons,
					fmt.Sprintf("suggested smaller size: %d lot(s)", check.SuggestedLots))
			}
		}
	}

	metrics.PlansBuilt.WithLabelValues(string(p.Status)).Inc()
	if err := e.store.Plans().Append(p); err != nil {
		logger.Errorf("persisting plan: %v", err)
	}
	e.publish(Update{Kind: "plan", Plan: &p})

	if p.Valid {
		logger.Infof("plan %s: %s %s entry %.1f stop %.1f T1 %.1f T2 %.1f lots %d",
			p.ID, p.Direction, p.Instrument, p.Entry.Optimal, p.StopLoss, p.Target1, p.Target2, p.PositionLots)
	} else {
		logger.Infof("plan suppressed: %v", p.RejectionReasons)
	}

	return &sig, &p, nil
}

// RiskHeartbeat is the ~0.033 Hz activity: republish the current risk
// state so dashboards reflect capacity even between trades.
func (e *Engine) RiskHeartbeat() {
	st := e.governor.Snapshot()
	if st == nil {
		return
	}

	totalPnL, _ := st.TotalPnL.Float64()
	capacity, _ := st.RemainingRiskCapacity.Float64()
	metrics.RiskTotalPnL.Set(totalPnL)
	metrics.RiskTradesTaken.Set(float64(st.TradesTaken))
	metrics.RiskRemainingCapacity.Set(capacity)
	metrics.RiskHardShutdown.Set(boolGauge(st.HardShutdown))

	if err := e.store.RiskState().Upsert(*st); err != nil {
		logger.Errorf("persisting risk state: %v", err)
	}
	e.publish(Update{Kind: "risk", RiskState: st})
}

// DayStart runs at 09:10 local on weekdays: resume the day's risk
// state if one was already persisted (mid-day restart), otherwise
// initialize fresh; clear intraday classifier and options state.
func (e *Engine) DayStart() {
	now := e.cfg.Now()
	date := now.Format("2006-01-02")

	if saved, err := e.store.RiskState().Load(date); err == nil {
		e.governor.Restore(saved)
		logger.Infof("risk state resumed for %s (status %s)", date, saved.Status)
	} else {
		e.governor.InitializeDay(date, now)
	}

	e.classifier.ResetDay()
	e.optsEngine.ResetDay()
	e.RiskHeartbeat()
	logger.Infof("day started: %s", date)
}

// EndOfDay runs at 15:35 local on weekdays: expire leftover pending
// plans and write the final risk state.
func (e *Engine) EndOfDay() {
	now := e.cfg.Now()

	plans, err := e.store.Plans().Recent(50)
	if err != nil {
		logger.Errorf("loading plans for EOD sweep: %v", err)
	}
	for _, p := range plans {
		if p.Status == plan.StatusPending {
			if err := e.store.Plans().UpdateStatus(p.ID, plan.StatusExpired); err != nil {
				logger.Errorf("expiring plan %s: %v", p.ID, err)
			}
		}
	}

	e.RiskHeartbeat()
	if st := e.governor.Snapshot(); st != nil {
		logger.Infof("day closed %s: trades=%d pnl=%s status=%s",
			now.Format("2006-01-02"), st.TradesTaken, st.TotalPnL, st.Status)
	}
}

func (e *Engine) publish(u Update) {
	if e.OnUpdate != nil {
		e.OnUpdate(u)
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// regimeDirection maps the voted trend onto the confluence weighting
// direction; sideways supplies none.
func regimeDirection(t regime.Trend) *confluence.Direction {
	var d confluence.Direction
	switch t {
	case regime.TrendUp:
		d = confluence.Long
	case regime.TrendDown:
		d = confluence.Short
	default:
		return nil
	}
	return &d
}

// windowFromSnapshots derives per-tick bars from consecutive buffered
// snapshots: close-to-close moves with the session-volume delta as the
// bar volume.
func windowFromSnapshots(snaps []market.Snapshot) confluence.Window {
	if len(snaps) < 2 {
		return confluence.Window{}
	}
	bars := make([]confluence.Bar, 0, len(snaps)-1)
	for i := 1; i < len(snaps); i++ {
		prev, cur := snaps[i-1], snaps[i]
		open, close := prev.Spot.LTP, cur.Spot.LTP
		high, low := open, close
		if close > high {
			high = close
		}
		if open < low {
			low = open
		}
		vol := float64(cur.Spot.Session.Volume - prev.Spot.Session.Volume)
		if vol < 0 {
			vol = 0
		}
		bars = append(bars, confluence.Bar{Open: open, High: high, Low: low, Close: close, Volume: vol})
	}
	return confluence.Window{Bars: bars}
}
