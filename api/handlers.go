package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"optionsdesk/logger"
	"optionsdesk/plan"
	"optionsdesk/risk"
)

func (s *Server) handleStatus(c *gin.Context) {
	now := s.cfg.Now()
	m := s.engine.Ring().MetricsSnapshot(now)

	c.JSON(http.StatusOK, gin.H{
		"buffer":          m,
		"trade_allowed":   s.engine.Ring().TradeAllowed(now),
		"no_trade_reason": s.engine.Ring().NoTradeReason(now),
		"server_time":     now,
	})
}

func (s *Server) handleRecentSignals(c *gin.Context) {
	sigs, err := s.engine.Store().Signals().Recent(20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading signals: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": sigs})
}

func (s *Server) handleRecentPlans(c *gin.Context) {
	plans, err := s.engine.Store().Plans().Recent(20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading plans: " + err.Error()})
		return
	}

	// Plans past their lifetime transition to expired at read time.
	now := s.cfg.Now()
	for i := range plans {
		before := plans[i].Status
		plan.ExpireIfPast(&plans[i], now)
		if plans[i].Status != before {
			if err := s.engine.Store().Plans().UpdateStatus(plans[i].ID, plans[i].Status); err != nil {
				logger.Errorf("expiring plan %s: %v", plans[i].ID, err)
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

func (s *Server) handleGetPlan(c *gin.Context) {
	p, err := s.engine.Store().Plans().Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
		return
	}
	plan.ExpireIfPast(&p, s.cfg.Now())
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleRiskState(c *gin.Context) {
	st := s.engine.Governor().Snapshot()
	if st == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "risk day not initialized"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleRecentTrades(c *gin.Context) {
	trades, err := s.engine.Store().Trades().Recent(20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading trades: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

// handleTradeEntry logs that the operator acted on a plan. The governor
// re-checks the plan first: a rejection here is final, the TOTP only
// confirms the human, never bypasses the check.
func (s *Server) handleTradeEntry(c *gin.Context) {
	var req struct {
		PlanID     string  `json:"plan_id" binding:"required"`
		EntryPrice float64 `json:"entry_price" binding:"required"`
		TOTP       string  `json:"totp"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if !s.verifyTOTP(req.TOTP) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid TOTP code"})
		return
	}

	p, err := s.engine.Store().Plans().Get(req.PlanID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
		return
	}
	now := s.cfg.Now()
	plan.ExpireIfPast(&p, now)
	if p.Status != plan.StatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "plan is not actionable", "status": p.Status})
		return
	}

	check := s.engine.Governor().CheckTradeRisk(p)
	if !check.Allowed {
		resp := gin.H{"error": "risk check rejected", "reasons": check.Reasons}
		if check.SuggestedLots > 0 {
			resp["suggested_lots"] = check.SuggestedLots
		}
		c.JSON(http.StatusForbidden, resp)
		return
	}

	st := s.engine.Governor().RecordTradeEntry(p, now)

	trade := risk.Trade{
		ID:         uuid.NewString(),
		PlanID:     p.ID,
		Instrument: p.Instrument,
		Direction:  p.Direction,
		EntryPrice: decimal.NewFromFloat(req.EntryPrice),
		EntryTime:  now,
		Quantity:   int64(p.PositionLots * p.LotSize),
	}
	if err := s.engine.Store().Trades().Upsert(trade); err != nil {
		logger.Errorf("persisting trade entry: %v", err)
	}
	if err := s.engine.Store().Plans().UpdateStatus(p.ID, plan.StatusActive); err != nil {
		logger.Errorf("activating plan %s: %v", p.ID, err)
	}
	s.engine.RiskHeartbeat()

	c.JSON(http.StatusOK, gin.H{
		"trade":      trade,
		"risk_state": st,
		"warnings":   check.Warnings,
	})
}

// handleTradeExit closes a logged trade and folds the result into the
// daily risk state.
func (s *Server) handleTradeExit(c *gin.Context) {
	var req struct {
		TradeID   string  `json:"trade_id" binding:"required"`
		ExitPrice float64 `json:"exit_price" binding:"required"`
		Reason    string  `json:"reason"`
		TOTP      string  `json:"totp"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if !s.verifyTOTP(req.TOTP) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid TOTP code"})
		return
	}

	trade, err := s.engine.Store().Trades().Get(req.TradeID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "trade not found"})
		return
	}
	if trade.Closed {
		c.JSON(http.StatusConflict, gin.H{"error": "trade already closed"})
		return
	}

	now := s.cfg.Now()
	trade.Close(decimal.NewFromFloat(req.ExitPrice), now, req.Reason)

	st := s.engine.Governor().RecordTradeExit(trade, now)
	if err := s.engine.Store().Trades().Upsert(trade); err != nil {
		logger.Errorf("persisting trade exit: %v", err)
	}
	if err := s.engine.Store().Plans().UpdateStatus(trade.PlanID, plan.StatusExecuted); err != nil {
		logger.Errorf("closing plan %s: %v", trade.PlanID, err)
	}
	s.engine.RiskHeartbeat()

	c.JSON(http.StatusOK, gin.H{"trade": trade, "risk_state": st})
}
