package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"tradepilot/internal/auth"
	"tradepilot/internal/risk"
	"tradepilot/internal/signal"
)

func (s *Server) handleHealth(c *gin.Context) {
	status := "ok"
	if s.manager.Degraded() {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"degraded": s.manager.Degraded(),
	})
}

func (s *Server) handlePortfolio(c *gin.Context) {
	c.JSON(http.StatusOK, s.manager.GetPortfolioStatus())
}

func (s *Server) handleOrders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"orders": s.manager.Orders()})
}

func (s *Server) handleSignals(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"signals": s.pipeline.ActiveSignals()})
}

// handleVotes returns per-indicator votes for one symbol, including the
// case where a single indicator voted but no alert fired.
func (s *Server) handleVotes(c *gin.Context) {
	symbol := c.Param("symbol")
	votes := s.pipeline.IndicatorVotes(symbol)
	if votes == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no market data for symbol"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "votes": votes})
}

// handleSubmitSignal accepts an operator-issued signal. The payload goes
// through the strict decoder; an invalid body is rejected before the gate
// ever sees it.
func (s *Server) handleSubmitSignal(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	candidate, err := signal.DecodeCandidate(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	verdict, result, err := s.pipeline.SubmitManual(c.Request.Context(), candidate)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"verdict": verdict,
			"result":  result,
			"error":   err.Error(),
		})
		return
	}
	if !verdict.Accepted {
		c.JSON(http.StatusConflict, gin.H{"verdict": verdict})
		return
	}
	c.JSON(http.StatusOK, gin.H{"verdict": verdict, "result": result})
}

func (s *Server) handleEquity(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"current":  s.tracker.Current(),
		"peak":     s.tracker.Peak(),
		"drawdown": s.tracker.Drawdown(),
		"history":  s.tracker.History(),
	})
}

func (s *Server) handleGetLimits(c *gin.Context) {
	c.JSON(http.StatusOK, s.gate.Limits())
}

// handleUpdateLimits replaces the risk limits. The change is attributed to
// the authenticated operator and logged with old and new values.
func (s *Server) handleUpdateLimits(c *gin.Context) {
	var limits risk.Limits
	if err := c.ShouldBindJSON(&limits); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if limits.MinConfidence < 0 || limits.MinConfidence > 1 || limits.MaxOpenPositions <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limits out of range"})
		return
	}

	s.gate.UpdateLimits(limits, auth.Operator(c))
	c.JSON(http.StatusOK, s.gate.Limits())
}
