package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crypto-scenario-engine/internal/candles"
	"crypto-scenario-engine/internal/forwardtest"
	"crypto-scenario-engine/internal/indicators"
	"crypto-scenario-engine/internal/scenario"
)

const (
	defaultCandleLimit = 500
	maxCandleLimit     = 1000
)

// handleHealth returns server health status.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"sessions":  len(s.sessions.IDs()),
		"timestamp": time.Now().UTC(),
	})
}

type analyzeRequest struct {
	Symbol   string `json:"symbol" binding:"required"`
	Interval string `json:"interval" binding:"required"`
	Limit    int    `json:"limit"`
}

func (r *analyzeRequest) normalize() {
	if r.Limit <= 0 {
		r.Limit = defaultCandleLimit
	}
	if r.Limit > maxCandleLimit {
		r.Limit = maxCandleLimit
	}
}

// handleAnalyze runs the full indicator, pattern and level pipeline for one
// symbol and returns the combined picture.
func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "symbol and interval are required")
		return
	}
	req.normalize()

	result, err := s.analyzer.Analyze(c.Request.Context(), req.Symbol, req.Interval, req.Limit)
	if err != nil {
		s.analysisError(c, err)
		return
	}
	successResponse(c, result)
}

type scenarioRequest struct {
	analyzeRequest
	Direction string `json:"direction"` // optional long/short override
}

// handleBuildScenario builds a trade scenario for one symbol.
func (s *Server) handleBuildScenario(c *gin.Context) {
	var req scenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "symbol and interval are required")
		return
	}
	req.normalize()

	hint, ok := parseDirection(req.Direction)
	if !ok {
		errorResponse(c, http.StatusBadRequest, "direction must be long or short")
		return
	}

	sc, err := s.analyzer.BuildScenario(c.Request.Context(), req.Symbol, req.Interval, req.Limit, hint)
	if err != nil {
		s.analysisError(c, err)
		return
	}
	successResponse(c, sc)
}

// handleCurrentPrice returns the latest traded price for a symbol.
func (s *Server) handleCurrentPrice(c *gin.Context) {
	symbol := c.Param("symbol")

	price, err := s.provider.GetCurrentPrice(c.Request.Context(), symbol)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "failed to fetch current price")
		return
	}
	successResponse(c, gin.H{"symbol": symbol, "price": price})
}

type createSessionRequest struct {
	EntryMode string `json:"entry_mode"` // aggressive (default) or conservative
}

// handleCreateSession registers a new paper-trading session.
func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		errorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	mode := forwardtest.EntryMode(req.EntryMode)
	switch mode {
	case "", forwardtest.EntryAggressive, forwardtest.EntryConservative:
	default:
		errorResponse(c, http.StatusBadRequest, "entry_mode must be aggressive or conservative")
		return
	}

	session := s.sessions.Create(forwardtest.Config{
		EntryMode: mode,
		Logger:    s.log,
	})
	successResponse(c, gin.H{"session_id": session.ID()})
}

// handleListSessions returns all session ids.
func (s *Server) handleListSessions(c *gin.Context) {
	successResponse(c, gin.H{"sessions": s.sessions.IDs()})
}

// handleSessionStats returns aggregate statistics for one session.
func (s *Server) handleSessionStats(c *gin.Context) {
	session, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, "session not found")
		return
	}
	successResponse(c, session.Stats())
}

// handleRemoveSession drops a session and its positions.
func (s *Server) handleRemoveSession(c *gin.Context) {
	if _, err := s.sessions.Get(c.Param("id")); err != nil {
		errorResponse(c, http.StatusNotFound, "session not found")
		return
	}
	s.sessions.Remove(c.Param("id"))
	successResponse(c, gin.H{"removed": true})
}

type openPositionRequest struct {
	Size float64 `json:"size" binding:"required"`

	// Either a prebuilt scenario or the inputs to build one.
	Scenario  *scenario.Scenario `json:"scenario"`
	Symbol    string             `json:"symbol"`
	Interval  string             `json:"interval"`
	Limit     int                `json:"limit"`
	Direction string             `json:"direction"`
}

// handleOpenPosition opens a simulated position inside a session, either from
// a scenario supplied in the body or from one built on the fly.
func (s *Server) handleOpenPosition(c *gin.Context) {
	session, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, "session not found")
		return
	}

	var req openPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "size is required")
		return
	}

	sc := req.Scenario
	if sc == nil {
		if req.Symbol == "" || req.Interval == "" {
			errorResponse(c, http.StatusBadRequest, "provide a scenario or symbol and interval")
			return
		}
		if req.Limit <= 0 {
			req.Limit = defaultCandleLimit
		}
		hint, ok := parseDirection(req.Direction)
		if !ok {
			errorResponse(c, http.StatusBadRequest, "direction must be long or short")
			return
		}
		sc, err = s.analyzer.BuildScenario(c.Request.Context(), req.Symbol, req.Interval, req.Limit, hint)
		if err != nil {
			s.analysisError(c, err)
			return
		}
	}

	pos, err := session.OpenFromScenario(sc, req.Size, time.Now().UTC())
	if err != nil {
		if errors.Is(err, forwardtest.ErrBadScenario) {
			errorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		errorResponse(c, http.StatusInternalServerError, "failed to open position")
		return
	}
	successResponse(c, pos)
}

type tickRequest struct {
	Price float64    `json:"price" binding:"required"`
	At    *time.Time `json:"at"`
}

// handleTick feeds one price tick into a session.
func (s *Server) handleTick(c *gin.Context) {
	session, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, "session not found")
		return
	}

	var req tickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "price is required")
		return
	}

	at := time.Now().UTC()
	if req.At != nil {
		at = req.At.UTC()
	}

	if err := session.OnTick(req.Price, at); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	successResponse(c, gin.H{"open_positions": len(session.OpenPositions())})
}

type closeManualRequest struct {
	Price  float64 `json:"price" binding:"required"`
	Reason string  `json:"reason"`
}

// handleCloseManual closes an open position at a caller-supplied price.
func (s *Server) handleCloseManual(c *gin.Context) {
	session, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, "session not found")
		return
	}

	var req closeManualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "price is required")
		return
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}

	if err := session.CloseManual(c.Param("pid"), req.Price, req.Reason, time.Now().UTC()); err != nil {
		if errors.Is(err, forwardtest.ErrNotOpen) {
			errorResponse(c, http.StatusConflict, "position is not open")
			return
		}
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	successResponse(c, session.Position(c.Param("pid")))
}

// analysisError maps pipeline failures to HTTP status codes.
func (s *Server) analysisError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, candles.ErrEmptySeries), errors.Is(err, indicators.ErrInsufficientData):
		errorResponse(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, scenario.ErrInsufficientVolatility):
		errorResponse(c, http.StatusUnprocessableEntity, err.Error())
	default:
		s.log.Error().Err(err).Msg("analysis failed")
		errorResponse(c, http.StatusBadGateway, "analysis failed")
	}
}

// parseDirection converts an optional request field into a direction hint.
// The second return is false for unrecognized values.
func parseDirection(v string) (*scenario.Direction, bool) {
	switch v {
	case "":
		return nil, true
	case string(scenario.Long):
		d := scenario.Long
		return &d, true
	case string(scenario.Short):
		d := scenario.Short
		return &d, true
	default:
		return nil, false
	}
}
