package adminapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"colorgame/domain/entities"
	"colorgame/domain/interfaces"
	"colorgame/domain/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Engine is the admin trigger surface of the game engine
type Engine interface {
	ActiveRounds(ctx context.Context) ([]*entities.Round, error)
	ForceEnd(ctx context.Context, periodID string) (*interfaces.SettlementResult, error)
	ForceEndAll(ctx context.Context) ([]*interfaces.SettlementResult, error)
	SetManipulation(ctx context.Context, scope string, enabled bool) error
	ManipulationState() services.ManipulationState
	Exposure(ctx context.Context, periodID string) (*entities.Exposure, error)
}

// DebugResponse is the envelope of every admin API response
type DebugResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// RoundSummary describes an active round
type RoundSummary struct {
	ID             string    `json:"id"`
	Period         string    `json:"period"`
	Duration       string    `json:"duration"`
	EndTime        time.Time `json:"end_time"`
	TotalBets      int64     `json:"total_bets"`
	TotalBetAmount int64     `json:"total_bet_amount"`
	State          string    `json:"state"`
	RemainingMs    int64     `json:"remaining_ms"`
}

// ExposureSummary is the amount staked on every outcome value of a round
type ExposureSummary struct {
	RoundID string           `json:"round_id"`
	Numbers []int64          `json:"numbers"`
	Colors  map[string]int64 `json:"colors"`
	Sizes   map[string]int64 `json:"sizes"`
	Total   int64            `json:"total"`
}

// SettlementSummary describes one resolution
type SettlementSummary struct {
	RoundID     string `json:"round_id"`
	Period      string `json:"period"`
	Number      int    `json:"number"`
	Color       string `json:"color"`
	Size        string `json:"size"`
	Manipulated bool   `json:"manipulated"`
	BetsSettled int    `json:"bets_settled"`
	BetsFailed  int    `json:"bets_failed"`
	TotalPaid   int64  `json:"total_paid"`
	SuccessorID string `json:"successor_id,omitempty"`
}

// ForceEndRequest selects one round; an empty period id ends every active round
type ForceEndRequest struct {
	PeriodID string `json:"period_id"`
}

// ManipulationRequest sets the global flag or a round override
type ManipulationRequest struct {
	Scope   string `json:"scope" binding:"required"`
	Enabled *bool  `json:"enabled" binding:"required"`
}

// Server is the internal admin HTTP API. It only listens on loopback.
type Server struct {
	engine Engine
	router *gin.Engine
	server *http.Server
	now    func() time.Time
}

// NewServer creates an admin API for engine on the given port
func NewServer(engine Engine, port int) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		engine: engine,
		router: router,
		now:    time.Now,
		server: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", port),
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	admin := s.router.Group("/admin")
	admin.GET("/rounds", s.handleRounds)
	admin.POST("/rounds/force-end", s.handleForceEnd)
	admin.GET("/rounds/:id/exposure", s.handleExposure)
	admin.GET("/manipulation", s.handleGetManipulation)
	admin.POST("/manipulation", s.handleSetManipulation)
}

// Handler returns the HTTP handler of the API
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves the API in the background
func (s *Server) Start() {
	go func() {
		log.WithField("addr", s.server.Addr).Info("Admin API listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Admin API server error")
		}
	}()
}

// Shutdown stops the API, waiting for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRounds(c *gin.Context) {
	rounds, err := s.engine.ActiveRounds(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	now := s.now()
	summaries := make([]RoundSummary, 0, len(rounds))
	for _, r := range rounds {
		summaries = append(summaries, RoundSummary{
			ID:             r.ID,
			Period:         r.Period,
			Duration:       string(r.Duration),
			EndTime:        r.EndTime,
			TotalBets:      r.TotalBets,
			TotalBetAmount: r.TotalBetAmount,
			State:          string(r.State()),
			RemainingMs:    r.TimeRemaining(now).Milliseconds(),
		})
	}

	c.JSON(http.StatusOK, DebugResponse{
		Success: true,
		Message: fmt.Sprintf("%d active rounds", len(summaries)),
		Data:    summaries,
	})
}

func (s *Server) handleExposure(c *gin.Context) {
	periodID := c.Param("id")
	exposure, err := s.engine.Exposure(c.Request.Context(), periodID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary := ExposureSummary{
		RoundID: periodID,
		Numbers: exposure.Numbers[:],
		Colors:  make(map[string]int64, len(entities.AllColors)),
		Sizes:   make(map[string]int64, len(entities.AllSizes)),
		Total:   exposure.Total(),
	}
	for _, color := range entities.AllColors {
		summary.Colors[string(color)] = exposure.Colors[color]
	}
	for _, size := range entities.AllSizes {
		summary.Sizes[string(size)] = exposure.Sizes[size]
	}

	c.JSON(http.StatusOK, DebugResponse{
		Success: true,
		Message: fmt.Sprintf("%d staked on round %s", summary.Total, periodID),
		Data:    summary,
	})
}

func (s *Server) handleForceEnd(c *gin.Context) {
	// an empty body ends every round; the length header is not trusted since
	// chunked requests report -1
	var req ForceEndRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithStatus(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := c.Request.Context()
	if req.PeriodID != "" {
		result, err := s.engine.ForceEnd(ctx, req.PeriodID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, DebugResponse{
			Success: true,
			Message: "Round force-ended",
			Data:    summarize(result),
		})
		return
	}

	results, err := s.engine.ForceEndAll(ctx)
	summaries := make([]SettlementSummary, 0, len(results))
	for _, r := range results {
		summaries = append(summaries, summarize(r))
	}
	if err != nil {
		log.WithError(err).Error("Force-end of all rounds partially failed")
		c.JSON(http.StatusInternalServerError, DebugResponse{
			Success: false,
			Error:   err.Error(),
			Data:    summaries,
		})
		return
	}

	c.JSON(http.StatusOK, DebugResponse{
		Success: true,
		Message: fmt.Sprintf("%d rounds force-ended", len(summaries)),
		Data:    summaries,
	})
}

func (s *Server) handleGetManipulation(c *gin.Context) {
	c.JSON(http.StatusOK, DebugResponse{
		Success: true,
		Data:    s.engine.ManipulationState(),
	})
}

func (s *Server) handleSetManipulation(c *gin.Context) {
	var req ManipulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithStatus(c, http.StatusBadRequest, "Invalid request body: scope and enabled are required")
		return
	}

	if err := s.engine.SetManipulation(c.Request.Context(), req.Scope, *req.Enabled); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, DebugResponse{
		Success: true,
		Message: fmt.Sprintf("Manipulation for %s set to %t", req.Scope, *req.Enabled),
		Data:    s.engine.ManipulationState(),
	})
}

func summarize(result *interfaces.SettlementResult) SettlementSummary {
	summary := SettlementSummary{
		RoundID:     result.Round.ID,
		Period:      result.Round.Period,
		BetsSettled: result.BetsSettled,
		BetsFailed:  result.BetsFailed,
		TotalPaid:   result.TotalPaid,
	}
	if result.Result != nil {
		summary.Number = result.Result.Number
		summary.Color = string(result.Result.Color)
		summary.Size = string(result.Result.Size)
		summary.Manipulated = result.Result.Manipulated
	}
	if result.Successor != nil {
		summary.SuccessorID = result.Successor.ID
	}
	return summary
}

// statusFor maps engine errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, entities.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrSettlementAlreadyDone):
		return http.StatusConflict
	case errors.Is(err, entities.ErrRoundNotOpen):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrConcurrencyConflict):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondWithError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("Admin request failed")
	}
	respondWithStatus(c, status, err.Error())
}

func respondWithStatus(c *gin.Context, status int, message string) {
	c.JSON(status, DebugResponse{
		Success: false,
		Error:   message,
	})
}
