package server

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"dexrouter/internal/ai"
	"dexrouter/internal/constants"
	"dexrouter/internal/graph"
	"dexrouter/internal/refresher"
	"dexrouter/internal/router"
)

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Publisher    *graph.Publisher        // Source of the current graph snapshot
	Engine       *router.Engine          // Best-route search
	Status       func() refresher.Status // Refresh freshness, nil when no refresher runs
	AI           *ai.Agent               // AI agent for natural language queries
	AIBaseConfig ai.AgentConfig          // Base configuration for AI agents
	DevMode      bool                    // Enable detailed error responses in development
	Logger       *logrus.Logger          // Structured logger

	// Route search defaults applied when the request does not override them.
	MaxHops         int
	TopK            int
	MinLiquidityUSD float64
	MaxPriceImpact  float64
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// Health reports whether a graph snapshot is available and how fresh it is
func (h *Handlers) Health(c echo.Context) error {
	var resp HealthResponse
	if snap := h.Publisher.Current(); snap != nil {
		built := snap.BuiltAt
		resp.OK = true
		resp.Generation = snap.Generation
		resp.Tokens = snap.TokenCount()
		resp.Pools = snap.PoolCount()
		resp.BuiltAt = &built
		resp.AgeMs = snap.Age(time.Now()).Milliseconds()
	}
	if h.Status != nil {
		st := h.Status()
		resp.Degraded = st.Degraded
		resp.ConsecutiveFailures = st.ConsecutiveFailures
	}
	return c.JSON(http.StatusOK, resp)
}

// Tokens returns every token in the current snapshot, sorted by symbol
func (h *Handlers) Tokens(c echo.Context) error {
	snap := h.Publisher.Current()
	if snap == nil {
		return h.err(c, http.StatusServiceUnavailable, "no graph snapshot available", nil)
	}

	items := snap.Tokens()
	sort.Slice(items, func(i, j int) bool {
		if items[i].Symbol != items[j].Symbol {
			return items[i].Symbol < items[j].Symbol
		}
		return items[i].Address < items[j].Address
	})
	return c.JSON(http.StatusOK, map[string]any{"items": items, "generation": snap.Generation})
}

// TopTokens returns the highest-priced tokens in the current snapshot
// Accepts limit query parameter (default: 100, range: 1-200)
func (h *Handlers) TopTokens(c echo.Context) error {
	limitStr := c.QueryParam("limit")
	limit := constants.DefaultTopTokensLimit
	if limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > constants.MaxTopTokensLimit {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 200"})
	}

	snap := h.Publisher.Current()
	if snap == nil {
		return h.err(c, http.StatusServiceUnavailable, "no graph snapshot available", nil)
	}

	items := snap.Tokens()
	sort.Slice(items, func(i, j int) bool {
		if items[i].PriceUSD != items[j].PriceUSD {
			return items[i].PriceUSD > items[j].PriceUSD
		}
		return items[i].Address < items[j].Address
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items, "generation": snap.Generation})
}

// BestRoute finds the best multi-hop swap route between two tokens
// Query parameters: from and to (token addresses), amount (human units of
// the from token), optional max_hops override
func (h *Handlers) BestRoute(c echo.Context) error {
	from := strings.TrimSpace(c.QueryParam("from"))
	to := strings.TrimSpace(c.QueryParam("to"))
	amountStr := strings.TrimSpace(c.QueryParam("amount"))

	if from == "" {
		return h.err(c, http.StatusBadRequest, "invalid from", map[string]any{"from": "required"})
	}
	if to == "" {
		return h.err(c, http.StatusBadRequest, "invalid to", map[string]any{"to": "required"})
	}
	if amountStr == "" {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": "required"})
	}
	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": "must be a number"})
	}

	maxHops := h.MaxHops
	if v := strings.TrimSpace(c.QueryParam("max_hops")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > constants.MaxHopsCeiling {
			return h.err(c, http.StatusBadRequest, "invalid max_hops", map[string]any{"max_hops": "min 1 max 5"})
		}
		maxHops = n
	}

	snap := h.Publisher.Current()
	if snap == nil {
		return h.err(c, http.StatusServiceUnavailable, "no graph snapshot available", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	route, err := h.Engine.FindBestRoute(ctx, snap, router.Request{
		From:            from,
		To:              to,
		AmountIn:        amount,
		MaxHops:         maxHops,
		TopK:            h.TopK,
		MinLiquidityUSD: h.MinLiquidityUSD,
		MaxPriceImpact:  h.MaxPriceImpact,
	})
	if err != nil {
		switch {
		case errors.Is(err, router.ErrInvalidRequest):
			return h.err(c, http.StatusBadRequest, "invalid route request", map[string]any{"err": err.Error()})
		case errors.Is(err, router.ErrNoRouteFound):
			return h.err(c, http.StatusNotFound, "no route found", map[string]any{"err": err.Error()})
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			return h.err(c, http.StatusServiceUnavailable, "route search interrupted", nil)
		default:
			return h.err(c, http.StatusInternalServerError, "route search failed", nil)
		}
	}
	return c.JSON(http.StatusOK, route)
}

// AIAsk processes natural language questions about pool history using AI
// Supports optional model override for one-off requests
// Returns SQL query and answer with execution time
func (h *Handlers) AIAsk(c echo.Context) error {
	if h.AI == nil {
		return h.err(c, http.StatusBadRequest, "ai is not configured", nil)
	}

	var req AIAskRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return h.err(c, http.StatusBadRequest, "question is required", map[string]any{"question": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	start := time.Now()

	// Use default AI agent or create temporary one with custom model
	agent := h.AI
	var tmp *ai.Agent
	if m := strings.TrimSpace(req.Model); m != "" {
		cfg := h.AIBaseConfig
		cfg.Model = m
		a, err := ai.NewAgent(ctx, cfg)
		if err != nil {
			return h.err(c, http.StatusInternalServerError, "failed to create ai agent", nil)
		}
		tmp = a
		agent = a
		defer func() {
			_ = tmp.Close() // Clean up temporary agent
		}()
	}

	res, err := agent.Ask(ctx, req.Question)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "ai ask failed", map[string]any{"err": err.Error()})
	}

	return c.JSON(http.StatusOK, AIAskResponse{SQL: res.SQL, Answer: res.Answer, TookMs: time.Since(start).Milliseconds()})
}
