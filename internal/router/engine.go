package router

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"dexrouter/internal/amm"
	"dexrouter/internal/graph"
	"dexrouter/internal/models"
)

var (
	ErrInvalidRequest = errors.New("invalid route request")
	ErrNoRouteFound   = errors.New("no route found")
)

// Search defaults applied when a request leaves a knob unset.
const (
	DefaultMaxHops = 3
	DefaultTopK    = 5
)

// Request describes one best-route query. MaxHops bounds path depth, TopK
// bounds branching per node, MinLiquidityUSD filters shallow pools, and
// MaxPriceImpact rejects paths whose execution strays too far from spot.
type Request struct {
	From            string
	To              string
	AmountIn        float64
	MaxHops         int
	TopK            int
	MinLiquidityUSD float64
	MaxPriceImpact  float64
}

// Engine finds the best-output swap path on a graph snapshot. It only reads
// the snapshot it is given: no shared state, no refreshes, safe for any
// number of concurrent queries.
type Engine struct {
	log *logrus.Logger
}

func NewEngine(log *logrus.Logger) *Engine {
	return &Engine{log: log}
}

// FindBestRoute runs a depth-bounded best-first enumeration from the source
// token. Classical shortest-path search does not apply here: an edge's
// output depends on the amount arriving at it, so candidate paths are
// evaluated hop by hop. Branching is bounded by expanding only the TopK
// edges per node, ranked by marginal output for the running amount.
func (e *Engine) FindBestRoute(ctx context.Context, snap *graph.Snapshot, req Request) (*models.Route, error) {
	from := strings.ToLower(strings.TrimSpace(req.From))
	to := strings.ToLower(strings.TrimSpace(req.To))

	if from == "" || to == "" {
		return nil, fmt.Errorf("%w: missing token address", ErrInvalidRequest)
	}
	if from == to {
		return nil, fmt.Errorf("%w: source and destination are the same token", ErrInvalidRequest)
	}
	if math.IsNaN(req.AmountIn) || math.IsInf(req.AmountIn, 0) || req.AmountIn <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if snap == nil || snap.Graph == nil {
		return nil, fmt.Errorf("%w: no snapshot available", ErrNoRouteFound)
	}
	if _, ok := snap.Token(to); !ok {
		return nil, fmt.Errorf("%w: unknown destination token %s", ErrNoRouteFound, to)
	}

	s := &search{
		snap:         snap,
		to:           to,
		amountIn:     req.AmountIn,
		maxHops:      req.MaxHops,
		topK:         req.TopK,
		minLiquidity: math.Max(req.MinLiquidityUSD, 0),
		maxImpact:    req.MaxPriceImpact,
		visited:      map[string]bool{from: true},
	}
	if s.maxHops <= 0 {
		s.maxHops = DefaultMaxHops
	}
	if s.topK <= 0 {
		s.topK = DefaultTopK
	}
	if s.maxImpact <= 0 {
		s.maxImpact = 1
	}
	s.hops = make([]models.Hop, 0, s.maxHops)
	s.pools = make([]string, 0, s.maxHops)

	if err := s.expand(ctx, from, req.AmountIn, 1, 0); err != nil {
		return nil, err
	}
	if s.best == nil {
		return nil, fmt.Errorf("%w: %s -> %s within %d hops", ErrNoRouteFound, from, to, s.maxHops)
	}

	e.log.WithFields(logrus.Fields{
		"from":       from,
		"to":         to,
		"hops":       len(s.best.hops),
		"amount_out": s.best.out,
		"generation": snap.Generation,
	}).Debug("Route found")

	return &models.Route{
		Path:        append([]string{from}, pathTokens(s.best.hops)...),
		Pools:       s.best.pools,
		Hops:        s.best.hops,
		AmountIn:    req.AmountIn,
		AmountOut:   s.best.out,
		PriceImpact: s.best.impact,
		Generation:  snap.Generation,
	}, nil
}

// search carries the per-query state. hops/pools form the current partial
// path and are pushed/popped as the walk descends and backtracks.
type search struct {
	snap         *graph.Snapshot
	to           string
	amountIn     float64
	maxHops      int
	topK         int
	minLiquidity float64
	maxImpact    float64

	hops    []models.Hop
	pools   []string
	visited map[string]bool
	best    *route
}

// route is a completed candidate path. key is the pool-address sequence
// used for the final deterministic tie-break.
type route struct {
	hops   []models.Hop
	pools  []string
	out    float64
	impact float64
	key    string
}

// step is one admissible edge expansion, priced for the running amount.
type step struct {
	edge      graph.Edge
	in        float64
	out       float64
	hopImpact float64
	spotAcc   float64
	cumImpact float64
}

// expand grows the current partial path from node by one hop. running is
// the amount arriving at node, spotAcc the product of per-hop spot prices
// along the path so far, depth the number of hops already taken.
func (s *search) expand(ctx context.Context, node string, running, spotAcc float64, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth >= s.maxHops {
		return nil
	}

	steps := s.rank(node, running, spotAcc)
	for _, st := range steps {
		if st.edge.To == s.to {
			s.complete(st)
			continue
		}
		if depth+1 >= s.maxHops {
			continue
		}

		s.hops = append(s.hops, hopFromStep(st))
		s.pools = append(s.pools, st.edge.Pool)
		s.visited[st.edge.To] = true

		err := s.expand(ctx, st.edge.To, st.out, st.spotAcc, depth+1)

		s.visited[st.edge.To] = false
		s.pools = s.pools[:len(s.pools)-1]
		s.hops = s.hops[:len(s.hops)-1]

		if err != nil {
			return err
		}
	}
	return nil
}

// rank filters the node's edges (liquidity floor, no cycles, quotable,
// impact ceiling), prices each for the running amount, and keeps the topK
// by marginal output. Ties fall to deeper liquidity, then pool address, so
// truncation is reproducible.
func (s *search) rank(node string, running, spotAcc float64) []step {
	edges := s.snap.Edges(node)
	steps := make([]step, 0, len(edges))

	for _, edge := range edges {
		if edge.LiquidityUSD < s.minLiquidity || s.visited[edge.To] {
			continue
		}
		out, hopImpact, err := amm.SwapOutput(running, edge.ReserveIn, edge.ReserveOut, edge.Fee)
		if err != nil {
			continue
		}
		if tok, ok := s.snap.Token(edge.To); ok {
			out = amm.TruncateToDecimals(out, tok.Decimals)
		}
		if out <= 0 {
			continue
		}

		next := spotAcc * amm.SpotPrice(edge.ReserveIn, edge.ReserveOut)
		if next <= 0 || math.IsInf(next, 0) {
			continue
		}
		// Cumulative impact versus the composed spot price. It only grows
		// as hops are appended, so exceeding the ceiling prunes the whole
		// subtree.
		cum := 1 - (out/s.amountIn)/next
		if cum > s.maxImpact {
			continue
		}

		steps = append(steps, step{
			edge:      edge,
			in:        running,
			out:       out,
			hopImpact: hopImpact,
			spotAcc:   next,
			cumImpact: cum,
		})
	}

	sort.Slice(steps, func(i, j int) bool {
		if steps[i].out != steps[j].out {
			return steps[i].out > steps[j].out
		}
		if steps[i].edge.LiquidityUSD != steps[j].edge.LiquidityUSD {
			return steps[i].edge.LiquidityUSD > steps[j].edge.LiquidityUSD
		}
		return steps[i].edge.Pool < steps[j].edge.Pool
	})
	if len(steps) > s.topK {
		steps = steps[:s.topK]
	}
	return steps
}

// complete records a path that reached the destination, keeping it only if
// it beats the best so far: greatest output, then fewest hops, then lowest
// impact, then lexicographically smallest pool sequence.
func (s *search) complete(st step) {
	hops := make([]models.Hop, len(s.hops)+1)
	copy(hops, s.hops)
	hops[len(s.hops)] = hopFromStep(st)

	pools := make([]string, len(s.pools)+1)
	copy(pools, s.pools)
	pools[len(s.pools)] = st.edge.Pool

	cand := &route{
		hops:   hops,
		pools:  pools,
		out:    st.out,
		impact: math.Max(st.cumImpact, 0),
		key:    strings.Join(pools, ","),
	}
	if s.best == nil || betterRoute(cand, s.best) {
		s.best = cand
	}
}

func betterRoute(a, b *route) bool {
	if a.out != b.out {
		return a.out > b.out
	}
	if len(a.hops) != len(b.hops) {
		return len(a.hops) < len(b.hops)
	}
	if a.impact != b.impact {
		return a.impact < b.impact
	}
	return a.key < b.key
}

func hopFromStep(st step) models.Hop {
	return models.Hop{
		Pool:        st.edge.Pool,
		TokenIn:     st.edge.From,
		TokenOut:    st.edge.To,
		AmountIn:    st.in,
		AmountOut:   st.out,
		Fee:         st.edge.Fee,
		PriceImpact: st.hopImpact,
	}
}

func pathTokens(hops []models.Hop) []string {
	out := make([]string, len(hops))
	for i, h := range hops {
		out[i] = h.TokenOut
	}
	return out
}
