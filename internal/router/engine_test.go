package router

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexrouter/internal/graph"
	"dexrouter/internal/models"
)

func newTestEngine() *Engine {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return NewEngine(log)
}

func token(addr, symbol string) models.Token {
	return models.Token{Address: addr, Symbol: symbol, Name: symbol, Decimals: 18, PriceUSD: 1}
}

func pool(addr, t0, t1 string, r0, r1, fee, liq float64) models.Pool {
	return models.Pool{
		Address: addr, Token0: t0, Token1: t1,
		Reserve0: r0, Reserve1: r1, Fee: fee, LiquidityUSD: liq,
	}
}

func snapshotOf(t *testing.T, tokens []models.Token, pools []models.Pool) *graph.Snapshot {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	g := graph.NewBuilder(log).Build(tokens, pools)
	return graph.NewSnapshot(g, 7, time.Now())
}

func abcTokens() []models.Token {
	return []models.Token{
		token("0xaaa", "AAA"), token("0xbbb", "BBB"),
		token("0xccc", "CCC"), token("0xddd", "DDD"),
	}
}

func TestFindBestRouteSingleHop(t *testing.T) {
	snap := snapshotOf(t, abcTokens(), []models.Pool{
		pool("0xp1", "0xaaa", "0xbbb", 1000, 1000, 0, 2000),
	})

	r, err := newTestEngine().FindBestRoute(context.Background(), snap, Request{
		From: "0xaaa", To: "0xbbb", AmountIn: 100,
	})
	require.NoError(t, err)

	// 1000*100/(1000+100) = 90.909...
	assert.InDelta(t, 90.9090909, r.AmountOut, 1e-6)
	assert.Equal(t, []string{"0xaaa", "0xbbb"}, r.Path)
	assert.Equal(t, []string{"0xp1"}, r.Pools)
	require.Len(t, r.Hops, 1)
	assert.Equal(t, 100.0, r.Hops[0].AmountIn)
	assert.InDelta(t, 0.0909090, r.PriceImpact, 1e-6)
	assert.Equal(t, uint64(7), r.Generation)
	assert.Equal(t, 100.0, r.AmountIn)
}

func TestFindBestRouteInvalidRequest(t *testing.T) {
	snap := snapshotOf(t, abcTokens(), []models.Pool{
		pool("0xp1", "0xaaa", "0xbbb", 1000, 1000, 0, 2000),
	})
	eng := newTestEngine()

	tests := []struct {
		name string
		req  Request
	}{
		{"same token", Request{From: "0xaaa", To: "0xaaa", AmountIn: 1}},
		{"same token mixed case", Request{From: "0xAAA", To: "0xaaa", AmountIn: 1}},
		{"zero amount", Request{From: "0xaaa", To: "0xbbb", AmountIn: 0}},
		{"negative amount", Request{From: "0xaaa", To: "0xbbb", AmountIn: -3}},
		{"empty from", Request{From: "", To: "0xbbb", AmountIn: 1}},
		{"empty to", Request{From: "0xaaa", To: "", AmountIn: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.FindBestRoute(context.Background(), snap, tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestFindBestRouteNoRoute(t *testing.T) {
	// AAA-BBB connected, CCC isolated
	snap := snapshotOf(t, abcTokens(), []models.Pool{
		pool("0xp1", "0xaaa", "0xbbb", 1000, 1000, 0, 2000),
	})
	eng := newTestEngine()

	_, err := eng.FindBestRoute(context.Background(), snap, Request{From: "0xaaa", To: "0xccc", AmountIn: 10})
	assert.ErrorIs(t, err, ErrNoRouteFound)

	_, err = eng.FindBestRoute(context.Background(), snap, Request{From: "0xaaa", To: "0xnope", AmountIn: 10})
	assert.ErrorIs(t, err, ErrNoRouteFound)

	_, err = eng.FindBestRoute(context.Background(), snap, Request{From: "0xnope", To: "0xbbb", AmountIn: 10})
	assert.ErrorIs(t, err, ErrNoRouteFound)

	_, err = eng.FindBestRoute(context.Background(), nil, Request{From: "0xaaa", To: "0xbbb", AmountIn: 10})
	assert.ErrorIs(t, err, ErrNoRouteFound)
}

func TestFindBestRouteMultiHopBeatsShallowDirect(t *testing.T) {
	snap := snapshotOf(t, abcTokens(), []models.Pool{
		// direct pool is shallow: 100 in returns only ~50
		pool("0xdirect", "0xaaa", "0xbbb", 100, 100, 0, 200),
		pool("0xac", "0xaaa", "0xccc", 10000, 10000, 0, 20000),
		pool("0xcb", "0xccc", "0xbbb", 10000, 10000, 0, 20000),
	})

	r, err := newTestEngine().FindBestRoute(context.Background(), snap, Request{
		From: "0xaaa", To: "0xbbb", AmountIn: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"0xaaa", "0xccc", "0xbbb"}, r.Path)
	assert.Equal(t, []string{"0xac", "0xcb"}, r.Pools)
	assert.InDelta(t, 98.0392, r.AmountOut, 1e-3)
	// hop amounts chain: out of hop 1 feeds hop 2
	require.Len(t, r.Hops, 2)
	assert.Equal(t, 100.0, r.Hops[0].AmountIn)
	assert.Equal(t, r.Hops[0].AmountOut, r.Hops[1].AmountIn)
	assert.Equal(t, r.Hops[1].AmountOut, r.AmountOut)
	// composed spot is 1.0, execution 0.98 -> ~2% impact
	assert.InDelta(t, 0.0196, r.PriceImpact, 1e-3)
}

func TestFindBestRouteOutputDecidesNotLiquidityLabel(t *testing.T) {
	// the shallow pool advertises more liquidity, the deep pool quotes more
	// output; output must win
	snap := snapshotOf(t, abcTokens(), []models.Pool{
		pool("0xshallow", "0xaaa", "0xbbb", 1000, 1000, 0, 999999),
		pool("0xdeep", "0xaaa", "0xbbb", 100000, 100000, 0, 10),
	})

	r, err := newTestEngine().FindBestRoute(context.Background(), snap, Request{
		From: "0xaaa", To: "0xbbb", AmountIn: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0xdeep"}, r.Pools)
	assert.InDelta(t, 99.9001, r.AmountOut, 1e-3)
}

func TestFindBestRouteHopBound(t *testing.T) {
	chain := []models.Pool{
		pool("0xab", "0xaaa", "0xbbb", 10000, 10000, 0, 1000),
		pool("0xbc", "0xbbb", "0xccc", 10000, 10000, 0, 1000),
		pool("0xcd", "0xccc", "0xddd", 10000, 10000, 0, 1000),
	}
	snap := snapshotOf(t, abcTokens(), chain)
	eng := newTestEngine()

	_, err := eng.FindBestRoute(context.Background(), snap, Request{
		From: "0xaaa", To: "0xddd", AmountIn: 10, MaxHops: 2,
	})
	assert.ErrorIs(t, err, ErrNoRouteFound)

	r, err := eng.FindBestRoute(context.Background(), snap, Request{
		From: "0xaaa", To: "0xddd", AmountIn: 10, MaxHops: 3,
	})
	require.NoError(t, err)
	assert.Len(t, r.Hops, 3)

	// zero MaxHops falls back to the default of 3
	r, err = eng.FindBestRoute(context.Background(), snap, Request{
		From: "0xaaa", To: "0xddd", AmountIn: 10,
	})
	require.NoError(t, err)
	assert.Len(t, r.Hops, 3)
}

func TestFindBestRouteMinLiquidityFloor(t *testing.T) {
	snap := snapshotOf(t, abcTokens(), []models.Pool{
		pool("0xp1", "0xaaa", "0xbbb", 1000, 1000, 0, 500),
	})
	eng := newTestEngine()

	_, err := eng.FindBestRoute(context.Background(), snap, Request{
		From: "0xaaa", To: "0xbbb", AmountIn: 10, MinLiquidityUSD: 1000,
	})
	assert.ErrorIs(t, err, ErrNoRouteFound)

	_, err = eng.FindBestRoute(context.Background(), snap, Request{
		From: "0xaaa", To: "0xbbb", AmountIn: 10, MinLiquidityUSD: 100,
	})
	assert.NoError(t, err)
}

func TestFindBestRouteMaxPriceImpact(t *testing.T) {
	// trading the full reserve depth: ~50% impact
	snap := snapshotOf(t, abcTokens(), []models.Pool{
		pool("0xp1", "0xaaa", "0xbbb", 100, 100, 0, 1000),
	})
	eng := newTestEngine()

	_, err := eng.FindBestRoute(context.Background(), snap, Request{
		From: "0xaaa", To: "0xbbb", AmountIn: 100, MaxPriceImpact: 0.3,
	})
	assert.ErrorIs(t, err, ErrNoRouteFound)

	r, err := eng.FindBestRoute(context.Background(), snap, Request{
		From: "0xaaa", To: "0xbbb", AmountIn: 100, MaxPriceImpact: 0.6,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r.PriceImpact, 1e-6)
}

func TestFindBestRouteNoCycles(t *testing.T) {
	snap := snapshotOf(t, abcTokens(), []models.Pool{
		pool("0xab", "0xaaa", "0xbbb", 1000, 1000, 0, 100),
		pool("0xbc", "0xbbb", "0xccc", 1000, 1000, 0, 100),
		pool("0xca", "0xccc", "0xaaa", 1000, 1000, 0, 100),
		pool("0xcd", "0xccc", "0xddd", 1000, 1000, 0, 100),
	})

	r, err := newTestEngine().FindBestRoute(context.Background(), snap, Request{
		From: "0xaaa", To: "0xddd", AmountIn: 10, MaxHops: 4,
	})
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, addr := range r.Path {
		assert.False(t, seen[addr], "token %s repeats in path", addr)
		seen[addr] = true
	}
}

func TestFindBestRouteTopKBoundsBranching(t *testing.T) {
	// the immediately-best edge from AAA is a dead end; with K=1 the search
	// never looks past it, with K=2 the real route appears
	pools := []models.Pool{
		pool("0xtrap", "0xaaa", "0xbbb", 100000, 100000, 0, 1000),
		pool("0xac", "0xaaa", "0xccc", 10000, 10000, 0, 1000),
		pool("0xcd", "0xccc", "0xddd", 10000, 10000, 0, 1000),
	}
	snap := snapshotOf(t, abcTokens(), pools)
	eng := newTestEngine()

	_, err := eng.FindBestRoute(context.Background(), snap, Request{
		From: "0xaaa", To: "0xddd", AmountIn: 10, TopK: 1,
	})
	assert.ErrorIs(t, err, ErrNoRouteFound)

	r, err := eng.FindBestRoute(context.Background(), snap, Request{
		From: "0xaaa", To: "0xddd", AmountIn: 10, TopK: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0xac", "0xcd"}, r.Pools)
}

func TestFindBestRouteDeterministicTieBreak(t *testing.T) {
	// two byte-identical pools quote the same output; the lexicographically
	// smaller pool address must win, every time
	mk := func(shuffled bool) *graph.Snapshot {
		pools := []models.Pool{
			pool("0xp1", "0xaaa", "0xbbb", 1000, 1000, 0.003, 2000),
			pool("0xp2", "0xaaa", "0xbbb", 1000, 1000, 0.003, 2000),
		}
		if shuffled {
			pools[0], pools[1] = pools[1], pools[0]
		}
		return snapshotOf(t, abcTokens(), pools)
	}
	eng := newTestEngine()
	req := Request{From: "0xaaa", To: "0xbbb", AmountIn: 50}

	for _, shuffled := range []bool{false, true} {
		for i := 0; i < 3; i++ {
			r, err := eng.FindBestRoute(context.Background(), mk(shuffled), req)
			require.NoError(t, err)
			assert.Equal(t, []string{"0xp1"}, r.Pools)
		}
	}
}

func TestFindBestRouteDeterministicAcrossBuilds(t *testing.T) {
	pools := []models.Pool{
		pool("0xab", "0xaaa", "0xbbb", 5000, 6000, 0.003, 1000),
		pool("0xac", "0xaaa", "0xccc", 8000, 7000, 0.003, 1500),
		pool("0xcb", "0xccc", "0xbbb", 9000, 9500, 0.003, 1800),
		pool("0xcd", "0xccc", "0xddd", 4000, 4100, 0.003, 900),
		pool("0xbd", "0xbbb", "0xddd", 7000, 6800, 0.003, 1200),
	}
	reversed := make([]models.Pool, len(pools))
	for i, p := range pools {
		reversed[len(pools)-1-i] = p
	}
	eng := newTestEngine()
	req := Request{From: "0xaaa", To: "0xddd", AmountIn: 250}

	r1, err := eng.FindBestRoute(context.Background(), snapshotOf(t, abcTokens(), pools), req)
	require.NoError(t, err)
	r2, err := eng.FindBestRoute(context.Background(), snapshotOf(t, abcTokens(), reversed), req)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
}

func TestFindBestRouteCancellation(t *testing.T) {
	snap := snapshotOf(t, abcTokens(), []models.Pool{
		pool("0xp1", "0xaaa", "0xbbb", 1000, 1000, 0, 2000),
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine().FindBestRoute(ctx, snap, Request{
		From: "0xaaa", To: "0xbbb", AmountIn: 10,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindBestRouteTruncatesToTokenDecimals(t *testing.T) {
	tokens := []models.Token{
		token("0xaaa", "AAA"),
		{Address: "0xbbb", Symbol: "BBB", Name: "BBB", Decimals: 2, PriceUSD: 1},
	}
	snap := snapshotOf(t, tokens, []models.Pool{
		pool("0xp1", "0xaaa", "0xbbb", 1000, 1000, 0, 2000),
	})

	r, err := newTestEngine().FindBestRoute(context.Background(), snap, Request{
		From: "0xaaa", To: "0xbbb", AmountIn: 100,
	})
	require.NoError(t, err)
	// 90.9090... cut down to two decimal places
	assert.InDelta(t, 90.90, r.AmountOut, 1e-9)
}

func TestBetterRoute(t *testing.T) {
	base := func() *route {
		return &route{
			hops:   make([]models.Hop, 2),
			out:    100,
			impact: 0.02,
			key:    "0xp1,0xp2",
		}
	}

	t.Run("higher output wins", func(t *testing.T) {
		a, b := base(), base()
		a.out = 101
		assert.True(t, betterRoute(a, b))
		assert.False(t, betterRoute(b, a))
	})

	t.Run("fewer hops breaks output tie", func(t *testing.T) {
		a, b := base(), base()
		a.hops = make([]models.Hop, 1)
		assert.True(t, betterRoute(a, b))
		assert.False(t, betterRoute(b, a))
	})

	t.Run("lower impact breaks hop tie", func(t *testing.T) {
		a, b := base(), base()
		a.impact = 0.01
		assert.True(t, betterRoute(a, b))
		assert.False(t, betterRoute(b, a))
	})

	t.Run("pool sequence breaks impact tie", func(t *testing.T) {
		a, b := base(), base()
		a.key = "0xp0,0xp2"
		assert.True(t, betterRoute(a, b))
		assert.False(t, betterRoute(b, a))
	})
}
