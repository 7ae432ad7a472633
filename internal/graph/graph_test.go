package graph

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexrouter/internal/models"
)

func testTokens() []models.Token {
	return []models.Token{
		{Address: "0xaaa", Symbol: "AAA", Name: "Token A", Decimals: 18, PriceUSD: 2.0},
		{Address: "0xbbb", Symbol: "BBB", Name: "Token B", Decimals: 6, PriceUSD: 1.0},
		{Address: "0xccc", Symbol: "CCC", Name: "Token C", Decimals: 18, PriceUSD: 0.5},
	}
}

func testPool(addr, t0, t1 string, r0, r1, liq float64) models.Pool {
	return models.Pool{
		Address:      addr,
		Token0:       t0,
		Token1:       t1,
		Reserve0:     r0,
		Reserve1:     r1,
		Fee:          0.003,
		LiquidityUSD: liq,
	}
}

func newTestBuilder() *Builder {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return NewBuilder(log)
}

func TestBuildBasic(t *testing.T) {
	b := newTestBuilder()
	g := b.Build(testTokens(), []models.Pool{
		testPool("0xp1", "0xaaa", "0xbbb", 1000, 2000, 4000),
	})

	assert.Equal(t, 3, g.TokenCount())
	assert.Equal(t, 1, g.PoolCount())
	assert.Equal(t, 0, g.SkippedCount())

	fwd := g.Edges("0xaaa")
	require.Len(t, fwd, 1)
	assert.Equal(t, "0xp1", fwd[0].Pool)
	assert.Equal(t, "0xbbb", fwd[0].To)
	assert.Equal(t, 1000.0, fwd[0].ReserveIn)
	assert.Equal(t, 2000.0, fwd[0].ReserveOut)

	rev := g.Edges("0xbbb")
	require.Len(t, rev, 1)
	assert.Equal(t, "0xaaa", rev[0].To)
	assert.Equal(t, 2000.0, rev[0].ReserveIn)
	assert.Equal(t, 1000.0, rev[0].ReserveOut)
}

func TestBuildDropsBadPools(t *testing.T) {
	tests := []struct {
		name string
		pool models.Pool
	}{
		{"unknown token0", testPool("0xp1", "0xzzz", "0xbbb", 10, 10, 1)},
		{"unknown token1", testPool("0xp1", "0xaaa", "0xzzz", 10, 10, 1)},
		{"zero reserve0", testPool("0xp1", "0xaaa", "0xbbb", 0, 10, 1)},
		{"zero reserve1", testPool("0xp1", "0xaaa", "0xbbb", 10, 0, 1)},
		{"negative reserve", testPool("0xp1", "0xaaa", "0xbbb", -5, 10, 1)},
		{"self pair", testPool("0xp1", "0xaaa", "0xaaa", 10, 10, 1)},
		{"missing address", testPool("", "0xaaa", "0xbbb", 10, 10, 1)},
		{
			"fee at one",
			models.Pool{Address: "0xp1", Token0: "0xaaa", Token1: "0xbbb", Reserve0: 10, Reserve1: 10, Fee: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestBuilder().Build(testTokens(), []models.Pool{tt.pool})
			assert.Equal(t, 0, g.PoolCount())
			assert.Equal(t, 1, g.SkippedCount())
			assert.Empty(t, g.Edges("0xaaa"))
		})
	}
}

func TestBuildKeepsValidSubset(t *testing.T) {
	g := newTestBuilder().Build(testTokens(), []models.Pool{
		testPool("0xp1", "0xaaa", "0xbbb", 1000, 1000, 2000),
		testPool("0xp2", "0xaaa", "0xzzz", 1000, 1000, 2000),
		testPool("0xp3", "0xbbb", "0xccc", 500, 500, 750),
	})

	assert.Equal(t, 2, g.PoolCount())
	assert.Equal(t, 1, g.SkippedCount())
	assert.Len(t, g.Edges("0xbbb"), 2)
}

func TestBuildRetainsParallelEdges(t *testing.T) {
	g := newTestBuilder().Build(testTokens(), []models.Pool{
		testPool("0xp1", "0xaaa", "0xbbb", 1000, 1000, 2000),
		testPool("0xp2", "0xaaa", "0xbbb", 9000, 9000, 18000),
	})

	edges := g.Edges("0xaaa")
	require.Len(t, edges, 2)
	// deeper pool sorts first
	assert.Equal(t, "0xp2", edges[0].Pool)
	assert.Equal(t, "0xp1", edges[1].Pool)
	assert.Equal(t, 2, g.PoolCount())
}

func TestBuildDedupesRepeatedAddress(t *testing.T) {
	g := newTestBuilder().Build(testTokens(), []models.Pool{
		testPool("0xp1", "0xaaa", "0xbbb", 100, 100, 200),
		testPool("0xp1", "0xaaa", "0xbbb", 5000, 5000, 10000),
	})

	edges := g.Edges("0xaaa")
	require.Len(t, edges, 1)
	assert.Equal(t, 5000.0, edges[0].ReserveIn, "deeper duplicate wins")
	assert.Equal(t, 1, g.PoolCount())
	assert.Equal(t, 1, g.SkippedCount())
}

func TestBuildDerivesLiquidityFromPrices(t *testing.T) {
	g := newTestBuilder().Build(testTokens(), []models.Pool{
		// 10 AAA @ $2 + 20 BBB @ $1 = $40
		testPool("0xp1", "0xaaa", "0xbbb", 10, 20, 0),
	})

	edges := g.Edges("0xaaa")
	require.Len(t, edges, 1)
	assert.InDelta(t, 40.0, edges[0].LiquidityUSD, 1e-9)
}

func TestBuildNormalizesAddresses(t *testing.T) {
	tokens := []models.Token{
		{Address: "0xAAA", Symbol: "AAA", Decimals: 18},
		{Address: "0xBBB", Symbol: "BBB", Decimals: 18},
	}
	g := newTestBuilder().Build(tokens, []models.Pool{
		testPool("0xP1", "0xAaA", "0xBbB", 10, 10, 1),
	})

	assert.Equal(t, 1, g.PoolCount())
	tok, ok := g.Token("0xAAA")
	require.True(t, ok)
	assert.Equal(t, "0xaaa", tok.Address)
	require.Len(t, g.Edges("0xAAA"), 1)
	assert.Equal(t, "0xp1", g.Edges("0xaaa")[0].Pool)
}

func TestBuildDeterministicUnderShuffle(t *testing.T) {
	pools := []models.Pool{
		testPool("0xp1", "0xaaa", "0xbbb", 1000, 1000, 2000),
		testPool("0xp2", "0xaaa", "0xbbb", 1000, 1000, 2000),
		testPool("0xp3", "0xbbb", "0xccc", 500, 500, 750),
		testPool("0xp4", "0xaaa", "0xccc", 800, 800, 1200),
	}
	reversed := make([]models.Pool, len(pools))
	for i, p := range pools {
		reversed[len(pools)-1-i] = p
	}

	g1 := newTestBuilder().Build(testTokens(), pools)
	g2 := newTestBuilder().Build(testTokens(), reversed)

	for _, addr := range []string{"0xaaa", "0xbbb", "0xccc"} {
		assert.Equal(t, g1.Edges(addr), g2.Edges(addr))
	}
	assert.Equal(t, g1.Tokens(), g2.Tokens())
}

func TestGraphTokensSortedByAddress(t *testing.T) {
	g := newTestBuilder().Build(testTokens(), nil)
	tokens := g.Tokens()
	require.Len(t, tokens, 3)
	assert.Equal(t, "0xaaa", tokens[0].Address)
	assert.Equal(t, "0xbbb", tokens[1].Address)
	assert.Equal(t, "0xccc", tokens[2].Address)
}
