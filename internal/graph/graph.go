package graph

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"dexrouter/internal/models"
)

// Edge is a directed traversal of one pool. Output for an edge depends on
// the amount arriving at it, so edges carry the formula parameters rather
// than a precomputed cost.
type Edge struct {
	Pool         string
	From         string
	To           string
	ReserveIn    float64
	ReserveOut   float64
	Fee          float64
	LiquidityUSD float64
}

// Graph maps token addresses to their outgoing edges. Built fresh each
// refresh cycle and never mutated afterwards.
type Graph struct {
	tokens    map[string]models.Token
	adjacency map[string][]Edge
	poolCount int
	skipped   int
}

// Builder converts raw token/pool records into a Graph. Stateless between
// calls; malformed records are skipped and counted, never fatal.
type Builder struct {
	log *logrus.Logger
}

func NewBuilder(log *logrus.Logger) *Builder {
	return &Builder{log: log}
}

// Build indexes tokens, drops unusable pools, and assembles the adjacency
// mapping. Each kept pool yields two directed edges. Pools between the same
// token pair stay as parallel edges: a different fee tier or depth can win
// at a given trade size and must remain independently selectable.
func (b *Builder) Build(tokens []models.Token, pools []models.Pool) *Graph {
	g := &Graph{
		tokens:    make(map[string]models.Token, len(tokens)),
		adjacency: make(map[string][]Edge),
	}

	for _, t := range tokens {
		addr := strings.ToLower(t.Address)
		if addr == "" {
			g.skipped++
			continue
		}
		t.Address = addr
		g.tokens[addr] = t
	}

	// Dedupe by pool address, preferring deeper liquidity so the kept
	// record does not depend on input order.
	kept := make(map[string]models.Pool, len(pools))
	for _, p := range pools {
		p.Address = strings.ToLower(p.Address)
		p.Token0 = strings.ToLower(p.Token0)
		p.Token1 = strings.ToLower(p.Token1)

		if reason := b.checkPool(g, p); reason != "" {
			g.skipped++
			b.log.WithFields(logrus.Fields{
				"pool":   p.Address,
				"reason": reason,
			}).Debug("Skipping pool")
			continue
		}

		if p.LiquidityUSD <= 0 {
			p.LiquidityUSD = b.deriveLiquidity(g, p)
		}
		if prev, ok := kept[p.Address]; ok {
			g.skipped++
			if prev.LiquidityUSD >= p.LiquidityUSD {
				continue
			}
		}
		kept[p.Address] = p
	}

	for _, p := range kept {
		g.adjacency[p.Token0] = append(g.adjacency[p.Token0], Edge{
			Pool:         p.Address,
			From:         p.Token0,
			To:           p.Token1,
			ReserveIn:    p.Reserve0,
			ReserveOut:   p.Reserve1,
			Fee:          p.Fee,
			LiquidityUSD: p.LiquidityUSD,
		})
		g.adjacency[p.Token1] = append(g.adjacency[p.Token1], Edge{
			Pool:         p.Address,
			From:         p.Token1,
			To:           p.Token0,
			ReserveIn:    p.Reserve1,
			ReserveOut:   p.Reserve0,
			Fee:          p.Fee,
			LiquidityUSD: p.LiquidityUSD,
		})
		g.poolCount++
	}

	// Normalize adjacency ordering so equal-output candidates are examined
	// in the same order no matter how the feed was paginated.
	for _, edges := range g.adjacency {
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].LiquidityUSD != edges[j].LiquidityUSD {
				return edges[i].LiquidityUSD > edges[j].LiquidityUSD
			}
			return edges[i].Pool < edges[j].Pool
		})
	}

	return g
}

func (b *Builder) checkPool(g *Graph, p models.Pool) string {
	switch {
	case p.Address == "":
		return "missing address"
	case p.Token0 == p.Token1:
		return "self-referencing pair"
	case g.tokens[p.Token0].Address == "":
		return "unknown token0"
	case g.tokens[p.Token1].Address == "":
		return "unknown token1"
	case p.Reserve0 <= 0 || p.Reserve1 <= 0:
		return "empty reserve"
	case p.Fee < 0 || p.Fee >= 1:
		return "invalid fee"
	}
	return ""
}

func (b *Builder) deriveLiquidity(g *Graph, p models.Pool) float64 {
	t0 := g.tokens[p.Token0]
	t1 := g.tokens[p.Token1]
	return p.Reserve0*t0.PriceUSD + p.Reserve1*t1.PriceUSD
}

// Token looks up a token record by address.
func (g *Graph) Token(address string) (models.Token, bool) {
	t, ok := g.tokens[strings.ToLower(address)]
	return t, ok
}

// Tokens returns every token in the graph, sorted by address. The returned
// slice is the caller's to reorder.
func (g *Graph) Tokens() []models.Token {
	out := make([]models.Token, 0, len(g.tokens))
	for _, t := range g.tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Edges returns the outgoing edges of a token. Callers must not mutate the
// returned slice.
func (g *Graph) Edges(address string) []Edge {
	return g.adjacency[strings.ToLower(address)]
}

func (g *Graph) TokenCount() int { return len(g.tokens) }

func (g *Graph) PoolCount() int { return g.poolCount }

// SkippedCount reports records dropped during the build.
func (g *Graph) SkippedCount() int { return g.skipped }
