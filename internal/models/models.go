// ============================================================================
// models/models.go
// ============================================================================
package models

import "time"

// Token is one tradable asset on the configured network. Identity is the
// lowercase address; records are immutable once part of a published snapshot.
type Token struct {
	Address  string  `json:"address"`
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Decimals int     `json:"decimals"`
	PriceUSD float64 `json:"price_usd"`
}

// Pool is one constant-product liquidity pool between two tokens.
type Pool struct {
	Address      string  `json:"address"`
	Token0       string  `json:"token0"`
	Token1       string  `json:"token1"`
	Reserve0     float64 `json:"reserve0"`
	Reserve1     float64 `json:"reserve1"`
	Fee          float64 `json:"fee"`
	LiquidityUSD float64 `json:"liquidity_usd"`
}

// Hop is one pool traversal within a route.
type Hop struct {
	Pool        string  `json:"pool"`
	TokenIn     string  `json:"token_in"`
	TokenOut    string  `json:"token_out"`
	AmountIn    float64 `json:"amount_in"`
	AmountOut   float64 `json:"amount_out"`
	Fee         float64 `json:"fee"`
	PriceImpact float64 `json:"price_impact"`
}

// Route is the best path found for one query, computed against a single
// graph snapshot and discarded after the response.
type Route struct {
	Path        []string `json:"path"`
	Pools       []string `json:"pools"`
	Hops        []Hop    `json:"hops"`
	AmountIn    float64  `json:"amount_in"`
	AmountOut   float64  `json:"amount_out"`
	PriceImpact float64  `json:"price_impact"`
	Generation  uint64   `json:"generation"`
}

// RefreshEvent is published on the Redis refresh channel after each
// successful snapshot publish.
type RefreshEvent struct {
	Generation uint64    `json:"generation"`
	Tokens     int       `json:"tokens"`
	Pools      int       `json:"pools"`
	Skipped    int       `json:"skipped"`
	BuiltAt    time.Time `json:"built_at"`
}
