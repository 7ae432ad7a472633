package gecko

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"dexrouter/internal/constants"
	"dexrouter/internal/models"
)

// GeckoTerminal serves numeric attributes inconsistently: sometimes JSON
// numbers, sometimes decimal strings, sometimes null. flexFloat accepts all
// three.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	s := strings.Trim(string(data), `"`)
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// listResponse is the common envelope of the /tokens and /pools endpoints.
// Attributes stay raw so a single malformed record can be skipped without
// discarding the rest of the page.
type listResponse struct {
	Data []entry `json:"data"`
}

type entry struct {
	ID         string          `json:"id"`
	Attributes json.RawMessage `json:"attributes"`
}

type tokenAttributes struct {
	Address  string    `json:"address"`
	Symbol   string    `json:"symbol"`
	Name     string    `json:"name"`
	Decimals *int      `json:"decimals"`
	PriceUSD flexFloat `json:"price_usd"`
}

type poolAttributes struct {
	Address    string          `json:"address"`
	Token0     tokenAttributes `json:"token0"`
	Token1     tokenAttributes `json:"token1"`
	Reserve0   flexFloat       `json:"reserve0"`
	Reserve1   flexFloat       `json:"reserve1"`
	Fee        flexFloat       `json:"fee"`
	ReserveUSD flexFloat       `json:"reserve_usd"`
}

func (a tokenAttributes) token() models.Token {
	decimals := constants.DefaultTokenDecimals
	if a.Decimals != nil {
		decimals = *a.Decimals
	}
	return models.Token{
		Address:  strings.ToLower(strings.TrimSpace(a.Address)),
		Symbol:   a.Symbol,
		Name:     a.Name,
		Decimals: decimals,
		PriceUSD: float64(a.PriceUSD),
	}
}

func (a poolAttributes) pool() models.Pool {
	fee := float64(a.Fee)
	if fee <= 0 {
		fee = constants.DefaultPoolFee
	}
	return models.Pool{
		Address:      strings.ToLower(strings.TrimSpace(a.Address)),
		Token0:       strings.ToLower(strings.TrimSpace(a.Token0.Address)),
		Token1:       strings.ToLower(strings.TrimSpace(a.Token1.Address)),
		Reserve0:     float64(a.Reserve0),
		Reserve1:     float64(a.Reserve1),
		Fee:          fee,
		LiquidityUSD: float64(a.ReserveUSD),
	}
}
