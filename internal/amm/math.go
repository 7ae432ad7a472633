package amm

import (
	"fmt"
	"math"
)

// SwapOutput computes output for a constant-product AMM pool.
// Uses x * y = k with the fee applied to the input side:
// out = reserveOut * a / (reserveIn + a), a = amountIn * (1 - fee).
// Returns (amountOut, priceImpact, error).
func SwapOutput(amountIn, reserveIn, reserveOut, fee float64) (float64, float64, error) {
	if !isFinite(amountIn) || amountIn <= 0 {
		return 0, 0, fmt.Errorf("invalid input amount: %v", amountIn)
	}
	if reserveIn <= 0 || reserveOut <= 0 {
		return 0, 0, fmt.Errorf("invalid reserves: %v / %v", reserveIn, reserveOut)
	}
	if fee < 0 || fee >= 1 {
		return 0, 0, fmt.Errorf("fee must be in [0, 1): %v", fee)
	}

	amountInAfterFee := amountIn * (1 - fee)
	amountOut := reserveOut * amountInAfterFee / (reserveIn + amountInAfterFee)

	// Price impact:
	// spotRate = reserveOut / reserveIn (marginal price before the swap)
	// executionRate = amountOut / amountIn
	// priceImpact = 1 - (executionRate / spotRate)
	spotRate := reserveOut / reserveIn
	executionRate := amountOut / amountIn
	priceImpact := math.Max(0, 1-(executionRate/spotRate))

	return amountOut, priceImpact, nil
}

// SpotPrice is the marginal exchange rate of a pool side before any swap.
func SpotPrice(reserveIn, reserveOut float64) float64 {
	if reserveIn <= 0 {
		return 0
	}
	return reserveOut / reserveIn
}

// TruncateToDecimals rounds an amount down to a token's decimal precision,
// matching on-chain amount granularity. Precisions beyond 12 places exceed
// what float64 resolves for typical amounts and are left untouched.
func TruncateToDecimals(amount float64, decimals int) float64 {
	if decimals < 0 || decimals > 12 || !isFinite(amount) {
		return amount
	}
	factor := math.Pow10(decimals)
	return math.Floor(amount*factor) / factor
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
