package constants

// Redis keys
const (
	RedisKeyTokens = "routing:tokens"
	RedisKeyPools  = "routing:pools"
)

// Redis Pub/Sub channels
const (
	PubSubChannelRefreshes = "routing:refreshes"
)

// API limits
const (
	DefaultTopTokensLimit = 100
	MaxTopTokensLimit     = 200
	MaxHopsCeiling        = 5
)

// Pool defaults
const (
	// Constant-product pools are typically 30 bps; used when the upstream
	// feed carries no fee field for a pool.
	DefaultPoolFee = 0.003
	// ERC-20 convention when the feed omits decimals.
	DefaultTokenDecimals = 18
)
