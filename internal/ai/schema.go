package ai

// poolStatesSchemaDescription describes the ClickHouse schema used for NL→SQL prompting.
//
// Keep it in sync with the columns cache.ClickHouseStore writes.
const poolStatesSchemaDescription = `
Database: dex
Table: pool_states

Columns:
  - generation    UInt64    -- Refresh cycle that captured this row (monotonically increasing)
  - refreshed_at  DateTime  -- When the refresh cycle ran (UTC)
  - pool_address  String    -- Pool contract address (lowercase hex)
  - token0        String    -- Address of the pool's first token (lowercase hex)
  - token1        String    -- Address of the pool's second token (lowercase hex)
  - reserve0      Float64   -- Reserve of token0 at refresh time, in whole token units
  - reserve1      Float64   -- Reserve of token1 at refresh time, in whole token units
  - fee           Float64   -- Pool fee rate (e.g. 0.003 for 0.3%)
  - liquidity_usd Float64   -- Total pool liquidity in USD at refresh time

Notes:
  - Every refresh cycle inserts one row per pool, so a pool appears once per generation.
  - The latest state of each pool is the row with the highest generation; use
    generation = (SELECT max(generation) FROM dex.pool_states) or argMax(..., generation).
  - Time filters should use refreshed_at, e.g. refreshed_at >= now() - INTERVAL 24 HOUR.
  - Liquidity history of one pool: filter by pool_address, order by refreshed_at.
  - The implied mid price of a pool is reserve1 / reserve0 (token1 per token0).
`
