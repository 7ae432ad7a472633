package cache

import (
	"context"
	"fmt"
	"log"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"dexrouter/internal/models"
)

// ClickHouseStore appends one row per pool per refresh cycle, building an
// offline history of graph state for analysis.
type ClickHouseStore struct {
	conn driver.Conn
}

func NewClickHouseStore(addr, database, username, password string) (*ClickHouseStore, error) {
	if database == "" {
		database = "dex"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	// The AI agent's schema prompt mirrors these columns.
	ddl := `
		CREATE TABLE IF NOT EXISTS pool_states (
			generation    UInt64,
			refreshed_at  DateTime,
			pool_address  String,
			token0        String,
			token1        String,
			reserve0      Float64,
			reserve1      Float64,
			fee           Float64,
			liquidity_usd Float64
		) ENGINE = MergeTree()
		ORDER BY (generation, pool_address)
	`
	if err := conn.Exec(context.Background(), ddl); err != nil {
		return nil, fmt.Errorf("failed to create pool_states table: %w", err)
	}

	log.Println("✅ Connected to ClickHouse")

	return &ClickHouseStore{
		conn: conn,
	}, nil
}

func (c *ClickHouseStore) InsertPoolStates(ctx context.Context, event models.RefreshEvent, pools []models.Pool) error {
	if len(pools) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO pool_states (
			generation, refreshed_at, pool_address, token0, token1,
			reserve0, reserve1, fee, liquidity_usd
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare pool_states batch: %w", err)
	}

	for _, p := range pools {
		if err := batch.Append(
			event.Generation,
			event.BuiltAt,
			p.Address,
			p.Token0,
			p.Token1,
			p.Reserve0,
			p.Reserve1,
			p.Fee,
			p.LiquidityUSD,
		); err != nil {
			return fmt.Errorf("failed to append pool state: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to insert pool states: %w", err)
	}
	return nil
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
