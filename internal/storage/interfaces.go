package storage

import (
	"context"
	"io"

	"dexrouter/internal/models"
)

// RecordStore defines the interface for the durable token/pool record cache
type RecordStore interface {
	// SaveRecords replaces the stored token and pool records
	SaveRecords(ctx context.Context, tokens []models.Token, pools []models.Pool) error

	// LoadRecords retrieves the last-known token and pool records
	LoadRecords(ctx context.Context) ([]models.Token, []models.Pool, error)

	// PublishRefresh announces a newly published snapshot
	PublishRefresh(ctx context.Context, event models.RefreshEvent) error

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	// Close closes the store connection
	io.Closer
}

// HistorySink defines the interface for the append-only refresh history
type HistorySink interface {
	// InsertPoolStates records the pool set of one published snapshot
	InsertPoolStates(ctx context.Context, event models.RefreshEvent, pools []models.Pool) error

	// Ping checks if the sink is reachable
	Ping(ctx context.Context) error

	// Close closes the sink connection
	io.Closer
}

// MarketDataSource defines the interface for the upstream feed
type MarketDataSource interface {
	// FetchTokens pulls the network's top token records
	FetchTokens(ctx context.Context, limit int) ([]models.Token, error)

	// FetchPools pulls pool records plus the token records embedded in them
	FetchPools(ctx context.Context, pages int) ([]models.Pool, []models.Token, error)
}
