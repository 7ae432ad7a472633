package refresher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"dexrouter/internal/graph"
	"dexrouter/internal/models"
	"dexrouter/internal/storage"
)

// Refresher periodically pulls fresh market data, rebuilds the liquidity
// graph, and publishes the result. A failed cycle never touches the
// currently published snapshot; queries keep serving the last good graph.
type Refresher struct {
	source    storage.MarketDataSource
	store     storage.RecordStore
	history   storage.HistorySink
	builder   *graph.Builder
	publisher *graph.Publisher

	interval       time.Duration
	fetchTimeout   time.Duration
	retryBackoff   time.Duration
	maxRetries     int
	staleThreshold int
	tokenLimit     int
	poolPages      int
	logger         *logrus.Logger

	mu      sync.RWMutex
	running bool
	status  Status
}

// Status is the observable freshness state, surfaced by the health
// endpoint. Degraded flips on after staleThreshold consecutive failed
// cycles and off again on the next success.
type Status struct {
	Generation          uint64    `json:"generation"`
	LastSuccess         time.Time `json:"last_success"`
	LastAttempt         time.Time `json:"last_attempt"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Degraded            bool      `json:"degraded"`
}

// Config holds configuration for the refresher
type Config struct {
	Source         storage.MarketDataSource
	Store          storage.RecordStore
	History        storage.HistorySink
	Builder        *graph.Builder
	Publisher      *graph.Publisher
	Interval       time.Duration
	FetchTimeout   time.Duration
	RetryBackoff   time.Duration
	MaxRetries     int
	StaleThreshold int
	TokenLimit     int
	PoolPages      int
	Logger         *logrus.Logger
}

func NewRefresher(cfg Config) *Refresher {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = 3
	}

	return &Refresher{
		source:         cfg.Source,
		store:          cfg.Store,
		history:        cfg.History,
		builder:        cfg.Builder,
		publisher:      cfg.Publisher,
		interval:       cfg.Interval,
		fetchTimeout:   cfg.FetchTimeout,
		retryBackoff:   cfg.RetryBackoff,
		maxRetries:     cfg.MaxRetries,
		staleThreshold: cfg.StaleThreshold,
		tokenLimit:     cfg.TokenLimit,
		poolPages:      cfg.PoolPages,
		logger:         cfg.Logger,
	}
}

// Start restores the last cached graph, runs one refresh cycle right away,
// then keeps refreshing on the configured interval until ctx is done.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("refresher already running")
	}
	r.running = true
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"interval":    r.interval,
		"max_retries": r.maxRetries,
	}).Info("starting refresh loop")

	r.restore(ctx)

	if err := r.cycle(ctx); err != nil {
		r.logger.WithError(err).Error("refresh cycle failed")
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			r.running = false
			r.mu.Unlock()
			return ctx.Err()

		case <-ticker.C:
			if err := r.cycle(ctx); err != nil {
				r.logger.WithError(err).Error("refresh cycle failed")
			}
		}
	}
}

// Status returns a copy of the current freshness state.
func (r *Refresher) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// restore rebuilds a graph from the record store so routes can be served
// before the first fetch completes. Cached data may be arbitrarily old, so
// LastSuccess stays unset.
func (r *Refresher) restore(ctx context.Context) {
	if r.store == nil {
		return
	}

	tokens, pools, err := r.store.LoadRecords(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("failed to load cached records")
		return
	}
	if len(pools) == 0 {
		r.logger.Debug("no cached records to restore")
		return
	}

	g := r.builder.Build(tokens, pools)
	if g.PoolCount() == 0 {
		r.logger.Warn("cached records yielded an empty graph, skipping restore")
		return
	}

	snap := graph.NewSnapshot(g, r.publisher.Generation()+1, time.Now().UTC())
	if err := r.publisher.Publish(snap); err != nil {
		r.logger.WithError(err).Warn("failed to publish restored snapshot")
		return
	}

	r.mu.Lock()
	r.status.Generation = snap.Generation
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"generation": snap.Generation,
		"tokens":     g.TokenCount(),
		"pools":      g.PoolCount(),
	}).Info("restored graph from cache")
}

// cycle runs one fetch -> build -> publish pass. Persistence of records
// and history is best-effort: it affects durability, never serving.
func (r *Refresher) cycle(ctx context.Context) error {
	tokens, pools, err := r.fetch(ctx)
	if err != nil {
		r.fail()
		return err
	}
	if len(tokens) == 0 || len(pools) == 0 {
		r.fail()
		return fmt.Errorf("empty fetch result: %d tokens, %d pools", len(tokens), len(pools))
	}

	builtAt := time.Now().UTC()
	g := r.builder.Build(tokens, pools)
	if g.PoolCount() == 0 {
		r.fail()
		return fmt.Errorf("no usable pools after build (%d records skipped)", g.SkippedCount())
	}

	snap := graph.NewSnapshot(g, r.publisher.Generation()+1, builtAt)
	if err := r.publisher.Publish(snap); err != nil {
		r.fail()
		return fmt.Errorf("publish snapshot: %w", err)
	}
	r.succeed(snap)

	r.logger.WithFields(logrus.Fields{
		"generation": snap.Generation,
		"tokens":     g.TokenCount(),
		"pools":      g.PoolCount(),
		"skipped":    g.SkippedCount(),
	}).Info("published graph snapshot")

	event := models.RefreshEvent{
		Generation: snap.Generation,
		Tokens:     g.TokenCount(),
		Pools:      g.PoolCount(),
		Skipped:    g.SkippedCount(),
		BuiltAt:    builtAt,
	}

	if r.store != nil {
		if err := r.store.SaveRecords(ctx, tokens, pools); err != nil {
			r.logger.WithError(err).Warn("failed to persist records")
		}
		if err := r.store.PublishRefresh(ctx, event); err != nil {
			r.logger.WithError(err).Warn("failed to publish refresh event")
		}
	}
	if r.history != nil {
		if err := r.history.InsertPoolStates(ctx, event, pools); err != nil {
			r.logger.WithError(err).Warn("failed to record pool history")
		}
	}

	return nil
}

// fetch pulls tokens and pools with retry. Backoff sleeps are ctx-aware so
// shutdown is never delayed by a retry schedule.
func (r *Refresher) fetch(ctx context.Context) ([]models.Token, []models.Pool, error) {
	var lastErr error
	backoff := r.retryBackoff

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			r.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"backoff": backoff,
			}).Debug("retrying fetch")

			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2 // exponential backoff
		}

		tokens, pools, err := r.fetchOnce(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		return tokens, pools, nil
	}

	return nil, nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (r *Refresher) fetchOnce(ctx context.Context) ([]models.Token, []models.Pool, error) {
	fctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	tokens, err := r.source.FetchTokens(fctx, r.tokenLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch tokens: %w", err)
	}

	pools, embedded, err := r.source.FetchPools(fctx, r.poolPages)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch pools: %w", err)
	}

	return MergeTokens(tokens, embedded), pools, nil
}

// MergeTokens unions the top-token list with the tokens embedded in pool
// records. The top list wins on duplicates; embedded records fill in pool
// constituents that fall outside it.
func MergeTokens(primary, extra []models.Token) []models.Token {
	seen := make(map[string]bool, len(primary)+len(extra))
	out := make([]models.Token, 0, len(primary)+len(extra))
	for _, list := range [][]models.Token{primary, extra} {
		for _, t := range list {
			if t.Address == "" || seen[t.Address] {
				continue
			}
			seen[t.Address] = true
			out = append(out, t)
		}
	}
	return out
}

func (r *Refresher) fail() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.LastAttempt = time.Now().UTC()
	r.status.ConsecutiveFailures++
	if r.status.ConsecutiveFailures >= r.staleThreshold && !r.status.Degraded {
		r.status.Degraded = true
		r.logger.WithField("consecutive_failures", r.status.ConsecutiveFailures).
			Warn("refresh repeatedly failing, serving stale data")
	}
}

func (r *Refresher) succeed(snap *graph.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	r.status.LastAttempt = now
	r.status.LastSuccess = now
	r.status.Generation = snap.Generation
	r.status.ConsecutiveFailures = 0
	if r.status.Degraded {
		r.status.Degraded = false
		r.logger.Info("refresh recovered")
	}
}
