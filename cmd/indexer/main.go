// ============================================================================
// cmd/indexer/main.go - One-Shot Market Data Seeder
// ============================================================================
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"dexrouter/internal/cache"
	"dexrouter/internal/config"
	"dexrouter/internal/gecko"
	"dexrouter/internal/graph"
	"dexrouter/internal/refresher"
)

// Fetches the current token and pool set, runs it through the graph builder
// to report what the API would keep, and seeds the Redis record store so the
// API can warm-start before its first refresh cycle completes.
func main() {
	pagesFlag := flag.Int("pages", 0, "pool pages to fetch (default GECKO_PAGES)")
	dryRun := flag.Bool("dry-run", false, "fetch and validate without writing to Redis")
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	pages := cfg.GeckoPages
	if *pagesFlag > 0 {
		pages = *pagesFlag
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := gecko.NewClient(cfg.GeckoBaseURL, cfg.Network, cfg.GeckoRateLimit, logger)

	log.Printf("🚀 Fetching %s market data (%d pool pages)...", cfg.Network, pages)

	started := time.Now()
	tokens, err := client.FetchTokens(ctx, 0)
	if err != nil {
		log.Fatalf("❌ Fetch tokens: %v", err)
	}
	pools, embedded, err := client.FetchPools(ctx, pages)
	if err != nil {
		log.Fatalf("❌ Fetch pools: %v", err)
	}
	tokens = refresher.MergeTokens(tokens, embedded)
	log.Printf("📊 Got %d tokens and %d pools in %s",
		len(tokens), len(pools), time.Since(started).Round(time.Millisecond))

	g := graph.NewBuilder(logger).Build(tokens, pools)
	log.Printf("🔎 Graph check: %d tokens, %d pools usable, %d records skipped",
		g.TokenCount(), g.PoolCount(), g.SkippedCount())
	if g.PoolCount() == 0 {
		log.Fatal("❌ No usable pools, refusing to seed the store")
	}

	if *dryRun {
		log.Println("✅ Dry run complete.")
		return
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	store, err := cache.NewRedisStore(rdb)
	if err != nil {
		log.Fatalf("❌ Redis: %v", err)
	}
	defer store.Close()

	saveCtx, saveCancel := context.WithTimeout(ctx, 10*time.Second)
	defer saveCancel()
	if err := store.SaveRecords(saveCtx, tokens, pools); err != nil {
		log.Fatalf("❌ Save records: %v", err)
	}
	log.Println("✅ Record store seeded.")
}
