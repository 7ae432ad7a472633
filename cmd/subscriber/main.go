// ============================================================================
// cmd/subscriber/main.go - Refresh Event Watcher
// ============================================================================
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"dexrouter/internal/cache"
	"dexrouter/internal/config"
	"dexrouter/internal/models"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	cfg := config.Load()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	store, err := cache.NewRedisStore(client)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	log.Println("👂 Watching graph refreshes...")

	// Print every refresh cycle the API publishes
	go func() {
		err := store.SubscribeRefreshes(ctx, func(event models.RefreshEvent) {
			log.Printf("📨 generation %d | %d tokens | %d pools | %d skipped | built %s",
				event.Generation, event.Tokens, event.Pools, event.Skipped,
				event.BuiltAt.Format("15:04:05"))
		})
		if err != nil && ctx.Err() == nil {
			log.Printf("⚠️  subscription ended: %v", err)
		}
	}()

	log.Println("✅ Subscriber running. Press Ctrl+C to stop.")

	<-sigChan
	log.Println("🛑 Shutting down subscriber...")
}
