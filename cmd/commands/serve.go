package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v3"

	"github.com/yoonhw/jibsa/internal/capability"
	"github.com/yoonhw/jibsa/internal/config"
	"github.com/yoonhw/jibsa/internal/embed"
	"github.com/yoonhw/jibsa/internal/events"
	"github.com/yoonhw/jibsa/internal/gateway"
	"github.com/yoonhw/jibsa/internal/history"
	"github.com/yoonhw/jibsa/internal/intent"
	"github.com/yoonhw/jibsa/internal/listing"
	"github.com/yoonhw/jibsa/internal/models"
	"github.com/yoonhw/jibsa/internal/orchestrate"
	"github.com/yoonhw/jibsa/internal/savedlist"
	"github.com/yoonhw/jibsa/internal/search"
)

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the jibsa gateway server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runServe,
	}
}

func runServe(_ context.Context, cmd *cli.Command) error {
	if cmd.Bool("debug") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	configPath := cmd.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Warn("config not found, using defaults", "path", configPath, "error", err)
		cfg = config.Default()
	}

	// CLI flags override config
	if cmd.IsSet("host") {
		cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Gateway.Port = cmd.Int("port")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Event bus
	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	// Listing corpus
	listings, err := listing.LoadFile(cfg.Listings.File)
	if err != nil {
		return fmt.Errorf("load listings: %w", err)
	}
	slog.Info("listings loaded", "count", listings.Len(), "file", cfg.Listings.File)

	// Chat model; without one, intent classification and parameter
	// extraction run on the rule pass alone.
	chatModel, err := models.CreateModel(ctx, cfg.Model)
	if err != nil {
		slog.Warn("chat model unavailable, using rule-based understanding", "error", err)
		chatModel = nil
	}

	// Embedding stack; without one, searches are lexical-only.
	cache := embed.NewCache(cfg.Cache.TTL.Duration())
	var embedClient *embed.Client
	var vectors *search.VectorStore
	embedder, err := embed.NewEmbedder(ctx, cfg.Embedding)
	if err != nil {
		slog.Warn("embedder unavailable, vector pass disabled", "error", err)
	} else {
		embedClient = embed.NewClient(embedder, cache)
		vectors, err = search.NewVectorStore(ctx, cfg.Listings.DataDir, embedder)
		if err != nil {
			slog.Warn("vector store init failed, vector pass disabled", "error", err)
			vectors = nil
		} else if vectors.Count() < listings.Len() {
			slog.Info("indexing listings", "count", listings.Len())
			if err := vectors.Index(ctx, listings.All()); err != nil {
				slog.Warn("listing indexing failed, vector pass disabled", "error", err)
				vectors = nil
			}
		}
	}

	engine := search.NewEngine(listings, vectors, embedClient)
	extractor := search.NewExtractor(chatModel)
	hist := history.NewStore()

	// Saved-list database
	saved, err := savedlist.Open(cfg.SavedList.Path)
	if err != nil {
		return fmt.Errorf("open saved list: %w", err)
	}
	defer saved.Close()

	// Capability providers
	registry, err := capability.NewRegistry(
		capability.NewRetrievalProvider(engine, extractor, hist),
		capability.NewSimilarityProvider(engine, extractor, hist),
		capability.NewRecommendationProvider(chatModel, hist),
		capability.NewComparisonProvider(chatModel, hist),
		capability.NewAnalysisProvider(chatModel, hist),
		capability.NewSavedListProvider(saved, listings),
		capability.NewConversationalProvider(chatModel),
	)
	if err != nil {
		return fmt.Errorf("build capability registry: %w", err)
	}

	scheduler := orchestrate.NewScheduler(registry, bus)
	decomposer := intent.NewDecomposer(chatModel, hist)
	orchestrator := orchestrate.New(decomposer, scheduler, bus)

	// Periodic cache sweep
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.Cache.SweepCron, func() {
		purged := cache.Sweep()
		bus.Publish(events.NewTypedEvent(events.SourceCron, events.SweepPayload{Purged: purged}))
		slog.Debug("embedding cache swept", "purged", purged)
	}); err != nil {
		return fmt.Errorf("schedule cache sweep: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	// Gateway server
	server := gateway.NewServer(bus, orchestrator, hist, cfg.Gateway.Host, cfg.Gateway.Port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
