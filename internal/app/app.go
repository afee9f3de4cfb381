package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/timmy/memehub/internal/api/handler"
	"github.com/timmy/memehub/internal/config"
	"github.com/timmy/memehub/internal/domain"
	"github.com/timmy/memehub/internal/logger"
	"github.com/timmy/memehub/internal/repository"
	"github.com/timmy/memehub/internal/scraper"
	"github.com/timmy/memehub/internal/service"
	"github.com/timmy/memehub/internal/storage"
)

// readyAttempts bounds the startup wait for Qdrant and Redis.
const readyAttempts = 8

// App holds the wired services shared by the server and the CLI.
type App struct {
	Config *config.Config
	Store  storage.BlobStore
	Ledger *repository.OwnershipRepository

	Meme   *service.DomainSpace
	TikTok *service.DomainSpace

	Search     *service.SearchService
	Ingest     *service.IngestService
	Delete     *service.DeleteService
	TikTokSvc  *service.TikTokService
	Checks     map[string]handler.Check
	BlobPrefix string // set when blobs are served by the API

	closers []func() error
}

// New connects every backend named by cfg and builds the services.
// The caller must Close the App.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Checks: make(map[string]handler.Check)}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	if err := repository.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	a.Ledger = repository.NewOwnershipRepository(db)
	a.Checks["database"] = a.Ledger.Ping

	if err := a.initStorage(ctx); err != nil {
		return err
	}

	memeIndex, tiktokIndex, err := a.initIndexes(ctx)
	if err != nil {
		return err
	}

	memeEmbedder, err := newEmbedder(&cfg.Domains.Meme.Embedding)
	if err != nil {
		return err
	}
	tiktokEmbedder, err := newEmbedder(&cfg.Domains.TikTok.Embedding)
	if err != nil {
		return err
	}
	if rdb := a.initRedis(ctx); rdb != nil {
		memeEmbedder = service.NewCachedEmbedding(memeEmbedder, rdb, cfg.Cache.Redis.TTL)
		tiktokEmbedder = service.NewCachedEmbedding(tiktokEmbedder, rdb, cfg.Cache.Redis.TTL)
	}

	a.Meme = newSpace(domain.DomainMeme, &cfg.Domains.Meme, memeEmbedder, memeIndex)
	a.TikTok = newSpace(domain.DomainTikTok, &cfg.Domains.TikTok, tiktokEmbedder, tiktokIndex)
	for _, sp := range []*service.DomainSpace{a.Meme, a.TikTok} {
		if err := sp.Validate(); err != nil {
			return err
		}
	}

	vlm := service.NewVLMService(&service.VLMConfig{
		Model:     cfg.VLM.Model,
		APIKey:    cfg.VLM.APIKey,
		BaseURL:   cfg.VLM.BaseURL,
		MaxTokens: cfg.VLM.MaxTokens,
		Timeout:   cfg.VLM.Timeout,
	})

	var allowed service.AccessPolicy
	if len(cfg.TikTok.AllowedOwners) > 0 {
		allowed = cfg.TikTok.TikTokAllowed
	}

	a.Ingest = service.NewIngestService(a.Store, vlm, a.Meme, a.Ledger, &service.IngestConfig{
		Workers:          cfg.Upload.Workers,
		MaxFiles:         cfg.Upload.MaxFiles,
		MaxFileSize:      cfg.Upload.MaxFileSize(),
		MaxContextLength: cfg.Upload.MaxContextLength,
	})
	a.Delete = service.NewDeleteService(a.Store, a.Meme, a.Ledger)
	a.Search = service.NewSearchService(a.Ledger, a.Meme, a.TikTok)
	if allowed != nil {
		a.Search.RestrictDomain(domain.DomainTikTok, allowed)
	}
	a.TikTokSvc = service.NewTikTokService(scraper.NewExtractor(newFetcher(&cfg.TikTok)), a.TikTok, &service.TikTokConfig{
		MaxContextLength: cfg.TikTok.MaxContextLength,
		Allowed:          allowed,
		DefaultOwner:     cfg.TikTok.DefaultOwner,
	})

	logger.Info("Services ready (storage=%s, vector=%s, meme=%s/%d, tiktok=%s/%d)",
		cfg.Storage.Type, cfg.Vector.Backend,
		memeEmbedder.GetModel(), memeEmbedder.Dimensions(),
		tiktokEmbedder.GetModel(), tiktokEmbedder.Dimensions())
	return nil
}

func (a *App) initStorage(ctx context.Context) error {
	cfg := a.Config.Storage
	store, err := storage.NewBlobStore(&storage.Config{
		Type: storage.StorageType(cfg.Type),
		Local: storage.LocalConfig{
			Root:          cfg.Local.Root,
			RoutePrefix:   cfg.Local.RoutePrefix,
			PublicBaseURL: cfg.Local.PublicBaseURL,
		},
		S3: storage.S3Config{
			Endpoint:     cfg.S3.Endpoint,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			UseSSL:       cfg.S3.UseSSL,
			UsePathStyle: cfg.S3.UsePathStyle,
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			PublicURL:    cfg.S3.PublicURL,
		},
	})
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	switch s := store.(type) {
	case *storage.S3Storage:
		if err := s.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure bucket: %w", err)
		}
	case *storage.LocalStorage:
		a.BlobPrefix = s.RoutePrefix()
	}
	a.Store = store
	return nil
}

func (a *App) initIndexes(ctx context.Context) (meme, tiktok repository.VectorIndex, err error) {
	memeCfg := a.Config.Domains.Meme.Embedding
	tiktokCfg := a.Config.Domains.TikTok.Embedding

	if a.Config.Vector.Backend == "memory" {
		logger.Warn("Using the in-memory vector index; vectors are lost on restart")
		return repository.NewMemoryIndex(memeCfg.Dimensions), repository.NewMemoryIndex(tiktokCfg.Dimensions), nil
	}

	q := a.Config.Qdrant
	repo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:   q.Host,
		Port:   q.Port,
		APIKey: q.APIKey,
		UseTLS: q.UseTLS,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init qdrant: %w", err)
	}
	a.closers = append(a.closers, repo.Close)
	a.Checks["qdrant"] = repo.Ping

	if err := repository.WaitReady(ctx, "qdrant", readyAttempts, repo.Ping); err != nil {
		return nil, nil, fmt.Errorf("qdrant unreachable: %w", err)
	}

	memeIdx := repo.Index(memeCfg.Collection, memeCfg.Dimensions, string(domain.DomainMeme))
	tiktokIdx := repo.Index(tiktokCfg.Collection, tiktokCfg.Dimensions, string(domain.DomainTikTok))
	for _, idx := range []*repository.QdrantIndex{memeIdx, tiktokIdx} {
		if err := idx.EnsureCollection(ctx); err != nil {
			return nil, nil, fmt.Errorf("ensure collection %s: %w", idx.Collection(), err)
		}
	}
	return memeIdx, tiktokIdx, nil
}

// initRedis returns nil when caching is disabled or Redis is unreachable;
// search works without it.
func (a *App) initRedis(ctx context.Context) *redis.Client {
	rc := a.Config.Cache.Redis
	if !rc.Enabled {
		return nil
	}
	opts, err := redis.ParseURL(rc.URL)
	if err != nil {
		logger.Warn("Embedding cache disabled: invalid redis url: %v", err)
		return nil
	}
	rdb := redis.NewClient(opts)
	ping := func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	if err := repository.WaitReady(ctx, "redis", 3, ping); err != nil {
		logger.Warn("Embedding cache disabled: %v", err)
		rdb.Close()
		return nil
	}
	a.closers = append(a.closers, rdb.Close)
	a.Checks["redis"] = ping
	return rdb
}

func newEmbedder(cfg *config.EmbeddingConfig) (service.EmbeddingProvider, error) {
	if err := cfg.ValidateWithAPIKey(); err != nil {
		return nil, err
	}
	return service.NewEmbeddingProvider(&service.EmbeddingConfig{
		Provider:   cfg.Provider,
		Model:      cfg.Model,
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Dimensions: cfg.Dimensions,
		Timeout:    cfg.Timeout,
	})
}

func newSpace(name domain.Domain, cfg *config.DomainConfig, e service.EmbeddingProvider, idx repository.VectorIndex) *service.DomainSpace {
	return &service.DomainSpace{
		Name:           name,
		Embedder:       e,
		Index:          idx,
		ScoreThreshold: cfg.ScoreThreshold,
		DefaultTopK:    cfg.TopK,
		MinTopK:        cfg.MinTopK,
		MaxTopK:        cfg.MaxTopK,
	}
}

func newFetcher(cfg *config.TikTokConfig) scraper.Fetcher {
	fc := scraper.FetcherConfig{
		UserAgent:         cfg.UserAgent,
		SettleWait:        cfg.SettleWait,
		NavigationTimeout: cfg.NavigationTimeout,
	}
	if strings.EqualFold(cfg.Fetcher, "http") {
		return scraper.NewHTTPFetcher(fc)
	}
	return scraper.NewChromeFetcher(fc, "")
}

// Close releases every connection opened by New, last opened first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
