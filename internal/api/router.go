package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/timmy/memehub/internal/api/handler"
	"github.com/timmy/memehub/internal/api/middleware"
	"github.com/timmy/memehub/internal/config"
	"github.com/timmy/memehub/internal/logger"
	"github.com/timmy/memehub/internal/service"
	"github.com/timmy/memehub/internal/storage"
)

// Dependencies are the services behind the HTTP API.
type Dependencies struct {
	Search *service.SearchService
	Ingest *service.IngestService
	Delete *service.DeleteService
	TikTok *service.TikTokService // nil disables the TikTok routes

	// Blobs is served under BlobPrefix when set (local storage only).
	Blobs      storage.BlobStore
	BlobPrefix string

	Checks map[string]handler.Check
	Logger *logger.Logger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	// Set Gin mode
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	if n := cfg.Upload.MaxFileSize(); n > 0 {
		r.MaxMultipartMemory = n
	}

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.CORS(cfg.Server.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler(deps.Checks)
	searchHandler := handler.NewSearchHandler(deps.Search)
	memeHandler := handler.NewMemeHandler(deps.Search, deps.Delete)
	uploadHandler := handler.NewUploadHandler(deps.Ingest, cfg.Upload.MaxFiles, cfg.Upload.MaxFileSize())

	// Health check
	r.GET("/health", healthHandler.Health)
	r.GET("/health/ready", healthHandler.Ready)

	if deps.Blobs != nil && deps.BlobPrefix != "" {
		blobHandler := handler.NewBlobHandler(deps.Blobs)
		r.GET(strings.TrimRight(deps.BlobPrefix, "/")+"/*key", blobHandler.Serve)
	}

	api := r.Group("/api")
	{
		// Memes
		api.POST("/upload", uploadHandler.Upload)
		api.GET("/all-memes", memeHandler.AllMemes)
		api.GET("/recent-memes", memeHandler.RecentMemes)
		api.DELETE("/delete-image", memeHandler.DeleteImage)

		// Search
		api.GET("/search", searchHandler.SearchMemes)
		api.GET("/search/tiktok", searchHandler.SearchTikTok)
		api.GET("/domains", searchHandler.GetDomains)

		// TikTok
		if deps.TikTok != nil {
			tiktokHandler := handler.NewTikTokHandler(deps.TikTok)
			api.POST("/ingest", tiktokHandler.Ingest)
			api.DELETE("/tiktok", tiktokHandler.Delete)
			api.POST("/auth/tiktok-access", tiktokHandler.Access)
		}
	}

	return r
}
