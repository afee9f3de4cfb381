package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Vector   VectorConfig   `mapstructure:"vector"`
	Qdrant   QdrantConfig   `mapstructure:"qdrant"`
	VLM      VLMConfig      `mapstructure:"vlm"`
	Domains  DomainsConfig  `mapstructure:"domains"`
	Upload   UploadConfig   `mapstructure:"upload"`
	TikTok   TikTokConfig   `mapstructure:"tiktok"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// DatabaseConfig selects the ownership ledger backend.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres
	Path            string        `mapstructure:"path"`   // sqlite file
	DSN             string        `mapstructure:"dsn"`    // postgres connection string
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

type StorageConfig struct {
	Type  string             `mapstructure:"type"` // local, s3, r2, minio
	Local LocalStorageConfig `mapstructure:"local"`
	S3    S3StorageConfig    `mapstructure:"s3"`
}

type LocalStorageConfig struct {
	Root          string `mapstructure:"root"`
	RoutePrefix   string `mapstructure:"route_prefix"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type S3StorageConfig struct {
	Endpoint     string `mapstructure:"endpoint"`
	Region       string `mapstructure:"region"`
	Bucket       string `mapstructure:"bucket"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UseSSL       bool   `mapstructure:"use_ssl"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	PublicURL    string `mapstructure:"public_url"`
}

// VectorConfig selects the vector index backend.
type VectorConfig struct {
	Backend string `mapstructure:"backend"` // qdrant, memory
}

type QdrantConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
	UseTLS bool   `mapstructure:"use_tls"`
}

type VLMConfig struct {
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type DomainsConfig struct {
	Meme   DomainConfig `mapstructure:"meme"`
	TikTok DomainConfig `mapstructure:"tiktok"`
}

// DomainConfig is one embedding space: its provider, its collection and
// its search policy.
type DomainConfig struct {
	Embedding      EmbeddingConfig `mapstructure:"embedding"`
	ScoreThreshold float32         `mapstructure:"score_threshold"`
	TopK           int             `mapstructure:"top_k"`
	MinTopK        int             `mapstructure:"min_top_k"`
	MaxTopK        int             `mapstructure:"max_top_k"`
}

// Validate checks the search bounds and the embedding settings.
func (d *DomainConfig) Validate() error {
	if err := d.Embedding.Validate(); err != nil {
		return err
	}
	if d.TopK <= 0 {
		return fmt.Errorf("domain %q: top_k must be positive", d.Embedding.Name)
	}
	if d.MinTopK > 0 && d.MaxTopK > 0 && (d.TopK < d.MinTopK || d.TopK > d.MaxTopK) {
		return fmt.Errorf("domain %q: top_k %d outside [%d, %d]", d.Embedding.Name, d.TopK, d.MinTopK, d.MaxTopK)
	}
	if d.ScoreThreshold < -1 || d.ScoreThreshold > 1 {
		return fmt.Errorf("domain %q: score_threshold must be within [-1, 1]", d.Embedding.Name)
	}
	return nil
}

type UploadConfig struct {
	MaxFiles         int `mapstructure:"max_files"`
	MaxFileSizeMB    int `mapstructure:"max_file_size_mb"`
	MaxContextLength int `mapstructure:"max_context_length"`
	Workers          int `mapstructure:"workers"`
}

// MaxFileSize returns the per-file limit in bytes.
func (u UploadConfig) MaxFileSize() int64 {
	return int64(u.MaxFileSizeMB) << 20
}

type TikTokConfig struct {
	Fetcher           string        `mapstructure:"fetcher"` // chrome, http
	SettleWait        time.Duration `mapstructure:"settle_wait"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	MaxContextLength  int           `mapstructure:"max_context_length"`
	AllowedOwners     []string      `mapstructure:"allowed_owners"`
	DefaultOwner      string        `mapstructure:"default_owner"`
}

type CacheConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// Load reads configuration from configPath (or ./configs/config.yaml),
// then from the environment. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindSecrets(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Domains.Meme.Embedding.ResolveEnvVars()
	cfg.Domains.TikTok.Embedding.ResolveEnvVars()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", false)
	v.SetDefault("server.cors.allowed_origins", []string{"http://localhost:5173"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/memehub.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local.root", "./uploads")
	v.SetDefault("storage.local.route_prefix", "/images")
	v.SetDefault("storage.local.public_base_url", "")
	v.SetDefault("storage.s3.region", "auto")
	v.SetDefault("storage.s3.bucket", "memes")
	v.SetDefault("storage.s3.use_ssl", true)
	v.SetDefault("storage.s3.use_path_style", true)

	v.SetDefault("vector.backend", "qdrant")
	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.use_tls", false)

	v.SetDefault("vlm.model", "gpt-4o-mini")
	v.SetDefault("vlm.base_url", "https://api.openai.com/v1")
	v.SetDefault("vlm.max_tokens", 300)
	v.SetDefault("vlm.timeout", "60s")

	v.SetDefault("domains.meme.embedding.name", "meme")
	v.SetDefault("domains.meme.embedding.provider", "openai")
	v.SetDefault("domains.meme.embedding.model", "text-embedding-ada-002")
	v.SetDefault("domains.meme.embedding.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("domains.meme.embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("domains.meme.embedding.dimensions", 1536)
	v.SetDefault("domains.meme.embedding.collection", "memehub_memes")
	v.SetDefault("domains.meme.embedding.timeout", "30s")
	v.SetDefault("domains.meme.score_threshold", 0.75)
	v.SetDefault("domains.meme.top_k", 5)

	v.SetDefault("domains.tiktok.embedding.name", "tiktok")
	v.SetDefault("domains.tiktok.embedding.provider", "jina")
	v.SetDefault("domains.tiktok.embedding.model", "jina-embeddings-v3")
	v.SetDefault("domains.tiktok.embedding.api_key_env", "JINA_API_KEY")
	v.SetDefault("domains.tiktok.embedding.base_url", "https://api.jina.ai/v1")
	v.SetDefault("domains.tiktok.embedding.dimensions", 1024)
	v.SetDefault("domains.tiktok.embedding.collection", "memehub_tiktok")
	v.SetDefault("domains.tiktok.embedding.timeout", "30s")
	v.SetDefault("domains.tiktok.score_threshold", 0.3)
	v.SetDefault("domains.tiktok.top_k", 10)
	v.SetDefault("domains.tiktok.min_top_k", 2)
	v.SetDefault("domains.tiktok.max_top_k", 20)

	v.SetDefault("upload.max_files", 10)
	v.SetDefault("upload.max_file_size_mb", 10)
	v.SetDefault("upload.max_context_length", 30)
	v.SetDefault("upload.workers", 4)

	v.SetDefault("tiktok.fetcher", "chrome")
	v.SetDefault("tiktok.settle_wait", "5s")
	v.SetDefault("tiktok.navigation_timeout", "45s")
	v.SetDefault("tiktok.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("tiktok.max_context_length", 200)
	v.SetDefault("tiktok.allowed_owners", []string{})
	v.SetDefault("tiktok.default_owner", "")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.url", "redis://localhost:6379/0")
	v.SetDefault("cache.redis.ttl", "24h")
}

// bindSecrets maps the conventional variable names onto config keys.
func bindSecrets(v *viper.Viper) {
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("database.dsn", "DATABASE_URL")
	_ = v.BindEnv("storage.type", "STORAGE_TYPE")
	_ = v.BindEnv("storage.s3.endpoint", "S3_ENDPOINT")
	_ = v.BindEnv("storage.s3.region", "S3_REGION")
	_ = v.BindEnv("storage.s3.bucket", "S3_BUCKET")
	_ = v.BindEnv("storage.s3.access_key", "S3_ACCESS_KEY")
	_ = v.BindEnv("storage.s3.secret_key", "S3_SECRET_KEY")
	_ = v.BindEnv("storage.s3.public_url", "S3_PUBLIC_URL")
	_ = v.BindEnv("storage.local.public_base_url", "PUBLIC_BASE_URL")
	_ = v.BindEnv("qdrant.host", "QDRANT_HOST")
	_ = v.BindEnv("qdrant.port", "QDRANT_PORT")
	_ = v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	_ = v.BindEnv("vlm.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("vlm.base_url", "OPENAI_BASE_URL")
	_ = v.BindEnv("vlm.model", "VLM_MODEL")
	_ = v.BindEnv("cache.redis.url", "REDIS_URL")
	_ = v.BindEnv("tiktok.default_owner", "TIKTOK_DEFAULT_OWNER")
}

// Validate checks settings that would otherwise fail on first request.
func (c *Config) Validate() error {
	if err := c.Domains.Meme.Validate(); err != nil {
		return err
	}
	if err := c.Domains.TikTok.Validate(); err != nil {
		return err
	}
	if c.Upload.MaxFiles <= 0 || c.Upload.MaxFileSizeMB <= 0 {
		return fmt.Errorf("upload limits must be positive")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.Storage.Type {
	case "local", "s3", "r2", "minio":
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	switch c.Vector.Backend {
	case "qdrant", "memory":
	default:
		return fmt.Errorf("unknown vector backend %q", c.Vector.Backend)
	}
	return nil
}

// TikTokAllowed reports whether owner may use the TikTok features.
// An empty allowlist admits everyone.
func (t TikTokConfig) TikTokAllowed(owner string) bool {
	if len(t.AllowedOwners) == 0 {
		return true
	}
	owner = strings.ToLower(strings.TrimSpace(owner))
	for _, allowed := range t.AllowedOwners {
		if strings.ToLower(strings.TrimSpace(allowed)) == owner {
			return true
		}
	}
	return false
}
