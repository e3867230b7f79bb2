// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/JakeFAU/job-skills-crawler/internal/canonical"
	"github.com/JakeFAU/job-skills-crawler/internal/listing"
)

// EnvPrefix prefixes every environment override, e.g. SKILLS_CRAWL_START_URL.
const EnvPrefix = "SKILLS"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging   LoggingConfig     `mapstructure:"logging"`
	Server    ServerConfig      `mapstructure:"server"`
	Auth      AuthConfig        `mapstructure:"auth"`
	Crawl     CrawlConfig       `mapstructure:"crawl"`
	Selectors listing.Selectors `mapstructure:"selectors"`
	Extract   ExtractConfig     `mapstructure:"extract"`
	Stopwords StopwordsConfig   `mapstructure:"stopwords"`
	Canonical CanonicalConfig   `mapstructure:"canonical"`
	Cursor    CursorConfig      `mapstructure:"cursor"`
	Storage   StorageConfig     `mapstructure:"storage"`
	Catalog   CatalogConfig     `mapstructure:"catalog"`
	DB        DBConfig          `mapstructure:"db"`
	Redis     RedisConfig       `mapstructure:"redis"`
	PubSub    PubSubConfig      `mapstructure:"pubsub"`
	Tracing   TracingConfig     `mapstructure:"tracing"`
}

// LoggingConfig toggles zap development features and the log level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	RunTimeout      time.Duration `mapstructure:"run_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlConfig governs listing traversal.
type CrawlConfig struct {
	StartURL string `mapstructure:"start_url" validate:"omitempty,url"`
	// Fixture replaces the web source with a JSON file of listing pages.
	Fixture       string            `mapstructure:"fixture"`
	Workers       int               `mapstructure:"workers" validate:"min=1"`
	MaxPages      int               `mapstructure:"max_pages" validate:"min=0"`
	RPS           float64           `mapstructure:"rps" validate:"gte=0"`
	Burst         int               `mapstructure:"burst" validate:"min=0"`
	UserAgent     string            `mapstructure:"user_agent" validate:"required"`
	Timeout       time.Duration     `mapstructure:"timeout" validate:"gt=0"`
	MaxBodyBytes  int               `mapstructure:"max_body_bytes" validate:"min=0"`
	RespectRobots bool              `mapstructure:"respect_robots"`
	Headers       map[string]string `mapstructure:"headers"`
	Headless      HeadlessConfig    `mapstructure:"headless"`
}

// Headless modes.
const (
	HeadlessOff    = "off"
	HeadlessAuto   = "auto"
	HeadlessAlways = "always"
)

// HeadlessConfig configures the chromedp renderer.
type HeadlessConfig struct {
	Mode              string        `mapstructure:"mode" validate:"oneof=off auto always"`
	MaxParallel       int           `mapstructure:"max_parallel" validate:"min=1"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" validate:"gt=0"`
	WaitSelector      string        `mapstructure:"wait_selector"`
	SettleDelay       time.Duration `mapstructure:"settle_delay" validate:"gte=0"`
	// MinBodyBytes is the body size under which script-heavy pages are promoted.
	MinBodyBytes int `mapstructure:"min_body_bytes" validate:"min=0"`
}

// ExtractConfig controls segmentation.
type ExtractConfig struct {
	RoleKeyword     string   `mapstructure:"role_keyword"`
	Separators      []string `mapstructure:"separators"`
	OptionalMarkers []string `mapstructure:"optional_markers"`
	RequiredMarkers []string `mapstructure:"required_markers"`
}

// StopwordsConfig selects the stopword lexicons.
type StopwordsConfig struct {
	Languages []string `mapstructure:"languages" validate:"dive,oneof=english polish"`
	ExtraFile string   `mapstructure:"extra_file"`
}

// CanonicalConfig controls skill canonicalization.
type CanonicalConfig struct {
	LooseThreshold int               `mapstructure:"loose_threshold" validate:"min=0,max=100"`
	MergeThreshold int               `mapstructure:"merge_threshold" validate:"min=0,max=100"`
	TopN           int               `mapstructure:"top_n" validate:"min=1"`
	DefaultAliases bool              `mapstructure:"default_aliases"`
	Aliases        []canonical.Alias `mapstructure:"aliases" validate:"dive"`
}

// CursorConfig selects where the resumption marker lives.
type CursorConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=file memory redis sqlite postgres gcs"`
	// Path is the marker file for the file backend.
	Path string `mapstructure:"path"`
	// Name keys the marker row in SQL backends.
	Name string `mapstructure:"name" validate:"required"`
	// Key is the Redis key.
	Key string        `mapstructure:"key"`
	TTL time.Duration `mapstructure:"ttl" validate:"gte=0"`
	// Object is the GCS object holding the marker.
	Object string `mapstructure:"object"`
}

// StorageConfig sets where snapshots are written.
type StorageConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=memory local gcs"`
	BaseDir string `mapstructure:"base_dir"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// CatalogConfig selects the snapshot catalog.
type CatalogConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=memory sqlite postgres"`
}

// DBConfig controls access to the relational databases.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	CatalogTable    string        `mapstructure:"catalog_table"`
	CursorTable     string        `mapstructure:"cursor_table"`
	MaxConns        int32         `mapstructure:"max_conns" validate:"min=0"`
	MinConns        int32         `mapstructure:"min_conns" validate:"min=0"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime" validate:"gte=0"`
}

// RedisConfig points at the Redis cursor store.
type RedisConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// PubSubConfig holds metadata for run notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

// Load builds a Config from disk/environment and validates it.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read builds a Config from disk/environment without validating it, for
// commands that only use part of it.
func Read(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.run_timeout", "30m")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("crawl.start_url", "")
	v.SetDefault("crawl.fixture", "")
	v.SetDefault("crawl.workers", 4)
	v.SetDefault("crawl.max_pages", 0)
	v.SetDefault("crawl.rps", 1.0)
	v.SetDefault("crawl.burst", 1)
	v.SetDefault("crawl.user_agent", "job-skills-bot/0.1")
	v.SetDefault("crawl.timeout", "15s")
	v.SetDefault("crawl.max_body_bytes", 0)
	v.SetDefault("crawl.respect_robots", true)
	v.SetDefault("crawl.headless.mode", HeadlessOff)
	v.SetDefault("crawl.headless.max_parallel", 1)
	v.SetDefault("crawl.headless.navigation_timeout", "25s")
	v.SetDefault("crawl.headless.wait_selector", "body")
	v.SetDefault("crawl.headless.settle_delay", "500ms")
	v.SetDefault("crawl.headless.min_body_bytes", 2048)
	v.SetDefault("selectors.posting", "")
	v.SetDefault("selectors.id", "")
	v.SetDefault("selectors.link", "")
	v.SetDefault("selectors.text", "")
	v.SetDefault("selectors.next_page", "")
	v.SetDefault("selectors.detail_text", "")
	v.SetDefault("extract.role_keyword", "")
	v.SetDefault("stopwords.languages", []string{"english", "polish"})
	v.SetDefault("stopwords.extra_file", "")
	v.SetDefault("canonical.loose_threshold", canonical.DefaultLooseThreshold)
	v.SetDefault("canonical.merge_threshold", canonical.DefaultMergeThreshold)
	v.SetDefault("canonical.top_n", 30)
	v.SetDefault("canonical.default_aliases", true)
	v.SetDefault("cursor.backend", "file")
	v.SetDefault("cursor.path", "data/cursor.txt")
	v.SetDefault("cursor.name", "default")
	v.SetDefault("cursor.key", "skills:cursor:default")
	v.SetDefault("cursor.ttl", "0s")
	v.SetDefault("cursor.object", "cursor/marker.txt")
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.base_dir", "data/snapshots")
	v.SetDefault("storage.prefix", "snapshots")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("catalog.backend", "memory")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.sqlite_path", "data/skills.db")
	v.SetDefault("db.catalog_table", "skill_snapshots")
	v.SetDefault("db.cursor_table", "crawl_cursors")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", "30m")
	v.SetDefault("redis.url", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "job-skills-crawler")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits. Field errors are
// reported with their config key, e.g. "crawl.workers".
func (c Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s must satisfy %s", configKey(fe.Namespace()), constraint(fe)))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("validate config: %w", err)
	}
	return c.validateCrossField()
}

func (c Config) validateCrossField() error {
	switch {
	case c.Auth.Enabled && c.Auth.APIKey == "":
		return errors.New("auth.api_key must be set when auth is enabled")
	case c.Crawl.Fixture == "" && c.Crawl.StartURL == "":
		return errors.New("crawl.start_url or crawl.fixture must be set")
	case c.Crawl.Fixture == "" && strings.TrimSpace(c.Selectors.Posting) == "":
		return errors.New("selectors.posting must be set when crawling the web")
	case c.Canonical.LooseThreshold > c.Canonical.MergeThreshold:
		return errors.New("canonical.loose_threshold must not exceed canonical.merge_threshold")
	case (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == ""):
		return errors.New("pubsub.project_id and pubsub.topic_name must be set together")
	}
	for _, a := range c.Canonical.Aliases {
		if strings.TrimSpace(a.Marker) == "" || strings.TrimSpace(a.Label) == "" {
			return errors.New("canonical.aliases entries need both marker and label")
		}
	}
	if err := c.requireBackend("cursor", c.Cursor.Backend); err != nil {
		return err
	}
	if err := c.requireBackend("catalog", c.Catalog.Backend); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.BaseDir == "" {
			return errors.New("storage.base_dir must be set for the local backend")
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket must be set for the gcs backend")
		}
	}
	return nil
}

// requireBackend checks the settings a cursor or catalog backend depends on.
func (c Config) requireBackend(section, backend string) error {
	switch backend {
	case "file":
		if c.Cursor.Path == "" {
			return fmt.Errorf("cursor.path must be set for the file %s backend", section)
		}
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url must be set for the redis %s backend", section)
		}
	case "sqlite":
		if c.DB.SQLitePath == "" {
			return fmt.Errorf("db.sqlite_path must be set for the sqlite %s backend", section)
		}
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set for the postgres %s backend", section)
		}
	case "gcs":
		if c.Storage.Bucket == "" || c.Cursor.Object == "" {
			return fmt.Errorf("storage.bucket and cursor.object must be set for the gcs %s backend", section)
		}
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// configKey turns a validator namespace like "Config.crawl.workers" into the
// config key "crawl.workers".
func configKey(namespace string) string {
	_, key, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}
	return key
}

func constraint(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
