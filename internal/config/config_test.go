package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/job-skills-crawler/internal/canonical"
)

const minimalYAML = `
crawl:
  start_url: https://jobs.example/offers
selectors:
  posting: li.offer
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 4, cfg.Crawl.Workers)
	assert.Equal(t, 15*time.Second, cfg.Crawl.Timeout)
	assert.True(t, cfg.Crawl.RespectRobots)
	assert.Equal(t, HeadlessOff, cfg.Crawl.Headless.Mode)
	assert.Equal(t, 500*time.Millisecond, cfg.Crawl.Headless.SettleDelay)
	assert.Equal(t, []string{"english", "polish"}, cfg.Stopwords.Languages)
	assert.Equal(t, canonical.DefaultLooseThreshold, cfg.Canonical.LooseThreshold)
	assert.Equal(t, canonical.DefaultMergeThreshold, cfg.Canonical.MergeThreshold)
	assert.Equal(t, 30, cfg.Canonical.TopN)
	assert.True(t, cfg.Canonical.DefaultAliases)
	assert.Equal(t, "file", cfg.Cursor.Backend)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "memory", cfg.Catalog.Backend)
	assert.Equal(t, "li.offer", cfg.Selectors.Posting)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
logging:
  development: true
server:
  port: 9090
  run_timeout: 5m
auth:
  enabled: true
  api_key: secret
crawl:
  start_url: https://jobs.example/offers?page=1
  workers: 8
  max_pages: 12
  rps: 0.5
  burst: 2
  user_agent: skills-test/1.0
  timeout: 30s
  headers:
    Accept-Language: pl-PL
  headless:
    mode: auto
    max_parallel: 2
selectors:
  posting: article.offer
  id: "@data-id"
  link: a.title@href
  next_page: a.next@href
  fields:
    location: .city
  detail_text: .description
extract:
  role_keyword: developer
  optional_markers: ["nice to have"]
stopwords:
  languages: [english]
canonical:
  loose_threshold: 85
  merge_threshold: 92
  top_n: 10
  default_aliases: false
  aliases:
    - marker: golang
      label: Go
cursor:
  backend: postgres
  name: nofluff
storage:
  backend: gcs
  bucket: skills-snapshots
  prefix: runs
catalog:
  backend: postgres
db:
  dsn: postgres://skills@localhost/skills
  max_conns: 8
pubsub:
  project_id: skills-project
  topic_name: skills-runs
tracing:
  enabled: true
  sample_ratio: 0.25
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Server.RunTimeout)
	assert.Equal(t, "secret", cfg.Auth.APIKey)
	assert.Equal(t, 8, cfg.Crawl.Workers)
	assert.Equal(t, 12, cfg.Crawl.MaxPages)
	assert.InDelta(t, 0.5, cfg.Crawl.RPS, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.Crawl.Timeout)
	assert.Equal(t, HeadlessAuto, cfg.Crawl.Headless.Mode)
	assert.Equal(t, "a.title@href", cfg.Selectors.Link)
	assert.Equal(t, ".city", cfg.Selectors.Fields["location"])
	assert.Equal(t, "developer", cfg.Extract.RoleKeyword)
	assert.Equal(t, []string{"english"}, cfg.Stopwords.Languages)
	assert.Equal(t, 85, cfg.Canonical.LooseThreshold)
	assert.Equal(t, []canonical.Alias{{Marker: "golang", Label: "Go"}}, cfg.Canonical.Aliases)
	assert.Equal(t, "postgres", cfg.Cursor.Backend)
	assert.Equal(t, "nofluff", cfg.Cursor.Name)
	assert.Equal(t, "skills-snapshots", cfg.Storage.Bucket)
	assert.Equal(t, int32(8), cfg.DB.MaxConns)
	assert.Equal(t, "skills-runs", cfg.PubSub.TopicName)
	assert.InDelta(t, 0.25, cfg.Tracing.SampleRatio, 1e-9)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SKILLS_CRAWL_START_URL", "https://env.example/jobs")
	t.Setenv("SKILLS_SELECTORS_POSTING", "div.job")
	t.Setenv("SKILLS_CRAWL_WORKERS", "2")
	t.Setenv("SKILLS_CANONICAL_MERGE_THRESHOLD", "95")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://env.example/jobs", cfg.Crawl.StartURL)
	assert.Equal(t, "div.job", cfg.Selectors.Posting)
	assert.Equal(t, 2, cfg.Crawl.Workers)
	assert.Equal(t, 95, cfg.Canonical.MergeThreshold)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestFixtureNeedsNoSelectors(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, "crawl:\n  fixture: testdata/pages.json\n"))
	require.NoError(t, err)
	assert.Equal(t, "testdata/pages.json", cfg.Crawl.Fixture)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port must satisfy min=1"},
		{name: "workers", mutate: func(c *Config) { c.Crawl.Workers = 0 }, want: "crawl.workers"},
		{name: "headless mode", mutate: func(c *Config) { c.Crawl.Headless.Mode = "sometimes" }, want: "crawl.headless.mode"},
		{name: "language", mutate: func(c *Config) { c.Stopwords.Languages = []string{"klingon"} }, want: "stopwords.languages[0]"},
		{name: "threshold range", mutate: func(c *Config) { c.Canonical.MergeThreshold = 120 }, want: "canonical.merge_threshold"},
		{name: "threshold order", mutate: func(c *Config) { c.Canonical.LooseThreshold = 95 }, want: "must not exceed"},
		{name: "auth key", mutate: func(c *Config) { c.Auth.Enabled = true }, want: "auth.api_key"},
		{name: "no source", mutate: func(c *Config) { c.Crawl.StartURL = "" }, want: "crawl.start_url or crawl.fixture"},
		{name: "no posting selector", mutate: func(c *Config) { c.Selectors.Posting = " " }, want: "selectors.posting"},
		{name: "bad url", mutate: func(c *Config) { c.Crawl.StartURL = "not a url" }, want: "crawl.start_url"},
		{name: "alias", mutate: func(c *Config) { c.Canonical.Aliases = []canonical.Alias{{Marker: "py"}} }, want: "canonical.aliases"},
		{name: "postgres cursor", mutate: func(c *Config) { c.Cursor.Backend = "postgres" }, want: "db.dsn"},
		{name: "redis cursor", mutate: func(c *Config) { c.Cursor.Backend = "redis" }, want: "redis.url"},
		{name: "gcs cursor", mutate: func(c *Config) { c.Cursor.Backend = "gcs" }, want: "storage.bucket"},
		{name: "sqlite catalog", mutate: func(c *Config) { c.Catalog.Backend = "sqlite"; c.DB.SQLitePath = "" }, want: "db.sqlite_path"},
		{name: "gcs storage", mutate: func(c *Config) { c.Storage.Backend = "gcs" }, want: "storage.bucket"},
		{name: "pubsub pair", mutate: func(c *Config) { c.PubSub.ProjectID = "p" }, want: "pubsub.project_id"},
		{name: "log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, want: "logging.level"},
		{name: "sample ratio", mutate: func(c *Config) { c.Tracing.SampleRatio = 2 }, want: "tracing.sample_ratio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadSkipsValidation(t *testing.T) {
	t.Parallel()

	cfg, err := Read(writeConfig(t, "canonical:\n  merge_threshold: 80\n"))
	require.NoError(t, err)
	assert.Equal(t, 80, cfg.Canonical.MergeThreshold)
	require.Error(t, cfg.Validate())
}
