package configuration

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/flotatrack/fleet-assistant/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

// LoadEnv loads the env files that exist, looking in the working directory
// first and falling back to the nearest directory holding a go.mod.
func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if resolved, ok := resolveEnvFile(file); ok {
			existingFiles = append(existingFiles, resolved)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

func resolveEnvFile(file string) (string, bool) {
	if fileExists(file) {
		return file, true
	}
	if filepath.IsAbs(file) {
		return "", false
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for dir := wd; ; dir = filepath.Dir(dir) {
		if fileExists(filepath.Join(dir, "go.mod")) {
			candidate := filepath.Join(dir, file)
			return candidate, fileExists(candidate)
		}
		if filepath.Dir(dir) == dir {
			return "", false
		}
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"fleet"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type LokiOptions struct {
	AppName string `env:"LOKI_APP_NAME" envDefault:"fleet-assistant"`
	LogPath string `env:"LOG_PATH" envDefault:"./logs/app.log"`
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"fleet-assistant"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type RateLimitOptions struct {
	Enabled bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	PerUser int64         `env:"RATE_LIMIT_PER_USER" envDefault:"60"`
	Period  time.Duration `env:"RATE_LIMIT_PERIOD" envDefault:"1m"`
}

// Validate checks the rate limit configuration for errors
func (r *RateLimitOptions) Validate() error {
	if !r.Enabled {
		return nil
	}
	if r.PerUser <= 0 {
		return fmt.Errorf("rate limit PerUser must be positive, got %d", r.PerUser)
	}
	if r.PerUser > 1000000 {
		return fmt.Errorf("rate limit PerUser too high, maximum is 1,000,000, got %d", r.PerUser)
	}
	if r.Period <= 0 {
		return fmt.Errorf("rate limit Period must be positive, got %s", r.Period)
	}
	return nil
}

type AssistantOptions struct {
	// conversation memory
	MemoryBackend   string        `env:"ASSISTANT_MEMORY_BACKEND" envDefault:"memory"` // memory or redis
	MaxAge          time.Duration `env:"ASSISTANT_MEMORY_MAX_AGE" envDefault:"24h"`
	SweepInterval   time.Duration `env:"ASSISTANT_SWEEP_INTERVAL" envDefault:"1h"`
	SnapshotEnabled bool          `env:"ASSISTANT_SNAPSHOT_ENABLED" envDefault:"true"`
	SnapshotPath    string        `env:"ASSISTANT_SNAPSHOT_PATH" envDefault:"./data/conversations.bolt"`

	// planner
	MaxResultLimit   int `env:"ASSISTANT_MAX_RESULT_LIMIT" envDefault:"100"`
	DefaultLimit     int `env:"ASSISTANT_DEFAULT_LIMIT" envDefault:"50"`
	AlertWindowDays  int `env:"ASSISTANT_ALERT_WINDOW_DAYS" envDefault:"30"`
	ExpiryWindowDays int `env:"ASSISTANT_EXPIRY_WINDOW_DAYS" envDefault:"30"`

	// classifier
	MinBayesProbability float64 `env:"ASSISTANT_MIN_BAYES_PROBABILITY" envDefault:"0.35"`
	CorpusPath          string  `env:"ASSISTANT_CORPUS_PATH"`

	// result cache
	CacheEnabled bool          `env:"ASSISTANT_CACHE_ENABLED" envDefault:"false"`
	CacheBackend string        `env:"ASSISTANT_CACHE_BACKEND" envDefault:"memory"` // memory or redis
	CachePrefix  string        `env:"ASSISTANT_CACHE_PREFIX" envDefault:"assistant:results:v1"`
	CacheTTL     time.Duration `env:"ASSISTANT_CACHE_TTL" envDefault:"2m"`

	QueryTimeout time.Duration `env:"ASSISTANT_QUERY_TIMEOUT" envDefault:"10s"`
}

func (a *AssistantOptions) Validate() error {
	backend := strings.ToLower(strings.TrimSpace(a.MemoryBackend))
	switch backend {
	case "", "memory":
		backend = "memory"
	case "redis":
	default:
		return fmt.Errorf("invalid ASSISTANT_MEMORY_BACKEND=%q (expected memory|redis)", a.MemoryBackend)
	}
	a.MemoryBackend = backend

	cacheBackend := strings.ToLower(strings.TrimSpace(a.CacheBackend))
	switch cacheBackend {
	case "", "memory":
		cacheBackend = "memory"
	case "redis":
	default:
		return fmt.Errorf("invalid ASSISTANT_CACHE_BACKEND=%q (expected memory|redis)", a.CacheBackend)
	}
	a.CacheBackend = cacheBackend

	if a.MaxAge <= 0 {
		return fmt.Errorf("ASSISTANT_MEMORY_MAX_AGE must be positive, got %s", a.MaxAge)
	}
	if a.SweepInterval <= 0 {
		return fmt.Errorf("ASSISTANT_SWEEP_INTERVAL must be positive, got %s", a.SweepInterval)
	}
	if a.MaxResultLimit <= 0 || a.DefaultLimit <= 0 {
		return fmt.Errorf("planner limits must be positive (max=%d default=%d)", a.MaxResultLimit, a.DefaultLimit)
	}
	if a.AlertWindowDays <= 0 || a.ExpiryWindowDays <= 0 {
		return fmt.Errorf("planner windows must be positive (alerts=%d expiry=%d)", a.AlertWindowDays, a.ExpiryWindowDays)
	}
	if a.MinBayesProbability < 0 || a.MinBayesProbability > 1 {
		return fmt.Errorf("ASSISTANT_MIN_BAYES_PROBABILITY must be within [0,1], got %v", a.MinBayesProbability)
	}
	return nil
}

type Configuration struct {
	Database      DatabaseOptions
	Loki          LokiOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions
	RateLimit     RateLimitOptions
	Assistant     AssistantOptions

	RedisURL         string `env:"REDIS_URL" envDefault:"localhost:6379"`
	ServerPort       int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	Origin           string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	// Identity headers set by the upstream auth gateway.
	UserIDHeader    string `env:"USER_ID_HEADER" envDefault:"X-User-ID"`
	CompanyIDHeader string `env:"COMPANY_ID_HEADER" envDefault:"X-Company-ID"`
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`

	logFile io.Closer
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

// Load builds a configuration from the given env files without touching the
// process-wide singleton. Tests and CLIs with a custom --env flag use it.
func Load(envFiles ...string) (*Configuration, error) {
	c := &Configuration{}
	if err := c.load(envFiles); err != nil {
		c.Unload()
		return nil, err
	}
	return c, nil
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 && len(envFiles) > 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate limit configuration error: %w", err)
	}
	if err := c.Assistant.Validate(); err != nil {
		return fmt.Errorf("assistant configuration error: %w", err)
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.Loki.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
