package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	API       APIConfig
	Database  DatabaseConfig
	Scheduler SchedulerConfig
	Poller    PollerConfig
	Website   WebsiteConfig
	CSVDir    string
	LogPath   string
	LogLevel  string
	Presets   map[string]*SearchPreset
}

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type DatabaseConfig struct {
	URL            string // Postgres, domain data
	OpsPath        string // SQLite, operational data
	MigrationsPath string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type PollerConfig struct {
	// MinJobAge is how old a job must be before the batch poller checks it.
	// The remote scraper needs a few minutes to get anywhere, so polling
	// earlier just burns requests.
	MinJobAge time.Duration
	// RefreshMinAge is the shorter courtesy window used by on-demand refresh.
	RefreshMinAge time.Duration
}

type WebsiteConfig struct {
	Timeout   time.Duration
	Delay     time.Duration
	BatchSize int
	Interval  time.Duration
}

// SearchPreset is a reusable job configuration loaded from config/searches.
type SearchPreset struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Lang     string   `yaml:"lang"`
	Zoom     int      `yaml:"zoom"`
	Lat      string   `yaml:"lat"`
	Lon      string   `yaml:"lon"`
	FastMode bool     `yaml:"fast_mode"`
	Radius   int      `yaml:"radius"`
	Depth    int      `yaml:"depth"`
	Email    bool     `yaml:"email"`
	MaxTime  int      `yaml:"max_time"`
	Proxies  []string `yaml:"proxies"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		API: APIConfig{
			BaseURL: getEnv("GMAPS_API_URL", "http://localhost:8080"),
			Timeout: getEnvDuration("GMAPS_API_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			URL:            os.Getenv("DATABASE_URL"),
			OpsPath:        getEnv("OPS_DB_PATH", "leadharvest.db"),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "storage/migrations"),
		},
		Scheduler: SchedulerConfig{
			Cron:     os.Getenv("POLL_CRON"),
			Interval: getEnvDuration("POLL_INTERVAL", 5*time.Minute),
		},
		Poller: PollerConfig{
			MinJobAge:     getEnvDuration("JOB_MIN_AGE", 10*time.Minute),
			RefreshMinAge: getEnvDuration("REFRESH_MIN_AGE", 3*time.Minute),
		},
		Website: WebsiteConfig{
			Timeout:   getEnvDuration("SCRAPE_TIMEOUT", 30*time.Second),
			Delay:     getEnvDuration("SCRAPE_DELAY", time.Second),
			BatchSize: getEnvInt("SCRAPE_BATCH_SIZE", 20),
			Interval:  getEnvDuration("SCRAPE_INTERVAL", 5*time.Minute),
		},
		CSVDir:   getEnv("CSV_DOWNLOAD_DIR", "downloads"),
		LogPath:  getEnv("LOG_PATH", "daemon.log"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Presets:  make(map[string]*SearchPreset),
	}

	if err := cfg.loadPresets(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadPresets() error {
	presetDir := getEnv("SEARCH_PRESET_DIR", "config/searches")
	entries, err := os.ReadDir(presetDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(presetDir, entry.Name()))
		if err != nil {
			return err
		}

		var preset SearchPreset
		if err := yaml.Unmarshal(data, &preset); err != nil {
			return err
		}
		if preset.Name == "" {
			preset.Name = entry.Name()[:len(entry.Name())-len(".yaml")]
		}

		c.Presets[preset.Name] = &preset
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
