package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Category is one marketplace section watched independently.
type Category struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type Config struct {
	ScanInterval    time.Duration
	ScanCron        string
	CheckInterval   time.Duration
	CheckWarmup     time.Duration
	FastSaleMinutes int
	CategoryDelay   time.Duration
	ListingDelay    time.Duration

	DBPath      string
	DatabaseURL string
	ListenAddr  string
	UserAgent   string

	Categories []Category
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ScanInterval:    getEnvDuration("SCAN_INTERVAL", 600*time.Second),
		ScanCron:        os.Getenv("SCAN_CRON"),
		CheckInterval:   getEnvDuration("CHECK_INTERVAL", 300*time.Second),
		CheckWarmup:     getEnvDuration("CHECK_WARMUP", 30*time.Second),
		FastSaleMinutes: getEnvInt("SELL_CHECK_MINUTES", 30),
		CategoryDelay:   getEnvDuration("CATEGORY_DELAY", 2*time.Second),
		ListingDelay:    getEnvDuration("LISTING_DELAY", 1*time.Second),
		DBPath:          getEnv("DB_PATH", "fast_seller.db"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		ListenAddr:      getEnv("LISTEN_ADDR", ":8000"),
		UserAgent:       getEnv("USER_AGENT", defaultUserAgent),
		Categories:      defaultCategories(),
	}

	if err := cfg.loadCategoryFile(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultCategories() []Category {
	return []Category{
		{Key: "hobby", Name: "ホビー", URL: "https://netmall.hardoff.co.jp/cate/040000000000000/"},
		{Key: "fishing", Name: "釣具", URL: "https://netmall.hardoff.co.jp/cate/00010019/"},
	}
}

// loadCategoryFile replaces the built-in catalog when a YAML category file is
// present. File order is the scan order.
func (c *Config) loadCategoryFile() error {
	path := getEnv("CATEGORIES_FILE", "config/categories.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var categories []Category
	if err := yaml.Unmarshal(data, &categories); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for _, cat := range categories {
		if cat.Key == "" || cat.URL == "" {
			return fmt.Errorf("category file %s: every entry needs a key and a url", path)
		}
	}

	if len(categories) > 0 {
		c.Categories = categories
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

// getEnvDuration accepts either a Go duration string ("10m") or a bare integer
// number of seconds ("600").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	return defaultVal
}
