// Package config loads service settings from a YAML file, a .env file and
// the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"mise/internal/models"
)

// Storage drivers
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Advisor backends
const (
	AdvisorNone   = "none"
	AdvisorOpenAI = "openai"
	AdvisorGitHub = "github"
	AdvisorOllama = "ollama"
	AdvisorAzure  = "azure"
)

// Config represents the application configuration
type Config struct {
	LogLevel  string          `yaml:"log_level" env:"MISE_LOG_LEVEL"`
	Server    ServerConfig    `yaml:"server"`
	Inventory InventoryConfig `yaml:"inventory"`
	Recipes   RecipesConfig   `yaml:"recipes"`
	Storage   StorageConfig   `yaml:"storage"`
	Advisor   AdvisorConfig   `yaml:"advisor"`
}

// ServerConfig holds the listen ports
type ServerConfig struct {
	Port        int `yaml:"port" env:"MISE_PORT"`
	MetricsPort int `yaml:"metrics_port" env:"MISE_METRICS_PORT"`
}

// InventoryConfig holds the recognized categories and the low-stock threshold
type InventoryConfig struct {
	Categories        []string `yaml:"categories" env:"MISE_CATEGORIES" envSeparator:","`
	LowStockThreshold float64  `yaml:"low_stock_threshold" env:"MISE_LOW_STOCK_THRESHOLD"`
}

// RecipesConfig holds the recipe book location and per-use deduction
type RecipesConfig struct {
	Path      string  `yaml:"path" env:"MISE_RECIPES_PATH"`
	UseAmount float64 `yaml:"use_amount" env:"MISE_RECIPE_USE_AMOUNT"`
}

// StorageConfig selects and configures the persistence gateway
type StorageConfig struct {
	Driver        string `yaml:"driver" env:"MISE_STORAGE_DRIVER"`
	InventoryPath string `yaml:"inventory_path" env:"MISE_INVENTORY_PATH"`
	HistoryPath   string `yaml:"history_path" env:"MISE_HISTORY_PATH"`
	DSN           string `yaml:"dsn" env:"MISE_DATABASE_URL"`
}

// AdvisorConfig configures the recipe suggestion backend
type AdvisorConfig struct {
	Backend     string        `yaml:"backend" env:"MISE_ADVISOR_BACKEND"`
	Model       string        `yaml:"model" env:"MISE_ADVISOR_MODEL"`
	BaseURL     string        `yaml:"base_url" env:"MISE_ADVISOR_BASE_URL"`
	APIKey      string        `yaml:"api_key" env:"MISE_ADVISOR_API_KEY"`
	Timeout     time.Duration `yaml:"timeout" env:"MISE_ADVISOR_TIMEOUT"`
	Temperature float64       `yaml:"temperature" env:"MISE_ADVISOR_TEMPERATURE"`
	MaxTokens   int           `yaml:"max_tokens" env:"MISE_ADVISOR_MAX_TOKENS"`
	Seed        int64         `yaml:"seed" env:"MISE_ADVISOR_SEED"`
	Azure       AzureConfig   `yaml:"azure"`
}

// AzureConfig holds Azure OpenAI credentials
type AzureConfig struct {
	Endpoint   string `yaml:"endpoint" env:"AZURE_OPENAI_ENDPOINT"`
	APIKey     string `yaml:"api_key" env:"AZURE_OPENAI_API_KEY"`
	Deployment string `yaml:"deployment" env:"AZURE_OPENAI_DEPLOYMENT_NAME"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	cats := models.DefaultCategories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Port:        8080,
			MetricsPort: 9090,
		},
		Inventory: InventoryConfig{
			Categories:        names,
			LowStockThreshold: 2,
		},
		Recipes: RecipesConfig{
			UseAmount: 0.5,
		},
		Storage: StorageConfig{
			Driver:        DriverFile,
			InventoryPath: "data/inventory.json",
			HistoryPath:   "data/history.json",
			DSN:           "data/mise.db",
		},
		Advisor: AdvisorConfig{
			Backend:     AdvisorNone,
			Model:       "gpt-4o-mini",
			Timeout:     20 * time.Second,
			Temperature: 0.7,
			MaxTokens:   1000,
		},
	}
}

// Load builds the configuration. Defaults are overlaid by the YAML file at
// path, then by variables from dotenv files (".env" when none are given),
// then by the process environment. A missing file at path is not an error.
func Load(path string, dotenvFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		// godotenv never overrides variables that are already set
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Level(); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if len(c.Inventory.Categories) == 0 {
		errs = append(errs, errors.New("inventory.categories: at least one category is required"))
	}
	seen := make(map[string]bool, len(c.Inventory.Categories))
	for _, name := range c.Inventory.Categories {
		if name == "" {
			errs = append(errs, errors.New("inventory.categories: empty category name"))
		} else if seen[name] {
			errs = append(errs, fmt.Errorf("inventory.categories: duplicate category %q", name))
		}
		seen[name] = true
	}
	if c.Inventory.LowStockThreshold <= 0 {
		errs = append(errs, errors.New("inventory.low_stock_threshold: must be greater than zero"))
	}
	if c.Recipes.UseAmount <= 0 {
		errs = append(errs, errors.New("recipes.use_amount: must be greater than zero"))
	}

	switch c.Storage.Driver {
	case DriverFile:
		if c.Storage.InventoryPath == "" || c.Storage.HistoryPath == "" {
			errs = append(errs, errors.New("storage: inventory_path and history_path are required for the file driver"))
		}
	case DriverSQLite, DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn: required for the %s driver", c.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unsupported driver %q", c.Storage.Driver))
	}

	switch c.Advisor.Backend {
	case AdvisorNone, AdvisorOpenAI, AdvisorGitHub, AdvisorOllama:
	case AdvisorAzure:
		if c.Advisor.Azure.Endpoint == "" || c.Advisor.Azure.APIKey == "" || c.Advisor.Azure.Deployment == "" {
			errs = append(errs, errors.New("advisor.azure: endpoint, api_key and deployment are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("advisor.backend: unsupported backend %q", c.Advisor.Backend))
	}
	if c.Advisor.Timeout <= 0 {
		errs = append(errs, errors.New("advisor.timeout: must be greater than zero"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.LogLevel))
	return level, err
}

// Categories returns the configured categories.
func (c *Config) Categories() []models.Category {
	out := make([]models.Category, len(c.Inventory.Categories))
	for i, name := range c.Inventory.Categories {
		out[i] = models.Category(name)
	}
	return out
}

// LowStockThreshold returns the threshold as a decimal.
func (c *Config) LowStockThreshold() decimal.Decimal {
	return decimal.NewFromFloat(c.Inventory.LowStockThreshold)
}

// UseAmount returns the per-ingredient recipe deduction as a decimal.
func (c *Config) UseAmount() decimal.Decimal {
	return decimal.NewFromFloat(c.Recipes.UseAmount)
}
