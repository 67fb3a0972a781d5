package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

//go:embed seed_inventory.yaml
var seedInventoryYAML []byte

type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Detection   DetectionConfig   `yaml:"detection"`
	Inventory   InventoryConfig   `yaml:"inventory"`
	Gemini      GeminiConfig      `yaml:"gemini"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Web         WebConfig         `yaml:"web"`
	Log         LogConfig         `yaml:"log"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url" env:"DATABASE_URL"`                     // customers + visit state
	InventoryURL string `yaml:"inventory_url" env:"INVENTORY_DATABASE_URL"` // defaults to URL
	HistoryURL   string `yaml:"history_url" env:"HISTORY_DATABASE_URL"`     // defaults to URL
	// HistoryDriver selects the past-records backend: "postgres" or "mysql" (MariaDB archive).
	HistoryDriver string `yaml:"history_driver" env:"HISTORY_DATABASE_DRIVER" env-default:"postgres"`
	MaxOpenConns  int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns  int    `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS" env-default:"2"`
	FaceIndexPath string `yaml:"face_index_path" env:"HNSW_INDEX_PATH"` // optional, index is rebuilt on startup when empty
}

// InventoryDSN returns the inventory database URL, falling back to the customers database.
func (c *DatabaseConfig) InventoryDSN() string {
	if c.InventoryURL != "" {
		return c.InventoryURL
	}
	return c.URL
}

// HistoryDSN returns the past-records database URL, falling back to the customers database.
func (c *DatabaseConfig) HistoryDSN() string {
	if c.HistoryURL != "" {
		return c.HistoryURL
	}
	return c.URL
}

type RecognitionConfig struct {
	Python       string        `yaml:"python" env:"RECOGNITION_PYTHON" env-default:"python3"`
	Script       string        `yaml:"script" env:"RECOGNITION_SCRIPT"`
	InitTimeout  time.Duration `yaml:"init_timeout" env:"RECOGNITION_INIT_TIMEOUT" env-default:"5s"`
	MaxFrameSize int           `yaml:"max_frame_size" env:"RECOGNITION_MAX_FRAME_SIZE" env-default:"640"`
	// MatchDistance is the maximum cosine distance for a store-side signature match.
	MatchDistance float64 `yaml:"match_distance" env:"RECOGNITION_MATCH_DISTANCE" env-default:"0.08"`
}

type DetectionConfig struct {
	Interval    time.Duration `yaml:"interval" env:"DETECTION_INTERVAL" env-default:"200ms"`
	SnapshotURL string        `yaml:"snapshot_url" env:"CAMERA_SNAPSHOT_URL"` // headless loop source, optional
}

type InventoryConfig struct {
	ImageDir string `yaml:"image_dir" env:"INVENTORY_IMAGE_DIR"` // content-addressed files instead of inline blobs
}

type GeminiConfig struct {
	APIKey string `yaml:"-" env:"GEMINI_API_KEY"`
}

type OpenAIConfig struct {
	Token string `yaml:"-" env:"OPENAI_TOKEN"`
}

type WebConfig struct {
	Host           string `yaml:"host" env:"WEB_HOST" env-default:"0.0.0.0"`
	Port           int    `yaml:"port" env:"WEB_PORT" env-default:"8080"`
	AllowedOrigins string `yaml:"allowed_origins" env:"WEB_ALLOWED_ORIGINS"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"console"`
}

// SeedItem is one entry of the embedded sample catalogue.
type SeedItem struct {
	ProductID string  `yaml:"product_id"`
	Name      string  `yaml:"name"`
	Image     string  `yaml:"image"`
	Price     float64 `yaml:"price"`
	Quantity  int     `yaml:"quantity"`
}

type seedCatalogue struct {
	Items []SeedItem `yaml:"items"`
}

// Load reads configuration from the optional KIOSK_CONFIG_FILE and the environment.
// Environment variables override values from the file.
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("KIOSK_CONFIG_FILE"); path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.Database.HistoryDriver = strings.ToLower(c.Database.HistoryDriver)
	switch c.Database.HistoryDriver {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported HISTORY_DATABASE_DRIVER %q", c.Database.HistoryDriver)
	}
	if c.Recognition.InitTimeout <= 0 {
		return errors.New("RECOGNITION_INIT_TIMEOUT must be positive")
	}
	if c.Detection.Interval <= 0 {
		return errors.New("DETECTION_INTERVAL must be positive")
	}
	return nil
}

// SeedInventory returns the embedded sample catalogue.
func SeedInventory() ([]SeedItem, error) {
	var cat seedCatalogue
	if err := yaml.Unmarshal(seedInventoryYAML, &cat); err != nil {
		return nil, fmt.Errorf("unmarshal embedded seed_inventory.yaml: %w", err)
	}
	return cat.Items, nil
}
