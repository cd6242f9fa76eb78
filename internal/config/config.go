package config

import (
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/joho/godotenv"
    "gopkg.in/yaml.v3"
)

type Server struct {
    Port              string `json:"port" yaml:"port"`
    RequestTimeoutSec int    `json:"request_timeout_sec" yaml:"request_timeout_sec"`
}

type AlphaVantage struct {
    APIKey          string `json:"api_key" yaml:"api_key"`
    Endpoint        string `json:"endpoint" yaml:"endpoint"`
    TimeoutSec      int    `json:"timeout_sec" yaml:"timeout_sec"`
    RequestDelayMs  int    `json:"request_delay_ms" yaml:"request_delay_ms"`
    CacheTTLSeconds int    `json:"cache_ttl_sec" yaml:"cache_ttl_sec"`
    CacheMaxItems   int    `json:"cache_max_items" yaml:"cache_max_items"`
}

type Poller struct {
    Symbols     []string `json:"symbols" yaml:"symbols"`
    IntervalSec int      `json:"interval_sec" yaml:"interval_sec"`
}

type Kafka struct {
    Enabled    bool     `json:"enabled" yaml:"enabled"`
    Brokers    []string `json:"brokers" yaml:"brokers"`
    Topic      string   `json:"topic" yaml:"topic"`
    MaxRetries int      `json:"max_retries" yaml:"max_retries"`
}

type Config struct {
    Server       Server       `json:"server" yaml:"server"`
    AlphaVantage AlphaVantage `json:"alphavantage" yaml:"alphavantage"`
    Poller       Poller       `json:"poller" yaml:"poller"`
    Kafka        Kafka        `json:"kafka" yaml:"kafka"`
}

func Default() Config {
    return Config{
        Server: Server{Port: "8080", RequestTimeoutSec: 10},
        AlphaVantage: AlphaVantage{
            APIKey:          "demo",
            Endpoint:        "https://www.alphavantage.co",
            TimeoutSec:      10,
            RequestDelayMs:  1000,
            CacheTTLSeconds: 60,
            CacheMaxItems:   500,
        },
        Poller: Poller{
            Symbols:     []string{"AAPL", "GOOGL", "MSFT", "AMZN", "META"},
            IntervalSec: 300,
        },
        Kafka: Kafka{
            Enabled:    false,
            Topic:      "stock-quotes",
            MaxRetries: 3,
        },
    }
}

// Load reads config from path (JSON, or YAML for .yaml/.yml). If path is
// empty it looks for config.json then config.yaml in the working dir; a
// missing file means defaults. A .env file, when present, is loaded into
// the environment first and environment variables override the file.
func Load(path string) (Config, error) {
    if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
        return Default(), fmt.Errorf("load .env: %w", err)
    }

    cfg := Default()
    if path == "" {
        for _, p := range []string{"config.json", "config.yaml", "config.yml"} {
            if _, err := os.Stat(p); err == nil {
                path = p
                break
            }
        }
    }
    if path != "" {
        b, err := os.ReadFile(path)
        if err != nil && !errors.Is(err, os.ErrNotExist) {
            return cfg, fmt.Errorf("read config: %w", err)
        }
        if err == nil {
            if err := decode(path, b, &cfg); err != nil {
                return cfg, fmt.Errorf("parse config: %w", err)
            }
        }
    }
    applyEnv(&cfg)
    if cfg.AlphaVantage.APIKey == "" { cfg.AlphaVantage.APIKey = "demo" }
    return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
    switch strings.ToLower(filepath.Ext(path)) {
    case ".yaml", ".yml":
        return yaml.Unmarshal(b, cfg)
    default:
        return json.Unmarshal(b, cfg)
    }
}

func applyEnv(cfg *Config) {
    if v := os.Getenv("PORT"); v != "" { cfg.Server.Port = v }
    if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Server.RequestTimeoutSec = x }
    }
    // The dashboard's build-time variable is honoured too.
    if v := os.Getenv("REACT_APP_ALPHA_VANTAGE_API_KEY"); v != "" { cfg.AlphaVantage.APIKey = v }
    if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" { cfg.AlphaVantage.APIKey = v }
    if v := os.Getenv("ALPHA_VANTAGE_ENDPOINT"); v != "" { cfg.AlphaVantage.Endpoint = v }
    if v := os.Getenv("ALPHA_VANTAGE_TIMEOUT_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.AlphaVantage.TimeoutSec = x }
    }
    if v := os.Getenv("ALPHA_VANTAGE_REQUEST_DELAY_MS"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { cfg.AlphaVantage.RequestDelayMs = x }
    }
    if v := os.Getenv("ALPHA_VANTAGE_CACHE_TTL_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { cfg.AlphaVantage.CacheTTLSeconds = x }
    }
    if v := os.Getenv("ALPHA_VANTAGE_CACHE_MAX_ITEMS"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.AlphaVantage.CacheMaxItems = x }
    }
    if v := os.Getenv("SYMBOLS"); v != "" { cfg.Poller.Symbols = SplitCSV(v) }
    if v := os.Getenv("POLL_INTERVAL_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Poller.IntervalSec = x }
    }
    if v := os.Getenv("KAFKA_ENABLED"); v != "" {
        switch strings.ToLower(v) {
        case "1", "true", "yes", "y": cfg.Kafka.Enabled = true
        case "0", "false", "no", "n": cfg.Kafka.Enabled = false
        }
    }
    if v := os.Getenv("KAFKA_BROKERS"); v != "" { cfg.Kafka.Brokers = SplitCSV(v) }
    if v := os.Getenv("KAFKA_TOPIC"); v != "" { cfg.Kafka.Topic = v }
}

// SplitCSV splits a comma separated list, dropping blanks.
func SplitCSV(s string) []string {
    parts := strings.Split(s, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p != "" { out = append(out, p) }
    }
    return out
}
