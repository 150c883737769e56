package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds the process configuration. It is built once at startup and
// passed explicitly to the components that need it.
type AppConfig struct {
	AppPort string
	// PublicBaseURL is the externally visible origin used when building download links.
	PublicBaseURL string
	// Upload storage
	UploadDir         string
	UploadRoute       string
	MaxUploadMB       int
	MultipartMemoryMB int
	// RateLimitPerMinute limits POST /upload per client IP; 0 disables it.
	RateLimitPerMinute int
	// CORS
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// DefaultPath is where Load looks for the optional JSON config file.
var DefaultPath = filepath.Join("config", "config.json")

// Load builds the configuration from config/config.json, defaults and environment variables.
func Load() AppConfig {
	cfg, err := LoadFile(DefaultPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	return cfg
}

// LoadFile builds the configuration using the JSON file at path.
// A missing file is not an error; invalid JSON is.
// Precedence: JSON file -> defaults -> environment variable overrides.
func LoadFile(path string) (AppConfig, error) {
	var cfg AppConfig
	if err := loadJSONConfig(path, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	finalize(&cfg)
	return cfg, nil
}

// Defaults returns a configuration populated only with default values.
func Defaults() AppConfig {
	var cfg AppConfig
	applyDefaults(&cfg)
	finalize(&cfg)
	return cfg
}

// Addr returns the listen address for the HTTP server.
func (c AppConfig) Addr() string {
	return ":" + c.AppPort
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if v, ok := m[key]; ok {
			if f, ok := v.(float64); ok {
				return int(f)
			}
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		if v, ok := m[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
		return false
	}
	getStringSlice := func(m map[string]any, key string) []string {
		arr, ok := m[key].([]any)
		if !ok {
			return nil
		}
		res := make([]string, 0, len(arr))
		for _, it := range arr {
			if s, ok := it.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.PublicBaseURL = getString(app, "PublicBaseURL")
		out.GinMode = getString(app, "GinMode")
	}

	if up, ok := raw["upload"].(map[string]any); ok {
		out.UploadDir = getString(up, "Dir")
		out.UploadRoute = getString(up, "Route")
		out.MaxUploadMB = getInt(up, "MaxSizeMB")
		out.MultipartMemoryMB = getInt(up, "MultipartMemoryMB")
		out.RateLimitPerMinute = getInt(up, "RateLimitPerMinute")
	}

	if c, ok := raw["cors"].(map[string]any); ok {
		out.AllowedOrigins = getStringSlice(c, "AllowedOrigins")
		out.AllowedMethods = getStringSlice(c, "AllowedMethods")
		out.AllowedHeaders = getStringSlice(c, "AllowedHeaders")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		out.GinPath = getString(lg, "GinPath")
		out.LogMaxSizeMB = getInt(lg, "MaxSizeMB")
		out.LogMaxBackups = getInt(lg, "MaxBackups")
		out.LogMaxAgeDays = getInt(lg, "MaxAgeDays")
		out.LogCompress = getBool(lg, "Compress")
	}

	return nil
}

func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "3000"
	}
	if c.UploadDir == "" {
		c.UploadDir = "uploads"
	}
	if c.UploadRoute == "" {
		c.UploadRoute = "/uploads"
	}
	if c.MultipartMemoryMB == 0 {
		c.MultipartMemoryMB = 8
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if len(c.AllowedMethods) == 0 {
		c.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(c.AllowedHeaders) == 0 {
		c.AllowedHeaders = []string{"Content-Type", "x-requested-with", "Authorization"}
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("PUBLIC_BASE_URL", ""); v != "" {
		c.PublicBaseURL = v
	}
	if v := getEnv("UPLOAD_DIR", ""); v != "" {
		c.UploadDir = v
	}
	if v := getEnv("UPLOAD_ROUTE", ""); v != "" {
		c.UploadRoute = v
	}
	if v := getEnv("MAX_UPLOAD_MB", ""); v != "" {
		c.MaxUploadMB = mustParseInt(v)
	}
	if v := getEnv("MULTIPART_MEMORY_MB", ""); v != "" {
		c.MultipartMemoryMB = mustParseInt(v)
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	c.AllowedOrigins = readListEnv("CORS_ALLOWED_ORIGINS", c.AllowedOrigins)
	c.AllowedMethods = readListEnv("CORS_ALLOWED_METHODS", c.AllowedMethods)
	c.AllowedHeaders = readListEnv("CORS_ALLOWED_HEADERS", c.AllowedHeaders)
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_MAX_SIZE_MB", ""); v != "" {
		c.LogMaxSizeMB = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_BACKUPS", ""); v != "" {
		c.LogMaxBackups = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_AGE_DAYS", ""); v != "" {
		c.LogMaxAgeDays = mustParseInt(v)
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
}

// finalize fills values derived from other fields.
func finalize(c *AppConfig) {
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = "http://localhost:" + c.AppPort
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	c.UploadRoute = "/" + strings.Trim(c.UploadRoute, "/")
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func readListEnv(key string, defaults []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaults
	}
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
