package config

import (
	"log"
	"net/url"
	"os"
	"path/filepath"

	"github.com/anthanhphan/gosdk/conflux"
	"github.com/anthanhphan/gosdk/logger"
)

// Config holds model-share gateway configuration
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	App       AppConfig       `json:"app" yaml:"app"`
	MediaHost MediaHostConfig `json:"media_host" yaml:"media_host"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	Share     ShareConfig     `json:"share" yaml:"share"`
	Clock     ClockConfig     `json:"clock" yaml:"clock"`
	Logger    logger.Config   `json:"logger" yaml:"logger"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type AppConfig struct {
	MaxFileSize      int64 `json:"max_file_size" yaml:"max_file_size"`
	ProbeTimeoutMS   int   `json:"probe_timeout_ms" yaml:"probe_timeout_ms"`
	ProbeParallelism int   `json:"probe_parallelism" yaml:"probe_parallelism"`
	UploadTimeoutMS  int   `json:"upload_timeout_ms" yaml:"upload_timeout_ms"`
}

type MediaHostConfig struct {
	Provider     string `json:"provider" yaml:"provider"` // "cloudinary", "s3"
	CloudName    string `json:"cloud_name" yaml:"cloud_name"`
	UploadPreset string `json:"upload_preset" yaml:"upload_preset"`
	APIBaseURL   string `json:"api_base_url" yaml:"api_base_url"`
	APIKey       string `json:"api_key" yaml:"api_key"`
	APISecret    string `json:"api_secret" yaml:"api_secret"`
	ResourceType string `json:"resource_type" yaml:"resource_type"`
	Folder       string `json:"folder" yaml:"folder"`
	// Domain is the host a cached remote URL must belong to before it is trusted.
	Domain string `json:"domain" yaml:"domain"`
	// RetrievalBases lists delivery base URLs, current convention first.
	RetrievalBases []string `json:"retrieval_bases" yaml:"retrieval_bases"`
	S3             S3Config `json:"s3" yaml:"s3"`
}

type S3Config struct {
	Bucket        string `json:"bucket" yaml:"bucket"`
	Region        string `json:"region" yaml:"region"`
	Endpoint      string `json:"endpoint" yaml:"endpoint"`
	PublicBaseURL string `json:"public_base_url" yaml:"public_base_url"`
}

type CacheConfig struct {
	Driver    string        `json:"driver" yaml:"driver"` // "memory", "redis", "sqlite", "logfile"
	KeyPrefix string        `json:"key_prefix" yaml:"key_prefix"`
	Redis     RedisConfig   `json:"redis" yaml:"redis"`
	SQLite    SQLiteConfig  `json:"sqlite" yaml:"sqlite"`
	LogFile   LogFileConfig `json:"logfile" yaml:"logfile"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type SQLiteConfig struct {
	Path string `json:"path" yaml:"path"`
}

type LogFileConfig struct {
	DataDir             string `json:"data_dir" yaml:"data_dir"`
	FSync               bool   `json:"fsync" yaml:"fsync"`
	CompactionThreshold int    `json:"compaction_threshold" yaml:"compaction_threshold"`
}

type ShareConfig struct {
	BaseURL      string `json:"base_url" yaml:"base_url"`
	QRServiceURL string `json:"qr_service_url" yaml:"qr_service_url"`
	QRSize       int    `json:"qr_size" yaml:"qr_size"`
}

type ClockConfig struct {
	Source string `json:"source" yaml:"source"` // "system", "redis"
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8090",
		},
		App: AppConfig{
			MaxFileSize:      100 * 1024 * 1024, // 100MB
			ProbeTimeoutMS:   5000,
			ProbeParallelism: 1,
			UploadTimeoutMS:  120000,
		},
		MediaHost: MediaHostConfig{
			Provider:     "cloudinary",
			APIBaseURL:   "https://api.cloudinary.com",
			ResourceType: "raw",
			Folder:       "3d_models",
			Domain:       "res.cloudinary.com",
		},
		Cache: CacheConfig{
			Driver:    "memory",
			KeyPrefix: "model_",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
			SQLite: SQLiteConfig{
				Path: "./data/models.db",
			},
			LogFile: LogFileConfig{
				DataDir:             "./data",
				CompactionThreshold: 256,
			},
		},
		Share: ShareConfig{
			BaseURL:      "http://localhost:8090/",
			QRServiceURL: "https://api.qrserver.com/v1/create-qr-code/",
			QRSize:       150,
		},
		Clock: ClockConfig{
			Source: "system",
		},
		Logger: logger.Config{
			LogLevel:    logger.LevelInfo,
			LogEncoding: logger.EncodingJSON,
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	configPath := path
	if configPath == "" {
		env := os.Getenv("ENV")
		if env == "" {
			env = "local"
		}
		configPath = filepath.Join("internal", "api", "config", env+".yaml")
	}

	cfg := DefaultConfig()

	parsedCfg, err := conflux.ParseConfig(configPath, cfg)
	if err != nil {
		// The logger is configured from this file, so it is not initialized yet.
		log.Printf("Config file not found or failed to parse, using defaults if file not specified. Path: %s, Error: %v", configPath, err)
		if path != "" {
			return nil, err
		}
		return cfg, nil
	}

	return parsedCfg, nil
}

// MustLoad loads configuration or exits on error
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// DeliveryBases returns configured retrieval bases, or the Cloudinary raw and
// legacy image delivery paths derived from CloudName.
func (c MediaHostConfig) DeliveryBases() []string {
	if len(c.RetrievalBases) > 0 {
		return c.RetrievalBases
	}
	switch c.Provider {
	case "s3":
		if c.S3.PublicBaseURL != "" {
			return []string{c.S3.PublicBaseURL}
		}
		return nil
	default:
		if c.CloudName == "" {
			return nil
		}
		root := "https://" + c.Domain + "/" + c.CloudName
		return []string{
			root + "/" + c.ResourceType + "/upload",
			root + "/image/upload",
		}
	}
}

// TrustedDomain is the host cached URLs must belong to. For s3 it is the host
// of the public base URL.
func (c MediaHostConfig) TrustedDomain() string {
	if c.Provider == "s3" && c.S3.PublicBaseURL != "" {
		if u, err := url.Parse(c.S3.PublicBaseURL); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}
	return c.Domain
}
