package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/webitel/rocrate-exporter/internal/errors"
)

const configFileEnv = "ROCRATE_EXPORTER_CONFIG_FILE"

type AppConfig struct {
	File     string          `json:"-"`
	HTTP     *HTTPConfig     `json:"http,omitempty"`
	Consul   *ConsulConfig   `json:"consul,omitempty"`
	Content  *ContentConfig  `json:"content,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
	Email    *EmailConfig    `json:"email,omitempty"`
	Redis    *RedisConfig    `json:"redis,omitempty"`
	Database *DatabaseConfig `json:"database,omitempty"`
	Export   *ExportConfig   `json:"export,omitempty"`
}

type HTTPConfig struct {
	Address      string        `json:"address"`
	ReadTimeout  time.Duration `json:"readTimeout"`
	WriteTimeout time.Duration `json:"writeTimeout"`
}

// ConsulConfig is optional; registration is skipped without an address.
type ConsulConfig struct {
	Id            string `json:"id"`
	Address       string `json:"address"`
	PublicAddress string `json:"publicAddress"`
}

type ContentConfig struct {
	BaseURL string        `json:"baseUrl"`
	Timeout time.Duration `json:"timeout"`
}

type StorageConfig struct {
	Type          string        `json:"type"`
	Bucket        string        `json:"bucket"`
	Region        string        `json:"region"`
	Endpoint      string        `json:"endpoint"`
	PathStyle     bool          `json:"pathStyle"`
	Root          string        `json:"root"`
	PresignExpiry time.Duration `json:"presignExpiry"`
}

type EmailConfig struct {
	Provider string `json:"provider"`
	From     string `json:"from"`
	FromName string `json:"fromName"`
	Region   string `json:"region"`
	Key      string `json:"key"`
	Domain   string `json:"domain"`
}

// RedisConfig is optional; without an address job state is kept in memory.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// DatabaseConfig is optional; without a data source export history is disabled.
type DatabaseConfig struct {
	Url string `json:"url"`
}

type ExportConfig struct {
	Workers         int           `json:"workers"`
	QueueSize       int           `json:"queueSize"`
	Mode            string        `json:"mode"`
	ScratchDir      string        `json:"scratchDir"`
	Retention       time.Duration `json:"retention"`
	SweepInterval   time.Duration `json:"sweepInterval"`
	ItemConcurrency int           `json:"itemConcurrency"`
}

func LoadConfig() (*AppConfig, error) {
	return Load(pflag.CommandLine, os.Args[1:])
}

// Load parses args into fs and resolves the configuration from flags,
// environment and an optional JSON file, in that order of precedence.
func Load(fs *pflag.FlagSet, args []string) (*AppConfig, error) {
	v := viper.New()
	bindFlagsAndEnv(v, fs)
	if err := fs.Parse(args); err != nil {
		return nil, errors.New("could not parse flags", errors.WithCause(err))
	}

	configFile := getConfigFilePath(v)
	if configFile != "" {
		if err := loadFromFile(v, configFile); err != nil {
			return nil, err
		}
	}

	cfg := buildAppConfig(v, configFile)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func bindFlagsAndEnv(v *viper.Viper, fs *pflag.FlagSet) {
	fs.String("config_file", "", "Configuration file in JSON format")

	// http
	fs.String("http_addr", ":8080", "HTTP listen address")
	fs.Duration("http_read_timeout", 30*time.Second, "HTTP read timeout")
	fs.Duration("http_write_timeout", 30*time.Second, "HTTP write timeout")

	// consul
	fs.String("id", "", "Service id")
	fs.String("consul", "", "Host to consul")
	fs.String("public_addr", "", "Public HTTP address with port")

	// content service
	fs.String("content_url", "", "Base URL of the content service API")
	fs.Duration("content_timeout", 5*time.Minute, "Content service request timeout")

	// storage
	fs.String("storage_type", "S3", "Blob storage: S3, GCS, FILESYSTEM or MEMORY")
	fs.String("storage_bucket", "", "Bucket that receives archives")
	fs.String("storage_region", "", "Storage region")
	fs.String("storage_endpoint", "", "Custom S3 endpoint")
	fs.Bool("storage_path_style", false, "Use path-style S3 addressing")
	fs.String("storage_root", "", "Root directory for FILESYSTEM storage")
	fs.Duration("presign_expiry", 24*time.Hour, "Download link validity")

	// email
	fs.String("email_provider", "ses", "Email provider: ses, sendgrid, mailgun or log")
	fs.String("email_from", "", "Sender address")
	fs.String("email_from_name", "RO-Crate Downloader", "Sender display name")
	fs.String("email_region", "", "SES region")
	fs.String("email_key", "", "SendGrid or Mailgun API key")
	fs.String("email_domain", "", "Mailgun domain")

	// redis
	fs.String("redis_addr", "", "Redis address")
	fs.String("redis_password", "", "Redis password")
	fs.Int("redis_db", 0, "Redis DB number")

	// database
	fs.String("data_source", "", "Data source")

	// export
	fs.Int("workers", 4, "Number of concurrent export workers")
	fs.Int("queue_size", 64, "Pending export jobs buffered before submissions are rejected")
	fs.String("export_mode", "streaming", "Archive assembly: streaming or staged")
	fs.String("scratch_dir", os.TempDir(), "Scratch directory for staged exports")
	fs.Duration("job_retention", time.Hour, "How long finished job status is kept")
	fs.Duration("sweep_interval", 5*time.Minute, "Job status sweep interval")
	fs.Int("item_concurrency", 1, "Parallel file transfers per item")

	_ = v.BindPFlags(fs)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicit mapping
	_ = v.BindEnv("id", "CONSUL_ID")
	_ = v.BindEnv("consul", "CONSUL_HOST")
	_ = v.BindEnv("public_addr", "PUBLIC_ADDR")
	_ = v.BindEnv("http_addr", "HTTP_ADDR")
	_ = v.BindEnv("content_url", "ROCRATE_API_BASE_URL")
	_ = v.BindEnv("storage_bucket", "S3_BUCKET")
	_ = v.BindEnv("storage_region", "AWS_REGION")
	_ = v.BindEnv("email_from", "EMAIL_FROM")
	_ = v.BindEnv("email_region", "AWS_REGION")
	_ = v.BindEnv("redis_addr", "REDIS_ADDR")
	_ = v.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis_db", "REDIS_DB")
	_ = v.BindEnv("data_source", "DATA_SOURCE")
}

func getConfigFilePath(v *viper.Viper) string {
	file := v.GetString("config_file")
	if file == "" {
		file = os.Getenv(configFileEnv)
	}
	return file
}

func loadFromFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return errors.New(fmt.Sprintf("could not load config file: %s", err.Error()))
	}
	return nil
}

func buildAppConfig(v *viper.Viper, file string) *AppConfig {
	return &AppConfig{
		File: file,
		HTTP: &HTTPConfig{
			Address:      v.GetString("http_addr"),
			ReadTimeout:  v.GetDuration("http_read_timeout"),
			WriteTimeout: v.GetDuration("http_write_timeout"),
		},
		Consul: &ConsulConfig{
			Id:            v.GetString("id"),
			Address:       v.GetString("consul"),
			PublicAddress: v.GetString("public_addr"),
		},
		Content: &ContentConfig{
			BaseURL: v.GetString("content_url"),
			Timeout: v.GetDuration("content_timeout"),
		},
		Storage: &StorageConfig{
			Type:          strings.ToUpper(v.GetString("storage_type")),
			Bucket:        v.GetString("storage_bucket"),
			Region:        v.GetString("storage_region"),
			Endpoint:      v.GetString("storage_endpoint"),
			PathStyle:     v.GetBool("storage_path_style"),
			Root:          v.GetString("storage_root"),
			PresignExpiry: v.GetDuration("presign_expiry"),
		},
		Email: &EmailConfig{
			Provider: strings.ToLower(v.GetString("email_provider")),
			From:     v.GetString("email_from"),
			FromName: v.GetString("email_from_name"),
			Region:   v.GetString("email_region"),
			Key:      v.GetString("email_key"),
			Domain:   v.GetString("email_domain"),
		},
		Redis: &RedisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		Database: &DatabaseConfig{Url: v.GetString("data_source")},
		Export: &ExportConfig{
			Workers:         v.GetInt("workers"),
			QueueSize:       v.GetInt("queue_size"),
			Mode:            strings.ToLower(v.GetString("export_mode")),
			ScratchDir:      v.GetString("scratch_dir"),
			Retention:       v.GetDuration("job_retention"),
			SweepInterval:   v.GetDuration("sweep_interval"),
			ItemConcurrency: v.GetInt("item_concurrency"),
		},
	}
}

func validateConfig(cfg *AppConfig) error {
	if cfg.HTTP.Address == "" {
		return errors.New("HTTP address is required")
	}
	if cfg.Content.BaseURL == "" {
		return errors.New("Content service URL is required")
	}
	if cfg.Storage.Bucket == "" && cfg.Storage.Type != "FILESYSTEM" && cfg.Storage.Type != "MEMORY" {
		return errors.New("Storage bucket is required")
	}
	if cfg.Storage.Type == "FILESYSTEM" && cfg.Storage.Root == "" {
		return errors.New("Storage root is required for filesystem storage")
	}
	if cfg.Email.Provider != "log" && cfg.Email.From == "" {
		return errors.New("Email sender address is required")
	}
	if cfg.Export.Mode != "streaming" && cfg.Export.Mode != "staged" {
		return errors.New(fmt.Sprintf("Unknown export mode %q", cfg.Export.Mode))
	}
	if cfg.Export.Workers <= 0 {
		return errors.New("Export workers must be positive")
	}
	if cfg.Consul.Address != "" {
		if cfg.Consul.Id == "" {
			return errors.New("Service id is required")
		}
		if cfg.Consul.PublicAddress == "" {
			return errors.New("Public address is required")
		}
	}
	return nil
}
