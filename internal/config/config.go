package config

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Download  DownloadConfig  `yaml:"download"`
	Queue     QueueConfig     `yaml:"queue"`
	Thumbnail ThumbnailConfig `yaml:"thumbnail"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"9310"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"5m"`
}

// DatabaseConfig holds sqlite configuration.
type DatabaseConfig struct {
	Path string `yaml:"path" envconfig:"DATABASE_PATH" default:"/data/xfetch.db"`
}

// StorageConfig holds media storage configuration.
type StorageConfig struct {
	// LibraryPath is the root of the shared media library. When set,
	// downloads go into per-kind collections beneath it; otherwise the
	// flat app directory is used.
	LibraryPath string `yaml:"library_path" envconfig:"STORAGE_LIBRARY_PATH"`
	// AppDirName is the subfolder created inside each library collection.
	AppDirName string `yaml:"app_dir_name" envconfig:"STORAGE_APP_DIR" default:"xfetch"`
	// FlatPath is the app-managed directory used when no library is configured.
	FlatPath string `yaml:"flat_path" envconfig:"STORAGE_FLAT_PATH" default:"/data/media"`
	// ThumbsPath is the private directory for generated thumbnails.
	ThumbsPath string `yaml:"thumbs_path" envconfig:"STORAGE_THUMBS_PATH" default:"/data/thumbs"`
	TempPath   string `yaml:"temp_path" envconfig:"STORAGE_TEMP_PATH" default:"/data/temp"`
}

// FetchConfig holds mirror API configuration.
type FetchConfig struct {
	PrimaryBaseURL     string        `yaml:"primary_base_url" envconfig:"FETCH_PRIMARY_BASE_URL" default:"https://api.fxtwitter.com"`
	SecondaryBaseURL   string        `yaml:"secondary_base_url" envconfig:"FETCH_SECONDARY_BASE_URL" default:"https://api.vxtwitter.com"`
	SyndicationBaseURL string        `yaml:"syndication_base_url" envconfig:"FETCH_SYNDICATION_BASE_URL" default:"https://cdn.syndication.twimg.com"`
	Timeout            time.Duration `yaml:"timeout" envconfig:"FETCH_TIMEOUT" default:"30s"`
	UserAgent          string        `yaml:"user_agent" envconfig:"FETCH_USER_AGENT" default:"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"`
	// RequestInterval is the minimum spacing between requests to one host.
	RequestInterval time.Duration `yaml:"request_interval" envconfig:"FETCH_REQUEST_INTERVAL" default:"500ms"`
}

// DownloadConfig holds media download configuration.
type DownloadConfig struct {
	Timeout       time.Duration `yaml:"timeout" envconfig:"DOWNLOAD_TIMEOUT" default:"10m"`
	ReadTimeout   time.Duration `yaml:"read_timeout" envconfig:"DOWNLOAD_READ_TIMEOUT" default:"60s"`
	RetryDelay    time.Duration `yaml:"retry_delay" envconfig:"DOWNLOAD_RETRY_DELAY" default:"5s"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" envconfig:"DOWNLOAD_MAX_RETRY_DELAY" default:"60s"`
	UserAgent     string        `yaml:"user_agent" envconfig:"DOWNLOAD_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"`
}

// QueueConfig holds the durable thumbnail queue configuration.
type QueueConfig struct {
	URL        string        `yaml:"url" envconfig:"QUEUE_URL" default:"nats://127.0.0.1:4222"`
	Stream     string        `yaml:"stream" envconfig:"QUEUE_STREAM" default:"THUMBS"`
	Subject    string        `yaml:"subject" envconfig:"QUEUE_SUBJECT" default:"thumbs.jobs"`
	Durable    string        `yaml:"durable" envconfig:"QUEUE_DURABLE" default:"thumbnailer"`
	AckWait    time.Duration `yaml:"ack_wait" envconfig:"QUEUE_ACK_WAIT" default:"5m"`
	MaxDeliver int           `yaml:"max_deliver" envconfig:"QUEUE_MAX_DELIVER" default:"3"`
}

// ThumbnailConfig holds thumbnail generation configuration.
type ThumbnailConfig struct {
	Width         int           `yaml:"width" envconfig:"THUMB_WIDTH" default:"320"`
	SampleRate    int           `yaml:"sample_rate" envconfig:"THUMB_SAMPLE_RATE" default:"10"`
	MaxFrames     int           `yaml:"max_frames" envconfig:"THUMB_MAX_FRAMES" default:"150"`
	WindowSeconds int           `yaml:"window_seconds" envconfig:"THUMB_WINDOW_SECONDS" default:"15"`
	FrameDelay    time.Duration `yaml:"frame_delay" envconfig:"THUMB_FRAME_DELAY" default:"100ms"`
	Workers       int           `yaml:"workers" envconfig:"THUMB_WORKERS" default:"2"`
	SettleDelay   time.Duration `yaml:"settle_delay" envconfig:"THUMB_SETTLE_DELAY" default:"3s"`
	JPEGQuality   int           `yaml:"jpeg_quality" envconfig:"THUMB_JPEG_QUALITY" default:"85"`
}

// Load reads configuration in three layers: struct defaults, then the
// optional YAML file, then environment variables.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Defaults (and any environment already set).
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		// Running envconfig again would re-apply default tags over
		// values the file just set, so only fields whose variable is
		// actually present get copied back.
		env := &Config{}
		if err := envconfig.Process("", env); err != nil {
			return nil, fmt.Errorf("process environment: %w", err)
		}
		overlayEnv(reflect.ValueOf(cfg).Elem(), reflect.ValueOf(env).Elem())
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// overlayEnv copies env's value into dst for every field whose envconfig
// variable is set in the process environment.
func overlayEnv(dst, env reflect.Value) {
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Type.Kind() == reflect.Struct {
			overlayEnv(dst.Field(i), env.Field(i))
			continue
		}
		key := t.Field(i).Tag.Get("envconfig")
		if key == "" {
			continue
		}
		if _, ok := os.LookupEnv(key); ok {
			dst.Field(i).Set(env.Field(i))
		}
	}
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Server.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.Storage.FlatPath == "" {
		return fmt.Errorf("STORAGE_FLAT_PATH is required")
	}
	if c.Storage.ThumbsPath == "" {
		return fmt.Errorf("STORAGE_THUMBS_PATH is required")
	}
	if c.Thumbnail.SampleRate <= 0 {
		return fmt.Errorf("THUMB_SAMPLE_RATE must be positive")
	}
	if c.Thumbnail.MaxFrames <= 0 {
		return fmt.Errorf("THUMB_MAX_FRAMES must be positive")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
