package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const (
	envVarPrefix = "BLOCKFS"
	appName      = "blockfs"
)

const (
	backendFile  = "file"
	backendDir   = "dir"
	backendS3    = "s3"
	backendMinIO = "minio"
)

// Config is read from an optional YAML file and then overridden by
// BLOCKFS_* environment variables and command line flags.
type Config struct {
	Image         string         `envconfig:"IMAGE"          yaml:"image"`
	Dir           string         `envconfig:"DIR"            yaml:"dir"`
	Backend       string         `envconfig:"BACKEND"        yaml:"backend"`
	LogLevel      string         `envconfig:"LOG_LEVEL"      yaml:"logLevel"`
	LogFormat     string         `envconfig:"LOG_FORMAT"     yaml:"logFormat"`
	DeferredFlush bool           `envconfig:"DEFERRED_FLUSH" yaml:"deferredFlush"`
	CacheBlocks   int            `envconfig:"CACHE_BLOCKS"   yaml:"cacheBlocks"`
	Throttle      ThrottleConfig `envconfig:"THROTTLE"       yaml:"throttle"`
	S3            S3Config       `envconfig:"S3"             yaml:"s3"`
	MinIO         MinIOConfig    `envconfig:"MINIO"          yaml:"minio"`
}

type ThrottleConfig struct {
	BytesPerSec int64 `envconfig:"BYTES_PER_SEC" yaml:"bytesPerSec"`
	MaxInFlight int64 `envconfig:"MAX_IN_FLIGHT" yaml:"maxInFlight"`
}

type S3Config struct {
	Bucket    string `envconfig:"BUCKET"     yaml:"bucket"`
	Prefix    string `envconfig:"PREFIX"     yaml:"prefix"`
	Region    string `envconfig:"REGION"     yaml:"region"`
	Endpoint  string `envconfig:"ENDPOINT"   yaml:"endpoint"`
	PathStyle bool   `envconfig:"PATH_STYLE" yaml:"pathStyle"`
}

type MinIOConfig struct {
	Endpoint  string `envconfig:"ENDPOINT"   yaml:"endpoint"`
	Bucket    string `envconfig:"BUCKET"     yaml:"bucket"`
	Prefix    string `envconfig:"PREFIX"     yaml:"prefix"`
	AccessKey string `envconfig:"ACCESS_KEY" yaml:"accessKey"`
	SecretKey string `envconfig:"SECRET_KEY" yaml:"secretKey"`
	Secure    bool   `envconfig:"SECURE"     yaml:"secure"`
}

func defaultConfig() Config {
	return Config{
		Image:     appName + ".img",
		Backend:   backendFile,
		LogLevel:  "warn",
		LogFormat: "text",
	}
}

// LoadConfig reads configFile (if non-empty) and applies the environment.
// When configFile is empty, BLOCKFS_CONFIG_FILE is consulted; a missing
// file named only by the environment is not an error.
func LoadConfig(configFile string) (*Config, error) {
	explicit := configFile != ""
	if !explicit {
		configFile = os.Getenv(envVarPrefix + "_CONFIG_FILE")
	}

	c := defaultConfig()
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		switch {
		case err == nil:
			if err := yaml.UnmarshalStrict(data, &c); err != nil {
				return nil, fmt.Errorf("unmarshaling config file: %w", err)
			}
		case explicit || !os.IsNotExist(err):
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	return &c, nil
}

func (c *Config) Validate() error {
	if y, e := func() (string, string) {
		switch c.Backend {
		case backendFile:
			if c.Image == "" {
				return "image", "IMAGE"
			}
		case backendDir:
			if c.Dir == "" {
				return "dir", "DIR"
			}
		case backendS3:
			if c.S3.Bucket == "" {
				return "s3.bucket", "S3_BUCKET"
			}
		case backendMinIO:
			if c.MinIO.Endpoint == "" {
				return "minio.endpoint", "MINIO_ENDPOINT"
			}
			if c.MinIO.Bucket == "" {
				return "minio.bucket", "MINIO_BUCKET"
			}
		}
		return "", ""
	}(); y != "" {
		return fmt.Errorf(
			"missing required configuration: %s / %s_%s",
			y,
			envVarPrefix,
			e,
		)
	}

	switch c.Backend {
	case backendFile, backendDir, backendS3, backendMinIO:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}
