package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Database DatabaseConfig `yaml:"database" envPrefix:"DB_"`
	Redis    RedisConfig    `yaml:"redis" envPrefix:"REDIS_"`
	AWS      AWSConfig      `yaml:"aws" envPrefix:"AWS_"`
	JWT      JWTConfig      `yaml:"jwt" envPrefix:"JWT_"`
	APNs     APNsConfig     `yaml:"apns" envPrefix:"APNS_"`
	Imaging  ImagingConfig  `yaml:"imaging" envPrefix:"IMAGING_"`
	Events   EventsConfig   `yaml:"events" envPrefix:"EVENTS_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int    `yaml:"port" env:"PORT"`
	Host           string `yaml:"host" env:"HOST"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	DBName   string `yaml:"dbname" env:"NAME"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"`
	Migrate  bool   `yaml:"migrate" env:"MIGRATE"`
}

// RedisConfig enables cross-instance fan-out of the live feed. Empty URL keeps it in-process.
type RedisConfig struct {
	URL string `yaml:"url" env:"URL"`
}

// AWSConfig holds object storage configuration
type AWSConfig struct {
	Region        string `yaml:"region" env:"REGION"`
	S3Bucket      string `yaml:"s3_bucket" env:"S3_BUCKET"`
	AccessKey     string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey     string `yaml:"secret_key" env:"SECRET_KEY"`
	Endpoint      string `yaml:"endpoint" env:"ENDPOINT"`
	PublicBaseURL string `yaml:"public_base_url" env:"PUBLIC_BASE_URL"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret" env:"SECRET"`
}

// APNsConfig holds token-based push configuration. Push is disabled when KeyFile is empty.
type APNsConfig struct {
	KeyFile    string `yaml:"key_file" env:"KEY_FILE"`
	KeyID      string `yaml:"key_id" env:"KEY_ID"`
	TeamID     string `yaml:"team_id" env:"TEAM_ID"`
	Topic      string `yaml:"topic" env:"TOPIC"`
	Production bool   `yaml:"production" env:"PRODUCTION"`
}

// ImagingConfig holds image pipeline configuration
type ImagingConfig struct {
	HEICConverter string `yaml:"heic_converter" env:"HEIC_CONVERTER"`
}

// EventsConfig throttles event publishing per user
type EventsConfig struct {
	RatePerSecond float64 `yaml:"rate_per_second" env:"RATE_PER_SECOND"`
	Burst         int     `yaml:"burst" env:"BURST"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// Load reads configuration from a YAML file, then applies PORTAL_* environment overrides.
// A missing file is not an error; everything can come from the environment.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "PORTAL_"}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 64 << 20
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.AWS.Region == "" {
		c.AWS.Region = "us-east-1"
	}
	if c.Imaging.HEICConverter == "" {
		c.Imaging.HEICConverter = "heif-convert"
	}
	if c.Events.RatePerSecond == 0 {
		c.Events.RatePerSecond = 5
	}
	if c.Events.Burst == 0 {
		c.Events.Burst = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that required settings are present
func (c *Config) Validate() error {
	var missing []string
	if c.Database.Host == "" {
		missing = append(missing, "database.host")
	}
	if c.Database.DBName == "" {
		missing = append(missing, "database.dbname")
	}
	if c.AWS.S3Bucket == "" {
		missing = append(missing, "aws.s3_bucket")
	}
	if c.AWS.PublicBaseURL == "" {
		missing = append(missing, "aws.public_base_url")
	}
	if c.JWT.Secret == "" {
		missing = append(missing, "jwt.secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("jwt.secret must be at least 32 characters")
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Addr returns the listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
