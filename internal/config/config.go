// Package config loads service configuration. Values are layered as
// defaults -> optional YAML file -> APP_ environment variables, with a .env
// file in the working directory loaded into the environment first.
package config

import "time"

// Config holds all configuration for the service.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Storage  StorageConfig  `koanf:"storage"`
	Auth     AuthConfig     `koanf:"auth"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	IdleTimeout    time.Duration `koanf:"idle_timeout"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DatabaseConfig selects and tunes the record store.
type DatabaseConfig struct {
	Driver   string `koanf:"driver"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
	Schema   string `koanf:"schema"`
	SSLMode  string `koanf:"sslmode"`
	// Path is the database file for the sqlite driver.
	Path string `koanf:"path"`

	MaxIdleConns       int           `koanf:"max_idle_conns"`
	MaxOpenConns       int           `koanf:"max_open_conns"`
	ConnMaxLifetime    time.Duration `koanf:"conn_max_lifetime"`
	SlowQueryThreshold time.Duration `koanf:"slow_query_threshold"`
	AutoMigrate        bool          `koanf:"auto_migrate"`
}

// StorageConfig selects the cover blob store.
type StorageConfig struct {
	Driver    string   `koanf:"driver"`
	Root      string   `koanf:"root"`
	PublicURL string   `koanf:"public_url"`
	S3        S3Config `koanf:"s3"`
}

// S3Config holds settings for the S3 cover store.
type S3Config struct {
	Bucket       string `koanf:"bucket"`
	Region       string `koanf:"region"`
	Endpoint     string `koanf:"endpoint"`
	Prefix       string `koanf:"prefix"`
	AccessKey    string `koanf:"access_key"`
	SecretKey    string `koanf:"secret_key"`
	UsePathStyle bool   `koanf:"use_path_style"`
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
	Issuer    string `koanf:"issuer"`
}
