package config

import (
	"errors"
	"fmt"
)

// Validate checks all configuration values and returns aggregated errors.
func (c *Config) Validate() error {
	return errors.Join(
		c.Server.validate(),
		c.Log.validate(),
		c.Database.validate(),
		c.Storage.validate(),
		c.Auth.validate(),
	)
}

func (s *ServerConfig) validate() error {
	var errs []error

	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", s.Port))
	}
	if s.ReadTimeout <= 0 {
		errs = append(errs, errors.New("server.read_timeout must be positive"))
	}
	if s.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server.write_timeout must be positive"))
	}

	return errors.Join(errs...)
}

func (l *LogConfig) validate() error {
	var errs []error

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", l.Level))
	}

	switch l.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be one of: json, text; got %q", l.Format))
	}

	return errors.Join(errs...)
}

func (d *DatabaseConfig) validate() error {
	var errs []error

	switch d.Driver {
	case "postgres":
		if d.Host == "" {
			errs = append(errs, errors.New("database.host must not be empty for postgres"))
		}
		if d.Database == "" {
			errs = append(errs, errors.New("database.database must not be empty for postgres"))
		}
		if d.Port < 1 || d.Port > 65535 {
			errs = append(errs, fmt.Errorf("database.port must be between 1 and 65535, got %d", d.Port))
		}
	case "sqlite":
		if d.Path == "" {
			errs = append(errs, errors.New("database.path must not be empty for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver must be one of: postgres, sqlite; got %q", d.Driver))
	}

	if d.MaxOpenConns < 0 || d.MaxIdleConns < 0 {
		errs = append(errs, errors.New("database connection pool sizes must not be negative"))
	}

	return errors.Join(errs...)
}

func (s *StorageConfig) validate() error {
	var errs []error

	switch s.Driver {
	case "disk":
		if s.Root == "" {
			errs = append(errs, errors.New("storage.root must not be empty for disk"))
		}
	case "s3":
		if s.S3.Bucket == "" {
			errs = append(errs, errors.New("storage.s3.bucket must not be empty for s3"))
		}
		if s.S3.Region == "" {
			errs = append(errs, errors.New("storage.s3.region must not be empty for s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be one of: disk, s3; got %q", s.Driver))
	}

	return errors.Join(errs...)
}

func (a *AuthConfig) validate() error {
	if len(a.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 characters")
	}
	return nil
}
