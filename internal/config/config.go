// Package config loads service settings from defaults, an optional YAML
// file, an optional .env file and CHOREPLAN_* environment variables, in
// that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "CHOREPLAN_"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	OriginPatterns  []string      `yaml:"origin_patterns"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type AuthConfig struct {
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SecureCookies bool          `yaml:"secure_cookies"`
	// One sign-in attempt is refilled per SignInEvery, up to SignInBurst.
	SignInEvery time.Duration `yaml:"sign_in_every"`
	SignInBurst int           `yaml:"sign_in_burst"`
}

type ScheduleConfig struct {
	// HorizonDays is how many days ahead the nightly run creates daily rows.
	HorizonDays int  `yaml:"horizon_days"`
	Runner      bool `yaml:"runner"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{Path: "choreplan.db"},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
		Auth: AuthConfig{
			SessionTTL:  30 * 24 * time.Hour,
			SignInEvery: 12 * time.Second,
			SignInBurst: 5,
		},
		Schedule: ScheduleConfig{HorizonDays: 7, Runner: true},
	}
}

// Load builds the configuration. An empty configFile or envFile skips that
// source; a named file that does not exist is an error for YAML and ignored
// for .env.
func Load(configFile, envFile string) (*Config, error) {
	c := Default()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", configFile, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	envString(&c.Server.Addr, "ADDR")
	envString(&c.Database.Path, "DB_PATH")
	envString(&c.Log.Level, "LOG_LEVEL")
	envString(&c.Log.Format, "LOG_FORMAT")
	envString(&c.Log.File, "LOG_FILE")
	if v, ok := lookup("ORIGIN_PATTERNS"); ok {
		c.Server.OriginPatterns = splitList(v)
	}

	var errs []error
	errs = append(errs,
		envDuration(&c.Server.ShutdownTimeout, "SHUTDOWN_TIMEOUT"),
		envDuration(&c.Auth.SessionTTL, "SESSION_TTL"),
		envDuration(&c.Auth.SignInEvery, "SIGN_IN_EVERY"),
		envInt(&c.Auth.SignInBurst, "SIGN_IN_BURST"),
		envBool(&c.Auth.SecureCookies, "SECURE_COOKIES"),
		envInt(&c.Schedule.HorizonDays, "HORIZON_DAYS"),
		envBool(&c.Schedule.Runner, "RUNNER"),
	)
	return errors.Join(errs...)
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("auth.session_ttl must be positive"))
	}
	if c.Auth.SignInEvery <= 0 || c.Auth.SignInBurst < 1 {
		errs = append(errs, errors.New("auth sign-in rate must be positive"))
	}
	if c.Schedule.HorizonDays < 1 || c.Schedule.HorizonDays > 366 {
		errs = append(errs, errors.New("schedule.horizon_days must be between 1 and 366"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func envString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func envInt(dst *int, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = n
	return nil
}

func envBool(dst *bool, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = b
	return nil
}

func envDuration(dst *time.Duration, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
