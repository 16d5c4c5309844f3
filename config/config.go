// Package config loads the service configuration from an optional YAML file,
// an optional .env file and environment variables, in that order.
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

// MinSecretLength mirrors the token codec's requirement.
const MinSecretLength = 32

// Config is the full service configuration. Zero values are replaced by
// defaults on Load.
type Config struct {
	Server struct {
		Addr         string        `yaml:"addr"`
		CORSOrigins  []string      `yaml:"cors_origins"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`

	Database struct {
		URL      string `yaml:"url"`
		MaxConns int32  `yaml:"max_conns"`
	} `yaml:"database"`

	JWT struct {
		Secret     string        `yaml:"secret"`
		Issuer     string        `yaml:"issuer"`
		AccessTTL  time.Duration `yaml:"access_ttl"`
		RefreshTTL time.Duration `yaml:"refresh_ttl"`
	} `yaml:"jwt"`

	Revocation struct {
		// memory | redis
		Driver        string `yaml:"driver"`
		RedisAddr     string `yaml:"redis_addr"`
		RedisPassword string `yaml:"redis_password"`
		RedisDB       int    `yaml:"redis_db"`
		KeyPrefix     string `yaml:"key_prefix"`
	} `yaml:"revocation"`

	Log struct {
		// dev | prod
		Env   string `yaml:"env"`
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns a Config with every default applied and no secret.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// Load reads path (optional, "" skips it), then .env, then the environment.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, c); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	// Existing environment variables win over .env entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	c.applyEnvOverrides()
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.CORSOrigins == nil {
		c.Server.CORSOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "prospection-app"
	}
	if c.JWT.AccessTTL == 0 {
		c.JWT.AccessTTL = 15 * time.Minute
	}
	if c.JWT.RefreshTTL == 0 {
		c.JWT.RefreshTTL = 7 * 24 * time.Hour
	}
	if c.Revocation.Driver == "" {
		c.Revocation.Driver = "memory"
	}
	if c.Revocation.KeyPrefix == "" {
		c.Revocation.KeyPrefix = "revoked:"
	}
	if c.Log.Env == "" {
		c.Log.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// ---- env helpers ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}

func (c *Config) applyEnvOverrides() {
	// SERVER
	if v, ok := getEnvStr("APP_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("APP_CORS_ORIGINS"); ok {
		c.Server.CORSOrigins = v
	}

	// DATABASE
	if v, ok := getEnvStr("DATABASE_URL"); ok {
		c.Database.URL = v
	}
	if v, ok := getEnvInt("DATABASE_MAX_CONNS"); ok {
		c.Database.MaxConns = int32(v)
	}

	// JWT
	if v, ok := getEnvStr("JWT_SECRET"); ok {
		c.JWT.Secret = v
	}
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvDur("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvDur("JWT_REFRESH_TTL"); ok {
		c.JWT.RefreshTTL = v
	}

	// REVOCATION
	if v, ok := getEnvStr("REVOCATION_DRIVER"); ok {
		c.Revocation.Driver = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Revocation.RedisAddr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Revocation.RedisPassword = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Revocation.RedisDB = v
	}

	// LOG
	if v, ok := getEnvStr("LOG_ENV"); ok {
		c.Log.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
}

// Validate rejects configurations the server cannot safely start with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.JWT.Secret) < MinSecretLength {
		errs = append(errs, fmt.Errorf("jwt.secret must be at least %d bytes", MinSecretLength))
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		errs = append(errs, errors.New("jwt ttls must be positive"))
	} else if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		errs = append(errs, errors.New("jwt.refresh_ttl must be longer than jwt.access_ttl"))
	}
	switch c.Revocation.Driver {
	case "memory":
	case "redis":
		if c.Revocation.RedisAddr == "" {
			errs = append(errs, errors.New("revocation.redis_addr is required with the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown revocation.driver %q", c.Revocation.Driver))
	}
	if c.Database.MaxConns < 0 {
		errs = append(errs, errors.New("database.max_conns must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
