// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

// Package config loads Authkeep configuration.
//
// Sources are layered, later ones winning: built-in defaults, the YAML
// config file, AUTHKEEP_ environment variables, then command-line flags.
// Environment keys use a double underscore for nesting, so
// AUTHKEEP_DATABASE__MAX_CONNS sets database.max_conns.
package config

import (
	"errors"
	"io/fs"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/authkeep/authkeep/internal/auth"
	"github.com/authkeep/authkeep/internal/xdg"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "AUTHKEEP_"

// Config is the complete service configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Token    TokenConfig    `koanf:"token"`
	Hasher   HasherConfig   `koanf:"hasher"`
	Log      LogConfig      `koanf:"log"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr        string    `koanf:"addr"`
	BodyLimit   string    `koanf:"body_limit"`
	CORSOrigins []string  `koanf:"cors_origins"`
	TLS         TLSConfig `koanf:"tls"`
}

// TLSConfig enables HTTPS on the API listener, either from an existing
// certificate and key or from a generated self-signed set.
type TLSConfig struct {
	CertFile   string   `koanf:"cert_file"`
	KeyFile    string   `koanf:"key_file"`
	SelfSigned bool     `koanf:"self_signed"`
	Hosts      []string `koanf:"hosts"`
	// CertsDir holds generated certificates. Empty means the XDG data dir.
	CertsDir string `koanf:"certs_dir"`
}

// Enabled reports whether the API is served over HTTPS.
func (t TLSConfig) Enabled() bool {
	return t.SelfSigned || t.CertFile != ""
}

// MetricsConfig configures the metrics and health listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL            string        `koanf:"url"`
	MaxConns       int32         `koanf:"max_conns"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	ConnectRetries uint64        `koanf:"connect_retries"`
	AutoMigrate    bool          `koanf:"auto_migrate"`
}

// TokenConfig configures bearer token signing.
type TokenConfig struct {
	Secret   string        `koanf:"secret"`
	Issuer   string        `koanf:"issuer"`
	Audience string        `koanf:"audience"`
	Lifetime time.Duration `koanf:"lifetime"`
}

// HasherConfig configures password hashing.
type HasherConfig struct {
	Algorithm string       `koanf:"algorithm"`
	Argon2    Argon2Config `koanf:"argon2"`
	PBKDF2    PBKDF2Config `koanf:"pbkdf2"`
	Workers   int          `koanf:"workers"`
}

// Argon2Config holds argon2id cost parameters.
type Argon2Config struct {
	Time      uint32 `koanf:"time"`
	MemoryKiB uint32 `koanf:"memory_kib"`
	Threads   uint8  `koanf:"threads"`
}

// PBKDF2Config holds PBKDF2 cost parameters.
type PBKDF2Config struct {
	Iterations uint32 `koanf:"iterations"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Defaults returns the built-in configuration values.
func Defaults() map[string]any {
	policy := auth.DefaultHashPolicy()
	return map[string]any{
		"http.addr":                "127.0.0.1:8080",
		"http.body_limit":          "64K",
		"metrics.addr":             "127.0.0.1:9100",
		"database.max_conns":       10,
		"database.connect_timeout": "5s",
		"database.connect_retries": 5,
		"database.auto_migrate":    false,
		"token.issuer":             "authkeep",
		"token.audience":           "authkeep",
		"token.lifetime":           auth.DefaultTokenLifetime.String(),
		"hasher.algorithm":         string(policy.Algorithm),
		"hasher.argon2.time":       policy.Argon2Time,
		"hasher.argon2.memory_kib": policy.Argon2MemoryKiB,
		"hasher.argon2.threads":    policy.Argon2Threads,
		"hasher.pbkdf2.iterations": policy.PBKDF2Iterations,
		"hasher.workers":           runtime.NumCPU(),
		"log.format":               "json",
		"log.level":                "info",
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"http-addr":       "http.addr",
	"metrics-addr":    "metrics.addr",
	"database-url":    "database.url",
	"auto-migrate":    "database.auto_migrate",
	"log-format":      "log.format",
	"log-level":       "log.level",
	"hasher-workers":  "hasher.workers",
	"tls-cert":        "http.tls.cert_file",
	"tls-key":         "http.tls.key_file",
	"tls-self-signed": "http.tls.self_signed",
}

// RegisterFlags adds the flags Load understands to fs. Flag defaults are
// empty so only flags set on the command line override other sources.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("http-addr", "", "API listen address")
	fs.String("metrics-addr", "", "metrics/health listen address (empty string disables)")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.Bool("auto-migrate", false, "apply pending migrations on startup")
	fs.String("log-format", "", "log format (json or text)")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.Int("hasher-workers", 0, "maximum concurrent password hash computations")
	fs.String("tls-cert", "", "PEM certificate for serving the API over HTTPS")
	fs.String("tls-key", "", "PEM private key matching --tls-cert")
	fs.Bool("tls-self-signed", false, "serve HTTPS with a generated self-signed certificate")
}

// Options controls where Load reads from.
type Options struct {
	// File is the YAML config path. Empty means the XDG default, which may
	// be absent. An explicit path must exist.
	File string

	// Flags are applied last. Only flags marked as changed are read.
	Flags *pflag.FlagSet
}

// Load reads configuration from all sources and validates it.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	if err := loadFile(k, opts.File); err != nil {
		return nil, err
	}

	if err := loadEnv(k); err != nil {
		return nil, err
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	explicit := path != ""
	if !explicit {
		var err error
		path, err = xdg.ConfigFile()
		if err != nil {
			// No home directory; run without a config file.
			return nil //nolint:nilerr // the default file is optional
		}
	}

	err := k.Load(file.Provider(path), yaml.Parser())
	if err == nil {
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return oops.Code("CONFIG_LOAD_FAILED").
		With("source", "file").
		With("path", path).
		Wrap(err)
}

func loadEnv(k *koanf.Koanf) error {
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}
	// DATABASE_URL is the conventional name; AUTHKEEP_DATABASE__URL wins.
	if !k.Exists("database.url") {
		if url := os.Getenv("DATABASE_URL"); url != "" {
			if err := k.Set("database.url", url); err != nil {
				return oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
			}
		}
	}
	return nil
}

// envKey converts AUTHKEEP_TOKEN__SECRET to token.secret. It returns ""
// for variables without the prefix, which the provider skips.
func envKey(name string) string {
	if !strings.HasPrefix(name, EnvPrefix) {
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "__", ".")
}
