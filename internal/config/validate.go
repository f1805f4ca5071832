// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package config

import (
	"strings"

	"github.com/samber/oops"

	"github.com/authkeep/authkeep/internal/auth"
	"github.com/authkeep/authkeep/internal/logging"
	"github.com/authkeep/authkeep/internal/store"
)

// Validate checks values that every command depends on.
func (c *Config) Validate() error {
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", c.Log.Format, "log format must be 'json' or 'text'")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", c.Log.Level, "unknown log level")
	}
	if c.Hasher.Workers < 1 {
		return invalid("hasher.workers", c.Hasher.Workers, "hasher workers must be at least 1")
	}
	if err := c.HashPolicy().Validate(); err != nil {
		return invalid("hasher", c.Hasher.Algorithm, "invalid hasher policy: "+err.Error())
	}
	if c.Database.MaxConns < 1 {
		return invalid("database.max_conns", c.Database.MaxConns, "max connections must be at least 1")
	}
	if c.Database.ConnectTimeout < 0 {
		return invalid("database.connect_timeout", c.Database.ConnectTimeout, "connect timeout cannot be negative")
	}
	if c.Token.Lifetime < 0 {
		return invalid("token.lifetime", c.Token.Lifetime, "token lifetime cannot be negative")
	}
	return nil
}

// ValidateServe checks the additional values the server needs.
func (c *Config) ValidateServe() error {
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return invalid("http.addr", c.HTTP.Addr, "http address is required")
	}
	if (c.HTTP.TLS.CertFile == "") != (c.HTTP.TLS.KeyFile == "") {
		return invalid("http.tls", c.HTTP.TLS.CertFile, "tls cert_file and key_file must be set together")
	}
	if c.HTTP.TLS.SelfSigned && c.HTTP.TLS.CertFile != "" {
		return invalid("http.tls", c.HTTP.TLS.CertFile, "tls self_signed cannot be combined with cert_file")
	}
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if len(c.Token.Secret) < auth.MinSecretLength {
		// Never echo the secret itself.
		return invalid("token.secret", len(c.Token.Secret), "token secret must be at least 32 bytes")
	}
	if strings.TrimSpace(c.Token.Issuer) == "" {
		return invalid("token.issuer", c.Token.Issuer, "token issuer is required")
	}
	if strings.TrimSpace(c.Token.Audience) == "" {
		return invalid("token.audience", c.Token.Audience, "token audience is required")
	}
	return nil
}

// ValidateDatabase checks that a database URL is configured.
func (c *Config) ValidateDatabase() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("database URL is required (set AUTHKEEP_DATABASE__URL or DATABASE_URL)")
	}
	return nil
}

// HashPolicy returns the password hashing policy. Salt and key lengths
// always take their defaults.
func (c *Config) HashPolicy() auth.HashPolicy {
	policy := auth.DefaultHashPolicy()
	policy.Algorithm = auth.Algorithm(c.Hasher.Algorithm)
	policy.Argon2Time = c.Hasher.Argon2.Time
	policy.Argon2MemoryKiB = c.Hasher.Argon2.MemoryKiB
	policy.Argon2Threads = c.Hasher.Argon2.Threads
	policy.PBKDF2Iterations = c.Hasher.PBKDF2.Iterations
	return policy
}

// TokenConfig returns the token service configuration.
func (c *Config) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		Secret:   []byte(c.Token.Secret),
		Issuer:   c.Token.Issuer,
		Audience: c.Token.Audience,
		Lifetime: c.Token.Lifetime,
	}
}

// PoolConfig returns the database pool configuration.
func (c *Config) PoolConfig() store.PoolConfig {
	return store.PoolConfig{
		URL:            c.Database.URL,
		MaxConns:       c.Database.MaxConns,
		ConnectTimeout: c.Database.ConnectTimeout,
		ConnectRetries: c.Database.ConnectRetries,
	}
}

func invalid(key string, value any, msg string) error {
	return oops.Code("CONFIG_INVALID").With("key", key).With("value", value).Errorf("%s", msg)
}
