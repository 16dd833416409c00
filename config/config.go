// Package config loads ixoded's environment-variable configuration,
// grounded on the teacher's EnvConfig/Validator pattern with viper as the
// backing key-value source instead of raw os.Getenv lookups.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvConfig retrieves values from the process environment through a viper
// instance, with an optional prefix applied to every key.
type EnvConfig struct {
	prefix string
	v      *viper.Viper
}

func NewEnvConfig(prefix string) *EnvConfig {
	v := viper.New()
	v.AutomaticEnv()
	return &EnvConfig{prefix: prefix, v: v}
}

func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

func (ec *EnvConfig) GetString(key, defaultValue string) string {
	if v := ec.v.GetString(ec.buildKey(key)); v != "" {
		return v
	}
	return defaultValue
}

func (ec *EnvConfig) MustGetString(key string) string {
	fullKey := ec.buildKey(key)
	v := ec.v.GetString(fullKey)
	if v == "" {
		panic(fmt.Sprintf("required environment variable %s not set", fullKey))
	}
	return v
}

func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	fullKey := ec.buildKey(key)
	if !ec.v.IsSet(fullKey) {
		return defaultValue
	}
	return ec.v.GetInt(fullKey)
}

func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	fullKey := ec.buildKey(key)
	if !ec.v.IsSet(fullKey) {
		return defaultValue
	}
	return ec.v.GetDuration(fullKey)
}

// Validator accumulates configuration validation errors so a server can
// report every problem at startup rather than failing on the first one.
type Validator struct {
	errors []string
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

func (v *Validator) RequirePositiveInt(field string, value int) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be positive", field))
	}
}

func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

func (v *Validator) Validate() error {
	if !v.IsValid() {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(v.errors, "; "))
	}
	return nil
}

// IxodeConfig is the full set of environment variables ixoded reads at
// startup (spec §6 Environment, expanded).
type IxodeConfig struct {
	CurrentPath    string        // CURRENT_PATH: data root for registry/codec files
	EncryptionKey  string        // IXODE_ENCRYPTION_KEY: codec chacha20poly1305 key, empty disables encryption
	TmpPassword    string        // TMP_PASSWORD: bootstrap admin password
	LoopCap        int           // IXODE_LOOP_CAP: flow interpreter iteration cap override, 0 means default
	Port           int           // IXODE_PORT: HTTP listen port
	RedisURL       string        // IXODE_REDIS_URL: when set, lock.Manager uses a distributed Redis lock
	MediaBackend   string        // IXODE_MEDIA_BACKEND: "local" or "s3"
	MediaBucket    string        // IXODE_MEDIA_BUCKET: S3 bucket when MediaBackend is "s3"
	JWTSecret      string        // IXODE_JWT_SECRET: HMAC secret for auth.Verifier
	JWTExpiry      time.Duration // IXODE_JWT_EXPIRY
}

// Load reads IxodeConfig from the environment and validates the fields
// every deployment must supply.
func Load() (IxodeConfig, error) {
	env := NewEnvConfig("")
	cfg := IxodeConfig{
		CurrentPath:   env.GetString("CURRENT_PATH", "."),
		EncryptionKey: env.GetString("IXODE_ENCRYPTION_KEY", ""),
		TmpPassword:   env.GetString("TMP_PASSWORD", ""),
		LoopCap:       env.GetInt("IXODE_LOOP_CAP", 0),
		Port:          env.GetInt("IXODE_PORT", 8080),
		RedisURL:      env.GetString("IXODE_REDIS_URL", ""),
		MediaBackend:  env.GetString("IXODE_MEDIA_BACKEND", "local"),
		MediaBucket:   env.GetString("IXODE_MEDIA_BUCKET", ""),
		JWTSecret:     env.GetString("IXODE_JWT_SECRET", ""),
		JWTExpiry:     env.GetDuration("IXODE_JWT_EXPIRY", 24*time.Hour),
	}

	v := NewValidator()
	v.RequirePositiveInt("IXODE_PORT", cfg.Port)
	if cfg.MediaBackend != "local" && cfg.MediaBackend != "s3" {
		v.RequireString("IXODE_MEDIA_BACKEND (local|s3)", "")
	}
	if cfg.MediaBackend == "s3" {
		v.RequireString("IXODE_MEDIA_BUCKET", cfg.MediaBucket)
	}
	if err := v.Validate(); err != nil {
		return IxodeConfig{}, err
	}
	return cfg, nil
}
