// Package config selects the history backend for the process-wide leaper from
// a config file and QUANTUM_LEAP_* environment variables.
package config

import (
	"bytes"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/spf13/viper"

	"quantumleap/quantum"
)

const (
	BackendLocal = "local"
	BackendRedis = "redis"

	envPrefix = "QUANTUM_LEAP"
)

// Config is the backend selection.
type Config struct {
	Backend string
	Redis   RedisConfig
}

// RedisConfig describes the shared list backend.
type RedisConfig struct {
	URL         string
	Key         string
	TTL         time.Duration
	PingTimeout time.Duration
	// Location names the zone decoded instants prefer, e.g. "UTC" or "Local".
	Location string
}

// Load reads configuration from the file at pathFile, if given, with
// environment variables taking precedence. The file type is inferred by
// Viper from the filename extension.
func Load(pathFile string) (*Config, error) {
	v := newViper()

	if pathFile != "" {
		filename := path.Base(pathFile)
		v.AddConfigPath(path.Dir(pathFile))
		v.SetConfigName(strings.TrimSuffix(filename, path.Ext(filename)))

		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	return fromViper(v), nil
}

// LoadFromBytes reads configuration from memory. configType should be a
// format supported by Viper (e.g. "yaml", "json", "toml").
func LoadFromBytes(configType string, data []byte) (*Config, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, errors.New("config type is required")
	}

	v := newViper()
	v.SetConfigType(configType)

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	return fromViper(v), nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("backend", BackendLocal)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.key", quantum.DefaultRedisKey)
	v.SetDefault("redis.ttl", time.Duration(0))
	v.SetDefault("redis.ping_timeout", 5*time.Second)
	v.SetDefault("redis.location", "Local")
	return v
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Backend: strings.ToLower(strings.TrimSpace(v.GetString("backend"))),
		Redis: RedisConfig{
			URL:         v.GetString("redis.url"),
			Key:         v.GetString("redis.key"),
			TTL:         v.GetDuration("redis.ttl"),
			PingTimeout: v.GetDuration("redis.ping_timeout"),
			Location:    v.GetString("redis.location"),
		},
	}
}
