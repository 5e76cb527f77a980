// Package config decodes rowcache settings from already-loaded
// configuration: a nested map (as produced by viper or any other loader) or
// YAML bytes. It performs no file or environment I/O of its own.
package config

import (
	"bytes"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/rowcache"
	"github.com/unkn0wn-root/rowcache/profile"
)

// keyDelimiter keeps "app.model" override keys flat inside viper.
const keyDelimiter = "::"

// StoreConnection addresses the Redis deployment. Either URL or Addrs is
// required; with MasterName set, Addrs are sentinels.
type StoreConnection struct {
	URL          string        `mapstructure:"url" yaml:"url"`
	Addrs        []string      `mapstructure:"addrs" yaml:"addrs"`
	MasterName   string        `mapstructure:"master_name" yaml:"master_name"`
	DB           int           `mapstructure:"db" yaml:"db"`
	Username     string        `mapstructure:"username" yaml:"username"`
	Password     string        `mapstructure:"password" yaml:"password"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size" yaml:"pool_size"`
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// Settings is the full rowcache configuration.
//
// Overrides map "app.model", "app.*" or "*.*" to a profile map, a legacy
// [name, timeout, options] list, or false to disable caching.
type Settings struct {
	StoreConnection  StoreConnection           `mapstructure:"store_connection" yaml:"store_connection"`
	Defaults         map[string]any            `mapstructure:"defaults" yaml:"defaults"`
	Profiles         map[string]map[string]any `mapstructure:"profiles" yaml:"profiles"`
	Overrides        map[string]any            `mapstructure:"overrides" yaml:"overrides"`
	LRU              bool                      `mapstructure:"lru" yaml:"lru"`
	DegradeOnFailure bool                      `mapstructure:"degrade_on_failure" yaml:"degrade_on_failure"`
	LockTimeout      time.Duration             `mapstructure:"lock_timeout" yaml:"lock_timeout"`
}

// FromMap decodes settings from a nested map. Keys are case-insensitive.
func FromMap(m map[string]any) (*Settings, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	if err := v.MergeConfigMap(m); err != nil {
		return nil, fmt.Errorf("%w: %v", rowcache.ErrMisconfigured, err)
	}
	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("%w: %v", rowcache.ErrMisconfigured, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// FromYAML decodes settings from a YAML document. Unknown keys are errors.
func FromYAML(b []byte) (*Settings, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	s := &Settings{}
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("%w: %v", rowcache.ErrMisconfigured, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the store connection and every profile override.
func (s *Settings) Validate() error {
	sc := s.StoreConnection
	if sc.URL == "" && len(sc.Addrs) == 0 {
		return fmt.Errorf("%w: store_connection requires url or addrs", rowcache.ErrMisconfigured)
	}
	if sc.URL != "" && len(sc.Addrs) > 0 {
		return fmt.Errorf("%w: store_connection takes url or addrs, not both", rowcache.ErrMisconfigured)
	}
	if s.LockTimeout < 0 {
		return fmt.Errorf("%w: lock_timeout must not be negative", rowcache.ErrMisconfigured)
	}
	if _, err := profile.NewResolver(s.profileConfig()); err != nil {
		return err
	}
	return nil
}

func (s *Settings) profileConfig() profile.Config {
	return profile.Config{Defaults: s.Defaults, Profiles: s.Profiles, Overrides: s.Overrides}
}

// Client builds a Redis client for the store connection.
func (s *Settings) Client() (goredis.UniversalClient, error) {
	sc := s.StoreConnection
	if sc.URL != "" {
		opt, err := goredis.ParseURL(sc.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: store_connection.url: %v", rowcache.ErrMisconfigured, err)
		}
		if sc.DialTimeout > 0 {
			opt.DialTimeout = sc.DialTimeout
		}
		if sc.ReadTimeout > 0 {
			opt.ReadTimeout = sc.ReadTimeout
		}
		if sc.WriteTimeout > 0 {
			opt.WriteTimeout = sc.WriteTimeout
		}
		if sc.PoolSize > 0 {
			opt.PoolSize = sc.PoolSize
		}
		if sc.MaxRetries != 0 {
			opt.MaxRetries = sc.MaxRetries
		}
		return goredis.NewClient(opt), nil
	}
	return goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:        sc.Addrs,
		MasterName:   sc.MasterName,
		DB:           sc.DB,
		Username:     sc.Username,
		Password:     sc.Password,
		DialTimeout:  sc.DialTimeout,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		PoolSize:     sc.PoolSize,
		MaxRetries:   sc.MaxRetries,
	}), nil
}

// Options builds rowcache.Options owning a fresh client. Logger, Hooks and
// Local are left for the caller.
func (s *Settings) Options() (rowcache.Options, error) {
	rdb, err := s.Client()
	if err != nil {
		return rowcache.Options{}, err
	}
	return rowcache.Options{
		Client:           rdb,
		Profiles:         s.profileConfig(),
		LRU:              s.LRU,
		DegradeOnFailure: s.DegradeOnFailure,
		LockTimeout:      s.LockTimeout,
		CloseClient:      true,
	}, nil
}
