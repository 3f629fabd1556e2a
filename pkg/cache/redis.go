package cache

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"os"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
)

// RedisConfig holds the connection pool settings for the Redis store.
type RedisConfig struct {
	Address     string        `yaml:"address"`
	Username    string        `yaml:"username,omitempty"`
	Password    string        `yaml:"password,omitempty"`
	Database    int           `yaml:"database,omitempty"`
	MaxIdle     int           `yaml:"max_idle"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	TLS         *TLSConfig    `yaml:"tls,omitempty"`
}

// TLSConfig holds TLS settings for Redis connections.
type TLSConfig struct {
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	CertFile           string `yaml:"cert_file"`
	KeyFile            string `yaml:"key_file"`
	CAFile             string `yaml:"ca_file"`
}

func (r RedisConfig) Validate() error {
	if r.Address == "" {
		return errors.New("redis address must be set and non-empty")
	}
	if r.MaxIdle < 0 {
		return errors.New("redis max_idle must be non-negative")
	}
	if r.IdleTimeout < 0 {
		return errors.New("redis idle_timeout must be non-negative")
	}
	if r.Database < 0 {
		return errors.New("redis database must be non-negative")
	}
	if r.TLS != nil && (r.TLS.CertFile == "") != (r.TLS.KeyFile == "") {
		return errors.New("both cert_file and key_file must be set together in TLS configuration")
	}
	return nil
}

// CreateClient implements config.ClientFactory[*redis.Pool]. Connections are
// dialled lazily.
func (r RedisConfig) CreateClient() (*redis.Pool, error) {
	if err := r.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid Redis configuration")
	}
	cfg := r
	return &redis.Pool{
		MaxIdle:     cfg.MaxIdle,
		IdleTimeout: cfg.IdleTimeout,
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
		Dial: func() (redis.Conn, error) {
			return dialRedis(cfg)
		},
	}, nil
}

func dialRedis(cfg RedisConfig) (redis.Conn, error) {
	opts := []redis.DialOption{redis.DialDatabase(cfg.Database)}
	if cfg.Username != "" {
		opts = append(opts, redis.DialUsername(cfg.Username))
	}
	if cfg.Password != "" {
		opts = append(opts, redis.DialPassword(cfg.Password))
	}

	if cfg.TLS != nil {
		tlsConfig := &tls.Config{
			// #nosec G402 -- opt-in for development clusters
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
		}
		if cfg.TLS.CAFile != "" {
			ca, err := os.ReadFile(cfg.TLS.CAFile)
			if err != nil {
				return nil, errors.Wrap(err, "failed to read Redis CA file")
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(ca) {
				return nil, errors.Errorf("failed to parse CA certificate %q", cfg.TLS.CAFile)
			}
			tlsConfig.RootCAs = pool
		}
		if cfg.TLS.CertFile != "" {
			cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			if err != nil {
				return nil, errors.Wrap(err, "failed to load Redis client certificate")
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}
		opts = append(opts, redis.DialTLSConfig(tlsConfig), redis.DialUseTLS(true))
	}

	return redis.Dial("tcp", cfg.Address, opts...)
}

// RedisStore stores entries with SETEX so Redis handles expiry.
type RedisStore struct {
	pool   *redis.Pool
	prefix string
}

func NewRedisStore(pool *redis.Pool, prefix string) *RedisStore {
	return &RedisStore{pool: pool, prefix: prefix}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to get Redis connection")
	}
	defer func() { _ = conn.Close() }()

	value, err := redis.Bytes(conn.Do("GET", r.prefix+key))
	if errors.Is(err, redis.ErrNil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "redis GET %q failed", key)
	}
	return value, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get Redis connection")
	}
	defer func() { _ = conn.Close() }()

	seconds := int64(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	if _, err = conn.Do("SETEX", r.prefix+key, seconds, value); err != nil {
		return errors.Wrapf(err, "redis SETEX %q failed", key)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.pool.Close()
}
