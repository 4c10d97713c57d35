package app

import (
	"strings"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/cache"
)

// UsesRedis reports whether shared counters should live in Redis rather than
// the database store.
func (c CacheConfig) UsesRedis() bool {
	return c.Redis.Enabled && strings.TrimSpace(c.Redis.Address) != ""
}

// RedisClientConfig adapts the cache section for cache.NewRedisStore. A prefix
// without a trailing colon gets one so keys read as "<prefix>:ratelimit:...".
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	prefix := strings.TrimSpace(c.Redis.KeyPrefix)
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return cache.RedisConfig{
		Address:   strings.TrimSpace(c.Redis.Address),
		Username:  strings.TrimSpace(c.Redis.Username),
		Password:  c.Redis.Password,
		DB:        c.Redis.DB,
		TLS:       c.Redis.TLS,
		Timeout:   c.Redis.Timeout,
		KeyPrefix: prefix,
	}
}
