package config

import (
	"strings"

	"github.com/spf13/viper"
)

const (
	sessionBackendVar = "SESSION_BACKEND"
	sessionSecretVar  = "SESSION_SECRET"
	cookieNameVar     = "COOKIE_NAME"
	cookieSecretVar   = "COOKIE_SECRET"
	redisAddrVar      = "REDIS_ADDR"
	redisPasswordVar  = "REDIS_PASSWORD"
	redisDBVar        = "REDIS_DB"
	redisPrefixVar    = "REDIS_PREFIX"
)

// Session store backends
const (
	SessionBackendFile   = "file"
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

type SessionConfig interface {
	GetSessionBackend() string
	GetSessionSecret() string
	GetCookieName() string
	GetCookieSecret() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
}

type Sessions struct {
	v *viper.Viper
}

var _ SessionConfig = Sessions{}

func (s Sessions) GetSessionBackend() string {
	switch backend := strings.ToLower(s.v.GetString(sessionBackendVar)); backend {
	case SessionBackendMemory, SessionBackendRedis:
		return backend
	default:
		return SessionBackendFile
	}
}

// GetSessionSecret seals file-backed token documents when set
func (s Sessions) GetSessionSecret() string {
	return s.v.GetString(sessionSecretVar)
}

func (s Sessions) GetCookieName() string {
	return s.v.GetString(cookieNameVar)
}

// GetCookieSecret signs the dashboard cookie. Empty means a random key per process,
// which logs every browser out on restart.
func (s Sessions) GetCookieSecret() string {
	return s.v.GetString(cookieSecretVar)
}

func (s Sessions) GetRedisAddr() string {
	return s.v.GetString(redisAddrVar)
}

func (s Sessions) GetRedisPassword() string {
	return s.v.GetString(redisPasswordVar)
}

func (s Sessions) GetRedisDB() int {
	return s.v.GetInt(redisDBVar)
}

func (s Sessions) GetRedisPrefix() string {
	return s.v.GetString(redisPrefixVar)
}
