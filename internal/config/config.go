// Package config loads the dashboard configuration from the environment and an optional
// .env file using Viper.
package config

import (
	"github.com/spf13/viper"
)

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetLogLevel() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	API
	Sessions
}

// New reads .env (if present) and the process environment.
func New() Config {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine
	return NewFromViper(v)
}

// NewFromViper builds a Config over an existing viper instance. Environment variables
// always take precedence over values already loaded into v.
func NewFromViper(v *viper.Viper) Config {
	v.AutomaticEnv()
	setDefaults(v)
	return mainConfig{
		EnvVars:  EnvVars{v: v},
		API:      API{v: v},
		Sessions: Sessions{v: v},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(portEnvVar, "8080")
	v.SetDefault(appNameVar, "Offers Dashboard")
	v.SetDefault(folderEnvVar, "./data")
	v.SetDefault(logLevelVar, "info")
	v.SetDefault(envVar, "DEV")

	v.SetDefault(apiBaseURLVar, "http://localhost:8000/api/v1")
	v.SetDefault(apiTimeoutVar, "10s")
	v.SetDefault(pollIntervalVar, "3s")
	v.SetDefault(resurrectWaitVar, "2s")

	v.SetDefault(sessionBackendVar, SessionBackendFile)
	v.SetDefault(cookieNameVar, "offers_dashboard")
	v.SetDefault(redisAddrVar, "localhost:6379")
	v.SetDefault(redisDBVar, 0)
	v.SetDefault(redisPrefixVar, "offers-dashboard")
}
