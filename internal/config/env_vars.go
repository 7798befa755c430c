package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	portEnvVar   = "PORT"
	appNameVar   = "APP_NAME"
	folderEnvVar = "FOLDER"
	logLevelVar  = "LOG_LEVEL"
	envVar       = "ENV"
)

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.v.GetString(portEnvVar)
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.v.GetString(appNameVar)
}

func (e EnvVars) GetDataFolder() string {
	return e.v.GetString(folderEnvVar)
}

func (e EnvVars) GetLogLevel() string {
	return strings.ToLower(e.v.GetString(logLevelVar))
}

func (e EnvVars) GetEnv() string {
	env := e.v.GetString(envVar)
	if env == "" {
		return "DEV"
	}
	return strings.ToUpper(env)
}
