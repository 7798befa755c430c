package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	apiBaseURLVar    = "API_BASE_URL"
	apiTimeoutVar    = "API_TIMEOUT"
	pollIntervalVar  = "POLL_INTERVAL"
	resurrectWaitVar = "RESURRECT_WAIT"
)

type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
	GetPollInterval() time.Duration
	GetResurrectWait() time.Duration
}

type API struct {
	v *viper.Viper
}

var _ APIConfig = API{}

// GetAPIBaseURL returns the backend REST root, e.g. "http://localhost:8000/api/v1"
func (a API) GetAPIBaseURL() string {
	return strings.TrimRight(a.v.GetString(apiBaseURLVar), "/")
}

func (a API) GetAPITimeout() time.Duration {
	return positiveDuration(a.v, apiTimeoutVar, 10*time.Second)
}

func (a API) GetPollInterval() time.Duration {
	return positiveDuration(a.v, pollIntervalVar, 3*time.Second)
}

// GetResurrectWait is how long a guarded page waits for session resurrection before
// rendering the loading placeholder.
func (a API) GetResurrectWait() time.Duration {
	return positiveDuration(a.v, resurrectWaitVar, 2*time.Second)
}

func positiveDuration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	d := v.GetDuration(key)
	if d <= 0 {
		return fallback
	}
	return d
}
