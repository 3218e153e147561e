package commands

import (
	"time"

	"dlstracker-backend/internal/authprovider"
	"dlstracker-backend/internal/tracker"
	"dlstracker-backend/lib/configutil"
)

type HttpConfig struct {
	Port        int      `json:"port"`
	CorsOrigins []string `json:"cors_origins"`
	// SecureCookies should be set when the api is served over https.
	SecureCookies bool `json:"secure_cookies"`
}

type TrackerConfig struct {
	BaseURL string `json:"base_url"`
	// ShowBrowser runs chrome with a visible window, it is headless otherwise.
	ShowBrowser bool   `json:"show_browser"`
	ChromePath  string `json:"chrome_path"`
	// RemoteChrome is a devtools websocket url of an already running chrome.
	RemoteChrome string `json:"remote_chrome"`
	UserAgent    string `json:"user_agent"`

	SessionTimeoutSeconds int `json:"session_timeout_seconds"`
	LoadTimeoutSeconds    int `json:"load_timeout_seconds"`
	FieldTimeoutSeconds   int `json:"field_timeout_seconds"`
	MatchLimit            int `json:"match_limit"`
	FormLimit             int `json:"form_limit"`
}

type CacheConfig struct {
	FreshnessSeconds int `json:"freshness_seconds"`
	// MaxConcurrent caps parallel browser sessions, an explicit 0 removes the cap.
	MaxConcurrent *int `json:"max_concurrent"`
	// RedisURL enables the shared redis store, ex. redis://localhost:6379/0
	RedisURL      string `json:"redis_url"`
	RedisTTLHours int    `json:"redis_ttl_hours"`
	// SweepSchedule is a cron spec for evicting stale entries, an explicit "" disables the sweeper.
	SweepSchedule  *string `json:"sweep_schedule"`
	RetentionHours int     `json:"retention_hours"`
}

func (c CacheConfig) maxConcurrent() int {
	if c.MaxConcurrent == nil {
		return 0
	}
	return *c.MaxConcurrent
}

func (c CacheConfig) sweepSchedule() string {
	if c.SweepSchedule == nil {
		return ""
	}
	return *c.SweepSchedule
}

type Config struct {
	Http    HttpConfig          `json:"http"`
	Tracker TrackerConfig       `json:"tracker"`
	Cache   CacheConfig         `json:"cache"`
	Auth    authprovider.Config `json:"auth"`
}

func ptr[T any](v T) *T {
	return &v
}

func defaultConfig() Config {
	defaults := tracker.DefaultOptions()
	return Config{
		Http: HttpConfig{
			Port:        8000,
			CorsOrigins: []string{"*"},
		},
		Tracker: TrackerConfig{
			BaseURL:               defaults.BaseURL,
			SessionTimeoutSeconds: 120,
			LoadTimeoutSeconds:    int(defaults.LoadTimeout.Seconds()),
			FieldTimeoutSeconds:   int(defaults.FieldTimeout.Seconds()),
			MatchLimit:            defaults.MatchLimit,
			FormLimit:             defaults.FormLimit,
		},
		Cache: CacheConfig{
			FreshnessSeconds: 300,
			MaxConcurrent:    ptr(4),
			RedisTTLHours:    24,
			SweepSchedule:    ptr("@every 1h"),
			RetentionHours:   24,
		},
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (c TrackerConfig) options() tracker.Options {
	opts := tracker.DefaultOptions()
	opts.BaseURL = c.BaseURL
	opts.LoadTimeout = seconds(c.LoadTimeoutSeconds)
	opts.FieldTimeout = seconds(c.FieldTimeoutSeconds)
	opts.MatchLimit = c.MatchLimit
	opts.FormLimit = c.FormLimit
	return opts
}

func (c TrackerConfig) chrome() tracker.ChromeOptions {
	return tracker.ChromeOptions{
		Headless:  !c.ShowBrowser,
		UserAgent: c.UserAgent,
		ExecPath:  c.ChromePath,
		RemoteURL: c.RemoteChrome,
	}
}

// readConfig reads path and its .local override, filling unset fields from defaultConfig.
func readConfig(path string) (Config, error) {
	return configutil.ReadConfigWithDefaults(path, defaultConfig())
}
