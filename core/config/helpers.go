package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Summary returns the non-secret settings currently loaded in memory.
func Summary() map[string]any {
	if Global == nil {
		return map[string]any{}
	}
	return map[string]any{
		"app_version":                     Global.App.Version,
		"app_debug":                       Global.App.Debug,
		"app_require_auth":                Global.App.RequireAuth,
		"db_driver":                       Global.Database.Driver,
		"valkey_enabled":                  Global.Valkey.Enabled,
		"whatsapp_api_version":            Global.Whatsapp.APIVersion,
		"whatsapp_http_timeout":           Global.Whatsapp.HTTPTimeout.String(),
		"ws_sweep_interval":               Global.Realtime.SweepInterval.String(),
		"ws_idle_timeout":                 Global.Realtime.IdleTimeout.String(),
		"conversation_inactivity_timeout": Global.Conversation.InactivityTimeout.String(),
	}
}

// Helpers
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		vLower := strings.ToLower(v)
		return vLower == "1" || vLower == "true" || vLower == "yes" || vLower == "on"
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s", "5m") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
