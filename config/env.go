package config

import "os"

// EnvOr returns the value of the named environment variable, or fallback
// if it is unset or empty. This is the sole environment-input surface
// named in spec §6 (API keys, base URL overrides); loading a .env file
// into the process environment is an external collaborator's job, not the
// core's (spec §1 Non-goals).
func EnvOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
