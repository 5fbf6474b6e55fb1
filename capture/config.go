package capture

import "github.com/hazyhaar/sitecap/capture/internal/config"

// Config is the service configuration.
type Config = config.Config

// LoadConfig reads CONFIG_FILE (when set) and the environment through getenv.
func LoadConfig(getenv func(string) string) (*Config, error) {
	return config.Load(getenv)
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return config.Default()
}
