package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// overlayEnv applies environment variables on top of c. Unset variables leave
// the current value untouched.
func (c *Config) overlayEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		c.Listen.Port = v
	}
	if v := getenv("MCP_HTTP"); v != "" {
		c.Listen.MCPHTTP = parseBool(v)
	}

	if v := getenv("CHROME_PATH"); v != "" {
		c.Browser.ExecutablePath = v
	}
	if v := getenv("CHROME_FLAGS"); v != "" {
		c.Browser.Flags = splitList(v)
	}
	if v := getenv("VERBOSE"); v != "" {
		c.Browser.Verbose = parseBool(v)
	}
	if v := getenv("STEALTH"); v != "" {
		c.Browser.Stealth = parseBool(v)
	}
	if v := getenv("BLOCK_RESOURCES"); v != "" {
		c.Browser.BlockResources = splitList(v)
	}
	if v := getenv("KEEPALIVE_MS"); v != "" {
		d, err := parseMillis("KEEPALIVE_MS", v)
		if err != nil {
			return err
		}
		c.Browser.KeepAlive = d
	}

	if v := getenv("TARGET_URL"); v != "" {
		c.Target.URL = v
	}
	if v := getenv("CONTROL_SELECTOR"); v != "" {
		c.Target.ControlSelector = v
	}
	if v := getenv("RESPONSE_MARKER"); v != "" {
		c.Target.ResponseMarker = v
	}
	if v := getenv("ALLOW_PRIVATE_TARGET"); v != "" {
		c.Target.AllowPrivate = parseBool(v)
	}
	if v := getenv("COOKIE_DOMAINS"); v != "" {
		c.Target.CookieDomains = splitList(v)
	}

	if v := getenv("MAX_WAIT_MS"); v != "" {
		d, err := parseMillis("MAX_WAIT_MS", v)
		if err != nil {
			return err
		}
		c.Capture.MaxWait = d
	}
	return nil
}

func parseMillis(key, v string) (time.Duration, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive integer, got %q", key, v)
	}
	return time.Duration(n) * time.Millisecond, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
