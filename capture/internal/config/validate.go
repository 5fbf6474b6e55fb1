package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUnsafeScheme is returned when the target URL is not http or https.
var ErrUnsafeScheme = errors.New("config: target URL must use http or https")

// ErrPrivateTarget is returned when the target resolves to a private or
// loopback address and AllowPrivate is off.
var ErrPrivateTarget = errors.New("config: target URL points at a private or loopback address")

// lookupHost is swapped in tests.
var lookupHost = net.DefaultResolver.LookupHost

var privateRanges = mustCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"100.64.0.0/10",
	"169.254.0.0/16",
	"fc00::/7",
)

// Validate checks the effective configuration.
func (c *Config) Validate() error {
	if n, err := strconv.Atoi(c.Listen.Port); err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("config: invalid port %q", c.Listen.Port)
	}
	if strings.TrimSpace(c.Target.ControlSelector) == "" {
		return errors.New("config: control selector must not be empty")
	}
	if strings.TrimSpace(c.Target.ResponseMarker) == "" {
		return errors.New("config: response marker must not be empty")
	}
	return c.validateTarget()
}

func (c *Config) validateTarget() error {
	u, err := url.Parse(c.Target.URL)
	if err != nil {
		return fmt.Errorf("config: invalid target URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsafeScheme
	}
	host := u.Hostname()
	if host == "" {
		return errors.New("config: target URL has no host")
	}
	if c.Target.AllowPrivate {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: %s", ErrPrivateTarget, host)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	addrs, err := lookupHost(ctx, host)
	if err != nil {
		// Unresolvable now; navigation reports it per run.
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return fmt.Errorf("%w: %s resolves to %s", ErrPrivateTarget, host, a)
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, n := range privateRanges {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func mustCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}
