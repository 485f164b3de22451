package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
)

type ValidationError struct {
	Problems []string
}

func (v *ValidationError) Add(format string, args ...any) {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%d validation error(s): %s", len(v.Problems), strings.Join(v.Problems, "; "))
}

// Validate reports every invalid setting at once as a *ValidationError.
func (c *Config) Validate() error {
	v := &ValidationError{}

	if err := validateListen(c.Addr); err != nil {
		v.Add("addr invalid: %v", err)
	}
	if c.WebAddr != "" {
		if err := validateListen(c.WebAddr); err != nil {
			v.Add("web_addr invalid: %v", err)
		}
	}
	if len(c.IgnoreHosts) > 0 && len(c.AllowHosts) > 0 {
		v.Add("ignore_hosts and allow_hosts are mutually exclusive")
	}
	if c.Debug < 0 || c.Debug > 2 {
		v.Add("debug must be 0, 1 or 2")
	}
	if c.Upstream != "" {
		if err := validateUpstream(c.Upstream); err != nil {
			v.Add("upstream invalid: %v", err)
		}
	}
	if c.ProxyAuth != "" && !strings.EqualFold(c.ProxyAuth, "any") {
		for _, e := range strings.Split(c.ProxyAuth, "|") {
			if user, _, ok := strings.Cut(e, ":"); !ok || user == "" {
				v.Add("proxy_auth entry %q must be user:pass", e)
			}
		}
	}
	if c.StreamLargeBodies <= 0 {
		v.Add("stream_large_bodies must be > 0")
	}

	if len(v.Problems) > 0 {
		sort.Strings(v.Problems)
		return v
	}
	return nil
}

func validateListen(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("address is required")
	}
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return err
	}
	return nil
}

func validateUpstream(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return fmt.Errorf("scheme must be http, https or socks5, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}
