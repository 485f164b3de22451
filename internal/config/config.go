// Package config holds the settings of the false2true command.
package config

import "github.com/false2true/false2true/proxy"

// Config is the file format of false2true. Command line flags override the
// values read from a file.
type Config struct {
	Addr              string   `yaml:"addr"`
	WebAddr           string   `yaml:"web_addr"`
	SslInsecure       bool     `yaml:"ssl_insecure"`
	IgnoreHosts       []string `yaml:"ignore_hosts"`
	AllowHosts        []string `yaml:"allow_hosts"`
	CertPath          string   `yaml:"cert_path"`
	Debug             int      `yaml:"debug"`
	Upstream          string   `yaml:"upstream"`
	ProxyAuth         string   `yaml:"proxy_auth"`
	StreamLargeBodies int64    `yaml:"stream_large_bodies"`
	DecodeResponses   bool     `yaml:"decode_responses"`
}

// Default returns the settings used when neither a file nor a flag sets a
// value.
func Default() *Config {
	return &Config{
		Addr:              ":8080",
		WebAddr:           ":8081",
		StreamLargeBodies: proxy.DefaultStreamLargeBodies,
	}
}

// ProxyConfig returns the proxy settings of c.
func (c *Config) ProxyConfig() *proxy.Config {
	return &proxy.Config{
		Addr:              c.Addr,
		StreamLargeBodies: c.StreamLargeBodies,
		SslInsecure:       c.SslInsecure,
		Upstream:          c.Upstream,
	}
}
