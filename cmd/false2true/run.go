package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/false2true/false2true/addon"
	"github.com/false2true/false2true/cert"
	"github.com/false2true/false2true/internal/config"
	"github.com/false2true/false2true/internal/helper"
	"github.com/false2true/false2true/internal/metrics"
	"github.com/false2true/false2true/proxy"
	"github.com/false2true/false2true/rewrite"
	"github.com/false2true/false2true/version"
	"github.com/false2true/false2true/web"
)

const shutdownTimeout = 5 * time.Second

func newRunCmd() *cobra.Command {
	var configPath string
	flagCfg := config.Default()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			applyFlags(cmd.Flags(), cfg, flagCfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runProxy(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "read config from a YAML file")
	f.StringVar(&flagCfg.Addr, "addr", flagCfg.Addr, "proxy listen addr")
	f.StringVar(&flagCfg.WebAddr, "web_addr", flagCfg.WebAddr, "web monitor listen addr, empty to disable")
	f.BoolVar(&flagCfg.SslInsecure, "ssl_insecure", false, "do not verify upstream server SSL/TLS certificates")
	f.StringSliceVar(&flagCfg.IgnoreHosts, "ignore_hosts", nil, "hosts whose tunnels are relayed without interception")
	f.StringSliceVar(&flagCfg.AllowHosts, "allow_hosts", nil, "only intercept the tunnels of these hosts")
	f.StringVar(&flagCfg.CertPath, "cert_path", "", "path of generated cert files (default ~/.false2true)")
	f.IntVar(&flagCfg.Debug, "debug", 0, "debug mode: 1 - debug log, 2 - debug log with source")
	f.StringVar(&flagCfg.Upstream, "upstream", "", "upstream proxy (http, https or socks5 URL)")
	f.StringVar(&flagCfg.ProxyAuth, "proxy_auth", "", `require proxy authentication: "user:pass|user2:pass2", or "any"`)
	f.Int64Var(&flagCfg.StreamLargeBodies, "stream_large_bodies", flagCfg.StreamLargeBodies, "stream bodies of at least this many bytes without rewriting them")
	f.BoolVar(&flagCfg.DecodeResponses, "decode_responses", false, "send buffered responses to the client without content encoding")

	return cmd
}

// applyFlags copies the flags given on the command line over cfg.
func applyFlags(flags *pflag.FlagSet, cfg, flagCfg *config.Config) {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = flagCfg.Addr
		case "web_addr":
			cfg.WebAddr = flagCfg.WebAddr
		case "ssl_insecure":
			cfg.SslInsecure = flagCfg.SslInsecure
		case "ignore_hosts":
			cfg.IgnoreHosts = flagCfg.IgnoreHosts
		case "allow_hosts":
			cfg.AllowHosts = flagCfg.AllowHosts
		case "cert_path":
			cfg.CertPath = flagCfg.CertPath
		case "debug":
			cfg.Debug = flagCfg.Debug
		case "upstream":
			cfg.Upstream = flagCfg.Upstream
		case "proxy_auth":
			cfg.ProxyAuth = flagCfg.ProxyAuth
		case "stream_large_bodies":
			cfg.StreamLargeBodies = flagCfg.StreamLargeBodies
		case "decode_responses":
			cfg.DecodeResponses = flagCfg.DecodeResponses
		}
	})
}

func setupLogging(debug int, out io.Writer) {
	level := slog.LevelInfo
	if debug > 0 {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug > 1,
	})))
}

// interceptRule turns the host lists into the proxy's intercept rule, nil
// meaning every tunnel is intercepted.
func interceptRule(cfg *config.Config) func(*http.Request) bool {
	switch {
	case len(cfg.AllowHosts) > 0:
		return func(req *http.Request) bool {
			return helper.MatchHost(req.Host, cfg.AllowHosts)
		}
	case len(cfg.IgnoreHosts) > 0:
		return func(req *http.Request) bool {
			return !helper.MatchHost(req.Host, cfg.IgnoreHosts)
		}
	default:
		return nil
	}
}

// addons lists the proxy addons in event order. The decoder runs after
// False2True so the rewritten body is the one sent decoded.
func addons(cfg *config.Config, f2t *addon.False2True) []proxy.Addon {
	var list []proxy.Addon
	if cfg.Debug > 0 {
		list = append(list, &proxy.LogAddon{})
	}
	list = append(list, f2t)
	if cfg.DecodeResponses {
		list = append(list, &addon.Decoder{})
	}
	return list
}

func runProxy(ctx context.Context, cfg *config.Config, logOut io.Writer) error {
	setupLogging(cfg.Debug, logOut)

	ca, err := cert.NewSelfSignCA(cfg.CertPath)
	if err != nil {
		return err
	}
	p, err := proxy.NewProxy(cfg.ProxyConfig(), ca)
	if err != nil {
		return err
	}
	slog.Info("false2true started", "version", version.Version)

	if rule := interceptRule(cfg); rule != nil {
		p.SetShouldInterceptRule(rule)
	}
	if cfg.ProxyAuth != "" && !strings.EqualFold(cfg.ProxyAuth, "any") {
		auth, err := proxy.NewBasicAuth(cfg.ProxyAuth)
		if err != nil {
			return err
		}
		slog.Info("proxy authentication enabled")
		p.SetAuthProxy(auth.EntryAuth)
	}

	counter := rewrite.NewCounter()
	f2t := addon.NewFalse2True(rewrite.NewEngine(nil), counter)

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg, counter.Load)
	f2t.AddObserver(m)

	for _, a := range addons(cfg, f2t) {
		p.AddAddon(a)
	}

	var monitor *web.Monitor
	serverErr := make(chan error, 2)
	if cfg.WebAddr != "" {
		monitor = web.NewMonitor(cfg.WebAddr, counter.Load, m.Handler(reg))
		f2t.AddObserver(monitor)
		go func() { serverErr <- monitor.Start() }()
	}
	go func() { serverErr <- p.Start() }()

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	select {
	case <-signalCtx.Done():
		slog.Info("shutting down")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := p.Shutdown(shutdownCtx); err != nil {
		slog.Warn("proxy shutdown", "error", err)
	}
	if monitor != nil {
		if err := monitor.Shutdown(shutdownCtx); err != nil {
			slog.Warn("web monitor shutdown", "error", err)
		}
	}
	f2t.Done()

	return runErr
}
