// Package main implements ringserverd, a packet ring-buffer streaming
// server: bounded in-memory ring, TCP/UNIX listeners with IP-policy
// admission, a supervisor tick loop that reaps and respawns units, and an
// HTTP status/metrics surface.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/ringwire/streamserver/admin"
	"github.com/ringwire/streamserver/config"
	"github.com/ringwire/streamserver/listener"
	"github.com/ringwire/streamserver/metric"
	"github.com/ringwire/streamserver/natsclient"
	"github.com/ringwire/streamserver/protocol"
	"github.com/ringwire/streamserver/protocol/lineproto"
	"github.com/ringwire/streamserver/protocol/wsrelay"
	"github.com/ringwire/streamserver/registry"
	"github.com/ringwire/streamserver/ring"
	"github.com/ringwire/streamserver/signaldispatch"
	"github.com/ringwire/streamserver/supervisor"
	"github.com/ringwire/streamserver/transferlog"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "ringserverd"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	exitCode, err := run()
	if err != nil {
		slog.Error("ringserverd failed", "error", err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}

func run() (int, error) {
	cli := parseFlags()

	if cli.ShowVersion {
		fmt.Printf("%s %s (%s)\n", appName, Version, BuildTime)
		return 0, nil
	}
	if cli.ShowHelp {
		printDetailedHelp()
		return 0, nil
	}

	logger := setupLogger(cli.LogLevel, cli.LogFormat)
	slog.SetDefault(logger)

	loader := config.NewLoader()
	cfg, err := loader.Load(cli.ConfigPath)
	if err != nil {
		return 1, fmt.Errorf("load config: %w", err)
	}
	config.ApplyOverrides(cfg, config.Overrides{
		RingDir:         cli.RingDir,
		MaxClients:      cli.MaxClients,
		MaxClientsPerIP: cli.MaxClientsPerIP,
		ClientTimeout:   cli.ClientTimeout,
		ServerID:        cli.ServerID,
		AdminAddr:       cli.AdminAddr,
	})
	if err := cfg.Validate(); err != nil {
		return 1, fmt.Errorf("invalid config: %w", err)
	}

	var store *config.Store
	if cli.ConfigPath != "" {
		store = config.NewFileStoreFromConfig(cli.ConfigPath, loader, cfg, logger)
	} else {
		store = config.NewStore(cfg, logger)
	}

	metricsRegistry := metric.NewMetricsRegistry()

	r, err := openRing(cfg.Ring, metricsRegistry)
	if err != nil {
		return 1, fmt.Errorf("ring init: %w", err)
	}

	reg := registry.New()

	var transferWriter *transferlog.Writer
	if cfg.TransferLog.BaseDir != "" {
		window := transferlog.NewWindow(cfg.TransferLog.BaseDir, cfg.TransferLog.Prefix,
			cfg.TransferLog.IntervalHours, cfg.TransferLog.EnableTX, cfg.TransferLog.EnableRX, time.Now())
		transferWriter, err = transferlog.NewWriter(window)
		if err != nil {
			return 1, fmt.Errorf("transfer log init: %w", err)
		}
		defer transferWriter.Close()
	}

	handler := selectHandler(r, cfg.Endpoints)

	sup := supervisor.New(reg, r, handler, metricsRegistry, supervisor.DefaultConfig())
	sup.TransferLog = transferWriter
	sup.ConfigReload = store.Reload

	for _, ep := range cfg.Endpoints {
		spec, specErr := buildListenerSpec(ep, cfg)
		if specErr != nil {
			return 1, fmt.Errorf("endpoint %s: %w", ep.Port, specErr)
		}
		sup.AddListener(spec)
	}

	adminServer := admin.NewServer(reg, r, metricsRegistry, admin.Config{
		Addr:        cfg.Admin.Addr,
		MetricsPath: cfg.Admin.MetricsPath,
		EnablePprof: cfg.Admin.EnablePprof,
		TLS:         cfg.Admin.TLS,
	})
	adminServer.Reload = func(body []byte) error {
		logger.Info("reload request accepted", "bytes", len(body))
		return nil
	}

	scanNATS := connectScannerEgress(cfg.ScannerNATS, logger)
	if scanNATS != nil {
		defer scanNATS.Close(context.Background())
	}
	registerScanners(sup, cfg.Scanners, scanNATS, logger)

	dispatcher := signaldispatch.New(func() string {
		return fmt.Sprintf("server_id=%s clients=%d servers=%d ring_max_offset=%v",
			cfg.Identity.ServerID, reg.ClientUnits.Len(), reg.ServerUnits.Len(), r.MaxOffset())
	}, logger)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	go dispatcher.Run(rootCtx)
	go watchShutdown(rootCtx, cancelRoot, dispatcher)

	go func() {
		if startErr := adminServer.Start(rootCtx); startErr != nil {
			logger.Error("admin server exited", "error", startErr)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = adminServer.Shutdown(shutdownCtx)
	}()

	logger.Info("ringserverd started", "server_id", cfg.Identity.ServerID, "listeners", len(cfg.Endpoints))
	exitCode, runErr := sup.Run(rootCtx)
	if runErr != nil {
		return 1, runErr
	}
	logger.Info("ringserverd shutdown complete", "exit_code", exitCode)
	return exitCode, nil
}

// watchShutdown polls the signal dispatcher's shutdown flag and cancels the
// supervisor's context the first time it observes it set.
func watchShutdown(ctx context.Context, cancel context.CancelFunc, d *signaldispatch.Dispatcher) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d.ShutdownRequested() {
				cancel()
				return
			}
		}
	}
}

// openRing opens the packet ring, routing through the auto-recovery
// protocol whenever a ring directory is configured so a corrupt or
// old-version status file on disk triggers move-or-delete recovery instead
// of silently starting from an empty buffer. With no directory configured
// the ring is purely in-memory and auto-recovery has nothing to check.
func openRing(cfg config.RingConfig, metricsRegistry *metric.MetricsRegistry) (*ring.Ring, error) {
	opts := ring.WithMetrics(metricsRegistry, "ring")
	if cfg.Dir == "" {
		return ring.New(cfg.Capacity(), opts)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ring dir: %w", err)
	}
	return ring.Init(cfg.Dir, cfg.Capacity(), cfg.PacketSize, cfg.MemoryMap, cfg.Volatile, int(cfg.AutoRecovery), opts)
}

// selectHandler picks the reference protocol handler for the endpoint set:
// wsrelay when any endpoint advertises HTTP, lineproto otherwise. DataLink/
// SeedLink parsing stays out of scope; lineproto stands in as the
// pluggable handler every other endpoint dispatches to.
func selectHandler(r *ring.Ring, endpoints []config.EndpointConfig) protocol.Handler {
	for _, ep := range endpoints {
		for _, p := range ep.Protocols {
			if strings.EqualFold(p, "http") {
				return wsrelay.New(r)
			}
		}
	}
	return lineproto.New(r)
}

func buildListenerSpec(ep config.EndpointConfig, cfg *config.Config) (supervisor.ListenerSpec, error) {
	var protocols listener.ProtocolSet
	for _, p := range ep.Protocols {
		switch strings.ToLower(p) {
		case "datalink":
			protocols |= listener.ProtoDataLink
		case "seedlink":
			protocols |= listener.ProtoSeedLink
		case "http":
			protocols |= listener.ProtoHTTP
		}
	}

	var family listener.Family
	for _, f := range ep.Families {
		switch strings.ToLower(f) {
		case "ipv4":
			family |= listener.FamilyIPv4
		case "ipv6":
			family |= listener.FamilyIPv6
		case "unix":
			family |= listener.FamilyUnix
		}
	}
	if family == 0 {
		family = listener.FamilyIPv4
	}

	endpointCfg := listener.EndpointConfig{
		Port:      ep.Port,
		Protocols: protocols,
		Family:    family,
		TLS:       ep.TLS,
	}
	if ep.TLS {
		endpointCfg.TLSCertFile = cfg.TLS.CertFile
		endpointCfg.TLSKeyFile = cfg.TLS.KeyFile
		endpointCfg.VerifyClient = cfg.TLS.VerifyClientCert
		endpointCfg.TLSClientCAFile = cfg.TLS.ClientCAFile
	}

	policy, err := cfg.Policy.Build()
	if err != nil {
		return supervisor.ListenerSpec{}, err
	}

	return supervisor.ListenerSpec{
		Config: endpointCfg,
		Admission: listener.AdmissionConfig{
			Policy:          policy,
			MaxClients:      cfg.Client.MaxClients,
			MaxClientsPerIP: cfg.Client.MaxClientsPerIP,
		},
	}, nil
}

// connectScannerEgress dials the NATS server used by the directory-scanner
// unit's discovered-file publish path. A blank URL, or a dial failure,
// leaves scanning purely local: ScanJob.publish no-ops when its
// *natsclient.Client is nil.
func connectScannerEgress(cfg config.ScannerEgressConfig, logger *slog.Logger) *natsclient.Client {
	if cfg.URL == "" {
		return nil
	}
	nc, err := natsclient.NewClient(cfg.URL)
	if err != nil {
		logger.Warn("scanner NATS egress unavailable, scanning will run without publish", "error", err)
		return nil
	}
	return nc
}

// scanInterval is the pause between directory-scanner passes. Not exposed
// as a config field; the reference server's MSeedScan thread loops on its
// own fixed cadence too.
const scanInterval = 30 * time.Second

// registerScanners builds a ScanJob per configured directory scanner and
// registers each with the supervisor as a DirectoryScanner ServerUnit, so
// it's spawned, respawned on crash, and drained on shutdown exactly like a
// listener endpoint.
func registerScanners(sup *supervisor.Supervisor, scanners []config.ScannerConfig, nc *natsclient.Client, logger *slog.Logger) {
	for _, sc := range scanners {
		job, err := registry.NewScanJob(registry.ScanJobConfig{
			Path:             sc.Path,
			StateFile:        sc.StateFile,
			MatchPattern:     sc.Match,
			RejectPattern:    sc.Reject,
			InitCurrentState: sc.InitCurrentState,
		}, nc, 4)
		if err != nil {
			logger.Error("scanner init failed", "path", sc.Path, "error", err)
			continue
		}
		sup.AddScanner(job, sc.Path, scanInterval)
	}
}
