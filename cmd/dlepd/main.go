// Command dlepd runs the DLEP (RFC 8175) session daemon: one interface
// controller per configured interface, a shared extension registry and L2
// store, and the remote-control/HTTP-bridge/LAN-import peripherals.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/oonf-go/godlep/internal/config"
	"github.com/oonf-go/godlep/internal/dlep"
	"github.com/oonf-go/godlep/internal/httpbridge"
	"github.com/oonf-go/godlep/internal/iface"
	"github.com/oonf-go/godlep/internal/iface/ifmon"
	"github.com/oonf-go/godlep/internal/l2"
	"github.com/oonf-go/godlep/internal/lanimport"
	"github.com/oonf-go/godlep/internal/metrics"
	"github.com/oonf-go/godlep/internal/remotecontrol"
	appversion "github.com/oonf-go/godlep/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()))
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLogger(cfg.Log, logLevel)

	logger.Info("dlepd starting",
		slog.String("version", appversion.Version),
		slog.Int("interfaces", len(cfg.Interfaces)))

	if err := runDaemon(cfg, logger, logLevel, *configPath); err != nil {
		logger.Error("dlepd exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("dlepd stopped")
	return 0
}

func runDaemon(cfg *config.Config, logger *slog.Logger, logLevel *slog.LevelVar, configPath string) error {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	store, closeStore, err := newL2Store(context.Background(), cfg, logger)
	if err != nil {
		return fmt.Errorf("create l2 store: %w", err)
	}
	defer closeStore()

	mediator := l2.NewMediator(store, logger)

	extRegistry := dlep.NewRegistry()
	extRegistry.Register(dlep.Baseline)
	extRegistry.Register(dlep.RadioStats)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	interfaces, err := buildInterfaces(cfg, extRegistry, mediator, logger)
	if err != nil {
		return fmt.Errorf("build interfaces: %w", err)
	}
	for _, ifc := range interfaces {
		g.Go(func() error {
			return ifc.Run(gCtx)
		})
	}

	g.Go(func() error {
		sampleMetrics(gCtx, interfaces, collector)
		return nil
	})

	ccRegistry := remotecontrol.NewRegistry()
	remotecontrol.RegisterSessionCommands(ccRegistry, func() []remotecontrol.SessionSource {
		sources := make([]remotecontrol.SessionSource, len(interfaces))
		for i, ifc := range interfaces {
			sources[i] = ifc
		}
		return sources
	})

	if cfg.RemoteControl.Addr != "" {
		rcServer := remotecontrol.NewServer(cfg.RemoteControl.Addr, ccRegistry, logger)
		g.Go(func() error {
			return rcServer.Run(gCtx)
		})
	}

	metricsSrv := newMetricsServer(cfg.Metrics, reg)
	servers := []*http.Server{metricsSrv}
	g.Go(func() error {
		return listenAndServe(gCtx, metricsSrv)
	})

	if cfg.HTTPBridge.Addr != "" {
		bridgeSrv := newHTTPBridgeServer(cfg.HTTPBridge.Addr, ccRegistry, logger)
		servers = append(servers, bridgeSrv)
		g.Go(func() error {
			return listenAndServe(gCtx, bridgeSrv)
		})
	}

	if cfg.LANImport.Enabled {
		importer, closeImporter, err := buildImporter(cfg, mediator, logger)
		if err != nil {
			return fmt.Errorf("build lan importer: %w", err)
		}
		defer closeImporter()
		g.Go(func() error {
			return importer.Run(gCtx)
		})
	}

	startSIGHUP(gCtx, g, configPath, logLevel, logger)

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(ccRegistry, servers...)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run daemon: %w", err)
	}
	return nil
}

// metricsSampleInterval is how often sampleMetrics snapshots live session
// and neighbor counts into the Prometheus gauges. The interface controller
// itself never calls into metrics directly, keeping internal/dlep and
// internal/iface free of a metrics dependency.
const metricsSampleInterval = 5 * time.Second

func sampleMetrics(ctx context.Context, interfaces []*iface.Interface, collector *metrics.Collector) {
	ticker := time.NewTicker(metricsSampleInterval)
	defer ticker.Stop()

	seen := make(map[string]int)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := make(map[string]int, len(interfaces))
			for _, ifc := range interfaces {
				sessions := ifc.Sessions()
				current[ifc.Name()] = len(sessions)

				var neighborsUp float64
				for _, s := range sessions {
					for _, n := range s.Neighbors().All() {
						if n.State == dlep.NeighborUpAcked {
							neighborsUp++
						}
					}
				}
				collector.SetNeighborsUp(ifc.Name(), neighborsUp)
			}
			for name, count := range current {
				if delta := count - seen[name]; delta > 0 {
					for i := 0; i < delta; i++ {
						collector.RegisterSession(name, "")
					}
				} else if delta < 0 {
					for i := 0; i < -delta; i++ {
						collector.UnregisterSession(name, "")
					}
				}
			}
			seen = current
		}
	}
}

func buildInterfaces(cfg *config.Config, registry *dlep.Registry, l2sink dlep.L2Sink, logger *slog.Logger) ([]*iface.Interface, error) {
	interfaces := make([]*iface.Interface, 0, len(cfg.Interfaces))
	for _, ic := range cfg.Interfaces {
		icfg, err := interfaceConfigFrom(ic, newLinkMonitor(logger))
		if err != nil {
			return nil, fmt.Errorf("interface %s: %w", ic.Name, err)
		}

		ifc, err := iface.NewInterface(icfg, registry, l2sink, logger)
		if err != nil {
			return nil, fmt.Errorf("create interface %s: %w", ic.Name, err)
		}
		interfaces = append(interfaces, ifc)
	}
	return interfaces, nil
}

// newLinkMonitor creates a fresh interface monitor, one per Interface: each
// Interface.Run calls Monitor.Run and Monitor.Close exactly once, so a
// shared Monitor instance across interfaces is not safe.
func newLinkMonitor(logger *slog.Logger) ifmon.Monitor {
	nm, err := ifmon.NewNetworkManagerMonitor(logger)
	if err != nil {
		logger.Warn("NetworkManager interface monitor unavailable, falling back to stub",
			slog.String("error", err.Error()))
		return ifmon.NewStubMonitor(logger)
	}
	return nm
}

// interfaceConfigFrom fills a declarative interfaces[] entry's zero-valued
// fields from the iface package's own Default* constants, since koanf does
// not merge per-field defaults into individual list elements.
func interfaceConfigFrom(ic config.InterfaceConfig, monitor ifmon.Monitor) (iface.Config, error) {
	defaults := iface.DefaultConfig()

	bindAddr, err := ic.BindAddrValue()
	if err != nil {
		return iface.Config{}, err
	}
	mcastGroup, err := ic.MulticastGroupValue()
	if err != nil {
		return iface.Config{}, err
	}
	if ic.MulticastGroup == "" {
		mcastGroup = defaults.MulticastGroup
	}

	role := dlep.RoleRadio
	if ic.Role == "router" {
		role = dlep.RoleRouter
	}

	discoveryPort := ic.DiscoveryPort
	if discoveryPort == 0 {
		discoveryPort = defaults.DiscoveryPort
	}
	discoveryInterval := ic.DiscoveryInterval
	if discoveryInterval == 0 {
		discoveryInterval = defaults.DiscoveryInterval
	}
	heartbeatInterval := ic.HeartbeatInterval
	if heartbeatInterval == 0 {
		heartbeatInterval = defaults.HeartbeatInterval
	}

	return iface.Config{
		Name:              ic.Name,
		Role:              role,
		BindAddr:          bindAddr,
		MulticastGroup:    mcastGroup,
		DiscoveryPort:     discoveryPort,
		TCPPort:           ic.TCPPort,
		DiscoveryInterval: discoveryInterval,
		HeartbeatInterval: heartbeatInterval,
		SingleSession:     ic.SingleSession,
		PeerType:          ic.PeerType,
		LocalExtensionIDs: ic.LocalExtensionIDs,
		MaxOutboundLen:    defaults.MaxOutboundLen,
		Monitor:           monitor,
	}, nil
}

func newL2Store(ctx context.Context, cfg *config.Config, logger *slog.Logger) (l2.Store, func(), error) {
	if cfg.L2.OVSDBEndpoint == "" {
		store := l2.NewMemStore()
		return store, func() { _ = store.Close() }, nil
	}

	store, err := l2.NewOVSDBStore(ctx, l2.OVSDBConfig{Endpoint: cfg.L2.OVSDBEndpoint}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect ovsdb at %s: %w", cfg.L2.OVSDBEndpoint, err)
	}
	return store, func() { _ = store.Close() }, nil
}

func buildImporter(cfg *config.Config, sink lanimport.Sink, logger *slog.Logger) (*lanimport.Importer, func(), error) {
	source, err := lanimport.NewGoBGPSource(lanimport.GoBGPSourceConfig{Addr: cfg.LANImport.GoBGPAddr}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create gobgp route source: %w", err)
	}

	entries := make([]lanimport.Entry, 0, len(cfg.LANImport.Entries))
	for _, e := range cfg.LANImport.Entries {
		entries = append(entries, entryFromConfig(e))
	}

	importer := lanimport.NewImporter(source, entries, sink, logger)
	return importer, func() { _ = source.Close() }, nil
}

func entryFromConfig(e config.LANImportEntryConfig) lanimport.Entry {
	entry := lanimport.Entry{
		Name:         e.Name,
		Domain:       e.Domain,
		PrefixLength: e.PrefixLength,
		IfName:       e.IfName,
		Table:        e.Table,
		Protocol:     e.Protocol,
		Distance:     e.Distance,
	}
	if entry.PrefixLength == 0 {
		entry.PrefixLength = -1
	}
	for _, p := range e.AllowedPrefixes {
		if prefix, err := netip.ParsePrefix(p); err == nil {
			entry.Allowed = append(entry.Allowed, prefix)
		}
	}
	return entry
}

func newHTTPBridgeServer(addr string, registry *remotecontrol.Registry, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           httpbridge.NewHandler(registry, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func listenAndServe(ctx context.Context, srv *http.Server) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", srv.Addr, err)
	}
	return nil
}

func gracefulShutdown(registry *remotecontrol.Registry, servers ...*http.Server) error {
	registry.StopAllContinuous()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	for _, srv := range servers {
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			err = errors.Join(err, shutdownErr)
		}
	}
	return err
}

func startSIGHUP(ctx context.Context, g *errgroup.Group, configPath string, logLevel *slog.LevelVar, logger *slog.Logger) {
	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	g.Go(func() error {
		defer signal.Stop(sigHUP)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-sigHUP:
				reloadLogLevel(configPath, logLevel, logger)
			}
		}
	})
}

// reloadLogLevel reloads configuration on SIGHUP and applies its log level.
// Interface topology changes require a daemon restart; only the dynamic
// log level is reconciled live.
func reloadLogLevel(configPath string, logLevel *slog.LevelVar, logger *slog.Logger) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		logger.Error("failed to reload configuration, keeping current settings",
			slog.String("error", err.Error()))
		return
	}
	newLevel := config.ParseLogLevel(cfg.Log.Level)
	logLevel.Set(newLevel)
	logger.Info("configuration reloaded", slog.String("log_level", newLevel.String()))
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

func newLogger(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
