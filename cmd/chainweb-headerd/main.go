// Command chainweb-headerd serves a per-chain block header store (spec.md):
// a content-addressed header DAG with O(log h) ancestor lookup, and fork
// reconciliation for returning abandoned transactions to a mempool. Serves
// /status, /metrics (Prometheus, when --metrics is set) and /metrics/history
// (percentile queries over recent metric history).
//
// Usage:
//
//	chainweb-headerd [flags]
//	chainweb-headerd leaves [flags] <chainID>
//	chainweb-headerd insert [flags] <chainID> < header.json
//
// Flags:
//
//	--datadir      Data directory path (default: ~/.chainweb-headerd)
//	--chains       Comma-separated chain ids to serve (default: 0)
//	--forkdepth    Maximum reconciliation walk depth (default: 1000000)
//	--verbosity    Log level 0-5 (default: 3)
//	--metrics      Enable the Prometheus metrics exporter (default: false)
//	--metrics.addr Metrics HTTP listen address (default: 127.0.0.1:9100)
//	--version      Print version and exit
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainweb-go/chainweb/cas"
	"github.com/chainweb-go/chainweb/config"
	"github.com/chainweb-go/chainweb/log"
	"github.com/chainweb-go/chainweb/metrics"
	"github.com/chainweb-go/chainweb/multichain"
	"github.com/chainweb-go/chainweb/refdb"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
// A first positional argument of "leaves", "insert" or "reconcile" runs a
// one-shot subcommand against an already-initialized datadir instead of
// starting the long-lived server.
func run(args []string) int {
	if len(args) > 0 {
		switch args[0] {
		case "leaves", "insert", "reconcile":
			cfg, exit, code := parseFlags(args[1:])
			if exit {
				return code
			}
			fs := newFlagSet(&cfg)
			fs.Bool("version", false, "print version and exit")
			fs.Parse(args[1:])
			return runSubcommand(args[0], fs.Args(), cfg)
		}
	}

	cfg, exit, code := parseFlags(args)
	if exit {
		return code
	}

	cfg.LogLevel = config.VerbosityToLogLevel(cfg.Verbosity)
	logger := log.New(levelFromString(cfg.LogLevel))
	log.SetDefault(logger)
	l := logger.Module("main")

	l.Info("chainweb-headerd starting",
		"version", version,
		"datadir", cfg.DataDir,
		"chains", cfg.ChainIDs,
		"forkdepth", cfg.ForkDepthLimit,
		"verbosity", cfg.Verbosity,
		"metrics", cfg.Metrics,
	)

	if err := cfg.Validate(); err != nil {
		l.Error("invalid configuration", "err", err)
		return 1
	}
	if err := cfg.InitDataDir(); err != nil {
		l.Error("failed to initialize datadir", "err", err)
		return 1
	}

	registry, err := multichain.Open(&cfg,
		func(chainID uint32) (cas.Store, error) {
			return cas.NewDirStore(cfg.ChainDataDir(chainID))
		},
		func(chainID uint32) (refdb.Index, error) {
			return refdb.NewDirIndex(cfg.ChainDataDir(chainID) + "/refs")
		},
	)
	if err != nil {
		l.Error("failed to open header stores", "err", err)
		return 1
	}

	mon := startMonitoring(registry, l)

	mux := http.NewServeMux()
	mux.Handle("/status", statusHandler(registry, mon))
	mux.Handle("/metrics/history", mon.historyHandler())
	if cfg.Metrics {
		exporter := metrics.NewPrometheusExporter(metrics.DefaultRegistry, metrics.DefaultPrometheusConfig())
		mux.Handle("/metrics", exporter.Handler())
	}
	statusSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		l.Info("status/metrics server listening", "addr", cfg.MetricsAddr, "metrics_enabled", cfg.Metrics)
		if err := statusSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Error("status server error", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	l.Info("received signal, shutting down", "signal", sig.String())

	statusSrv.Close()
	mon.stop()
	if err := registry.Close(); err != nil {
		l.Error("error during shutdown", "err", err)
		return 1
	}

	l.Info("shutdown complete")
	return 0
}

// chainStatus is the JSON shape of one chain's entry in the /status response.
type chainStatus struct {
	ChainID uint32 `json:"chainId"`
}

// statusResponse is the JSON shape served at /status.
type statusResponse struct {
	Version        string        `json:"version"`
	Chains         []chainStatus `json:"chains"`
	UptimeSeconds  float64       `json:"uptimeSeconds"`
	Goroutines     int           `json:"goroutines"`
	CPUPercent     float64       `json:"cpuPercent"`
	HeapAllocBytes uint64        `json:"heapAllocBytes"`
	TotalHeaders   uint64        `json:"totalHeaders"`
	InsertRate1m   float64       `json:"insertRate1m"`
}

// statusHandler serves a JSON summary of the running daemon: version, the
// configured chain ids, and a handful of process/system metrics (uptime,
// goroutines, CPU, memory, insert rate). Kept to read-only observability
// per spec.md §1 -- this module has no RPC surface, so /status exists only
// for operators and scripts to confirm the daemon is up, which chains it
// serves, and how it's behaving.
func statusHandler(registry *multichain.Registry, mon *monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mon.sys.Collect()
		resp := statusResponse{
			Version:        version,
			UptimeSeconds:  mon.sys.UptimeSeconds(),
			Goroutines:     mon.sys.GoRoutineCount(),
			CPUPercent:     mon.sys.CPUUsagePercent(),
			HeapAllocBytes: mon.sys.MemoryUsage().HeapAlloc,
			TotalHeaders:   mon.sys.TotalHeaders(),
			InsertRate1m:   metrics.InsertRate.Rate1(),
		}
		for _, id := range registry.ChainIDs() {
			resp.Chains = append(resp.Chains, chainStatus{ChainID: id})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

// parseFlags parses CLI arguments into a Config. Returns the config, whether
// the caller should exit immediately, and the exit code.
func parseFlags(args []string) (config.Config, bool, int) {
	cfg := config.DefaultConfig()
	fs := newFlagSet(&cfg)

	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cfg, true, 2
	}

	if *showVersion {
		fmt.Printf("chainweb-headerd %s (commit %s)\n", version, commit)
		return cfg, true, 0
	}

	return cfg, false, 0
}

// newFlagSet creates a flag.FlagSet that binds all CLI flags to the given
// Config. The FlagSet uses ContinueOnError so callers control the error
// handling behavior.
func newFlagSet(cfg *config.Config) *flagSet {
	fs := newCustomFlagSet("chainweb-headerd")
	fs.StringVar(&cfg.DataDir, "datadir", cfg.DataDir, "data directory path")
	fs.Uint32SliceVar(&cfg.ChainIDs, "chains", cfg.ChainIDs, "comma-separated chain ids to serve")
	fs.IntVar(&cfg.ForkDepthLimit, "forkdepth", cfg.ForkDepthLimit, "maximum reconciliation walk depth")
	fs.Uint64Var(&cfg.SpectrumRecentsWindow, "spectrum.recents", cfg.SpectrumRecentsWindow, "spectrum recents window size")
	fs.Uint64Var(&cfg.SpectrumPowerBase, "spectrum.powerbase", cfg.SpectrumPowerBase, "spectrum power-of-two quantization base")
	fs.IntVar(&cfg.Verbosity, "verbosity", cfg.Verbosity, "log level 0-5 (0-1=error, 2=warn, 3=info, 4-5=debug)")
	fs.BoolVar(&cfg.Metrics, "metrics", cfg.Metrics, "enable the Prometheus metrics exporter")
	fs.StringVar(&cfg.MetricsAddr, "metrics.addr", cfg.MetricsAddr, "metrics HTTP listen address")
	return fs
}
