// Command pilot flies the tactical agent through a headless engagement,
// recording every tick to the configured storage backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hddf2/pilot/internal/config"
	"github.com/hddf2/pilot/internal/influx"
	"github.com/hddf2/pilot/internal/kinematics"
	"github.com/hddf2/pilot/internal/logging"
	intOtel "github.com/hddf2/pilot/internal/otel"
	"github.com/hddf2/pilot/internal/recorder"
	"github.com/hddf2/pilot/internal/storage"
	"github.com/hddf2/pilot/internal/tactics"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	AppName string = "pilot"
)

// Exit codes.
const (
	exitOK      = 0
	exitConfig  = 1
	exitRuntime = 2
)

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// LogFile is the rotating session log
	LogFile io.WriteCloser

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// InfluxManager writes per-tick points, nil when disabled
	InfluxManager *influx.Manager

	SessionStartTime time.Time = time.Now()
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	configDir := fs.String("config-dir", ".", "directory containing "+config.FileName)
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("logs-dir", "", "directory for log files")
	fs.Int("ticks", 0, "number of ticks to fly")
	fs.String("storage", "", "storage backend (memory, sqlite, postgres, websocket)")
	showVersion := fs.Bool("version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitConfig
	}
	if *showVersion {
		fmt.Printf("%s %s (%s)\n", AppName, CurrentVersion, BuildDate)
		return exitOK
	}

	setupLogging(*configDir, fs)
	defer shutdown()

	command := "run"
	if fs.NArg() > 0 {
		command = strings.ToLower(fs.Arg(0))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "run":
		return runHeadless(ctx)
	case "setupdb":
		if err := setupDB(); err != nil {
			Logger.Error("DB setup failed", "error", err)
			return exitRuntime
		}
		Logger.Info("DB setup complete.")
	case "migratebackups":
		dir := viper.GetString("storage.memory.outputDir")
		if fs.NArg() > 1 {
			dir = fs.Arg(1)
		}
		if err := migrateBackups(dir); err != nil {
			Logger.Error("Migrating backups failed", "error", err)
			return exitRuntime
		}
		Logger.Info("Finished migrating backups.")
	case "list":
		db, err := openStore(fs.Arg(1))
		if err == nil {
			err = listEngagements(db, os.Stdout)
		}
		if err != nil {
			Logger.Error("Listing engagements failed", "error", err)
			return exitRuntime
		}
	case "export":
		if fs.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "usage: pilot export <engagement-id> [sqlite-file]")
			return exitConfig
		}
		db, err := openStore(fs.Arg(2))
		if err == nil {
			err = exportEngagement(db, fs.Arg(1), os.Stdout)
		}
		if err != nil {
			Logger.Error("Exporting engagement failed", "error", err, "engagement", fs.Arg(1))
			return exitRuntime
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", command)
		return exitConfig
	}
	return exitOK
}

// setupLogging loads the config and wires the slog, OTel and GELF outputs.
// Flags override the file once bound.
func setupLogging(configDir string, fs *pflag.FlagSet) {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	// load config
	if err := config.Load(configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "file", viper.ConfigFileUsed())
	}
	if err := config.BindFlags(fs); err != nil {
		Logger.Warn("Failed to bind flags", "error", err)
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		Logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	}
	logPath := logging.LogFilePath(logsDir, AppName, SessionStartTime)
	LogFile = logging.NewRotatingFile(logPath, 50, 5)

	if viper.GetBool("graylog.enabled") {
		w, err := logging.NewGELFWriter(viper.GetString("graylog.address"))
		if err != nil {
			Logger.Error("Failed to open Graylog writer", "error", err)
		} else {
			SlogManager.AddWriter(w)
		}
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		var err error
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			BatchTimeout:   otelCfg.BatchTimeout,
			MetricInterval: otelCfg.MetricInterval,
			LogWriter:      LogFile,
			MetricWriter:   logging.NewRotatingFile(filepath.Join(logsDir, AppName+".metrics.log"), 50, 2),
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil && OTelProvider.Enabled() {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(LogFile, viper.GetString("logLevel"), otelLogProvider)
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)
	Logger.Info("Logging to file", "path", logPath, "version", CurrentVersion, "build", BuildDate)
}

// componentLogger returns a zerolog logger for the database, influx and
// dispatcher layers, writing to the session log.
func componentLogger(component string) zerolog.Logger {
	var w io.Writer = os.Stdout
	if LogFile != nil {
		w = LogFile
	}
	return logging.NewZerolog(w, viper.GetString("logLevel"), component)
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if InfluxManager != nil {
		if err := InfluxManager.Close(); err != nil {
			Logger.Error("Failed to close InfluxDB", "error", err)
		}
	}
	if OTelProvider != nil && OTelProvider.Enabled() {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Error("Failed to shut down OTel provider", "error", err)
		}
	}
	if err := SlogManager.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "closing log outputs: %v\n", err)
	}
	if LogFile != nil {
		_ = LogFile.Close()
	}
}

// connectInflux returns nil when Influx is disabled.
func connectInflux(ctx context.Context) *influx.Manager {
	cfg := config.GetInfluxConfig()
	if !cfg.Enabled {
		return nil
	}
	backup := filepath.Join(viper.GetString("logsDir"),
		fmt.Sprintf("%s_influx_%s.lp.gz", AppName, SessionStartTime.Format("20060102_150405")))
	m := influx.NewManager(componentLogger("influx"), cfg, backup)
	if err := m.Connect(ctx); err != nil {
		Logger.Error("Failed to set up InfluxDB, points are not recorded", "error", err)
		_ = m.Close()
		return nil
	}
	return m
}

// runHeadless flies one engagement against the kinematics world.
func runHeadless(ctx context.Context) int {
	agentCfg, err := config.GetAgentConfig()
	if err != nil {
		Logger.Error("Invalid agent config", "error", err)
		return exitConfig
	}
	simCfg := config.GetSimConfig()
	rules := kinematics.DefaultRules()
	rules.CruiseThrottle = agentCfg.CruiseThrottle
	world, err := kinematics.NewWorld(simCfg, rules)
	if err != nil {
		Logger.Error("Invalid sim config", "error", err)
		return exitConfig
	}

	backend, err := initStorage(config.GetStorageConfig())
	if err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		return exitRuntime
	}
	defer func() {
		if err := backend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}()

	InfluxManager = connectInflux(ctx)

	rec := recorder.NewManager(recorder.Dependencies{
		LogManager:     SlogManager,
		Influx:         InfluxManager,
		DispatchLogger: logging.NewDispatcherLogger(componentLogger("dispatcher")),
	}, backend)

	// Set up dynamic state callbacks for logging
	SlogManager.GetEngagementID = rec.EngagementID
	SlogManager.GetTick = rec.Tick
	SlogManager.GetSimTime = rec.SimTime

	opts := []tactics.Option{tactics.WithLogger(Logger), tactics.WithSink(rec)}
	if OTelProvider != nil && OTelProvider.Enabled() {
		opts = append(opts, tactics.WithMeter(OTelProvider.Meter("github.com/hddf2/pilot/internal/tactics")))
	}
	agent, err := tactics.New(agentCfg, opts...)
	if err != nil {
		Logger.Error("Invalid agent config", "error", err)
		return exitConfig
	}

	summary, err := fly(ctx, engagement{
		side:     agentCfg.Side,
		settings: map[string]any{"agent": agentCfg, "sim": simCfg},
		agent:    agent,
		world:    world,
		rec:      rec,
		log:      Logger,
	})
	if err != nil {
		Logger.Error("Engagement failed", "error", err)
		return exitRuntime
	}

	if OTelProvider != nil && OTelProvider.Enabled() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := OTelProvider.Flush(flushCtx); err != nil {
			Logger.Warn("Failed to flush telemetry", "error", err)
		}
		cancel()
	}

	if e, ok := backend.(storage.Exporter); ok {
		summary.Export = e.ExportedFilePath()
	}
	Logger.Info("Engagement finished",
		"engagement", summary.ID,
		"ticks", summary.Ticks,
		"survivors", summary.Survivors,
		"hostilesLeft", summary.Hostiles,
		"launches", summary.Launches,
		"hits", summary.Hits,
		"dropped", summary.Dropped,
		"export", summary.Export,
	)
	fmt.Println(summary)
	return exitOK
}
