package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hddf2/pilot/internal/geo"
	"github.com/hddf2/pilot/internal/geometry"
	"github.com/hddf2/pilot/internal/tactics"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "pilot.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
	// Compression is "gzip" or "zstd".
	Compression string `json:"compression" mapstructure:"compression"`
}

// SQLiteConfig holds settings for the in-memory SQLite backend
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
}

// WebSocketConfig holds settings for the streaming backend
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig selects and configures the recording backend
type StorageConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout   time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds InfluxDB connection settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// SimConfig drives the headless engagement run
type SimConfig struct {
	Ticks     int     `json:"ticks" mapstructure:"ticks"`
	TimeStep  float64 `json:"timeStep" mapstructure:"timeStep"`
	Aircraft  int     `json:"aircraft" mapstructure:"aircraft"`
	Hostiles  int     `json:"hostiles" mapstructure:"hostiles"`
	Altitude  float64 `json:"altitude" mapstructure:"altitude"`
	Spacing   float64 `json:"spacing" mapstructure:"spacing"`
	Range     float64 `json:"range" mapstructure:"range"`
	HitRadius float64 `json:"hitRadius" mapstructure:"hitRadius"`
	Seed      int64   `json:"seed" mapstructure:"seed"`
}

// objectiveEntry is an objective as written in the config file. Either
// pos (local metres, NED) or lonLat ("lon,lat,alt") is set.
type objectiveEntry struct {
	Name   string    `mapstructure:"name"`
	Class  string    `mapstructure:"class"`
	Pos    []float64 `mapstructure:"pos"`
	LonLat string    `mapstructure:"lonLat"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./pilotlogs")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "pilot")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "pilot-metrics")
	viper.SetDefault("influx.bucket", "engagements")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.memory.compression", "gzip")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/api")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "pilot")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "15s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("sim.ticks", 3000)
	viper.SetDefault("sim.timeStep", 0.1)
	viper.SetDefault("sim.aircraft", 2)
	viper.SetDefault("sim.hostiles", 2)
	viper.SetDefault("sim.altitude", 3000.0)
	viper.SetDefault("sim.spacing", 2000.0)
	viper.SetDefault("sim.range", 60000.0)
	viper.SetDefault("sim.hitRadius", 50.0)
	viper.SetDefault("sim.seed", 1)

	def := tactics.DefaultConfig()
	viper.SetDefault("agent.side", def.Side)
	viper.SetDefault("agent.initialPhase", def.InitialPhase)
	viper.SetDefault("agent.approachRadius", def.ApproachRadius)
	viper.SetDefault("agent.alarmRange", def.AlarmRange)
	viper.SetDefault("agent.breakTurnRange", def.BreakTurnRange)
	viper.SetDefault("agent.evadeMaxAlignment", def.EvadeMaxAlignment)
	viper.SetDefault("agent.trackCapacity", def.TrackCapacity)
	viper.SetDefault("agent.cruiseThrottle", def.CruiseThrottle)
	viper.SetDefault("agent.defaultObjective", []float64{def.DefaultObjective.X(), def.DefaultObjective.Y(), def.DefaultObjective.Z()})
	viper.SetDefault("agent.threat.method", def.Threat.Method.String())
}

// BindFlags binds command line flags into viper so they override the file.
func BindFlags(fs *pflag.FlagSet) error {
	for key, name := range map[string]string{
		"logLevel":     "log-level",
		"logsDir":      "logs-dir",
		"sim.ticks":    "ticks",
		"storage.type": "storage",
	} {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig returns the storage backend configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
			Compression:    strings.ToLower(viper.GetString("storage.memory.compression")),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the InfluxDB configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetSimConfig returns the headless run configuration.
func GetSimConfig() SimConfig {
	return SimConfig{
		Ticks:     viper.GetInt("sim.ticks"),
		TimeStep:  viper.GetFloat64("sim.timeStep"),
		Aircraft:  viper.GetInt("sim.aircraft"),
		Hostiles:  viper.GetInt("sim.hostiles"),
		Altitude:  viper.GetFloat64("sim.altitude"),
		Spacing:   viper.GetFloat64("sim.spacing"),
		Range:     viper.GetFloat64("sim.range"),
		HitRadius: viper.GetFloat64("sim.hitRadius"),
		Seed:      viper.GetInt64("sim.seed"),
	}
}

// GetAgentConfig builds the agent configuration, starting from the agent
// defaults and overlaying whatever the file sets. Objectives given as
// lon/lat are placed relative to agent.origin.
func GetAgentConfig() (tactics.Config, error) {
	cfg := tactics.DefaultConfig()

	cfg.Side = viper.GetString("agent.side")
	cfg.InitialPhase = viper.GetString("agent.initialPhase")
	cfg.ApproachRadius = viper.GetFloat64("agent.approachRadius")
	cfg.AlarmRange = viper.GetFloat64("agent.alarmRange")
	cfg.BreakTurnRange = viper.GetFloat64("agent.breakTurnRange")
	cfg.EvadeMaxAlignment = viper.GetFloat64("agent.evadeMaxAlignment")
	cfg.TrackCapacity = viper.GetInt("agent.trackCapacity")
	cfg.CruiseThrottle = viper.GetFloat64("agent.cruiseThrottle")

	def, err := vec3(viper.Get("agent.defaultObjective"))
	if err != nil {
		return cfg, fmt.Errorf("agent.defaultObjective: %w", err)
	}
	cfg.DefaultObjective = def

	for key, dst := range map[string]any{
		"agent.expiry":   &cfg.Expiry,
		"agent.patrol":   &cfg.Patrol,
		"agent.boundary": &cfg.Boundary,
		"agent.altitude": &cfg.Altitude,
		"agent.weapons":  &cfg.Weapons,
		"agent.mapper":   &cfg.Mapper,
		"agent.attitude": &cfg.Attitude,
		"agent.threat":   &cfg.Threat,
	} {
		if err := viper.UnmarshalKey(key, dst); err != nil {
			return cfg, fmt.Errorf("error decoding %s: %w", key, err)
		}
	}

	cfg.Threat.Method, err = geometry.ParseMethod(viper.GetString("agent.threat.method"))
	if err != nil {
		return cfg, fmt.Errorf("agent.threat.method: %w", err)
	}

	var entries []objectiveEntry
	if err := viper.UnmarshalKey("agent.objectives", &entries); err != nil {
		return cfg, fmt.Errorf("error decoding agent.objectives: %w", err)
	}
	var origin geo.Origin
	if err := viper.UnmarshalKey("agent.origin", &origin); err != nil {
		return cfg, fmt.Errorf("error decoding agent.origin: %w", err)
	}
	for i, e := range entries {
		o := tactics.Objective{Name: e.Name, Class: tactics.Class(strings.ToLower(e.Class))}
		if o.Name == "" {
			o.Name = fmt.Sprintf("objective-%d", i)
		}
		switch {
		case e.LonLat != "":
			lon, lat, alt, err := geo.ParseLonLat(e.LonLat)
			if err != nil {
				return cfg, fmt.Errorf("objective %q: %w", o.Name, err)
			}
			if o.Pos, err = origin.Local(lon, lat, alt); err != nil {
				return cfg, fmt.Errorf("objective %q: %w", o.Name, err)
			}
		default:
			if o.Pos, err = vec3(e.Pos); err != nil {
				return cfg, fmt.Errorf("objective %q: %w", o.Name, err)
			}
		}
		cfg.Objectives = append(cfg.Objectives, o)
	}

	return cfg, nil
}

func vec3(v any) (mgl64.Vec3, error) {
	var out mgl64.Vec3
	switch s := v.(type) {
	case []float64:
		if len(s) != 3 {
			return out, fmt.Errorf("expected 3 components, got %d", len(s))
		}
		copy(out[:], s)
	case []any:
		if len(s) != 3 {
			return out, fmt.Errorf("expected 3 components, got %d", len(s))
		}
		for i, c := range s {
			f, ok := c.(float64)
			if !ok {
				return out, fmt.Errorf("component %d is %T, not a number", i, c)
			}
			out[i] = f
		}
	default:
		return out, fmt.Errorf("expected a 3 element array, got %T", v)
	}
	return out, nil
}
