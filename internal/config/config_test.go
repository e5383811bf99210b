package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hddf2/pilot/internal/geometry"
	"github.com/hddf2/pilot/internal/tactics"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./pilotlogs", viper.GetString("logsDir"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "postgres", viper.GetString("db.username"))
	assert.Equal(t, "postgres", viper.GetString("db.password"))
	assert.Equal(t, "pilot", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "./recordings", viper.GetString("storage.memory.outputDir"))
	assert.Equal(t, true, viper.GetBool("storage.memory.compressOutput"))
	assert.Equal(t, "3m", viper.GetString("storage.sqlite.dumpInterval"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "pilot", viper.GetString("otel.serviceName"))
	assert.Equal(t, 3000, viper.GetInt("sim.ticks"))
	assert.Equal(t, "approach", viper.GetString("agent.initialPhase"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	viper.Set("testInt", 42)
	viper.Set("testBool", true)

	assert.Equal(t, "testValue", GetString("testKey"))
	assert.Equal(t, 42, GetInt("testInt"))
	assert.Equal(t, true, GetBool("testBool"))
}

func TestBindFlags(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"sim": {"ticks": 100}}`)))

	fs := pflag.NewFlagSet("pilot", pflag.ContinueOnError)
	fs.Int("ticks", 0, "")
	fs.String("log-level", "", "")
	require.NoError(t, BindFlags(fs))
	assert.Equal(t, 100, GetSimConfig().Ticks, "unset flags leave the file value")

	require.NoError(t, fs.Parse([]string{"--ticks", "25", "--log-level", "debug"}))
	assert.Equal(t, 25, GetSimConfig().Ticks)
	assert.Equal(t, "debug", GetString("logLevel"))
}

func TestGetStorageConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
		want StorageConfig
	}{
		{
			name: "defaults",
			body: `{}`,
			want: StorageConfig{
				Type:      "memory",
				Memory:    MemoryConfig{OutputDir: "./recordings", CompressOutput: true, Compression: "gzip"},
				SQLite:    SQLiteConfig{DumpInterval: 3 * time.Minute},
				WebSocket: WebSocketConfig{URL: "ws://localhost:5000/api"},
			},
		},
		{
			name: "override",
			body: `{
				"storage": {
					"type": "sqlite",
					"memory": { "outputDir": "/tmp/out", "compressOutput": false, "compression": "ZSTD" },
					"sqlite": { "dumpInterval": "10m", "dumpPath": "/tmp/pilot.db" }
				}
			}`,
			want: StorageConfig{
				Type:      "sqlite",
				Memory:    MemoryConfig{OutputDir: "/tmp/out", CompressOutput: false, Compression: "zstd"},
				SQLite:    SQLiteConfig{DumpInterval: 10 * time.Minute, DumpPath: "/tmp/pilot.db"},
				WebSocket: WebSocketConfig{URL: "ws://localhost:5000/api"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(viper.Reset)
			require.NoError(t, Load(writeConfig(t, tt.body)))
			assert.Equal(t, tt.want, GetStorageConfig())
		})
	}
}

func TestGetOTelConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeout": "30s",
			"endpoint": "localhost:4317",
			"insecure": false
		}
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, 15*time.Second, oc.MetricInterval)
	assert.Equal(t, "localhost:4317", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}

func TestGetInfluxConfig_PartialOverride(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"influx": {"enabled": true, "host": "influx.local"}}`)))

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, "influx.local", ic.Host)
	assert.Equal(t, "8086", ic.Port)
	assert.Equal(t, "engagements", ic.Bucket)
}

func TestGetAgentConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg, err := GetAgentConfig()
	require.NoError(t, err)
	assert.Equal(t, tactics.DefaultConfig(), cfg)
}

func TestGetAgentConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"agent": {
			"side": "blue",
			"approachRadius": 12000,
			"defaultObjective": [1000, 2000, -4000],
			"expiry": { "window": 30 },
			"weapons": { "midCooldown": 20 },
			"altitude": { "floor": 1500, "ceiling": 10000 },
			"mapper": { "altitudeThreshold": 500 },
			"attitude": { "aileron": { "kp": 2 } },
			"threat": { "minSamples": 12, "method": "finite_difference" },
			"objectives": [
				{ "name": "alpha", "class": "Manned", "pos": [50000, 0, -3000] },
				{ "class": "uav", "pos": [0, 50000, -2000] }
			]
		}
	}`)))

	cfg, err := GetAgentConfig()
	require.NoError(t, err)

	def := tactics.DefaultConfig()
	assert.Equal(t, "blue", cfg.Side)
	assert.Equal(t, 12000.0, cfg.ApproachRadius)
	assert.Equal(t, def.AlarmRange, cfg.AlarmRange)
	assert.Equal(t, mgl64.Vec3{1000, 2000, -4000}, cfg.DefaultObjective)
	assert.Equal(t, 30, cfg.Expiry.Window)
	assert.Equal(t, def.Expiry.Margin, cfg.Expiry.Margin)
	assert.Equal(t, 20.0, cfg.Weapons.MidCooldown)
	assert.Equal(t, def.Weapons.ShortCooldown, cfg.Weapons.ShortCooldown)
	assert.Equal(t, 1500.0, cfg.Altitude.Floor)
	assert.Equal(t, 10000.0, cfg.Altitude.Ceiling)
	assert.Equal(t, def.Altitude.Emergency, cfg.Altitude.Emergency)
	assert.Equal(t, def.Weapons.AimDuration, cfg.Weapons.AimDuration)
	assert.Equal(t, 500.0, cfg.Mapper.AltitudeThreshold)
	assert.Equal(t, def.Mapper.ReferenceDistance, cfg.Mapper.ReferenceDistance)
	assert.Equal(t, 2.0, cfg.Attitude.Aileron.Kp)
	assert.Equal(t, def.Attitude.Aileron.Kd, cfg.Attitude.Aileron.Kd)
	assert.Equal(t, 12, cfg.Threat.MinSamples)
	assert.Equal(t, geometry.FiniteDifference, cfg.Threat.Method)

	require.Len(t, cfg.Objectives, 2)
	assert.Equal(t, tactics.Objective{Name: "alpha", Class: tactics.Manned, Pos: mgl64.Vec3{50000, 0, -3000}}, cfg.Objectives[0])
	assert.Equal(t, "objective-1", cfg.Objectives[1].Name)
	assert.Equal(t, tactics.UAV, cfg.Objectives[1].Class)
}

func TestGetAgentConfig_LonLatObjective(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"agent": {
			"origin": { "lon": 0, "lat": 45 },
			"objectives": [ { "name": "north", "class": "manned", "lonLat": "0,45.1,3000" } ]
		}
	}`)))

	cfg, err := GetAgentConfig()
	require.NoError(t, err)
	require.Len(t, cfg.Objectives, 1)

	pos := cfg.Objectives[0].Pos
	assert.InDelta(t, 11132, pos.X(), 150)
	assert.Less(t, math.Abs(pos.Y()), 1e-6)
	assert.Equal(t, -3000.0, pos.Z())
}

func TestGetAgentConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"short default objective", `{"agent": {"defaultObjective": [1, 2]}}`},
		{"bad method", `{"agent": {"threat": {"method": "kalman"}}}`},
		{"bad objective position", `{"agent": {"objectives": [{"class": "manned", "pos": [1]}]}}`},
		{"bad lon/lat", `{"agent": {"objectives": [{"class": "manned", "lonLat": "x,y"}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(viper.Reset)
			require.NoError(t, Load(writeConfig(t, tt.body)))
			_, err := GetAgentConfig()
			assert.Error(t, err)
		})
	}
}
