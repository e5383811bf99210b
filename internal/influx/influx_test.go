package influx

import (
	"compress/gzip"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/hddf2/pilot/internal/config"
	"github.com/hddf2/pilot/pkg/core"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eng = &core.Engagement{ID: "eng-1", Side: "blue", StartTime: time.Unix(1_700_000_000, 0).UTC()}

// closedPort returns a local port with nothing listening on it.
func closedPort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return strconv.Itoa(port)
}

func TestConnectDisabled(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{}, "")
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
}

func TestWritePointWithoutBackup(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{}, "")
	assert.Error(t, m.WritePoint(ControlPoint(eng, &core.ControlRecord{})))
}

func TestBackupWhenUnreachable(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "influx.lp.gz")
	cfg := config.InfluxConfig{Enabled: true, Protocol: "http", Host: "127.0.0.1", Port: closedPort(t), Org: "o", Bucket: "b"}
	m := NewManager(zerolog.Nop(), cfg, backup)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	assert.False(t, m.IsValid)

	rec := &core.ControlRecord{Tick: 3, SimTime: 3, AircraftID: "blue-1", Phase: "patrol", Position: [3]float64{10, 20, -3000}}
	require.NoError(t, m.WritePoint(ControlPoint(eng, rec)))
	require.NoError(t, m.WritePoint(ThreatPoint(eng, &core.ThreatRecord{Tick: 3, AircraftID: "blue-1", ThreatID: "m-1", Trend: "closing"})))
	require.NoError(t, m.Close())

	f, err := os.Open(backup)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "control,"))
	assert.Contains(t, lines[0], "altitude=3000")
	assert.True(t, strings.HasPrefix(lines[1], "threat,"))
}

func TestControlPoint(t *testing.T) {
	rec := &core.ControlRecord{
		Tick:       5,
		SimTime:    2.5,
		AircraftID: "blue-1",
		Phase:      "engage",
		Position:   [3]float64{100, 200, -4000},
		Control:    [4]float64{0.1, -0.2, 0, 0.75},
	}
	line := influxdb2_write.PointToLineProtocol(ControlPoint(eng, rec), time.Nanosecond)

	assert.True(t, strings.HasPrefix(line, "control,aircraft=blue-1,engagement=eng-1,phase=engage,side=blue "))
	assert.Contains(t, line, "altitude=4000")
	assert.Contains(t, line, "throttle=0.75")
	assert.Contains(t, line, "tick=5i")
	assert.True(t, strings.HasSuffix(line, " 1700000002500000000"), line)
}

func TestLaunchPoint(t *testing.T) {
	rec := &core.LaunchRecord{Tick: 1, AircraftID: "blue-1", Weapon: core.WeaponMidRange, TargetID: "red-1", Range: 19990}
	line := influxdb2_write.PointToLineProtocol(LaunchPoint(eng, rec), time.Nanosecond)

	assert.True(t, strings.HasPrefix(line, "launch,aircraft=blue-1,engagement=eng-1,target=red-1,weapon=mid_range "))
	assert.Contains(t, line, "range=19990")
}

func TestURL(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{Protocol: "https", Host: "db", Port: "8086"}, "")
	assert.Equal(t, "https://db:8086", m.URL())
}
