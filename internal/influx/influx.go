package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hddf2/pilot/internal/config"
	"github.com/hddf2/pilot/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx is disabled")

// Measurement names.
const (
	MeasurementControl = "control"
	MeasurementThreat  = "threat"
	MeasurementLaunch  = "launch"
)

const retentionSeconds = 60 * 60 * 24 * 90

// Manager handles InfluxDB connections and writes. When the server cannot
// be reached points go to a gzipped line-protocol backup file.
type Manager struct {
	Client  influxdb2.Client
	Writer  influxdb2_api.WriteAPI
	IsValid bool
	Logger  zerolog.Logger

	cfg        config.InfluxConfig
	backupPath string

	mu         sync.Mutex
	backupFile *os.File
	backup     *gzip.Writer
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, cfg config.InfluxConfig, backupPath string) *Manager {
	return &Manager{
		Logger:     log,
		cfg:        cfg,
		backupPath: backupPath,
	}
}

// URL returns the server address.
func (m *Manager) URL() string {
	return fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port)
}

// Connect establishes a connection to InfluxDB, falling back to the
// backup file when the server does not answer.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		m.URL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Warn().Err(err).Str("backupPath", m.backupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Str("url", m.URL()).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backup != nil {
		return nil
	}
	file, err := os.OpenFile(m.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.backup = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.Client.OrganizationsAPI()

	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.Logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", m.cfg.Org).Msg("Error creating organization")
			return err
		}
	}

	if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")
		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retentionSeconds,
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
			return err
		}
	}
	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(m.Writer.Errors())
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backup == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.backup.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending points and releases the client and backup file.
func (m *Manager) Close() error {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backup == nil {
		return nil
	}
	err := errors.Join(m.backup.Close(), m.backupFile.Close())
	m.backup, m.backupFile = nil, nil
	return err
}

// pointTime places a record on the wall clock relative to the engagement start.
func pointTime(start time.Time, simTime float64) time.Time {
	return start.Add(time.Duration(simTime * float64(time.Second)))
}

// ControlPoint converts a control record. Altitude is positive up.
func ControlPoint(e *core.Engagement, r *core.ControlRecord) *influxdb2_write.Point {
	return influxdb2.NewPoint(
		MeasurementControl,
		map[string]string{
			"engagement": e.ID,
			"side":       e.Side,
			"aircraft":   r.AircraftID,
			"phase":      r.Phase,
		},
		map[string]any{
			"tick":     int64(r.Tick),
			"north":    r.Position[0],
			"east":     r.Position[1],
			"altitude": -r.Position[2],
			"roll":     r.Roll,
			"pitch":    r.Pitch,
			"yaw":      r.Yaw,
			"aileron":  r.Control[core.Aileron],
			"elevator": r.Control[core.Elevator],
			"rudder":   r.Control[core.Rudder],
			"throttle": r.Control[core.Throttle],
		},
		pointTime(e.StartTime, r.SimTime),
	)
}

// ThreatPoint converts a threat record.
func ThreatPoint(e *core.Engagement, r *core.ThreatRecord) *influxdb2_write.Point {
	return influxdb2.NewPoint(
		MeasurementThreat,
		map[string]string{
			"engagement": e.ID,
			"aircraft":   r.AircraftID,
			"threat":     r.ThreatID,
			"trend":      r.Trend,
		},
		map[string]any{
			"tick":      int64(r.Tick),
			"distance":  r.Distance,
			"facing":    r.Facing,
			"ahead":     r.AheadOfThreatNose,
			"alignment": r.Alignment,
			"expired":   r.Expired,
		},
		pointTime(e.StartTime, r.SimTime),
	)
}

// LaunchPoint converts a launch record.
func LaunchPoint(e *core.Engagement, r *core.LaunchRecord) *influxdb2_write.Point {
	return influxdb2.NewPoint(
		MeasurementLaunch,
		map[string]string{
			"engagement": e.ID,
			"aircraft":   r.AircraftID,
			"weapon":     string(r.Weapon),
			"target":     r.TargetID,
		},
		map[string]any{
			"tick":  int64(r.Tick),
			"range": r.Range,
		},
		pointTime(e.StartTime, r.SimTime),
	)
}
