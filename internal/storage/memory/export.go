// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hddf2/pilot/internal/geo"
	"github.com/hddf2/pilot/pkg/core"
	"github.com/klauspost/compress/zstd"
)

// Compression formats for exported files.
const (
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

// EngagementExport is the root JSON structure
type EngagementExport struct {
	ID        string         `json:"id"`
	Side      string         `json:"side"`
	StartTime time.Time      `json:"startTime"`
	EndTick   uint           `json:"endTick"`
	Config    map[string]any `json:"config,omitempty"`
	Aircraft  []AircraftJSON `json:"aircraft"`
}

// AircraftJSON is one aircraft's records. Track is WKT with altitude in Z.
type AircraftJSON struct {
	ID       string               `json:"id"`
	Track    string               `json:"track,omitempty"`
	Controls []core.ControlRecord `json:"controls"`
	Threats  []core.ThreatRecord  `json:"threats"`
	Phases   []core.PhaseRecord   `json:"phases"`
	Launches []core.LaunchRecord  `json:"launches"`
}

func (b *Backend) buildExport() EngagementExport {
	export := EngagementExport{
		ID:        b.engagement.ID,
		Side:      b.engagement.Side,
		StartTime: b.engagement.StartTime,
		EndTick:   b.lastTick,
		Config:    b.engagement.Config,
		Aircraft:  make([]AircraftJSON, 0, len(b.aircraft)),
	}

	for _, id := range b.sortedIDs() {
		rec := b.aircraft[id]
		a := AircraftJSON{
			ID:       id,
			Controls: nonNil(rec.Controls),
			Threats:  nonNil(rec.Threats),
			Phases:   nonNil(rec.Phases),
			Launches: nonNil(rec.Launches),
		}
		a.Track = trackWKT(rec.Controls)
		export.Aircraft = append(export.Aircraft, a)
	}
	return export
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// trackWKT returns "" for tracks under two points
func trackWKT(controls []core.ControlRecord) string {
	path := make([]mgl64.Vec3, len(controls))
	for i, c := range controls {
		path[i] = mgl64.Vec3(c.Position)
	}
	ls, err := geo.TrackLineString(path)
	if err != nil {
		return ""
	}
	return ls.AsText()
}

func (b *Backend) exportFileName() string {
	replacer := strings.NewReplacer(" ", "_", ":", "_", "/", "_")
	name := "engagement"
	if b.engagement.Side != "" {
		name += "_" + replacer.Replace(b.engagement.Side)
	}
	name += "_" + b.engagement.StartTime.Format("20060102_150405")
	if id := b.engagement.ID; id != "" {
		if len(id) > 8 {
			id = id[:8]
		}
		name += "_" + replacer.Replace(id)
	}

	if !b.cfg.CompressOutput {
		return name + ".json"
	}
	if b.cfg.Compression == CompressionZstd {
		return name + ".json.zst"
	}
	return name + ".json.gz"
}

// exportJSON writes the engagement to OutputDir
func (b *Backend) exportJSON() error {
	if b.cfg.CompressOutput {
		switch b.cfg.Compression {
		case CompressionGzip, CompressionZstd, "":
		default:
			return fmt.Errorf("unknown compression %q", b.cfg.Compression)
		}
	}

	export := b.buildExport()
	outputPath := filepath.Join(b.cfg.OutputDir, b.exportFileName())

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	var w io.WriteCloser = nopCloser{f}
	if b.cfg.CompressOutput {
		switch b.cfg.Compression {
		case CompressionZstd:
			w, err = zstd.NewWriter(f)
			if err != nil {
				return fmt.Errorf("failed to create zstd writer: %w", err)
			}
		default:
			w = gzip.NewWriter(f)
		}
	}

	if err := json.NewEncoder(w).Encode(export); err != nil {
		w.Close()
		return fmt.Errorf("failed to encode engagement: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish export: %w", err)
	}

	b.lastExportPath = outputPath
	return nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
