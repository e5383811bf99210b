package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hddf2/pilot/internal/storage"
	"github.com/hddf2/pilot/pkg/core"
	"github.com/hddf2/pilot/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams engagement records over WebSocket.
type Backend struct {
	conn *stream
	cfg  Config

	mu       sync.Mutex
	current  string // engagement id, empty when none is running
	lastTick uint
}

// New creates a new WebSocket storage backend. A nil logger uses slog.Default.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newStream(logger),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.open(b.cfg.URL, b.cfg.Secret)
}

// Close sends what is still queued and disconnects.
func (b *Backend) Close() error {
	return b.conn.close()
}

func envelope(msgType string, payload any) (streaming.Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return streaming.Envelope{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return streaming.Envelope{Type: msgType, Payload: raw}, nil
}

// sendRecord pushes a record to the write loop (fire-and-forget).
func (b *Backend) sendRecord(msgType string, tick uint, payload any) error {
	b.mu.Lock()
	if b.current == "" {
		b.mu.Unlock()
		return storage.ErrNoEngagement
	}
	if tick > b.lastTick {
		b.lastTick = tick
	}
	b.mu.Unlock()

	env, err := envelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(env)
	return nil
}

// StartEngagement sends the engagement header and waits for server ack.
// The header is replayed after a reconnect.
func (b *Backend) StartEngagement(e *core.Engagement) error {
	env, err := envelope(streaming.TypeStartEngagement, e)
	if err != nil {
		return err
	}
	b.conn.setHeader(&env)

	b.mu.Lock()
	b.current = e.ID
	b.lastTick = 0
	b.mu.Unlock()

	return b.conn.sendAndWait(env, ackTimeout)
}

// EndEngagement sends end_engagement and waits for server ack.
func (b *Backend) EndEngagement() error {
	b.mu.Lock()
	id, last := b.current, b.lastTick
	b.current = ""
	b.mu.Unlock()

	if id == "" {
		return storage.ErrNoEngagement
	}

	env, err := envelope(streaming.TypeEndEngagement, streaming.EndEngagementPayload{ID: id, LastTick: last})
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(env, ackTimeout)
	b.conn.setHeader(nil)
	return err
}

func (b *Backend) RecordControl(r *core.ControlRecord) error {
	return b.sendRecord(streaming.TypeControl, r.Tick, r)
}

func (b *Backend) RecordThreat(r *core.ThreatRecord) error {
	return b.sendRecord(streaming.TypeThreat, r.Tick, r)
}

func (b *Backend) RecordPhase(r *core.PhaseRecord) error {
	return b.sendRecord(streaming.TypePhase, r.Tick, r)
}

func (b *Backend) RecordLaunch(r *core.LaunchRecord) error {
	return b.sendRecord(streaming.TypeLaunch, r.Tick, r)
}

// Dropped returns how many records never reached the server, on a full
// queue or a failed write.
func (b *Backend) Dropped() uint64 {
	return b.conn.dropped.Load()
}

// Reconnects returns how many times the connection was re-established.
func (b *Backend) Reconnects() uint64 {
	return b.conn.redialled.Load()
}
