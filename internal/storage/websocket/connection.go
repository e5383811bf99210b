package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/hddf2/pilot/pkg/streaming"
)

const (
	queueSize    = 10_000
	maxFrame     = 256 // envelopes per frame
	ackQueue     = 16
	maxRedials   = 10
	firstBackoff = time.Second
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

var errStreamClosed = errors.New("stream closed")

// stream owns the WebSocket. A single run goroutine holds the connection:
// it writes queued envelopes as frames, redials with backoff when the
// connection fails and resends the engagement header on the new one.
type stream struct {
	url    string
	secret string
	log    *slog.Logger

	queue chan streaming.Envelope
	acks  chan streaming.AckMessage
	quit  chan struct{}
	done  chan struct{} // closed when run returns

	mu      sync.Mutex
	header  *streaming.Envelope
	started bool
	closed  bool

	seq       atomic.Uint64
	dropped   atomic.Uint64
	redialled atomic.Uint64
}

func newStream(log *slog.Logger) *stream {
	return &stream{
		log:   log,
		queue: make(chan streaming.Envelope, queueSize),
		acks:  make(chan streaming.AckMessage, ackQueue),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// open dials once and hands the connection to run. A failed first dial is
// returned instead of retried.
func (s *stream) open(rawURL, secret string) error {
	s.url, s.secret = rawURL, secret
	conn, err := s.dial()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = conn.Close()
		return errStreamClosed
	}
	s.started = true
	go s.run(conn)
	return nil
}

func (s *stream) dial() (*ws.Conn, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", s.secret)
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (s *stream) run(conn *ws.Conn) {
	defer close(s.done)
	for conn != nil {
		err := s.serve(conn)
		if err == nil {
			s.hangUp(conn)
			return
		}
		s.log.Warn("WebSocket connection lost", "error", err)
		_ = conn.Close()
		conn = s.redial()
	}
}

// serve writes frames until the connection fails or the stream is closed.
// On close it flushes the queue and returns nil.
func (s *stream) serve(conn *ws.Conn) error {
	readErr := make(chan error, 1)
	go s.read(conn, readErr)

	for {
		select {
		case <-s.quit:
			s.flush(conn)
			return nil
		case err := <-readErr:
			return err
		case env := <-s.queue:
			if err := s.writeFrame(conn, false, s.collect(env)); err != nil {
				return err
			}
		}
	}
}

// collect batches first with whatever else is already queued.
func (s *stream) collect(first streaming.Envelope) []streaming.Envelope {
	batch := []streaming.Envelope{first}
	for len(batch) < maxFrame {
		select {
		case env := <-s.queue:
			batch = append(batch, env)
		default:
			return batch
		}
	}
	return batch
}

func (s *stream) writeFrame(conn *ws.Conn, replay bool, records []streaming.Envelope) error {
	data, err := json.Marshal(streaming.Frame{
		Seq:     s.seq.Add(1),
		Replay:  replay,
		Records: records,
	})
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
		s.dropped.Add(uint64(len(records)))
		return err
	}
	return nil
}

func (s *stream) flush(conn *ws.Conn) {
	for {
		select {
		case env := <-s.queue:
			if err := s.writeFrame(conn, false, s.collect(env)); err != nil {
				s.log.Warn("WebSocket write failed while flushing", "error", err, "pending", len(s.queue))
				return
			}
		default:
			return
		}
	}
}

func (s *stream) hangUp(conn *ws.Conn) {
	_ = conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	_ = conn.Close()
}

// read forwards acks until the connection fails.
func (s *stream) read(conn *ws.Conn, errc chan<- error) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			errc <- err
			return
		}
		var ack streaming.AckMessage
		if err := json.Unmarshal(msg, &ack); err != nil || ack.Type != streaming.TypeAck {
			s.log.Debug("Ignoring server message", "raw", string(msg))
			continue
		}
		select {
		case s.acks <- ack:
		default:
			s.log.Debug("Ack queue full, dropping", "for", ack.For, "seq", ack.Seq)
		}
	}
}

// redial returns a fresh connection with the header already resent, or
// nil once the stream is closed or every attempt failed.
func (s *stream) redial() *ws.Conn {
	backoff := firstBackoff
	for attempt := 1; attempt <= maxRedials; attempt++ {
		select {
		case <-s.quit:
			return nil
		case <-time.After(backoff):
		}

		conn, err := s.dial()
		if err != nil {
			s.log.Warn("WebSocket redial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		s.mu.Lock()
		header := s.header
		s.mu.Unlock()
		if header != nil {
			if err := s.writeFrame(conn, true, []streaming.Envelope{*header}); err != nil {
				s.log.Warn("Failed to resend engagement header", "error", err)
				_ = conn.Close()
				continue
			}
		}

		s.redialled.Add(1)
		s.log.Info("WebSocket reconnected", "attempt", attempt)
		return conn
	}

	s.log.Error("WebSocket gave up reconnecting", "attempts", maxRedials)
	return nil
}

// setHeader stores the envelope resent after a reconnect; nil clears it.
func (s *stream) setHeader(env *streaming.Envelope) {
	s.mu.Lock()
	s.header = env
	s.mu.Unlock()
}

// send queues env without blocking, dropping it when the queue is full.
func (s *stream) send(env streaming.Envelope) {
	select {
	case s.queue <- env:
	default:
		if s.dropped.Add(1) == 1 {
			s.log.Warn("WebSocket queue full, dropping records")
		}
	}
}

// sendAndWait queues env and waits for the server to ack its type.
func (s *stream) sendAndWait(env streaming.Envelope, timeout time.Duration) error {
	s.send(env)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ack := <-s.acks:
			if ack.For == env.Type {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", env.Type)
		case <-s.quit:
			return fmt.Errorf("waiting for ack of %q: %w", env.Type, errStreamClosed)
		}
	}
}

// close flushes the queue and hangs up. It waits at most writeWait for the
// flush.
func (s *stream) close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	close(s.quit)
	s.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-s.done:
	case <-time.After(writeWait):
		s.log.Warn("Timed out flushing WebSocket queue", "pending", len(s.queue))
	}
	return nil
}
