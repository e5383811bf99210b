// Package streaming defines the JSON protocol spoken between the websocket
// storage backend and a live engagement viewer.
//
// Every WebSocket text message from the client is a Frame holding one or
// more Envelopes in send order. The server answers start_engagement and
// end_engagement with an AckMessage.
package streaming

import (
	"encoding/json"
)

const (
	TypeStartEngagement = "start_engagement"
	TypeEndEngagement   = "end_engagement"
	TypeControl         = "control"
	TypeThreat          = "threat"
	TypePhase           = "phase"
	TypeLaunch          = "launch"
	TypeAck             = "ack"
)

// Envelope carries one record and its type.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Frame is a single WebSocket message. Seq increases by one per frame for
// the life of the client, across reconnects. Replay marks the engagement
// header resent after a reconnect.
type Frame struct {
	Seq     uint64     `json:"seq"`
	Replay  bool       `json:"replay,omitempty"`
	Records []Envelope `json:"records"`
}

// AckMessage acknowledges the envelope of type For carried in frame Seq.
type AckMessage struct {
	Type string `json:"type"`
	For  string `json:"for"`
	Seq  uint64 `json:"seq"`
}

// EndEngagementPayload closes the engagement on the server.
type EndEngagementPayload struct {
	ID       string `json:"id"`
	LastTick uint   `json:"lastTick"`
}
