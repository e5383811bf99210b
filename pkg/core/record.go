// pkg/core/record.go
package core

import "time"

// Engagement describes one recorded run of the agent.
type Engagement struct {
	ID        string         `json:"id"`
	Side      string         `json:"side"`
	StartTime time.Time      `json:"startTime"`
	Config    map[string]any `json:"config,omitempty"` // snapshot of the agent settings
}

// ControlRecord is one aircraft's command for one tick.
type ControlRecord struct {
	Tick       uint       `json:"tick"`
	SimTime    float64    `json:"simTime"`
	AircraftID string     `json:"aircraftId"`
	Phase      string     `json:"phase"`
	Position   [3]float64 `json:"position"`
	Roll       float64    `json:"roll"`
	Pitch      float64    `json:"pitch"`
	Yaw        float64    `json:"yaw"`
	Action     [3]int     `json:"action"` // altitude, heading, speed bins
	Control    [4]float64 `json:"control"`
}

// ThreatRecord is one threat assessment against one aircraft.
type ThreatRecord struct {
	Tick              uint       `json:"tick"`
	SimTime           float64    `json:"simTime"`
	AircraftID        string     `json:"aircraftId"`
	ThreatID          string     `json:"threatId"`
	Distance          float64    `json:"distance"`
	Facing            bool       `json:"facing"`
	AheadOfThreatNose bool       `json:"aheadOfThreatNose"`
	Alignment         float64    `json:"alignment"`
	Trend             string     `json:"trend"`
	EvadePoint        [3]float64 `json:"evadePoint"`
	Expired           bool       `json:"expired"`
}

// PhaseRecord marks a phase change of one aircraft.
type PhaseRecord struct {
	Tick       uint    `json:"tick"`
	SimTime    float64 `json:"simTime"`
	AircraftID string  `json:"aircraftId"`
	From       string  `json:"from"`
	To         string  `json:"to"`
	Reason     string  `json:"reason"`
}

// LaunchRecord is one weapon launch request.
type LaunchRecord struct {
	Tick       uint       `json:"tick"`
	SimTime    float64    `json:"simTime"`
	AircraftID string     `json:"aircraftId"`
	Weapon     WeaponType `json:"weapon"`
	TargetID   string     `json:"targetId"`
	Range      float64    `json:"range"`
}
