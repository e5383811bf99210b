package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hddf2/pilot/internal/kinematics"
	"github.com/hddf2/pilot/internal/recorder"
	"github.com/hddf2/pilot/internal/tactics"
)

type engagement struct {
	side     string
	settings any
	agent    *tactics.Agent
	world    *kinematics.World
	rec      *recorder.Manager
	log      *slog.Logger
}

// Summary is what a headless run reports when it ends.
type Summary struct {
	ID        string
	Ticks     int
	SimTime   float64
	Survivors int
	Hostiles  int
	Launches  int
	Hits      int
	Dropped   uint64
	Export    string
	Cancelled bool
}

func (s Summary) String() string {
	out := fmt.Sprintf("engagement %s: %d ticks (%.1fs), %d own surviving, %d hostiles left, %d launches, %d hits",
		s.ID, s.Ticks, s.SimTime, s.Survivors, s.Hostiles, s.Launches, s.Hits)
	if s.Dropped > 0 {
		out += fmt.Sprintf(", %d records dropped", s.Dropped)
	}
	if s.Export != "" {
		out += ", exported to " + s.Export
	}
	if s.Cancelled {
		out += " (cancelled)"
	}
	return out
}

// fly steps the agent against the world until the world is done or ctx
// is cancelled. The engagement is always closed on the recorder, and an
// agent error ends the run.
func fly(ctx context.Context, e engagement) (sum Summary, err error) {
	started, err := e.rec.StartEngagement(e.side, e.settings, time.Now())
	if err != nil {
		return sum, fmt.Errorf("starting engagement: %w", err)
	}
	sum.ID = started.ID
	e.log.Info("Engagement started", "engagement", started.ID, "side", e.side)

	defer func() {
		if endErr := e.rec.EndEngagement(); endErr != nil {
			err = errors.Join(err, fmt.Errorf("ending engagement: %w", endErr))
		}
		sum.Dropped = e.rec.Dropped()
	}()

	for !e.world.Done() {
		if ctx.Err() != nil {
			sum.Cancelled = true
			e.log.Warn("Engagement cancelled", "tick", e.world.Tick())
			break
		}

		cmds, stepErr := e.agent.Step(e.world.Observation())
		if stepErr != nil {
			return sum, fmt.Errorf("tick %d: %w", e.world.Tick(), stepErr)
		}

		for _, ev := range e.world.Apply(cmds) {
			switch ev.Kind {
			case kinematics.EventLaunch:
				sum.Launches++
				e.log.Debug("Missile away", "missile", ev.Missile, "shooter", ev.Shooter, "target", ev.Target)
			case kinematics.EventHit:
				sum.Hits++
				e.log.Info("Missile hit", "missile", ev.Missile, "shooter", ev.Shooter, "target", ev.Target, "simTime", ev.SimTime)
			case kinematics.EventExpired:
				e.log.Debug("Missile expired", "missile", ev.Missile, "target", ev.Target)
			}
		}
		sum.Ticks = e.world.Tick()
		sum.SimTime = e.world.SimTime()
	}

	sum.Survivors = len(e.world.OwnIDs())
	sum.Hostiles = len(e.world.HostileIDs())
	return sum, nil
}
