package tactics

import "github.com/hddf2/pilot/pkg/core"

// Sink receives what the agent decided each tick. Implementations must
// not block; the recorder queues records for asynchronous storage.
type Sink interface {
	RecordControl(r core.ControlRecord)
	RecordThreat(r core.ThreatRecord)
	RecordPhase(r core.PhaseRecord)
	RecordLaunch(r core.LaunchRecord)
}

type nopSink struct{}

func (nopSink) RecordControl(core.ControlRecord) {}
func (nopSink) RecordThreat(core.ThreatRecord)   {}
func (nopSink) RecordPhase(core.PhaseRecord)     {}
func (nopSink) RecordLaunch(core.LaunchRecord)   {}
