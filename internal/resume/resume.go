// Package resume recovers the complete records of an interrupted run
// so a rerun only basecalls what is missing. Recovery walks a fixed
// ladder: inspect the prior artifact, validate that the new invocation
// is compatible, then replay the recovered records into the new
// output.
package resume

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/basewind/basewind/pkg/container"
)

// State is the recovery ladder position.
type State int

const (
	StateIdle State = iota
	StateInspecting
	StateValidating
	StateReady
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInspecting:
		return "inspecting"
	case StateValidating:
		return "validating"
	case StateReady:
		return "ready"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Loader drives one recovery attempt over a prior artifact.
type Loader struct {
	path   string
	log    zerolog.Logger
	state  State
	result *container.ScanResult
}

// NewLoader builds a loader for the artifact at path.
func NewLoader(path string, log zerolog.Logger) *Loader {
	return &Loader{path: path, log: log, state: StateIdle}
}

// State returns the loader's ladder position.
func (l *Loader) State() State { return l.state }

// Inspect scans the prior artifact, keeping every record whose frame
// is complete. A truncated tail is expected after a crash and is not
// an error; an unreadable artifact rejects the recovery.
func (l *Loader) Inspect() error {
	if l.state != StateIdle {
		return errors.Errorf("resume: inspect in state %s", l.state)
	}
	l.state = StateInspecting

	res, err := container.Scan(l.path)
	if err != nil {
		l.state = StateRejected
		return errors.Wrap(err, "resume: prior output unreadable")
	}
	if res.Truncated {
		l.log.Info().Int("recovered", len(res.Records)).
			Msg("prior output ends mid-record; dropping the torn tail")
	}
	l.result = res
	l.state = StateValidating
	return nil
}

// Validate checks the new invocation against the prior header. The
// model names must match verbatim; resuming with a different model
// would silently mix calls from two decoders.
func (l *Loader) Validate(model string) error {
	if l.state != StateValidating {
		return errors.Errorf("resume: validate in state %s", l.state)
	}
	if prior := l.result.Header.Model; prior != model {
		l.state = StateRejected
		return errors.Errorf("resume: prior output was called with model %q, this run uses %q", prior, model)
	}
	l.state = StateReady
	return nil
}

// Header returns the prior run's header. Valid once Inspect succeeds.
func (l *Loader) Header() container.Header { return l.result.Header }

// ProcessedIDs returns the ids recovered from the prior artifact; the
// writer suppresses them if they come through the pipeline again.
func (l *Loader) ProcessedIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(l.result.Records))
	for _, rec := range l.result.Records {
		ids[rec.ID] = struct{}{}
	}
	return ids
}

// Replay copies the recovered records into the new artifact and
// returns how many were carried over. The loader must be Ready.
func (l *Loader) Replay(out container.RecordWriter) (int, error) {
	if l.state != StateReady {
		return 0, errors.Errorf("resume: replay in state %s", l.state)
	}
	for _, rec := range l.result.Records {
		if err := out.WriteRecord(rec); err != nil {
			return 0, errors.Wrapf(err, "resume: replay record %s", rec.ID)
		}
	}
	l.log.Info().Int("replayed", len(l.result.Records)).Msg("carried prior records into new output")
	return len(l.result.Records), nil
}
