package render

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outcome classifies a finished run. Exactly one is produced per run.
type Outcome int

const (
	// Completed means the quit marker was read before the game exited.
	Completed Outcome = iota
	// Crashed means the game started but exited without the quit marker.
	Crashed
	// SetupFailed means the run never got as far as a classified recording.
	SetupFailed
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Crashed:
		return "crashed"
	case SetupFailed:
		return "setup-failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// ExitCode maps o to the process exit status.
func (o Outcome) ExitCode() int {
	switch o {
	case Completed:
		return 0
	case Crashed:
		return 1
	default:
		return 2
	}
}

// RunContext carries the run-scoped key that names the staging directory,
// the console log and the collision-sensitive aliases.
type RunContext struct {
	Key string
}

// NewRunContext draws a fresh 16 hex digit key. The two halves of a random
// UUID are folded together so the version and variant bits are masked by
// random ones, leaving 64 random bits.
func NewRunContext() RunContext {
	u := uuid.New()
	var k [8]byte
	for i := range k {
		k[i] = u[i] ^ u[i+8]
	}
	return RunContext{Key: hex.EncodeToString(k[:])}
}

// Report describes one run.
type Report struct {
	Outcome Outcome
	Key     string
	// Err is the cause of a SetupFailed outcome.
	Err error
	// Markers is the number of progress markers the game emitted.
	Markers    int
	StartedAt  time.Time
	FinishedAt time.Time
}

// ExitCode is Outcome.ExitCode.
func (r *Report) ExitCode() int { return r.Outcome.ExitCode() }

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }
