// Package job turns user input into the validated parameter bundle a render
// run is driven by.
//
// Input holds raw strings from flags, a YAML job file, or config defaults.
// Resolve checks every field against the file system and the demo header and
// produces an immutable Params, or a *ValidationError naming the first bad
// field.
package job

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joeycumines/renderdemo/internal/demo"
	"github.com/joeycumines/renderdemo/internal/proc"
)

// Overwrite is the policy for an existing output file.
type Overwrite int

const (
	OverwriteAsk Overwrite = iota
	OverwriteYes
	OverwriteNo
)

func (o Overwrite) String() string {
	switch o {
	case OverwriteAsk:
		return "ask"
	case OverwriteYes:
		return "yes"
	case OverwriteNo:
		return "no"
	default:
		return fmt.Sprintf("Overwrite(%d)", int(o))
	}
}

// ParseOverwrite accepts yes, no and ask; empty means ask.
func ParseOverwrite(s string) (Overwrite, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ask":
		return OverwriteAsk, nil
	case "yes":
		return OverwriteYes, nil
	case "no":
		return OverwriteNo, nil
	default:
		return 0, fmt.Errorf("unknown overwrite action %q", s)
	}
}

// Params is everything one run needs. It is built once by Resolve and not
// modified afterwards.
type Params struct {
	// ArtifactPath is the demo to record.
	ArtifactPath string
	StartTick    int
	EndTick      int
	// OutputPath is the absolute movie path.
	OutputPath       string
	ProfileName      string
	ExtraCommands    string
	ExtraLaunchFlags string
	WindowPolicy     proc.WindowState
	OverwritePolicy  Overwrite
	Verbosity        slog.Level

	// HelperDir holds LauncherCLI.exe.
	HelperDir string
	// GameExe is hl2.exe.
	GameExe string
	// GameDir is the game write directory, where the console log appears.
	GameDir string
	// ConfigDir holds cfg/renderdemo with the shipped scripts.
	ConfigDir string
	// TempDir is the root for staging areas.
	TempDir string

	// TestMode pauses for confirmation before the game starts.
	TestMode bool

	// Demo is the inspected demo header.
	Demo *demo.Header
}

// Summary lists the parameters the way they are echoed before a run.
func (p *Params) Summary() []string {
	return []string{
		"Demo: " + p.ArtifactPath,
		"Output: " + p.OutputPath,
		fmt.Sprintf("Start tick: %d | End tick: %d | Profile: %s", p.StartTick, p.EndTick, p.ProfileName),
		fmt.Sprintf("Commands: %q", p.ExtraCommands),
	}
}
