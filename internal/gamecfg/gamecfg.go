// Package gamecfg writes the per-run alias file that binds the stable alias
// names used by the timeline and the shipped cfg scripts to this run's
// concrete values.
package gamecfg

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joeycumines/renderdemo/internal/storage"
)

// RelPath is where the alias file lives relative to the staging directory,
// which the game mounts as a search path.
var RelPath = filepath.Join("cfg", "renderdemo", "cvars.cfg")

// Aliases are the values bound for one run.
type Aliases struct {
	// Key is the run key; it names the console log file.
	Key string
	// OutputPath is the movie file to record. Its directory becomes the
	// recorder's output directory and its base name the movie name.
	OutputPath string
	// Profile is the recording profile cfg under renderdemo/profiles.
	Profile string
	// Commands are extra console commands run before recording starts.
	Commands string
}

// Render returns the alias file contents, one directive per line.
func (a Aliases) Render() (string, error) {
	if a.Key == "" {
		return "", fmt.Errorf("gamecfg: empty run key")
	}
	if strings.Contains(a.Commands, `"`) {
		return "", fmt.Errorf("gamecfg: extra commands must not contain '\"'")
	}
	for name, v := range map[string]string{"output path": a.OutputPath, "profile": a.Profile} {
		if strings.ContainsAny(v, "\"\n\r") {
			return "", fmt.Errorf("gamecfg: %s %q contains a quote or line break", name, v)
		}
	}

	lines := []string{
		fmt.Sprintf(`sdr_outputdir "%s"`, filepath.Dir(a.OutputPath)),
		fmt.Sprintf(`alias renderdemo_log "con_logfile %s"`, storage.LogFileName(a.Key)),
		fmt.Sprintf(`alias renderdemo_startmovie "startmovie %s"`, filepath.Base(a.OutputPath)),
		fmt.Sprintf(`alias renderdemo_profile exec "renderdemo/profiles/%s"`, a.Profile),
		fmt.Sprintf(`alias renderdemo_user_commands "%s"`, a.Commands),
	}
	return strings.Join(lines, "\n"), nil
}

// Write renders a and stores it at RelPath under dir.
func Write(dir string, a Aliases) (string, error) {
	content, err := a.Render()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, RelPath)
	if err := storage.AtomicWriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("gamecfg: write %s: %w", path, err)
	}
	return path, nil
}
