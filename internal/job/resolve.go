package job

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joeycumines/renderdemo/internal/demo"
	"github.com/joeycumines/renderdemo/internal/logging"
	"github.com/joeycumines/renderdemo/internal/proc"
	"github.com/joeycumines/renderdemo/internal/storage"
)

const (
	// GameDirName is the game directory demos must have been recorded in.
	GameDirName = "tf"
	// GameExeName is the only accepted -exepath file name.
	GameExeName = "hl2.exe"
	// DefaultProfile is used when no profile is given.
	DefaultProfile = "both"
	// DefaultOutputExt is appended to -out values without an extension.
	DefaultOutputExt = ".avi"
)

// OutputExts are the container formats the recorder can write.
var OutputExts = []string{".avi", ".mp4", ".mov", ".mkv"}

// MultiProcessExtension must be enabled in the helper directory.
var MultiProcessExtension = filepath.Join("Extensions", "Enabled", "MultiProcess.dll")

// AutoexecRelPath is the entry script the game executes, relative to the
// config directory.
var AutoexecRelPath = filepath.Join("cfg", "renderdemo", "autoexec.cfg")

// ProfilePath returns the profile script for name under configDir.
func ProfilePath(configDir, name string) string {
	return filepath.Join(configDir, "cfg", "renderdemo", "profiles", name+".cfg")
}

// Resolve validates in and builds Params. Relative paths resolve as the
// command line tool always has: the helper and config directories against
// the working directory, the game directory against the executable's
// directory, the demo against the game directory, and the output against
// the working directory.
func Resolve(in Input) (*Params, error) {
	r := resolver{in: in, p: &Params{}}
	for _, step := range []func() error{
		r.configDir,
		r.helperDir,
		r.gameExe,
		r.gameDir,
		r.demo,
		r.startTick,
		r.endTick,
		r.output,
		r.profile,
		r.commands,
		r.overwrite,
		r.window,
		r.verbosity,
		r.tempDir,
	} {
		if err := step(); err != nil {
			return nil, err
		}
	}
	r.p.ExtraLaunchFlags = strings.TrimSpace(in.Launch)
	r.p.TestMode = in.Test
	return r.p, nil
}

type resolver struct {
	in Input
	p  *Params
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

func dirExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

func (r *resolver) configDir() error {
	dir := r.in.ConfigDir
	if dir == "" {
		dir = "config"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return invalid("configdir", Invalid, "'%s' is not a valid directory path.", dir)
	}
	if autoexec := filepath.Join(abs, AutoexecRelPath); !fileExists(autoexec) {
		return invalid("configdir", NotFound, "Missing file '%s'.", autoexec)
	}
	r.p.ConfigDir = abs
	return nil
}

func (r *resolver) helperDir() error {
	dir := r.in.SDRDir
	explicit := dir != ""
	if !explicit {
		dir = "SDR"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return invalid("sdrdir", Invalid, "'%s' is not a valid directory path.", dir)
	}
	switch {
	case !explicit && (!fileExists(filepath.Join(abs, "LauncherCLI.exe")) || !fileExists(filepath.Join(abs, MultiProcessExtension))):
		return invalid("sdrdir", NotFound, "Couldn't find SourceDemoRender, try specifying its path with '-sdrdir path'.")
	case !dirExists(abs):
		return invalid("sdrdir", NotFound, "Couldn't find '%s'.", abs)
	case !fileExists(filepath.Join(abs, "LauncherCLI.exe")):
		return invalid("sdrdir", NotFound, "Couldn't find 'LauncherCLI.exe' in '%s'.", abs)
	case !fileExists(filepath.Join(abs, MultiProcessExtension)):
		return invalid("sdrdir", NotFound, "SDR MultiProcess extension is not enabled.")
	}
	r.p.HelperDir = abs
	return nil
}

func (r *resolver) gameExe() error {
	exe := r.in.ExePath
	if exe == "" {
		return missing("exepath")
	}
	if !strings.EqualFold(filepath.Base(exe), GameExeName) {
		return invalid("exepath", Invalid, "File name must be '%s'.", GameExeName)
	}
	if !fileExists(exe) {
		return invalid("exepath", NotFound, "Couldn't find '%s'.", exe)
	}
	r.p.GameExe = exe
	return nil
}

func (r *resolver) gameDir() error {
	dir := r.in.TFDir
	if dir == "" {
		dir = GameDirName
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(filepath.Dir(r.p.GameExe), dir)
	}
	if !dirExists(dir) {
		return invalid("tfdir", NotFound, "Couldn't find '%s'.", dir)
	}
	r.p.GameDir = dir
	return nil
}

func (r *resolver) demo() error {
	path := r.in.Demo
	if path == "" {
		return missing("demo")
	}
	if filepath.Ext(path) == "" {
		path += ".dem"
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.p.GameDir, path)
	}
	if !fileExists(path) {
		return invalid("demo", NotFound, "Couldn't find '%s'.", path)
	}

	h, err := demo.Inspect(path, GameDirName)
	switch {
	case errors.Is(err, demo.ErrNotDemo):
		return invalid("demo", Invalid, "'%s' isn't a demo.", path)
	case errors.Is(err, demo.ErrWrongGame):
		return invalid("demo", Invalid, "'%s' isn't a TF2 demo.", path)
	case errors.Is(err, demo.ErrCorrupt):
		return invalid("demo", Invalid, "Demo is corrupted.")
	case err != nil:
		return invalid("demo", Invalid, "Error parsing demo: %v.", err)
	}
	r.p.ArtifactPath = path
	r.p.Demo = h
	return nil
}

func (r *resolver) startTick() error {
	s := strings.TrimSpace(r.in.Start)
	if s == "" {
		return missing("start")
	}
	tick, err := strconv.Atoi(s)
	if err != nil {
		return invalid("start", Invalid, "'%s' is not an integer.", s)
	}
	if tick < 1 {
		return invalid("start", OutOfRange, "Start tick must be at least one.")
	}
	if tick > r.p.Demo.LastTick() {
		return invalid("start", OutOfRange, "'%s' has only %d ticks.", r.p.ArtifactPath, r.p.Demo.LastTick())
	}
	r.p.StartTick = tick
	return nil
}

func (r *resolver) endTick() error {
	s := strings.TrimSpace(r.in.End)
	if s == "" {
		return missing("end")
	}
	tick := r.p.Demo.LastTick()
	if s != "max" {
		var err error
		if tick, err = strconv.Atoi(s); err != nil {
			return invalid("end", Invalid, "'%s' is not an integer.", s)
		}
	}
	if tick <= r.p.StartTick {
		return invalid("end", OutOfRange, "End tick must be greater than start tick.")
	}
	if tick > r.p.Demo.LastTick() {
		return invalid("end", OutOfRange, "'%s' has only %d ticks.", r.p.ArtifactPath, r.p.Demo.LastTick())
	}
	r.p.EndTick = tick
	return nil
}

func (r *resolver) output() error {
	out := r.in.Out
	if out == "" {
		return missing("out")
	}
	switch ext := strings.ToLower(filepath.Ext(out)); {
	case ext == "":
		out += DefaultOutputExt
	case !containsString(OutputExts, ext):
		return invalid("out", Invalid, "Unsupported extension '%s', use one of AVI, MP4, MOV, MKV.", filepath.Ext(out))
	}
	abs, err := filepath.Abs(out)
	if err != nil {
		return invalid("out", Invalid, "'%s' is not a valid file path.", out)
	}
	if filepath.Dir(abs) == filepath.VolumeName(abs)+string(filepath.Separator) {
		return invalid("out", Invalid, "SourceDemoRender cannot output to the root of a drive.")
	}
	if strings.ContainsAny(abs, "\"\r\n") {
		return invalid("out", Invalid, "'%s' contains a quote or line break.", abs)
	}
	r.p.OutputPath = abs
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (r *resolver) profile() error {
	name := r.in.Profile
	if name == "" {
		name = DefaultProfile
	}
	if strings.ContainsAny(name, "\"\r\n/\\") {
		return invalid("profile", Invalid, "'%s' is not a profile name.", name)
	}
	if path := ProfilePath(r.p.ConfigDir, name); !fileExists(path) {
		return invalid("profile", NotFound, "Couldn't find '%s'.", path)
	}
	r.p.ProfileName = name
	return nil
}

func (r *resolver) commands() error {
	if strings.ContainsRune(r.in.Cmd, '"') {
		return invalid("cmd", Invalid, "Commands cannot contain quote.")
	}
	if strings.ContainsAny(r.in.Cmd, "\r\n") {
		return invalid("cmd", Invalid, "Commands cannot contain line breaks.")
	}
	r.p.ExtraCommands = r.in.Cmd
	return nil
}

func (r *resolver) overwrite() error {
	o, err := ParseOverwrite(r.in.Overwrite)
	if err != nil {
		return invalid("overwrite", Invalid, "Only accepted values are 'yes', 'no', or 'ask'.")
	}
	r.p.OverwritePolicy = o
	return nil
}

func (r *resolver) window() error {
	if r.in.Window == "" {
		r.p.WindowPolicy = proc.WindowFixed
		return nil
	}
	w, err := proc.ParseWindowState(r.in.Window)
	if err != nil {
		return invalid("window", Invalid, "Only accepted values are 'fixed', 'broken', or 'hidden'.")
	}
	r.p.WindowPolicy = w
	return nil
}

func (r *resolver) verbosity() error {
	if r.in.LogLevel == "" {
		r.p.Verbosity = logging.LevelInfo
		return nil
	}
	l, err := logging.ParseLevel(r.in.LogLevel)
	if err != nil || l == logging.LevelWarn {
		return invalid("loglevel", Invalid, "Only accepted values are 'debug', 'info', 'brief', 'progress', 'error', or 'quiet'.")
	}
	r.p.Verbosity = l
	return nil
}

func (r *resolver) tempDir() error {
	dir := r.in.TempDir
	if dir == "" {
		dir = storage.DefaultTempRoot()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return invalid("tempdir", Invalid, "'%s' is not a valid directory path.", dir)
	}
	r.p.TempDir = abs
	return nil
}
