package config

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestSchemaLookup(t *testing.T) {
	t.Parallel()
	s := DefaultSchema()

	if o := s.Lookup("", "render.window"); o == nil || o.Default != "fixed" {
		t.Fatalf("render.window lookup = %+v", o)
	}
	if o := s.Lookup("clean", "every"); o == nil || o.Type != TypeDuration {
		t.Fatalf("clean.every lookup = %+v", o)
	}
	if s.Lookup("", "every") != nil {
		t.Fatal("section option leaked into globals")
	}
	if !s.IsKnown("clean", "color") {
		t.Fatal("global keys should be known in sections")
	}
	if s.IsKnown("clean", "limit") {
		t.Fatal("history.limit should not be known in [clean]")
	}
	if got := s.Sections(); strings.Join(got, ",") != "clean,history" {
		t.Fatalf("Sections = %v", got)
	}
}

func TestSchemaRegisterDuplicateReplaces(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.Register(ConfigOption{Key: "a", Default: "1"})
	s.Register(ConfigOption{Key: "a", Default: "2"})
	if got := s.Lookup("", "a").Default; got != "2" {
		t.Fatalf("Default = %q, want 2", got)
	}
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()
	c := NewConfig()
	c.SetGlobalOption("render.window", "Hidden")
	c.SetGlobalOption("render.profile", "film")
	c.SetGlobalOption("history.max-count", "ten")
	c.SetGlobalOption("history.enabled", "yes")
	c.SetGlobalOption("mystery", "x")
	c.SetCommandOption("clean", "every", "often")
	c.SetCommandOption("clean", "window.wait", "5s")
	c.SetCommandOption("history", "colour", "on")

	issues := ValidateConfig(c, DefaultSchema())
	want := []string{
		`global option "history.max-count": expected int, got "ten"`,
		`global option "render.profile": expected one of video, audio, both, got "film"`,
		`option "every" in [clean]: expected duration, got "often"`,
		`unknown global option: "mystery" (value: "x")`,
		`unknown option for command "history": "colour" (value: "on")`,
	}
	if strings.Join(issues, "\n") != strings.Join(want, "\n") {
		t.Fatalf("issues:\n%s\nwant:\n%s", strings.Join(issues, "\n"), strings.Join(want, "\n"))
	}
}

func TestDefaultSchemaDefaultsValidate(t *testing.T) {
	t.Parallel()
	for _, o := range DefaultSchema().options {
		if o.Default == "" {
			continue
		}
		if err := o.validate(o.Default); err != nil {
			t.Errorf("%s default %q: %v", o.Key, o.Default, err)
		}
	}
}

func TestSchemaResolve(t *testing.T) {
	s := DefaultSchema()
	c := NewConfig()
	c.SetGlobalOption("poll.interval", "50ms")
	c.SetGlobalOption("game.exe", "/cfg/hl2.exe")
	c.SetCommandOption("history", "limit", "3")

	t.Setenv("RENDERDEMO_GAME_EXE", "/env/hl2.exe")

	if got := s.Resolve(c, "game.exe"); got != "/env/hl2.exe" {
		t.Errorf("env should win, got %q", got)
	}
	if got := s.Resolve(c, "window.wait"); got != "30s" {
		t.Errorf("default window.wait = %q", got)
	}
	if got := s.Resolve(nil, "render.overwrite"); got != "ask" {
		t.Errorf("nil config default = %q", got)
	}
	if got := s.ResolveCommand(c, "history", "limit"); got != "3" {
		t.Errorf("history.limit = %q", got)
	}
	if got := s.ResolveCommand(NewConfig(), "history", "limit"); got != "20" {
		t.Errorf("history.limit default = %q", got)
	}

	d, err := s.ResolveDuration(c, "", "poll.interval")
	if err != nil || d != 50*time.Millisecond {
		t.Errorf("poll.interval = %v, %v", d, err)
	}
	d, err = s.ResolveDuration(c, "", "launch.timeout")
	if err != nil || d != 0 {
		t.Errorf("launch.timeout = %v, %v", d, err)
	}
	n, err := s.ResolveInt(c, "history.max-count")
	if err != nil || n != 100 {
		t.Errorf("history.max-count = %d, %v", n, err)
	}
	b, err := s.ResolveBool(c, "history.enabled")
	if err != nil || !b {
		t.Errorf("history.enabled = %v, %v", b, err)
	}

	c.SetGlobalOption("history.enabled", "maybe")
	if _, err := s.ResolveBool(c, "history.enabled"); err == nil {
		t.Error("expected bool parse error")
	}
	c.SetGlobalOption("monitor.timeout", "soon")
	if _, err := s.ResolveDuration(c, "", "monitor.timeout"); err == nil {
		t.Error("expected duration parse error")
	}
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	} else {
		t.Setenv("HOME", home)
	}
	if got := ExpandHome("~/renderdemo/history"); got != home+"/renderdemo/history" {
		t.Errorf("ExpandHome = %q", got)
	}
	if got := ExpandHome("/abs/~/x"); got != "/abs/~/x" {
		t.Errorf("ExpandHome changed an absolute path: %q", got)
	}

	c := NewConfig()
	c.SetGlobalOption("paths.history-dir", "~/h")
	if got := DefaultSchema().ResolvePath(c, "paths.history-dir"); got != filepath.Join(home, "h") && got != home+"/h" {
		t.Errorf("ResolvePath = %q", got)
	}
}

func TestFormatHelp(t *testing.T) {
	t.Parallel()
	help := DefaultSchema().FormatHelp()
	for _, want := range []string{
		"Global Options:",
		"render.window",
		"one of: fixed|broken|hidden",
		"default: 30s",
		"env: RENDERDEMO_SDR_DIR",
		"[clean] Options:",
		"[history] Options:",
	} {
		if !strings.Contains(help, want) {
			t.Errorf("help missing %q:\n%s", want, help)
		}
	}
	if NewSchema().FormatHelp() != "" {
		t.Error("empty schema should format to nothing")
	}
}
