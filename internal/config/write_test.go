package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetKeyInFile(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		initial    string // "" means no file
		key, value string
		want       string
	}{
		{
			name: "new file",
			key:  "color", value: "never",
			want: "color never",
		},
		{
			name:    "append keeps trailing newline",
			initial: "game.exe /games/tf2/hl2.exe\n",
			key:     "color", value: "never",
			want: "game.exe /games/tf2/hl2.exe\ncolor never\n",
		},
		{
			name:    "replace in place",
			initial: "# renderdemo\ncolor auto\nrender.window fixed\n",
			key:     "color", value: "always",
			want: "# renderdemo\ncolor always\nrender.window fixed\n",
		},
		{
			name:    "insert before first section",
			initial: "color auto\n\n[clean]\nevery 10m\n",
			key:     "clean.min-age", value: "2h",
			want: "color auto\n\nclean.min-age 2h\n[clean]\nevery 10m\n",
		},
		{
			name:    "section keys are not matched",
			initial: "[history]\nlimit 5\n",
			key:     "limit", value: "9",
			want: "limit 9\n[history]\nlimit 5\n",
		},
		{
			name:    "value with spaces",
			initial: "",
			key:     "render.launch-options", value: "-width 1920 -height 1080",
			want: "render.launch-options -width 1920 -height 1080",
		},
		{
			name:    "empty value",
			initial: "log.file /var/log/renderdemo.log\n",
			key:     "log.file", value: "",
			want: "log.file\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "config")
			if tt.initial != "" {
				if err := os.WriteFile(path, []byte(tt.initial), 0644); err != nil {
					t.Fatal(err)
				}
			}
			if err := SetKeyInFile(path, tt.key, tt.value); err != nil {
				t.Fatalf("SetKeyInFile: %v", err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != tt.want {
				t.Fatalf("content = %q, want %q", data, tt.want)
			}
		})
	}
}

func TestSetKeyInFile_RoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "config")

	for _, kv := range [][2]string{
		{"sdr.dir", `C:\SDR`},
		{"render.window", "hidden"},
		{"render.window", "fixed"},
		{"launch.timeout", "2m"},
	} {
		if err := SetKeyInFile(path, kv[0], kv[1]); err != nil {
			t.Fatalf("SetKeyInFile(%s): %v", kv[0], err)
		}
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.HasWarnings() {
		t.Fatalf("unexpected warnings: %v", cfg.Warnings)
	}
	if v := cfg.GetString("render.window"); v != "fixed" {
		t.Errorf("render.window = %q", v)
	}
	if v := cfg.GetString("sdr.dir"); v != `C:\SDR` {
		t.Errorf("sdr.dir = %q", v)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}
