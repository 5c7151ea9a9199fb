package config

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OptionType represents the expected type of a configuration option value.
type OptionType string

const (
	// TypeString is a plain string value (the default for all config values).
	TypeString OptionType = "string"
	// TypeBool is a boolean value (true/false/yes/no/1/0/on/off).
	TypeBool OptionType = "bool"
	// TypeInt is an integer value.
	TypeInt OptionType = "int"
	// TypeDuration is a Go time.Duration value (e.g. "30s", "5m", "1h").
	TypeDuration OptionType = "duration"
	// TypePath is a file system path; "~/" expands to the home directory.
	TypePath OptionType = "path"
)

// ConfigOption declares a single configuration option.
type ConfigOption struct {
	// Key is the option name as it appears in the config file.
	Key string
	// Type is the expected value type for validation.
	Type OptionType
	// Default is the default value as a string, or "" for no default.
	Default string
	// Choices, when set, lists the only accepted values (case-insensitive).
	Choices []string
	// Description is a human-readable description of the option.
	Description string
	// Section is "" for global options, or a command name.
	Section string
	// EnvVar is the environment variable that overrides this option, or "".
	EnvVar string
}

// ConfigSchema declares the known configuration options. It drives
// validation, help output, typed resolution and env var mapping.
type ConfigSchema struct {
	options   []*ConfigOption
	byKey     map[string]*ConfigOption
	bySection map[string]map[string]*ConfigOption
}

// NewSchema creates a new empty ConfigSchema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{
		byKey:     make(map[string]*ConfigOption),
		bySection: make(map[string]map[string]*ConfigOption),
	}
}

// Register adds opt to the schema; a duplicate key in the same section
// replaces the earlier registration.
func (s *ConfigSchema) Register(opt ConfigOption) {
	ref := new(ConfigOption)
	*ref = opt
	s.options = append(s.options, ref)
	if opt.Section == "" {
		s.byKey[opt.Key] = ref
		return
	}
	if s.bySection[opt.Section] == nil {
		s.bySection[opt.Section] = make(map[string]*ConfigOption)
	}
	s.bySection[opt.Section][opt.Key] = ref
}

// RegisterAll adds multiple ConfigOptions to the schema.
func (s *ConfigSchema) RegisterAll(opts []ConfigOption) {
	for _, opt := range opts {
		s.Register(opt)
	}
}

// Lookup returns the option for key in section ("" for global), or nil.
func (s *ConfigSchema) Lookup(section, key string) *ConfigOption {
	if section == "" {
		return s.byKey[key]
	}
	return s.bySection[section][key]
}

// IsKnown reports whether key may appear in section. Global keys are valid
// in every command section.
func (s *ConfigSchema) IsKnown(section, key string) bool {
	return s.Lookup(section, key) != nil || s.byKey[key] != nil
}

// GlobalOptions returns all registered global options in registration order.
func (s *ConfigSchema) GlobalOptions() []ConfigOption {
	return s.SectionOptions("")
}

// SectionOptions returns all registered options for section.
func (s *ConfigSchema) SectionOptions(section string) []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == section {
			out = append(out, *o)
		}
	}
	return out
}

// Sections returns the sorted command section names.
func (s *ConfigSchema) Sections() []string {
	out := make([]string, 0, len(s.bySection))
	for sec := range s.bySection {
		out = append(out, sec)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the effective value of a global key: the schema's env var
// if set, then the config value, then the schema default.
func (s *ConfigSchema) Resolve(c *Config, key string) string {
	return s.ResolveCommand(c, "", key)
}

// ResolveCommand is Resolve for a command: a value in the command's section
// wins over the global one. Env vars still take precedence.
func (s *ConfigSchema) ResolveCommand(c *Config, command, key string) string {
	opt := s.Lookup(command, key)
	if opt == nil {
		opt = s.Lookup("", key)
	}
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	if c != nil {
		var v string
		var ok bool
		if command == "" {
			v, ok = c.GetGlobalOption(key)
		} else {
			v, ok = c.GetCommandOption(command, key)
		}
		if ok {
			return v
		}
	}
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ResolveBool resolves key and parses it as a boolean.
func (s *ConfigSchema) ResolveBool(c *Config, key string) (bool, error) {
	v := s.Resolve(c, key)
	if v == "" {
		return false, nil
	}
	b, err := parseBool(v)
	if err != nil {
		return false, fmt.Errorf("option %s: %w", key, err)
	}
	return b, nil
}

// ResolveInt resolves key and parses it as an integer; empty means 0.
func (s *ConfigSchema) ResolveInt(c *Config, key string) (int, error) {
	v := s.Resolve(c, key)
	if v == "" {
		return 0, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("option %s: expected int, got %q", key, v)
	}
	return i, nil
}

// ResolveDuration resolves key for command and parses it as a duration;
// empty means 0.
func (s *ConfigSchema) ResolveDuration(c *Config, command, key string) (time.Duration, error) {
	v := s.ResolveCommand(c, command, key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("option %s: expected duration, got %q", key, v)
	}
	return d, nil
}

// ResolvePath resolves key and expands a leading "~/".
func (s *ConfigSchema) ResolvePath(c *Config, key string) string {
	return ExpandHome(s.Resolve(c, key))
}

// ExpandHome replaces a leading "~/" (or "~\") with the home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return home + p[1:]
}

// ValidateConfig checks c against s and returns human-readable issues:
// unknown options and values that do not match the declared type or
// choices.
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string

	for key, value := range c.Global {
		opt := s.Lookup("", key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
			continue
		}
		if err := opt.validate(value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}

	for section, opts := range c.Commands {
		for key, value := range opts {
			opt := s.Lookup(section, key)
			if opt == nil {
				opt = s.Lookup("", key)
			}
			if opt == nil {
				issues = append(issues, fmt.Sprintf("unknown option for command %q: %q (value: %q)", section, key, value))
				continue
			}
			if err := opt.validate(value); err != nil {
				issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
			}
		}
	}

	sort.Strings(issues)
	return issues
}

func (o *ConfigOption) validate(value string) error {
	if len(o.Choices) > 0 && !slices.Contains(o.Choices, strings.ToLower(value)) {
		return fmt.Errorf("expected one of %s, got %q", strings.Join(o.Choices, ", "), value)
	}
	switch o.Type {
	case TypeString, TypePath, "":
		return nil
	case TypeBool:
		if _, err := parseBool(value); err != nil {
			return fmt.Errorf("expected bool, got %q", value)
		}
	case TypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("expected int, got %q", value)
		}
	case TypeDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("expected duration, got %q", value)
		}
	default:
		return fmt.Errorf("unknown option type %q", o.Type)
	}
	return nil
}

// FormatHelp returns a reference of all registered options, grouped by
// section.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder
	if globals := s.GlobalOptions(); len(globals) > 0 {
		b.WriteString("Global Options:\n")
		for _, o := range globals {
			writeOptionHelp(&b, o)
		}
	}
	for _, sec := range s.Sections() {
		fmt.Fprintf(&b, "\n[%s] Options:\n", sec)
		for _, o := range s.SectionOptions(sec) {
			writeOptionHelp(&b, o)
		}
	}
	return b.String()
}

func writeOptionHelp(b *strings.Builder, o ConfigOption) {
	fmt.Fprintf(b, "  %-24s %s", o.Key, o.Description)
	var parts []string
	if len(o.Choices) > 0 {
		parts = append(parts, "one of: "+strings.Join(o.Choices, "|"))
	} else if o.Type != "" && o.Type != TypeString {
		parts = append(parts, fmt.Sprintf("type: %s", o.Type))
	}
	if o.Default != "" {
		parts = append(parts, fmt.Sprintf("default: %s", o.Default))
	}
	if o.EnvVar != "" {
		parts = append(parts, fmt.Sprintf("env: %s", o.EnvVar))
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString("\n")
}

// DefaultSchema returns the schema of every renderdemo option.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.RegisterAll(defaultGlobalOptions())
	s.RegisterAll(defaultCommandOptions())
	return s
}

func defaultGlobalOptions() []ConfigOption {
	return []ConfigOption{
		// Environment
		{Key: "sdr.dir", Type: TypePath, Description: "SourceDemoRender directory (contains LauncherCLI.exe)", EnvVar: "RENDERDEMO_SDR_DIR"},
		{Key: "game.exe", Type: TypePath, Description: "Game executable (hl2.exe)", EnvVar: "RENDERDEMO_GAME_EXE"},
		{Key: "game.dir", Type: TypePath, Description: "Game write directory (default: tf next to game.exe)", EnvVar: "RENDERDEMO_GAME_DIR"},
		{Key: "paths.config-dir", Type: TypePath, Description: "Directory holding cfg/renderdemo/autoexec.cfg", EnvVar: "RENDERDEMO_CONFIG_DIR"},
		{Key: "paths.temp-dir", Type: TypePath, Description: "Root for per-run staging directories (default: <tmp>/renderdemo)", EnvVar: "RENDERDEMO_TEMP_DIR"},
		{Key: "paths.history-dir", Type: TypePath, Description: "Run history directory (default: ~/.renderdemo/history)"},

		// Recording defaults
		{Key: "render.profile", Type: TypeString, Default: "both", Choices: []string{"video", "audio", "both"}, Description: "Recording profile"},
		{Key: "render.window", Type: TypeString, Default: "fixed", Choices: []string{"fixed", "broken", "hidden"}, Description: "Game window state"},
		{Key: "render.overwrite", Type: TypeString, Default: "ask", Choices: []string{"yes", "no", "ask"}, Description: "Action when the output file exists"},
		{Key: "render.launch-options", Type: TypeString, Description: "Extra game launch options"},

		// Output
		{Key: "log.level", Type: TypeString, Default: "info", Choices: []string{"debug", "info", "brief", "progress", "error", "quiet"}, Description: "Console verbosity", EnvVar: "RENDERDEMO_LOG_LEVEL"},
		{Key: "log.file", Type: TypePath, Description: "Log file path (JSON output)", EnvVar: "RENDERDEMO_LOG_FILE"},
		{Key: "log.file-level", Type: TypeString, Default: "debug", Choices: []string{"debug", "info", "brief", "progress", "warn", "error"}, Description: "Log file level"},
		{Key: "log.max-size-mb", Type: TypeInt, Default: "10", Description: "Max log file size in MB before rotation"},
		{Key: "log.max-files", Type: TypeInt, Default: "5", Description: "Max number of rotated log backup files"},
		{Key: "color", Type: TypeString, Default: "auto", Choices: []string{"auto", "always", "never"}, Description: "Color mode"},

		// Waiting
		{Key: "poll.interval", Type: TypeDuration, Default: "100ms", Description: "Recheck interval of every wait loop"},
		{Key: "launch.timeout", Type: TypeDuration, Default: "0s", Description: "Limit on helper start-up and game discovery (0 waits forever)"},
		{Key: "monitor.timeout", Type: TypeDuration, Default: "0s", Description: "Limit on the whole recording (0 waits forever)"},
		{Key: "window.wait", Type: TypeDuration, Default: "30s", Description: "How long to wait for the game window"},
		{Key: "discovery.multiple", Type: TypeString, Default: "fail", Choices: []string{"fail", "oldest"}, Description: "What to do when the helper starts several processes"},

		// Bookkeeping
		{Key: "metrics.textfile", Type: TypePath, Description: "Write Prometheus run metrics to this file", EnvVar: "RENDERDEMO_METRICS_TEXTFILE"},
		{Key: "history.enabled", Type: TypeBool, Default: "true", Description: "Record every run in the history directory"},
		{Key: "history.max-count", Type: TypeInt, Default: "100", Description: "Run records to keep (0 keeps all)"},
		{Key: "history.max-age-days", Type: TypeInt, Default: "90", Description: "Age in days after which run records are pruned (0 keeps all)"},
		{Key: "clean.min-age", Type: TypeDuration, Default: "1h", Description: "Minimum age of a staging directory before clean removes it"},
	}
}

func defaultCommandOptions() []ConfigOption {
	return []ConfigOption{
		{Key: "every", Section: "clean", Type: TypeDuration, Description: "Repeat the sweep at this interval instead of exiting"},
		{Key: "limit", Section: "history", Type: TypeInt, Default: "20", Description: "Number of runs listed"},
	}
}
