package command

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/joeycumines/renderdemo/internal/config"
	"github.com/joeycumines/renderdemo/internal/job"
	"github.com/joeycumines/renderdemo/internal/storage"
)

// helpTexter is implemented by commands with help beyond their flags.
type helpTexter interface {
	HelpText() string
}

// HelpCommand displays help information for commands.
type HelpCommand struct {
	*BaseCommand
	registry *Registry
}

// NewHelpCommand creates a new help command.
func NewHelpCommand(registry *Registry) *HelpCommand {
	return &HelpCommand{
		BaseCommand: NewBaseCommand(
			"help",
			"Display help information for commands",
			"help [command]",
		),
		registry: registry,
	}
}

// Execute displays help information.
func (c *HelpCommand) Execute(args []string, stdout, stderr io.Writer) error {
	prog := c.registry.Program
	if len(args) == 0 {
		_, _ = fmt.Fprintf(stdout, "%s - automatically render out TF2 demos using SourceDemoRender\n", prog)
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintf(stdout, "Usage: %s <command> [options] [args...]\n", prog)
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Available commands:")

		w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
		for _, name := range c.registry.List() {
			if cmd, err := c.registry.Get(name); err == nil {
				_, _ = fmt.Fprintf(w, "  %s\t%s\n", name, cmd.Description())
			}
		}
		_ = w.Flush()

		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintf(stdout, "Use '%s help <command>' for more information about a specific command (includes flags).\n", prog)
		return nil
	}

	cmdName := args[0]
	cmd, err := c.registry.Get(cmdName)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", cmdName)
		return &ExitError{Code: 2, Err: err}
	}

	_, _ = fmt.Fprintf(stdout, "Command: %s\n", cmd.Name())
	_, _ = fmt.Fprintf(stdout, "Description: %s\n", cmd.Description())
	_, _ = fmt.Fprintf(stdout, "Usage: %s %s\n", prog, cmd.Usage())

	// Show command-specific flags by invoking SetupFlags on a temporary FlagSet
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	buf := &bytes.Buffer{}
	fs.SetOutput(buf)
	cmd.SetupFlags(fs)
	fs.PrintDefaults()
	if buf.Len() > 0 {
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Flags:")
		_, _ = fmt.Fprint(stdout, buf.String())
	}
	if h, ok := cmd.(helpTexter); ok {
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprint(stdout, h.HelpText())
	}
	return nil
}

// VersionCommand displays version information.
type VersionCommand struct {
	*BaseCommand
	version string
}

// NewVersionCommand creates a new version command.
func NewVersionCommand(version string) *VersionCommand {
	return &VersionCommand{
		BaseCommand: NewBaseCommand(
			"version",
			"Display version information",
			"version",
		),
		version: version,
	}
}

// Execute displays version information.
func (c *VersionCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return &ExitError{Code: 2, Err: fmt.Errorf("unexpected arguments")}
	}
	_, _ = fmt.Fprintf(stdout, "renderdemo version %s\n", c.version)
	return nil
}

// ConfigCommand manages configuration.
type ConfigCommand struct {
	*BaseCommand
	config     *config.Config
	schema     *config.ConfigSchema
	configPath string
	showAll    bool
}

// NewConfigCommand creates a new config command. If configPath is empty,
// the default location is used when persisting.
func NewConfigCommand(cfg *config.Config, configPath string) *ConfigCommand {
	return &ConfigCommand{
		BaseCommand: NewBaseCommand(
			"config",
			"Manage configuration settings",
			"config [options] [get|set|validate|schema] [key] [value]",
		),
		config:     cfg,
		schema:     config.DefaultSchema(),
		configPath: configPath,
	}
}

// SetupFlags configures the flags for the config command.
func (c *ConfigCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.showAll, "all", false, "Show the effective value of every option")
}

// Execute manages configuration.
func (c *ConfigCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		if c.showAll {
			c.printAll(stdout)
			return nil
		}
		_, _ = fmt.Fprintln(stdout, "Configuration management:")
		_, _ = fmt.Fprintln(stdout, "  config <key>              - Get configuration value")
		_, _ = fmt.Fprintln(stdout, "  config <key> <value>      - Set configuration value")
		_, _ = fmt.Fprintln(stdout, "  config get <key>          - Get configuration value")
		_, _ = fmt.Fprintln(stdout, "  config set <key> <value>  - Set configuration value")
		_, _ = fmt.Fprintln(stdout, "  config -all               - Show every effective value")
		_, _ = fmt.Fprintln(stdout, "  config validate           - Validate configuration")
		_, _ = fmt.Fprintln(stdout, "  config schema             - Show configuration schema")
		return nil
	}

	switch args[0] {
	case "validate":
		return c.executeValidate(stdout)
	case "schema":
		_, _ = fmt.Fprint(stdout, c.schema.FormatHelp())
		return nil
	case "get":
		args = args[1:]
		if len(args) != 1 {
			break
		}
		return c.get(args[0], stdout)
	case "set":
		args = args[1:]
		if len(args) != 2 {
			break
		}
		return c.set(args[0], args[1], stdout, stderr)
	default:
		switch len(args) {
		case 1:
			return c.get(args[0], stdout)
		case 2:
			return c.set(args[0], args[1], stdout, stderr)
		}
	}

	_, _ = fmt.Fprintln(stderr, "Invalid number of arguments")
	return &ExitError{Code: 2, Err: fmt.Errorf("invalid arguments")}
}

func (c *ConfigCommand) get(key string, stdout io.Writer) error {
	// Schema-aware: checks env, then config, then default.
	value := c.schema.Resolve(c.config, key)
	if value != "" {
		_, _ = fmt.Fprintf(stdout, "%s: %s\n", key, value)
	} else if _, exists := c.config.GetGlobalOption(key); exists || c.schema.IsKnown("", key) {
		_, _ = fmt.Fprintf(stdout, "%s: \n", key)
	} else {
		_, _ = fmt.Fprintf(stdout, "Configuration key '%s' not found\n", key)
	}
	return nil
}

func (c *ConfigCommand) set(key, value string, stdout, stderr io.Writer) error {
	probe := config.NewConfig()
	probe.SetGlobalOption(key, value)
	if issues := config.ValidateConfig(probe, c.schema); len(issues) > 0 {
		_, _ = fmt.Fprintf(stderr, "Cannot set %s: %s\n", key, issues[0])
		return &ExitError{Code: 2, Err: fmt.Errorf("invalid option %s", key)}
	}
	c.config.SetGlobalOption(key, value)

	configPath := c.configPath
	if configPath == "" {
		// Best-effort resolve; if it fails, skip disk write
		configPath, _ = config.GetConfigPath()
	}
	if configPath != "" {
		if err := config.SetKeyInFile(configPath, key, value); err != nil {
			_, _ = fmt.Fprintf(stderr, "Warning: failed to persist config to disk: %v\n", err)
		}
	}

	_, _ = fmt.Fprintf(stdout, "Set configuration: %s = %s\n", key, value)
	return nil
}

func (c *ConfigCommand) printAll(stdout io.Writer) {
	w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
	for _, o := range c.schema.GlobalOptions() {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", o.Key, c.schema.Resolve(c.config, o.Key))
	}
	sections := make([]string, 0, len(c.config.Commands))
	for sec := range c.config.Commands {
		sections = append(sections, sec)
	}
	sort.Strings(sections)
	for _, sec := range sections {
		keys := make([]string, 0, len(c.config.Commands[sec]))
		for k := range c.config.Commands[sec] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_, _ = fmt.Fprintf(w, "[%s] %s\t%s\n", sec, k, c.config.Commands[sec][k])
		}
	}
	_ = w.Flush()
}

// executeValidate validates the current config against the schema.
func (c *ConfigCommand) executeValidate(stdout io.Writer) error {
	issues := config.ValidateConfig(c.config, c.schema)
	if len(issues) == 0 {
		_, _ = fmt.Fprintln(stdout, "Configuration is valid.")
		return nil
	}
	_, _ = fmt.Fprintf(stdout, "Configuration has %d issue(s):\n", len(issues))
	for _, issue := range issues {
		_, _ = fmt.Fprintf(stdout, "  - %s\n", issue)
	}
	return &ExitError{Code: 1, Err: fmt.Errorf("configuration has %d issue(s)", len(issues))}
}

// InitCommand writes a starter configuration file, and optionally a job
// file template.
type InitCommand struct {
	*BaseCommand
	configPath string
	force      bool
	jobPath    string
}

// NewInitCommand creates a new init command writing to configPath, or the
// default location when empty.
func NewInitCommand(configPath string) *InitCommand {
	return &InitCommand{
		BaseCommand: NewBaseCommand(
			"init",
			"Initialize renderdemo configuration",
			"init [options]",
		),
		configPath: configPath,
	}
}

// SetupFlags configures the flags for the init command.
func (c *InitCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.force, "force", false, "Overwrite existing files")
	fs.StringVar(&c.jobPath, "job", "", "Also write a job file template to this path")
}

// Execute initializes the environment.
func (c *InitCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return &ExitError{Code: 2, Err: fmt.Errorf("unexpected arguments")}
	}

	configPath := c.configPath
	if configPath == "" {
		var err error
		if configPath, err = config.GetConfigPath(); err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	if _, err := os.Stat(configPath); err == nil && !c.force {
		_, _ = fmt.Fprintf(stdout, "Configuration already exists at: %s\n", configPath)
		_, _ = fmt.Fprintln(stdout, "Use -force to overwrite existing configuration")
	} else {
		if err := storage.AtomicWriteFile(configPath, []byte(defaultConfigText(config.DefaultSchema())), 0644); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		if _, err := config.LoadFromPath(configPath); err != nil {
			_, _ = fmt.Fprintf(stderr, "Warning: Failed to load created config: %v\n", err)
		}
		_, _ = fmt.Fprintf(stdout, "Initialized renderdemo configuration at: %s\n", configPath)
	}

	if c.jobPath == "" {
		return nil
	}
	if _, err := os.Stat(c.jobPath); err == nil && !c.force {
		_, _ = fmt.Fprintf(stdout, "Job file already exists at: %s\n", c.jobPath)
		return nil
	}
	var buf bytes.Buffer
	if err := job.Encode(&buf, &job.Input{
		Demo:    "demos/my demo",
		Start:   "4100",
		End:     "4700",
		Out:     "airshot.avi",
		Profile: "both",
		Cmd:     "spec_player myname; spec_mode 5",
	}); err != nil {
		return fmt.Errorf("failed to encode job template: %w", err)
	}
	if err := storage.AtomicWriteFile(c.jobPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write job file: %w", err)
	}
	_, _ = fmt.Fprintf(stdout, "Wrote job file template to: %s\n", c.jobPath)
	return nil
}

// defaultConfigText lists every global option commented out at its
// default.
func defaultConfigText(s *config.ConfigSchema) string {
	var b strings.Builder
	b.WriteString("# renderdemo configuration file\n")
	b.WriteString("# Format: optionName remainingLineIsTheValue\n")
	b.WriteString("# Use [command_name] sections for command-specific options\n\n")
	for _, o := range s.GlobalOptions() {
		fmt.Fprintf(&b, "# %s\n", o.Description)
		fmt.Fprintf(&b, "# %s %s\n", o.Key, o.Default)
	}
	for _, sec := range s.Sections() {
		fmt.Fprintf(&b, "\n[%s]\n", sec)
		for _, o := range s.SectionOptions(sec) {
			fmt.Fprintf(&b, "# %s\n", o.Description)
			fmt.Fprintf(&b, "# %s %s\n", o.Key, o.Default)
		}
	}
	return b.String()
}
