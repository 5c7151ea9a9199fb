package job

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Input is the raw, unvalidated description of a job. Field names follow
// the render flags.
type Input struct {
	Demo      string
	Start     string
	End       string
	Out       string
	SDRDir    string
	ExePath   string
	TFDir     string
	Profile   string
	Cmd       string
	Launch    string
	Window    string
	Overwrite string
	LogLevel  string
	ConfigDir string
	TempDir   string
	Test      bool
}

// fields maps flag names to Input fields.
func (in *Input) fields() map[string]*string {
	return map[string]*string{
		"demo":      &in.Demo,
		"start":     &in.Start,
		"end":       &in.End,
		"out":       &in.Out,
		"sdrdir":    &in.SDRDir,
		"exepath":   &in.ExePath,
		"tfdir":     &in.TFDir,
		"profile":   &in.Profile,
		"cmd":       &in.Cmd,
		"launch":    &in.Launch,
		"window":    &in.Window,
		"overwrite": &in.Overwrite,
		"loglevel":  &in.LogLevel,
		"configdir": &in.ConfigDir,
		"tempdir":   &in.TempDir,
	}
}

// Set assigns the field for flag name. It is used to apply explicitly set
// flags on top of a job file.
func (in *Input) Set(name, value string) error {
	if name == "test" {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("job: test: %w", err)
		}
		in.Test = b
		return nil
	}
	f, ok := in.fields()[name]
	if !ok {
		return fmt.Errorf("job: unknown field %q", name)
	}
	*f = value
	return nil
}

// Defaults fills every empty field of in from d.
func (in *Input) Defaults(d Input) {
	src := d.fields()
	for name, f := range in.fields() {
		if *f == "" {
			*f = *src[name]
		}
	}
}

// scalar accepts any YAML scalar as its literal text, so ticks may be
// written as numbers and "max" alike.
type scalar string

func (s *scalar) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar value", n.Line)
	}
	*s = scalar(n.Value)
	return nil
}

// fileInput is the YAML job file layout.
type fileInput struct {
	Demo      string `yaml:"demo"`
	Start     scalar `yaml:"start"`
	End       scalar `yaml:"end"`
	Out       string `yaml:"out"`
	SDRDir    string `yaml:"sdrdir"`
	ExePath   string `yaml:"exepath"`
	TFDir     string `yaml:"tfdir"`
	Profile   string `yaml:"profile"`
	Cmd       string `yaml:"cmd"`
	Launch    string `yaml:"launch"`
	Window    string `yaml:"window"`
	Overwrite string `yaml:"overwrite"`
	LogLevel  string `yaml:"loglevel"`
	ConfigDir string `yaml:"configdir"`
	TempDir   string `yaml:"tempdir"`
	Test      bool   `yaml:"test"`
}

// Decode reads a YAML job file. Unknown keys are an error.
func Decode(r io.Reader) (*Input, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f fileInput
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &Input{}, nil
		}
		return nil, fmt.Errorf("job: %w", err)
	}
	return &Input{
		Demo:      f.Demo,
		Start:     string(f.Start),
		End:       string(f.End),
		Out:       f.Out,
		SDRDir:    f.SDRDir,
		ExePath:   f.ExePath,
		TFDir:     f.TFDir,
		Profile:   f.Profile,
		Cmd:       f.Cmd,
		Launch:    f.Launch,
		Window:    f.Window,
		Overwrite: f.Overwrite,
		LogLevel:  f.LogLevel,
		ConfigDir: f.ConfigDir,
		TempDir:   f.TempDir,
		Test:      f.Test,
	}, nil
}

// LoadFile reads the YAML job file at path.
func LoadFile(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("job: %w", err)
	}
	in, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return in, nil
}

// Encode writes in as a YAML job file, omitting empty fields.
func Encode(w io.Writer, in *Input) error {
	doc := make(map[string]any)
	for name, f := range in.fields() {
		if *f != "" {
			doc[name] = *f
		}
	}
	if in.Test {
		doc["test"] = true
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
