package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the configuration file looked up in the working
// directory.
const DefaultFileName = ".autoreload.yml"

const fileHeader = `# autoreload configuration.
# Every key can be overridden with AUTORELOAD_<SECTION>_<KEY>, for example
# AUTORELOAD_SERVER_PORT=9000, or with the matching command line flag.
`

// MarshalYAML writes the interval in its human readable form ("500ms")
// so the file reads back through viper's duration decoding.
func (w WatchConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Paths    []string `yaml:"paths"`
		Interval string   `yaml:"interval"`
	}{
		Paths:    w.Paths,
		Interval: w.Interval.String(),
	}, nil
}

// Encode renders cfg as the YAML document written by WriteFile.
func Encode(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fileHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding configuration: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes cfg to path. An existing file is only replaced when
// overwrite is set.
func WriteFile(path string, cfg *Config, overwrite bool) error {
	data, err := Encode(cfg)
	if err != nil {
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
