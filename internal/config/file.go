package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile decodes the YAML file at path over cfg. Keys absent from the file
// keep their current values; unknown keys are rejected so typos surface.
//
// Example:
//
//	tone_mode: pq
//	tone_param: 2.4
//	embed_metadata: true
//	metadata_mode: estimated
//	batch: true
//	extensions: [.mp4, .mov]
//	kill_timeout: 30s
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: config file: %v", ErrInvalidInput, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: config file %s: %v", ErrInvalidInput, path, err)
	}
	return nil
}
