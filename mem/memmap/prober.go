package memmap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// A Prober queries the platform for its memory map. The handle is an opaque
// value handed over by the boot loader.
type Prober interface {
	Probe(handle uint64) Map
}

// StaticProber always reports the same memory map.
type StaticProber struct {
	Regions Regions
}

// Probe returns the fixed map, ignoring the handle.
func (p StaticProber) Probe(_ uint64) Map {
	return p.Regions
}

type document struct {
	Regions Regions `yaml:"regions"`
}

// Parse decodes a memory map document. Both YAML and JSON documents are
// accepted, and addresses may be written as hexadecimal literals.
//
//	regions:
//	  - {start: 0x0, length: 0x9fc00, usable: true}
func Parse(data []byte) (Regions, error) {
	doc := document{}

	err := yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse memory map: %w", err)
	}

	if doc.Regions == nil {
		doc.Regions = Regions{}
	}

	return doc.Regions, nil
}

// LoadFile reads and parses a memory map document from the given path.
func LoadFile(path string) (Regions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read memory map %s: %w", path, err)
	}

	return Parse(data)
}

// FileProber reports the memory map stored in a file. The file is read on
// every probe.
type FileProber struct {
	Path string
}

// Probe loads the map from the file. Since probing cannot fail, an
// unreadable file is reported as an empty map.
func (p FileProber) Probe(_ uint64) Map {
	regions, err := LoadFile(p.Path)
	if err != nil {
		return Regions{}
	}

	return regions
}
