// Package manifest loads the three documents the testability checker
// consumes: the framework compatibility matrix and the framework- and
// device-side HAL manifests. Documents are YAML files validated against an
// embedded JSON Schema before being converted into read-only views.
package manifest

import (
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/devicelab/haltest/pkg/hal"
)

type interfaceDoc struct {
	Name      string   `yaml:"name"`
	Instances []string `yaml:"instances"`
}

type matrixDoc struct {
	Hals []matrixHalDoc `yaml:"hals"`
}

type matrixHalDoc struct {
	Name       string         `yaml:"name"`
	Optional   bool           `yaml:"optional"`
	Versions   []string       `yaml:"versions"`
	Interfaces []interfaceDoc `yaml:"interfaces"`
}

type manifestDoc struct {
	Hals []manifestHalDoc `yaml:"hals"`
}

type manifestHalDoc struct {
	Name       string         `yaml:"name"`
	Version    string         `yaml:"version"`
	Transport  string         `yaml:"transport"`
	Arch       string         `yaml:"arch"`
	Interfaces []interfaceDoc `yaml:"interfaces"`
}

// LoadMatrix reads, validates and converts a compatibility matrix document.
func LoadMatrix(path string) (*hal.CompatibilityMatrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load compatibility matrix: %w", err)
	}
	m, err := ParseMatrix(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseMatrix validates and converts a compatibility matrix document.
func ParseMatrix(data []byte) (*hal.CompatibilityMatrix, error) {
	if err := validate(matrixSchema, data); err != nil {
		return nil, fmt.Errorf("compatibility matrix: %w", err)
	}
	var doc matrixDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("compatibility matrix: %w", err)
	}
	hals := make([]*hal.MatrixHal, 0, len(doc.Hals))
	for i, h := range doc.Hals {
		entry, err := h.toMatrixHal()
		if err != nil {
			return nil, fmt.Errorf("compatibility matrix: hal %d (%s): %w", i, h.Name, err)
		}
		hals = append(hals, entry)
	}
	return hal.NewCompatibilityMatrix(hals), nil
}

// LoadManifest reads, validates and converts a HAL manifest document.
func LoadManifest(path string) (*hal.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load hal manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseManifest validates and converts a HAL manifest document.
func ParseManifest(data []byte) (*hal.Manifest, error) {
	if err := validate(manifestSchema, data); err != nil {
		return nil, fmt.Errorf("hal manifest: %w", err)
	}
	var doc manifestDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("hal manifest: %w", err)
	}
	hals := make([]*hal.ManifestHal, 0, len(doc.Hals))
	for i, h := range doc.Hals {
		entry, err := h.toManifestHal()
		if err != nil {
			return nil, fmt.Errorf("hal manifest: hal %d (%s): %w", i, h.Name, err)
		}
		hals = append(hals, entry)
	}
	return hal.NewManifest(hals), nil
}

func validate(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}

func (d matrixHalDoc) toMatrixHal() (*hal.MatrixHal, error) {
	versions := make([]hal.VersionRange, 0, len(d.Versions))
	for _, vs := range d.Versions {
		r, err := hal.ParseVersionRange(vs)
		if err != nil {
			return nil, err
		}
		versions = append(versions, r)
	}
	return &hal.MatrixHal{
		Name:       d.Name,
		Versions:   versions,
		Optional:   d.Optional,
		Interfaces: toInterfaces(d.Interfaces),
	}, nil
}

func (d manifestHalDoc) toManifestHal() (*hal.ManifestHal, error) {
	version, err := hal.ParseVersion(d.Version)
	if err != nil {
		return nil, err
	}
	transport, err := hal.ParseTransport(d.Transport)
	if err != nil {
		return nil, err
	}
	arch, err := hal.ParseArch(d.Arch)
	if err != nil {
		return nil, err
	}
	if transport == hal.TransportPassthrough && arch == hal.ArchNone {
		return nil, fmt.Errorf("passthrough entry must declare arch")
	}
	if transport == hal.TransportBinderized && arch != hal.ArchNone {
		return nil, fmt.Errorf("arch is only valid for passthrough entries")
	}
	return &hal.ManifestHal{
		Name:       d.Name,
		Version:    version,
		Transport:  transport,
		Arch:       arch,
		Interfaces: toInterfaces(d.Interfaces),
	}, nil
}

func toInterfaces(docs []interfaceDoc) map[string]hal.HalInterface {
	out := make(map[string]hal.HalInterface, len(docs))
	for _, d := range docs {
		out[d.Name] = hal.HalInterface{
			Name:      d.Name,
			Instances: hal.NewInstanceSet(d.Instances...),
		}
	}
	return out
}
