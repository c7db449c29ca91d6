// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dataset

import (
	_ "embed"
	"os"
	"slices"

	"github.com/gomlx/rgcnsum/labels"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Summarization techniques.
const (
	Attribute = "attr"
	Bisim     = "bisim"
)

// Techniques lists the supported summarization techniques.
var Techniques = []string{Attribute, Bisim}

//go:embed datasets.yaml
var defaultRegistry []byte

// Paths of the summary graphs of one summarization technique.
type Paths struct {
	// Sum is the directory of summary graph files.
	Sum string `yaml:"sum"`

	// Map is the directory of map files, one per summary file, in the same sorted order.
	Map string `yaml:"map"`

	// BisimOutput is the directory with the raw output of the bisimulation tool, one
	// sub-directory per run. Only used by the bisimulation map conversion.
	BisimOutput string `yaml:"bisim_output,omitempty"`
}

// Config describes where the files of a dataset are. Relative paths are relative to the data
// directory.
type Config struct {
	Name string `yaml:"-"`

	// Original triple file.
	Original string `yaml:"original"`

	// Labels is the file with the type assertions. Defaults to Original.
	Labels string `yaml:"labels,omitempty"`

	// LabelPredicate of the type assertions. Defaults to rdf:type.
	LabelPredicate string `yaml:"label_predicate,omitempty"`

	Summaries map[string]Paths `yaml:"summaries"`
}

// LabelsFile returns the file with the type assertions.
func (c Config) LabelsFile() string {
	if c.Labels != "" {
		return c.Labels
	}
	return c.Original
}

// Predicate returns the predicate of the type assertions.
func (c Config) Predicate() string {
	if c.LabelPredicate != "" {
		return c.LabelPredicate
	}
	return labels.RDFType
}

// Registry maps dataset names to their configuration.
type Registry map[string]Config

// ParseRegistry parses a YAML registry.
func ParseRegistry(contents []byte) (Registry, error) {
	var r Registry
	if err := yaml.Unmarshal(contents, &r); err != nil {
		return nil, errors.Wrap(err, "failed to parse dataset registry")
	}
	for name, cfg := range r {
		if cfg.Original == "" {
			return nil, errors.Errorf("dataset %q in registry has no original graph", name)
		}
		cfg.Name = name
		r[name] = cfg
	}
	return r, nil
}

// DefaultRegistry returns the registry embedded in the binary.
func DefaultRegistry() Registry {
	r, err := ParseRegistry(defaultRegistry)
	if err != nil {
		panic(err)
	}
	return r
}

// LoadRegistry reads the registry in path, or returns DefaultRegistry if path is empty.
func LoadRegistry(path string) (Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read dataset registry")
	}
	return ParseRegistry(contents)
}

// Names of the registered datasets, sorted.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Get the configuration of the dataset.
func (r Registry) Get(name string) (Config, error) {
	cfg, found := r[name]
	if !found {
		return Config{}, errors.Errorf("unknown dataset %q, registered datasets are %q", name, r.Names())
	}
	return cfg, nil
}
