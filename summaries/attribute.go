// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package summaries builds the summary graphs of an original graph and their correspondence
// (map) files: attribute summaries, which group entities by the set of properties they use,
// and the conversion of the output of an external bisimulation tool into map files.
package summaries

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gomlx/rgcnsum/internal/fsutil"
	"github.com/gomlx/rgcnsum/internal/sets"
	"github.com/gomlx/rgcnsum/rdf"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// Variant of attribute summary: which properties of an entity define its summary node.
type Variant string

const (
	Outgoing   Variant = "out"
	Incoming   Variant = "in"
	InOutgoing Variant = "in_out"
)

// Variants are all attribute summary variants, in the order they are written.
var Variants = []Variant{Outgoing, Incoming, InOutgoing}

// NoHash is the summary node of entities without properties in a variant.
const NoHash = "0"

// Properties holds the predicates used by each entity, keyed by normalized term.
// Literal objects are all accounted under rdf.LiteralNode.
type Properties struct {
	Out, In map[string]sets.Set[string]
}

// entityKey is the key of a term in Properties.
func entityKey(term string) string {
	if rdf.IsLiteral(term) {
		return rdf.LiteralNode
	}
	return rdf.Normalize(term)
}

// CollectProperties returns the outgoing and incoming predicates of every entity in triples.
func CollectProperties(triples []rdf.Triple) *Properties {
	p := &Properties{
		Out: make(map[string]sets.Set[string]),
		In:  make(map[string]sets.Set[string]),
	}
	add := func(m map[string]sets.Set[string], key, pred string) {
		set, found := m[key]
		if !found {
			set = sets.Make[string]()
			m[key] = set
		}
		set.Insert(pred)
	}
	for _, t := range triples {
		pred := rdf.Normalize(t.Predicate)
		add(p.Out, entityKey(t.Subject), pred)
		add(p.In, entityKey(t.Object), pred)
	}
	return p
}

// hashSet hashes the sorted, comma-joined predicates.
func hashSet(set sets.Set[string]) uint64 {
	return xxhash.Sum64String(strings.Join(sets.Sorted(set), ","))
}

// Hashes returns the summary node (a decimal hash) of every entity with properties in the variant.
// For InOutgoing, the hash is the (wrapping) sum of the incoming and outgoing hashes.
func (p *Properties) Hashes(v Variant) (map[string]string, error) {
	hashes := make(map[string]string)
	switch v {
	case Outgoing, Incoming:
		m := p.Out
		if v == Incoming {
			m = p.In
		}
		for key, set := range m {
			hashes[key] = strconv.FormatUint(hashSet(set), 10)
		}
	case InOutgoing:
		combined := make(map[string]uint64, len(p.Out)+len(p.In))
		for key, set := range p.Out {
			combined[key] += hashSet(set)
		}
		for key, set := range p.In {
			combined[key] += hashSet(set)
		}
		for key, h := range combined {
			hashes[key] = strconv.FormatUint(h, 10)
		}
	default:
		return nil, errors.Errorf("unknown attribute summary variant %q", v)
	}
	return hashes, nil
}

// summaryOfPredicate is written in map files; mapping.Parse matches it case-insensitively.
const summaryOfPredicate = "<isSummaryOf>"

// MapEntry pairs an original node with its summary node.
type MapEntry struct {
	Summary, Original string
}

// String returns the entry as a correspondence line.
func (e MapEntry) String() string {
	return fmt.Sprintf("<%s> %s %s .", e.Summary, summaryOfPredicate, e.Original)
}

// BuildAttributeSummary replaces every subject and object of triples by its summary node.
// It returns the summary triples (without duplicates, in order of first appearance) and one
// MapEntry per distinct original node. Entities missing from hashes map to NoHash, and so do
// literals: rdf.LiteralNode only gathers their predicates.
func BuildAttributeSummary(triples []rdf.Triple, hashes map[string]string) (summary []rdf.Triple, entries []MapEntry) {
	summaryOf := func(term string) string {
		if rdf.IsLiteral(term) {
			return NoHash
		}
		if h, found := hashes[rdf.Normalize(term)]; found {
			return h
		}
		return NoHash
	}
	seenNodes := sets.Make[string]()
	seenTriples := sets.Make[rdf.Triple]()
	for _, t := range triples {
		for _, term := range []string{t.Subject, t.Object} {
			node := rdf.Normalize(term)
			if seenNodes.Has(node) {
				continue
			}
			seenNodes.Insert(node)
			entries = append(entries, MapEntry{Summary: summaryOf(term), Original: node})
		}
		st := rdf.Triple{
			Subject:   "<" + summaryOf(t.Subject) + ">",
			Predicate: t.Predicate,
			Object:    "<" + summaryOf(t.Object) + ">",
		}
		if seenTriples.Has(st) {
			continue
		}
		seenTriples.Insert(st)
		summary = append(summary, st)
	}
	return
}

// readTriples reads path, showing a progress bar over the bytes read if showProgress.
func readTriples(path string, showProgress bool) ([]rdf.Triple, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open triples file")
	}
	defer func() { _ = f.Close() }()
	var r io.Reader = f
	if showProgress {
		info, err := f.Stat()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to stat %q", path)
		}
		bar := progressbar.DefaultBytes(info.Size(), "reading "+filepath.Base(path))
		defer func() { _ = bar.Finish() }()
		r = io.TeeReader(f, bar)
	}
	if r, err = rdf.NewReader(r, path); err != nil {
		return nil, err
	}
	var triples []rdf.Triple
	err = rdf.Scan(r, path, func(t rdf.Triple) error {
		triples = append(triples, t)
		return nil
	})
	return triples, err
}

// writeLines writes one line per element into path.
func writeLines[T fmt.Stringer](path string, lines []T) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", path)
	}
	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line.String()); err != nil {
			_ = f.Close()
			return errors.Wrapf(err, "failed to write to %q", path)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to write to %q", path)
	}
	return errors.Wrapf(f.Close(), "failed to close %q", path)
}

// AttributeFiles are the files written for one variant.
type AttributeFiles struct {
	Variant            Variant
	SummaryFile        string
	MapFile            string
	NumSummaryNodes    int
	NumSummaryTriples  int
	NumOriginalEntries int
}

// WriteAttributeSummaries writes, for every variant, the summary graph of the triple file in
// originalPath into sumDir/<name>_sum_<variant>.nt and its map file into
// mapDir/<name>_map_<variant>.nt.
func WriteAttributeSummaries(originalPath, sumDir, mapDir, name string, showProgress bool) ([]AttributeFiles, error) {
	triples, err := readTriples(originalPath, showProgress)
	if err != nil {
		return nil, err
	}
	if len(triples) == 0 {
		return nil, errors.Errorf("no triples in %q", originalPath)
	}
	for _, dir := range []string{sumDir, mapDir} {
		if err := fsutil.EnsureDir(dir); err != nil {
			return nil, err
		}
	}
	props := CollectProperties(triples)
	var written []AttributeFiles
	for _, v := range Variants {
		hashes, err := props.Hashes(v)
		if err != nil {
			return nil, err
		}
		summary, entries := BuildAttributeSummary(triples, hashes)
		files := AttributeFiles{
			Variant:            v,
			SummaryFile:        filepath.Join(sumDir, fmt.Sprintf("%s_sum_%s.nt", name, v)),
			MapFile:            filepath.Join(mapDir, fmt.Sprintf("%s_map_%s.nt", name, v)),
			NumSummaryTriples:  len(summary),
			NumOriginalEntries: len(entries),
		}
		summaryNodes := sets.Make[string]()
		for _, e := range entries {
			summaryNodes.Insert(e.Summary)
		}
		files.NumSummaryNodes = len(summaryNodes)
		if err := writeLines(files.SummaryFile, summary); err != nil {
			return nil, err
		}
		if err := writeLines(files.MapFile, entries); err != nil {
			return nil, err
		}
		klog.Infof("Attribute summary %q of %s: %d summary nodes for %d original nodes, %d triples",
			v, name, files.NumSummaryNodes, files.NumOriginalEntries, files.NumSummaryTriples)
		written = append(written, files)
	}
	return written, nil
}
