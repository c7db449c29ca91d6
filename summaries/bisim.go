// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package summaries

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomlx/rgcnsum/internal/fsutil"
	"github.com/gomlx/rgcnsum/internal/sets"
	"github.com/gomlx/rgcnsum/rdf"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Node URIs of the bisimulation tool that stand for blank nodes.
const fluidPrefix = "http://informatik.uni-kiel.de/fluid#"

// NodeFormat converts a node as written by the bisimulation tool back into the term used in
// the original triple file.
type NodeFormat func(node string) string

// formatDefault handles datasets whose literals are typed with an XML schema.
func formatDefault(node string) string {
	if strings.Contains(node, "xmlschema") {
		value, datatype, found := cutLast(node, "^^")
		if !found {
			return `""^^<` + node + ">"
		}
		return value + "^^<" + datatype + ">"
	}
	if strings.HasPrefix(node, fluidPrefix) {
		return "_:" + strings.TrimPrefix(node, fluidPrefix)
	}
	return "<" + node + ">"
}

// formatAM only rewrites URIs: other nodes are already literals.
func formatAM(node string) string {
	if !strings.Contains(node, "http") {
		return node
	}
	if strings.HasPrefix(node, fluidPrefix) {
		return "_:" + strings.TrimPrefix(node, fluidPrefix)
	}
	return "<" + node + ">"
}

// FormatFor returns the node format of the bisimulation output of the dataset.
func FormatFor(datasetName string) (NodeFormat, error) {
	switch datasetName {
	case "AM":
		return formatAM, nil
	case "BGS":
		return nil, errors.Errorf("no bisimulation node format for dataset %s", datasetName)
	}
	return formatDefault, nil
}

// cutLast slices s around the last instance of sep.
func cutLast(s, sep string) (before, after string, found bool) {
	if ii := strings.LastIndex(s, sep); ii >= 0 {
		return s[:ii], s[ii+len(sep):], true
	}
	return s, "", false
}

// Table is a two column table of the bisimulation output, with the rows grouped by the key
// column in order of first appearance.
type Table struct {
	Keys   []string
	Values map[string][]string
}

func (t *Table) add(key, value string) {
	if t.Values == nil {
		t.Values = make(map[string][]string)
	}
	if _, found := t.Values[key]; !found {
		t.Keys = append(t.Keys, key)
	}
	t.Values[key] = append(t.Values[key], value)
}

// ReadTable reads a bisimulation output file: a header line followed by `first,second` rows,
// split on the last comma (the first column may contain commas). If byFirst, rows are keyed by
// the first column, otherwise by the second. format, if not nil, is applied to the first column.
func ReadTable(path string, byFirst bool, format NodeFormat) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open bisimulation output")
	}
	defer func() { _ = f.Close() }()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	t := &Table{Values: make(map[string][]string)}
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if lineNum == 1 || strings.TrimSpace(line) == "" {
			continue
		}
		first, second, found := cutLast(line, ",")
		if !found {
			return nil, &rdf.ParseError{Source: path, Line: lineNum, Text: line, Reason: "expected 2 comma separated fields"}
		}
		if format != nil {
			first = format(first)
		}
		if byFirst {
			t.add(first, second)
		} else {
			t.add(second, first)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "while reading %q", path)
	}
	return t, nil
}

// JoinBisimulation maps every original node of orgByHash to the summary nodes whose hash
// (in sumHashes) it has.
// orgByHash is keyed by the hash of the original nodes, sumHashes by summary node.
func JoinBisimulation(orgByHash, sumHashes *Table) []MapEntry {
	var entries []MapEntry
	for _, sumNode := range sumHashes.Keys {
		for _, hash := range sumHashes.Values[sumNode] {
			for _, node := range orgByHash.Values[hash] {
				entries = append(entries, MapEntry{Summary: sumNode, Original: node})
			}
		}
	}
	return entries
}

// CountUnmatched returns how many original nodes of entries are not nodes of the original graph.
func CountUnmatched(entries []MapEntry, originalNodes map[string]int) int {
	count := 0
	for _, e := range entries {
		if _, found := originalNodes[rdf.Normalize(e.Original)]; !found {
			count++
		}
	}
	return count
}

// ConvertBisimulation converts every run directory `<outputDir>/<name>_<k>` of the bisimulation
// tool into the map file mapDir/<datasetName>_bisim_map_<k>.nt, and returns the files written.
//
// A run directory holds the table of the original nodes (a file whose name starts with
// "orgNode", with `node,hash` rows) and the table of the summary nodes (`summaryNode,hash`).
// Mapped nodes absent from the original graph are counted and logged as a warning.
func ConvertBisimulation(outputDir, mapDir, datasetName string, original *rdf.Graph) ([]string, error) {
	format, err := FormatFor(datasetName)
	if err != nil {
		return nil, err
	}
	runs, err := listNonHidden(outputDir)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.Errorf("no bisimulation output found in %q", outputDir)
	}
	if err := fsutil.EnsureDir(mapDir); err != nil {
		return nil, err
	}
	var written []string
	for _, run := range runs {
		runDir := filepath.Join(outputDir, run)
		files, err := fsutil.ListDataFiles(runDir)
		if err != nil {
			return nil, err
		}
		var orgByHash, sumHashes *Table
		for _, file := range files {
			if strings.HasPrefix(filepath.Base(file), "orgNode") {
				orgByHash, err = ReadTable(file, false, format)
			} else {
				sumHashes, err = ReadTable(file, true, nil)
			}
			if err != nil {
				return nil, err
			}
		}
		if orgByHash == nil || sumHashes == nil {
			return nil, errors.Errorf("bisimulation run %q needs an orgNode table and a summary table, found %d files",
				runDir, len(files))
		}
		entries := JoinBisimulation(orgByHash, sumHashes)
		if original != nil {
			if unmatched := CountUnmatched(entries, original.Index); unmatched > 0 {
				klog.Warningf("%s: %d mapped nodes (probably literals) are not nodes of the original graph (%d nodes)",
					run, unmatched, original.NumNodes())
			}
		}
		k := run
		if ii := strings.LastIndex(run, "_"); ii >= 0 {
			k = run[ii+1:]
		}
		path := filepath.Join(mapDir, fmt.Sprintf("%s_bisim_map_%s.nt", datasetName, k))
		if err := writeLines(path, entries); err != nil {
			return nil, err
		}
		klog.Infof("Bisimulation map %q: %d entries for %d summary nodes", path, len(entries), len(sumHashes.Keys))
		written = append(written, path)
	}
	return written, nil
}

// listNonHidden returns the sorted names of the directories in dir not starting with ".".
func listNonHidden(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %q", dir)
	}
	names := sets.Make[string]()
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names.Insert(e.Name())
		}
	}
	return sets.Sorted(names), nil
}
