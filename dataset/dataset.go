// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dataset builds the training data of an original graph and of its summary graphs:
// enumerated graphs, index/label pairs and the train/validation/test split.
//
// The original graph's labeled nodes are split 60/20/20. Summary graphs are trained on all
// their labeled nodes, with labels aggregated only after the validation and test nodes of the
// original split were removed from the summary preimages.
package dataset

import (
	"maps"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/rgcnsum/labels"
	"github.com/gomlx/rgcnsum/mapping"
	"github.com/gomlx/rgcnsum/rdf"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrFileCountMismatch is returned when the number of summary graph files differs from the
// number of summary map files.
var ErrFileCountMismatch = errors.New("number of summary files and map files differ")

// TestFraction and ValidationFraction of the labeled original nodes.
const (
	TestFraction       = 0.2
	ValidationFraction = 0.2
)

// Split holds parallel slices of node indices and their label vectors.
type Split struct {
	Indices []int32
	Labels  []labels.Vector
}

// Len returns the number of examples in the split.
func (s Split) Len() int { return len(s.Indices) }

// Clone returns a deep copy of the split.
func (s Split) Clone() Split {
	c := Split{Indices: slices.Clone(s.Indices)}
	if s.Labels != nil {
		c.Labels = make([]labels.Vector, len(s.Labels))
		for ii, v := range s.Labels {
			c.Labels[ii] = v.Clone()
		}
	}
	return c
}

// GraphDataset is one graph (original or summary) with its supervision.
type GraphDataset struct {
	// Name identifies the graph, usually its file name.
	Name  string
	Graph *rdf.Graph

	// Mapping to the original graph. Nil for the original graph.
	Mapping *mapping.Mapping

	// Labels per node identifier: org2type for the original graph, the leakage-free sum2type
	// for summary graphs.
	Labels map[string]labels.Vector

	// Val and Test are empty for summary graphs.
	Train, Val, Test Split
}

// Clone returns a deep copy.
func (g *GraphDataset) Clone() *GraphDataset {
	c := &GraphDataset{
		Name:   g.Name,
		Graph:  g.Graph.Clone(),
		Labels: cloneLabels(g.Labels),
		Train:  g.Train.Clone(),
		Val:    g.Val.Clone(),
		Test:   g.Test.Clone(),
	}
	if g.Mapping != nil {
		c.Mapping = g.Mapping.Clone()
	}
	return c
}

func cloneLabels(m map[string]labels.Vector) map[string]labels.Vector {
	if m == nil {
		return nil
	}
	c := make(map[string]labels.Vector, len(m))
	for k, v := range m {
		c[k] = v.Clone()
	}
	return c
}

// Dataset is an original graph with its summary graphs.
type Dataset struct {
	Name      string
	Technique string
	Classes   *labels.Classes
	Original  *GraphDataset
	Summaries []*GraphDataset
}

// NumClasses returns the number of classes of the labels.
func (ds *Dataset) NumClasses() int { return ds.Classes.Len() }

// NumRelations returns the size of the relation vocabulary, shared by all graphs.
func (ds *Dataset) NumRelations() int { return ds.Original.Graph.NumRelations() }

// Clone returns a deep copy, so experiments can't affect each other through the dataset.
// The class and relation vocabularies are immutable and shared.
func (ds *Dataset) Clone() *Dataset {
	c := &Dataset{
		Name:      ds.Name,
		Technique: ds.Technique,
		Classes:   ds.Classes,
		Original:  ds.Original.Clone(),
		Summaries: make([]*GraphDataset, len(ds.Summaries)),
	}
	for ii, s := range ds.Summaries {
		c.Summaries[ii] = s.Clone()
	}
	return c
}

// BuildIndexLabelPairs returns the index and label of every node of labelMap that has a
// non-zero label vector and is enumerated in index. Nodes are visited in sorted order.
//
// Labeled nodes missing from the enumeration (a type assertion for a node without edges)
// are skipped.
func BuildIndexLabelPairs(labelMap map[string]labels.Vector, index map[string]int) ([]int32, []labels.Vector) {
	var (
		indices []int32
		vectors []labels.Vector
		skipped int
	)
	for _, node := range slices.Sorted(maps.Keys(labelMap)) {
		v := labelMap[node]
		if v.IsZero() {
			continue
		}
		idx, found := index[node]
		if !found {
			skipped++
			continue
		}
		indices = append(indices, int32(idx))
		vectors = append(vectors, v.Clone())
	}
	if skipped > 0 {
		klog.V(1).Infof("%d labeled nodes are not in the graph, skipped", skipped)
	}
	return indices, vectors
}

// SplitSizes returns the number of test and validation examples for n examples.
// The rest is used for training.
func SplitSizes(n int) (numTest, numVal int) {
	numTest = int(math.Round(TestFraction * float64(n)))
	numVal = int(math.Round(ValidationFraction * float64(n)))
	return
}

// SplitTrainValTest shuffles the pairs with the given seed and splits them 60/20/20.
// The same seed always yields the same split.
func SplitTrainValTest(indices []int32, vectors []labels.Vector, seed uint64) (train, val, test Split) {
	n := len(indices)
	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)
	numTest, numVal := SplitSizes(n)
	take := func(positions []int) Split {
		s := Split{
			Indices: make([]int32, len(positions)),
			Labels:  make([]labels.Vector, len(positions)),
		}
		for ii, p := range positions {
			s.Indices[ii] = indices[p]
			s.Labels[ii] = vectors[p].Clone()
		}
		return s
	}
	test = take(perm[:numTest])
	val = take(perm[numTest : numTest+numVal])
	train = take(perm[numTest+numVal:])
	return
}

// Build assembles the dataset from the original graph, its labels and the summary graphs
// (each with Name, Graph and Mapping set).
//
// It splits the labeled original nodes, removes the held-out (validation and test) nodes from
// every summary mapping and only then aggregates the summary labels and builds the summary
// training pairs. The summary GraphDataset are modified in place.
func Build(name, technique string, original *rdf.Graph, classes *labels.Classes,
	org2type map[string]labels.Vector, summaries []*GraphDataset, seed uint64) (*Dataset, error) {
	ds := &Dataset{
		Name:      name,
		Technique: technique,
		Classes:   classes,
		Original: &GraphDataset{
			Name:   name,
			Graph:  original,
			Labels: org2type,
		},
		Summaries: summaries,
	}
	indices, vectors := BuildIndexLabelPairs(org2type, original.Index)
	if len(indices) == 0 {
		return nil, errors.Errorf("dataset %q has no labeled node in the original graph", name)
	}
	org := ds.Original
	org.Train, org.Val, org.Test = SplitTrainValTest(indices, vectors, seed)

	heldOut := make([]string, 0, org.Val.Len()+org.Test.Len())
	for _, split := range []Split{org.Val, org.Test} {
		for _, idx := range split.Indices {
			heldOut = append(heldOut, original.Nodes[idx])
		}
	}

	for _, s := range summaries {
		if s.Mapping == nil || s.Graph == nil {
			return nil, errors.Errorf("summary graph %q of dataset %q has no graph or mapping", s.Name, name)
		}
		if s.Graph.Relations.Len() != original.Relations.Len() {
			return nil, errors.Errorf("summary graph %q has %d relations, original graph has %d",
				s.Name, s.Graph.Relations.Len(), original.Relations.Len())
		}
		removed := labels.RemoveTestLeakage(s.Mapping, heldOut)
		s.Labels = labels.AggregateToSummary(s.Mapping, org2type, classes.Len())
		s.Train.Indices, s.Train.Labels = BuildIndexLabelPairs(s.Labels, s.Graph.Index)
		s.Val, s.Test = Split{}, Split{}
		klog.V(1).Infof("summary %q: %d held-out nodes removed from preimages", s.Name, removed)
	}
	ds.LogStatistics()
	return ds, nil
}

// LogStatistics logs the size of every graph in the dataset.
func (ds *Dataset) LogStatistics() {
	org := ds.Original
	klog.Infof("%s: original graph with %s nodes, %s edges, %d relations, %d classes; split train=%d, val=%d, test=%d",
		ds.Name, humanize.Comma(int64(org.Graph.NumNodes())), humanize.Comma(int64(org.Graph.NumEdges())),
		ds.NumRelations(), ds.NumClasses(), org.Train.Len(), org.Val.Len(), org.Test.Len())
	for _, s := range ds.Summaries {
		klog.Infof("%s: summary graph %q with %s nodes (%.1f%% of original), %s edges, %d labeled nodes",
			ds.Name, s.Name, humanize.Comma(int64(s.Graph.NumNodes())),
			100*float64(s.Graph.NumNodes())/float64(max(org.Graph.NumNodes(), 1)),
			humanize.Comma(int64(s.Graph.NumEdges())), s.Train.Len())
	}
}
