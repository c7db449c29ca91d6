// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"path/filepath"

	"github.com/gomlx/rgcnsum/internal/fsutil"
	"github.com/gomlx/rgcnsum/internal/workerspool"
	"github.com/gomlx/rgcnsum/labels"
	"github.com/gomlx/rgcnsum/mapping"
	"github.com/gomlx/rgcnsum/rdf"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// SummaryFiles lists the summary graph files and the map files of the technique, paired by
// sorted order. Differing counts return ErrFileCountMismatch.
func SummaryFiles(root string, cfg Config, technique string) (sumFiles, mapFiles []string, err error) {
	paths, found := cfg.Summaries[technique]
	if !found {
		return nil, nil, errors.Errorf("dataset %q has no %q summaries configured", cfg.Name, technique)
	}
	sumDir, err := fsutil.ResolvePath(root, paths.Sum)
	if err != nil {
		return nil, nil, err
	}
	mapDir, err := fsutil.ResolvePath(root, paths.Map)
	if err != nil {
		return nil, nil, err
	}
	if sumFiles, err = fsutil.ListDataFiles(sumDir); err != nil {
		return nil, nil, err
	}
	if mapFiles, err = fsutil.ListDataFiles(mapDir); err != nil {
		return nil, nil, err
	}
	if len(sumFiles) != len(mapFiles) {
		return nil, nil, errors.Wrapf(ErrFileCountMismatch, "%d files in %q, %d files in %q",
			len(sumFiles), sumDir, len(mapFiles), mapDir)
	}
	if len(sumFiles) == 0 {
		return nil, nil, errors.Errorf("no summary files in %q", sumDir)
	}
	return sumFiles, mapFiles, nil
}

// Load reads the original graph, its labels and all its summary graphs with their maps, and
// builds the Dataset (see Build). The root is the data directory relative paths in cfg refer to.
//
// Summary files are loaded in parallel.
func Load(root string, cfg Config, technique string, seed uint64) (*Dataset, error) {
	sumFiles, mapFiles, err := SummaryFiles(root, cfg, technique)
	if err != nil {
		return nil, err
	}
	originalPath, err := fsutil.ResolvePath(root, cfg.Original)
	if err != nil {
		return nil, err
	}
	labelsPath, err := fsutil.ResolvePath(root, cfg.LabelsFile())
	if err != nil {
		return nil, err
	}

	klog.Infof("%s: loading original graph from %q", cfg.Name, originalPath)
	original, err := rdf.LoadGraph(originalPath, nil)
	if err != nil {
		return nil, err
	}
	assertions, err := labels.ReadAssertions(labelsPath, cfg.Predicate())
	if err != nil {
		return nil, err
	}
	classes := labels.ClassesFromAssertions(assertions)
	if classes.Len() == 0 {
		return nil, errors.Errorf("no %s assertions found in %q", cfg.Predicate(), labelsPath)
	}
	org2type := labels.ProjectOriginal(assertions, classes)

	summaries := make([]*GraphDataset, len(sumFiles))
	err = workerspool.New().Run(len(sumFiles), func(i int) error {
		g, err := rdf.LoadGraph(sumFiles[i], original.Relations)
		if err != nil {
			return err
		}
		m, err := mapping.Load(mapFiles[i])
		if err != nil {
			return err
		}
		klog.V(1).Infof("%s: summary %q paired with map %q", cfg.Name, sumFiles[i], mapFiles[i])
		summaries[i] = &GraphDataset{Name: filepath.Base(sumFiles[i]), Graph: g, Mapping: m}
		return nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "while loading %q summaries of %q", technique, cfg.Name)
	}
	return Build(cfg.Name, technique, original, classes, org2type, summaries, seed)
}
