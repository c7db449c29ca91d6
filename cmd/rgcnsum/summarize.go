// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/gomlx/rgcnsum/dataset"
	"github.com/gomlx/rgcnsum/internal/fsutil"
	"github.com/gomlx/rgcnsum/rdf"
	"github.com/gomlx/rgcnsum/summaries"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// createSummaries writes the attribute summaries, or converts the bisimulation output into map
// files, depending on technique.
func createSummaries(cfg dataset.Config, dataDir, technique string, showProgress bool) error {
	paths, found := cfg.Summaries[technique]
	if !found {
		return errors.Errorf("dataset %q has no %q summaries configured", cfg.Name, technique)
	}
	originalPath, err := fsutil.ResolvePath(dataDir, cfg.Original)
	if err != nil {
		return err
	}
	mapDir, err := fsutil.ResolvePath(dataDir, paths.Map)
	if err != nil {
		return err
	}
	switch technique {
	case dataset.Attribute:
		sumDir, err := fsutil.ResolvePath(dataDir, paths.Sum)
		if err != nil {
			return err
		}
		_, err = summaries.WriteAttributeSummaries(originalPath, sumDir, mapDir, cfg.Name, showProgress)
		return err
	case dataset.Bisim:
		if paths.BisimOutput == "" {
			return errors.Errorf("dataset %q has no bisimulation output configured", cfg.Name)
		}
		outputDir, err := fsutil.ResolvePath(dataDir, paths.BisimOutput)
		if err != nil {
			return err
		}
		original, err := rdf.LoadGraph(originalPath, nil)
		if err != nil {
			return err
		}
		_, err = summaries.ConvertBisimulation(outputDir, mapDir, cfg.Name, original)
		return err
	}
	return errors.Errorf("unknown summarization technique %q", technique)
}

func newSummarizeCmd(opts *globalOptions) *cobra.Command {
	var datasetName string
	var progress bool
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Write the attribute summaries (out, in, in_out) of a dataset and their map files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, dataDir, err := datasetConfig(opts, datasetName)
			if err != nil {
				return err
			}
			return createSummaries(cfg, dataDir, dataset.Attribute, progress)
		},
	}
	cmd.Flags().StringVar(&datasetName, "dataset", "AIFB", "Dataset name, as in the registry.")
	cmd.Flags().BoolVar(&progress, "progress", true, "Show a progress bar while reading the original graph.")
	return cmd
}

func newBisimMapCmd(opts *globalOptions) *cobra.Command {
	var datasetName string
	cmd := &cobra.Command{
		Use:   "bisim-map",
		Short: "Convert the output of the bisimulation tool into map files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, dataDir, err := datasetConfig(opts, datasetName)
			if err != nil {
				return err
			}
			return createSummaries(cfg, dataDir, dataset.Bisim, false)
		},
	}
	cmd.Flags().StringVar(&datasetName, "dataset", "AIFB", "Dataset name, as in the registry.")
	return cmd
}
