// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package report aggregates the results of the repetitions of an experiment and writes them
// as a JSON report, a terminal table and plots.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gomlx/rgcnsum/internal/fsutil"
	"github.com/gomlx/rgcnsum/trainer"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/stat"
	"k8s.io/klog/v2"
)

// Curve is a per epoch metric averaged over repetitions, with a band of one standard deviation.
type Curve struct {
	Mean  []float64 `json:"mean"`
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`
}

// Summary of a scalar measured once per repetition.
type Summary struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Series is the aggregate of the runs of one series (a summary graph, or the original graph) of
// an experiment.
type Series struct {
	Name        string `json:"name"`
	Repetitions int    `json:"repetitions"`

	Accuracy Curve `json:"accuracy"`
	Loss     Curve `json:"loss"`

	// BestEpoch (0-based) has the highest mean validation accuracy, BestAccuracy.
	BestEpoch    int     `json:"best_epoch"`
	BestAccuracy float64 `json:"best_accuracy"`

	Test          Summary `json:"test_accuracy"`
	NumParameters int     `json:"num_parameters"`
	Duration      Summary `json:"duration_seconds"`
}

// Config is the part of trainer.Config saved in reports.
type Config struct {
	Epochs             int     `json:"epochs"`
	Hidden             int     `json:"hidden"`
	EmbeddingDim       int     `json:"emb_dim"`
	LearningRate       float64 `json:"learning_rate"`
	WeightDecay        float64 `json:"weight_decay"`
	Repetitions        int     `json:"repetitions"`
	Seed               uint64  `json:"seed"`
	TransferWeights    bool    `json:"transfer_weights"`
	TransferEmbeddings bool    `json:"transfer_embeddings"`
	FreezeWeights      bool    `json:"freeze_weights"`
	FreezeEmbeddings   bool    `json:"freeze_embeddings"`
}

func configOf(cfg trainer.Config) Config {
	return Config{
		Epochs:             cfg.Epochs,
		Hidden:             cfg.Hidden,
		EmbeddingDim:       cfg.EmbeddingDim,
		LearningRate:       cfg.LearningRate,
		WeightDecay:        cfg.WeightDecay,
		Repetitions:        cfg.Repetitions,
		Seed:               cfg.Seed,
		TransferWeights:    cfg.Transfer.TransferWeights,
		TransferEmbeddings: cfg.Transfer.TransferEmbeddings,
		FreezeWeights:      cfg.Transfer.FreezeWeights,
		FreezeEmbeddings:   cfg.Transfer.FreezeEmbeddings,
	}
}

// Report of one experiment on one dataset.
type Report struct {
	RunID      string    `json:"run_id"`
	Created    time.Time `json:"created"`
	Dataset    string    `json:"dataset"`
	Technique  string    `json:"summarization"`
	Experiment string    `json:"experiment"`
	Config     Config    `json:"config"`
	Series     []*Series `json:"series"`
}

// New aggregates results, grouped by series in order of first appearance.
func New(datasetName, technique, experiment string, cfg trainer.Config, results []*trainer.RunResult) (*Report, error) {
	if len(results) == 0 {
		return nil, errors.Errorf("no results for experiment %q", experiment)
	}
	r := &Report{
		RunID:      uuid.NewString(),
		Created:    time.Now(),
		Dataset:    datasetName,
		Technique:  technique,
		Experiment: experiment,
		Config:     configOf(cfg),
	}
	var order []string
	bySeries := make(map[string][]*trainer.RunResult)
	for _, result := range results {
		if _, found := bySeries[result.Series]; !found {
			order = append(order, result.Series)
		}
		bySeries[result.Series] = append(bySeries[result.Series], result)
	}
	for _, name := range order {
		series, err := aggregate(name, bySeries[name])
		if err != nil {
			return nil, errors.WithMessagef(err, "experiment %q", experiment)
		}
		r.Series = append(r.Series, series)
	}
	return r, nil
}

func aggregate(name string, runs []*trainer.RunResult) (*Series, error) {
	s := &Series{Name: name, Repetitions: len(runs), NumParameters: runs[0].NumParameters}
	accuracies := make([][]float64, len(runs))
	losses := make([][]float64, len(runs))
	tests := make([]float64, len(runs))
	durations := make([]float64, len(runs))
	for ii, run := range runs {
		accuracies[ii], losses[ii] = run.Accuracy, run.Loss
		tests[ii] = run.TestAccuracy
		durations[ii] = run.Duration.Seconds()
	}
	var err error
	if s.Accuracy, err = NewCurve(accuracies); err != nil {
		return nil, errors.WithMessagef(err, "accuracy of series %q", name)
	}
	if s.Loss, err = NewCurve(losses); err != nil {
		return nil, errors.WithMessagef(err, "loss of series %q", name)
	}
	if len(s.Accuracy.Mean) > 0 {
		s.BestEpoch = argMax(s.Accuracy.Mean)
		s.BestAccuracy = s.Accuracy.Mean[s.BestEpoch]
	}
	s.Test.Mean, s.Test.Std = MeanStd(tests)
	s.Duration.Mean, s.Duration.Std = MeanStd(durations)
	return s, nil
}

// MeanStd returns the mean and the population standard deviation of values.
func MeanStd[T constraints.Integer | constraints.Float](values []T) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	x := make([]float64, len(values))
	for ii, v := range values {
		x[ii] = float64(v)
	}
	return stat.PopMeanStdDev(x, nil)
}

// NewCurve averages the per epoch values of each repetition, which must all have the same length.
func NewCurve(repetitions [][]float64) (Curve, error) {
	var c Curve
	if len(repetitions) == 0 {
		return c, nil
	}
	numEpochs := len(repetitions[0])
	for ii, values := range repetitions {
		if len(values) != numEpochs {
			return c, errors.Errorf("repetition #%d has %d epochs, repetition #0 has %d", ii, len(values), numEpochs)
		}
	}
	c.Mean = make([]float64, numEpochs)
	c.Lower = make([]float64, numEpochs)
	c.Upper = make([]float64, numEpochs)
	column := make([]float64, len(repetitions))
	for epoch := range numEpochs {
		for ii, values := range repetitions {
			column[ii] = values[epoch]
		}
		mean, std := MeanStd(column)
		c.Mean[epoch], c.Lower[epoch], c.Upper[epoch] = mean, mean-std, mean+std
	}
	return c, nil
}

// argMax returns the first index of the largest value.
func argMax(values []float64) int {
	return slices.Index(values, slices.Max(values))
}

// BaseName is the file name, without extension, used for the artifacts of the report.
func (r *Report) BaseName() string {
	return fmt.Sprintf("%s_%s_%s_%s_%s", r.Dataset, r.Technique, r.Experiment,
		r.Created.Format("20060102-150405"), strings.SplitN(r.RunID, "-", 2)[0])
}

// Save writes the report as indented JSON into dir, and returns the path of the file.
func (r *Report) Save(dir string) (string, error) {
	if err := fsutil.EnsureDir(dir); err != nil {
		return "", err
	}
	contents, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", errors.Wrapf(err, "encoding report of %q", r.Experiment)
	}
	path := filepath.Join(dir, r.BaseName()+".json")
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		return "", errors.Wrapf(err, "writing report to %q", path)
	}
	klog.Infof("Report saved to %q", path)
	return path, nil
}

// Load reads a report saved with Save.
func Load(path string) (*Report, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading report %q", path)
	}
	r := &Report{}
	if err := json.Unmarshal(contents, r); err != nil {
		return nil, errors.Wrapf(err, "parsing report %q", path)
	}
	return r, nil
}
