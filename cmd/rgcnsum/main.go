// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// rgcnsum trains relational graph convolutional networks on summary graphs of RDF knowledge
// graphs, and transfers what they learned to a model of the original graph.
//
// Examples:
//
//	rgcnsum summarize --dataset AIFB --data ~/graphs
//	rgcnsum train --dataset AIFB --summarization attr --exp rgcn --epochs 51 --data ~/graphs
//	rgcnsum train --dataset MUTAG --exp attention --set "hidden=32;learning_rate=0.005"
package main

import (
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/default"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		klog.Fatalf("Failed with error: %+v", err)
	}
}
