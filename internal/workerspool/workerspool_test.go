// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workerspool

import (
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	for _, parallelism := range []int{0, 1, 3, -1} {
		pool := New().SetMaxParallelism(parallelism)
		var running, maxRunning atomic.Int32
		results := make([]int, 10)
		err := pool.Run(len(results), func(i int) error {
			current := running.Add(1)
			for {
				old := maxRunning.Load()
				if current <= old || maxRunning.CompareAndSwap(old, current) {
					break
				}
			}
			results[i] = i * i
			running.Add(-1)
			return nil
		})
		require.NoError(t, err)
		for i, r := range results {
			assert.Equal(t, i*i, r)
		}
		if parallelism > 0 {
			assert.LessOrEqual(t, int(maxRunning.Load()), parallelism)
		}
	}
}

func TestRunError(t *testing.T) {
	pool := New().SetMaxParallelism(2)
	errFailed := errors.New("failed")
	var count atomic.Int32
	err := pool.Run(5, func(i int) error {
		count.Add(1)
		if i == 1 || i == 3 {
			return errors.Wrapf(errFailed, "task %d", i)
		}
		return nil
	})
	require.ErrorIs(t, err, errFailed)
	assert.Contains(t, err.Error(), "task 1")
	assert.Equal(t, int32(5), count.Load())
}
