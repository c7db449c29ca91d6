// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package trainer

import (
	"github.com/pkg/errors"
)

// ErrInvalidTransition is returned when a run moves to a state out of order.
var ErrInvalidTransition = errors.New("invalid state transition")

// State of a run.
type State int

const (
	Init State = iota
	TrainSummary
	Transfer
	TrainOriginal
	Evaluate
	Done
)

var stateNames = []string{"Init", "TrainSummary", "Transfer", "TrainOriginal", "Evaluate", "Done"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// StateMachine enforces the order of a run:
//
//	Init → TrainSummary → Transfer → TrainOriginal → Evaluate → Done
//
// Baseline runs (no summary model) go straight from Init to TrainOriginal.
type StateMachine struct {
	state    State
	baseline bool
	history  []State
}

// NewStateMachine starts in Init.
func NewStateMachine(baseline bool) *StateMachine {
	return &StateMachine{state: Init, baseline: baseline, history: []State{Init}}
}

// State returns the current state.
func (sm *StateMachine) State() State { return sm.state }

// History returns the states visited so far, starting with Init.
func (sm *StateMachine) History() []State { return sm.history }

func (sm *StateMachine) next() State {
	switch sm.state {
	case Init:
		if sm.baseline {
			return TrainOriginal
		}
		return TrainSummary
	case TrainSummary:
		return Transfer
	case Transfer:
		return TrainOriginal
	case TrainOriginal:
		return Evaluate
	case Evaluate:
		return Done
	}
	return -1
}

// Advance moves to the given state, which must be the next one.
func (sm *StateMachine) Advance(to State) error {
	if expected := sm.next(); to != expected {
		return errors.Wrapf(ErrInvalidTransition, "%s → %s (baseline=%v)", sm.state, to, sm.baseline)
	}
	sm.state = to
	sm.history = append(sm.history, to)
	return nil
}
