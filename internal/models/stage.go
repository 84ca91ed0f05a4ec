package models

import "fmt"

// Stage is one of the fixed cocoon lifecycle stages.
type Stage string

const (
	StageIncubating    Stage = "incubating"
	StageActive        Stage = "active"
	StageMetamorphosis Stage = "metamorphosis"
	StageEmergence     Stage = "emergence"
	StageComplete      Stage = "complete"
	StageArchived      Stage = "archived"
)

// Stages lists every stage in lifecycle order.
var Stages = []Stage{
	StageIncubating,
	StageActive,
	StageMetamorphosis,
	StageEmergence,
	StageComplete,
	StageArchived,
}

var stageNext = map[Stage]Stage{
	StageIncubating:    StageActive,
	StageActive:        StageMetamorphosis,
	StageMetamorphosis: StageEmergence,
	StageEmergence:     StageComplete,
	StageComplete:      StageArchived,
}

// Valid reports whether s is one of the six lifecycle stages.
func (s Stage) Valid() bool {
	for _, st := range Stages {
		if st == s {
			return true
		}
	}
	return false
}

// Next returns the single legal successor of s. ok is false for archived and
// for unknown stages.
func (s Stage) Next() (next Stage, ok bool) {
	next, ok = stageNext[s]
	return next, ok
}

// ParseStage converts a string to a Stage.
func ParseStage(v string) (Stage, error) {
	s := Stage(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown stage %q", v)
	}
	return s, nil
}
