package model

import (
	"slices"
	"time"
)

// Severity of a constraint warning.
type Severity string

const (
	SeverityHard Severity = "hard"
	SeveritySoft Severity = "soft"
)

// Warning codes emitted by the constraint checker.
const (
	WarnSingleGender  = "single_gender"
	WarnFemaleCap     = "female_cap"
	WarnNoInitiator   = "no_initiator"
	WarnAgeGap        = "age_gap"
	WarnDepthConflict = "depth_conflict"
	WarnGroupSize     = "group_size"
)

// Warning is one failed constraint on a group.
type Warning struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// ConstraintReport maps group numbers to their warnings.
type ConstraintReport map[int][]Warning

// Count returns the number of warnings across all groups.
func (r ConstraintReport) Count() int {
	n := 0
	for _, ws := range r {
		n += len(ws)
	}
	return n
}

// Empty reports whether no group carries a warning.
func (r ConstraintReport) Empty() bool { return r.Count() == 0 }

// Labels attached to arrangements.
const (
	LabelBest      = "best"
	LabelSecond    = "second"
	LabelThird     = "third"
	LabelCommitted = "committed"
)

// Group is a table of participants. Participant order is seat order.
type Group struct {
	Number         int       `json:"number"`
	Table          int       `json:"table"`
	Participants   []int     `json:"participants"`
	Capacity       int       `json:"capacity"`
	AggregateScore float64   `json:"aggregate_score"`
	Warnings       []Warning `json:"warnings"`
}

// Has reports whether participant n sits in the group.
func (g Group) Has(n int) bool { return slices.Contains(g.Participants, n) }

// Open reports whether the group has a free seat.
func (g Group) Open() bool { return len(g.Participants) < g.Capacity }

// Clone returns a deep copy.
func (g Group) Clone() Group {
	g.Participants = slices.Clone(g.Participants)
	g.Warnings = slices.Clone(g.Warnings)
	return g
}

// Arrangement is a full partition of an event's participants into groups.
type Arrangement struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Version   int64     `json:"version"`
	Label     string    `json:"label"`
	Score     float64   `json:"score"`
	Groups    []Group   `json:"groups"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy.
func (a Arrangement) Clone() Arrangement {
	groups := make([]Group, len(a.Groups))
	for i, g := range a.Groups {
		groups[i] = g.Clone()
	}
	a.Groups = groups
	return a
}

// GroupIndex returns the slice index of the group with the given number, or -1.
func (a Arrangement) GroupIndex(number int) int {
	for i, g := range a.Groups {
		if g.Number == number {
			return i
		}
	}
	return -1
}

// GroupOf returns the slice index of the group seating participant n, or -1.
func (a Arrangement) GroupOf(n int) int {
	for i, g := range a.Groups {
		if g.Has(n) {
			return i
		}
	}
	return -1
}

// Report collects the warnings of every group.
func (a Arrangement) Report() ConstraintReport {
	r := make(ConstraintReport, len(a.Groups))
	for _, g := range a.Groups {
		if len(g.Warnings) > 0 {
			r[g.Number] = slices.Clone(g.Warnings)
		}
	}
	return r
}

// Seated returns the number of participants placed in groups.
func (a Arrangement) Seated() int {
	n := 0
	for _, g := range a.Groups {
		n += len(g.Participants)
	}
	return n
}

// ChangeKind identifies a manual edit.
type ChangeKind string

const (
	ChangeSwap    ChangeKind = "swap"
	ChangeMove    ChangeKind = "move"
	ChangeReorder ChangeKind = "reorder"
)

// Change is a proposed manual edit of the committed arrangement.
// For swaps Target is the partner; Target 0 with kind move targets an empty seat.
// A zero BaseVersion opts out of the version check; FromGroup and ToGroup,
// when set, still guard against membership drift.
type Change struct {
	Kind        ChangeKind `json:"kind"`
	Participant int        `json:"participant"`
	FromGroup   int        `json:"from_group"`
	ToGroup     int        `json:"to_group"`
	Target      int        `json:"target,omitempty"`
	Position    int        `json:"position,omitempty"`
	BaseVersion int64      `json:"base_version,omitempty"`
}
