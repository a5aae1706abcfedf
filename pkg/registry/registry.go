// Package registry tracks the classification lifecycle of language
// extensions across releases.
//
// Every extension is a named capability flag with a classification state
// that changes over the release timeline. The legal lifecycle is strictly
// forward:
//
//	Experimental → Stable → Deprecated → Removed
//
// An extension with no recorded transition classifies as Experimental at
// every release - new features start gated until explicitly promoted.
// Transitions are recorded as an ordered event list per extension, and
// point-in-time lookups return the state from the latest event at or
// before the queried release.
//
// The registry also holds the open set of experimental-feature tags.
// Tags have no lifecycle; they are registered so that tooling can
// enumerate them, and their mere presence on a package descriptor is
// disqualifying for stability.
package registry

import (
	"slices"

	"github.com/matzehuels/stackgate/pkg/errors"
	"github.com/matzehuels/stackgate/pkg/timeline"
)

// State is the classification state of an extension at a release.
type State int

const (
	// StateExperimental is the default state for every extension that has
	// never been promoted. Experimental extensions disqualify stability.
	StateExperimental State = iota
	// StateStable marks an extension covered by the compatibility guarantee.
	StateStable
	// StateDeprecated marks an extension scheduled for removal. Whether it
	// counts against stability depends on the evaluation policy and any
	// active deprecation case.
	StateDeprecated
	// StateRemoved marks an extension that no longer exists.
	StateRemoved
)

// String returns the canonical name of the state.
func (s State) String() string {
	switch s {
	case StateExperimental:
		return "Experimental"
	case StateStable:
		return "Stable"
	case StateDeprecated:
		return "Deprecated"
	case StateRemoved:
		return "Removed"
	default:
		return "Unknown"
	}
}

// ParseState converts a state name to a State.
// Accepts the canonical capitalized form and the all-lowercase form.
func ParseState(s string) (State, error) {
	switch s {
	case "Experimental", "experimental":
		return StateExperimental, nil
	case "Stable", "stable":
		return StateStable, nil
	case "Deprecated", "deprecated":
		return StateDeprecated, nil
	case "Removed", "removed":
		return StateRemoved, nil
	default:
		return 0, errors.New(errors.ErrCodeInvalidInput, "unknown classification state %q", s)
	}
}

// legalNext returns the single state reachable from s, or false if s is
// terminal. The lifecycle graph has no branches and no back edges.
func legalNext(s State) (State, bool) {
	switch s {
	case StateExperimental:
		return StateStable, true
	case StateStable:
		return StateDeprecated, true
	case StateDeprecated:
		return StateRemoved, true
	default:
		return 0, false
	}
}

// Transition is one recorded classification change for an extension.
type Transition struct {
	Release timeline.Release
	To      State
}

// Registry holds per-extension classification histories and the
// registered experimental-feature tags for one ecosystem snapshot.
//
// The zero value is not usable - use New. Registry is safe for concurrent
// reads after setup; concurrent writes require external synchronization.
type Registry struct {
	tl          *timeline.Timeline
	transitions map[string][]Transition
	featureTags map[string]struct{}
}

// New creates an empty registry ordered by the given timeline.
func New(tl *timeline.Timeline) *Registry {
	return &Registry{
		tl:          tl,
		transitions: make(map[string][]Transition),
		featureTags: make(map[string]struct{}),
	}
}

// Timeline returns the timeline the registry orders its events by.
func (r *Registry) Timeline() *timeline.Timeline { return r.tl }

// RecordTransition appends a classification change for an extension.
//
// The transition fails with an INVALID_TRANSITION error when the new
// state is not the single legal successor of the extension's current
// state, or when the release is not strictly after the extension's last
// recorded transition. Unknown releases fail with UNKNOWN_RELEASE.
func (r *Registry) RecordTransition(ext string, rel timeline.Release, to State) error {
	if err := errors.ValidateExtensionName(ext); err != nil {
		return err
	}
	if !r.tl.Contains(rel) {
		return errors.New(errors.ErrCodeUnknownRelease, "release %q is not on the timeline", rel)
	}

	events := r.transitions[ext]
	current := StateExperimental
	if len(events) > 0 {
		last := events[len(events)-1]
		current = last.To
		cmp, err := r.tl.Compare(rel, last.Release)
		if err != nil {
			return err
		}
		if cmp <= 0 {
			return errors.New(errors.ErrCodeInvalidTransition,
				"transition for %s at %s is not after the last recorded transition at %s", ext, rel, last.Release)
		}
	}

	next, ok := legalNext(current)
	if !ok || next != to {
		return errors.New(errors.ErrCodeInvalidTransition,
			"extension %s cannot move from %s to %s", ext, current, to)
	}

	r.transitions[ext] = append(events, Transition{Release: rel, To: to})
	return nil
}

// ClassificationAt returns the state of an extension in effect at the
// given release: the state from the latest transition event at or before
// the release. Extensions with no prior events are Experimental.
//
// ClassificationAt ignores deprecation cases; use
// [Registry.EffectiveClassificationAt] for grandfather-aware lookups.
func (r *Registry) ClassificationAt(ext string, rel timeline.Release) (State, error) {
	if !r.tl.Contains(rel) {
		return 0, errors.New(errors.ErrCodeUnknownRelease, "release %q is not on the timeline", rel)
	}
	state := StateExperimental
	for _, t := range r.transitions[ext] {
		cmp, err := r.tl.Compare(t.Release, rel)
		if err != nil {
			return 0, err
		}
		if cmp > 0 {
			break
		}
		state = t.To
	}
	return state, nil
}

// EffectiveClassificationAt returns the state governing evaluation at the
// given release, honoring grandfather periods tracked by cases.
//
// A transition covered by a deprecation case that has not yet reached
// Effective at the queried release does not apply: the pre-transition
// classification is used instead, and any later transitions are ignored.
// A nil tracker behaves like ClassificationAt.
func (r *Registry) EffectiveClassificationAt(ext string, rel timeline.Release, cases *Tracker) (State, error) {
	if cases == nil {
		return r.ClassificationAt(ext, rel)
	}
	if !r.tl.Contains(rel) {
		return 0, errors.New(errors.ErrCodeUnknownRelease, "release %q is not on the timeline", rel)
	}
	state := StateExperimental
	for _, t := range r.transitions[ext] {
		cmp, err := r.tl.Compare(t.Release, rel)
		if err != nil {
			return 0, err
		}
		if cmp > 0 {
			break
		}
		if c, ok := cases.CaseFor(ext, t.Release); ok {
			status, err := c.StatusAt(rel)
			if err != nil {
				return 0, err
			}
			if status != StatusEffective {
				// Grandfather period: this transition and everything after
				// it is not yet in force.
				break
			}
		}
		state = t.To
	}
	return state, nil
}

// IsStableUsable reports whether an extension counts as stable at the
// given release under its effective classification.
func (r *Registry) IsStableUsable(ext string, rel timeline.Release, cases *Tracker) (bool, error) {
	state, err := r.EffectiveClassificationAt(ext, rel, cases)
	if err != nil {
		return false, err
	}
	return state == StateStable, nil
}

// Transitions returns a copy of the recorded transition events for an
// extension, in release order.
func (r *Registry) Transitions(ext string) []Transition {
	return slices.Clone(r.transitions[ext])
}

// Extensions returns the names of all extensions with at least one
// recorded transition, sorted for deterministic output.
func (r *Registry) Extensions() []string {
	names := make([]string, 0, len(r.transitions))
	for name := range r.transitions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RegisterFeatureTag adds an experimental-feature tag to the registered
// set. Tags are an open category; registration exists so tooling can
// enumerate known tags, not to gate their use.
func (r *Registry) RegisterFeatureTag(tag string) error {
	if err := errors.ValidateExtensionName(tag); err != nil {
		return err
	}
	r.featureTags[tag] = struct{}{}
	return nil
}

// KnownFeatureTag reports whether the tag has been registered.
func (r *Registry) KnownFeatureTag(tag string) bool {
	_, ok := r.featureTags[tag]
	return ok
}

// FeatureTags returns all registered tags, sorted.
func (r *Registry) FeatureTags() []string {
	tags := make([]string, 0, len(r.featureTags))
	for tag := range r.featureTags {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}
