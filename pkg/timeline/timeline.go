// Package timeline maintains the ordered log of compiler releases.
//
// A Timeline is an append-only sequence of opaque release identifiers.
// The order in which releases are appended defines the total order used
// by every other component: classification lookups, deprecation cycles,
// and dependency release validation all reduce to position comparisons
// on this log. Releases are never reordered or removed once appended.
package timeline

import (
	"errors"
	"slices"
)

var (
	// ErrInvalidRelease is returned by [Timeline.Append] when the release
	// identifier is empty. All releases must have non-empty identifiers.
	ErrInvalidRelease = errors.New("release identifier must not be empty")

	// ErrDuplicateRelease is returned by [Timeline.Append] when the release
	// has already been registered. The log is append-only and identifiers
	// are unique.
	ErrDuplicateRelease = errors.New("duplicate release")

	// ErrUnknownRelease is returned by ordering operations when a release
	// was never appended to the timeline.
	ErrUnknownRelease = errors.New("unknown release")

	// ErrOutOfRange is returned by [Timeline.Advance] when fewer than n
	// releases exist after the given release.
	ErrOutOfRange = errors.New("not enough releases after the given release")
)

// Release is an opaque, totally ordered release identifier.
// Ordering is defined by registration order on a Timeline, not by the
// identifier's lexical content.
type Release string

// Timeline is an append-only ordered log of releases.
//
// The zero value is not usable - use New to create a valid Timeline.
// Timeline is safe for concurrent reads after setup; concurrent Append
// calls require external synchronization.
type Timeline struct {
	order []Release
	index map[Release]int
}

// New creates an empty timeline.
func New() *Timeline {
	return &Timeline{
		index: make(map[Release]int),
	}
}

// Append registers a release as the latest one.
// Returns ErrInvalidRelease for an empty identifier or ErrDuplicateRelease
// if the release was already registered.
func (t *Timeline) Append(r Release) error {
	if r == "" {
		return ErrInvalidRelease
	}
	if _, exists := t.index[r]; exists {
		return ErrDuplicateRelease
	}
	t.index[r] = len(t.order)
	t.order = append(t.order, r)
	return nil
}

// Len returns the number of registered releases.
func (t *Timeline) Len() int { return len(t.order) }

// Contains reports whether the release has been registered.
func (t *Timeline) Contains(r Release) bool {
	_, ok := t.index[r]
	return ok
}

// Index returns the position of the release in registration order,
// or false if the release is unknown.
func (t *Timeline) Index(r Release) (int, bool) {
	i, ok := t.index[r]
	return i, ok
}

// Compare orders two releases by registration position.
// Returns -1 if a was registered before b, +1 if after, and 0 if equal.
// Returns ErrUnknownRelease if either release was never appended.
func (t *Timeline) Compare(a, b Release) (int, error) {
	ia, ok := t.index[a]
	if !ok {
		return 0, ErrUnknownRelease
	}
	ib, ok := t.index[b]
	if !ok {
		return 0, ErrUnknownRelease
	}
	switch {
	case ia < ib:
		return -1, nil
	case ia > ib:
		return 1, nil
	default:
		return 0, nil
	}
}

// Advance returns the release n positions after r.
// Returns ErrUnknownRelease if r was never appended, or ErrOutOfRange
// if fewer than n releases exist after r. Advance(r, 0) returns r.
func (t *Timeline) Advance(r Release, n int) (Release, error) {
	i, ok := t.index[r]
	if !ok {
		return "", ErrUnknownRelease
	}
	if n < 0 || i+n >= len(t.order) {
		return "", ErrOutOfRange
	}
	return t.order[i+n], nil
}

// Latest returns the most recently appended release, or false for an
// empty timeline.
func (t *Timeline) Latest() (Release, bool) {
	if len(t.order) == 0 {
		return "", false
	}
	return t.order[len(t.order)-1], true
}

// Releases returns a copy of all releases in registration order.
func (t *Timeline) Releases() []Release { return slices.Clone(t.order) }
