package registry

import (
	"slices"

	"github.com/matzehuels/stackgate/pkg/errors"
	"github.com/matzehuels/stackgate/pkg/timeline"
)

// CaseStatus is the lifecycle stage of a deprecation case at a release.
type CaseStatus int

const (
	// StatusAnnounced means the queried release precedes the announcement.
	StatusAnnounced CaseStatus = iota
	// StatusWarningActive means the release is within the deprecation
	// cycle: the announcement has happened but the change is not yet in
	// force, and the pre-transition classification still governs.
	StatusWarningActive
	// StatusEffective means the minimum number of cycles has elapsed and
	// the new classification fully governs evaluation.
	StatusEffective
)

// String returns the canonical name of the status.
func (s CaseStatus) String() string {
	switch s {
	case StatusAnnounced:
		return "Announced"
	case StatusWarningActive:
		return "WarningActive"
	case StatusEffective:
		return "Effective"
	default:
		return "Unknown"
	}
}

// Case tracks one announced reclassification of an extension or rule and
// the deprecation cycle that must elapse before it takes effect.
//
// The effective threshold is positional: a case announced at release R
// with MinimumCycles n becomes Effective at the release n positions after
// R, whether or not that release has been appended to the timeline yet.
type Case struct {
	Subject       string
	AnnouncedAt   timeline.Release
	MinimumCycles int

	tl            *timeline.Timeline
	announcedIdx  int
}

// EffectiveNotBefore returns the first release at which the case is
// Effective, or false if that release has not been appended yet.
func (c *Case) EffectiveNotBefore() (timeline.Release, bool) {
	rel, err := c.tl.Advance(c.AnnouncedAt, c.MinimumCycles)
	if err != nil {
		return "", false
	}
	return rel, true
}

// StatusAt computes the case status at a release purely from release
// ordering. It is a query, not a scheduled job: nothing advances
// implicitly. Unknown releases are an UNKNOWN_RELEASE error.
func (c *Case) StatusAt(rel timeline.Release) (CaseStatus, error) {
	idx, ok := c.tl.Index(rel)
	if !ok {
		return 0, errors.New(errors.ErrCodeUnknownRelease, "release %q is not on the timeline", rel)
	}
	switch {
	case idx < c.announcedIdx:
		return StatusAnnounced, nil
	case idx < c.announcedIdx+c.MinimumCycles:
		return StatusWarningActive, nil
	default:
		return StatusEffective, nil
	}
}

// Tracker manages deprecation cases for a snapshot.
//
// Cases are keyed by (subject, announcement release): one case covers one
// recorded transition. The zero value is not usable - use NewTracker.
type Tracker struct {
	tl    *timeline.Timeline
	cases map[string][]*Case // subject -> cases in announcement order
}

// NewTracker creates an empty tracker ordered by the given timeline.
func NewTracker(tl *timeline.Timeline) *Tracker {
	return &Tracker{
		tl:    tl,
		cases: make(map[string][]*Case),
	}
}

// OpenCase records a deprecation case for a subject announced at the
// given release.
//
// minimumCycles must be at least 1. The announcement release must be on
// the timeline, and a subject may have at most one case per announcement
// release.
func (t *Tracker) OpenCase(subject string, announcedAt timeline.Release, minimumCycles int) (*Case, error) {
	if err := errors.ValidateExtensionName(subject); err != nil {
		return nil, err
	}
	if minimumCycles < 1 {
		return nil, errors.New(errors.ErrCodeInvalidCase,
			"minimum cycles must be at least 1, got %d", minimumCycles)
	}
	idx, ok := t.tl.Index(announcedAt)
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownRelease, "release %q is not on the timeline", announcedAt)
	}
	if _, exists := t.CaseFor(subject, announcedAt); exists {
		return nil, errors.New(errors.ErrCodeInvalidCase,
			"case for %s announced at %s already exists", subject, announcedAt)
	}

	c := &Case{
		Subject:       subject,
		AnnouncedAt:   announcedAt,
		MinimumCycles: minimumCycles,
		tl:            t.tl,
		announcedIdx:  idx,
	}
	t.cases[subject] = append(t.cases[subject], c)
	return c, nil
}

// CaseFor returns the case covering a subject's transition announced at
// the given release, or false if none exists.
func (t *Tracker) CaseFor(subject string, announcedAt timeline.Release) (*Case, bool) {
	for _, c := range t.cases[subject] {
		if c.AnnouncedAt == announcedAt {
			return c, true
		}
	}
	return nil, false
}

// Cases returns all cases for a subject in announcement order.
func (t *Tracker) Cases(subject string) []*Case {
	return slices.Clone(t.cases[subject])
}

// Subjects returns all subjects with at least one open case, sorted.
func (t *Tracker) Subjects() []string {
	subjects := make([]string, 0, len(t.cases))
	for s := range t.cases {
		subjects = append(subjects, s)
	}
	slices.Sort(subjects)
	return subjects
}
