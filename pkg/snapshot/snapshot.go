// Package snapshot bundles one ecosystem's evaluation state: the release
// timeline, the extension registry, the deprecation-case tracker, and the
// dependency graph.
//
// Snapshots are explicit owned state, never ambient globals: independent
// snapshots can be built and evaluated concurrently without interference.
// The Document type is the canonical serialization format shared by the
// manifest loader, the HTTP API, and the Mongo store.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"

	"github.com/google/uuid"

	"github.com/matzehuels/stackgate/pkg/depgraph"
	"github.com/matzehuels/stackgate/pkg/descriptor"
	"github.com/matzehuels/stackgate/pkg/errors"
	"github.com/matzehuels/stackgate/pkg/registry"
	"github.com/matzehuels/stackgate/pkg/timeline"
)

// Snapshot is one ecosystem's complete evaluation state.
type Snapshot struct {
	ID       string
	Timeline *timeline.Timeline
	Registry *registry.Registry
	Cases    *registry.Tracker
	Graph    *depgraph.Graph
}

// New creates an empty snapshot with a fresh UUID.
func New() *Snapshot {
	tl := timeline.New()
	return &Snapshot{
		ID:       uuid.NewString(),
		Timeline: tl,
		Registry: registry.New(tl),
		Cases:    registry.NewTracker(tl),
		Graph:    depgraph.New(tl),
	}
}

// TransitionRecord is one extension classification event in wire form.
type TransitionRecord struct {
	Extension string           `json:"extension" bson:"extension"`
	Release   timeline.Release `json:"release" bson:"release"`
	State     string           `json:"state" bson:"state"`
}

// CaseRecord is one deprecation case in wire form.
type CaseRecord struct {
	Subject       string           `json:"subject" bson:"subject"`
	AnnouncedAt   timeline.Release `json:"announced_at" bson:"announced_at"`
	MinimumCycles int              `json:"minimum_cycles" bson:"minimum_cycles"`
}

// Document is the canonical serialization format for a snapshot.
// Replay order matters: releases first, then transitions, cases, tags,
// and packages, so that each section only references earlier state.
type Document struct {
	ID          string                  `json:"id,omitempty" bson:"_id,omitempty"`
	Releases    []timeline.Release      `json:"releases" bson:"releases"`
	Transitions []TransitionRecord      `json:"transitions,omitempty" bson:"transitions,omitempty"`
	Cases       []CaseRecord            `json:"cases,omitempty" bson:"cases,omitempty"`
	FeatureTags []string                `json:"feature_tags,omitempty" bson:"feature_tags,omitempty"`
	Packages    []descriptor.Descriptor `json:"packages,omitempty" bson:"packages,omitempty"`
}

// Document converts the snapshot to its wire form.
// Output is deterministic: extensions, subjects, tags, and packages are
// emitted in sorted order.
func (s *Snapshot) Document() Document {
	doc := Document{
		ID:          s.ID,
		Releases:    s.Timeline.Releases(),
		FeatureTags: s.Registry.FeatureTags(),
	}

	for _, ext := range s.Registry.Extensions() {
		for _, t := range s.Registry.Transitions(ext) {
			doc.Transitions = append(doc.Transitions, TransitionRecord{
				Extension: ext,
				Release:   t.Release,
				State:     t.To.String(),
			})
		}
	}

	for _, subject := range s.Cases.Subjects() {
		for _, c := range s.Cases.Cases(subject) {
			doc.Cases = append(doc.Cases, CaseRecord{
				Subject:       c.Subject,
				AnnouncedAt:   c.AnnouncedAt,
				MinimumCycles: c.MinimumCycles,
			})
		}
	}

	for _, ref := range s.Graph.Refs() {
		if d, ok := s.Graph.Node(ref); ok {
			doc.Packages = append(doc.Packages, *d.Clone())
		}
	}

	return doc
}

// FromDocument reconstructs a snapshot by replaying a document through
// the component constructors, revalidating every record. A document with
// no ID gets a fresh UUID. The rebuilt graph is structurally validated
// (cycles and unresolved dependencies are rejected here, before any
// evaluation can observe them).
func FromDocument(doc Document) (*Snapshot, error) {
	s := New()
	if doc.ID != "" {
		s.ID = doc.ID
	}

	for _, r := range doc.Releases {
		if err := s.Timeline.Append(r); err != nil {
			return nil, errors.Wrap(errors.ErrCodeDuplicateRelease, err, "replaying release %q", r)
		}
	}

	for _, t := range doc.Transitions {
		state, err := registry.ParseState(t.State)
		if err != nil {
			return nil, err
		}
		if err := s.Registry.RecordTransition(t.Extension, t.Release, state); err != nil {
			return nil, err
		}
	}

	for _, c := range doc.Cases {
		if _, err := s.Cases.OpenCase(c.Subject, c.AnnouncedAt, c.MinimumCycles); err != nil {
			return nil, err
		}
	}

	for _, tag := range doc.FeatureTags {
		if err := s.Registry.RegisterFeatureTag(tag); err != nil {
			return nil, err
		}
	}

	for i := range doc.Packages {
		if err := s.Graph.Add(&doc.Packages[i]); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidDescriptor, err,
				"replaying package %s", doc.Packages[i].Ref())
		}
	}

	if err := s.Graph.Validate(); err != nil {
		if stderrors.Is(err, depgraph.ErrUnknownDependency) {
			return nil, errors.Wrap(errors.ErrCodeUnknownPackage, err, "snapshot graph has unresolved dependencies")
		}
		return nil, errors.Wrap(errors.ErrCodeGraphCycle, err, "snapshot graph is not a valid DAG")
	}

	return s, nil
}

// Fingerprint returns a SHA-256 hash of the snapshot's canonical wire
// form, excluding the ID. Any mutation to the timeline, registry, cases,
// or graph changes the fingerprint, which makes it a safe component of
// cross-process cache keys.
func (s *Snapshot) Fingerprint() string {
	doc := s.Document()
	doc.ID = ""
	data, _ := json.Marshal(doc)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
