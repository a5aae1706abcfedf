// Package manifest loads and saves ecosystem snapshots as TOML files.
//
// A manifest declares the full evaluation state in replay order: the
// release timeline, extension transitions, deprecation cases, feature
// tags, and package descriptors. Dependency edges use the compact
// "package@release" form. Loading replays the manifest through the
// snapshot constructors, so every record is validated the same way the
// API validates live submissions.
package manifest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/stackgate/pkg/descriptor"
	"github.com/matzehuels/stackgate/pkg/errors"
	"github.com/matzehuels/stackgate/pkg/snapshot"
	"github.com/matzehuels/stackgate/pkg/timeline"
)

// File is the TOML wire form of a snapshot manifest.
type File struct {
	ID          string       `toml:"id,omitempty"`
	Releases    []string     `toml:"releases"`
	FeatureTags []string     `toml:"feature_tags,omitempty"`
	Transitions []Transition `toml:"transition,omitempty"`
	Cases       []Case       `toml:"case,omitempty"`
	Packages    []Package    `toml:"package,omitempty"`
}

// Transition is one extension classification change.
type Transition struct {
	Extension string `toml:"extension"`
	Release   string `toml:"release"`
	State     string `toml:"state"`
}

// Case is one deprecation case with its grace period.
type Case struct {
	Subject       string `toml:"subject"`
	AnnouncedAt   string `toml:"announced_at"`
	MinimumCycles int    `toml:"minimum_cycles"`
}

// Package is one package descriptor. Dependencies are written in
// "package@release" form.
type Package struct {
	ID                 string   `toml:"id"`
	Release            string   `toml:"release"`
	LanguageEdition    string   `toml:"language_edition,omitempty"`
	Extensions         []string `toml:"extensions,omitempty"`
	FeatureTags        []string `toml:"feature_tags,omitempty"`
	ErrorsOnWarnings   bool     `toml:"errors_on_warnings,omitempty"`
	ErrorsOnWarningsCI bool     `toml:"errors_on_warnings_ci,omitempty"`
	Dependencies       []string `toml:"dependencies,omitempty"`
}

// Supports reports whether a filename looks like a snapshot manifest.
func Supports(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".toml")
}

// Load reads and replays a manifest file into a snapshot.
func Load(path string) (*snapshot.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "reading manifest %s", path)
	}
	return Parse(data)
}

// Parse replays manifest bytes into a snapshot. Invalid records fail
// with the same coded errors live submissions would produce; structural
// graph problems (cycles, unresolved dependencies) are rejected here.
func Parse(data []byte) (*snapshot.Snapshot, error) {
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parsing manifest")
	}
	doc, err := f.Document()
	if err != nil {
		return nil, err
	}
	return snapshot.FromDocument(doc)
}

// Document converts the manifest to the canonical snapshot wire form.
func (f *File) Document() (snapshot.Document, error) {
	doc := snapshot.Document{
		ID:          f.ID,
		FeatureTags: f.FeatureTags,
	}
	for _, r := range f.Releases {
		doc.Releases = append(doc.Releases, timeline.Release(r))
	}
	for _, t := range f.Transitions {
		doc.Transitions = append(doc.Transitions, snapshot.TransitionRecord{
			Extension: t.Extension,
			Release:   timeline.Release(t.Release),
			State:     t.State,
		})
	}
	for _, c := range f.Cases {
		doc.Cases = append(doc.Cases, snapshot.CaseRecord{
			Subject:       c.Subject,
			AnnouncedAt:   timeline.Release(c.AnnouncedAt),
			MinimumCycles: c.MinimumCycles,
		})
	}
	for _, p := range f.Packages {
		d := descriptor.Descriptor{
			PackageID:               p.ID,
			Release:                 timeline.Release(p.Release),
			ExtensionsUsed:          p.Extensions,
			ExperimentalFeatureTags: p.FeatureTags,
			ErrorsOnWarningsDefault: p.ErrorsOnWarnings,
			ErrorsOnWarningsCI:      p.ErrorsOnWarningsCI,
			LanguageEdition:         p.LanguageEdition,
		}
		for _, dep := range p.Dependencies {
			ref, err := ParseRef(dep)
			if err != nil {
				return snapshot.Document{}, errors.Wrap(errors.ErrCodeInvalidManifest, err,
					"package %s has a malformed dependency", p.ID)
			}
			d.Dependencies = append(d.Dependencies, ref)
		}
		doc.Packages = append(doc.Packages, d)
	}
	return doc, nil
}

// FromSnapshot converts a snapshot to its manifest form, suitable for
// export. Output ordering follows the snapshot document's deterministic
// emit order.
func FromSnapshot(s *snapshot.Snapshot) *File {
	doc := s.Document()
	f := &File{
		ID:          doc.ID,
		FeatureTags: doc.FeatureTags,
	}
	for _, r := range doc.Releases {
		f.Releases = append(f.Releases, string(r))
	}
	for _, t := range doc.Transitions {
		f.Transitions = append(f.Transitions, Transition{
			Extension: t.Extension,
			Release:   string(t.Release),
			State:     t.State,
		})
	}
	for _, c := range doc.Cases {
		f.Cases = append(f.Cases, Case{
			Subject:       c.Subject,
			AnnouncedAt:   string(c.AnnouncedAt),
			MinimumCycles: c.MinimumCycles,
		})
	}
	for _, d := range doc.Packages {
		p := Package{
			ID:                 d.PackageID,
			Release:            string(d.Release),
			LanguageEdition:    d.LanguageEdition,
			Extensions:         d.ExtensionsUsed,
			FeatureTags:        d.ExperimentalFeatureTags,
			ErrorsOnWarnings:   d.ErrorsOnWarningsDefault,
			ErrorsOnWarningsCI: d.ErrorsOnWarningsCI,
		}
		for _, dep := range d.Dependencies {
			p.Dependencies = append(p.Dependencies, dep.String())
		}
		f.Packages = append(f.Packages, p)
	}
	return f
}

// Encode serializes a snapshot as manifest TOML.
func Encode(s *snapshot.Snapshot) ([]byte, error) {
	data, err := toml.Marshal(FromSnapshot(s))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encoding manifest")
	}
	return data, nil
}

// Save writes a snapshot to a manifest file.
func Save(path string, s *snapshot.Snapshot) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "writing manifest %s", path)
	}
	return nil
}

// ParseRef parses the "package@release" dependency form. The last "@"
// separates package from release, so package identifiers may themselves
// contain "@" (scoped names).
func ParseRef(s string) (descriptor.Ref, error) {
	i := strings.LastIndex(s, "@")
	if i <= 0 || i == len(s)-1 {
		return descriptor.Ref{}, errors.New(errors.ErrCodeInvalidInput,
			"dependency %q is not in package@release form", s)
	}
	return descriptor.Ref{
		PackageID: s[:i],
		Release:   timeline.Release(s[i+1:]),
	}, nil
}
