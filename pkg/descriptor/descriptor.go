// Package descriptor defines the declared configuration of one package
// at one release.
//
// A Descriptor is the engine's unit of input: which extensions and
// experimental-feature tags a package uses, its warning configuration,
// its declared language edition, and its dependencies. Descriptors are
// the canonical serialization format shared by the API, storage, and
// caching layers; the JSON/BSON shape is designed for round-trip
// fidelity.
package descriptor

import (
	"fmt"
	"slices"

	"github.com/matzehuels/stackgate/pkg/errors"
	"github.com/matzehuels/stackgate/pkg/timeline"
)

// Ref identifies one dependency-graph node: a package at a release.
type Ref struct {
	PackageID string           `json:"package_id" bson:"package_id"`
	Release   timeline.Release `json:"release" bson:"release"`
}

// String returns the "package@release" form used in logs and cache keys.
func (r Ref) String() string {
	return fmt.Sprintf("%s@%s", r.PackageID, r.Release)
}

// Compare orders refs by (package, release) for deterministic output.
func (r Ref) Compare(other Ref) int {
	if c := compareStrings(r.PackageID, other.PackageID); c != 0 {
		return c
	}
	return compareStrings(string(r.Release), string(other.Release))
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Descriptor is one package's declared configuration at one release.
//
// LanguageEdition is optional and its absence is meaningful: a package
// with no declared edition is not stable. ErrorsOnWarningsDefault covers
// the default build configuration only; a flag scoped to CI
// (ErrorsOnWarningsCI) does not count against stability.
//
// Descriptors are immutable once submitted to a graph for a given
// (package, release) pair.
type Descriptor struct {
	PackageID               string           `json:"package_id" bson:"package_id"`
	Release                 timeline.Release `json:"release" bson:"release"`
	ExtensionsUsed          []string         `json:"extensions_used,omitempty" bson:"extensions_used,omitempty"`
	ExperimentalFeatureTags []string         `json:"experimental_feature_tags,omitempty" bson:"experimental_feature_tags,omitempty"`
	ErrorsOnWarningsDefault bool             `json:"errors_on_warnings_default" bson:"errors_on_warnings_default"`
	ErrorsOnWarningsCI      bool             `json:"errors_on_warnings_ci" bson:"errors_on_warnings_ci"`
	LanguageEdition         string           `json:"language_edition,omitempty" bson:"language_edition,omitempty"`
	Dependencies            []Ref            `json:"dependencies,omitempty" bson:"dependencies,omitempty"`
}

// Ref returns the graph node identity of the descriptor.
func (d *Descriptor) Ref() Ref {
	return Ref{PackageID: d.PackageID, Release: d.Release}
}

// HasLanguageEdition reports whether an edition was declared.
func (d *Descriptor) HasLanguageEdition() bool { return d.LanguageEdition != "" }

// Validate checks the descriptor's internal consistency: identifier
// safety, extension and tag names, and dependency uniqueness. Release
// ordering against the timeline is the dependency graph's concern.
func (d *Descriptor) Validate() error {
	if err := errors.ValidatePackageName(d.PackageID); err != nil {
		return err
	}
	if d.Release == "" {
		return errors.New(errors.ErrCodeInvalidDescriptor, "package %s has no release", d.PackageID)
	}
	for _, ext := range d.ExtensionsUsed {
		if err := errors.ValidateExtensionName(ext); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidDescriptor, err, "package %s", d.PackageID)
		}
	}
	for _, tag := range d.ExperimentalFeatureTags {
		if err := errors.ValidateExtensionName(tag); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidDescriptor, err, "package %s", d.PackageID)
		}
	}

	seen := make(map[Ref]struct{}, len(d.Dependencies))
	for _, dep := range d.Dependencies {
		if err := errors.ValidatePackageName(dep.PackageID); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidDescriptor, err, "package %s dependency", d.PackageID)
		}
		if dep.Release == "" {
			return errors.New(errors.ErrCodeInvalidDescriptor,
				"package %s dependency %s has no release", d.PackageID, dep.PackageID)
		}
		if _, dup := seen[dep]; dup {
			return errors.New(errors.ErrCodeInvalidDescriptor,
				"package %s declares dependency %s twice", d.PackageID, dep)
		}
		seen[dep] = struct{}{}
		if dep.PackageID == d.PackageID && dep.Release == d.Release {
			return errors.New(errors.ErrCodeInvalidDescriptor,
				"package %s depends on itself", d.PackageID)
		}
	}
	return nil
}

// Normalize sorts and deduplicates the descriptor's sets in place so that
// serialization and violation ordering are deterministic. Dependency
// order is preserved as declared (the set is ordered by contract);
// extensions and tags are sorted by name.
func (d *Descriptor) Normalize() {
	slices.Sort(d.ExtensionsUsed)
	d.ExtensionsUsed = slices.Compact(d.ExtensionsUsed)
	slices.Sort(d.ExperimentalFeatureTags)
	d.ExperimentalFeatureTags = slices.Compact(d.ExperimentalFeatureTags)
}

// Clone returns a deep copy of the descriptor.
func (d *Descriptor) Clone() *Descriptor {
	out := *d
	out.ExtensionsUsed = slices.Clone(d.ExtensionsUsed)
	out.ExperimentalFeatureTags = slices.Clone(d.ExperimentalFeatureTags)
	out.Dependencies = slices.Clone(d.Dependencies)
	return &out
}
