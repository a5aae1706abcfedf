package eval

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/matzehuels/stackgate/pkg/timeline"
)

// Criterion identifies one of the five stability criteria. The ordinal
// defines the reporting order of violations.
type Criterion int

const (
	// CriterionExperimentalExtension: a used extension is not Stable at
	// the evaluation release.
	CriterionExperimentalExtension Criterion = iota
	// CriterionExperimentalFeature: an experimental-feature tag is
	// present. Tags have no lifecycle; presence alone disqualifies.
	CriterionExperimentalFeature
	// CriterionErrorsOnWarnings: the default build configuration turns
	// warnings into errors.
	CriterionErrorsOnWarnings
	// CriterionMissingEdition: no language edition is declared.
	CriterionMissingEdition
	// CriterionUnstableDependency: a direct or transitive dependency is
	// unstable.
	CriterionUnstableDependency
)

var criterionNames = map[Criterion]string{
	CriterionExperimentalExtension: "UsesExperimentalExtension",
	CriterionExperimentalFeature:   "UsesExperimentalFeature",
	CriterionErrorsOnWarnings:      "ErrorsOnWarningsByDefault",
	CriterionMissingEdition:        "MissingLanguageEdition",
	CriterionUnstableDependency:    "UnstableDependency",
}

// String returns the canonical criterion name.
func (c Criterion) String() string {
	if name, ok := criterionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Criterion(%d)", int(c))
}

// MarshalJSON encodes the criterion as its canonical name.
func (c Criterion) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a criterion from its canonical name.
func (c *Criterion) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for k, v := range criterionNames {
		if v == name {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown criterion %q", name)
}

// Violation records one failed stability criterion.
// Subject names the offending extension, tag, or dependency package;
// it is empty for criteria without a subject.
type Violation struct {
	Kind    Criterion `json:"kind" bson:"kind"`
	Subject string    `json:"subject,omitempty" bson:"subject,omitempty"`
	Detail  string    `json:"detail" bson:"detail"`
}

// Verdict is the stability outcome for one (package, release) node.
//
// Violations are sorted by (criterion ordinal, subject) so repeated
// evaluations produce bit-identical output. UnstableDependencies is the
// sorted set of package identifiers of every unstable node reachable via
// dependency edges.
type Verdict struct {
	PackageID            string           `json:"package_id" bson:"package_id"`
	Release              timeline.Release `json:"release" bson:"release"`
	IsStable             bool             `json:"is_stable" bson:"is_stable"`
	Violations           []Violation      `json:"violations,omitempty" bson:"violations,omitempty"`
	UnstableDependencies []string         `json:"unstable_dependencies,omitempty" bson:"unstable_dependencies,omitempty"`
}

// sortViolations orders violations by (criterion ordinal, subject) for
// reproducible output.
func sortViolations(vs []Violation) {
	slices.SortFunc(vs, func(a, b Violation) int {
		if a.Kind != b.Kind {
			return int(a.Kind) - int(b.Kind)
		}
		switch {
		case a.Subject < b.Subject:
			return -1
		case a.Subject > b.Subject:
			return 1
		default:
			return 0
		}
	})
}
