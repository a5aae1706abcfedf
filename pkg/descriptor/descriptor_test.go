package descriptor

import (
	"encoding/json"
	"testing"

	"github.com/matzehuels/stackgate/pkg/errors"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		desc     Descriptor
		wantCode errors.Code
	}{
		{
			name: "Minimal",
			desc: Descriptor{PackageID: "base", Release: "R1"},
		},
		{
			name: "Full",
			desc: Descriptor{
				PackageID:       "containers",
				Release:         "R2",
				ExtensionsUsed:  []string{"BangPatterns", "LambdaCase"},
				LanguageEdition: "GHC2021",
				Dependencies:    []Ref{{PackageID: "base", Release: "R1"}},
			},
		},
		{
			name:     "EmptyID",
			desc:     Descriptor{PackageID: "", Release: "R1"},
			wantCode: errors.ErrCodeInvalidPackage,
		},
		{
			name:     "NoRelease",
			desc:     Descriptor{PackageID: "base"},
			wantCode: errors.ErrCodeInvalidDescriptor,
		},
		{
			name: "BadExtensionName",
			desc: Descriptor{
				PackageID:      "base",
				Release:        "R1",
				ExtensionsUsed: []string{"Bang Patterns"},
			},
			wantCode: errors.ErrCodeInvalidDescriptor,
		},
		{
			name: "DuplicateDependency",
			desc: Descriptor{
				PackageID: "app",
				Release:   "R1",
				Dependencies: []Ref{
					{PackageID: "base", Release: "R1"},
					{PackageID: "base", Release: "R1"},
				},
			},
			wantCode: errors.ErrCodeInvalidDescriptor,
		},
		{
			name: "SelfDependency",
			desc: Descriptor{
				PackageID:    "app",
				Release:      "R1",
				Dependencies: []Ref{{PackageID: "app", Release: "R1"}},
			},
			wantCode: errors.ErrCodeInvalidDescriptor,
		},
		{
			name: "DependencyWithoutRelease",
			desc: Descriptor{
				PackageID:    "app",
				Release:      "R1",
				Dependencies: []Ref{{PackageID: "base"}},
			},
			wantCode: errors.ErrCodeInvalidDescriptor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.wantCode == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantCode) {
				t.Errorf("Validate() = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	d := Descriptor{
		PackageID:               "app",
		Release:                 "R1",
		ExtensionsUsed:          []string{"LambdaCase", "BangPatterns", "LambdaCase"},
		ExperimentalFeatureTags: []string{"z-tag", "a-tag", "a-tag"},
	}
	d.Normalize()

	wantExts := []string{"BangPatterns", "LambdaCase"}
	if len(d.ExtensionsUsed) != len(wantExts) {
		t.Fatalf("ExtensionsUsed = %v, want %v", d.ExtensionsUsed, wantExts)
	}
	for i := range wantExts {
		if d.ExtensionsUsed[i] != wantExts[i] {
			t.Errorf("ExtensionsUsed[%d] = %q, want %q", i, d.ExtensionsUsed[i], wantExts[i])
		}
	}

	wantTags := []string{"a-tag", "z-tag"}
	if len(d.ExperimentalFeatureTags) != len(wantTags) {
		t.Fatalf("ExperimentalFeatureTags = %v, want %v", d.ExperimentalFeatureTags, wantTags)
	}
}

func TestClone(t *testing.T) {
	orig := &Descriptor{
		PackageID:      "app",
		Release:        "R1",
		ExtensionsUsed: []string{"BangPatterns"},
		Dependencies:   []Ref{{PackageID: "base", Release: "R1"}},
	}
	clone := orig.Clone()

	clone.ExtensionsUsed[0] = "mutated"
	clone.Dependencies[0].PackageID = "mutated"

	if orig.ExtensionsUsed[0] != "BangPatterns" {
		t.Error("Clone shares ExtensionsUsed backing array")
	}
	if orig.Dependencies[0].PackageID != "base" {
		t.Error("Clone shares Dependencies backing array")
	}
}

func TestRefString(t *testing.T) {
	r := Ref{PackageID: "base", Release: "R1"}
	if got := r.String(); got != "base@R1" {
		t.Errorf("String() = %q, want %q", got, "base@R1")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	orig := Descriptor{
		PackageID:               "app",
		Release:                 "R2",
		ExtensionsUsed:          []string{"LambdaCase"},
		ExperimentalFeatureTags: []string{"uses-nonstandard-backend"},
		ErrorsOnWarningsDefault: true,
		ErrorsOnWarningsCI:      true,
		LanguageEdition:         "GHC2021",
		Dependencies:            []Ref{{PackageID: "base", Release: "R1"}},
	}

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got Descriptor
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.PackageID != orig.PackageID || got.Release != orig.Release ||
		got.LanguageEdition != orig.LanguageEdition ||
		got.ErrorsOnWarningsDefault != orig.ErrorsOnWarningsDefault ||
		got.ErrorsOnWarningsCI != orig.ErrorsOnWarningsCI ||
		len(got.ExtensionsUsed) != 1 || got.ExtensionsUsed[0] != "LambdaCase" ||
		len(got.Dependencies) != 1 || got.Dependencies[0] != orig.Dependencies[0] {
		t.Errorf("round trip mismatch: %+v", got)
	}

	// Absent edition stays absent.
	noEdition := Descriptor{PackageID: "p", Release: "R1"}
	data, err = json.Marshal(noEdition)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, present := m["language_edition"]; present {
		t.Error("empty language_edition should be omitted from JSON")
	}
}
