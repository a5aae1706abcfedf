package snapshot

import (
	"encoding/json"
	"testing"

	"github.com/matzehuels/stackgate/pkg/descriptor"
	"github.com/matzehuels/stackgate/pkg/errors"
	"github.com/matzehuels/stackgate/pkg/registry"
	"github.com/matzehuels/stackgate/pkg/timeline"
)

func buildSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	s := New()
	for _, r := range []timeline.Release{"R1", "R2", "R3"} {
		if err := s.Timeline.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := s.Registry.RecordTransition("E1", "R2", registry.StateStable); err != nil {
		t.Fatalf("RecordTransition: %v", err)
	}
	if _, err := s.Cases.OpenCase("E2", "R1", 2); err != nil {
		t.Fatalf("OpenCase: %v", err)
	}
	if err := s.Registry.RegisterFeatureTag("uses-nonstandard-backend"); err != nil {
		t.Fatalf("RegisterFeatureTag: %v", err)
	}
	if err := s.Graph.Add(&descriptor.Descriptor{
		PackageID: "base", Release: "R1", LanguageEdition: "GHC2021",
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Graph.Add(&descriptor.Descriptor{
		PackageID: "app", Release: "R2", LanguageEdition: "GHC2021",
		ExtensionsUsed: []string{"E1"},
		Dependencies:   []descriptor.Ref{{PackageID: "base", Release: "R1"}},
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return s
}

func TestDocumentRoundTrip(t *testing.T) {
	orig := buildSnapshot(t)
	doc := orig.Document()

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Document
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	rebuilt, err := FromDocument(decoded)
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}

	if rebuilt.ID != orig.ID {
		t.Errorf("ID = %q, want %q", rebuilt.ID, orig.ID)
	}
	if rebuilt.Timeline.Len() != 3 {
		t.Errorf("Timeline.Len() = %d, want 3", rebuilt.Timeline.Len())
	}
	state, err := rebuilt.Registry.ClassificationAt("E1", "R2")
	if err != nil || state != registry.StateStable {
		t.Errorf("ClassificationAt(E1, R2) = %s, %v, want Stable", state, err)
	}
	if _, ok := rebuilt.Cases.CaseFor("E2", "R1"); !ok {
		t.Error("case for E2 lost in round trip")
	}
	if !rebuilt.Registry.KnownFeatureTag("uses-nonstandard-backend") {
		t.Error("feature tag lost in round trip")
	}
	if rebuilt.Graph.NodeCount() != 2 {
		t.Errorf("Graph.NodeCount() = %d, want 2", rebuilt.Graph.NodeCount())
	}

	if rebuilt.Fingerprint() != orig.Fingerprint() {
		t.Error("fingerprint changed across round trip")
	}
}

func TestFromDocumentRejectsCycle(t *testing.T) {
	doc := Document{
		Releases: []timeline.Release{"R1"},
		Packages: []descriptor.Descriptor{
			{PackageID: "a", Release: "R1", Dependencies: []descriptor.Ref{{PackageID: "b", Release: "R1"}}},
			{PackageID: "b", Release: "R1", Dependencies: []descriptor.Ref{{PackageID: "a", Release: "R1"}}},
		},
	}

	if _, err := FromDocument(doc); !errors.Is(err, errors.ErrCodeGraphCycle) {
		t.Errorf("FromDocument with cycle = %v, want GRAPH_CYCLE", err)
	}
}

func TestFromDocumentRejectsBadTransition(t *testing.T) {
	doc := Document{
		Releases: []timeline.Release{"R1"},
		Transitions: []TransitionRecord{
			{Extension: "E1", Release: "R1", State: "Removed"},
		},
	}

	if _, err := FromDocument(doc); !errors.Is(err, errors.ErrCodeInvalidTransition) {
		t.Errorf("FromDocument with illegal transition = %v, want INVALID_TRANSITION", err)
	}
}

func TestFromDocumentAssignsID(t *testing.T) {
	doc := Document{Releases: []timeline.Release{"R1"}}
	s, err := FromDocument(doc)
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	if s.ID == "" {
		t.Error("FromDocument should assign a fresh ID when the document has none")
	}
}

func TestFingerprintChangesOnMutation(t *testing.T) {
	s := buildSnapshot(t)
	before := s.Fingerprint()

	if err := s.Timeline.Append("R4"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if after := s.Fingerprint(); after == before {
		t.Error("fingerprint should change when the timeline grows")
	}
}

func TestFingerprintIgnoresID(t *testing.T) {
	a := buildSnapshot(t)
	b := buildSnapshot(t)
	// Different UUIDs, same content.
	if a.ID == b.ID {
		t.Fatal("expected distinct snapshot IDs")
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprint should depend on content only, not on ID")
	}
}

func TestFromDocumentRejectsDanglingDependency(t *testing.T) {
	doc := Document{
		Releases: []timeline.Release{"R1"},
		Packages: []descriptor.Descriptor{
			{PackageID: "a", Release: "R1", Dependencies: []descriptor.Ref{{PackageID: "ghost", Release: "R1"}}},
		},
	}

	if _, err := FromDocument(doc); !errors.Is(err, errors.ErrCodeUnknownPackage) {
		t.Errorf("FromDocument with dangling dependency = %v, want UNKNOWN_PACKAGE", err)
	}
}
