package manifest

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/stackgate/pkg/descriptor"
	"github.com/matzehuels/stackgate/pkg/errors"
)

const sampleManifest = `
releases = ["R1", "R2", "R3"]
feature_tags = ["lazy-eval"]

[[transition]]
extension = "generics"
release = "R1"
state = "Stable"

[[transition]]
extension = "generics"
release = "R2"
state = "Deprecated"

[[case]]
subject = "generics"
announced_at = "R2"
minimum_cycles = 2

[[package]]
id = "core"
release = "R1"
language_edition = "2024"
extensions = ["generics"]

[[package]]
id = "app"
release = "R2"
language_edition = "2024"
dependencies = ["core@R1"]
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := s.Timeline.Len(); got != 3 {
		t.Errorf("timeline length = %d, want 3", got)
	}
	if !s.Registry.KnownFeatureTag("lazy-eval") {
		t.Error("feature tag lazy-eval not registered")
	}
	if got := len(s.Registry.Transitions("generics")); got != 2 {
		t.Errorf("generics transitions = %d, want 2", got)
	}
	if _, ok := s.Cases.CaseFor("generics", "R2"); !ok {
		t.Error("deprecation case for generics@R2 not replayed")
	}
	appRef := descriptor.Ref{PackageID: "app", Release: "R2"}
	d, ok := s.Graph.Node(appRef)
	if !ok {
		t.Fatal("app@R2 not in graph")
	}
	if len(d.Dependencies) != 1 || d.Dependencies[0].PackageID != "core" {
		t.Errorf("app dependencies = %v, want [core@R1]", d.Dependencies)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		code     errors.Code
	}{
		{
			name:     "malformed toml",
			manifest: `releases = [`,
			code:     errors.ErrCodeInvalidManifest,
		},
		{
			name: "illegal transition order",
			manifest: `
releases = ["R1"]
[[transition]]
extension = "x"
release = "R1"
state = "Removed"
`,
			code: errors.ErrCodeInvalidTransition,
		},
		{
			name: "malformed dependency ref",
			manifest: `
releases = ["R1"]
[[package]]
id = "app"
release = "R1"
dependencies = ["no-release-part"]
`,
			code: errors.ErrCodeInvalidManifest,
		},
		{
			name: "dependency cycle",
			manifest: `
releases = ["R1"]
[[package]]
id = "a"
release = "R1"
dependencies = ["b@R1"]
[[package]]
id = "b"
release = "R1"
dependencies = ["a@R1"]
`,
			code: errors.ErrCodeGraphCycle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.manifest))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("code = %s, want %s", got, tt.code)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	s, err := Parse([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	path := filepath.Join(t.TempDir(), "ecosystem.toml")
	if err := Save(path, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Fingerprint() != s.Fingerprint() {
		t.Error("round-tripped snapshot has a different fingerprint")
	}
	if loaded.ID != s.ID {
		t.Errorf("ID = %q, want %q", loaded.ID, s.ID)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "absent.toml") {
		t.Errorf("error should mention the path, got %v", err)
	}
	if errors.GetCode(err) != errors.ErrCodeInvalidManifest {
		t.Errorf("code = %s, want %s", errors.GetCode(err), errors.ErrCodeInvalidManifest)
	}
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		in      string
		pkg     string
		release string
		ok      bool
	}{
		{"core@R1", "core", "R1", true},
		{"@scope/pkg@R2", "@scope/pkg", "R2", true},
		{"noat", "", "", false},
		{"trailing@", "", "", false},
		{"@R1", "", "", false},
	}
	for _, tt := range tests {
		ref, err := ParseRef(tt.in)
		if tt.ok != (err == nil) {
			t.Errorf("ParseRef(%q) error = %v, want ok=%v", tt.in, err, tt.ok)
			continue
		}
		if tt.ok && (ref.PackageID != tt.pkg || string(ref.Release) != tt.release) {
			t.Errorf("ParseRef(%q) = %v, want %s@%s", tt.in, ref, tt.pkg, tt.release)
		}
	}
}

func TestSupports(t *testing.T) {
	if !Supports("ecosystem.toml") || !Supports("X.TOML") {
		t.Error("toml files should be supported")
	}
	if Supports("ecosystem.json") {
		t.Error("json files should not be supported")
	}
}
