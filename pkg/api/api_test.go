package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matzehuels/stackgate/pkg/descriptor"
	"github.com/matzehuels/stackgate/pkg/eval"
	"github.com/matzehuels/stackgate/pkg/snapshot"
	"github.com/matzehuels/stackgate/pkg/store"
	"github.com/matzehuels/stackgate/pkg/timeline"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(Config{Store: store.NewMemoryStore()})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func sampleDocument() snapshot.Document {
	return snapshot.Document{
		ID:       "snap-1",
		Releases: []timeline.Release{"R1", "R2"},
		Transitions: []snapshot.TransitionRecord{
			{Extension: "generics", Release: "R1", State: "Stable"},
		},
		Packages: []descriptor.Descriptor{
			{
				PackageID:       "core",
				Release:         "R1",
				ExtensionsUsed:  []string{"generics"},
				LanguageEdition: "2024",
			},
			{
				PackageID: "app",
				Release:   "R2",
				Dependencies: []descriptor.Ref{
					{PackageID: "core", Release: "R1"},
				},
			},
		},
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func submitSample(t *testing.T, h http.Handler) {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/v1/snapshots", sampleDocument())
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t).Handler()
	rec := doJSON(t, h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSnapshotLifecycle(t *testing.T) {
	h := newTestServer(t).Handler()
	submitSample(t, h)

	rec := doJSON(t, h, http.MethodGet, "/v1/snapshots", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list struct {
		IDs []string `json:"ids"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(list.IDs) != 1 || list.IDs[0] != "snap-1" {
		t.Errorf("ids = %v, want [snap-1]", list.IDs)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/snapshots/snap-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var doc snapshot.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decoding document: %v", err)
	}
	if len(doc.Packages) != 2 {
		t.Errorf("packages = %d, want 2", len(doc.Packages))
	}

	rec = doJSON(t, h, http.MethodDelete, "/v1/snapshots/snap-1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/v1/snapshots/snap-1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
}

func TestSubmitRejectsCycle(t *testing.T) {
	h := newTestServer(t).Handler()
	doc := snapshot.Document{
		Releases: []timeline.Release{"R1"},
		Packages: []descriptor.Descriptor{
			{PackageID: "a", Release: "R1", LanguageEdition: "2024",
				Dependencies: []descriptor.Ref{{PackageID: "b", Release: "R1"}}},
			{PackageID: "b", Release: "R1", LanguageEdition: "2024",
				Dependencies: []descriptor.Ref{{PackageID: "a", Release: "R1"}}},
		},
	}
	rec := doJSON(t, h, http.MethodPost, "/v1/snapshots", doc)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 (body %s)", rec.Code, rec.Body)
	}
	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding error envelope: %v", err)
	}
	if env.Error.Code != "GRAPH_CYCLE" {
		t.Errorf("error code = %q, want GRAPH_CYCLE", env.Error.Code)
	}
}

func TestVerdictEndpoint(t *testing.T) {
	h := newTestServer(t).Handler()
	submitSample(t, h)

	rec := doJSON(t, h, http.MethodGet, "/v1/snapshots/snap-1/verdicts/core/R1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var v eval.Verdict
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding verdict: %v", err)
	}
	if !v.IsStable {
		t.Errorf("core@R1 should be stable, got %+v", v)
	}

	// app has no language edition, so it is unstable
	rec = doJSON(t, h, http.MethodGet, "/v1/snapshots/snap-1/verdicts/app/R2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding verdict: %v", err)
	}
	if v.IsStable {
		t.Error("app@R2 should be unstable")
	}
}

func TestVerdictUnknownPackage(t *testing.T) {
	h := newTestServer(t).Handler()
	submitSample(t, h)

	rec := doJSON(t, h, http.MethodGet, "/v1/snapshots/snap-1/verdicts/ghost/R1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestEvaluateBatch(t *testing.T) {
	h := newTestServer(t).Handler()
	submitSample(t, h)

	rec := doJSON(t, h, http.MethodPost, "/v1/snapshots/snap-1/evaluate",
		batchRequest{Refs: []string{"core@R1", "app@R2", "core@R1"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp batchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding batch response: %v", err)
	}
	if len(resp.Verdicts) != 2 {
		t.Fatalf("verdicts = %d, want 2 (duplicates collapsed)", len(resp.Verdicts))
	}
	if resp.Verdicts[0].PackageID != "core" || resp.Verdicts[1].PackageID != "app" {
		t.Errorf("verdicts out of request order: %v, %v", resp.Verdicts[0].PackageID, resp.Verdicts[1].PackageID)
	}
}

func TestEvaluateBatchBadRef(t *testing.T) {
	h := newTestServer(t).Handler()
	submitSample(t, h)

	rec := doJSON(t, h, http.MethodPost, "/v1/snapshots/snap-1/evaluate",
		batchRequest{Refs: []string{"missing-release"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestInvalidateEndpoint(t *testing.T) {
	h := newTestServer(t).Handler()
	submitSample(t, h)

	// warm the memo
	rec := doJSON(t, h, http.MethodGet, "/v1/snapshots/snap-1/verdicts/app/R2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("warmup status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/snapshots/snap-1/invalidate",
		invalidateRequest{Package: "core", Release: "R1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["dropped"] != 2 {
		t.Errorf("dropped = %d, want 2 (core and its dependent app)", resp["dropped"])
	}
}

func TestParseRefForms(t *testing.T) {
	if _, err := parseRef("pkg@R1"); err != nil {
		t.Errorf("valid ref rejected: %v", err)
	}
	for _, bad := range []string{"", "pkg", "pkg@", "@R1"} {
		if _, err := parseRef(bad); err == nil {
			t.Errorf("parseRef(%q) should fail", bad)
		}
	}
}
