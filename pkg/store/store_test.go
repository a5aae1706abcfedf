package store

import (
	"context"
	"reflect"
	"testing"

	"github.com/matzehuels/stackgate/pkg/errors"
	"github.com/matzehuels/stackgate/pkg/snapshot"
	"github.com/matzehuels/stackgate/pkg/timeline"
)

func sampleDoc(id string) snapshot.Document {
	return snapshot.Document{
		ID:       id,
		Releases: []timeline.Release{"R1", "R2"},
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close(ctx)

	want := sampleDoc("snap-1")
	if err := s.Put(ctx, want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "snap-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Get = %+v, want %+v", got, want)
	}

	// upsert replaces
	want.Releases = append(want.Releases, "R3")
	if err := s.Put(ctx, want); err != nil {
		t.Fatalf("Put (upsert): %v", err)
	}
	got, err = s.Get(ctx, "snap-1")
	if err != nil {
		t.Fatalf("Get after upsert: %v", err)
	}
	if len(got.Releases) != 3 {
		t.Errorf("upsert did not replace: %v", got.Releases)
	}
}

func TestMemoryStoreMissing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Get(ctx, "nope"); errors.GetCode(err) != errors.ErrCodeSnapshotNotFound {
		t.Errorf("Get code = %s, want %s", errors.GetCode(err), errors.ErrCodeSnapshotNotFound)
	}
	if err := s.Delete(ctx, "nope"); errors.GetCode(err) != errors.ErrCodeSnapshotNotFound {
		t.Errorf("Delete code = %s, want %s", errors.GetCode(err), errors.ErrCodeSnapshotNotFound)
	}
}

func TestMemoryStoreRejectsEmptyID(t *testing.T) {
	if err := NewMemoryStore().Put(context.Background(), snapshot.Document{}); err == nil {
		t.Fatal("expected error for empty ID")
	}
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, id := range []string{"c", "a", "b"} {
		if err := s.Put(ctx, sampleDoc(id)); err != nil {
			t.Fatalf("Put(%s): %v", id, err)
		}
	}
	if err := s.Delete(ctx, "b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	ids, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"a", "c"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("List = %v, want %v", ids, want)
	}
}
