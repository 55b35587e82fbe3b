package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"wrongnote-service/internal/app"
	"wrongnote-service/internal/infra/memory"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Minute)
	create := func() *app.Session { return app.NewSession("member-1", nil, nil, nil) }

	if _, isNew := store.GetOrCreate("member-1", create); !isNew {
		t.Fatalf("expected new session")
	}
	if !mr.Exists("note:session:member-1") {
		t.Fatalf("expected redis key to be set")
	}
	if _, isNew := store.GetOrCreate("member-1", create); isNew {
		t.Fatalf("expected existing session")
	}

	if !store.DeleteIfEmpty("member-1") {
		t.Fatalf("expected idle session to be deleted")
	}
	if mr.Exists("note:session:member-1") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, ok := store.Get("member-1"); ok {
		t.Fatalf("expected session removed")
	}
}

func TestSessionStoreKeepsSharedSession(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Minute)
	service := app.NewNoteService(store, memory.NewStaticSource(nil, nil), memory.NewStaticAnalyzer(nil), nil, app.Options{})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := service.Open(ctx, "member-1"); err != nil {
			t.Fatalf("open: %v", err)
		}
	}

	service.Close("member-1")
	if !mr.Exists("note:session:member-1") {
		t.Fatalf("expected key kept while a connection is attached")
	}
	service.Close("member-1")
	if mr.Exists("note:session:member-1") {
		t.Fatalf("expected key removed after the last connection")
	}
}
