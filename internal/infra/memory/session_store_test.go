package memory

import (
	"testing"

	"wrongnote-service/internal/app"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()
	created := 0
	create := func() *app.Session {
		created++
		return app.NewSession("m1", nil, nil, nil)
	}

	session, isNew := store.GetOrCreate("m1", create)
	if session == nil || !isNew {
		t.Fatalf("expected new session")
	}
	again, isNew := store.GetOrCreate("m1", create)
	if again != session || isNew || created != 1 {
		t.Fatalf("expected existing session to be reused")
	}
	if _, ok := store.Get("m1"); !ok {
		t.Fatalf("expected session present")
	}

	if !store.DeleteIfEmpty("m1") {
		t.Fatalf("expected idle session to be deleted")
	}
	if _, ok := store.Get("m1"); ok {
		t.Fatalf("expected session removed")
	}
	if store.DeleteIfEmpty("m1") {
		t.Fatalf("expected no-op for unknown member")
	}
}
