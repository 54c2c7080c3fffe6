package actor

import (
	"context"
	"errors"
	"testing"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestSQLite(t)
	ctx := context.Background()

	stored, err := s.Upsert(ctx, Actor{ID: "elara", Name: "Elara", Flags: map[string]string{"voice-id": "v1"}})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if stored.ID != "elara" {
		t.Errorf("stored id = %q, want elara", stored.ID)
	}

	byID, err := s.FindByID(ctx, "elara")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got, _ := byID.Flag("voice-id"); got != "v1" {
		t.Errorf("flags after round trip = %v, want voice-id=v1", byID.Flags)
	}

	byName, err := s.FindByName(ctx, "Elara")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if byName.ID != "elara" {
		t.Errorf("FindByName id = %q, want elara", byName.ID)
	}
}

func TestSQLiteStoreUpsertReplaces(t *testing.T) {
	t.Parallel()

	s := openTestSQLite(t)
	ctx := context.Background()

	if _, err := s.Upsert(ctx, Actor{ID: "elara", Name: "Elara"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := s.Upsert(ctx, Actor{ID: "elara", Name: "Elara the Wise", Flags: map[string]string{"voice-id": "v2"}}); err != nil {
		t.Fatalf("Upsert (replace): %v", err)
	}

	a, err := s.FindByID(ctx, "elara")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if a.Name != "Elara the Wise" {
		t.Errorf("name after replace = %q, want Elara the Wise", a.Name)
	}
	if got, _ := a.Flag("voice-id"); got != "v2" {
		t.Errorf("flags after replace = %v, want voice-id=v2", a.Flags)
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("List returned %d actors, want 1 after replacing", len(all))
	}
}

func TestSQLiteStoreAssignsIDs(t *testing.T) {
	t.Parallel()

	s := openTestSQLite(t)
	stored, err := s.Upsert(context.Background(), Actor{Name: "Nameless"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if stored.ID == "" {
		t.Error("Upsert should assign an id to an actor without one")
	}
}

func TestSQLiteStoreNotFound(t *testing.T) {
	t.Parallel()

	s := openTestSQLite(t)
	ctx := context.Background()

	if _, err := s.FindByID(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByID = %v, want ErrNotFound", err)
	}
	if _, err := s.FindByName(ctx, "Ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByName = %v, want ErrNotFound", err)
	}
	if err := s.Remove(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStoreRemove(t *testing.T) {
	t.Parallel()

	s := openTestSQLite(t)
	ctx := context.Background()

	if _, err := s.Upsert(ctx, Actor{ID: "elara", Name: "Elara"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Remove(ctx, "elara"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.FindByID(ctx, "elara"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByID after Remove = %v, want ErrNotFound", err)
	}
}
