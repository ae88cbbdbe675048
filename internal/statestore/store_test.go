package statestore

import (
	"path/filepath"
	"testing"

	"github.com/redtick/redtick/pkg/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "recent.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadRecent_Empty(t *testing.T) {
	s := openTestStore(t)

	issues, err := s.LoadRecent()
	if err != nil {
		t.Fatalf("LoadRecent failed: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("expected empty list, got %d issues", len(issues))
	}
}

func TestSaveAndLoadRecent_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	want := []model.Issue{
		{ID: 3, Subject: "newest", ActivityID: 9, StatusID: 2},
		{ID: 1, Subject: "middle"},
		{ID: 2, Subject: "oldest", StatusID: 5},
	}
	if err := s.SaveRecent(want); err != nil {
		t.Fatalf("SaveRecent failed: %v", err)
	}

	got, err := s.LoadRecent()
	if err != nil {
		t.Fatalf("LoadRecent failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 issues, got %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("issue %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSaveRecent_ReplacesPrevious(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveRecent([]model.Issue{{ID: 1, Subject: "a"}, {ID: 2, Subject: "b"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveRecent([]model.Issue{{ID: 3, Subject: "c"}}); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadRecent()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != 3 {
		t.Errorf("expected only issue 3 after rewrite, got %+v", got)
	}
}

func TestSaveRecent_EmptyListClears(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveRecent([]model.Issue{{ID: 1, Subject: "a"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveRecent(nil); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadRecent()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected cleared list, got %+v", got)
	}
}
