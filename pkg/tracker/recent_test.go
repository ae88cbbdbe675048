package tracker

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/redtick/redtick/pkg/model"
)

func TestRecentRegistry_AddMovesToFront(t *testing.T) {
	r := NewRecentRegistry()
	r.Add(model.Issue{ID: 1, Subject: "one"})
	r.Add(model.Issue{ID: 2, Subject: "two"})
	r.Add(model.Issue{ID: 1, Subject: "one again"})

	got := r.List()
	if len(got) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(got))
	}
	if got[0].ID != 1 || got[0].Subject != "one again" {
		t.Errorf("expected re-added issue at front with fresh data, got %+v", got[0])
	}
	if got[1].ID != 2 {
		t.Errorf("expected issue 2 second, got %+v", got[1])
	}
}

func TestRecentRegistry_ListIsSnapshot(t *testing.T) {
	r := NewRecentRegistry()
	r.Add(model.Issue{ID: 1, Subject: "one"})

	snap := r.List()
	snap[0].Subject = "mutated"

	if got := r.List()[0].Subject; got != "one" {
		t.Errorf("registry affected by mutating snapshot: %q", got)
	}
}

func TestRecentRegistry_Replace(t *testing.T) {
	r := NewRecentRegistry()
	r.Add(model.Issue{ID: 99})

	in := make([]model.Issue, 0, 15)
	for i := 0; i < 15; i++ {
		in = append(in, model.Issue{ID: i%12 + 1}) // a few duplicate IDs
	}
	r.Replace(in)

	got := r.List()
	if len(got) != RecentCapacity {
		t.Fatalf("expected %d issues after replace, got %d", RecentCapacity, len(got))
	}
	seen := map[int]bool{}
	for _, issue := range got {
		if seen[issue.ID] {
			t.Errorf("duplicate issue %d after replace", issue.ID)
		}
		seen[issue.ID] = true
	}
}

func TestRecentRegistry_Properties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := NewRecentRegistry()
		ids := rapid.SliceOfN(rapid.IntRange(1, 25), 1, 100).Draw(rt, "ids")

		for _, id := range ids {
			r.Add(model.Issue{ID: id, Subject: fmt.Sprintf("issue %d", id)})

			list := r.List()
			if len(list) > RecentCapacity {
				rt.Fatalf("registry grew beyond capacity: %d", len(list))
			}
			if list[0].ID != id {
				rt.Fatalf("last added issue %d not at front, got %d", id, list[0].ID)
			}
			seen := map[int]bool{}
			for _, issue := range list {
				if seen[issue.ID] {
					rt.Fatalf("duplicate issue %d in list", issue.ID)
				}
				seen[issue.ID] = true
			}
		}
	})
}
