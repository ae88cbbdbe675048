package tracker

import (
	"sync"

	"github.com/redtick/redtick/pkg/model"
)

// RecentCapacity is the maximum length of the recent-issues list.
const RecentCapacity = 10

// RecentRegistry is a bounded, ordered cache of recently loaded issues,
// most-recent-first, unique by issue ID.
type RecentRegistry struct {
	mu       sync.Mutex
	capacity int
	issues   []model.Issue
}

// NewRecentRegistry creates an empty registry with the default capacity.
func NewRecentRegistry() *RecentRegistry {
	return &RecentRegistry{capacity: RecentCapacity}
}

// Add inserts the issue at the front. If an issue with the same ID is
// already present, the old occurrence is removed first so the list never
// holds duplicates. Entries beyond the capacity are dropped from the tail.
func (r *RecentRegistry) Add(issue model.Issue) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.issues {
		if existing.ID == issue.ID {
			r.issues = append(r.issues[:i], r.issues[i+1:]...)
			break
		}
	}

	r.issues = append([]model.Issue{issue}, r.issues...)
	if len(r.issues) > r.capacity {
		r.issues = r.issues[:r.capacity]
	}
}

// List returns a copied snapshot, most-recent-first. Mutating the returned
// slice does not affect the registry.
func (r *RecentRegistry) List() []model.Issue {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Issue, len(r.issues))
	copy(out, r.issues)
	return out
}

// Len returns the number of cached issues.
func (r *RecentRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.issues)
}

// Replace overwrites the registry contents, preserving order, deduplicating
// by ID and enforcing the capacity. Used to hydrate from persisted state.
func (r *RecentRegistry) Replace(issues []model.Issue) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[int]bool, len(issues))
	out := make([]model.Issue, 0, r.capacity)
	for _, issue := range issues {
		if seen[issue.ID] {
			continue
		}
		seen[issue.ID] = true
		out = append(out, issue)
		if len(out) == r.capacity {
			break
		}
	}
	r.issues = out
}
