package scheduler

import (
	"context"
	"sync"
)

// MembershipTracker remembers which members of a journey's segment the last
// segment-entry pass saw, so a pass only enrolls customers who newly match.
type MembershipTracker interface {
	// Entered returns the members that were not part of the last committed
	// membership of the journey, in the order given.
	Entered(ctx context.Context, journeyID string, members []string) ([]string, error)
	// Commit replaces the remembered membership of the journey.
	Commit(ctx context.Context, journeyID string, members []string) error
}

// MemoryMembership is a process-local MembershipTracker.
type MemoryMembership struct {
	mu      sync.Mutex
	members map[string]map[string]struct{}
}

func NewMemoryMembership() *MemoryMembership {
	return &MemoryMembership{members: make(map[string]map[string]struct{})}
}

func (m *MemoryMembership) Entered(ctx context.Context, journeyID string, members []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := m.members[journeyID]
	var entered []string
	for _, id := range members {
		if _, ok := seen[id]; !ok {
			entered = append(entered, id)
		}
	}
	return entered, nil
}

func (m *MemoryMembership) Commit(ctx context.Context, journeyID string, members []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := make(map[string]struct{}, len(members))
	for _, id := range members {
		set[id] = struct{}{}
	}
	m.members[journeyID] = set
	return nil
}
