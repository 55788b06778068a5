package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"team-pulse/internal/model"

	"gorm.io/gorm"
)

// RosterCache keeps each workspace's active members for ttl. Construct one
// per process and share it.
type RosterCache struct {
	db    *gorm.DB
	clock Clock
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]rosterEntry
}

type rosterEntry struct {
	members []model.Member
	loaded  time.Time
}

func NewRosterCache(db *gorm.DB, clock Clock, ttl time.Duration) *RosterCache {
	return &RosterCache{db: db, clock: clock, ttl: ttl, entries: map[string]rosterEntry{}}
}

// ActiveMembers returns the workspace's active members ordered by id.
func (c *RosterCache) ActiveMembers(ctx context.Context, workspace string) ([]model.Member, error) {
	now := c.clock.Now()
	c.mu.Lock()
	e, ok := c.entries[workspace]
	c.mu.Unlock()
	if ok && now.Sub(e.loaded) < c.ttl {
		return e.members, nil
	}

	var members []model.Member
	err := c.db.WithContext(ctx).
		Where("workspace = ? AND active = ?", workspace, true).
		Order("id").Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("load roster %s: %w", workspace, err)
	}

	c.mu.Lock()
	c.entries[workspace] = rosterEntry{members: members, loaded: now}
	c.mu.Unlock()
	return members, nil
}

// Member looks a member up through the cached roster.
func (c *RosterCache) Member(ctx context.Context, workspace string, id int) (*model.Member, error) {
	members, err := c.ActiveMembers(ctx, workspace)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if members[i].ID == id {
			return &members[i], nil
		}
	}
	return nil, fmt.Errorf("member %d not in workspace %s", id, workspace)
}

func (c *RosterCache) Invalidate(workspace string) {
	c.mu.Lock()
	delete(c.entries, workspace)
	c.mu.Unlock()
}
