package services

import (
	"context"
	"strconv"
	"sync"
	"time"

	"learnus-backend/internal/learnus"
	"learnus-backend/internal/models"
)

type activityEntry struct {
	fetchedAt  time.Time
	activities []models.Activity
}

// ActivityCache is a process-local TTL cache of parsed course activity lists,
// keyed by session identity and course id. Entries age out; logout may drop
// them early, but nothing ever depends on that.
type ActivityCache struct {
	source SourceAdapter
	ttl    time.Duration

	mu      sync.Mutex
	entries map[string]activityEntry
	now     func() time.Time
}

func NewActivityCache(source SourceAdapter, ttl time.Duration) *ActivityCache {
	return &ActivityCache{
		source:  source,
		ttl:     ttl,
		entries: make(map[string]activityEntry),
		now:     time.Now,
	}
}

// Get returns the cached activity list while it is fresher than the TTL,
// otherwise fetches through the Source Adapter and caches the result. Callers
// always receive their own copy: cached values are shared across requests and
// must never be written through.
func (c *ActivityCache) Get(ctx context.Context, sess *learnus.Session, courseID int) ([]models.Activity, error) {
	key := cacheKey(sess.Identity(), courseID)

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		activities := cloneActivities(entry.activities)
		c.mu.Unlock()
		return activities, nil
	}
	c.mu.Unlock()

	activities, err := c.source.ListActivities(ctx, sess, courseID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = activityEntry{fetchedAt: c.now(), activities: activities}
	activities = cloneActivities(activities)
	c.mu.Unlock()
	return activities, nil
}

// Put replaces the cached list for a still-cached key, keeping the original
// fetch time so an update never extends an entry's life. Used to write
// detail-enriched lists back so later calls skip the detail fetches.
func (c *ActivityCache) Put(identity string, courseID int, activities []models.Activity) {
	key := cacheKey(identity, courseID)
	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		entry.activities = cloneActivities(activities)
		c.entries[key] = entry
	}
	c.mu.Unlock()
}

// DropIdentity discards every cached list belonging to one session identity.
func (c *ActivityCache) DropIdentity(identity string) {
	prefix := identity + ":"
	c.mu.Lock()
	for key := range c.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

func cacheKey(identity string, courseID int) string {
	return identity + ":" + strconv.Itoa(courseID)
}

// cloneActivities copies the slice and every Extra map, so that two holders
// never share mutable state. Pointer fields (times, submitted) are only ever
// replaced wholesale, never written through, so sharing those is fine. Extra
// comes out non-nil even when the source left it nil.
func cloneActivities(activities []models.Activity) []models.Activity {
	out := make([]models.Activity, len(activities))
	copy(out, activities)
	for i := range out {
		extra := make(map[string]string, len(activities[i].Extra))
		for k, v := range activities[i].Extra {
			extra[k] = v
		}
		out[i].Extra = extra
	}
	return out
}
