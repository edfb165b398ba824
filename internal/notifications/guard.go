package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pipewise/pipeline-engine/pkg/logging"
)

// DedupLookup is the slice of the store the guard needs.
type DedupLookup interface {
	ListRecentDedupKeys(ctx context.Context, orgID string, since time.Time) (map[string]struct{}, error)
}

// Guard suppresses re-creating equivalent notifications inside a trailing
// window. The durable lookup against the notification store is what makes
// overlapping sweeps safe without locks; redis is an optional atomic fast
// path in front of it and the guard degrades silently when redis is absent
// or down.
type Guard struct {
	store  DedupLookup
	rdb    redis.UniversalClient
	window time.Duration
	logger *logging.Logger
}

// NewGuard creates an idempotency guard. rdb may be nil.
func NewGuard(store DedupLookup, rdb redis.UniversalClient, window time.Duration, logger *logging.Logger) *Guard {
	if logger == nil {
		logger = logging.Default()
	}
	if window <= 0 {
		window = 6 * time.Hour
	}
	return &Guard{store: store, rdb: rdb, window: window, logger: logger}
}

// Window returns the trailing suppression window.
func (g *Guard) Window() time.Duration {
	return g.window
}

// FilterNew returns the subset of candidates whose dedup key has not been
// seen inside the window, preserving order. A candidate without both a
// contact and target user never dedups and passes through.
func (g *Guard) FilterNew(ctx context.Context, orgID string, now time.Time, candidates []*Notification) ([]*Notification, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	recent, err := g.store.ListRecentDedupKeys(ctx, orgID, now.Add(-g.window))
	if err != nil {
		return nil, fmt.Errorf("notifications: guard lookup: %w", err)
	}

	var fresh []*Notification
	for _, n := range candidates {
		if n.ContactID == nil || n.UserID == nil {
			fresh = append(fresh, n)
			continue
		}
		key := DedupKey(*n.ContactID, *n.UserID, n.Type)
		if _, seen := recent[key]; seen {
			continue
		}
		if !g.claimRedis(ctx, orgID, key) {
			continue
		}
		fresh = append(fresh, n)
	}
	return fresh, nil
}

// claimRedis atomically claims the key for the window. Returns true when
// the key was free or redis is unavailable; overlapping sweeps racing past
// the store lookup are resolved here when redis is configured.
func (g *Guard) claimRedis(ctx context.Context, orgID, key string) bool {
	if g.rdb == nil {
		return true
	}
	ok, err := g.rdb.SetNX(ctx, "notifguard:"+orgID+":"+key, 1, g.window).Result()
	if err != nil {
		g.logger.Warn("notifications: redis guard unavailable, relying on store window", "error", err)
		return true
	}
	return ok
}
