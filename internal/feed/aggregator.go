package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pipewise/pipeline-engine/internal/meetings"
	"github.com/pipewise/pipeline-engine/internal/notifications"
	"github.com/pipewise/pipeline-engine/pkg/logging"
)

// Category tags a feed item for display styling only; nothing downstream
// branches on it.
type Category string

const (
	CategoryUrgent   Category = "urgent"
	CategoryDigest   Category = "digest"
	CategoryPersonal Category = "personal"
	CategoryOrg      Category = "org"
)

// OrgWideTypes are the notification types surfaced org-wide in the feed.
var OrgWideTypes = []string{notifications.TypeDealWon, notifications.TypeAnnouncement}

const (
	meetingHorizon  = 48 * time.Hour
	urgentWithin    = 60 * time.Minute
	escalatedWithin = 15 * time.Minute
	orgWindow       = 24 * time.Hour
	ownCap          = 10
	orgCap          = 20
)

// Item is one entry in the aggregated feed.
type Item struct {
	Category       Category   `json:"category"`
	Title          string     `json:"title"`
	Body           string     `json:"body,omitempty"`
	MeetingID      *uuid.UUID `json:"meeting_id,omitempty"`
	NotificationID *uuid.UUID `json:"notification_id,omitempty"`
	ContactID      *uuid.UUID `json:"contact_id,omitempty"`
	Author         string     `json:"author,omitempty"`
	At             *time.Time `json:"at,omitempty"`
}

// Feed is the aggregated result for one user.
type Feed struct {
	Enabled bool   `json:"enabled"`
	Items   []Item `json:"items"`
}

// MeetingSource is the slice of the meeting store the feed reads.
type MeetingSource interface {
	ListUpcoming(ctx context.Context, orgID string, from, until time.Time) ([]meetings.Meeting, error)
}

// NotificationSource is the slice of the notification store the feed reads.
type NotificationSource interface {
	ListUnreadForUser(ctx context.Context, orgID, userID string, now time.Time, limit int) ([]notifications.Notification, error)
	ListOrgWide(ctx context.Context, orgID string, types []string, since time.Time, limit int) ([]notifications.Notification, error)
}

// Directory resolves org flags and user display names.
type Directory interface {
	OrgFeedEnabled(ctx context.Context, orgID string) (bool, error)
	GetUserName(ctx context.Context, orgID, userID string) (string, error)
}

// Aggregator builds the announcement feed. It is read-only; stale reads
// are acceptable since clients re-poll.
type Aggregator struct {
	meetings MeetingSource
	notifs   NotificationSource
	dir      Directory
	loc      *time.Location
	logger   *logging.Logger
}

// NewAggregator wires a feed aggregator. loc fixes the civil day boundary
// for the today/tomorrow split.
func NewAggregator(ms MeetingSource, ns NotificationSource, dir Directory, loc *time.Location, logger *logging.Logger) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Aggregator{meetings: ms, notifs: ns, dir: dir, loc: loc, logger: logger}
}

// Build assembles the feed for one user: urgent meeting items first, then
// the today/tomorrow meeting digests, the user's own unread notifications,
// and finally recent org-wide announcements.
func (a *Aggregator) Build(ctx context.Context, orgID, userID string, now time.Time) (*Feed, error) {
	enabled, err := a.dir.OrgFeedEnabled(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("feed: org flag: %w", err)
	}
	if !enabled {
		return &Feed{Enabled: false}, nil
	}

	feed := &Feed{Enabled: true}

	meetingItems, err := a.meetingItems(ctx, orgID, now)
	if err != nil {
		return nil, err
	}
	feed.Items = append(feed.Items, meetingItems...)

	own, err := a.notifs.ListUnreadForUser(ctx, orgID, userID, now, ownCap)
	if err != nil {
		return nil, fmt.Errorf("feed: own notifications: %w", err)
	}
	for _, n := range own {
		feed.Items = append(feed.Items, notificationItem(n, CategoryPersonal, ""))
	}

	orgWide, err := a.notifs.ListOrgWide(ctx, orgID, OrgWideTypes, now.Add(-orgWindow), orgCap)
	if err != nil {
		return nil, fmt.Errorf("feed: org notifications: %w", err)
	}
	for _, n := range orgWide {
		author := ""
		if n.CreatedBy != nil {
			author, err = a.dir.GetUserName(ctx, orgID, *n.CreatedBy)
			if err != nil {
				return nil, fmt.Errorf("feed: resolve author: %w", err)
			}
		}
		feed.Items = append(feed.Items, notificationItem(n, CategoryOrg, author))
	}

	return feed, nil
}

func (a *Aggregator) meetingItems(ctx context.Context, orgID string, now time.Time) ([]Item, error) {
	upcoming, err := a.meetings.ListUpcoming(ctx, orgID, now, now.Add(meetingHorizon))
	if err != nil {
		return nil, fmt.Errorf("feed: upcoming meetings: %w", err)
	}
	if len(upcoming) == 0 {
		return nil, nil
	}

	var items []Item
	var today, tomorrow []meetings.Meeting
	localNow := now.In(a.loc)

	for _, m := range upcoming {
		until := m.ScheduledAt.Sub(now)
		if until <= urgentWithin {
			items = append(items, urgentItem(m, until))
		}
		switch dayOffset(localNow, m.ScheduledAt.In(a.loc)) {
		case 0:
			today = append(today, m)
		case 1:
			tomorrow = append(tomorrow, m)
		}
	}

	if len(today) > 0 {
		items = append(items, digestItem("today", today, a.loc))
	}
	if len(tomorrow) > 0 {
		items = append(items, digestItem("tomorrow", tomorrow, a.loc))
	}
	return items, nil
}

func urgentItem(m meetings.Meeting, until time.Duration) Item {
	mid := m.ID
	cid := m.ContactID
	at := m.ScheduledAt
	mins := int(until.Minutes())
	title := fmt.Sprintf("Meeting %q starts in %d minutes", m.Title, mins)
	if until <= escalatedWithin {
		title = fmt.Sprintf("Meeting %q starts in %d minutes. Time to get ready.", m.Title, mins)
	}
	return Item{
		Category:  CategoryUrgent,
		Title:     title,
		MeetingID: &mid,
		ContactID: &cid,
		At:        &at,
	}
}

func digestItem(day string, ms []meetings.Meeting, loc *time.Location) Item {
	lines := make([]string, len(ms))
	for i, m := range ms {
		lines[i] = fmt.Sprintf("%s (%s)", m.Title, m.ScheduledAt.In(loc).Format("15:04"))
	}
	noun := "meetings"
	if len(ms) == 1 {
		noun = "meeting"
	}
	return Item{
		Category: CategoryDigest,
		Title:    fmt.Sprintf("%d %s %s", len(ms), noun, day),
		Body:     strings.Join(lines, ", "),
	}
}

func notificationItem(n notifications.Notification, cat Category, author string) Item {
	nid := n.ID
	at := n.CreatedAt
	item := Item{
		Category:       cat,
		Title:          n.Title,
		Body:           n.Body,
		NotificationID: &nid,
		ContactID:      n.ContactID,
		Author:         author,
		At:             &at,
	}
	return item
}

// dayOffset returns how many calendar days b is ahead of a in their
// common location.
func dayOffset(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
