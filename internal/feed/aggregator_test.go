package feed

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipewise/pipeline-engine/internal/meetings"
	"github.com/pipewise/pipeline-engine/internal/notifications"
)

type fakeMeetings struct{ upcoming []meetings.Meeting }

func (f *fakeMeetings) ListUpcoming(_ context.Context, _ string, from, until time.Time) ([]meetings.Meeting, error) {
	var out []meetings.Meeting
	for _, m := range f.upcoming {
		if !m.ScheduledAt.Before(from) && m.ScheduledAt.Before(until) {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeNotifs struct {
	own     []notifications.Notification
	orgWide []notifications.Notification
}

func (f *fakeNotifs) ListUnreadForUser(_ context.Context, _, _ string, _ time.Time, limit int) ([]notifications.Notification, error) {
	if len(f.own) > limit {
		return f.own[:limit], nil
	}
	return f.own, nil
}

func (f *fakeNotifs) ListOrgWide(_ context.Context, _ string, _ []string, _ time.Time, limit int) ([]notifications.Notification, error) {
	if len(f.orgWide) > limit {
		return f.orgWide[:limit], nil
	}
	return f.orgWide, nil
}

type fakeDirectory struct {
	enabled bool
	names   map[string]string
}

func (f *fakeDirectory) OrgFeedEnabled(context.Context, string) (bool, error) { return f.enabled, nil }

func (f *fakeDirectory) GetUserName(_ context.Context, _, userID string) (string, error) {
	return f.names[userID], nil
}

var saoPaulo = func() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		panic(err)
	}
	return loc
}()

// Noon local time, so today/tomorrow boundaries are unambiguous.
var feedNow = time.Date(2025, 6, 10, 12, 0, 0, 0, saoPaulo)

func meeting(title string, at time.Time) meetings.Meeting {
	return meetings.Meeting{
		ID:          uuid.New(),
		OrgID:       "org-1",
		ContactID:   uuid.New(),
		Title:       title,
		ScheduledAt: at,
		Status:      meetings.StatusScheduled,
	}
}

func itemsByCategory(f *Feed) map[Category][]Item {
	out := map[Category][]Item{}
	for _, it := range f.Items {
		out[it.Category] = append(out[it.Category], it)
	}
	return out
}

func TestBuildDisabledFeed(t *testing.T) {
	a := NewAggregator(&fakeMeetings{}, &fakeNotifs{}, &fakeDirectory{enabled: false}, saoPaulo, nil)

	feed, err := a.Build(context.Background(), "org-1", "u1", feedNow)
	require.NoError(t, err)
	assert.False(t, feed.Enabled)
	assert.Empty(t, feed.Items)
}

func TestBuildGroupsMeetingsByLocalDay(t *testing.T) {
	fm := &fakeMeetings{upcoming: []meetings.Meeting{
		meeting("Kickoff", feedNow.Add(3*time.Hour)),       // today 15:00
		meeting("Review", feedNow.Add(5*time.Hour)),        // today 17:00
		meeting("Demo", feedNow.Add(21*time.Hour)),         // tomorrow 09:00
		meeting("Far out", feedNow.Add(47*time.Hour+30*time.Minute)), // day after tomorrow
	}}
	a := NewAggregator(fm, &fakeNotifs{}, &fakeDirectory{enabled: true}, saoPaulo, nil)

	feed, err := a.Build(context.Background(), "org-1", "u1", feedNow)
	require.NoError(t, err)

	digests := itemsByCategory(feed)[CategoryDigest]
	require.Len(t, digests, 2)
	assert.Equal(t, "2 meetings today", digests[0].Title)
	assert.Contains(t, digests[0].Body, "Kickoff (15:00)")
	assert.Contains(t, digests[0].Body, "Review (17:00)")
	assert.Equal(t, "1 meeting tomorrow", digests[1].Title)
	assert.Contains(t, digests[1].Body, "Demo (09:00)")
}

func TestBuildUrgentMeetingEscalation(t *testing.T) {
	fm := &fakeMeetings{upcoming: []meetings.Meeting{
		meeting("Soon", feedNow.Add(40*time.Minute)),
		meeting("Imminent", feedNow.Add(10*time.Minute)),
		meeting("Later", feedNow.Add(3*time.Hour)),
	}}
	a := NewAggregator(fm, &fakeNotifs{}, &fakeDirectory{enabled: true}, saoPaulo, nil)

	feed, err := a.Build(context.Background(), "org-1", "u1", feedNow)
	require.NoError(t, err)

	urgent := itemsByCategory(feed)[CategoryUrgent]
	require.Len(t, urgent, 2)
	assert.Equal(t, `Meeting "Soon" starts in 40 minutes`, urgent[0].Title)
	assert.Contains(t, urgent[1].Title, "Time to get ready")

	// Urgent meetings still count in the today digest.
	digests := itemsByCategory(feed)[CategoryDigest]
	require.Len(t, digests, 1)
	assert.Equal(t, "3 meetings today", digests[0].Title)
}

func TestBuildIncludesOwnAndOrgWideNotifications(t *testing.T) {
	author := "u2"
	fn := &fakeNotifs{
		own: []notifications.Notification{
			{ID: uuid.New(), Type: notifications.TypeDealStale, Title: "Acme has gone quiet", CreatedAt: feedNow.Add(-time.Hour)},
		},
		orgWide: []notifications.Notification{
			{ID: uuid.New(), Type: notifications.TypeDealWon, Title: "Deal won!", CreatedBy: &author, CreatedAt: feedNow.Add(-2 * time.Hour)},
		},
	}
	dir := &fakeDirectory{enabled: true, names: map[string]string{"u2": "Bea"}}
	a := NewAggregator(&fakeMeetings{}, fn, dir, saoPaulo, nil)

	feed, err := a.Build(context.Background(), "org-1", "u1", feedNow)
	require.NoError(t, err)

	byCat := itemsByCategory(feed)
	require.Len(t, byCat[CategoryPersonal], 1)
	assert.Equal(t, "Acme has gone quiet", byCat[CategoryPersonal][0].Title)

	require.Len(t, byCat[CategoryOrg], 1)
	assert.Equal(t, "Bea", byCat[CategoryOrg][0].Author)
}

func TestBuildOrderIsUrgentDigestPersonalOrg(t *testing.T) {
	fn := &fakeNotifs{
		own:     []notifications.Notification{{ID: uuid.New(), Title: "own"}},
		orgWide: []notifications.Notification{{ID: uuid.New(), Title: "org"}},
	}
	fm := &fakeMeetings{upcoming: []meetings.Meeting{
		meeting("Imminent", feedNow.Add(10 * time.Minute)),
	}}
	a := NewAggregator(fm, fn, &fakeDirectory{enabled: true}, saoPaulo, nil)

	feed, err := a.Build(context.Background(), "org-1", "u1", feedNow)
	require.NoError(t, err)

	var cats []Category
	for _, it := range feed.Items {
		cats = append(cats, it.Category)
	}
	assert.Equal(t, []Category{CategoryUrgent, CategoryDigest, CategoryPersonal, CategoryOrg}, cats)
}
