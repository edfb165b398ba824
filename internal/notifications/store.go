package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists notifications.
type Store struct {
	db DB
}

// NewStore creates a notification store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const notificationColumns = `id, org_id, user_id, type, title, body, contact_id, scheduled_for, read, dismissed, metadata, created_by, created_at`

// Create inserts a single notification.
func (s *Store) Create(ctx context.Context, n *Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	meta, err := marshalMetadata(n.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO notifications (id, org_id, user_id, type, title, body, contact_id, scheduled_for, read, dismissed, metadata, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		n.ID, n.OrgID, n.UserID, n.Type, n.Title, n.Body, n.ContactID,
		n.ScheduledFor, n.Read, n.Dismissed, meta, n.CreatedBy, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("notifications: create: %w", err)
	}
	return nil
}

// BulkCreate inserts a batch of notifications one statement at a time,
// continuing past individual failures. It returns the number inserted and
// the last error seen, if any.
func (s *Store) BulkCreate(ctx context.Context, batch []*Notification) (int, error) {
	inserted := 0
	var lastErr error
	for _, n := range batch {
		if err := s.Create(ctx, n); err != nil {
			lastErr = err
			continue
		}
		inserted++
	}
	return inserted, lastErr
}

// MarkRead flips the read flag for a user's own notification.
func (s *Store) MarkRead(ctx context.Context, orgID string, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE notifications SET read = TRUE
		WHERE org_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return fmt.Errorf("notifications: mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notifications: mark read: no notification %s", id)
	}
	return nil
}

// MarkDismissed flips the dismissed flag.
func (s *Store) MarkDismissed(ctx context.Context, orgID string, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE notifications SET dismissed = TRUE
		WHERE org_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return fmt.Errorf("notifications: mark dismissed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notifications: mark dismissed: no notification %s", id)
	}
	return nil
}

// DismissByMeetingID soft-cancels every not-yet-dismissed notification
// whose metadata references the meeting. Returns how many rows changed;
// partially created reminder sets dismiss whatever exists.
func (s *Store) DismissByMeetingID(ctx context.Context, orgID string, meetingID uuid.UUID) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE notifications SET dismissed = TRUE
		WHERE org_id = $1 AND dismissed = FALSE AND metadata->>'meeting_id' = $2`,
		orgID, meetingID.String())
	if err != nil {
		return 0, fmt.Errorf("notifications: dismiss by meeting: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListRecentDedupKeys returns the idempotency keys of sweep-generated
// notifications created since the given time.
func (s *Store) ListRecentDedupKeys(ctx context.Context, orgID string, since time.Time) (map[string]struct{}, error) {
	rows, err := s.db.Query(ctx, `
		SELECT contact_id, user_id, type
		FROM notifications
		WHERE org_id = $1 AND created_at >= $2
		  AND contact_id IS NOT NULL AND user_id IS NOT NULL
		  AND type = ANY($3)`,
		orgID, since, []string{TypeDealStale, TypeTaskOverdue, TypeTaskDueToday, TypeDealUnassigned})
	if err != nil {
		return nil, fmt.Errorf("notifications: list dedup keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var contactID uuid.UUID
		var userID, notifType string
		if err := rows.Scan(&contactID, &userID, &notifType); err != nil {
			return nil, fmt.Errorf("notifications: scan dedup key: %w", err)
		}
		keys[DedupKey(contactID, userID, notifType)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notifications: list dedup keys: %w", err)
	}
	return keys, nil
}

// ListUnreadForUser returns the user's unread, undismissed, non-meeting
// notifications whose visibility time has arrived, most recent first.
func (s *Store) ListUnreadForUser(ctx context.Context, orgID, userID string, now time.Time, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE org_id = $1 AND user_id = $2
		  AND read = FALSE AND dismissed = FALSE
		  AND type <> $3
		  AND (scheduled_for IS NULL OR scheduled_for <= $4)
		ORDER BY created_at DESC
		LIMIT $5`, orgID, userID, TypeMeetingReminder, now, limit)
	if err != nil {
		return nil, fmt.Errorf("notifications: list unread: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

// ListOrgWide returns org-wide notifications (no target user) of the given
// types created since the given time, most recent first.
func (s *Store) ListOrgWide(ctx context.Context, orgID string, types []string, since time.Time, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE org_id = $1 AND user_id IS NULL
		  AND dismissed = FALSE
		  AND type = ANY($2) AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT $4`, orgID, types, since, limit)
	if err != nil {
		return nil, fmt.Errorf("notifications: list org-wide: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func scanNotifications(rows pgx.Rows) ([]Notification, error) {
	var out []Notification
	for rows.Next() {
		var n Notification
		var meta []byte
		if err := rows.Scan(
			&n.ID, &n.OrgID, &n.UserID, &n.Type, &n.Title, &n.Body,
			&n.ContactID, &n.ScheduledFor, &n.Read, &n.Dismissed,
			&meta, &n.CreatedBy, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("notifications: scan: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &n.Metadata); err != nil {
				return nil, fmt.Errorf("notifications: decode metadata: %w", err)
			}
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notifications: scan: %w", err)
	}
	return out, nil
}

func marshalMetadata(meta map[string]any) ([]byte, error) {
	if meta == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("notifications: encode metadata: %w", err)
	}
	return b, nil
}
