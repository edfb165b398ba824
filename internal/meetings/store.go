package meetings

import (
	"context"
	"errors"
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

// Store provides CRUD and status transitions for meetings.
type Store struct {
	db DB
}

// NewStore creates a meeting store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const meetingColumns = `id, org_id, contact_id, created_by, title, scheduled_at, duration_minutes, status, location, notes, created_at, updated_at`

// Create inserts a new meeting in scheduled status.
func (s *Store) Create(ctx context.Context, m *Meeting) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.Status == "" {
		m.Status = StatusScheduled
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO meetings (id, org_id, contact_id, created_by, title, scheduled_at, duration_minutes, status, location, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		m.ID, m.OrgID, m.ContactID, m.CreatedBy, m.Title, m.ScheduledAt,
		m.DurationMinutes, string(m.Status), m.Location, m.Notes, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("meetings: create: %w", err)
	}
	return nil
}

// GetByID fetches a meeting scoped to the org.
func (s *Store) GetByID(ctx context.Context, orgID string, id uuid.UUID) (*Meeting, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+meetingColumns+`
		FROM meetings
		WHERE org_id = $1 AND id = $2`, orgID, id)

	m, err := scanMeeting(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMeetingNotFound
		}
		return nil, fmt.Errorf("meetings: get: %w", err)
	}
	return m, nil
}

// Cancel transitions a scheduled meeting to cancelled. Only scheduled
// meetings can be cancelled; the conditional update makes double-cancel a
// no-op error rather than a lost update.
func (s *Store) Cancel(ctx context.Context, orgID string, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE meetings SET status = 'cancelled', updated_at = $1
		WHERE org_id = $2 AND id = $3 AND status = 'scheduled'`,
		time.Now().UTC(), orgID, id)
	if err != nil {
		return fmt.Errorf("meetings: cancel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotCancellable
	}
	return nil
}

// Complete transitions a scheduled meeting to completed.
func (s *Store) Complete(ctx context.Context, orgID string, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE meetings SET status = 'completed', updated_at = $1
		WHERE org_id = $2 AND id = $3 AND status = 'scheduled'`,
		time.Now().UTC(), orgID, id)
	if err != nil {
		return fmt.Errorf("meetings: complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMeetingNotFound
	}
	return nil
}

// Delete removes a meeting row. Reminder cleanup is the scheduler's job.
func (s *Store) Delete(ctx context.Context, orgID string, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM meetings WHERE org_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return fmt.Errorf("meetings: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMeetingNotFound
	}
	return nil
}

// ListUpcoming returns scheduled meetings starting inside [from, until),
// soonest first.
func (s *Store) ListUpcoming(ctx context.Context, orgID string, from, until time.Time) ([]Meeting, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+meetingColumns+`
		FROM meetings
		WHERE org_id = $1 AND status = 'scheduled'
		  AND scheduled_at >= $2 AND scheduled_at < $3
		ORDER BY scheduled_at ASC`, orgID, from, until)
	if err != nil {
		return nil, fmt.Errorf("meetings: list upcoming: %w", err)
	}
	defer rows.Close()

	var out []Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("meetings: scan: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("meetings: list upcoming: %w", err)
	}
	return out, nil
}

func scanMeeting(row pgx.Row) (*Meeting, error) {
	var m Meeting
	if err := row.Scan(
		&m.ID, &m.OrgID, &m.ContactID, &m.CreatedBy, &m.Title, &m.ScheduledAt,
		&m.DurationMinutes, &m.Status, &m.Location, &m.Notes, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}
