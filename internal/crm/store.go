package crm

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

// Store reads and updates contact records. The wider product owns the
// tables; this engine only touches the fields listed here.
type Store struct {
	db DB
}

// NewStore creates a contact store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// recentInteractions caps how many interactions are attached per contact.
const recentInteractions = 10

const contactColumns = `id, org_id, name, stage, temperature, estimated_value, owner_user_id, next_action_type, next_action_date, created_at, updated_at`

// GetByID fetches one contact with its recent interactions.
func (s *Store) GetByID(ctx context.Context, orgID string, id uuid.UUID) (*ContactSnapshot, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE org_id = $1 AND id = $2`, orgID, id)

	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("crm: get contact: %w", err)
	}

	if err := s.attachInteractions(ctx, []*ContactSnapshot{c}); err != nil {
		return nil, err
	}
	return c, nil
}

// ListActiveByOrg returns every active-stage contact in the org, with
// recent interactions attached most recent first.
func (s *Store) ListActiveByOrg(ctx context.Context, orgID string) ([]*ContactSnapshot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE org_id = $1 AND stage = ANY($2)
		ORDER BY updated_at ASC`, orgID, stageStrings(ActiveStages))
	if err != nil {
		return nil, fmt.Errorf("crm: list active contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*ContactSnapshot
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("crm: scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("crm: list active contacts: %w", err)
	}

	if err := s.attachInteractions(ctx, contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

func (s *Store) attachInteractions(ctx context.Context, contacts []*ContactSnapshot) error {
	if len(contacts) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*ContactSnapshot, len(contacts))
	ids := make([]uuid.UUID, 0, len(contacts))
	for _, c := range contacts {
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, contact_id, type, outcome, occurred_at
		FROM (
			SELECT i.*, ROW_NUMBER() OVER (PARTITION BY contact_id ORDER BY occurred_at DESC) AS rn
			FROM interactions i
			WHERE contact_id = ANY($1)
		) ranked
		WHERE rn <= $2
		ORDER BY contact_id, occurred_at DESC`, ids, recentInteractions)
	if err != nil {
		return fmt.Errorf("crm: load interactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it Interaction
		if err := rows.Scan(&it.ID, &it.ContactID, &it.Type, &it.Outcome, &it.OccurredAt); err != nil {
			return fmt.Errorf("crm: scan interaction: %w", err)
		}
		if c, ok := byID[it.ContactID]; ok {
			c.Interactions = append(c.Interactions, it)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("crm: load interactions: %w", err)
	}
	return nil
}

// SetNextAction writes an accepted suggestion back onto the contact.
func (s *Store) SetNextAction(ctx context.Context, orgID string, id uuid.UUID, action ActionType, due time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE contacts
		SET next_action_type = $1, next_action_date = $2, updated_at = now()
		WHERE org_id = $3 AND id = $4`, string(action), due, orgID, id)
	if err != nil {
		return fmt.Errorf("crm: set next action: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrContactNotFound
	}
	return nil
}

// ClaimOwner assigns the caller as owner only if the contact is unowned.
// Under a race exactly one claim updates the row; every loser gets
// ErrAlreadyOwned and can re-read the winner.
func (s *Store) ClaimOwner(ctx context.Context, orgID string, id uuid.UUID, userID string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE contacts
		SET owner_user_id = $1, updated_at = now()
		WHERE org_id = $2 AND id = $3 AND owner_user_id IS NULL`, userID, orgID, id)
	if err != nil {
		return fmt.Errorf("crm: claim owner: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Distinguish "lost the race" from "no such contact".
	var exists int
	err = s.db.QueryRow(ctx, `SELECT 1 FROM contacts WHERE org_id = $1 AND id = $2`, orgID, id).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrContactNotFound
		}
		return fmt.Errorf("crm: claim owner: %w", err)
	}
	return ErrAlreadyOwned
}

// ListAdmins returns the org's admin users, used to route unowned-contact
// nudges.
func (s *Store) ListAdmins(ctx context.Context, orgID string) ([]User, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, org_id, name, role
		FROM users
		WHERE org_id = $1 AND role = $2
		ORDER BY name ASC`, orgID, RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("crm: list admins: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.OrgID, &u.Name, &u.Role); err != nil {
			return nil, fmt.Errorf("crm: scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("crm: list admins: %w", err)
	}
	return users, nil
}

// GetUserName returns the display name for a user id, or "" when unknown.
func (s *Store) GetUserName(ctx context.Context, orgID, userID string) (string, error) {
	var name string
	err := s.db.QueryRow(ctx, `SELECT name FROM users WHERE org_id = $1 AND id = $2`, orgID, userID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("crm: get user name: %w", err)
	}
	return name, nil
}

// ListOrgIDs returns every org id with at least one contact; the sweep
// iterates these.
func (s *Store) ListOrgIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT org_id FROM contacts ORDER BY org_id`)
	if err != nil {
		return nil, fmt.Errorf("crm: list org ids: %w", err)
	}
	defer rows.Close()

	var orgs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("crm: scan org id: %w", err)
		}
		orgs = append(orgs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("crm: list org ids: %w", err)
	}
	return orgs, nil
}

// OrgFeedEnabled reports whether the announcement feed is switched on for
// the org.
func (s *Store) OrgFeedEnabled(ctx context.Context, orgID string) (bool, error) {
	var enabled bool
	err := s.db.QueryRow(ctx, `SELECT feed_enabled FROM orgs WHERE id = $1`, orgID).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("crm: org feed flag: %w", err)
	}
	return enabled, nil
}

func scanContact(row pgx.Row) (*ContactSnapshot, error) {
	var c ContactSnapshot
	var temperature, owner, actionType *string
	if err := row.Scan(
		&c.ID,
		&c.OrgID,
		&c.Name,
		&c.Stage,
		&temperature,
		&c.EstimatedValue,
		&owner,
		&actionType,
		&c.NextActionDate,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if temperature != nil {
		t := Temperature(*temperature)
		c.Temperature = &t
	}
	c.OwnerUserID = owner
	if actionType != nil {
		a := ActionType(*actionType)
		c.NextActionType = &a
	}
	return &c, nil
}

func stageStrings(stages []Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = string(s)
	}
	return out
}
