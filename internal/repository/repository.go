package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/crypto"
	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// uniqueViolation is the SQLSTATE the unique indexes raise; the database is
// the only place uniqueness is decided, so concurrent inserts never race in
// application code.
const uniqueViolation = "23505"

type Store struct {
	pool       *pgxpool.Pool
	bcryptCost int
}

func NewStore(pool *pgxpool.Pool, bcryptCost int) *Store {
	if bcryptCost == 0 {
		bcryptCost = crypto.DefaultCost
	}
	return &Store{pool: pool, bcryptCost: bcryptCost}
}

const identityColumns = `id, kind, COALESCE(username, ''), COALESCE(email, ''), COALESCE(password_hash, ''), external_id, created_at, last_login_at`

func scanIdentity(row pgx.Row) (model.Identity, error) {
	var ident model.Identity
	err := row.Scan(
		&ident.ID,
		&ident.Kind,
		&ident.Username,
		&ident.Email,
		&ident.PasswordHash,
		&ident.ExternalID,
		&ident.CreatedAt,
		&ident.LastLoginAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Identity{}, ErrNotFound
	}
	return ident, err
}

func (s *Store) GetIdentityByEmail(ctx context.Context, kind model.Kind, email string) (model.Identity, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+identityColumns+`
		FROM identities
		WHERE kind = $1 AND email = $2
	`, kind, email)
	return scanIdentity(row)
}

func (s *Store) GetIdentityByID(ctx context.Context, id string) (model.Identity, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+identityColumns+`
		FROM identities
		WHERE id = $1
	`, id)
	return scanIdentity(row)
}

func (s *Store) GetIdentityByExternalID(ctx context.Context, kind model.Kind, externalID string) (model.Identity, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+identityColumns+`
		FROM identities
		WHERE kind = $1 AND external_id = $2
	`, kind, externalID)
	return scanIdentity(row)
}

// CreateIdentity persists a new identity. A supplied plaintext password is
// hashed here, immediately before the INSERT; no other write path accepts a
// password, so plaintext never reaches the database.
func (s *Store) CreateIdentity(ctx context.Context, params model.NewIdentity) (model.Identity, error) {
	var passwordHash *string
	if params.Password != "" {
		hash, err := crypto.HashPasswordCost(params.Password, s.bcryptCost)
		if err != nil {
			return model.Identity{}, fmt.Errorf("hash password: %w", err)
		}
		passwordHash = &hash
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO identities (id, kind, username, email, password_hash, external_id, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, NULLIF($6, ''), $7)
		RETURNING `+identityColumns+`
	`, uuid.NewString(), params.Kind, params.Username, params.Email, passwordHash, params.ExternalID, time.Now().UTC())

	ident, err := scanIdentity(row)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Identity{}, ErrDuplicate
		}
		return model.Identity{}, err
	}
	return ident, nil
}

func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE identities SET last_login_at = $1 WHERE id = $2`, at, id)
	return err
}

func (s *Store) CreateEvent(ctx context.Context, event model.Event) (model.Event, error) {
	event.ID = uuid.NewString()
	event.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (id, admin_id, title, description, location, start_date, end_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, event.ID, event.AdminID, event.Title, event.Description, event.Location, event.StartDate, event.EndDate, event.CreatedAt)
	return event, err
}

func (s *Store) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, admin_id, title, description, location, start_date, end_date, created_at
		FROM events
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		var event model.Event
		if err := rows.Scan(&event.ID, &event.AdminID, &event.Title, &event.Description, &event.Location, &event.StartDate, &event.EndDate, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *Store) GetEventByID(ctx context.Context, id string) (model.Event, error) {
	var event model.Event
	row := s.pool.QueryRow(ctx, `
		SELECT id, admin_id, title, description, location, start_date, end_date, created_at
		FROM events
		WHERE id = $1
	`, id)
	err := row.Scan(&event.ID, &event.AdminID, &event.Title, &event.Description, &event.Location, &event.StartDate, &event.EndDate, &event.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Event{}, ErrNotFound
	}
	return event, err
}

func (s *Store) UpdateEvent(ctx context.Context, event model.Event) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE events
		SET title = $1, description = $2, location = $3, start_date = $4, end_date = $5
		WHERE id = $6
	`, event.Title, event.Description, event.Location, event.StartDate, event.EndDate, event.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CreateApplication(ctx context.Context, app model.EventApplication) (model.EventApplication, error) {
	app.ID = uuid.NewString()
	app.Status = model.StatusApplied
	app.AppliedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO event_applications (id, event_id, identity_id, student_name, phone_number, college, year_of_study, field_of_study, status, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, app.ID, app.EventID, app.IdentityID, app.StudentName, app.PhoneNumber, app.College, app.YearOfStudy, app.FieldOfStudy, app.Status, app.AppliedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.EventApplication{}, ErrDuplicate
		}
		return model.EventApplication{}, err
	}
	return app, nil
}

func (s *Store) ListApplicationsByEvent(ctx context.Context, eventID string) ([]model.EventApplication, error) {
	return s.listApplications(ctx, `event_id`, eventID)
}

func (s *Store) ListApplicationsByIdentity(ctx context.Context, identityID string) ([]model.EventApplication, error) {
	return s.listApplications(ctx, `identity_id`, identityID)
}

func (s *Store) listApplications(ctx context.Context, column, value string) ([]model.EventApplication, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_id, identity_id, student_name, phone_number, college, year_of_study, field_of_study, status, applied_at
		FROM event_applications
		WHERE `+column+` = $1
		ORDER BY applied_at DESC
	`, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apps := []model.EventApplication{}
	for rows.Next() {
		var app model.EventApplication
		if err := rows.Scan(&app.ID, &app.EventID, &app.IdentityID, &app.StudentName, &app.PhoneNumber, &app.College, &app.YearOfStudy, &app.FieldOfStudy, &app.Status, &app.AppliedAt); err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func (s *Store) UpdateApplicationStatus(ctx context.Context, id, status string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE event_applications SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
