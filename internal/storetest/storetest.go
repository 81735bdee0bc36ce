// Package storetest provides an in-memory store with the same contract as
// the pgx repository, for handler and resolver tests.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/crypto"
	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/model"
	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/repository"
)

// Store mimics the database-backed store: per-kind uniqueness on email and
// external id, one application per (event, identity). Passwords are hashed
// with a low bcrypt cost to keep tests fast.
type Store struct {
	mu           sync.Mutex
	identities   []model.Identity
	events       []model.Event
	applications []model.EventApplication
}

func New() *Store {
	return &Store{}
}

func (s *Store) GetIdentityByEmail(_ context.Context, kind model.Kind, email string) (model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ident := range s.identities {
		if ident.Kind == kind && ident.Email == email && email != "" {
			return ident, nil
		}
	}
	return model.Identity{}, repository.ErrNotFound
}

func (s *Store) GetIdentityByID(_ context.Context, id string) (model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ident := range s.identities {
		if ident.ID == id {
			return ident, nil
		}
	}
	return model.Identity{}, repository.ErrNotFound
}

func (s *Store) GetIdentityByExternalID(_ context.Context, kind model.Kind, externalID string) (model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ident := range s.identities {
		if ident.Kind == kind && ident.ExternalID != nil && *ident.ExternalID == externalID {
			return ident, nil
		}
	}
	return model.Identity{}, repository.ErrNotFound
}

func (s *Store) CreateIdentity(_ context.Context, params model.NewIdentity) (model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ident := range s.identities {
		if ident.Kind != params.Kind {
			continue
		}
		if params.Email != "" && ident.Email == params.Email {
			return model.Identity{}, repository.ErrDuplicate
		}
		if params.ExternalID != "" && ident.ExternalID != nil && *ident.ExternalID == params.ExternalID {
			return model.Identity{}, repository.ErrDuplicate
		}
	}

	ident := model.Identity{
		ID:        uuid.NewString(),
		Kind:      params.Kind,
		Username:  params.Username,
		Email:     params.Email,
		CreatedAt: time.Now().UTC(),
	}
	if params.Password != "" {
		hash, err := crypto.HashPasswordCost(params.Password, 4)
		if err != nil {
			return model.Identity{}, err
		}
		ident.PasswordHash = hash
	}
	if params.ExternalID != "" {
		externalID := params.ExternalID
		ident.ExternalID = &externalID
	}
	s.identities = append(s.identities, ident)
	return ident, nil
}

func (s *Store) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.identities {
		if s.identities[i].ID == id {
			s.identities[i].LastLoginAt = &at
			return nil
		}
	}
	return repository.ErrNotFound
}

// Identities returns a snapshot of the stored identities.
func (s *Store) Identities() []model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Identity, len(s.identities))
	copy(out, s.identities)
	return out
}

// RemoveIdentity drops an identity, simulating account deletion while a
// session token for it is still in the wild.
func (s *Store) RemoveIdentity(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.identities[:0]
	for _, ident := range s.identities {
		if ident.ID != id {
			kept = append(kept, ident)
		}
	}
	s.identities = kept
}

func (s *Store) CreateEvent(_ context.Context, event model.Event) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = uuid.NewString()
	event.CreatedAt = time.Now().UTC()
	s.events = append(s.events, event)
	return event, nil
}

func (s *Store) ListEvents(_ context.Context) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *Store) GetEventByID(_ context.Context, id string) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, event := range s.events {
		if event.ID == id {
			return event, nil
		}
	}
	return model.Event{}, repository.ErrNotFound
}

func (s *Store) UpdateEvent(_ context.Context, event model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == event.ID {
			event.AdminID = s.events[i].AdminID
			event.CreatedAt = s.events[i].CreatedAt
			s.events[i] = event
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *Store) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == id {
			s.events = append(s.events[:i], s.events[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *Store) CreateApplication(_ context.Context, app model.EventApplication) (model.EventApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.applications {
		if existing.EventID == app.EventID && existing.IdentityID == app.IdentityID {
			return model.EventApplication{}, repository.ErrDuplicate
		}
	}
	app.ID = uuid.NewString()
	app.Status = model.StatusApplied
	app.AppliedAt = time.Now().UTC()
	s.applications = append(s.applications, app)
	return app, nil
}

func (s *Store) ListApplicationsByEvent(_ context.Context, eventID string) ([]model.EventApplication, error) {
	return s.listApplications(func(app model.EventApplication) bool { return app.EventID == eventID }), nil
}

func (s *Store) ListApplicationsByIdentity(_ context.Context, identityID string) ([]model.EventApplication, error) {
	return s.listApplications(func(app model.EventApplication) bool { return app.IdentityID == identityID }), nil
}

func (s *Store) listApplications(match func(model.EventApplication) bool) []model.EventApplication {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.EventApplication{}
	for _, app := range s.applications {
		if match(app) {
			out = append(out, app)
		}
	}
	return out
}

func (s *Store) UpdateApplicationStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.applications {
		if s.applications[i].ID == id {
			s.applications[i].Status = status
			return nil
		}
	}
	return repository.ErrNotFound
}
