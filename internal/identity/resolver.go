// Package identity locates accounts across the admin and user collections
// and decides their role.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/crypto"
	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/model"
	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/repository"
)

// Authentication failures. Handlers must collapse both into one generic
// "invalid credentials" response; the distinction is for logs only, so a
// caller probing for registered emails learns nothing.
var (
	ErrUserNotFound    = errors.New("no identity for email")
	ErrInvalidPassword = errors.New("password verification failed")
)

// Store is the slice of the credential store the resolver needs. Lookups
// return repository.ErrNotFound when no row matches; Create returns
// repository.ErrDuplicate on a unique-index conflict.
type Store interface {
	GetIdentityByEmail(ctx context.Context, kind model.Kind, email string) (model.Identity, error)
	GetIdentityByID(ctx context.Context, id string) (model.Identity, error)
	GetIdentityByExternalID(ctx context.Context, kind model.Kind, externalID string) (model.Identity, error)
	CreateIdentity(ctx context.Context, params model.NewIdentity) (model.Identity, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Authenticate resolves email across both collections, admin first, and
// verifies the password against the single matching record. Admin-first is
// deliberate precedence: an email present in both collections always logs
// in as the admin. An identity created through OAuth has no stored hash
// and can never authenticate by password.
func (r *Resolver) Authenticate(ctx context.Context, email, password string) (model.Identity, error) {
	ident, err := r.lookupByEmail(ctx, email)
	if err != nil {
		return model.Identity{}, err
	}

	if ident.PasswordHash == "" {
		return model.Identity{}, ErrInvalidPassword
	}
	if err := crypto.CheckPassword(ident.PasswordHash, password); err != nil {
		return model.Identity{}, ErrInvalidPassword
	}

	now := time.Now().UTC()
	if err := r.store.TouchLastLogin(ctx, ident.ID, now); err != nil {
		return model.Identity{}, fmt.Errorf("touch last login: %w", err)
	}
	ident.LastLoginAt = &now

	return ident, nil
}

func (r *Resolver) lookupByEmail(ctx context.Context, email string) (model.Identity, error) {
	ident, err := r.store.GetIdentityByEmail(ctx, model.KindAdmin, email)
	if err == nil {
		return ident, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Identity{}, fmt.Errorf("admin lookup: %w", err)
	}

	ident, err = r.store.GetIdentityByEmail(ctx, model.KindUser, email)
	if err == nil {
		return ident, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Identity{}, fmt.Errorf("user lookup: %w", err)
	}

	return model.Identity{}, ErrUserNotFound
}

// ResolveByID re-fetches the identity backing a session token. A deleted
// identity loses access immediately even while its token is unexpired.
func (r *Resolver) ResolveByID(ctx context.Context, id string) (model.Identity, error) {
	ident, err := r.store.GetIdentityByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Identity{}, ErrUserNotFound
		}
		return model.Identity{}, fmt.Errorf("identity lookup: %w", err)
	}
	return ident, nil
}

// Profile is the subset of an external provider's identity we consume.
type Profile struct {
	Subject string
	Name    string
	Email   string
}

// LinkOrCreate returns the user identity linked to the profile's subject,
// creating a password-less one on first sight. Two concurrent first logins
// race on the unique external-id index; the loser re-reads the winner's row.
func (r *Resolver) LinkOrCreate(ctx context.Context, profile Profile) (model.Identity, error) {
	if profile.Subject == "" {
		return model.Identity{}, errors.New("oauth profile has no subject")
	}

	ident, err := r.store.GetIdentityByExternalID(ctx, model.KindUser, profile.Subject)
	if err == nil {
		return ident, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Identity{}, fmt.Errorf("external id lookup: %w", err)
	}

	ident, err = r.store.CreateIdentity(ctx, model.NewIdentity{
		Kind:       model.KindUser,
		Username:   profile.Name,
		Email:      profile.Email,
		ExternalID: profile.Subject,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return r.store.GetIdentityByExternalID(ctx, model.KindUser, profile.Subject)
		}
		return model.Identity{}, fmt.Errorf("create linked identity: %w", err)
	}
	return ident, nil
}
