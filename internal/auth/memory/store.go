// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

// Package memory provides in-process user and session repositories for
// single-node deployments and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pixelvault/pixelvault/internal/auth"
)

// Store holds users and sessions in maps guarded by one RWMutex. Values are
// copied on the way in and out so callers never share state with the store.
type Store struct {
	mu       sync.RWMutex
	users    map[ulid.ULID]auth.User
	byEmail  map[string]ulid.ULID
	sessions map[ulid.ULID]auth.Session
	byToken  map[string]ulid.ULID
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[ulid.ULID]auth.User),
		byEmail:  make(map[string]ulid.ULID),
		sessions: make(map[ulid.ULID]auth.Session),
		byToken:  make(map[string]ulid.ULID),
	}
}

// Users returns the store as an auth.UserRepository.
func (s *Store) Users() auth.UserRepository { return (*userRepo)(s) }

// Sessions returns the store as an auth.SessionRepository.
func (s *Store) Sessions() auth.SessionRepository { return (*sessionRepo)(s) }

type userRepo Store

func (r *userRepo) Create(ctx context.Context, user *auth.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	email := auth.NormalizeEmail(user.Email)
	if _, ok := r.byEmail[email]; ok {
		return auth.ErrEmailTaken
	}
	if user.IsAdmin {
		for _, u := range r.users {
			if u.IsAdmin {
				return auth.ErrAdminExists
			}
		}
	}

	u := *user
	u.Email = email
	r.users[u.ID] = u
	r.byEmail[email] = u.ID
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[auth.NormalizeEmail(email)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	u := r.users[id]
	return &u, nil
}

func (r *userRepo) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = updatedAt
	r.users[id] = u
	return nil
}

func (r *userRepo) AdminExists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.IsAdmin {
			return true, nil
		}
	}
	return false, nil
}

type sessionRepo Store

func (r *sessionRepo) Create(ctx context.Context, session *auth.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[session.UserID]; !ok {
		return auth.ErrNotFound
	}
	if _, ok := r.byToken[session.TokenHash]; ok {
		return errDuplicateToken
	}
	r.sessions[session.ID] = *session
	r.byToken[session.TokenHash] = session.ID
	return nil
}

func (r *sessionRepo) GetByID(ctx context.Context, id ulid.ULID) (*auth.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &s, nil
}

func (r *sessionRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byToken[tokenHash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	s := r.sessions[id]
	return &s, nil
}

func (r *sessionRepo) ListByUser(ctx context.Context, userID ulid.ULID) ([]*auth.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*auth.Session, 0)
	for _, s := range r.sessions {
		if s.UserID == userID {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *sessionRepo) UpdateLastSeen(ctx context.Context, id ulid.ULID, lastSeen time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return auth.ErrNotFound
	}
	s.LastSeenAt = lastSeen
	r.sessions[id] = s
	return nil
}

func (r *sessionRepo) Delete(ctx context.Context, id ulid.ULID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return auth.ErrNotFound
	}
	r.deleteLocked(s)
	return nil
}

func (r *sessionRepo) DeleteByUser(ctx context.Context, userID ulid.ULID, keep *ulid.ULID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, s := range r.sessions {
		if s.UserID != userID || (keep != nil && id == *keep) {
			continue
		}
		r.deleteLocked(s)
		n++
	}
	return n, nil
}

func (r *sessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, s := range r.sessions {
		if s.IsExpiredAt(now) {
			r.deleteLocked(s)
			n++
		}
	}
	return n, nil
}

func (r *sessionRepo) deleteLocked(s auth.Session) {
	delete(r.sessions, s.ID)
	delete(r.byToken, s.TokenHash)
}

var (
	_ auth.UserRepository    = (*userRepo)(nil)
	_ auth.SessionRepository = (*sessionRepo)(nil)
)
