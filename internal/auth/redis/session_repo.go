// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

// Package redis stores sessions in Redis. Users stay in PostgreSQL; only the
// hot validate path moves.
//
// Keys, with the default prefix:
//
//	pv:session:<id>               JSON session record, expires with the session
//	pv:session:token:<hash>       session id, expires with the session
//	pv:user-sessions:<user id>    set of session ids, pruned lazily
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/pixelvault/pixelvault/internal/auth"
)

const (
	defaultPrefix = "pv"
	scanBatch     = 100
)

// record is the stored form of a session.
type record struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	TokenHash     string    `json:"tokenHash"`
	AuthType      string    `json:"authType"`
	UserAgent     string    `json:"userAgent,omitempty"`
	ClientAddress string    `json:"clientAddress,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	LastSeenAt    time.Time `json:"lastSeenAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

func toRecord(s *auth.Session) record {
	return record{
		ID:            s.ID.String(),
		UserID:        s.UserID.String(),
		TokenHash:     s.TokenHash,
		AuthType:      string(s.AuthType),
		UserAgent:     s.UserAgent,
		ClientAddress: s.ClientAddress,
		CreatedAt:     s.CreatedAt,
		LastSeenAt:    s.LastSeenAt,
		ExpiresAt:     s.ExpiresAt,
	}
}

func (r record) session() (*auth.Session, error) {
	id, err := ulid.Parse(r.ID)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").With("id", r.ID).Wrap(err)
	}
	userID, err := ulid.Parse(r.UserID)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_USER_ID").With("user_id", r.UserID).Wrap(err)
	}
	authType, ok := auth.ParseAuthType(r.AuthType)
	if !ok {
		return nil, oops.Code("SESSION_INVALID_AUTH_TYPE").With("auth_type", r.AuthType).Errorf("unknown auth type")
	}
	return &auth.Session{
		ID:            id,
		UserID:        userID,
		TokenHash:     r.TokenHash,
		AuthType:      authType,
		UserAgent:     r.UserAgent,
		ClientAddress: r.ClientAddress,
		CreatedAt:     r.CreatedAt,
		LastSeenAt:    r.LastSeenAt,
		ExpiresAt:     r.ExpiresAt,
	}, nil
}

// SessionRepository implements auth.SessionRepository on Redis.
type SessionRepository struct {
	client goredis.UniversalClient
	prefix string
	now    func() time.Time
}

// Option configures a SessionRepository.
type Option func(*SessionRepository)

// WithPrefix replaces the "pv" key prefix.
func WithPrefix(prefix string) Option {
	return func(r *SessionRepository) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithClock overrides the clock used to compute key TTLs.
func WithClock(now func() time.Time) Option {
	return func(r *SessionRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewSessionRepository creates a SessionRepository.
func NewSessionRepository(client goredis.UniversalClient, opts ...Option) *SessionRepository {
	r := &SessionRepository{
		client: client,
		prefix: defaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *SessionRepository) sessionKey(id string) string { return r.prefix + ":session:" + id }

func (r *SessionRepository) tokenKey(hash string) string { return r.prefix + ":session:token:" + hash }

func (r *SessionRepository) userKey(userID string) string { return r.prefix + ":user-sessions:" + userID }

func (r *SessionRepository) userKeyPattern() string { return r.prefix + ":user-sessions:*" }

func (r *SessionRepository) ttl(expiresAt time.Time) time.Duration {
	ttl := expiresAt.Sub(r.now())
	if ttl < time.Millisecond {
		// An already expired session still needs a positive TTL for SET.
		ttl = time.Millisecond
	}
	return ttl
}

// Create stores a new session. The token key is claimed with SETNX so two
// sessions can never share a hash. The user is not checked; Redis holds no
// users, and SessionCodec.Validate rejects sessions whose user is gone.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	rec := toRecord(session)
	data, err := json.Marshal(rec)
	if err != nil {
		return oops.Code("SESSION_ENCODE_FAILED").With("id", rec.ID).Wrap(err)
	}
	ttl := r.ttl(session.ExpiresAt)

	claimed, err := r.client.SetNX(ctx, r.tokenKey(rec.TokenHash), rec.ID, ttl).Result()
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").With("operation", "claim token hash").Wrap(err)
	}
	if !claimed {
		return oops.Code("SESSION_DUPLICATE_TOKEN").Errorf("token hash already in use")
	}

	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(rec.ID), data, ttl)
		pipe.SAdd(ctx, r.userKey(rec.UserID), rec.ID)
		return nil
	})
	if err != nil {
		_ = r.client.Del(ctx, r.tokenKey(rec.TokenHash)).Err() //nolint:errcheck // create error takes precedence
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "store session").
			With("user_id", rec.UserID).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Session, error) {
	rec, err := r.load(ctx, id.String())
	if err != nil {
		return nil, err
	}
	return rec.session()
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	id, err := r.client.Get(ctx, r.tokenKey(tokenHash)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	rec, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.session()
}

// ListByUser returns the sessions of a user, newest first. Index entries
// whose session key has expired are removed on the way.
func (r *SessionRepository) ListByUser(ctx context.Context, userID ulid.ULID) ([]*auth.Session, error) {
	userKey := r.userKey(userID.String())
	ids, err := r.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return nil, oops.Code("SESSION_LIST_BY_USER_FAILED").
			With("operation", "list sessions by user").
			With("user_id", userID.String()).
			Wrap(err)
	}

	records, stale, err := r.loadMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(stale) > 0 {
		_ = r.client.SRem(ctx, userKey, toAny(stale)...).Err() //nolint:errcheck // pruning is best-effort
	}

	sessions := make([]*auth.Session, 0, len(records))
	for _, rec := range records {
		s, err := rec.session()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	slices.SortFunc(sessions, func(a, b *auth.Session) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return sessions, nil
}

// UpdateLastSeen rewrites the record in place, keeping its TTL.
func (r *SessionRepository) UpdateLastSeen(ctx context.Context, id ulid.ULID, lastSeen time.Time) error {
	rec, err := r.load(ctx, id.String())
	if err != nil {
		return err
	}
	rec.LastSeenAt = lastSeen

	data, err := json.Marshal(rec)
	if err != nil {
		return oops.Code("SESSION_ENCODE_FAILED").With("id", rec.ID).Wrap(err)
	}
	// XX keeps a concurrent revoke from resurrecting the session.
	updated, err := r.client.SetXX(ctx, r.sessionKey(rec.ID), data, goredis.KeepTTL).Result()
	if err != nil {
		return oops.Code("SESSION_UPDATE_LAST_SEEN_FAILED").
			With("operation", "update last_seen_at").
			With("id", rec.ID).
			Wrap(err)
	}
	if !updated {
		return oops.Code("SESSION_NOT_FOUND").With("id", rec.ID).Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a session and its index entries.
func (r *SessionRepository) Delete(ctx context.Context, id ulid.ULID) error {
	rec, err := r.load(ctx, id.String())
	if err != nil {
		return err
	}

	n, err := r.deleteRecords(ctx, []record{rec})
	if err != nil {
		return err
	}
	if n == 0 {
		return oops.Code("SESSION_NOT_FOUND").With("id", rec.ID).Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByUser removes every session of a user except keep.
//
// The member set is read before the delete transaction, so a session created
// concurrently may survive. Password change and admin revocation both run
// after the credential they protect has changed, so such a session was
// issued against the new state.
func (r *SessionRepository) DeleteByUser(ctx context.Context, userID ulid.ULID, keep *ulid.ULID) (int64, error) {
	ids, err := r.client.SMembers(ctx, r.userKey(userID.String())).Result()
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_BY_USER_FAILED").
			With("operation", "list sessions by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if keep != nil {
		keepID := keep.String()
		ids = slices.DeleteFunc(ids, func(id string) bool { return id == keepID })
	}

	records, stale, err := r.loadMany(ctx, ids)
	if err != nil {
		return 0, err
	}
	if len(stale) > 0 {
		_ = r.client.SRem(ctx, r.userKey(userID.String()), toAny(stale)...).Err() //nolint:errcheck // pruning is best-effort
	}
	return r.deleteRecords(ctx, records)
}

// DeleteExpired sweeps every user index. Sessions past their expiry are
// deleted and counted; ids whose keys Redis already evicted are pruned.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var (
		total  int64
		cursor uint64
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.userKeyPattern(), scanBatch).Result()
		if err != nil {
			return total, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
				With("operation", "scan user indexes").
				Wrap(err)
		}
		for _, userKey := range keys {
			n, err := r.sweepUser(ctx, userKey, now)
			if err != nil {
				return total, err
			}
			total += n
		}
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

func (r *SessionRepository) sweepUser(ctx context.Context, userKey string, now time.Time) (int64, error) {
	ids, err := r.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "read user index").
			Wrap(err)
	}

	records, stale, err := r.loadMany(ctx, ids)
	if err != nil {
		return 0, err
	}
	if len(stale) > 0 {
		if err := r.client.SRem(ctx, userKey, toAny(stale)...).Err(); err != nil {
			return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
				With("operation", "prune user index").
				Wrap(err)
		}
	}

	expired := slices.DeleteFunc(records, func(rec record) bool { return rec.ExpiresAt.After(now) })
	return r.deleteRecords(ctx, expired)
}

// deleteRecords removes the session and token keys of records in one
// transaction and returns how many session keys existed.
func (r *SessionRepository) deleteRecords(ctx context.Context, records []record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	dels := make([]*goredis.IntCmd, len(records))
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, rec := range records {
			dels[i] = pipe.Del(ctx, r.sessionKey(rec.ID))
			pipe.Del(ctx, r.tokenKey(rec.TokenHash))
			pipe.SRem(ctx, r.userKey(rec.UserID), rec.ID)
		}
		return nil
	})
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete sessions").
			With("count", len(records)).
			Wrap(err)
	}

	var n int64
	for _, del := range dels {
		n += del.Val()
	}
	return n, nil
}

// load reads one record. A missing key is auth.ErrNotFound.
func (r *SessionRepository) load(ctx context.Context, id string) (record, error) {
	var rec record
	data, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return rec, oops.Code("SESSION_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return rec, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session").
			With("id", id).
			Wrap(err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, oops.Code("SESSION_DECODE_FAILED").With("id", id).Wrap(err)
	}
	return rec, nil
}

// loadMany reads records for ids in one round trip. ids whose key no longer
// exists are returned as stale.
func (r *SessionRepository) loadMany(ctx context.Context, ids []string) ([]record, []string, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.sessionKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get sessions").
			With("count", len(ids)).
			Wrap(err)
	}

	var (
		records []record
		stale   []string
	)
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, nil, oops.Code("SESSION_DECODE_FAILED").With("id", ids[i]).Wrap(err)
		}
		records = append(records, rec)
	}
	return records, stale, nil
}

func toAny(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
