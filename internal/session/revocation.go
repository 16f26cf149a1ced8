package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"vetdirectory/internal/observability"
)

const (
	tokenKeyPrefix   = "revoked:token"
	accountKeyPrefix = "revoked:account"

	// storeTimeout bounds every call into Redis so an unreachable store
	// degrades to the fail-open defaults instead of stalling requests.
	storeTimeout = 500 * time.Millisecond
)

// RevocationStore records explicitly killed tokens and accounts. Entries
// carry a TTL equal to the remaining natural lifetime of the tokens they
// revoke, so the store self-cleans.
//
// Account revocation is a point in time, not a flag: only tokens issued
// strictly before the recorded moment are dead, so the fresh pair minted
// right after a password change stays valid. Comparison happens at whole
// seconds, the resolution of the iat claim; a token minted in the same
// second as the revocation slips through, and the durable token-version
// check catches it.
//
// Failure policy is fail open: if the store is unreachable, revocation
// checks report "not revoked" and writes are swallowed after logging. An
// outage in the store must never block every authenticated request or
// prevent logout from completing.
type RevocationStore interface {
	RevokeToken(ctx context.Context, rawToken string, ttl time.Duration)
	IsTokenRevoked(ctx context.Context, rawToken string) bool
	RevokeAccount(ctx context.Context, accountID string, ttl time.Duration)
	IsAccountRevoked(ctx context.Context, accountID string, issuedAt time.Time) bool
	// UnrevokeToken exists for admin and test cleanup only.
	UnrevokeToken(ctx context.Context, rawToken string)
}

// RedisRevocationStore is the production implementation. Raw token values are
// hashed before use as keys so the store never holds usable credentials.
type RedisRevocationStore struct {
	client redis.UniversalClient
	logger *observability.Logger
}

func NewRedisRevocationStore(client redis.UniversalClient, logger *observability.Logger) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, logger: logger}
}

func (s *RedisRevocationStore) RevokeToken(ctx context.Context, rawToken string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := s.client.Set(ctx, tokenKey(rawToken), "1", ttl).Err(); err != nil {
		s.logger.Error("revoke_token_write_failed", map[string]any{"error": err.Error()})
	}
}

func (s *RedisRevocationStore) IsTokenRevoked(ctx context.Context, rawToken string) bool {
	return s.exists(ctx, tokenKey(rawToken))
}

func (s *RedisRevocationStore) RevokeAccount(ctx context.Context, accountID string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	revokedAt := strconv.FormatInt(time.Now().UTC().Unix(), 10)
	if err := s.client.Set(ctx, accountKey(accountID), revokedAt, ttl).Err(); err != nil {
		s.logger.Error("revoke_account_write_failed", map[string]any{
			"account_id": accountID,
			"error":      err.Error(),
		})
	}
}

func (s *RedisRevocationStore) IsAccountRevoked(ctx context.Context, accountID string, issuedAt time.Time) bool {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	value, err := s.client.Get(ctx, accountKey(accountID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Error("revocation_check_failed", map[string]any{"error": err.Error()})
		}
		return false
	}

	revokedAt, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		s.logger.Error("revocation_record_malformed", map[string]any{
			"account_id": accountID,
			"value":      value,
		})
		return false
	}

	return issuedAt.Unix() < revokedAt
}

func (s *RedisRevocationStore) UnrevokeToken(ctx context.Context, rawToken string) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := s.client.Del(ctx, tokenKey(rawToken)).Err(); err != nil {
		s.logger.Error("unrevoke_token_failed", map[string]any{"error": err.Error()})
	}
}

func (s *RedisRevocationStore) exists(ctx context.Context, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	count, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		s.logger.Error("revocation_check_failed", map[string]any{"error": err.Error()})
		return false
	}

	return count > 0
}

func tokenKey(rawToken string) string {
	digest := sha256.Sum256([]byte(rawToken))
	return tokenKeyPrefix + ":" + hex.EncodeToString(digest[:])
}

func accountKey(accountID string) string {
	return accountKeyPrefix + ":" + accountID
}
