package session

import (
	"context"
	"time"

	"vetdirectory/internal/account"
	"vetdirectory/internal/observability"
	"vetdirectory/internal/token"
)

// Principal is the resolved identity attached to an authenticated request.
// It is produced only by the Validator; downstream code never inspects raw
// tokens or claims.
type Principal struct {
	AccountID    string
	Email        string
	TokenVersion int
}

// AccountSource is the slice of the account repository the validator needs.
type AccountSource interface {
	FindByID(ctx context.Context, id string) (account.Account, error)
}

// Validator decides whether a presented token grants an authenticated
// session. Checks run strictly in order and short-circuit to anonymous on
// the first failure:
//
//  1. signature, structure, expiry
//  2. individual token revocation
//  3. account-wide revocation
//  4. account resolvable and usable
//  5. embedded token version equals the account's current version
//
// Validation never writes and never returns an error: every failure mode,
// including store and database trouble, collapses to "unauthenticated".
type Validator struct {
	codec       *token.Codec
	revocations RevocationStore
	accounts    AccountSource
	logger      *observability.Logger
}

func NewValidator(codec *token.Codec, revocations RevocationStore, accounts AccountSource, logger *observability.Logger) *Validator {
	return &Validator{
		codec:       codec,
		revocations: revocations,
		accounts:    accounts,
		logger:      logger,
	}
}

func (v *Validator) Validate(ctx context.Context, rawToken string) (Principal, bool) {
	if rawToken == "" {
		return Principal{}, false
	}

	if !v.codec.Validate(rawToken) {
		return Principal{}, false
	}

	claims, err := v.codec.Decode(rawToken)
	if err != nil || claims.TokenType != token.TypeAccess {
		return Principal{}, false
	}

	if v.revocations.IsTokenRevoked(ctx, rawToken) {
		v.logger.Info("session_rejected", map[string]any{
			"reason":     "token_revoked",
			"account_id": claims.Subject,
		})
		return Principal{}, false
	}

	issuedAt := time.Time{}
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	if v.revocations.IsAccountRevoked(ctx, claims.Subject, issuedAt) {
		v.logger.Info("session_rejected", map[string]any{
			"reason":     "account_revoked",
			"account_id": claims.Subject,
		})
		return Principal{}, false
	}

	acct, err := v.accounts.FindByID(ctx, claims.Subject)
	if err != nil {
		v.logger.Info("session_rejected", map[string]any{
			"reason":     "account_unresolvable",
			"account_id": claims.Subject,
		})
		return Principal{}, false
	}

	if !acct.Usable() {
		v.logger.Info("session_rejected", map[string]any{
			"reason":     "account_unusable",
			"account_id": acct.ID,
		})
		return Principal{}, false
	}

	if claims.TokenVersion != acct.TokenVersion {
		v.logger.Info("session_rejected", map[string]any{
			"reason":     "stale_token_version",
			"account_id": acct.ID,
		})
		return Principal{}, false
	}

	return Principal{
		AccountID:    acct.ID,
		Email:        acct.Email,
		TokenVersion: acct.TokenVersion,
	}, true
}
