package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"vetdirectory/internal/account"
	"vetdirectory/internal/observability"
	"vetdirectory/internal/session"
	"vetdirectory/internal/token"
)

// Tokens is the credential pair returned by every successful auth flow.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AccountRepo is the slice of the account repository the auth flows need.
type AccountRepo interface {
	FindByID(ctx context.Context, id string) (account.Account, error)
	FindByEmail(ctx context.Context, email string) (account.Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, email, passwordHash string) (account.Account, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	BumpTokenVersion(ctx context.Context, id string) (int, error)
	Suspend(ctx context.Context, id, reason string) error
	Restore(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
}

type Service struct {
	accounts    AccountRepo
	codec       *token.Codec
	revocations session.RevocationStore
	logger      *observability.Logger
}

func NewService(accounts AccountRepo, codec *token.Codec, revocations session.RevocationStore, logger *observability.Logger) *Service {
	return &Service{
		accounts:    accounts,
		codec:       codec,
		revocations: revocations,
		logger:      logger,
	}
}

func (s *Service) Register(ctx context.Context, email, password string) (Tokens, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	taken, err := s.accounts.ExistsByEmail(ctx, email)
	if err != nil {
		return Tokens{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return Tokens{}, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Tokens{}, fmt.Errorf("hash password: %w", err)
	}

	acct, err := s.accounts.Create(ctx, email, string(hash))
	if err != nil {
		return Tokens{}, fmt.Errorf("create account: %w", err)
	}

	return s.issuePair(acct)
}

func (s *Service) Login(ctx context.Context, email, password string) (Tokens, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	acct, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return Tokens{}, ErrInvalidCredentials
		}
		return Tokens{}, fmt.Errorf("find account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return Tokens{}, ErrInvalidCredentials
	}

	if !acct.Usable() {
		return Tokens{}, ErrAccountDisabled
	}

	return s.issuePair(acct)
}

// Refresh exchanges a valid refresh token for a fresh pair. Refresh tokens
// embed the token version, so a password change or suspension invalidates
// them along with every access token. The old refresh token is revoked for
// its remaining lifetime once rotation succeeds.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" || !s.codec.Validate(refreshToken) {
		return Tokens{}, ErrInvalidRefreshToken
	}

	claims, err := s.codec.Decode(refreshToken)
	if err != nil || claims.TokenType != token.TypeRefresh {
		return Tokens{}, ErrInvalidRefreshToken
	}

	issuedAt := time.Time{}
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	if s.revocations.IsTokenRevoked(ctx, refreshToken) || s.revocations.IsAccountRevoked(ctx, claims.Subject, issuedAt) {
		return Tokens{}, ErrInvalidRefreshToken
	}

	acct, err := s.accounts.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return Tokens{}, ErrInvalidRefreshToken
		}
		return Tokens{}, fmt.Errorf("find account: %w", err)
	}

	if !acct.Usable() {
		return Tokens{}, ErrSessionExpired
	}
	if claims.TokenVersion != acct.TokenVersion {
		return Tokens{}, ErrSessionExpired
	}

	pair, err := s.issuePair(acct)
	if err != nil {
		return Tokens{}, err
	}

	s.revocations.RevokeToken(ctx, refreshToken, s.codec.TimeUntilExpiry(refreshToken))

	return pair, nil
}

// Logout revokes the presented tokens for their remaining natural lifetime.
// Best effort: revocation writes swallow store failures, and logout reports
// success regardless, so a store outage never traps a user in a session.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) {
	if accessToken != "" {
		if ttl := s.codec.TimeUntilExpiry(accessToken); ttl > 0 {
			s.revocations.RevokeToken(ctx, accessToken, ttl)
		}
	}
	if refreshToken != "" {
		if ttl := s.codec.TimeUntilExpiry(refreshToken); ttl > 0 {
			s.revocations.RevokeToken(ctx, refreshToken, ttl)
		}
	}
}

// ChangePassword stores the new hash, bumps the token version, and lays an
// account-wide revocation covering the longest-lived token type. Every
// session issued before this call is dead afterwards; the returned pair is
// the only live credential.
func (s *Service) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) (Tokens, error) {
	acct, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return Tokens{}, ErrInvalidCredentials
		}
		return Tokens{}, fmt.Errorf("find account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(currentPassword)); err != nil {
		return Tokens{}, ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return Tokens{}, fmt.Errorf("hash password: %w", err)
	}
	if err := s.accounts.UpdatePasswordHash(ctx, acct.ID, string(hash)); err != nil {
		return Tokens{}, fmt.Errorf("store password: %w", err)
	}

	newVersion, err := s.invalidateAllSessions(ctx, acct.ID)
	if err != nil {
		return Tokens{}, err
	}
	acct.TokenVersion = newVersion

	s.logger.Info("password_changed", map[string]any{"account_id": acct.ID})

	return s.issuePair(acct)
}

// RequestPasswordReset is intentionally quiet: it logs the request and
// reveals nothing about whether the email maps to an account. Delivery of
// the reset email is handled outside this service.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) {
	email = strings.TrimSpace(strings.ToLower(email))

	if _, err := s.accounts.FindByEmail(ctx, email); err != nil {
		if !errors.Is(err, account.ErrNotFound) {
			s.logger.Error("password_reset_lookup_failed", map[string]any{"error": err.Error()})
		}
		return
	}

	s.logger.Info("password_reset_requested", map[string]any{"email": email})
}

// Suspend disables the account and kills every outstanding session.
func (s *Service) Suspend(ctx context.Context, accountID, reason string) error {
	if err := s.accounts.Suspend(ctx, accountID, reason); err != nil {
		return fmt.Errorf("suspend account: %w", err)
	}
	if _, err := s.invalidateAllSessions(ctx, accountID); err != nil {
		return err
	}

	s.logger.Info("account_suspended", map[string]any{"account_id": accountID, "reason": reason})

	return nil
}

func (s *Service) Restore(ctx context.Context, accountID string) error {
	if err := s.accounts.Restore(ctx, accountID); err != nil {
		return fmt.Errorf("restore account: %w", err)
	}

	s.logger.Info("account_restored", map[string]any{"account_id": accountID})

	return nil
}

// SoftDelete flags the account deleted and kills every outstanding session.
// Physical removal happens later through the maintenance purge.
func (s *Service) SoftDelete(ctx context.Context, accountID string) error {
	if err := s.accounts.SoftDelete(ctx, accountID); err != nil {
		return fmt.Errorf("soft delete account: %w", err)
	}
	if _, err := s.invalidateAllSessions(ctx, accountID); err != nil {
		return err
	}

	s.logger.Info("account_soft_deleted", map[string]any{"account_id": accountID})

	return nil
}

// invalidateAllSessions bumps the durable token version and lays a
// revocation record wide enough to cover the refresh-token lifetime, so an
// outstanding refresh token cannot mint new access tokens in the gap before
// its natural expiry.
func (s *Service) invalidateAllSessions(ctx context.Context, accountID string) (int, error) {
	version, err := s.accounts.BumpTokenVersion(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("bump token version: %w", err)
	}

	s.revocations.RevokeAccount(ctx, accountID, maxDuration(s.codec.AccessTTL(), s.codec.RefreshTTL()))

	return version, nil
}

func (s *Service) issuePair(acct account.Account) (Tokens, error) {
	access, err := s.codec.IssueAccessToken(acct.ID, acct.Email, acct.TokenVersion)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := s.codec.IssueRefreshToken(acct.ID, acct.Email, acct.TokenVersion)
	if err != nil {
		return Tokens{}, err
	}

	return Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.codec.AccessTTL().Seconds()),
	}, nil
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
