package auth

import "errors"

var (
	// ErrInvalidCredentials covers unknown email and wrong password alike,
	// so responses never reveal whether an account exists.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrEmailTaken = errors.New("email already registered")

	ErrAccountDisabled = errors.New("account is disabled")

	// ErrInvalidRefreshToken means the presented refresh token is malformed,
	// expired, the wrong type, or revoked.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrSessionExpired means the refresh token was genuine but a security
	// event (password change, suspension) invalidated the session since it
	// was issued. Distinct from ErrInvalidCredentials: the user did nothing
	// wrong and should simply re-authenticate.
	ErrSessionExpired = errors.New("session expired, please re-authenticate")
)
