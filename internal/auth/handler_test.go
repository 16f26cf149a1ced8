package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vetdirectory/internal/session"
)

func newTestServer(t *testing.T) (*serviceFixture, http.Handler) {
	t.Helper()

	f := newServiceFixture(t)
	handler := NewHandler(f.service)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", handler.Register)
	mux.HandleFunc("POST /auth/login", handler.Login)
	mux.HandleFunc("POST /auth/refresh", handler.Refresh)
	mux.Handle("POST /auth/logout", session.RequireAuth(http.HandlerFunc(handler.Logout)))
	mux.Handle("POST /auth/password", session.RequireAuth(http.HandlerFunc(handler.ChangePassword)))
	mux.HandleFunc("POST /auth/password-reset", handler.RequestPasswordReset)

	return f, session.Authenticate(f.validator, mux)
}

func doJSON(t *testing.T, handler http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		r.Header.Set("Authorization", "Bearer "+bearer)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func decodeTokens(t *testing.T, w *httptest.ResponseRecorder) Tokens {
	t.Helper()

	var tokens Tokens
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tokens))
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)
	return tokens
}

func TestHandler_Register(t *testing.T) {
	_, server := newTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/auth/register", `{"email":"vet@example.com","password":"strongpassword"}`, "")
	require.Equal(t, http.StatusCreated, w.Code)
	tokens := decodeTokens(t, w)
	assert.Equal(t, "Bearer", tokens.TokenType)

	t.Run("duplicate_email", func(t *testing.T) {
		w := doJSON(t, server, http.MethodPost, "/auth/register", `{"email":"vet@example.com","password":"strongpassword"}`, "")
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("invalid_email", func(t *testing.T) {
		w := doJSON(t, server, http.MethodPost, "/auth/register", `{"email":"not-an-email","password":"strongpassword"}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("short_password", func(t *testing.T) {
		w := doJSON(t, server, http.MethodPost, "/auth/register", `{"email":"a@example.com","password":"short"}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown_field", func(t *testing.T) {
		w := doJSON(t, server, http.MethodPost, "/auth/register", `{"email":"a@example.com","password":"strongpassword","admin":true}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed_body", func(t *testing.T) {
		w := doJSON(t, server, http.MethodPost, "/auth/register", `{`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_Login(t *testing.T) {
	f, server := newTestServer(t)
	f.repo.add("vet@example.com", "correct-password", 1)

	w := doJSON(t, server, http.MethodPost, "/auth/login", `{"email":"vet@example.com","password":"correct-password"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	decodeTokens(t, w)

	t.Run("wrong_password", func(t *testing.T) {
		w := doJSON(t, server, http.MethodPost, "/auth/login", `{"email":"vet@example.com","password":"wrong-password"}`, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"invalid credentials"}`, w.Body.String())
	})

	t.Run("suspended", func(t *testing.T) {
		acct := f.repo.add("banned@example.com", "correct-password", 1)
		require.NoError(t, f.repo.Suspend(context.Background(), acct.ID, "abuse"))

		w := doJSON(t, server, http.MethodPost, "/auth/login", `{"email":"banned@example.com","password":"correct-password"}`, "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestHandler_RefreshRotation(t *testing.T) {
	f, server := newTestServer(t)
	f.repo.add("vet@example.com", "correct-password", 1)

	login := doJSON(t, server, http.MethodPost, "/auth/login", `{"email":"vet@example.com","password":"correct-password"}`, "")
	require.Equal(t, http.StatusOK, login.Code)
	tokens := decodeTokens(t, login)

	w := doJSON(t, server, http.MethodPost, "/auth/refresh", `{"refresh_token":"`+tokens.RefreshToken+`"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	rotated := decodeTokens(t, w)
	assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	// The rotated-out token is single-use.
	w = doJSON(t, server, http.MethodPost, "/auth/refresh", `{"refresh_token":"`+tokens.RefreshToken+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"invalid refresh token"}`, w.Body.String())
}

func TestHandler_Refresh_StaleVersion(t *testing.T) {
	f, server := newTestServer(t)
	acct := f.repo.add("vet@example.com", "correct-password", 1)

	login := doJSON(t, server, http.MethodPost, "/auth/login", `{"email":"vet@example.com","password":"correct-password"}`, "")
	tokens := decodeTokens(t, login)

	_, err := f.repo.BumpTokenVersion(context.Background(), acct.ID)
	require.NoError(t, err)

	w := doJSON(t, server, http.MethodPost, "/auth/refresh", `{"refresh_token":"`+tokens.RefreshToken+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"session expired, please log in again"}`, w.Body.String())
}

func TestHandler_Logout(t *testing.T) {
	f, server := newTestServer(t)
	f.repo.add("vet@example.com", "correct-password", 1)

	login := doJSON(t, server, http.MethodPost, "/auth/login", `{"email":"vet@example.com","password":"correct-password"}`, "")
	tokens := decodeTokens(t, login)

	t.Run("anonymous_rejected", func(t *testing.T) {
		w := doJSON(t, server, http.MethodPost, "/auth/logout", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	w := doJSON(t, server, http.MethodPost, "/auth/logout", `{"refresh_token":"`+tokens.RefreshToken+`"}`, tokens.AccessToken)
	require.Equal(t, http.StatusNoContent, w.Code)

	// The access token is dead for authenticated routes afterwards.
	w = doJSON(t, server, http.MethodPost, "/auth/logout", "", tokens.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// And the refresh token cannot resurrect the session.
	w = doJSON(t, server, http.MethodPost, "/auth/refresh", `{"refresh_token":"`+tokens.RefreshToken+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_Logout_WithoutBody(t *testing.T) {
	f, server := newTestServer(t)
	f.repo.add("vet@example.com", "correct-password", 1)

	login := doJSON(t, server, http.MethodPost, "/auth/login", `{"email":"vet@example.com","password":"correct-password"}`, "")
	tokens := decodeTokens(t, login)

	w := doJSON(t, server, http.MethodPost, "/auth/logout", "", tokens.AccessToken)
	assert.Equal(t, http.StatusNoContent, w.Code, "logout body is optional")
}

func TestHandler_ChangePassword(t *testing.T) {
	f, server := newTestServer(t)
	f.repo.add("vet@example.com", "old-password", 1)

	login := doJSON(t, server, http.MethodPost, "/auth/login", `{"email":"vet@example.com","password":"old-password"}`, "")
	tokens := decodeTokens(t, login)

	t.Run("wrong_current_password", func(t *testing.T) {
		w := doJSON(t, server, http.MethodPost, "/auth/password", `{"current_password":"wrong","new_password":"new-password"}`, tokens.AccessToken)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("short_new_password", func(t *testing.T) {
		w := doJSON(t, server, http.MethodPost, "/auth/password", `{"current_password":"old-password","new_password":"short"}`, tokens.AccessToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	w := doJSON(t, server, http.MethodPost, "/auth/password", `{"current_password":"old-password","new_password":"new-password"}`, tokens.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	fresh := decodeTokens(t, w)

	// The pre-change access token no longer opens a session; the fresh one does.
	w = doJSON(t, server, http.MethodPost, "/auth/logout", "", tokens.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, server, http.MethodPost, "/auth/logout", "", fresh.AccessToken)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHandler_RequestPasswordReset(t *testing.T) {
	f, server := newTestServer(t)
	f.repo.add("vet@example.com", "correct-password", 1)

	// 202 whether or not the address is registered.
	w := doJSON(t, server, http.MethodPost, "/auth/password-reset", `{"email":"vet@example.com"}`, "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(t, server, http.MethodPost, "/auth/password-reset", `{"email":"nobody@example.com"}`, "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(t, server, http.MethodPost, "/auth/password-reset", `{"email":"not-an-email"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
