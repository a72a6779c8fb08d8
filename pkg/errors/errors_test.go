package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sharednotes/pkg/models"
)

func TestAppErrorIsAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Wrap(cause, ErrTypeAuth, "NOT_AUTHENTICATED", "no token")

	assert.True(t, stderrors.Is(err, ErrNotAuthenticated))
	assert.True(t, stderrors.Is(err, cause))
	assert.False(t, stderrors.Is(err, ErrNoteNotFound))
	assert.Equal(t, "no token", err.GetUserMessage())
	assert.Contains(t, err.Error(), "boom")
}

func TestRetryHandler(t *testing.T) {
	t.Run("stops on success", func(t *testing.T) {
		calls := 0
		h := NewRetryHandler(3, zerolog.Nop())
		err := h.Execute(func() error {
			calls++
			if calls < 2 {
				return New(ErrTypeNetwork, "DOWN", "down").WithRetryable(true)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		retries := 0
		h := &RetryHandler{MaxAttempts: 3, OnRetry: func(int, error) { retries++ }}
		err := h.Execute(func() error {
			calls++
			return New(ErrTypeNetwork, "DOWN", "down").WithRetryable(true)
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 2, retries)
		appErr, ok := As(err)
		require.True(t, ok)
		assert.Equal(t, "MAX_RETRIES_EXCEEDED", appErr.Code)
	})

	t.Run("does not retry non-retryable errors", func(t *testing.T) {
		calls := 0
		h := NewRetryHandler(5, zerolog.Nop())
		err := h.Execute(func() error {
			calls++
			return New(ErrTypeBusiness, "REJECTED", "rejected")
		})
		assert.Equal(t, 1, calls)
		assert.Equal(t, "REJECTED", err.(*AppError).Code)
	})
}

func TestParseFieldErrors(t *testing.T) {
	body := []byte(`{"username":["A user with that username already exists.","second"],"email":"bad email","code":404,"empty":[]}`)
	fields := ParseFieldErrors(body)

	msg, ok := fields.Get("username")
	require.True(t, ok)
	assert.Equal(t, "A user with that username already exists.", msg)

	msg, ok = fields.First("password", "email", "username")
	require.True(t, ok)
	assert.Equal(t, "bad email", msg)

	msg, ok = fields.Any()
	require.True(t, ok)
	assert.Equal(t, "A user with that username already exists.", msg)

	_, ok = fields.Get("empty")
	assert.False(t, ok)
	_, ok = fields.Get("code")
	assert.False(t, ok)

	assert.Nil(t, ParseFieldErrors([]byte(`["not an object"]`)))
	assert.Nil(t, ParseFieldErrors([]byte(`<html>`)))
}

func TestParseFieldErrorsNested(t *testing.T) {
	fields := ParseFieldErrors([]byte(`{"profile":{"email":["taken"]}}`))
	msg, ok := fields.Get("profile")
	require.True(t, ok)
	assert.Equal(t, "taken", msg)
}

func TestValidator(t *testing.T) {
	v := NewValidator()

	assert.True(t, v.ValidatePassword("Secr3t!pass").IsValid)
	weak := v.ValidatePassword("12345678")
	assert.False(t, weak.IsValid)
	assert.Equal(t, "Password cannot be entirely numeric.", weak.GetFirstError().GetUserMessage())
	assert.False(t, v.ValidatePassword("Ab1!").IsValid)

	assert.True(t, v.ValidateUsername("alice").IsValid)
	assert.False(t, v.ValidateUsername("al").IsValid)

	assert.True(t, v.ValidateEmail("alice@example.com").IsValid)
	assert.False(t, v.ValidateEmail("Alice <alice@example.com>").IsValid)
	assert.False(t, v.ValidateEmail("nope").IsValid)

	assert.True(t, v.ValidateNoteID("0b7e0b6e-7f3c-4c45-a1cb-2f6c3a1d0d11").IsValid)
	assert.False(t, v.ValidateNoteID("0b7e0b6e").IsValid)
	assert.Equal(t, "Note ID is required", v.ValidateNoteID("").GetFirstError().GetUserMessage())

	assert.False(t, v.ValidateNoteID("0B7E0B6E-7F3C-4C45-A1CB-2F6C3A1D0D11").IsValid)

	assert.True(t, v.ValidateNoteKeys(false, nil).IsValid)
	assert.Equal(t, "KEYS_REQUIRED", v.ValidateNoteKeys(true, nil).GetFirstError().Code)
	assert.Equal(t, "KEY_INCOMPLETE", v.ValidateNoteKeys(true, []models.NoteKey{{UserID: "u"}}).GetFirstError().Code)
	assert.True(t, v.ValidateNoteKeys(true, []models.NoteKey{{UserID: "u", Key: "k"}}).IsValid)

	assert.True(t, v.ValidateShareTier(models.PermissionWrite).IsValid)
	assert.False(t, v.ValidateShareTier(models.PermissionOwner).IsValid)

	assert.True(t, v.ValidatePasswordMatch("a", "a").IsValid)
	assert.Nil(t, v.ValidatePasswordMatch("a", "a").Err())
	assert.Error(t, v.ValidatePasswordMatch("a", "b").Err())
}

func TestErrorHandlerValidate(t *testing.T) {
	v := NewValidator()
	h := NewErrorHandler(zerolog.Nop())

	assert.NoError(t, h.Validate(func() *ValidationResult { return v.ValidateUsername("alice") }))

	err := h.Validate(
		func() *ValidationResult { return v.ValidateUsername("alice") },
		func() *ValidationResult { return v.ValidateNoteID("") },
		func() *ValidationResult { return v.ValidateEmail("nope") },
	)
	appErr, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "ID_EMPTY", appErr.Code)
}

func TestToFrontendError(t *testing.T) {
	appErr := New(ErrTypeBusiness, "LOGIN_FAILED", "login failed").
		WithUserMessage("Login Failed").
		WithContext("username", "alice")

	fe := ToFrontendError(appErr)
	assert.Equal(t, "Login Failed", fe.Message)
	assert.Equal(t, "business", fe.Type)
	assert.Equal(t, "alice", fe.Context["username"])
	fe.Context["route"] = "login"
	assert.NotContains(t, appErr.Context, "route")

	generic := ToFrontendError(fmt.Errorf("plain"))
	assert.Equal(t, "GENERIC_ERROR", generic.Code)
}
