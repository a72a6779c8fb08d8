package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sharednotes/pkg/errors"
	"sharednotes/pkg/fakebackend"
	"sharednotes/pkg/identity"
	"sharednotes/pkg/models"
)

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.session.Login(ctx, "alice", "Secr3t!")
	require.NoError(t, err)

	assert.Equal(t, f.alice.ID, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, models.SessionAuthenticated, f.session.Status())
	assert.True(t, f.tokens.Valid())
	assert.NoError(t, f.session.LastError())
	assert.False(t, f.session.Busy())
}

func TestLoginFailureRestoresState(t *testing.T) {
	f := newFixture(t)

	_, err := f.session.Login(context.Background(), "alice", "wrong")
	assert.Equal(t, "Invalid username or password.", userMessage(t, err))
	assert.Equal(t, models.SessionAnonymous, f.session.Status())
	assert.Nil(t, f.session.CurrentUser())
	assert.False(t, f.tokens.Valid())
	assert.Equal(t, err, f.session.LastError())
}

func TestLoginFallbackMessage(t *testing.T) {
	f := newFixture(t)
	f.fake.FailNext(fakebackend.RouteCreateToken, http.StatusBadRequest, map[string]string{"unexpected": ""})

	_, err := f.session.Login(context.Background(), "alice", "Secr3t!")
	assert.Equal(t, "Login Failed", userMessage(t, err))
}

func TestLoginProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.FailNext("SignIn", &identity.Error{Op: "SignIn", Message: "User is disabled."})
	f.tokens.Set("previous")

	_, err := f.session.Login(context.Background(), "alice", "Secr3t!")
	assert.Equal(t, "User is disabled.", userMessage(t, err))
	assert.Equal(t, "previous", f.tokens.Get())
	assert.Equal(t, models.SessionAnonymous, f.session.Status())
}

func TestLoginRequiresCredentials(t *testing.T) {
	f := newFixture(t)

	_, err := f.session.Login(context.Background(), "", "")
	require.Error(t, err)
	assert.Equal(t, 0, f.fake.Calls(fakebackend.RouteCreateToken))
}

func TestResumeSessionWithoutToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.session.ResumeSession(context.Background())
	assert.Equal(t, "User does not exist or email not confirmed", userMessage(t, err))
	assert.Equal(t, models.SessionAnonymous, f.session.Status())
	assert.False(t, f.tokens.Valid())
}

func TestResumeSessionFromCookie(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	// A new process keeps the cookie jar but not the access token.
	f.tokens.Clear()
	resumed := NewSessionService(f.client, f.provider, f.tokens, zerolog.Nop(), nil)

	user, err := resumed.ResumeSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, models.SessionAuthenticated, resumed.Status())
	assert.True(t, f.tokens.Valid())
}

func TestRegisterAndVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	profile := models.Profile{Username: "carol", Email: "carol@example.com", Password: "Passw0rd!"}

	require.NoError(t, f.session.Register(ctx, profile))
	snap := f.session.Snapshot()
	assert.Equal(t, models.SessionPending, snap.Status)
	assert.Equal(t, &models.PendingAccount{Email: "carol@example.com", Username: "carol"}, snap.Pending)

	code, ok := f.provider.Code("carol")
	require.True(t, ok)

	user, err := f.session.VerifyEmail(ctx, profile.Email, profile.Username, profile.Password, code)
	require.NoError(t, err)
	assert.Equal(t, "carol", user.Username)
	assert.Equal(t, models.SessionAuthenticated, f.session.Status())
	assert.Nil(t, f.session.Snapshot().Pending)

	acct, ok := f.fake.LookupUser("carol")
	require.True(t, ok)
	assert.True(t, acct.Verified)
}

func TestRegisterLogsOutCurrentUser(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	err := f.session.Register(context.Background(), models.Profile{Username: "carol", Email: "carol@example.com", Password: "Passw0rd!"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.fake.Calls(fakebackend.RouteExpireToken))
	assert.Nil(t, f.session.CurrentUser())
	assert.False(t, f.tokens.Valid())
}

func TestRegisterProviderFailureSkipsBackend(t *testing.T) {
	f := newFixture(t)
	f.provider.FailNext("SignUp", &identity.Error{Op: "SignUp", Code: "InvalidPasswordException", Message: "Password did not conform with policy"})

	err := f.session.Register(context.Background(), models.Profile{Username: "carol", Email: "carol@example.com", Password: "Passw0rd!"})
	assert.Equal(t, "Password did not conform with policy", userMessage(t, err))
	assert.Equal(t, 0, f.fake.Calls(fakebackend.RouteCreateUser))
	assert.Equal(t, models.SessionAnonymous, f.session.Status())
}

func TestRegisterBackendMessage(t *testing.T) {
	f := newFixture(t)
	f.fake.SeedUser("carol", "carol@old.example.com", "Passw0rd!")

	err := f.session.Register(context.Background(), models.Profile{Username: "carol", Email: "carol@example.com", Password: "Passw0rd!"})
	assert.Equal(t, "A user with that username already exists.", userMessage(t, err))
	assert.Equal(t, models.SessionAnonymous, f.session.Status())
}

func TestRegisterFieldErrorAndFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fake.FailNext(fakebackend.RouteCreateUser, http.StatusBadRequest, map[string][]string{"email": {"Enter a valid email address."}})
	err := f.session.Register(ctx, models.Profile{Username: "carol", Email: "carol@example.com", Password: "Passw0rd!"})
	assert.Equal(t, "Enter a valid email address.", userMessage(t, err))

	f.fake.FailNext(fakebackend.RouteCreateUser, http.StatusInternalServerError, nil)
	err = f.session.Register(ctx, models.Profile{Username: "dave", Email: "dave@example.com", Password: "Passw0rd!"})
	assert.Equal(t, "Registration Failed", userMessage(t, err))
}

func TestRegisterValidatesLocally(t *testing.T) {
	f := newFixture(t)

	err := f.session.Register(context.Background(), models.Profile{Username: "carol", Email: "carol@example.com", Password: "short"})
	require.Error(t, err)
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrTypeValidation, appErr.Type)
	assert.False(t, f.provider.Exists("carol"))
	assert.Equal(t, 0, f.fake.Calls(fakebackend.RouteCreateUser))
}

func TestVerifyEmailFailureKeepsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	profile := models.Profile{Username: "carol", Email: "carol@example.com", Password: "Passw0rd!"}
	require.NoError(t, f.session.Register(ctx, profile))

	_, err := f.session.VerifyEmail(ctx, profile.Email, profile.Username, profile.Password, "not-the-code")
	assert.Equal(t, "Invalid verification code provided, please try again.", userMessage(t, err))
	assert.Equal(t, models.SessionPending, f.session.Status())
	assert.False(t, f.tokens.Valid())
	assert.Equal(t, 0, f.fake.Calls(fakebackend.RouteActivate))
}

func TestVerifyEmailRestoresTokenWhenMeFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	profile := models.Profile{Username: "carol", Email: "carol@example.com", Password: "Passw0rd!"}
	require.NoError(t, f.session.Register(ctx, profile))
	code, _ := f.provider.Code("carol")

	f.fake.FailNext(fakebackend.RouteGetMe, http.StatusInternalServerError, map[string]string{"message": "boom"})
	_, err := f.session.VerifyEmail(ctx, profile.Email, profile.Username, profile.Password, code)
	assert.Equal(t, "boom", userMessage(t, err))
	assert.False(t, f.tokens.Valid())
	assert.Equal(t, models.SessionPending, f.session.Status())
}

func TestUpdateProfileNothingToUpdate(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	result, err := f.session.UpdateProfile(context.Background(), "alice", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Nothing to update", result.Message)
	assert.False(t, result.ReverifyEmail)
	assert.Equal(t, 0, f.fake.Calls(fakebackend.RouteUpdateMe))
}

func TestUpdateProfileNewEmail(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	result, err := f.session.UpdateProfile(context.Background(), "alice", "alice@new.example.com")
	require.NoError(t, err)
	assert.True(t, result.ReverifyEmail)
	assert.Equal(t, reverifyMessage, result.Message)
	assert.Equal(t, "alice@new.example.com", f.session.CurrentUser().Email)
	assert.Equal(t, 1, f.fake.EmailsSent("alice@new.example.com"))
}

func TestUpdateProfileUsernameOnly(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	result, err := f.session.UpdateProfile(context.Background(), "alicia", "alice@example.com")
	require.NoError(t, err)
	assert.False(t, result.ReverifyEmail)
	assert.Equal(t, "alicia", f.session.CurrentUser().Username)
}

func TestUpdateProfileErrors(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	ctx := context.Background()

	_, err := f.session.UpdateProfile(ctx, "bob", "alice@example.com")
	assert.Equal(t, "A user with that username already exists.", userMessage(t, err))

	_, err = f.session.UpdateProfile(ctx, "alice", "bob@example.com")
	assert.Equal(t, "User with this email already exists.", userMessage(t, err))

	f.fake.FailNext(fakebackend.RouteUpdateMe, http.StatusBadRequest, map[string]string{"message": "nope"})
	_, err = f.session.UpdateProfile(ctx, "alicia", "alice@example.com")
	assert.Equal(t, "Failed updating user details", userMessage(t, err))

	assert.Equal(t, "alice", f.session.CurrentUser().Username)
}

func TestUpdateProfileRequiresSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.session.UpdateProfile(context.Background(), "alice", "alice@example.com")
	assert.ErrorIs(t, err, errors.ErrNotAuthenticated)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	ctx := context.Background()

	err := f.session.ChangePassword(ctx, "wrong", "N3wSecret!", "N3wSecret!")
	assert.Equal(t, "Current password is incorrect.", userMessage(t, err))

	err = f.session.ChangePassword(ctx, "Secr3t!", "N3wSecret!", "Different1!")
	assert.ErrorIs(t, err, errors.ErrPasswordMismatch)

	require.NoError(t, f.session.ChangePassword(ctx, "Secr3t!", "N3wSecret!", "N3wSecret!"))
	acct, _ := f.fake.LookupUser("alice")
	assert.Equal(t, "N3wSecret!", acct.Password)

	f.fake.FailNext(fakebackend.RouteChangePassword, http.StatusInternalServerError, nil)
	err = f.session.ChangePassword(ctx, "N3wSecret!", "An0therOne!", "An0therOne!")
	assert.Equal(t, "Failed to update password", userMessage(t, err))
}

func TestLogoutClearsStateWhenExpireFails(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.fake.SeedNote(f.alice.ID, "groceries", "milk")
	_, err := f.notes.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, f.notes.Notes(), 1)

	var notified int
	f.session.OnLogout(func() { notified++ })
	f.fake.FailNext(fakebackend.RouteExpireToken, http.StatusInternalServerError, map[string]string{"detail": "down"})

	require.True(t, f.provider.SignedIn("alice"))

	f.session.Logout(context.Background())

	assert.Equal(t, 1, f.fake.Calls(fakebackend.RouteExpireToken))
	assert.Equal(t, models.SessionAnonymous, f.session.Status())
	assert.Nil(t, f.session.CurrentUser())
	assert.False(t, f.tokens.Valid())
	assert.Equal(t, 1, notified)
	assert.Empty(t, f.notes.Notes())
	assert.False(t, f.provider.SignedIn("alice"))
}

func TestLogoutSurvivesProviderSignOutFailure(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.provider.FailNext("SignOut", &identity.Error{Op: "SignOut", Message: "throttled"})

	f.session.Logout(context.Background())

	assert.Equal(t, models.SessionAnonymous, f.session.Status())
	assert.False(t, f.tokens.Valid())
	assert.Equal(t, 1, f.fake.Calls(fakebackend.RouteExpireToken))
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	require.NoError(t, f.session.DeleteAccount(context.Background()))

	assert.Equal(t, models.SessionAnonymous, f.session.Status())
	assert.False(t, f.tokens.Valid())
	_, ok := f.fake.LookupUser("alice")
	assert.False(t, ok)
	assert.False(t, f.provider.Exists("alice"))
}

func TestDeleteAccountBackendFailureKeepsSession(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.fake.FailNext(fakebackend.RouteDeleteMe, http.StatusInternalServerError, nil)

	err := f.session.DeleteAccount(context.Background())
	assert.Equal(t, "Failed to delete account", userMessage(t, err))
	assert.Equal(t, models.SessionAuthenticated, f.session.Status())
	assert.True(t, f.provider.Exists("alice"))
	assert.Equal(t, 0, f.fake.Calls(fakebackend.RouteExpireToken))
}

func TestDeleteAccountProviderFailureStillLogsOut(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.provider.FailNext("DeleteUser", &identity.Error{Op: "DeleteUser", Message: "unavailable"})

	require.NoError(t, f.session.DeleteAccount(context.Background()))
	assert.Equal(t, models.SessionAnonymous, f.session.Status())
	assert.True(t, f.provider.Exists("alice"))
}

func TestResendVerificationEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.session.Register(ctx, models.Profile{Username: "carol", Email: "carol@example.com", Password: "Passw0rd!"}))

	msg, err := f.session.ResendVerificationEmail(ctx, "carol@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "Email sent successfuly", msg)
	assert.Equal(t, 2, f.fake.EmailsSent("carol@example.com"))

	_, err = f.session.ResendVerificationEmail(ctx, "nobody@example.com", "nobody")
	assert.Equal(t, "No user found with this email and username combination.", userMessage(t, err))

	f.fake.FailNext(fakebackend.RouteResendEmail, http.StatusInternalServerError, nil)
	_, err = f.session.ResendVerificationEmail(ctx, "carol@example.com", "carol")
	assert.Equal(t, "Failed to send email", userMessage(t, err))
}

func TestUploadPublicKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.session.UploadPublicKey(ctx, "key"), errors.ErrNotAuthenticated)

	f.login(t)
	require.NoError(t, f.session.UploadPublicKey(ctx, "new-key"))
	acct, _ := f.fake.LookupUser("alice")
	assert.Equal(t, "new-key", acct.PublicKey)

	require.Error(t, f.session.UploadPublicKey(ctx, " "))
}
