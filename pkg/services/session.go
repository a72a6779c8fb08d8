package services

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"sharednotes/pkg/api"
	"sharednotes/pkg/auth"
	"sharednotes/pkg/errors"
	"sharednotes/pkg/identity"
	"sharednotes/pkg/metrics"
	"sharednotes/pkg/models"
)

const reverifyMessage = "Profile updated successfully! Verification email has been sent. " +
	"Please verify your account by clicking a link in the email."

// UserBackend is the part of the backend API the session service calls
type UserBackend interface {
	CreateUser(ctx context.Context, profile models.Profile) (*models.User, error)
	Me(ctx context.Context) (*models.User, error)
	UpdateMe(ctx context.Context, update models.ProfileUpdate) (*models.User, error)
	DeleteMe(ctx context.Context) error
	ChangePassword(ctx context.Context, change models.PasswordChange) error
	CreateToken(ctx context.Context, username, password string) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	ExpireToken(ctx context.Context) error
	UploadPublicKey(ctx context.Context, publicKey string) error
	Activate(ctx context.Context, email string) (string, error)
	ResendActivation(ctx context.Context, email, username string) (*api.MessageResponse, error)
}

// ProfileResult is the outcome of a profile update
type ProfileResult struct {
	User *models.User `json:"user"`
	// ReverifyEmail is set when the email changed and must be verified again
	ReverifyEmail bool   `json:"reverifyEmail"`
	Message       string `json:"message"`
}

// SessionService runs the account lifecycle:
// Anonymous -> Pending -> Authenticated, and back to Anonymous on logout.
type SessionService struct {
	opState

	backend   UserBackend
	provider  identity.Provider
	tokens    *auth.TokenStore
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	validator *errors.Validator

	mu             sync.RWMutex
	status         models.SessionStatus
	user           *models.User
	pending        *models.PendingAccount
	providerTokens *identity.Tokens
	onLogout       []func()
}

// NewSessionService creates an anonymous session
func NewSessionService(backend UserBackend, provider identity.Provider, tokens *auth.TokenStore, logger zerolog.Logger, m *metrics.Metrics) *SessionService {
	return &SessionService{
		backend:   backend,
		provider:  provider,
		tokens:    tokens,
		logger:    logger.With().Str("component", "session").Logger(),
		metrics:   m,
		validator: errors.NewValidator(),
	}
}

// OnLogout registers fn to run after every logout
func (s *SessionService) OnLogout(fn func()) {
	s.mu.Lock()
	s.onLogout = append(s.onLogout, fn)
	s.mu.Unlock()
}

// Status returns the session state
func (s *SessionService) Status() models.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// CurrentUser returns a copy of the signed in user, nil when anonymous
func (s *SessionService) CurrentUser() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Snapshot returns the whole session state
func (s *SessionService) Snapshot() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session := models.Session{Status: s.status}
	if s.user != nil {
		u := *s.user
		session.User = &u
	}
	if s.pending != nil {
		p := *s.pending
		session.Pending = &p
	}
	return session
}

func (s *SessionService) authenticate(user *models.User, tokens *identity.Tokens) {
	s.mu.Lock()
	s.status = models.SessionAuthenticated
	s.user = user
	s.pending = nil
	if tokens != nil {
		s.providerTokens = tokens
	}
	s.mu.Unlock()

	s.metrics.ObserveSession(models.SessionAuthenticated.String())
	s.logger.Info().Str("user", user.Username).Msg("session authenticated")
}

// requireUser returns the current user or ErrNotAuthenticated
func (s *SessionService) requireUser() (*models.User, error) {
	user := s.CurrentUser()
	if user == nil || s.Status() != models.SessionAuthenticated {
		return nil, errors.ErrNotAuthenticated
	}
	return user, nil
}

// Register logs out any current user, creates the provider account and then
// the backend account. The session becomes pending for that account.
func (s *SessionService) Register(ctx context.Context, profile models.Profile) (err error) {
	s.begin()
	defer func() { s.end(err) }()

	if err := errors.NewErrorHandler(s.logger).Validate(
		func() *errors.ValidationResult { return s.validator.ValidateUsername(profile.Username) },
		func() *errors.ValidationResult { return s.validator.ValidateEmail(profile.Email) },
		func() *errors.ValidationResult { return s.validator.ValidatePassword(profile.Password) },
	); err != nil {
		return fail(s.logger, err, "", "", "")
	}

	if s.Status() != models.SessionAnonymous || s.tokens.Valid() {
		s.Logout(ctx)
	}

	if err := s.provider.SignUp(ctx, profile.Email, profile.Username, profile.Password); err != nil {
		return fail(s.logger, err, "REGISTER_FAILED", "identity provider sign-up failed", "Registration Failed",
			providerMessage)
	}
	if _, err := s.backend.CreateUser(ctx, profile); err != nil {
		return fail(s.logger, err, "REGISTER_FAILED", "backend user creation failed", "Registration Failed",
			backendFields("message"), anyField)
	}

	s.mu.Lock()
	s.status = models.SessionPending
	s.pending = &models.PendingAccount{Email: profile.Email, Username: profile.Username}
	s.mu.Unlock()

	s.metrics.ObserveSession(models.SessionPending.String())
	s.logger.Info().Str("user", profile.Username).Msg("registered, awaiting email verification")
	return nil
}

// VerifyEmail confirms the provider account with code, activates the backend
// account and signs in. Any failure restores the previous token and status.
func (s *SessionService) VerifyEmail(ctx context.Context, email, username, password, code string) (user *models.User, err error) {
	s.begin()
	defer func() { s.end(err) }()

	previous := s.tokens.Get()
	restore := func(err error, message string) error {
		s.tokens.Set(previous)
		return fail(s.logger, err, "VERIFY_FAILED", message, "Verification failed",
			backendFields("message"), providerMessage)
	}

	if err := s.provider.ConfirmSignUp(ctx, username, code); err != nil {
		return nil, restore(err, "identity provider confirmation failed")
	}
	token, err := s.backend.Activate(ctx, email)
	if err != nil {
		return nil, restore(err, "backend activation failed")
	}
	s.tokens.Set(token)

	providerTokens, err := s.provider.SignIn(ctx, username, password)
	if err != nil {
		return nil, restore(err, "identity provider sign-in failed")
	}
	user, err = s.backend.Me(ctx)
	if err != nil {
		return nil, restore(err, "fetching current user failed")
	}

	s.authenticate(user, providerTokens)
	return s.CurrentUser(), nil
}

// Login trades credentials for a token, loads the current user and signs in
// to the identity provider. Failure restores the previous token and status.
func (s *SessionService) Login(ctx context.Context, username, password string) (user *models.User, err error) {
	s.begin()
	defer func() { s.end(err) }()

	if strings.TrimSpace(username) == "" || password == "" {
		return nil, fail(s.logger, errors.New(errors.ErrTypeValidation, "CREDENTIALS_REQUIRED", "username and password are required").
			WithUserMessage("Please enter your username and password"), "", "", "")
	}

	previous := s.tokens.Get()
	restore := func(err error, message string) error {
		s.tokens.Set(previous)
		return fail(s.logger, err, "LOGIN_FAILED", message, "Login Failed",
			backendFields("detail"), backendFields("message"), transportText)
	}

	token, err := s.backend.CreateToken(ctx, username, password)
	if err != nil {
		return nil, restore(err, "token creation failed")
	}
	s.tokens.Set(token)

	user, err = s.backend.Me(ctx)
	if err != nil {
		return nil, restore(err, "fetching current user failed")
	}
	providerTokens, err := s.provider.SignIn(ctx, username, password)
	if err != nil {
		return nil, restore(err, "identity provider sign-in failed")
	}

	s.authenticate(user, providerTokens)
	return s.CurrentUser(), nil
}

// ResumeSession restores a session from the refresh cookie. Failure leaves
// the session anonymous and is not fatal.
func (s *SessionService) ResumeSession(ctx context.Context) (user *models.User, err error) {
	s.begin()
	defer func() { s.end(err) }()

	previous := s.tokens.Get()
	restore := func(err error) error {
		s.tokens.Set(previous)
		s.logger.Info().Err(err).Msg("no session to resume")
		errType, _ := classify(err)
		return errors.Wrap(err, errType, "RESUME_FAILED", "session resume failed").
			WithUserMessage(resolve(err, "User does not exist or email not confirmed", backendFields("message")))
	}

	token, err := s.backend.RefreshToken(ctx)
	if err != nil {
		return nil, restore(err)
	}
	s.tokens.Set(token)

	user, err = s.backend.Me(ctx)
	if err != nil {
		return nil, restore(err)
	}

	s.authenticate(user, nil)
	return s.CurrentUser(), nil
}

// UpdateProfile changes username and email. Nothing is sent when neither
// changed.
func (s *SessionService) UpdateProfile(ctx context.Context, username, email string) (result *ProfileResult, err error) {
	s.begin()
	defer func() { s.end(err) }()

	current, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	if username == current.Username && email == current.Email {
		return &ProfileResult{User: current, Message: "Nothing to update"}, nil
	}

	if err := errors.NewErrorHandler(s.logger).Validate(
		func() *errors.ValidationResult { return s.validator.ValidateUsername(username) },
		func() *errors.ValidationResult { return s.validator.ValidateEmail(email) },
	); err != nil {
		return nil, fail(s.logger, err, "", "", "")
	}

	user, err := s.backend.UpdateMe(ctx, models.ProfileUpdate{Username: username, Email: email})
	if err != nil {
		return nil, fail(s.logger, err, "PROFILE_UPDATE_FAILED", "profile update failed", "Failed updating user details",
			backendFields("username"), backendFields("email"))
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()

	result = &ProfileResult{User: s.CurrentUser(), Message: "Profile updated successfully!"}
	if user.Email != current.Email {
		result.ReverifyEmail = true
		result.Message = reverifyMessage
		s.logger.Info().Str("user", user.Username).Msg("email changed, verification required")
	}
	return result, nil
}

// ChangePassword replaces the password of the current user
func (s *SessionService) ChangePassword(ctx context.Context, currentPassword, newPassword, confirmPassword string) (err error) {
	s.begin()
	defer func() { s.end(err) }()

	if _, err := s.requireUser(); err != nil {
		return err
	}
	if err := errors.NewErrorHandler(s.logger).Validate(
		func() *errors.ValidationResult { return s.validator.ValidatePassword(newPassword) },
		func() *errors.ValidationResult { return s.validator.ValidatePasswordMatch(newPassword, confirmPassword) },
	); err != nil {
		return fail(s.logger, err, "", "", "")
	}

	change := models.PasswordChange{
		CurrentPassword: currentPassword,
		NewPassword:     newPassword,
		ConfirmPassword: confirmPassword,
	}
	if err := s.backend.ChangePassword(ctx, change); err != nil {
		return fail(s.logger, err, "PASSWORD_CHANGE_FAILED", "password change failed", "Failed to update password",
			backendFields("currentPassword"), backendFields("confirmPassword"))
	}
	return nil
}

// DeleteAccount deletes the backend account, logs out and then deletes the
// identity provider account. Provider failures are logged only.
func (s *SessionService) DeleteAccount(ctx context.Context) (err error) {
	s.begin()
	defer func() { s.end(err) }()

	user, err := s.requireUser()
	if err != nil {
		return err
	}
	if err := s.backend.DeleteMe(ctx); err != nil {
		return fail(s.logger, err, "ACCOUNT_DELETE_FAILED", "account deletion failed", "Failed to delete account",
			backendFields("message"))
	}

	s.mu.RLock()
	providerTokens := s.providerTokens
	s.mu.RUnlock()

	s.logout(ctx, false)
	s.deleteProviderUser(ctx, user.Username, providerTokens)
	return nil
}

func (s *SessionService) deleteProviderUser(ctx context.Context, username string, tokens *identity.Tokens) {
	if tokens == nil {
		s.logger.Warn().Str("user", username).Msg("no identity provider session, provider account left in place")
		return
	}

	if tokens.AccessToken == "" {
		refreshed, err := s.provider.Refresh(ctx, tokens)
		if err != nil {
			s.logger.Error().Err(err).Str("user", username).Msg("identity provider refresh failed")
			return
		}
		tokens = refreshed
	}
	if err := s.provider.DeleteUser(ctx, tokens.AccessToken); err != nil {
		s.logger.Error().Err(err).Str("user", username).Msg("identity provider account deletion failed")
		return
	}
	s.logger.Info().Str("user", username).Msg("identity provider account deleted")
}

// Logout expires the refresh cookie and signs out of the identity provider
// on a best-effort basis, then clears all local session state. It always
// succeeds locally.
func (s *SessionService) Logout(ctx context.Context) {
	s.logout(ctx, true)
}

// logout clears the session. Account deletion skips the provider sign-out
// since the provider account is deleted with the same tokens afterwards.
func (s *SessionService) logout(ctx context.Context, signOut bool) {
	if err := s.backend.ExpireToken(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("token expiry failed, clearing session anyway")
	}
	s.tokens.Clear()

	s.mu.Lock()
	providerTokens := s.providerTokens
	s.status = models.SessionAnonymous
	s.user = nil
	s.pending = nil
	s.providerTokens = nil
	listeners := append([]func(){}, s.onLogout...)
	s.mu.Unlock()

	if signOut && providerTokens != nil {
		if err := s.provider.SignOut(ctx, providerTokens); err != nil {
			s.logger.Warn().Err(err).Msg("identity provider sign-out failed")
		}
	}

	for _, fn := range listeners {
		fn()
	}
	s.metrics.ObserveSession(models.SessionAnonymous.String())
	s.logger.Info().Msg("logged out")
}

// ResendVerificationEmail asks the backend to send the verification email
// again. An empty username falls back to the pending account.
func (s *SessionService) ResendVerificationEmail(ctx context.Context, email, username string) (message string, err error) {
	s.begin()
	defer func() { s.end(err) }()

	if username == "" {
		s.mu.RLock()
		if s.pending != nil {
			username = s.pending.Username
		}
		s.mu.RUnlock()
	}
	if err := s.validator.ValidateEmail(email).Err(); err != nil {
		return "", fail(s.logger, err, "", "", "")
	}

	resp, err := s.backend.ResendActivation(ctx, email, username)
	if err != nil {
		return "", fail(s.logger, err, "RESEND_FAILED", "resending verification email failed", "Failed to send email",
			backendFields("message"), anyField)
	}
	for _, msg := range []string{resp.Message, resp.Status, resp.Detail} {
		if msg != "" {
			return msg, nil
		}
	}
	return "Email sent", nil
}

// UploadPublicKey stores the current user's public key
func (s *SessionService) UploadPublicKey(ctx context.Context, publicKey string) (err error) {
	s.begin()
	defer func() { s.end(err) }()

	if _, err := s.requireUser(); err != nil {
		return err
	}
	if strings.TrimSpace(publicKey) == "" {
		return fail(s.logger, errors.New(errors.ErrTypeValidation, "PUBLIC_KEY_REQUIRED", "public key is required").
			WithUserMessage("This field is required."), "", "", "")
	}
	if err := s.backend.UploadPublicKey(ctx, publicKey); err != nil {
		return fail(s.logger, err, "PUBLIC_KEY_UPLOAD_FAILED", "public key upload failed", "Failed to upload public key",
			backendFields("public_key", "message"), anyField)
	}
	return nil
}
