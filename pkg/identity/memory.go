package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type memoryAccount struct {
	email     string
	password  string
	confirmed bool
	code      string
	refresh   string
}

// Memory is an in-process identity provider for development and tests.
// Confirmation codes are exposed through Code instead of being emailed.
type Memory struct {
	mu       sync.Mutex
	accounts map[string]*memoryAccount
	access   map[string]string // access token -> username
	failNext map[string]error
}

// NewMemory creates an empty in-memory provider
func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]*memoryAccount),
		access:   make(map[string]string),
		failNext: make(map[string]error),
	}
}

// Code returns the pending confirmation code of username
func (m *Memory) Code(username string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[username]
	if !ok || acct.confirmed {
		return "", false
	}
	return acct.code, true
}

// Exists reports whether username has an account
func (m *Memory) Exists(username string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.accounts[username]
	return ok
}

// SignedIn reports whether username holds a refresh token that has not
// been revoked
func (m *Memory) SignedIn(username string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[username]
	return ok && acct.refresh != ""
}

// AddConfirmed registers a confirmed account directly
func (m *Memory) AddConfirmed(email, username, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[username] = &memoryAccount{email: email, password: password, confirmed: true}
}

// FailNext makes the next call of op ("SignUp", "SignIn", ...) return err
func (m *Memory) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext[op] = err
}

func (m *Memory) injected(op string) error {
	if err, ok := m.failNext[op]; ok {
		delete(m.failNext, op)
		return err
	}
	return nil
}

func newCode() string {
	return fmt.Sprintf("%06d", uuid.New().ID()%1000000)
}

// SignUp implements Provider
func (m *Memory) SignUp(ctx context.Context, email, username, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected("SignUp"); err != nil {
		return err
	}
	if _, ok := m.accounts[username]; ok {
		return &Error{Op: "SignUp", Code: "UsernameExistsException", Message: "User already exists"}
	}
	m.accounts[username] = &memoryAccount{email: email, password: password, code: newCode()}
	return nil
}

// ConfirmSignUp implements Provider
func (m *Memory) ConfirmSignUp(ctx context.Context, username, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected("ConfirmSignUp"); err != nil {
		return err
	}
	acct, ok := m.accounts[username]
	if !ok {
		return &Error{Op: "ConfirmSignUp", Code: "UserNotFoundException", Message: "Username/client id combination not found."}
	}
	if acct.confirmed {
		return nil
	}
	if acct.code != code {
		return &Error{Op: "ConfirmSignUp", Code: "CodeMismatchException", Message: "Invalid verification code provided, please try again."}
	}
	acct.confirmed = true
	acct.code = ""
	return nil
}

// SignIn implements Provider
func (m *Memory) SignIn(ctx context.Context, username, password string) (*Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected("SignIn"); err != nil {
		return nil, err
	}
	acct, ok := m.accounts[username]
	if !ok || acct.password != password {
		return nil, &Error{Op: "SignIn", Code: "NotAuthorizedException", Message: "Incorrect username or password."}
	}
	if !acct.confirmed {
		return nil, &Error{Op: "SignIn", Code: "UserNotConfirmedException", Message: "User is not confirmed."}
	}

	acct.refresh = uuid.NewString()
	return m.issue(username, acct.refresh), nil
}

// Refresh implements Provider
func (m *Memory) Refresh(ctx context.Context, tokens *Tokens) (*Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected("Refresh"); err != nil {
		return nil, err
	}
	if tokens == nil || tokens.RefreshToken == "" {
		return nil, &Error{Op: "Refresh", Message: "No refresh token available"}
	}
	acct, ok := m.accounts[tokens.Username]
	if !ok || acct.refresh != tokens.RefreshToken {
		return nil, &Error{Op: "Refresh", Code: "NotAuthorizedException", Message: "Invalid Refresh Token"}
	}
	return m.issue(tokens.Username, acct.refresh), nil
}

func (m *Memory) issue(username, refresh string) *Tokens {
	access := uuid.NewString()
	m.access[access] = username
	return &Tokens{
		Username:     username,
		AccessToken:  access,
		IDToken:      uuid.NewString(),
		RefreshToken: refresh,
	}
}

// DeleteUser implements Provider
func (m *Memory) DeleteUser(ctx context.Context, accessToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected("DeleteUser"); err != nil {
		return err
	}
	username, ok := m.access[accessToken]
	if !ok {
		return &Error{Op: "DeleteUser", Code: "NotAuthorizedException", Message: "Access Token has been revoked"}
	}
	delete(m.accounts, username)
	for token, owner := range m.access {
		if owner == username {
			delete(m.access, token)
		}
	}
	return nil
}

// SignOut implements Provider. It revokes the refresh token and every
// access token issued to the account.
func (m *Memory) SignOut(ctx context.Context, tokens *Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected("SignOut"); err != nil {
		return err
	}
	if tokens == nil {
		return nil
	}
	acct, ok := m.accounts[tokens.Username]
	if !ok || acct.refresh == "" || acct.refresh != tokens.RefreshToken {
		return nil
	}
	acct.refresh = ""
	for token, owner := range m.access {
		if owner == tokens.Username {
			delete(m.access, token)
		}
	}
	return nil
}
