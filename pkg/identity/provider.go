package identity

import (
	"context"
	"fmt"
)

// Tokens are the credentials an identity provider issues on sign-in.
// They are held in memory by the caller and never persisted.
type Tokens struct {
	Username     string
	AccessToken  string
	IDToken      string
	RefreshToken string
}

// Provider is the external identity service accounts are mirrored to.
// Implementations hold no session state.
type Provider interface {
	// SignUp creates an unconfirmed account and sends a confirmation code
	SignUp(ctx context.Context, email, username, password string) error
	// ConfirmSignUp confirms an account with the code sent on sign-up
	ConfirmSignUp(ctx context.Context, username, code string) error
	// SignIn authenticates with username and password
	SignIn(ctx context.Context, username, password string) (*Tokens, error)
	// Refresh trades a refresh token for new access tokens
	Refresh(ctx context.Context, tokens *Tokens) (*Tokens, error)
	// DeleteUser deletes the account the access token belongs to
	DeleteUser(ctx context.Context, accessToken string) error
	// SignOut revokes the refresh token so the tokens cannot be renewed
	SignOut(ctx context.Context, tokens *Tokens) error
}

// Error is a failure reported by the identity provider
type Error struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity %s: %s: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("identity %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}
