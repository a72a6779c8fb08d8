package models

// SessionStatus is the state of the client session
type SessionStatus int

const (
	// SessionAnonymous means no user is signed in
	SessionAnonymous SessionStatus = iota
	// SessionPending means a user registered and has not verified their email yet
	SessionPending
	// SessionAuthenticated means a token and a current user are present
	SessionAuthenticated
)

func (s SessionStatus) String() string {
	switch s {
	case SessionPending:
		return "pending"
	case SessionAuthenticated:
		return "authenticated"
	}
	return "anonymous"
}

// MarshalText encodes the status by name
func (s SessionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PendingAccount identifies the account awaiting email verification
type PendingAccount struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Session is a snapshot of the session state
type Session struct {
	Status  SessionStatus   `json:"status"`
	User    *User           `json:"user,omitempty"`
	Pending *PendingAccount `json:"pending,omitempty"`
}
